package services

import (
	"context"
	"testing"
	"time"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/storage"
)

type fixedLanguage string

func (f fixedLanguage) Language() string { return string(f) }

func newTestTranslator(current string) (*Translator, *fakeSource) {
	source := newFakeSource(map[string]string{"pt": ptDoc, "en": enDoc})
	loader := newTestLoader(source, storage.NewMemoryStore(0), newClock())
	return NewTranslator(loader, fixedLanguage(current)), source
}

func TestTranslate(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTranslator("en")

	tests := []struct {
		name string
		key  string
		opts []Option
		want string
	}{
		{name: "current language", key: "nav.portfolio", want: "Portfolio"},
		{name: "missing language uses default", key: "nav.portfolio", opts: []Option{WithLanguage("es")}, want: "Portfólio"},
		{name: "empty value uses default", key: "nav.contact", want: "Contato"},
		{name: "key only in default", key: "only_pt", want: "Somente"},
		{name: "params", key: "greeting", opts: []Option{WithLanguage("pt"), WithParams(map[string]any{"name": "Ana"})}, want: "Olá, Ana!"},
		{name: "numeric param", key: "greeting", opts: []Option{WithParams(map[string]any{"name": 42})}, want: "Hello, 42!"},
		{name: "absent key returns key", key: "nav.missing", want: "nav.missing"},
		{name: "absent key uses fallback", key: "nav.missing", opts: []Option{WithFallback("Menu")}, want: "Menu"},
		{name: "empty fallback", key: "nav.missing", opts: []Option{WithFallback("")}, want: ""},
		{name: "fallback is interpolated", key: "x", opts: []Option{WithFallback("Hi {{name}}"), WithParams(map[string]any{"name": "Bo"})}, want: "Hi Bo"},
		{name: "object without translation", key: "nav", want: "nav"},
		{name: "empty key", key: "", opts: []Option{WithFallback("none")}, want: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Translate(ctx, tt.key, tt.opts...); got != tt.want {
				t.Fatalf("Translate(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestTranslateIsStable(t *testing.T) {
	ctx := context.Background()
	tr, source := newTestTranslator("en")

	first := tr.Translate(ctx, "nav.portfolio")
	for range 5 {
		if got := tr.Translate(ctx, "nav.portfolio"); got != first {
			t.Fatalf("translation changed from %q to %q", first, got)
		}
	}
	if n := source.count("en"); n != 1 {
		t.Fatalf("expected one fetch for repeated translations, got %d", n)
	}
}

func TestTranslateSyncUsesResidentOnly(t *testing.T) {
	ctx := context.Background()
	tr, source := newTestTranslator("en")

	if got := tr.TranslateSync("nav.portfolio"); got != "nav.portfolio" {
		t.Fatalf("before load got %q, want the key", got)
	}
	if got := tr.TranslateSync("nav.portfolio", WithFallback("Work")); got != "Work" {
		t.Fatalf("before load got %q, want the fallback", got)
	}
	if n := source.count("en") + source.count("pt"); n != 0 {
		t.Fatalf("sync translation must not fetch, got %d fetches", n)
	}

	if _, err := tr.Loader().Load(ctx, "pt"); err != nil {
		t.Fatalf("load pt: %v", err)
	}
	if got := tr.TranslateSync("nav.portfolio"); got != "Portfólio" {
		t.Fatalf("with only default resident got %q", got)
	}
	if _, err := tr.Loader().Load(ctx, "en"); err != nil {
		t.Fatalf("load en: %v", err)
	}
	if got := tr.TranslateSync("nav.portfolio"); got != "Portfolio" {
		t.Fatalf("with en resident got %q", got)
	}
}

func TestTargetDefaultsWithoutCurrentLanguage(t *testing.T) {
	loader := newTestLoader(newFakeSource(map[string]string{"pt": ptDoc}), storage.NewMemoryStore(0), newClock())
	if got := NewTranslator(loader, nil).Target(); got != "pt" {
		t.Fatalf("Target() = %q, want pt", got)
	}
	if got := NewTranslator(loader, fixedLanguage("")).Target(); got != "pt" {
		t.Fatalf("Target() with empty current = %q, want pt", got)
	}
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		text   string
		params map[string]any
		want   string
	}{
		{text: "Hello, {{name}}!", params: map[string]any{"name": "Ana"}, want: "Hello, Ana!"},
		{text: "{{ a }}+{{b}}", params: map[string]any{"a": 1, "b": 2}, want: "1+2"},
		{text: "{{a}} and {{a}}", params: map[string]any{"a": "x"}, want: "x and x"},
		{text: "keep {{missing}}", params: map[string]any{"name": "Ana"}, want: "keep {{missing}}"},
		{text: "no params {{name}}", params: nil, want: "no params {{name}}"},
		{text: "{{user.name}}", params: map[string]any{"user.name": "Bo"}, want: "Bo"},
		{text: "{{ user.name }} / {{last-name}}", params: map[string]any{"user.name": "Bo", "last-name": "Lee"}, want: "Bo / Lee"},
		{text: "{{first name}}", params: map[string]any{"first name": "Bo"}, want: "{{first name}}"},
	}
	for _, tt := range tests {
		if got := Interpolate(tt.text, tt.params); got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// Every key of the default dictionary must resolve to a non-empty string in
// every language.
func TestDefaultKeysResolveEverywhere(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTranslator("pt")
	def, err := core.ParseDictionary([]byte(ptDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, lang := range []string{"pt", "en", "es"} {
		for _, key := range def.Keys() {
			if got := tr.Translate(ctx, key, WithLanguage(lang)); got == "" || got == key {
				t.Errorf("%s: %q resolved to %q", lang, key, got)
			}
		}
	}
}

func TestShippedLocalesResolve(t *testing.T) {
	ctx := context.Background()
	source := NewFileSource("../../locales")
	langs, err := source.Languages()
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	loader := NewLoader(source, storage.NewMemoryStore(0), LoaderOptions{
		DefaultLanguage: "pt",
		CacheVersion:    "1",
		Expiration:      time.Hour,
		Keys:            testKeys,
	})
	def, err := loader.Load(ctx, "pt")
	if err != nil {
		t.Fatalf("load pt: %v", err)
	}
	tr := NewTranslator(loader, nil)
	for _, lang := range langs {
		for _, key := range def.Keys() {
			if got := tr.Translate(ctx, key, WithLanguage(lang)); got == "" || got == key {
				t.Errorf("%s: %q resolved to %q", lang, key, got)
			}
		}
	}
}
