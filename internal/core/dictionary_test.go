package core

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, doc string) Dictionary {
	t.Helper()
	dict, err := ParseDictionary([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return dict
}

func TestLookup(t *testing.T) {
	dict := mustParse(t, `{
		"nav": {"portfolio": "Portfólio", "empty": ""},
		"hero_title": "Olá",
		"flat.key": "plano",
		"card": {"title": {"traducao": "Projeto", "contexto": "titulo"}},
		"broken": {"traducao": 3}
	}`)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"nav.portfolio", "Portfólio", true},
		{"hero_title", "Olá", true},
		{"flat.key", "plano", true},
		{"card.title", "Projeto", true},
		{"nav.empty", "", false},
		{"nav", "", false},
		{"nav.portfolio.deeper", "", false},
		{"missing.key", "", false},
		{"broken", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := dict.Lookup(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDictionaryRejectsNonObject(t *testing.T) {
	for _, doc := range []string{`[1,2]`, `null`, `{`} {
		if _, err := ParseDictionary([]byte(doc)); err == nil {
			t.Errorf("ParseDictionary(%s) expected error", doc)
		}
	}
}

func TestSetCreatesNodes(t *testing.T) {
	dict := Dictionary{}
	dict.Set("nav.portfolio", "Portfolio")
	dict.Set("nav.contact", "Contact")
	dict.Set("title", "Home")

	if got, _ := dict.Lookup("nav.contact"); got != "Contact" {
		t.Fatalf("nav.contact = %q", got)
	}
	if got, _ := dict.Lookup("title"); got != "Home" {
		t.Fatalf("title = %q", got)
	}
}

func TestSetKeepsObjectLeaf(t *testing.T) {
	dict := mustParse(t, `{"card": {"traducao": "Projeto", "nota": "x"}}`)
	dict.Set("card", "Project")

	leaf, ok := dict["card"].(map[string]any)
	if !ok {
		t.Fatalf("expected object leaf to survive, got %T", dict["card"])
	}
	if leaf[TranslationField] != "Project" || leaf["nota"] != "x" {
		t.Fatalf("unexpected leaf %v", leaf)
	}
}

func TestFlattenAndKeys(t *testing.T) {
	dict := mustParse(t, `{"a": {"b": "1", "c": {"traducao": "2"}}, "d": ""}`)

	want := map[string]string{"a.b": "1", "a.c": "2", "d": ""}
	if got := dict.Flatten(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten() = %v, want %v", got, want)
	}
	if got := dict.Keys(); !reflect.DeepEqual(got, []string{"a.b", "a.c", "d"}) {
		t.Fatalf("Keys() = %v", got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	dict := Dictionary{}
	dict.Set("nav.home", "Início")
	data, err := dict.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back := mustParse(t, string(data))
	if !back.Has("nav.home") {
		t.Fatalf("expected nav.home after round trip: %s", data)
	}
}
