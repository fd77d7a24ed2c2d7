package services

import (
	"context"
	"fmt"
	"regexp"
)

// placeholderPattern matches {{name}}. Spaces inside the braces are ignored
// and names may contain dots and dashes, so {{ user.name }} reads params["user.name"].
var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// LanguageSource reports the language currently selected by the user.
type LanguageSource interface {
	Language() string
}

// Option adjusts a single translation.
type Option func(*translateOptions)

type translateOptions struct {
	lang        string
	params      map[string]any
	fallback    string
	hasFallback bool
}

// WithLanguage translates into lang instead of the current language.
func WithLanguage(lang string) Option {
	return func(o *translateOptions) { o.lang = lang }
}

// WithParams sets the values substituted for {{name}} placeholders.
func WithParams(params map[string]any) Option {
	return func(o *translateOptions) { o.params = params }
}

// WithFallback sets the text used when no dictionary has the key.
func WithFallback(text string) Option {
	return func(o *translateOptions) {
		o.fallback = text
		o.hasFallback = true
	}
}

// Translator resolves keys through the chain: target language, default
// language, caller fallback, then the key itself.
type Translator struct {
	loader  *Loader
	current LanguageSource
}

// NewTranslator creates a translator. current may be nil, in which case the
// default language is the target unless WithLanguage says otherwise.
func NewTranslator(loader *Loader, current LanguageSource) *Translator {
	return &Translator{loader: loader, current: current}
}

// Loader returns the dictionary loader backing the translator.
func (t *Translator) Loader() *Loader {
	return t.loader
}

// Translate resolves key, loading dictionaries as needed. It never fails:
// when nothing resolves it returns the fallback or the key.
func (t *Translator) Translate(ctx context.Context, key string, opts ...Option) string {
	o := t.options(opts)
	value, ok := t.Lookup(ctx, key, o.lang)
	return finish(key, value, ok, o)
}

// TranslateSync resolves key using only dictionaries already in memory.
func (t *Translator) TranslateSync(key string, opts ...Option) string {
	o := t.options(opts)
	value, ok := t.lookupResident(key, o.lang)
	return finish(key, value, ok, o)
}

// Lookup walks the language part of the chain, loading dictionaries.
func (t *Translator) Lookup(ctx context.Context, key, lang string) (string, bool) {
	if key == "" {
		return "", false
	}
	if dict, err := t.loader.Load(ctx, lang); err == nil {
		if value, ok := dict.Lookup(key); ok {
			return value, true
		}
	}
	if def := t.loader.DefaultLanguage(); def != lang {
		if dict, err := t.loader.Load(ctx, def); err == nil {
			return dict.Lookup(key)
		}
	}
	return "", false
}

func (t *Translator) lookupResident(key, lang string) (string, bool) {
	if key == "" {
		return "", false
	}
	if dict, ok := t.loader.Resident(lang); ok {
		if value, ok := dict.Lookup(key); ok {
			return value, true
		}
	}
	if def := t.loader.DefaultLanguage(); def != lang {
		if dict, ok := t.loader.Resident(def); ok {
			return dict.Lookup(key)
		}
	}
	return "", false
}

// Target returns the language a translation without WithLanguage uses.
func (t *Translator) Target() string {
	if t.current != nil {
		if lang := t.current.Language(); lang != "" {
			return lang
		}
	}
	return t.loader.DefaultLanguage()
}

func (t *Translator) options(opts []Option) translateOptions {
	var o translateOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.lang == "" {
		o.lang = t.Target()
	}
	return o
}

func finish(key, value string, ok bool, o translateOptions) string {
	if !ok {
		if !o.hasFallback {
			return key
		}
		value = o.fallback
	}
	return Interpolate(value, o.params)
}

// Interpolate replaces every {{name}} with params[name]. The name may be
// padded with spaces and may contain dots and dashes. Placeholders without a
// parameter are left as they are.
func Interpolate(text string, params map[string]any) string {
	if len(params) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := params[name]
		if !ok {
			return match
		}
		return fmt.Sprint(value)
	})
}
