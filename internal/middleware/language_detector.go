package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type LanguageKey string

const CtxLanguageKey LanguageKey = "language"

// LanguageDetector picks the page language from the URL prefix and the
// Accept-Language header.
type LanguageDetector struct {
	supported []string
	matcher   language.Matcher
}

// NewLanguageDetector creates a detector. defaultLang is the fallback and
// is added to supported when missing.
func NewLanguageDetector(defaultLang string, supported []string) *LanguageDetector {
	codes := []string{defaultLang}
	for _, code := range supported {
		if code != defaultLang {
			codes = append(codes, code)
		}
	}
	// The first tag is the matcher's fallback.
	tags := make([]language.Tag, len(codes))
	for i, code := range codes {
		tags[i] = language.Make(code)
	}
	return &LanguageDetector{supported: codes, matcher: language.NewMatcher(tags)}
}

// Default returns the fallback language.
func (d *LanguageDetector) Default() string {
	return d.supported[0]
}

// FromPath returns the language named by the first path segment.
func (d *LanguageDetector) FromPath(path string) (string, bool) {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	for _, code := range d.supported {
		if strings.EqualFold(segment, code) {
			return code, true
		}
	}
	return "", false
}

// FromHeader returns the supported language that best matches an
// Accept-Language value.
func (d *LanguageDetector) FromHeader(accept string) string {
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 {
		return d.Default()
	}
	_, index, conf := d.matcher.Match(prefs...)
	if conf == language.No {
		return d.Default()
	}
	return d.supported[index]
}

// Detect returns the language of r.
func (d *LanguageDetector) Detect(r *http.Request) string {
	if lang, ok := d.FromPath(r.URL.Path); ok {
		return lang
	}
	return d.FromHeader(r.Header.Get("Accept-Language"))
}

// Middleware sets the detected language in the request context. A request
// for the site root whose browser prefers another language is redirected to
// that language's prefix.
func (d *LanguageDetector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if lang, ok := d.FromPath(path); ok {
			next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), lang)))
			return
		}

		lang := d.FromHeader(r.Header.Get("Accept-Language"))
		if (path == "/" || path == "/index.html") && lang != d.Default() {
			http.Redirect(w, r, "/"+lang+"/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), d.Default())))
	})
}

// WithLanguage returns a context carrying lang.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, CtxLanguageKey, lang)
}

// LanguageFromContext returns the language set by the middleware.
func LanguageFromContext(ctx context.Context) (string, bool) {
	lang, ok := ctx.Value(CtxLanguageKey).(string)
	return lang, ok && lang != ""
}
