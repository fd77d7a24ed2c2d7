package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/services"
)

// Query parameters of /api/translate that are not placeholder values.
var reservedParams = map[string]bool{"key": true, "lang": true, "fallback": true}

type TranslationHandler struct {
	Translator *services.Translator
	Logger     *slog.Logger
}

func NewTranslationHandler(t *services.Translator, logger *slog.Logger) *TranslationHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TranslationHandler{
		Translator: t,
		Logger:     logger,
	}
}

// ServeHTTP returns the dictionary of ?lang=, or of the default language
// when it is unavailable.
func (h *TranslationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = h.Translator.Target()
	}

	translations, err := h.Translator.Loader().Load(r.Context(), lang)
	if err != nil {
		h.Logger.Error("load translations", "language", lang, "error", err)
		status := http.StatusInternalServerError
		if IsUnavailable(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "translations unavailable")
		return
	}
	writeJSON(w, http.StatusOK, translations)
}

type translateResponse struct {
	Key      string `json:"key"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Translate resolves a single key. Query parameters other than key, lang
// and fallback fill the placeholders.
func (h *TranslationHandler) Translate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := query.Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	lang := query.Get("lang")
	if lang == "" {
		lang = h.Translator.Target()
	}
	opts := []services.Option{services.WithLanguage(lang)}
	if query.Has("fallback") {
		opts = append(opts, services.WithFallback(query.Get("fallback")))
	}
	params := map[string]any{}
	for name := range query {
		if !reservedParams[name] {
			params[name] = query.Get(name)
		}
	}
	opts = append(opts, services.WithParams(params))

	writeJSON(w, http.StatusOK, translateResponse{
		Key:      key,
		Language: lang,
		Text:     h.Translator.Translate(r.Context(), key, opts...),
	})
}

// DictionaryHandler serves the raw dictionary files at /i18n/{lang}.json.
type DictionaryHandler struct {
	Source core.DictionarySource
}

func (h *DictionaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lang := mux.Vars(r)["lang"]
	content, err := h.Source.Fetch(r.Context(), lang)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// IsUnavailable reports whether err means no dictionary could be loaded.
func IsUnavailable(err error) bool {
	return errors.Is(err, services.ErrDictionaryUnavailable)
}
