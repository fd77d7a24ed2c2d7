package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"

	"portfolio_bk/internal/middleware"
	"portfolio_bk/internal/pagetext"
	"portfolio_bk/internal/services"
)

// TitleKey is the dictionary key used for the document title.
const TitleKey = "meta.title"

// HTMLHandler renders index.html in the request language.
type HTMLHandler struct {
	Translator  *services.Translator
	Coordinator *services.Coordinator
	IsDev       bool
	DevTarget   string
	DistDir     string
	Client      *http.Client
	Logger      *slog.Logger
}

func NewHTMLHandler(t *services.Translator, c *services.Coordinator, isDev bool, devTarget, distDir string, logger *slog.Logger) *HTMLHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTMLHandler{
		Translator:  t,
		Coordinator: c,
		IsDev:       isDev,
		DevTarget:   devTarget,
		DistDir:     distDir,
		Client:      http.DefaultClient,
		Logger:      logger,
	}
}

type initialState struct {
	Language     string `json:"language"`
	Translations any    `json:"translations"`
}

func (h *HTMLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang, ok := middleware.LanguageFromContext(ctx)
	if !ok {
		lang = h.Translator.Target()
	}

	page, err := h.template(r)
	if err != nil {
		h.Logger.Error("load page template", "error", err)
		http.Error(w, "index.html not available", http.StatusBadGateway)
		return
	}

	doc, err := pagetext.Parse(bytes.NewReader(page))
	if err != nil {
		h.Logger.Error("parse page template", "error", err)
		http.Error(w, "invalid page template", http.StatusInternalServerError)
		return
	}

	targets := pagetext.Collect(doc)
	batch, err := h.Coordinator.ResolveBatch(ctx, lang, pagetext.Requests(targets))
	if err != nil {
		// Serve the page as authored rather than half translated.
		h.Logger.Error("translate page", "language", lang, "error", err)
		writeHTML(w, page)
		return
	}
	if err := pagetext.Apply(doc, targets, batch); err != nil {
		h.Logger.Error("apply translations", "language", lang, "error", err)
		writeHTML(w, page)
		return
	}

	if title, ok := h.Translator.Lookup(ctx, TitleKey, lang); ok {
		pagetext.SetTitle(doc, title)
	}
	if dict, err := h.Translator.Loader().Load(ctx, lang); err == nil {
		state, err := json.Marshal(initialState{Language: lang, Translations: dict})
		if err == nil {
			err = pagetext.InjectScript(doc, "initial-state", fmt.Sprintf("window.__INITIAL_STATE__ = %s;", state))
		}
		if err != nil {
			h.Logger.Warn("inject initial state", "error", err)
		}
	}

	var out bytes.Buffer
	if err := pagetext.Render(&out, doc); err != nil {
		h.Logger.Error("render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	writeHTML(w, out.Bytes())
}

// template returns index.html from the Vite dev server or from dist/.
func (h *HTMLHandler) template(r *http.Request) ([]byte, error) {
	if !h.IsDev {
		return os.ReadFile(filepath.Join(h.DistDir, "index.html"))
	}

	// Vite only knows "/" unless history fallback is configured.
	body, err := h.fetch(r, h.DevTarget+r.URL.Path)
	if err != nil {
		body, err = h.fetch(r, h.DevTarget+"/")
	}
	return body, err
}

func (h *HTMLHandler) fetch(r *http.Request, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vite dev server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vite dev server returned %s for %s", resp.Status, target)
	}
	return io.ReadAll(resp.Body)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// DevProxyHandler proxies everything else (assets) to Vite
func DevProxyHandler(target string) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid dev target %q: %w", target, err)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}
