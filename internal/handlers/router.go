package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
)

// Routes are the handlers mounted by NewRouter.
type Routes struct {
	Translations *TranslationHandler
	Dictionaries *DictionaryHandler
	// Pages is served for the site root and every /{lang}/ prefix.
	Pages     http.Handler
	Languages []string
	// Assets handles every other path. Nil means 404.
	Assets http.Handler
}

// NewRouter builds the site router.
func NewRouter(routes Routes) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/i18n/{lang}.json", routes.Dictionaries).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/translations", routes.Translations).Methods(http.MethodGet)
	api.HandleFunc("/translate", routes.Translations.Translate).Methods(http.MethodGet)

	r.Handle("/", routes.Pages).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/index.html", routes.Pages).Methods(http.MethodGet, http.MethodHead)
	if len(routes.Languages) > 0 {
		quoted := make([]string, len(routes.Languages))
		for i, lang := range routes.Languages {
			quoted[i] = regexp.QuoteMeta(lang)
		}
		langs := strings.Join(quoted, "|")
		r.Handle("/{lang:"+langs+"}/", routes.Pages).Methods(http.MethodGet, http.MethodHead)
		r.Handle("/{lang:"+langs+"}", http.HandlerFunc(addSlash)).Methods(http.MethodGet, http.MethodHead)
	}

	if routes.Assets != nil {
		r.PathPrefix("/").Handler(routes.Assets)
	}
	return r
}

func addSlash(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
}

// StaticHandler serves existing files from distDir and 404s everything else.
func StaticHandler(distDir string) http.Handler {
	files := http.FileServer(http.Dir(distDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// clean path to prevent directory traversal
		fPath := filepath.Join(distDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		info, err := os.Stat(fPath)
		if err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}
