// Package app wires the i18n runtime from a Config.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"portfolio_bk/internal/config"
	"portfolio_bk/internal/core"
	"portfolio_bk/internal/pubsub"
	"portfolio_bk/internal/services"
	"portfolio_bk/internal/storage"
)

// App holds the runtime components shared by the binaries.
type App struct {
	Config      config.Config
	Store       core.Storage
	Source      core.DictionarySource
	Bus         *pubsub.Bus
	Loader      *services.Loader
	State       *services.StateHolder
	Translator  *services.Translator
	Coordinator *services.Coordinator
}

// New builds the runtime over store. With withState the translator follows
// the state holder's language; otherwise callers pick it per call.
func New(conf config.Config, store core.Storage, logger *slog.Logger, withState bool) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		Config: conf,
		Store:  store,
		Source: Source(conf.I18n),
		Bus:    pubsub.New(logger.With("component", "pubsub")),
	}
	a.Loader = services.NewLoader(a.Source, store, services.LoaderOptions{
		DefaultLanguage: conf.I18n.DefaultLanguage,
		CacheVersion:    conf.I18n.CacheVersion,
		Expiration:      conf.I18n.CacheExpiration,
		Keys:            storage.Keys{Prefix: conf.I18n.CachePrefix},
		Logger:          logger.With("component", "loader"),
	})

	var current services.LanguageSource
	if withState {
		a.State = services.NewStateHolder(store, a.Bus, services.StateOptions{
			DefaultLanguage: conf.I18n.DefaultLanguage,
			CacheVersion:    conf.I18n.CacheVersion,
			Logger:          logger.With("component", "state"),
		})
		current = a.State
	}
	a.Translator = services.NewTranslator(a.Loader, current)
	a.Coordinator = services.NewCoordinator(a.Translator, a.State, a.Bus)
	return a
}

// Source returns the HTTP source when a remote URL is configured and the
// locales directory otherwise.
func Source(conf config.I18nConfig) core.DictionarySource {
	if conf.RemoteURL != "" {
		return services.NewHTTPSource(conf.RemoteURL, &http.Client{Timeout: 10 * time.Second})
	}
	return services.NewFileSource(conf.LocalesDir)
}

// OpenStorage opens the SQLite local storage named by conf.
func OpenStorage(conf config.StorageConfig) (*storage.SQLiteStore, error) {
	return storage.OpenSQLite(conf.Path, conf.Quota)
}
