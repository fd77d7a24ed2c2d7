package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	_ "github.com/joho/godotenv/autoload"

	"portfolio_bk/internal/app"
	"portfolio_bk/internal/config"
	"portfolio_bk/internal/handlers"
	"portfolio_bk/internal/middleware"
)

func main() {
	// Flags
	configPath := flag.String("config", "portfolio.toml", "Path to the TOML config file")
	devMode := flag.Bool("dev", false, "Run in development mode (proxy to Vite)")
	port := flag.Int("port", 0, "Port to run the server on (overrides config)")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if *devMode {
		conf.Server.DevMode = true
	}
	if *port != 0 {
		conf.Server.Port = *port
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config.Config, logger *slog.Logger) error {
	// 1. Initialize Services
	store, err := app.OpenStorage(conf.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	runtime := app.New(conf, store, logger, false)
	if _, err := runtime.Loader.Load(ctx, conf.I18n.DefaultLanguage); err != nil {
		return fmt.Errorf("load default dictionary: %w", err)
	}
	logger.Info("translations loaded", "default", conf.I18n.DefaultLanguage)

	// 2. Initialize Handlers
	htmlHandler := handlers.NewHTMLHandler(runtime.Translator, runtime.Coordinator,
		conf.Server.DevMode, conf.Server.DevURL, conf.Server.DistDir, logger.With("component", "html"))
	detector := middleware.NewLanguageDetector(conf.I18n.DefaultLanguage, conf.I18n.SupportedLanguages)

	var assets http.Handler
	if conf.Server.DevMode {
		logger.Info("running in dev mode, proxying assets", "target", conf.Server.DevURL)
		if assets, err = handlers.DevProxyHandler(conf.Server.DevURL); err != nil {
			return err
		}
	} else {
		logger.Info("serving static files", "dir", conf.Server.DistDir)
		assets = handlers.StaticHandler(conf.Server.DistDir)
	}

	// 3. Setup Router
	router := handlers.NewRouter(handlers.Routes{
		Translations: handlers.NewTranslationHandler(runtime.Translator, logger.With("component", "api")),
		Dictionaries: &handlers.DictionaryHandler{Source: runtime.Source},
		Pages:        detector.Middleware(htmlHandler),
		Languages:    conf.I18n.SupportedLanguages,
		Assets:       assets,
	})
	recovery := gorillahandlers.RecoveryHandler(gorillahandlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           gorillahandlers.CombinedLoggingHandler(os.Stdout, recovery(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
