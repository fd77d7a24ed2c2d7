package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"portfolio_bk/internal/app"
	"portfolio_bk/internal/config"
	"portfolio_bk/internal/core"
	"portfolio_bk/internal/extract"
	"portfolio_bk/internal/pagetext"
	"portfolio_bk/internal/pubsub"
	"portfolio_bk/internal/services"
	"portfolio_bk/internal/storage"
)

// session opens the local storage and the runtime on first use.
type session struct {
	conf   config.Config
	out    io.Writer
	logger *slog.Logger

	store   *storage.SQLiteStore
	runtime *app.App
	subs    []*pubsub.Subscription
}

func newSession(conf config.Config, out io.Writer, logger *slog.Logger) *session {
	return &session{conf: conf, out: out, logger: logger}
}

// open restores the saved state so every command starts where the last
// one left off.
func (s *session) open(ctx context.Context) (*app.App, error) {
	if s.runtime != nil {
		return s.runtime, nil
	}
	store, err := app.OpenStorage(s.conf.Storage)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.runtime = app.New(s.conf, store, s.logger, true)
	if err := s.runtime.State.Restore(ctx); err != nil {
		return nil, err
	}

	for _, event := range []string{services.EventLanguageChanged, services.EventPageChanged, services.EventStateReset, services.EventPageTranslated} {
		s.subs = append(s.subs, s.runtime.Bus.Subscribe(event, func(payload any) error {
			s.logger.Info("event", "name", event, "payload", fmt.Sprintf("%+v", payload))
			return nil
		}))
	}
	return s.runtime, nil
}

func (s *session) close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close storage", "error", err)
		}
	}
}

func (s *session) locales() *services.FileSource {
	return services.NewFileSource(s.conf.I18n.LocalesDir)
}

// writeDictionary saves dict to the locales directory and drops the cached
// copy so the next load sees the change.
func (s *session) writeDictionary(ctx context.Context, lang string, dict core.Dictionary) error {
	data, err := dict.Marshal()
	if err != nil {
		return err
	}
	path := filepath.Join(s.conf.I18n.LocalesDir, lang+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	return rt.Loader.Invalidate(ctx, lang)
}

// translate [-lang xx] [-fallback text] <key> [name=value ...]
func translateCmd(ctx context.Context, s *session, args []string) error {
	flags := flag.NewFlagSet(cmdTranslate, flag.ContinueOnError)
	lang := flags.String("lang", "", "Target `language` (defaults to the current one)")
	fallback := flags.String("fallback", "", "Text used when no dictionary has the key")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		return fmt.Errorf("usage: %s [-lang xx] [-fallback text] <key> [name=value ...]", cmdTranslate)
	}

	params := map[string]any{}
	for _, pair := range flags.Args()[1:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid parameter %q, want name=value", pair)
		}
		params[name] = value
	}

	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	opts := []services.Option{services.WithParams(params)}
	if *lang != "" {
		opts = append(opts, services.WithLanguage(*lang))
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "fallback" {
			opts = append(opts, services.WithFallback(*fallback))
		}
	})

	_, err = fmt.Fprintln(s.out, rt.Translator.Translate(ctx, flags.Arg(0), opts...))
	return err
}

// lang [code]
func langCmd(ctx context.Context, s *session, args []string) error {
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		_, err := fmt.Fprintln(s.out, rt.State.Language())
		return err
	}

	code := strings.ToLower(args[0])
	if !s.conf.I18n.Supports(code) {
		return fmt.Errorf("unsupported language %q, want one of %s", code, strings.Join(s.conf.I18n.SupportedLanguages, ", "))
	}
	if err := rt.Coordinator.SwitchLanguage(ctx, code, nil, nil); err != nil {
		return err
	}
	rt.State.MarkLanguageLoaded(code)
	if err := rt.State.Save(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, code)
	return err
}

// page <index>
func pageCmd(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <index>", cmdPage)
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page index %q: %w", args[0], err)
	}
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	if err := rt.State.SetPage(index); err != nil {
		return err
	}
	return rt.State.Save(ctx)
}

func resetCmd(ctx context.Context, s *session, _ []string) error {
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	return rt.State.Reset(ctx)
}

type stateView struct {
	Language        string   `json:"language"`
	LoadedLanguages []string `json:"loadedLanguages"`
	CurrentPage     int      `json:"currentPage"`
}

func stateCmd(ctx context.Context, s *session, _ []string) error {
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	snap := rt.State.Snapshot()
	view := stateView{Language: snap.Language, LoadedLanguages: snap.LoadedLanguages, CurrentPage: snap.Page}
	if view.LoadedLanguages == nil {
		view.LoadedLanguages = []string{}
	}
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

// render [-lang xx] <file.html>
func renderCmd(ctx context.Context, s *session, args []string) error {
	flags := flag.NewFlagSet(cmdRender, flag.ContinueOnError)
	lang := flags.String("lang", "", "Target `language` (defaults to the current one)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: %s [-lang xx] <file.html>", cmdRender)
	}

	content, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}
	doc, err := pagetext.Parse(bytes.NewReader(content))
	if err != nil {
		return err
	}

	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	target := *lang
	if target == "" {
		target = rt.State.Language()
	}
	targets := pagetext.Collect(doc)
	err = rt.Coordinator.SwitchLanguage(ctx, target, pagetext.Requests(targets), func(b services.Batch) error {
		return pagetext.Apply(doc, targets, b)
	})
	if err != nil {
		return err
	}
	if err := rt.State.Save(ctx); err != nil {
		return err
	}
	return pagetext.Render(s.out, doc)
}

// extract <source dir>
func extractCmd(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <source dir>", cmdExtract)
	}
	found, err := extract.ScanDir(os.DirFS(args[0]), ".")
	if err != nil {
		return err
	}

	def := s.conf.I18n.DefaultLanguage
	dict := core.Dictionary{}
	if content, err := s.locales().Fetch(ctx, def); err == nil {
		if dict, err = core.ParseDictionary(content); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	added := extract.Merge(dict, found)
	fmt.Fprintf(s.out, "found %d keys, added %d to %s.json\n", len(found), len(added), def)
	for _, key := range added {
		fmt.Fprintf(s.out, "  + %s\n", key)
	}
	if len(added) == 0 {
		return nil
	}
	return s.writeDictionary(ctx, def, dict)
}

func checkCmd(ctx context.Context, s *session, _ []string) error {
	all, err := s.locales().LoadAll(ctx)
	if err != nil {
		return err
	}
	def := s.conf.I18n.DefaultLanguage
	base, ok := all[def]
	if !ok {
		return fmt.Errorf("no %s.json in %s", def, s.conf.I18n.LocalesDir)
	}

	others := map[string]core.Dictionary{}
	for _, lang := range s.conf.I18n.SupportedLanguages {
		if lang == def {
			continue
		}
		others[lang] = all[lang]
	}
	report := extract.Missing(base, others)

	langs := make([]string, 0, len(report))
	for lang := range report {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	for _, lang := range langs {
		fmt.Fprintf(s.out, "%s: %d missing\n", lang, len(report[lang]))
		for _, key := range report[lang] {
			fmt.Fprintf(s.out, "  - %s\n", key)
		}
	}
	if len(report) > 0 {
		return errFindings
	}
	fmt.Fprintln(s.out, "all dictionaries complete")
	return nil
}

func fillCmd(ctx context.Context, s *session, _ []string) error {
	if s.conf.I18n.GlossaryFile == "" {
		return fmt.Errorf("no glossary configured, set i18n.glossary_file")
	}
	glossary, err := extract.LoadGlossary(s.conf.I18n.GlossaryFile)
	if err != nil {
		return err
	}
	all, err := s.locales().LoadAll(ctx)
	if err != nil {
		return err
	}
	def := s.conf.I18n.DefaultLanguage
	base, ok := all[def]
	if !ok {
		return fmt.Errorf("no %s.json in %s", def, s.conf.I18n.LocalesDir)
	}

	for _, lang := range s.conf.I18n.SupportedLanguages {
		if lang == def {
			continue
		}
		target := all[lang]
		if target == nil {
			target = core.Dictionary{}
		}
		filled := extract.Fill(base, target, lang, glossary)
		fmt.Fprintf(s.out, "%s: filled %d keys\n", lang, len(filled))
		if len(filled) == 0 {
			continue
		}
		if err := s.writeDictionary(ctx, lang, target); err != nil {
			return err
		}
	}
	return nil
}

// cache-clear [lang ...]
func cacheClearCmd(ctx context.Context, s *session, args []string) error {
	langs := args
	if len(langs) == 0 {
		langs = s.conf.I18n.SupportedLanguages
	}
	rt, err := s.open(ctx)
	if err != nil {
		return err
	}
	for _, lang := range langs {
		if err := rt.Loader.Invalidate(ctx, lang); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(s.out, "cleared %s\n", strings.Join(langs, ", "))
	return err
}
