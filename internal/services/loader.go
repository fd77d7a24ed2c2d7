package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/storage"
)

// ErrDictionaryUnavailable is returned when neither the requested nor the
// default language dictionary can be obtained.
var ErrDictionaryUnavailable = errors.New("dictionary unavailable")

var _ core.TranslationService = (*Loader)(nil)

// DefaultRetryAfter is how long a failed fetch is remembered when
// LoaderOptions.RetryAfter is zero.
const DefaultRetryAfter = time.Minute

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	DefaultLanguage string
	// CacheVersion must match the stored tag for a persisted entry to be used.
	CacheVersion string
	// Expiration is the maximum age of a persisted entry.
	Expiration time.Duration
	// RetryAfter is how long a language whose fetch failed is served the
	// default dictionary before the source is asked again.
	RetryAfter time.Duration
	Keys       storage.Keys
	Logger     *slog.Logger
	Now        func() time.Time
}

// Loader obtains language dictionaries, preferring memory, then the
// persistent cache, then the source. At most one load per language runs at
// a time.
type Loader struct {
	source core.DictionarySource
	store  core.Storage
	opts   LoaderOptions
	logger *slog.Logger

	mu       sync.RWMutex
	dicts    map[string]core.Dictionary
	misses   map[string]time.Time
	inflight singleflight.Group
}

// NewLoader creates a loader. A nil store keeps the cache in memory only.
func NewLoader(source core.DictionarySource, store core.Storage, opts LoaderOptions) *Loader {
	if store == nil {
		store = storage.NewMemoryStore(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	return &Loader{
		source: source,
		store:  store,
		opts:   opts,
		logger: opts.Logger,
		dicts:  make(map[string]core.Dictionary),
		misses: make(map[string]time.Time),
	}
}

// DefaultLanguage returns the language used as the last resort.
func (l *Loader) DefaultLanguage() string {
	return l.opts.DefaultLanguage
}

// Resident returns the in-memory dictionary of lang without loading it.
func (l *Loader) Resident(lang string) (core.Dictionary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dict, ok := l.dicts[lang]
	return dict, ok
}

// Load returns the dictionary of lang. When lang cannot be fetched the
// default language dictionary is returned instead. A caller whose context
// ends stops waiting, but the load itself runs to completion.
func (l *Loader) Load(ctx context.Context, lang string) (core.Dictionary, error) {
	if dict, ok := l.Resident(lang); ok {
		return dict, nil
	}

	ch := l.inflight.DoChan(lang, func() (any, error) {
		return l.load(context.WithoutCancel(ctx), lang)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(core.Dictionary), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate forgets lang in memory and in the persistent cache.
func (l *Loader) Invalidate(ctx context.Context, lang string) error {
	l.mu.Lock()
	delete(l.dicts, lang)
	delete(l.misses, lang)
	l.mu.Unlock()

	for _, key := range l.opts.Keys.Entry(lang) {
		if err := l.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("invalidate %s: %w", lang, err)
		}
	}
	return nil
}

func (l *Loader) load(ctx context.Context, lang string) (core.Dictionary, error) {
	if dict, ok := l.Resident(lang); ok {
		return dict, nil
	}
	if dict, ok := l.readCache(ctx, lang); ok {
		l.remember(lang, dict)
		return dict, nil
	}

	if lang != l.opts.DefaultLanguage && l.recentlyMissed(lang) {
		return l.fallback(ctx, lang, errors.New("recent fetch failed"))
	}

	raw, dict, err := l.fetch(ctx, lang)
	if err == nil {
		l.remember(lang, dict)
		l.persist(ctx, lang, raw)
		return dict, nil
	}

	l.logger.Warn("dictionary load failed", "language", lang, "error", err)
	if lang == l.opts.DefaultLanguage {
		return nil, fmt.Errorf("%w: %s: %w", ErrDictionaryUnavailable, lang, err)
	}
	l.mu.Lock()
	l.misses[lang] = l.opts.Now()
	l.mu.Unlock()
	return l.fallback(ctx, lang, err)
}

// fallback serves the default language dictionary in place of lang.
func (l *Loader) fallback(ctx context.Context, lang string, err error) (core.Dictionary, error) {
	fallback, fallbackErr := l.Load(ctx, l.opts.DefaultLanguage)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDictionaryUnavailable, lang, errors.Join(err, fallbackErr))
	}
	l.logger.Info("using default language dictionary", "language", lang, "default", l.opts.DefaultLanguage)
	return fallback, nil
}

func (l *Loader) fetch(ctx context.Context, lang string) (string, core.Dictionary, error) {
	content, err := l.source.Fetch(ctx, lang)
	if err != nil {
		return "", nil, err
	}
	dict, err := core.ParseDictionary(content)
	if err != nil {
		return "", nil, err
	}
	return string(content), dict, nil
}

func (l *Loader) remember(lang string, dict core.Dictionary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dicts[lang] = dict
	delete(l.misses, lang)
}

func (l *Loader) recentlyMissed(lang string) bool {
	l.mu.RLock()
	failed, ok := l.misses[lang]
	l.mu.RUnlock()
	return ok && l.opts.Now().Sub(failed) < l.opts.RetryAfter
}

// readCache returns the persisted dictionary of lang when its version tag
// matches and it has not expired.
func (l *Loader) readCache(ctx context.Context, lang string) (core.Dictionary, bool) {
	keys := l.opts.Keys
	raw, ok, err := l.store.Get(ctx, keys.Dictionary(lang))
	if err != nil {
		l.logger.Warn("read cached dictionary", "language", lang, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	version, err := storage.Require(ctx, l.store, keys.Version(lang))
	if err != nil || version != l.opts.CacheVersion {
		l.logger.Debug("cached dictionary version mismatch", "language", lang, "version", version, "error", err)
		return nil, false
	}

	stamp, err := storage.Require(ctx, l.store, keys.Timestamp(lang))
	if err != nil {
		l.logger.Debug("cached dictionary has no timestamp", "language", lang, "error", err)
		return nil, false
	}
	written, err := storage.ParseTime(stamp)
	if err != nil || l.opts.Now().Sub(written) >= l.opts.Expiration {
		l.logger.Debug("cached dictionary expired", "language", lang)
		return nil, false
	}

	dict, err := core.ParseDictionary([]byte(raw))
	if err != nil {
		l.logger.Warn("cached dictionary is malformed", "language", lang, "error", err)
		return nil, false
	}
	return dict, true
}

// persist writes the cache entry of lang. A failed write evicts older
// entries and is not retried.
func (l *Loader) persist(ctx context.Context, lang, raw string) {
	keys := l.opts.Keys
	writes := []struct{ key, value string }{
		{keys.Dictionary(lang), raw},
		{keys.Version(lang), l.opts.CacheVersion},
		{keys.Timestamp(lang), storage.FormatTime(l.opts.Now())},
	}
	for _, w := range writes {
		if err := l.store.Set(ctx, w.key, w.value); err != nil {
			l.logger.Warn("persist dictionary failed", "language", lang, "key", w.key, "error", err)
			l.evict(ctx)
			return
		}
	}
}

// evict removes the older half of the persisted language entries.
func (l *Loader) evict(ctx context.Context) {
	all, err := l.store.Keys(ctx)
	if err != nil {
		l.logger.Warn("list cache keys", "error", err)
		return
	}

	type entry struct {
		lang    string
		written time.Time
	}
	var entries []entry
	for _, key := range all {
		lang, ok := l.opts.Keys.CachedLanguage(key)
		if !ok {
			continue
		}
		e := entry{lang: lang}
		if stamp, ok, err := l.store.Get(ctx, l.opts.Keys.Timestamp(lang)); err == nil && ok {
			if written, err := storage.ParseTime(stamp); err == nil {
				e.written = written
			}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].written.Equal(entries[j].written) {
			return entries[i].lang < entries[j].lang
		}
		return entries[i].written.Before(entries[j].written)
	})

	n := (len(entries) + 1) / 2
	for _, e := range entries[:n] {
		for _, key := range l.opts.Keys.Entry(e.lang) {
			if err := l.store.Remove(ctx, key); err != nil {
				l.logger.Warn("evict cache entry", "language", e.lang, "error", err)
			}
		}
		l.logger.Info("evicted cached dictionary", "language", e.lang)
	}
}
