package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/pubsub"
	"portfolio_bk/internal/storage"
)

// Events published by the state holder and the coordinator.
const (
	EventLanguageChanged = "language:changed"
	EventPageChanged     = "page:changed"
	EventStateReset      = "state:reset"
	EventPageTranslated  = "page:translated"
)

var (
	// ErrEmptyLanguage is returned when SetLanguage receives no code.
	ErrEmptyLanguage = errors.New("language code is required")
	// ErrInvalidPage is returned when SetPage receives a negative index.
	ErrInvalidPage = errors.New("page index must not be negative")
)

// State is the application state owned by a StateHolder.
type State struct {
	Language        string
	LoadedLanguages []string
	Page            int
	// Transitioning is set while a coordinator translates the page.
	Transitioning bool
}

// LanguageChange is the payload of EventLanguageChanged.
type LanguageChange struct {
	Old string
	New string
}

// PageChange is the payload of EventPageChanged.
type PageChange struct {
	Old int
	New int
}

// persistedState is the saved subset. Pointers tell absent fields apart.
type persistedState struct {
	Language        *string   `json:"language,omitempty"`
	LoadedLanguages *[]string `json:"loadedLanguages,omitempty"`
	Page            *int      `json:"currentPage,omitempty"`
}

// StateHolder is the single owner of language and pagination state. Its
// setters are the only places that emit change notifications.
type StateHolder struct {
	store        core.Storage
	bus          core.Publisher
	cacheVersion string
	defaults     State
	logger       *slog.Logger
	now          func() time.Time

	mu    sync.RWMutex
	state State
}

// StateOptions configures a StateHolder.
type StateOptions struct {
	DefaultLanguage string
	CacheVersion    string
	Logger          *slog.Logger
	Now             func() time.Time
}

// NewStateHolder creates a holder with default state. A nil bus drops events.
func NewStateHolder(store core.Storage, bus core.Publisher, opts StateOptions) *StateHolder {
	if store == nil {
		store = storage.NewMemoryStore(0)
	}
	if bus == nil {
		bus = pubsub.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	defaults := State{Language: opts.DefaultLanguage}
	return &StateHolder{
		store:        store,
		bus:          bus,
		cacheVersion: opts.CacheVersion,
		defaults:     defaults,
		logger:       opts.Logger,
		now:          opts.Now,
		state:        cloneState(defaults),
	}
}

// Language returns the current language code.
func (h *StateHolder) Language() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Language
}

// Snapshot returns a copy of the current state.
func (h *StateHolder) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneState(h.state)
}

// SetLanguage selects code, persists the choice and announces it. While a
// transition is in progress the announcement is left to the coordinator.
func (h *StateHolder) SetLanguage(ctx context.Context, code string) error {
	if code == "" {
		return ErrEmptyLanguage
	}
	h.mu.Lock()
	old := h.state.Language
	h.state.Language = code
	silent := h.state.Transitioning
	h.mu.Unlock()

	writes := []struct{ key, value string }{
		{storage.LanguageKey, code},
		{storage.LanguageVersionKey, h.cacheVersion},
		{storage.LanguageDateKey, storage.FormatTime(h.now())},
	}
	for _, w := range writes {
		if err := h.store.Set(ctx, w.key, w.value); err != nil {
			h.logger.Warn("persist language failed", "key", w.key, "error", err)
			break
		}
	}

	if !silent {
		h.bus.Publish(EventLanguageChanged, LanguageChange{Old: old, New: code})
	}
	return nil
}

// SetPage moves pagination to index and announces it.
func (h *StateHolder) SetPage(index int) error {
	if index < 0 {
		return ErrInvalidPage
	}
	h.mu.Lock()
	old := h.state.Page
	h.state.Page = index
	h.mu.Unlock()

	h.bus.Publish(EventPageChanged, PageChange{Old: old, New: index})
	return nil
}

// MarkLanguageLoaded records that project data for code has been loaded.
func (h *StateHolder) MarkLanguageLoaded(code string) {
	if code == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !slices.Contains(h.state.LoadedLanguages, code) {
		h.state.LoadedLanguages = append(h.state.LoadedLanguages, code)
	}
}

// IsLanguageLoaded reports whether MarkLanguageLoaded was called for code.
func (h *StateHolder) IsLanguageLoaded(code string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Contains(h.state.LoadedLanguages, code)
}

// BeginTransition marks a coordinator as active. Language changes made
// until EndTransition are not announced by the holder.
func (h *StateHolder) BeginTransition() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Transitioning = true
}

// EndTransition clears the in-transition flag.
func (h *StateHolder) EndTransition() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Transitioning = false
}

// Save writes the persistable part of the state.
func (h *StateHolder) Save(ctx context.Context) error {
	h.mu.RLock()
	lang := h.state.Language
	loaded := slices.Clone(h.state.LoadedLanguages)
	page := h.state.Page
	h.mu.RUnlock()

	if loaded == nil {
		loaded = []string{}
	}
	data, err := json.Marshal(persistedState{Language: &lang, LoadedLanguages: &loaded, Page: &page})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := h.store.Set(ctx, storage.StateKey, string(data)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Restore merges the saved state over the current one. Fields missing from
// the saved blob keep their value. Without a saved language the standalone
// language key is used when its version tag matches.
func (h *StateHolder) Restore(ctx context.Context) error {
	raw, ok, err := h.store.Get(ctx, storage.StateKey)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	var saved persistedState
	if ok {
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			h.logger.Warn("saved state is malformed", "error", err)
			saved = persistedState{}
		}
	}
	if saved.Language == nil || *saved.Language == "" {
		if lang, ok := h.storedLanguage(ctx); ok {
			saved.Language = &lang
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if saved.Language != nil && *saved.Language != "" {
		h.state.Language = *saved.Language
	}
	if saved.LoadedLanguages != nil {
		h.state.LoadedLanguages = slices.Clone(*saved.LoadedLanguages)
	}
	if saved.Page != nil && *saved.Page >= 0 {
		h.state.Page = *saved.Page
	}
	return nil
}

// Reset restores the defaults, deletes the saved state and the stored
// language choice, and announces it.
func (h *StateHolder) Reset(ctx context.Context) error {
	h.mu.Lock()
	h.state = cloneState(h.defaults)
	h.mu.Unlock()

	for _, key := range []string{storage.StateKey, storage.LanguageKey, storage.LanguageVersionKey, storage.LanguageDateKey} {
		if err := h.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	}
	h.bus.Publish(EventStateReset, h.Snapshot())
	return nil
}

func (h *StateHolder) storedLanguage(ctx context.Context) (string, bool) {
	lang, err := storage.Require(ctx, h.store, storage.LanguageKey)
	if err != nil || lang == "" {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("read stored language", "error", err)
		}
		return "", false
	}
	version, err := storage.Require(ctx, h.store, storage.LanguageVersionKey)
	if err != nil || version != h.cacheVersion {
		return "", false
	}
	return lang, true
}

func cloneState(s State) State {
	s.LoadedLanguages = slices.Clone(s.LoadedLanguages)
	return s
}
