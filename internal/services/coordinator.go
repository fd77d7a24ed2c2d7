package services

import (
	"context"
	"fmt"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/pubsub"
)

// Request is one string a page needs translated.
type Request struct {
	Key      string
	Params   map[string]any
	Fallback string
	// HasFallback distinguishes an empty fallback from none.
	HasFallback bool
}

// Batch holds the resolved text of each request, in request order.
type Batch struct {
	Language string
	Texts    []string
}

// PageTranslated is the payload of EventPageTranslated.
type PageTranslated struct {
	Language string
	Count    int
}

// Coordinator translates a whole page at once: it resolves every request
// before anything is applied, so a page never shows two languages.
type Coordinator struct {
	translator *Translator
	state      *StateHolder
	bus        core.Publisher
}

// NewCoordinator wires a coordinator. state may be nil for hosts that only
// render pages; bus may be nil to drop events.
func NewCoordinator(translator *Translator, state *StateHolder, bus core.Publisher) *Coordinator {
	if bus == nil {
		bus = pubsub.Nop{}
	}
	return &Coordinator{translator: translator, state: state, bus: bus}
}

// ResolveBatch loads the dictionaries of lang once and resolves every
// request from memory. It fails only when no dictionary can be obtained.
func (c *Coordinator) ResolveBatch(ctx context.Context, lang string, reqs []Request) (Batch, error) {
	loader := c.translator.Loader()
	if lang == "" {
		lang = c.translator.Target()
	}
	if _, err := loader.Load(ctx, lang); err != nil {
		return Batch{}, fmt.Errorf("resolve batch %s: %w", lang, err)
	}
	if def := loader.DefaultLanguage(); def != lang {
		// Missing keys fall back to the default; a failure here already
		// surfaced above when lang itself fell back to it.
		_, _ = loader.Load(ctx, def)
	}

	batch := Batch{Language: lang, Texts: make([]string, len(reqs))}
	for i, req := range reqs {
		batch.Texts[i] = c.translator.resolveResident(lang, req)
	}
	return batch, nil
}

// SwitchLanguage changes the current language and hands the fully resolved
// batch to apply. Exactly one EventLanguageChanged is published, after
// apply succeeds.
func (c *Coordinator) SwitchLanguage(ctx context.Context, lang string, reqs []Request, apply func(Batch) error) error {
	if c.state == nil {
		return fmt.Errorf("switch language: no state holder")
	}
	if lang == "" {
		return ErrEmptyLanguage
	}

	c.state.BeginTransition()
	defer c.state.EndTransition()

	old := c.state.Language()
	if err := c.state.SetLanguage(ctx, lang); err != nil {
		return err
	}
	batch, err := c.ResolveBatch(ctx, lang, reqs)
	if err != nil {
		return err
	}
	if apply != nil {
		if err := apply(batch); err != nil {
			return fmt.Errorf("apply translations: %w", err)
		}
	}

	c.bus.Publish(EventLanguageChanged, LanguageChange{Old: old, New: lang})
	c.bus.Publish(EventPageTranslated, PageTranslated{Language: lang, Count: len(reqs)})
	return nil
}

func (t *Translator) resolveResident(lang string, req Request) string {
	opts := []Option{WithLanguage(lang), WithParams(req.Params)}
	if req.HasFallback {
		opts = append(opts, WithFallback(req.Fallback))
	}
	return t.TranslateSync(req.Key, opts...)
}
