package core

import "context"

// Dictionary is the translation tree for one language. Values are either
// strings, nested dictionaries or objects carrying a "traducao" field.
type Dictionary map[string]any

// DictionarySource fetches the raw JSON document of a language dictionary.
type DictionarySource interface {
	// Fetch returns the dictionary document for lang.
	Fetch(ctx context.Context, lang string) ([]byte, error)
}

// Storage is a string key/value store that survives between sessions.
type Storage interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. It fails when the store is full.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}

// Publisher dispatches named events to whoever listens.
type Publisher interface {
	Publish(event string, payload any)
}

// TranslationService defines the contract for loading and retrieving translations.
type TranslationService interface {
	// Load returns the dictionary for lang, falling back to the default language.
	Load(ctx context.Context, lang string) (Dictionary, error)
	// Resident returns the dictionary for lang only if it is already in memory.
	Resident(lang string) (Dictionary, bool)
}
