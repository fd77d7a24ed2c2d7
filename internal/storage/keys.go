// Package storage provides the persistent key/value stores used as the
// site's local storage, and the builder for the keys written into them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio_bk/internal/core"
)

// Fixed keys shared by the state holder and the language selector.
const (
	LanguageKey        = "idioma"
	LanguageVersionKey = "idioma_versao"
	LanguageDateKey    = "idioma_data"
	StateKey           = "app_state"
)

const (
	dictionarySegment = "traducao_"
	versionSegment    = "traducao_versao_"
	dateSegment       = "traducao_data_"
)

var (
	// ErrQuotaExceeded is returned by Set when the store has no room left.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrNotFound is returned by Require when the key is missing.
	ErrNotFound = errors.New("storage key not found")
)

// Require returns the value under key, or an error wrapping ErrNotFound.
func Require(ctx context.Context, s core.Storage, key string) (string, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// Keys builds the per-language cache keys so readers and writers agree on them.
type Keys struct {
	Prefix string
}

// Dictionary is the key holding the serialized dictionary of lang.
func (k Keys) Dictionary(lang string) string {
	return k.Prefix + dictionarySegment + lang
}

// Version is the key holding the cache version tag of lang.
func (k Keys) Version(lang string) string {
	return k.Prefix + versionSegment + lang
}

// Timestamp is the key holding the write time of lang.
func (k Keys) Timestamp(lang string) string {
	return k.Prefix + dateSegment + lang
}

// Entry returns every key that belongs to the cache entry of lang.
func (k Keys) Entry(lang string) []string {
	return []string{k.Dictionary(lang), k.Version(lang), k.Timestamp(lang)}
}

// CachedLanguage reports the language of a dictionary key. Version and
// timestamp keys are not dictionary keys.
func (k Keys) CachedLanguage(key string) (string, bool) {
	if strings.HasPrefix(key, k.Prefix+versionSegment) || strings.HasPrefix(key, k.Prefix+dateSegment) {
		return "", false
	}
	lang, ok := strings.CutPrefix(key, k.Prefix+dictionarySegment)
	if !ok || lang == "" {
		return "", false
	}
	return lang, true
}

// FormatTime encodes t as Unix milliseconds.
func FormatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseTime decodes a value written by FormatTime.
func ParseTime(value string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
