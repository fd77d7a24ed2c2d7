package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"portfolio_bk/internal/core"
)

// FileSource reads <lang>.json dictionaries from a directory.
type FileSource struct {
	fsys fs.FS
}

// NewFileSource creates a source over the locales directory.
func NewFileSource(localesDir string) *FileSource {
	return &FileSource{fsys: os.DirFS(localesDir)}
}

// NewFSSource creates a source over an arbitrary filesystem.
func NewFSSource(fsys fs.FS) *FileSource {
	return &FileSource{fsys: fsys}
}

// Fetch returns the raw document for lang.
func (s *FileSource) Fetch(ctx context.Context, lang string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := fileName(lang)
	if err != nil {
		return nil, err
	}
	content, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return content, nil
}

// Languages lists the languages that have a dictionary file.
func (s *FileSource) Languages() ([]string, error) {
	files, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales directory: %w", err)
	}

	var langs []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		langs = append(langs, strings.TrimSuffix(file.Name(), ".json"))
	}
	sort.Strings(langs)
	return langs, nil
}

// LoadAll parses every dictionary file, keyed by language.
func (s *FileSource) LoadAll(ctx context.Context) (map[string]core.Dictionary, error) {
	langs, err := s.Languages()
	if err != nil {
		return nil, err
	}

	out := make(map[string]core.Dictionary, len(langs))
	for _, lang := range langs {
		content, err := s.Fetch(ctx, lang)
		if err != nil {
			return nil, err
		}
		dict, err := core.ParseDictionary(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json %s.json: %w", lang, err)
		}
		out[lang] = dict
	}
	return out, nil
}

func fileName(lang string) (string, error) {
	name := lang + ".json"
	if lang == "" || strings.ContainsAny(lang, `/\`) || !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid language %q", lang)
	}
	return name, nil
}
