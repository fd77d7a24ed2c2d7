package extract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"portfolio_bk/internal/core"
)

// Glossary maps a target language to source phrases and their translation.
// Phrases are matched case-insensitively.
type Glossary map[string]map[string]string

// LoadGlossary reads a TOML glossary with one table per language.
func LoadGlossary(path string) (Glossary, error) {
	var raw map[string]map[string]string
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("load glossary %s: %w", path, err)
	}
	g := Glossary{}
	for lang, terms := range raw {
		g[lang] = make(map[string]string, len(terms))
		for phrase, translation := range terms {
			g[lang][strings.ToLower(phrase)] = translation
		}
	}
	return g, nil
}

// Translate renders text in lang: a whole-phrase entry first, then word by
// word. Unknown words are kept. ok is false when nothing was translated.
func (g Glossary) Translate(lang, text string) (string, bool) {
	terms := g[lang]
	if len(terms) == 0 || strings.TrimSpace(text) == "" {
		return "", false
	}
	if out, ok := terms[strings.ToLower(strings.TrimSpace(text))]; ok {
		return out, true
	}

	words := strings.Fields(text)
	translated := false
	for i, word := range words {
		lead, stem, trail := splitPunct(word)
		out, ok := terms[strings.ToLower(stem)]
		if !ok {
			continue
		}
		if startsUpper(stem) {
			out = capitalize(out)
		}
		words[i] = lead + out + trail
		translated = true
	}
	if !translated {
		return "", false
	}
	return strings.Join(words, " "), true
}

// Fill sets the keys of base that target lacks, translating the base text
// through the glossary. It returns the filled keys.
func Fill(base, target core.Dictionary, lang string, g Glossary) []string {
	var filled []string
	flat := base.Flatten()
	for _, key := range base.Keys() {
		if target.Has(key) {
			continue
		}
		if out, ok := g.Translate(lang, flat[key]); ok {
			target.Set(key, out)
			filled = append(filled, key)
		}
	}
	return filled
}

func splitPunct(word string) (lead, stem, trail string) {
	start := strings.IndexFunc(word, isWordRune)
	if start < 0 {
		return word, "", ""
	}
	end := strings.LastIndexFunc(word, isWordRune)
	_, size := utf8.DecodeRuneInString(word[end:])
	end += size
	return word[:start], word[start:end], word[end:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
