// Package extract finds translation keys in the site sources and keeps the
// dictionaries in step with them.
package extract

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"portfolio_bk/internal/core"
)

var callPattern = regexp.MustCompile("\\b(?:t|translate|translateSync)\\(\\s*(['\"`])([\\w.-]+)['\"`]")

var skipDirs = map[string]bool{"node_modules": true, "dist": true, ".git": true}

// Result maps each found key to the source text next to it, if any.
type Result map[string]string

// Add records key. A non-empty text replaces an empty one.
func (r Result) Add(key, text string) {
	text = strings.Join(strings.Fields(text), " ")
	if current, ok := r[key]; ok && current != "" {
		return
	}
	r[key] = text
}

// Keys returns the found keys sorted.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScanHTML collects the keys declared through data-i18n attributes.
func ScanHTML(r io.Reader, into Result) error {
	doc, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		values := map[string]string{}
		for _, a := range n.Attr {
			values[a.Key] = a.Val
		}
		for _, a := range n.Attr {
			if !strings.HasPrefix(a.Key, "data-i18n") || a.Key == "data-i18n-params" || a.Val == "" {
				continue
			}
			if a.Key == "data-i18n" {
				into.Add(a.Val, text(n))
				continue
			}
			into.Add(a.Val, values[strings.TrimPrefix(a.Key, "data-i18n-")])
		}
	}
	return nil
}

// ScanJS collects the keys passed as literals to t, translate and
// translateSync.
func ScanJS(src string, into Result) {
	for _, m := range callPattern.FindAllStringSubmatch(src, -1) {
		into.Add(m[2], "")
	}
}

// ScanDir walks root and scans every .html and .js file.
func ScanDir(fsys fs.FS, root string) (Result, error) {
	found := Result{}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".html":
			f, err := fsys.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := ScanHTML(f, found); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		case ".js":
			src, err := fs.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			ScanJS(string(src), found)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return found, nil
}

// Merge adds the keys of found that dict lacks, using the source text as the
// value and the key when there is none. It returns the added keys.
func Merge(dict core.Dictionary, found Result) []string {
	var added []string
	existing := dict.Flatten()
	for _, key := range found.Keys() {
		if _, ok := existing[key]; ok {
			continue
		}
		value := found[key]
		if value == "" {
			value = key
		}
		dict.Set(key, value)
		added = append(added, key)
	}
	return added
}

// Missing lists, per language, the keys of base that are absent or empty.
// Languages without gaps are left out.
func Missing(base core.Dictionary, others map[string]core.Dictionary) map[string][]string {
	report := map[string][]string{}
	keys := base.Keys()
	for lang, dict := range others {
		for _, key := range keys {
			if !dict.Has(key) {
				report[lang] = append(report[lang], key)
			}
		}
	}
	for lang := range report {
		slices.Sort(report[lang])
	}
	return report
}

func text(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}
