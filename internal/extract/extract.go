// Package extract turns raw document bytes into plain text. Converters for
// binary formats (docx, pdf) are implemented outside this module and plug in
// through Register; only text-native formats ship here.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// Extractor converts one document's raw bytes to plain text. It may fail on
// malformed input; the ingestion pipeline counts and skips such documents.
type Extractor func(data []byte) (string, error)

var (
	mu       sync.RWMutex
	registry = map[string]Extractor{}
)

func Register(ext string, fn Extractor) {
	key := normalizeExt(ext)
	if key == "" || fn == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[key] = fn
}

// Text extracts plain text from the named document, picking the extractor by
// file extension.
func Text(name string, data []byte) (string, error) {
	key := normalizeExt(filepath.Ext(name))
	mu.RLock()
	fn := registry[key]
	mu.RUnlock()
	if fn == nil {
		return "", fmt.Errorf("no extractor for %q", filepath.Ext(name))
	}
	return fn(data)
}

// Supported reports whether an extractor is registered for the file name.
func Supported(name string) bool {
	key := normalizeExt(filepath.Ext(name))
	mu.RLock()
	defer mu.RUnlock()
	return registry[key] != nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid utf-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}

func init() {
	Register("txt", plainText)
	Register("text", plainText)
}
