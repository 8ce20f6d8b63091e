// Package extract turns uploaded files into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no extractable text")
)

// Supported lists the file types Text accepts, by extension without the dot.
var Supported = []string{"txt", "md", "pdf", "csv"}

// FileType returns the lowercase extension of name without the dot.
func FileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

func IsSupported(name string) bool {
	ft := FileType(name)
	for _, s := range Supported {
		if s == ft {
			return true
		}
	}
	return false
}

// Text reads r according to the type implied by name.
func Text(name string, r io.Reader) (string, error) {
	var (
		text string
		err  error
	)
	switch FileType(name) {
	case "txt", "md":
		text, err = plain(r)
	case "pdf":
		text, err = pdfText(r)
	case "csv":
		text, err = csvText(r)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(name))
	}
	if err != nil {
		return "", fmt.Errorf("extract %s failed: %w", name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func plain(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("file is not valid utf-8")
	}
	return string(b), nil
}
