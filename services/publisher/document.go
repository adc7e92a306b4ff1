// Package publisher turns locally authored markdown documents into
// published Typecho posts: it stages referenced images, normalizes the
// markup, drives the multi-step publish pipeline against the admin
// console, and rolls back partial remote state when a late step fails.
package publisher

import (
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/publisher")

type Document struct {
	Path  string
	Title string
	Raw   string
}

// ReplaceSpaces substitutes spaces with the configured replacement
// character. Remote servers may reject literal spaces in URLs.
func ReplaceSpaces(s, replacement string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, " ", replacement))
}

// LoadDocument reads a markdown file; the title is the filename without
// its extension, with spaces substituted.
func LoadDocument(path, spaceChar string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title = ReplaceSpaces(title, spaceChar)

	return Document{
		Path:  path,
		Title: title,
		Raw:   string(raw),
	}, nil
}

// ListDocuments returns the markdown files directly inside a folder,
// sorted by name.
func ListDocuments(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(folder, entry.Name()))
	}
	return paths, nil
}

// ImageAsset is one relocated image, keyed by its staged path.
type ImageAsset struct {
	OriginalPath string
	StagedPath   string
	Filename     string
	Placeholder  string
}
