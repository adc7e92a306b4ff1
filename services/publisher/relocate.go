package publisher

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const placeholderPrefix = "__IMG_TAG_"

// MissingSourceError reports every image reference whose local source
// file does not exist. The relocate pass collects all of them before
// failing, it never short-circuits on the first miss.
type MissingSourceError struct {
	Paths []string
}

func (e MissingSourceError) Error() string {
	return fmt.Sprintf(
		"%d image source(s) missing: %s",
		len(e.Paths), strings.Join(e.Paths, ", "),
	)
}

var (
	markdownImageRegex = regexp.MustCompile(`(?is)!\[(.*?)\]\((.*?\.(png|jpg|jpeg|gif|webp))\)`)
	htmlImageRegex     = regexp.MustCompile(`(?is)<img.*?src=["'](.*?\.(png|jpg|jpeg|gif|webp))["'].*?>`)
)

// Relocator copies a document's referenced images into a per-document
// staging directory under synthetic names and swaps each in-text
// reference for an opaque placeholder token.
type Relocator struct {
	StagingRoot string
	SpaceChar   string

	// Now stamps the uniqueness token in synthetic filenames;
	// overridable in tests, defaults to time.Now.
	Now func() time.Time
}

func (r Relocator) StagingDir(doc Document) string {
	return filepath.Join(r.StagingRoot, doc.Title)
}

// Cleanup removes the document's staging directory. It runs on both
// success and failure paths.
func (r Relocator) Cleanup(doc Document) {
	dir := r.StagingDir(doc)
	err := os.RemoveAll(dir)
	if err != nil {
		slog.Warn("failed to remove staging directory", "dir", dir, "err", err)
		return
	}
	slog.Debug("removed staging directory", "dir", dir)
}

type relocation struct {
	doc        Document
	stagingDir string
	runToken   int64

	counter int
	assets  []ImageAsset
	missing []string
	copyErr error
}

func (r Relocator) Relocate(doc Document) (string, []ImageAsset, error) {
	stagingDir := r.StagingDir(doc)
	err := os.MkdirAll(stagingDir, 0755)
	if err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	state := &relocation{
		doc:        doc,
		stagingDir: stagingDir,
		runToken:   now().Unix(),
		counter:    1,
	}

	text := markdownImageRegex.ReplaceAllStringFunc(doc.Raw, func(match string) string {
		sub := markdownImageRegex.FindStringSubmatch(match)
		alt, ref, ext := sub[1], strings.TrimSpace(sub[2]), sub[3]

		asset, ok := r.stage(state, ref, ext)
		if !ok {
			return match
		}
		return fmt.Sprintf("![%s](%s)", alt, asset.Placeholder)
	})

	text = htmlImageRegex.ReplaceAllStringFunc(text, func(match string) string {
		sub := htmlImageRegex.FindStringSubmatch(match)
		ref, ext := strings.TrimSpace(sub[1]), sub[2]

		asset, ok := r.stage(state, ref, ext)
		if !ok {
			return match
		}
		return fmt.Sprintf(`<img src="%s" alt="image" title="image">`, asset.Placeholder)
	})

	if state.copyErr != nil {
		return "", nil, state.copyErr
	}
	if len(state.missing) > 0 {
		return "", nil, MissingSourceError{Paths: state.missing}
	}

	slog.Info("relocated images", "title", doc.Title, "count", len(state.assets))
	return text, state.assets, nil
}

func (r Relocator) stage(state *relocation, ref, ext string) (ImageAsset, bool) {
	source := ref
	if !filepath.IsAbs(source) {
		source = filepath.Join(filepath.Dir(state.doc.Path), source)
	}
	source, err := filepath.Abs(source)
	if err != nil {
		state.missing = append(state.missing, ref)
		return ImageAsset{}, false
	}

	filename := ReplaceSpaces(fmt.Sprintf(
		"%s_%d_%d.%s",
		state.doc.Title, state.runToken, state.counter, strings.ToLower(ext),
	), r.SpaceChar)
	state.counter++

	if _, err := os.Stat(source); err != nil {
		slog.Error("image source missing", "path", source)
		state.missing = append(state.missing, source)
		return ImageAsset{}, false
	}

	staged := filepath.Join(state.stagingDir, filename)
	err = copyFile(source, staged)
	if err != nil {
		state.copyErr = fmt.Errorf("copy %s: %w", source, err)
		return ImageAsset{}, false
	}

	asset := ImageAsset{
		OriginalPath: source,
		StagedPath:   staged,
		Filename:     filename,
		Placeholder:  placeholderPrefix + filename + "__",
	}
	state.assets = append(state.assets, asset)
	slog.Debug("staged image", "source", source, "staged", staged)
	return asset, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
