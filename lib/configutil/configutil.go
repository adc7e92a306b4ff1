package configutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

var interpolationRegex = regexp.MustCompile(`\$\{([\w.]+)\}`)

func lookupPath(doc map[string]any, dotted string) (any, bool) {
	var current any = doc
	for _, key := range strings.Split(dotted, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// resolveValue expands every ${a.b.c} reference in a string against the
// full document, repeatedly, so references may themselves resolve to
// strings containing further references.
func resolveValue(value any, doc map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		current := v
		for strings.Contains(current, "${") {
			matches := interpolationRegex.FindAllStringSubmatch(current, -1)
			if len(matches) == 0 {
				break
			}
			for _, m := range matches {
				target, ok := lookupPath(doc, m[1])
				if !ok {
					return nil, fmt.Errorf("unknown interpolation variable %q", m[1])
				}
				current = strings.ReplaceAll(current, m[0], fmt.Sprint(target))
			}
		}
		return current, nil
	case map[string]any:
		out := map[string]any{}
		for key, entry := range v {
			resolved, err := resolveValue(entry, doc)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, entry := range v {
			resolved, err := resolveValue(entry, doc)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func readDocument(path string) (map[string]any, bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, false, err
	}
	if len(contents) == 0 {
		return nil, false, nil
	}
	var doc map[string]any
	err = json5.Unmarshal(contents, &doc)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
// after merging, ${a.b.c} string interpolations are resolved against the
// merged document.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	dirname := filepath.Dir(name)
	basename := filepath.Base(name)
	prefixname, ext := splitExt(basename)

	doc, found, err := readDocument(name)
	if err != nil {
		return out, err
	}
	if found {
		allNotFound = false
	} else {
		doc = map[string]any{}
	}

	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
	localDoc, found, err := readDocument(localFilepath)
	if err != nil {
		return out, err
	}
	if found {
		err = mergo.Merge(&doc, localDoc, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}

	resolved, err := resolveValue(doc, doc)
	if err != nil {
		return out, err
	}

	// round-trip through encoding/json to land the resolved document in
	// the caller's typed struct
	raw, err := json.Marshal(resolved)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	if err != nil {
		return out, err
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return defaultOut, err
		}

		return config, nil
	}

	return defaultOut, os.ErrNotExist
}
