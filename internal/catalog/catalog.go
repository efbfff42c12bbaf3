package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"proxyload/internal/rnd"
)

// ErrEmptyCatalog is matched by every *EmptyCatalogError via errors.Is.
var ErrEmptyCatalog = errors.New("target catalog is empty")

// EmptyCatalogError reports a target list that is missing or has no entries.
type EmptyCatalogError struct {
	Source string
	Err    error
}

func (e *EmptyCatalogError) Error() string {
	msg := ErrEmptyCatalog.Error()
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmptyCatalogError) Unwrap() error { return e.Err }

func (e *EmptyCatalogError) Is(target error) bool { return target == ErrEmptyCatalog }

// Catalog is a fixed, ordered list of targets. It is read-only after Load and
// safe for concurrent Sample calls as long as the random source is.
type Catalog struct {
	targets []string
	rng     rnd.Source
}

// Load builds a catalog from an in-memory list.
func Load(list []string, rng rnd.Source) (*Catalog, error) {
	if len(list) == 0 {
		return nil, &EmptyCatalogError{Source: "list"}
	}
	if rng == nil {
		rng = rnd.New(0)
	}
	targets := make([]string, len(list))
	copy(targets, list)
	return &Catalog{targets: targets, rng: rng}, nil
}

// LoadFile reads a target list written by the targets command. Files ending in
// .json hold a JSON array of strings; anything else is read one URL per line,
// skipping blank lines and # comments.
func LoadFile(path string, rng rnd.Source) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &EmptyCatalogError{Source: path, Err: err}
	}

	var list []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(content, &list); err != nil {
			return nil, fmt.Errorf("decode targets %s: %w", path, err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(content))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			list = append(list, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read targets %s: %w", path, err)
		}
	}

	if len(list) == 0 {
		return nil, &EmptyCatalogError{Source: path}
	}
	return Load(list, rng)
}

// Len returns the number of targets.
func (c *Catalog) Len() int { return len(c.targets) }

// Sample picks one target uniformly at random, with replacement.
func (c *Catalog) Sample() string {
	return c.targets[c.rng.Intn(len(c.targets))]
}

// Normalize forces a plain http scheme so the proxy sees a forwardable request
// instead of a CONNECT tunnel. An empty input yields "", meaning "no target".
func Normalize(target string) string {
	t := strings.TrimSpace(target)
	if t == "" {
		return ""
	}
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return "http://" + t[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return t
	default:
		return "http://" + t
	}
}
