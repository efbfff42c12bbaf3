// Package targets prepares the target list consumed by the load run: it
// downloads a public top-sites CSV and writes the first N domains as a JSON
// array of URLs.
package targets

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	DefaultSourceURL = "https://raw.githubusercontent.com/opendns/public-domain-lists/master/opendns-top-1m.csv"
	DefaultCount     = 500
	DefaultOutput    = "targets.json"
)

var ErrNoTargets = errors.New("no targets parsed")

// Fetch downloads the CSV at url.
func Fetch(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d fetching list", resp.StatusCode)
	}
	return resp.Body, nil
}

// Build reads rank,domain rows (or bare domains) and returns up to limit
// https URLs. Blank rows are skipped.
func Build(r io.Reader, limit int) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && len(out) < limit {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		domain := strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			domain = strings.TrimSpace(parts[1])
		}
		if domain == "" {
			continue
		}
		out = append(out, "https://"+domain+"/")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// Write stores the list as indented JSON.
func Write(path string, list []string) error {
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Generate runs the whole fetch, build, write pipeline and returns the
// number of targets written.
func Generate(ctx context.Context, client *http.Client, sourceURL string, count int, out string) (int, error) {
	body, err := Fetch(ctx, client, sourceURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	list, err := Build(body, count)
	if err != nil {
		return 0, err
	}
	if err := Write(out, list); err != nil {
		return 0, err
	}
	return len(list), nil
}
