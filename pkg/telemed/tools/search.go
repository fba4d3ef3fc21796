package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Searcher performs web searches and page scrapes, writing the results into
// plain-text files the dispatcher feeds to the LLM.
type Searcher struct {
	client *http.Client

	// searchBase overrides the search endpoint (tests).
	searchBase string
}

// NewSearcher creates a Searcher.
func NewSearcher() *Searcher {
	return &Searcher{
		client:     &http.Client{Timeout: 15 * time.Second},
		searchBase: "https://html.duckduckgo.com/html/",
	}
}

var (
	resultLinkRe = regexp.MustCompile(`<a[^>]+class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	snippetRe    = regexp.MustCompile(`<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	dropBlockRe  = regexp.MustCompile(`(?s)<(script|style|nav|footer|header)[^>]*>.*?</(script|style|nav|footer|header)>`)
)

// Search queries the web and writes numbered results (title, URL, snippet) to
// outFile.
func (s *Searcher) Search(ctx context.Context, query, outFile string, maxResults int) error {
	if maxResults <= 0 {
		maxResults = 10
	}
	endpoint := s.searchBase + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("search: creating request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("search: reading response: %w", err)
	}

	links := resultLinkRe.FindAllStringSubmatch(string(body), maxResults)
	snippets := snippetRe.FindAllStringSubmatch(string(body), maxResults)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Research Topic: %s\n", query)
	fmt.Fprintf(&sb, "Found %d results.\n", len(links))
	sb.WriteString(strings.Repeat("=", 40) + "\n\n")
	if len(links) == 0 {
		sb.WriteString("No results found.\n")
	}
	for i, m := range links {
		title := stripTags(m[2])
		snippet := ""
		if i < len(snippets) {
			snippet = stripTags(snippets[i][1])
		}
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n   Summary: %s\n", i+1, title, m[1], snippet)
		sb.WriteString(strings.Repeat("-", 20) + "\n")
	}
	return writeResultFile(outFile, sb.String())
}

// Scrape fetches pageURL, strips markup and chrome blocks, and writes the
// remaining text to outFile.
func (s *Searcher) Scrape(ctx context.Context, pageURL, outFile string) error {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("scrape: no scheme supplied in %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("scrape: creating request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("scrape: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrape: status %d for %s", resp.StatusCode, pageURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("scrape: reading response: %w", err)
	}

	text := dropBlockRe.ReplaceAllString(string(body), "")
	text = stripTags(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	content := fmt.Sprintf("Source: %s\n\n%s", pageURL, strings.Join(lines, "\n"))
	return writeResultFile(outFile, content)
}

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

func writeResultFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
