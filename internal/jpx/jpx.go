/*
Package jpx scrapes the scheduled earnings announcement spreadsheets that JPX
publishes, as a fallback source when the J-Quants API is not available.
*/
package jpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"

	"github.com/jpx-tools/jpxcal/internal/types"
)

const (
	defaultBaseURL   = "https://www.jpx.co.jp"
	announcementPage = "/listing/event-schedules/financial-announcement/index.html"
)

// Scraper downloads announcement schedules from the JPX website.
type Scraper struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewScraper creates a scraper against the production JPX website.
func NewScraper() *Scraper {
	return &Scraper{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Announcements downloads and parses every announcement spreadsheet linked
// from the JPX schedule page. Records are de-duplicated on Code+Date across
// workbooks; workbooks that fail to parse are skipped with a warning.
func (s *Scraper) Announcements(ctx context.Context) ([]types.Announcement, error) {
	urls, err := s.spreadsheetURLs(ctx)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("jpx: no spreadsheet links found on %s%s", s.BaseURL, announcementPage)
	}

	var all []types.Announcement
	seen := make(map[string]bool)
	for _, u := range urls {
		log.Printf("Downloading JPX spreadsheet %s", u)
		anns, err := s.fetchSpreadsheet(ctx, u)
		if err != nil {
			log.Printf("Warning: failed to process %s: %v", u, err)
			continue
		}
		for _, ann := range anns {
			key := ann.Code + "|" + ann.Date
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, ann)
		}
	}

	log.Printf("Parsed %d announcements from %d JPX spreadsheets.", len(all), len(urls))
	return all, nil
}

// spreadsheetURLs scrapes the schedule page for .xlsx links, absolutizing
// relative ones. Order is preserved, duplicates dropped.
func (s *Scraper) spreadsheetURLs(ctx context.Context) ([]string, error) {
	body, err := s.fetch(ctx, s.BaseURL+announcementPage)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch announcement page: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse announcement page: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if !strings.HasSuffix(href, ".xlsx") {
					continue
				}
				u := href
				if !strings.HasPrefix(href, "http") {
					u = s.BaseURL + "/" + strings.TrimPrefix(href, "/")
				}
				if !seen[u] {
					seen[u] = true
					urls = append(urls, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return urls, nil
}

func (s *Scraper) fetchSpreadsheet(ctx context.Context, url string) ([]types.Announcement, error) {
	data, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseWorkbook(bytes.NewReader(data))
}

func (s *Scraper) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-OK status code %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

// ParseWorkbook reads announcement rows out of a JPX schedule workbook.
// The sheet carries a bilingual header block followed by rows laid out as:
// date, code, company name (ja), company name (en), fiscal year end,
// sector (ja), sector (en), quarter (ja), quarter (en), market segment.
// Rows whose first column is not a date are skipped, which covers the header
// block and separator rows alike.
func ParseWorkbook(r io.Reader) ([]types.Announcement, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	var anns []types.Announcement
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		date, ok := parseSheetDate(row[0])
		if !ok {
			continue
		}
		code := normalizeCode(row[1])
		if code == "" {
			continue
		}

		ann := types.Announcement{
			Code:        code,
			CompanyName: strings.TrimSpace(row[2]),
			Date:        date,
		}
		if len(row) > 4 {
			if end, ok := parseSheetDate(row[4]); ok {
				ann.FiscalYear = end[:4]
			}
		}
		if len(row) > 7 {
			ann.FiscalQuarter = strings.TrimSpace(row[7])
		}
		anns = append(anns, ann)
	}

	return anns, nil
}

// sheetDateLayouts covers the formats date cells come back in, depending on
// whether the cell is typed as a date or as plain text.
var sheetDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"01-02-06",
	"1/2/06",
}

func parseSheetDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// normalizeCode strips spreadsheet numeric artifacts and zero-pads ticker
// codes to four digits, matching the J-Quants representation.
func normalizeCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
