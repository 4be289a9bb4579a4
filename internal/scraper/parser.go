package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"followers-monitor/pkg/types"
)

// ParseFollowers extracts follower records from the rendered page HTML.
// Cells without both a display name and a handle are skipped.
func ParseFollowers(html string, sel Selectors) ([]types.FollowerRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}
	return ParseFollowersDocument(doc, sel), nil
}

func ParseFollowersDocument(doc *goquery.Document, sel Selectors) []types.FollowerRecord {
	var records []types.FollowerRecord

	doc.Find(sel.Cell).Each(func(i int, cell *goquery.Selection) {
		name := firstText(cell.Find(sel.Name), func(s string) bool {
			return !strings.HasPrefix(s, "@")
		})
		handles := cell.Find(sel.Username)
		handle := firstText(handles, func(s string) bool {
			return strings.HasPrefix(s, "@")
		})
		if handle == "" {
			// The handle selector also matches the name span.
			handle = firstText(handles, func(s string) bool {
				return s != name
			})
		}

		if record, ok := CleanRecord(name, handle); ok {
			records = append(records, record)
		}
	})

	return records
}

// firstText returns the first non-empty trimmed text accepted by match.
func firstText(s *goquery.Selection, match func(string) bool) string {
	var found string
	s.EachWithBreak(func(i int, el *goquery.Selection) bool {
		text := strings.TrimSpace(el.Text())
		if text != "" && match(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
