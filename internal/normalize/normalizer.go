// Package normalize maps loosely-typed provider page payloads into
// canonical PageRecords at the provider boundary.
package normalize

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// documentExtensions maps known non-HTML document suffixes to a type label.
var documentExtensions = map[string]string{
	".pdf":  "pdf",
	".doc":  "word",
	".docx": "word",
	".xls":  "spreadsheet",
	".xlsx": "spreadsheet",
	".ppt":  "presentation",
	".pptx": "presentation",
}

// Normalizer converts raw provider payloads into canonical PageRecords.
type Normalizer struct {
	converter *md.Converter
}

// New builds a Normalizer with a shared markdown converter.
func New() *Normalizer {
	return &Normalizer{
		converter: md.NewConverter("", true, nil),
	}
}

// Normalize validates and maps one provider payload. Unknown fields are
// defaulted rather than passed through; only a missing URL is an error.
func (n *Normalizer) Normalize(payload audit.PagePayload) (audit.PageRecord, error) {
	url := strings.TrimSpace(payload.URL)
	if url == "" {
		url = metaString(payload.Metadata, "sourceURL", "url")
	}
	if url == "" {
		return audit.PageRecord{}, fmt.Errorf("payload has no url")
	}

	rec := audit.PageRecord{
		URL:        url,
		HTML:       payload.HTML,
		Markdown:   payload.Markdown,
		StatusCode: payload.StatusCode,
	}
	if rec.StatusCode == 0 {
		rec.StatusCode = metaInt(payload.Metadata, "statusCode", "status_code")
	}
	if rec.StatusCode == 0 {
		rec.StatusCode = 200
	}

	contentType := strings.ToLower(payload.ContentType)
	if contentType == "" {
		contentType = strings.ToLower(metaString(payload.Metadata, "contentType", "content_type"))
	}
	rec.IsDocument, rec.DocumentType = detectDocument(url, contentType)

	var doc *goquery.Document
	if !rec.IsDocument && rec.HTML != "" {
		parsed, err := goquery.NewDocumentFromReader(strings.NewReader(rec.HTML))
		if err == nil {
			doc = parsed
		}
	}

	rec.Title = strings.TrimSpace(payload.Title)
	if rec.Title == "" {
		rec.Title = metaString(payload.Metadata, "title")
	}
	if rec.Title == "" && doc != nil {
		rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if rec.Markdown == "" && !rec.IsDocument && rec.HTML != "" {
		converted, err := n.converter.ConvertString(rec.HTML)
		if err == nil {
			rec.Markdown = converted
		} else if doc != nil {
			// Conversion choked on the markup; fall back to visible text.
			rec.Markdown = strings.TrimSpace(doc.Find("body").Text())
		}
	}

	if doc != nil {
		rec.StructuredData = extractJSONLD(doc)
	}
	return rec, nil
}

// Skippable reports whether a record carries nothing worth scoring: an
// error status with no HTML to analyze.
func Skippable(rec audit.PageRecord) bool {
	return rec.StatusCode >= 400 && strings.TrimSpace(rec.HTML) == ""
}

func detectDocument(url, contentType string) (bool, string) {
	switch {
	case strings.Contains(contentType, "pdf"):
		return true, "pdf"
	case strings.Contains(contentType, "msword"),
		strings.Contains(contentType, "officedocument"):
		return true, "word"
	}
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if kind, ok := documentExtensions[ext]; ok {
		return true, kind
	}
	return false, ""
}

func extractJSONLD(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		// Keep only blocks that actually parse; malformed JSON-LD is a
		// signal the checklist should not see as structured data.
		if !json.Valid([]byte(raw)) {
			return
		}
		blocks = append(blocks, raw)
	})
	return blocks
}

func metaString(meta map[string]any, keys ...string) string {
	if meta == nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := meta[key]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func metaInt(meta map[string]any, keys ...string) int {
	if meta == nil {
		return 0
	}
	for _, key := range keys {
		v, ok := meta[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return 0
}
