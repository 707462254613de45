package checklist

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seolytics/aeo-audit/internal/audit"
)

var scriptTagPattern = regexp.MustCompile(`(?i)<script\b[^>]*>`)

type heading struct {
	level int
	text  string
}

// signals is everything the rubric needs, extracted from a PageRecord in
// a single parse so individual rules stay cheap and declarative.
type signals struct {
	rec audit.PageRecord

	https		bool
	pathClean	bool
	rootPath	bool

	title		string
	metaDesc	string
	canonical	bool
	viewport	bool
	charset		bool
	langAttr	bool
	doctype		bool
	metaRefresh	bool
	favicon		bool
	robotsMeta	string
	aiAgentBlocked	bool
	modifiedMeta	bool

	headings	[]heading
	h1Count		int
	subheadings	int
	questionHeads	int
	answeredHeads	int
	headingSkips	bool

	wordCount		int
	markdownWords		int
	textRatio		float64
	maxParagraphWords	int
	paragraphCount		int
	flesch			float64

	listCount		int
	tableCount		int
	tablesWithHeaders	int

	imageCount		int
	imagesWithAlt		int
	altTotalLen		int
	imagesWithDims		int
	imagesLazy		int
	figureCount		int
	figcaptionCount		int
	videoCount		int
	videosWithTracks	int

	linkCount		int
	genericLinkTexts	int

	semanticKinds	int
	ariaLandmarks	bool
	inlineStyles	int

	schemaTypes	map[string]bool
	ogProps		map[string]bool
	twitterMeta	bool
	articleTag	bool

	contentBeforeScript	bool
	hasScript		bool
}

func (s *signals) og(prop string) bool { return s.ogProps[prop] }

func (s *signals) twitterCard() bool { return s.twitterMeta }

// articleLike reports whether the page looks like long-form editorial
// content rather than a landing or index page.
func (s *signals) articleLike() bool { return s.articleTag }

// substantive reports whether the page carries enough visible text for
// absence-based media rules to mean anything. A near-empty page does not
// bank credit for images or videos it never shipped.
func (s *signals) substantive() bool { return s.wordCount >= 100 }

func containsDirective(robots, directive string) bool {
	for _, part := range strings.Split(robots, ",") {
		if strings.TrimSpace(part) == directive {
			return true
		}
	}
	return false
}

var genericAnchors = map[string]bool{
	"click here": true,
	"here":       true,
	"this link":  true,
	"link":       true,
	"more":       true,
}

// aiAgentNames are crawler user agents sometimes blocked via named robots
// meta tags.
var aiAgentNames = []string{"gptbot", "anthropic-ai", "claudebot", "perplexitybot", "google-extended"}

func extractSignals(rec audit.PageRecord) *signals {
	s := &signals{
		rec:         rec,
		schemaTypes: map[string]bool{},
		ogProps:     map[string]bool{},
	}

	if u, err := url.Parse(rec.URL); err == nil {
		s.https = u.Scheme == "https"
		path := u.Path
		s.rootPath = path == "" || path == "/"
		s.pathClean = !strings.Contains(path, "_") && strings.Count(u.RawQuery, "&") < 2
	}

	trimmed := strings.TrimSpace(rec.HTML)
	s.doctype = strings.HasPrefix(strings.ToLower(trimmed), "<!doctype")
	s.markdownWords = len(strings.Fields(rec.Markdown))

	// JSON-LD blocks are data, not executable scripts; skip them when
	// locating the first script the page would run.
	preScript := rec.HTML
	for _, loc := range scriptTagPattern.FindAllStringIndex(rec.HTML, -1) {
		tag := strings.ToLower(rec.HTML[loc[0]:loc[1]])
		if strings.Contains(tag, "application/ld+json") {
			continue
		}
		s.hasScript = true
		preScript = rec.HTML[:loc[0]]
		break
	}
	s.contentBeforeScript = !s.hasScript || hasMeaningfulFragment(preScript)

	for _, block := range rec.StructuredData {
		collectSchemaTypes(block, s.schemaTypes)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.HTML))
	if err != nil {
		return s
	}

	s.title = strings.TrimSpace(doc.Find("title").First().Text())
	if s.title == "" {
		s.title = rec.Title
	}
	s.metaDesc, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	s.metaDesc = strings.TrimSpace(s.metaDesc)
	s.canonical = doc.Find(`link[rel="canonical"]`).Length() > 0
	s.viewport = doc.Find(`meta[name="viewport"]`).Length() > 0
	s.charset = doc.Find("meta[charset]").Length() > 0 ||
		doc.Find(`meta[http-equiv="Content-Type"]`).Length() > 0
	_, s.langAttr = doc.Find("html").First().Attr("lang")
	s.metaRefresh = doc.Find(`meta[http-equiv="refresh"]`).Length() > 0
	s.favicon = doc.Find(`link[rel="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]`).Length() > 0
	s.robotsMeta, _ = doc.Find(`meta[name="robots"]`).First().Attr("content")
	s.robotsMeta = strings.ToLower(s.robotsMeta)
	for _, agent := range aiAgentNames {
		content, _ := doc.Find(`meta[name="` + agent + `"]`).First().Attr("content")
		if strings.Contains(strings.ToLower(content), "noindex") ||
			strings.Contains(strings.ToLower(content), "none") {
			s.aiAgentBlocked = true
			break
		}
	}
	s.modifiedMeta = doc.Find(`meta[property="article:modified_time"], meta[property="article:published_time"], meta[name="last-modified"], time[datetime]`).Length() > 0

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, meta *goquery.Selection) {
		prop, _ := meta.Attr("property")
		if content, ok := meta.Attr("content"); ok && strings.TrimSpace(content) != "" {
			s.ogProps[strings.ToLower(prop)] = true
		}
	})
	if content, ok := doc.Find(`meta[name="twitter:card"]`).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
		s.twitterMeta = true
	}
	s.articleTag = doc.Find("article").Length() > 0

	collectHeadings(doc, s)
	collectContent(doc, s)
	collectMedia(doc, s)
	collectLinks(doc, s)

	s.semanticKinds = 0
	for _, tag := range []string{"main", "article", "section", "nav", "header", "footer", "aside"} {
		if doc.Find(tag).Length() > 0 {
			s.semanticKinds++
		}
	}
	s.ariaLandmarks = doc.Find("[role], main, nav").Length() > 0
	s.inlineStyles = doc.Find("[style]").Length()

	s.listCount = doc.Find("ul, ol").Length()
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		s.tableCount++
		if table.Find("th").Length() > 0 {
			s.tablesWithHeaders++
		}
	})

	return s
}

func collectHeadings(doc *goquery.Document, s *signals) {
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		level := int(sel.Nodes[0].Data[1] - '0')
		text := strings.TrimSpace(sel.Text())
		s.headings = append(s.headings, heading{level: level, text: text})
		switch level {
		case 1:
			s.h1Count++
		case 2, 3:
			s.subheadings++
		}
		if strings.HasSuffix(text, "?") {
			s.questionHeads++
			// A question heading counts as answered when followed by a
			// substantive paragraph.
			next := sel.NextFiltered("p")
			if next.Length() == 0 {
				next = sel.Next().Find("p").First()
			}
			if len(strings.Fields(next.Text())) >= 20 {
				s.answeredHeads++
			}
		}
	})
	prev := 0
	for _, h := range s.headings {
		if prev > 0 && h.level > prev+1 {
			s.headingSkips = true
		}
		prev = h.level
	}
}

func collectContent(doc *goquery.Document, s *signals) {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript").Remove()
	visible := clone.Text()
	s.wordCount = len(strings.Fields(visible))
	if len(s.rec.HTML) > 0 {
		s.textRatio = float64(len(visible)) / float64(len(s.rec.HTML))
	}
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		s.paragraphCount++
		if n := len(strings.Fields(sel.Text())); n > s.maxParagraphWords {
			s.maxParagraphWords = n
		}
	})
	s.flesch = fleschReadingEase(visible)
}

func collectMedia(doc *goquery.Document, s *signals) {
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		s.imageCount++
		if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			s.imagesWithAlt++
			s.altTotalLen += len(strings.TrimSpace(alt))
		}
		_, hasW := img.Attr("width")
		_, hasH := img.Attr("height")
		if hasW && hasH {
			s.imagesWithDims++
		}
		if loading, _ := img.Attr("loading"); loading == "lazy" {
			s.imagesLazy++
		}
	})
	s.figureCount = doc.Find("figure").Length()
	s.figcaptionCount = doc.Find("figure figcaption").Length()
	doc.Find("video").Each(func(_ int, video *goquery.Selection) {
		s.videoCount++
		if video.Find("track").Length() > 0 {
			s.videosWithTracks++
		}
	})
}

func collectLinks(doc *goquery.Document, s *signals) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		s.linkCount++
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		if genericAnchors[text] {
			s.genericLinkTexts++
		}
	})
}

func hasMeaningfulFragment(fragment string) bool {
	if strings.TrimSpace(fragment) == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return false
	}
	found := false
	doc.Find("p, h1, h2, h3, article, main, section, li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(strings.Fields(sel.Text())) >= 5 {
			found = true
			return false
		}
		return true
	})
	return found
}

// collectSchemaTypes walks a parsed JSON-LD block and records every
// @type it declares, including @graph members and nested objects.
func collectSchemaTypes(block string, types map[string]bool) {
	var parsed any
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return
	}
	walkSchema(parsed, types)
}

func walkSchema(node any, types map[string]bool) {
	switch v := node.(type) {
	case map[string]any:
		switch t := v["@type"].(type) {
		case string:
			types[strings.ToLower(t)] = true
		case []any:
			for _, raw := range t {
				if s, ok := raw.(string); ok {
					types[strings.ToLower(s)] = true
				}
			}
		}
		for _, child := range v {
			walkSchema(child, types)
		}
	case []any:
		for _, child := range v {
			walkSchema(child, types)
		}
	}
}
