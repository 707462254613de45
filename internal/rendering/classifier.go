// Package rendering classifies how a page's meaningful content is
// produced: server-side, client-side, or a mix. The classifier is a small
// set of hand-weighted structural signals, not ground truth; it sits
// behind audit.RenderingClassifier so it can be swapped or A/B tested
// without touching the scoring aggregator.
package rendering

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Known client-side framework mount points. An empty one is the
// strongest single CSR signal we have.
var mountSelectors = []string{
	"#root",
	"#app",
	"#__next",
	"#___gatsby",
	"#q-app",
	"#svelte",
	"[data-reactroot]",
}

var loadingMarkers = []string{
	"loading...",
	"please enable javascript",
	"you need to enable javascript",
}

var loadingClassPattern = regexp.MustCompile(`class="[^"]*(spinner|skeleton|placeholder)[^"]*"`)

var scriptTagPattern = regexp.MustCompile(`(?i)<script\b`)

// Decision thresholds. Hydration-heavy pages that are fine for SEO will
// still land on the CSR side of these; that is an accepted tradeoff, do
// not loosen the thresholds to paper over it.
const (
	csrThreshold  = 50
	ssrThreshold  = 70
	lowThreshold  = 30
	maxConfidence = 95
)

// HeuristicClassifier implements audit.RenderingClassifier from static
// HTML alone; no script is ever executed.
type HeuristicClassifier struct{}

// New creates a HeuristicClassifier.
func New() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify inspects the HTML and returns a mode with confidence 0-100.
func (c *HeuristicClassifier) Classify(html string) audit.RenderingClassification {
	var (
		indicators []string
		warnings   []string
	)

	preScript, hasScript := splitAtFirstScript(html)
	if !hasScript {
		warnings = append(warnings, "no script tags found; page is effectively static")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return audit.RenderingClassification{
			Mode:       audit.RenderingHybrid,
			Confidence: 0,
			Warnings:   []string{fmt.Sprintf("unparseable html: %v", err)},
		}
	}

	ssrContent := hasSSRContent(preScript)
	words := meaningfulWordCount(doc)
	headings := doc.Find("h1, h2, h3").Length()
	semantic := doc.Find("main, article, nav, header, footer").Length()

	csrScore := 0
	for _, sel := range mountSelectors {
		node := doc.Find(sel).First()
		if node.Length() > 0 && strings.TrimSpace(node.Text()) == "" {
			csrScore += 40
			indicators = append(indicators, fmt.Sprintf("empty framework mount point %s", sel))
			if ssrContent {
				warnings = append(warnings, "mount point alongside server-rendered content; hydration-heavy pages may be over-counted as CSR")
			}
			break
		}
	}
	lower := strings.ToLower(html)
	for _, marker := range loadingMarkers {
		if strings.Contains(lower, marker) {
			csrScore += 20
			indicators = append(indicators, fmt.Sprintf("client-side loading placeholder %q", marker))
			break
		}
	}
	if loadingClassPattern.MatchString(lower) && csrScore < 60 {
		csrScore += 10
		indicators = append(indicators, "loading spinner/skeleton class present")
	}
	switch {
	case words < 50:
		csrScore += 30
		indicators = append(indicators, fmt.Sprintf("thin meaningful content (%d words)", words))
	case words < 150:
		csrScore += 15
	}

	ssrScore := 0
	if ssrContent {
		ssrScore += 40
		indicators = append(indicators, "meaningful content before first script tag")
	}
	switch {
	case words > 200:
		ssrScore += 30
	case words > 50:
		ssrScore += 15
	}
	if headings > 0 {
		ssrScore += 15
	}
	if semantic > 0 {
		ssrScore += 15
	}

	mode, confidence := decide(csrScore, ssrScore)
	return audit.RenderingClassification{
		Mode:       mode,
		Confidence: confidence,
		Indicators: indicators,
		Warnings:   warnings,
	}
}

func decide(csrScore, ssrScore int) (audit.RenderingMode, int) {
	gap := csrScore - ssrScore
	if gap < 0 {
		gap = -gap
	}
	switch {
	case csrScore > csrThreshold && ssrScore < lowThreshold:
		return audit.RenderingCSR, capConfidence(50 + gap/2)
	case ssrScore > ssrThreshold && csrScore < lowThreshold:
		return audit.RenderingSSR, capConfidence(50 + gap/2)
	default:
		confidence := 70 - gap/2
		if confidence < 30 {
			confidence = 30
		}
		return audit.RenderingHybrid, confidence
	}
}

func capConfidence(v int) int {
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}

// splitAtFirstScript returns the HTML preceding the first script tag and
// whether a script tag exists at all.
func splitAtFirstScript(html string) (string, bool) {
	loc := scriptTagPattern.FindStringIndex(html)
	if loc == nil {
		return html, false
	}
	return html[:loc[0]], true
}

// hasSSRContent reports whether semantic or paragraph content with real
// text exists before any script runs.
func hasSSRContent(preScript string) bool {
	if strings.TrimSpace(preScript) == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(preScript))
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

// meaningfulWordCount counts visible words outside script/style blocks.
func meaningfulWordCount(doc *goquery.Document) int {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript").Remove()
	return len(strings.Fields(clone.Text()))
}
