// Package checklist evaluates every page against a fixed rubric of
// weighted rules across five categories. The rubric is data, not
// per-call state: the set of rules and the sum of their weights is
// identical for every page, only the earned subset varies.
//
// Rules that cannot be verified from a static snapshot (real link-rot
// probing, field timing metrics, rendered color contrast) default to
// passed — unverifiable is never treated as failing. That asymmetry is
// deliberate; do not normalize it away.
//
// Absence is different from unverifiable: a near-empty page earns no
// credit for the images, videos and tables it never shipped. Those
// not-applicable passes require the page to carry substantive content.
package checklist

import (
	"fmt"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// Rule IDs referenced by the scoring aggregator's issue synthesis.
const (
	RuleTitlePresent	= "title_present"
	RuleTitleLength		= "title_length"
	RuleMetaDescription	= "meta_description_present"
	RuleMetaDescLength	= "meta_description_length"
	RuleH1Present		= "h1_present"
	RuleContentDepth	= "content_depth"
	RuleReadability		= "readability"
	RuleHTTPS		= "https"
	RuleStatusOK		= "status_ok"
	RuleViewport		= "viewport_meta"
	RuleImageAltCoverage	= "image_alt_coverage"
	RuleJSONLDPresent	= "json_ld_present"
	RuleAICrawlersAllowed	= "ai_crawlers_allowed"
	RuleSemanticStructure	= "semantic_structure"
	RuleContentBeforeScript	= "content_before_script"
	RuleQuestionHeadings	= "question_headings"
	RuleContentLists	= "content_lists"
	RuleOGTitle		= "og_title"
	RuleBreadcrumbSchema	= "breadcrumb_schema"
	RuleFAQSchema		= "faq_schema"
	RuleFreshness		= "freshness_signal"
)

// rule is one rubric entry. check returns pass/fail, a short detail
// string, and optional parameters persisted for auditability.
type rule struct {
	id       string
	name     string
	category audit.Category
	weight   float64
	check    func(s *signals) (bool, string, map[string]any)
}

// Evaluate runs the full rubric against one page. It is a pure function
// of the record; the returned slice always has len == Len().
func Evaluate(rec audit.PageRecord) []audit.ChecklistItem {
	s := extractSignals(rec)
	items := make([]audit.ChecklistItem, 0, len(rubric))
	for _, r := range rubric {
		passed, details, params := r.check(s)
		items = append(items, audit.ChecklistItem{
			ID:         r.id,
			Name:       r.name,
			Category:   r.category,
			Weight:     r.weight,
			Passed:     passed,
			Details:    details,
			Parameters: params,
		})
	}
	return items
}

// TotalWeight is the constant rubric total; every page is scored out of
// this same denominator.
func TotalWeight() float64 {
	total := 0.0
	for _, r := range rubric {
		total += r.weight
	}
	return total
}

// Len returns the number of rubric rules.
func Len() int {
	return len(rubric)
}

func pass(details string) (bool, string, map[string]any) { return true, details, nil }
func fail(details string) (bool, string, map[string]any) { return false, details, nil }

var rubric = []rule{
	// --- Content Quality ---
	{RuleTitlePresent, "Page has a title", audit.CategoryContent, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.title == "" {
			return fail("no <title> element")
		}
		return true, "", map[string]any{"title": s.title}
	}},
	{RuleTitleLength, "Title length is 30-60 characters", audit.CategoryContent, 1.0, func(s *signals) (bool, string, map[string]any) {
		n := len(s.title)
		params := map[string]any{"length": n}
		if n >= 30 && n <= 60 {
			return true, "", params
		}
		return false, fmt.Sprintf("title is %d characters", n), params
	}},
	{RuleMetaDescription, "Meta description present", audit.CategoryContent, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.metaDesc == "" {
			return fail("no meta description")
		}
		return pass("")
	}},
	{RuleMetaDescLength, "Meta description length is 120-160 characters", audit.CategoryContent, 1.0, func(s *signals) (bool, string, map[string]any) {
		n := len(s.metaDesc)
		params := map[string]any{"length": n}
		if n >= 120 && n <= 160 {
			return true, "", params
		}
		return false, fmt.Sprintf("meta description is %d characters", n), params
	}},
	{RuleH1Present, "Page has an H1", audit.CategoryContent, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.h1Count >= 1 {
			return pass("")
		}
		return fail("no h1 element")
	}},
	{"single_h1", "Exactly one H1", audit.CategoryContent, 0.5, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"h1_count": s.h1Count}
		return s.h1Count == 1, "", params
	}},
	{"subheadings", "At least two subheadings", audit.CategoryContent, 1.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"subheadings": s.subheadings}
		if s.subheadings >= 2 {
			return true, "", params
		}
		return false, fmt.Sprintf("%d h2/h3 elements", s.subheadings), params
	}},
	{RuleContentDepth, "At least 300 words of content", audit.CategoryContent, 2.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"word_count": s.wordCount}
		if s.wordCount >= 300 {
			return true, "", params
		}
		return false, fmt.Sprintf("%d words", s.wordCount), params
	}},
	{RuleReadability, "Flesch reading ease >= 60", audit.CategoryContent, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.wordCount < 30 {
			// Too little text for the formula to mean anything.
			return pass("insufficient text to evaluate")
		}
		params := map[string]any{"flesch": s.flesch}
		if s.flesch >= 60 {
			return true, "", params
		}
		return false, fmt.Sprintf("score %.0f", s.flesch), params
	}},
	{"paragraph_density", "No paragraph exceeds 150 words", audit.CategoryContent, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.maxParagraphWords > 150 {
			return fail(fmt.Sprintf("longest paragraph is %d words", s.maxParagraphWords))
		}
		return pass("")
	}},
	{RuleFreshness, "Publication or modification date exposed", audit.CategoryContent, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.modifiedMeta {
			return pass("")
		}
		return fail("no article:modified_time, published_time or <time> element")
	}},
	{"canonical_url", "Canonical URL declared", audit.CategoryContent, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.canonical {
			return pass("")
		}
		return fail("no rel=canonical link")
	}},

	// --- Technical Health ---
	{RuleHTTPS, "Served over HTTPS", audit.CategoryTechnical, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.https {
			return pass("")
		}
		return fail("page served over plain http")
	}},
	{RuleStatusOK, "Status code is 2xx", audit.CategoryTechnical, 2.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"status_code": s.rec.StatusCode}
		ok := s.rec.StatusCode >= 200 && s.rec.StatusCode < 300
		if ok {
			return true, "", params
		}
		return false, fmt.Sprintf("status %d", s.rec.StatusCode), params
	}},
	{RuleViewport, "Viewport meta present", audit.CategoryTechnical, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.viewport {
			return pass("")
		}
		return fail("no viewport meta tag")
	}},
	{"charset_declared", "Character encoding declared", audit.CategoryTechnical, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.charset {
			return pass("")
		}
		return fail("no charset meta")
	}},
	{"html_lang", "<html> declares lang", audit.CategoryTechnical, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.langAttr {
			return pass("")
		}
		return fail("no lang attribute")
	}},
	{"doctype", "HTML5 doctype declared", audit.CategoryTechnical, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.doctype {
			return pass("")
		}
		return fail("no doctype declaration")
	}},
	{"no_meta_refresh", "No meta refresh redirect", audit.CategoryTechnical, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.metaRefresh {
			return fail("meta refresh present")
		}
		return pass("")
	}},
	{"favicon", "Favicon declared", audit.CategoryTechnical, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.favicon {
			return pass("")
		}
		return fail("no icon link")
	}},
	{"link_rot", "No broken outbound links detected", audit.CategoryTechnical, 0.25, func(s *signals) (bool, string, map[string]any) {
		// Verifying links means fetching them; not available from a
		// static snapshot, so this defaults to passed.
		return pass("not verifiable from snapshot")
	}},
	{"timing_metrics", "Load timing within budget", audit.CategoryTechnical, 0.25, func(s *signals) (bool, string, map[string]any) {
		return pass("no field timing available; defaults to passed")
	}},
	{"inline_style_budget", "Inline styles within budget", audit.CategoryTechnical, 0.25, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"inline_styles": s.inlineStyles}
		if s.inlineStyles <= 20 {
			return true, "", params
		}
		return false, fmt.Sprintf("%d style attributes", s.inlineStyles), params
	}},
	{"clean_url", "URL is clean and readable", audit.CategoryTechnical, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.pathClean {
			return pass("")
		}
		return fail("url path contains underscores or excessive parameters")
	}},

	// --- Media & Accessibility ---
	{RuleImageAltCoverage, "Images carry alt text", audit.CategoryMedia, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.imageCount == 0 {
			if !s.substantive() {
				return fail("no images and almost no content")
			}
			return pass("no images")
		}
		params := map[string]any{"images": s.imageCount, "with_alt": s.imagesWithAlt}
		coverage := float64(s.imagesWithAlt) / float64(s.imageCount)
		if coverage >= 0.8 {
			return true, "", params
		}
		return false, fmt.Sprintf("%d of %d images have alt text", s.imagesWithAlt, s.imageCount), params
	}},
	{"descriptive_alt_text", "Alt text is descriptive", audit.CategoryMedia, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.imagesWithAlt == 0 {
			if !s.substantive() {
				return fail("no alt text and almost no content")
			}
			return pass("no alt text to evaluate")
		}
		avg := s.altTotalLen / s.imagesWithAlt
		if avg >= 10 {
			return pass("")
		}
		return fail(fmt.Sprintf("average alt length %d characters", avg))
	}},
	{"image_dimensions", "Images declare dimensions", audit.CategoryMedia, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.imageCount == 0 {
			if !s.substantive() {
				return fail("no images and almost no content")
			}
			return pass("no images")
		}
		if s.imagesWithDims*2 >= s.imageCount {
			return pass("")
		}
		return fail(fmt.Sprintf("%d of %d images declare width/height", s.imagesWithDims, s.imageCount))
	}},
	{"lazy_loading", "Below-fold images lazy load", audit.CategoryMedia, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.imageCount <= 2 {
			if !s.substantive() {
				return fail("too few images and almost no content")
			}
			return pass("too few images to matter")
		}
		if s.imagesLazy > 0 {
			return pass("")
		}
		return fail("no loading=lazy images")
	}},
	{"video_captions", "Videos provide caption tracks", audit.CategoryMedia, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.videoCount == 0 {
			if !s.substantive() {
				return fail("no videos and almost no content")
			}
			return pass("no videos")
		}
		if s.videosWithTracks == s.videoCount {
			return pass("")
		}
		return fail(fmt.Sprintf("%d of %d videos have tracks", s.videosWithTracks, s.videoCount))
	}},
	{"descriptive_links", "Links use descriptive anchor text", audit.CategoryMedia, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.linkCount == 0 {
			return fail("page has no links")
		}
		if s.genericLinkTexts == 0 {
			return pass("")
		}
		return fail(fmt.Sprintf("%d generic anchors (\"click here\" etc.)", s.genericLinkTexts))
	}},
	{"aria_landmarks", "Landmark roles or regions present", audit.CategoryMedia, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.ariaLandmarks {
			return pass("")
		}
		return fail("no role attributes or landmark elements")
	}},
	{"heading_hierarchy", "Heading levels do not skip", audit.CategoryMedia, 1.0, func(s *signals) (bool, string, map[string]any) {
		if len(s.headings) == 0 {
			return fail("no headings at all")
		}
		if s.headingSkips {
			return fail("heading levels skip (e.g. h1 to h3)")
		}
		return pass("")
	}},
	{"color_contrast", "Text contrast meets WCAG AA", audit.CategoryMedia, 0.25, func(s *signals) (bool, string, map[string]any) {
		return pass("requires rendered styles; defaults to passed")
	}},
	{"figure_captions", "Figures carry captions", audit.CategoryMedia, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.figureCount == 0 {
			if !s.substantive() {
				return fail("no figures and almost no content")
			}
			return pass("no figures")
		}
		if s.figcaptionCount*2 >= s.figureCount {
			return pass("")
		}
		return fail(fmt.Sprintf("%d of %d figures have captions", s.figcaptionCount, s.figureCount))
	}},

	// --- Schema & Structured Data ---
	{RuleJSONLDPresent, "JSON-LD structured data present", audit.CategorySchema, 2.0, func(s *signals) (bool, string, map[string]any) {
		if len(s.rec.StructuredData) > 0 {
			return pass("")
		}
		return fail("no json-ld blocks")
	}},
	{"json_ld_typed", "JSON-LD declares @type", audit.CategorySchema, 1.0, func(s *signals) (bool, string, map[string]any) {
		if len(s.rec.StructuredData) == 0 {
			return pass("no json-ld to validate")
		}
		if len(s.schemaTypes) > 0 {
			return pass("")
		}
		return fail("json-ld blocks carry no @type")
	}},
	{"org_schema", "Organization or WebSite schema present", audit.CategorySchema, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.schemaTypes["organization"] || s.schemaTypes["website"] {
			return pass("")
		}
		return fail("no Organization/WebSite schema")
	}},
	{"article_schema", "Articles declare Article schema", audit.CategorySchema, 0.5, func(s *signals) (bool, string, map[string]any) {
		if !s.articleLike() {
			return pass("not an article page")
		}
		if s.schemaTypes["article"] || s.schemaTypes["blogposting"] || s.schemaTypes["newsarticle"] {
			return pass("")
		}
		return fail("article content without Article schema")
	}},
	{RuleFAQSchema, "FAQ content declares FAQPage schema", audit.CategorySchema, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.questionHeads < 2 {
			return pass("no FAQ-like content")
		}
		if s.schemaTypes["faqpage"] {
			return pass("")
		}
		return fail("multiple question headings without FAQPage schema")
	}},
	{RuleBreadcrumbSchema, "BreadcrumbList schema on deep pages", audit.CategorySchema, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.rootPath {
			return pass("root page")
		}
		if s.schemaTypes["breadcrumblist"] {
			return pass("")
		}
		return fail("deep page without BreadcrumbList schema")
	}},
	{RuleOGTitle, "Open Graph title present", audit.CategorySchema, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.og("og:title") {
			return pass("")
		}
		return fail("no og:title")
	}},
	{"og_description", "Open Graph description present", audit.CategorySchema, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.og("og:description") {
			return pass("")
		}
		return fail("no og:description")
	}},
	{"og_image", "Open Graph image present", audit.CategorySchema, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.og("og:image") {
			return pass("")
		}
		return fail("no og:image")
	}},
	{"twitter_card", "Twitter card declared", audit.CategorySchema, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.twitterCard() {
			return pass("")
		}
		return fail("no twitter:card meta")
	}},

	// --- AI Optimization ---
	{RuleAICrawlersAllowed, "Robots meta does not block indexing", audit.CategoryAIOptimized, 2.0, func(s *signals) (bool, string, map[string]any) {
		for _, directive := range []string{"noindex", "none", "noai"} {
			if containsDirective(s.robotsMeta, directive) {
				return fail(fmt.Sprintf("robots meta contains %q", directive))
			}
		}
		return pass("")
	}},
	{"ai_agent_access", "Named AI crawlers are not blocked", audit.CategoryAIOptimized, 1.0, func(s *signals) (bool, string, map[string]any) {
		if s.aiAgentBlocked {
			return fail("agent-specific robots meta blocks AI crawlers")
		}
		return pass("")
	}},
	{RuleSemanticStructure, "Semantic HTML5 regions used", audit.CategoryAIOptimized, 1.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"semantic_kinds": s.semanticKinds}
		if s.semanticKinds >= 2 {
			return true, "", params
		}
		return false, fmt.Sprintf("%d semantic region kinds", s.semanticKinds), params
	}},
	{RuleQuestionHeadings, "Headings phrased as questions", audit.CategoryAIOptimized, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.questionHeads >= 1 {
			return pass("")
		}
		return fail("no question-form headings")
	}},
	{"direct_answers", "Question headings answered directly", audit.CategoryAIOptimized, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.questionHeads == 0 {
			return pass("no question headings")
		}
		if s.answeredHeads == s.questionHeads {
			return pass("")
		}
		return fail(fmt.Sprintf("%d of %d question headings answered", s.answeredHeads, s.questionHeads))
	}},
	{RuleContentLists, "Content uses lists", audit.CategoryAIOptimized, 0.5, func(s *signals) (bool, string, map[string]any) {
		if s.listCount > 0 {
			return pass("")
		}
		return fail("no ul/ol elements")
	}},
	{"data_tables", "Tables declare header cells", audit.CategoryAIOptimized, 0.25, func(s *signals) (bool, string, map[string]any) {
		if s.tableCount == 0 {
			if !s.substantive() {
				return fail("no tables and almost no content")
			}
			return pass("no tables")
		}
		if s.tablesWithHeaders == s.tableCount {
			return pass("")
		}
		return fail(fmt.Sprintf("%d of %d tables have th cells", s.tablesWithHeaders, s.tableCount))
	}},
	{"text_html_ratio", "Text-to-HTML ratio >= 10%", audit.CategoryAIOptimized, 1.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"ratio": s.textRatio}
		if s.textRatio >= 0.10 {
			return true, "", params
		}
		return false, fmt.Sprintf("ratio %.2f", s.textRatio), params
	}},
	{RuleContentBeforeScript, "Meaningful content precedes scripts", audit.CategoryAIOptimized, 2.0, func(s *signals) (bool, string, map[string]any) {
		if s.contentBeforeScript {
			return pass("")
		}
		return fail("no meaningful content before first script tag")
	}},
	{"extractable_content", "Content extracts cleanly to text", audit.CategoryAIOptimized, 1.0, func(s *signals) (bool, string, map[string]any) {
		params := map[string]any{"markdown_words": s.markdownWords}
		if s.markdownWords >= 50 && s.markdownWords*2 >= s.wordCount {
			return true, "", params
		}
		return false, fmt.Sprintf("%d extractable words", s.markdownWords), params
	}},
	{"llms_txt", "llms.txt published", audit.CategoryAIOptimized, 0.25, func(s *signals) (bool, string, map[string]any) {
		return pass("site-level signal; not verifiable per page")
	}},
}
