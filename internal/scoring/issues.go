package scoring

import (
	"sort"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/checklist"
)

// issueTemplate maps a failed checklist rule to a reportable issue.
// Rules without a template fail silently in the score; not every minor
// rule deserves an issue entry.
type issueTemplate struct {
	severity    audit.Severity
	title       string
	description string
	impact      string
	priority    int
}

var issueTemplates = map[string]issueTemplate{
	checklist.RuleTitlePresent: {
		severity:    audit.SeverityCritical,
		title:       "Missing page title",
		description: "The page has no <title> element, so answer engines have nothing to cite the page by.",
		impact:      "Pages without titles are rarely surfaced or cited by AI assistants.",
		priority:    10,
	},
	checklist.RuleAICrawlersAllowed: {
		severity:    audit.SeverityCritical,
		title:       "Robots meta blocks indexing",
		description: "A robots meta directive (noindex/none) prevents crawlers from indexing this page.",
		impact:      "Blocked pages are invisible to both search and AI answer engines.",
		priority:    10,
	},
	checklist.RuleH1Present: {
		severity:    audit.SeverityCritical,
		title:       "Missing H1 heading",
		description: "The page has no top-level heading, leaving its main topic undeclared.",
		impact:      "Answer engines rely on the H1 to understand what the page is about.",
		priority:    9,
	},
	checklist.RuleHTTPS: {
		severity:    audit.SeverityCritical,
		title:       "Page not served over HTTPS",
		description: "The page is delivered over plain HTTP without transport security.",
		impact:      "Most crawlers deprioritize or refuse insecure pages.",
		priority:    9,
	},
	checklist.RuleStatusOK: {
		severity:    audit.SeverityCritical,
		title:       "Page returns an error status",
		description: "The page responded with a non-2xx status code.",
		impact:      "Error responses are dropped from indexes and never cited.",
		priority:    9,
	},
	checklist.RuleContentDepth: {
		severity:    audit.SeverityCritical,
		title:       "Thin content",
		description: "The page carries fewer than 300 words of visible content.",
		impact:      "Thin pages give answer engines too little material to extract or cite.",
		priority:    8,
	},
	checklist.RuleMetaDescription: {
		severity:    audit.SeverityWarning,
		title:       "Missing meta description",
		description: "No meta description is declared for this page.",
		impact:      "Engines fall back to arbitrary page text for summaries, often poorly.",
		priority:    8,
	},
	checklist.RuleJSONLDPresent: {
		severity:    audit.SeverityWarning,
		title:       "No structured data",
		description: "The page declares no JSON-LD structured data.",
		impact:      "Without schema markup, engines must infer entities and facts from prose.",
		priority:    7,
	},
	checklist.RuleImageAltCoverage: {
		severity:    audit.SeverityWarning,
		title:       "Images missing alt text",
		description: "A significant share of images carry no alternative text.",
		impact:      "Image content is invisible to text-based crawlers and assistive tools.",
		priority:    6,
	},
	checklist.RuleViewport: {
		severity:    audit.SeverityWarning,
		title:       "Missing viewport meta",
		description: "The page does not declare a responsive viewport.",
		impact:      "Mobile rendering quality factors into crawl prioritization.",
		priority:    5,
	},
	checklist.RuleSemanticStructure: {
		severity:    audit.SeverityWarning,
		title:       "Little semantic structure",
		description: "The page uses few or no semantic HTML5 regions (main, article, nav).",
		impact:      "Extractors segment unstructured pages less accurately.",
		priority:    5,
	},
	checklist.RuleOGTitle: {
		severity:    audit.SeverityWarning,
		title:       "Missing Open Graph title",
		description: "No og:title meta property is declared.",
		impact:      "Link previews and some extractors fall back to weaker signals.",
		priority:    4,
	},
	checklist.RuleContentBeforeScript: {
		severity:    audit.SeverityWarning,
		title:       "Scripts precede content",
		description: "No meaningful content appears in the HTML before the first executable script.",
		impact:      "Non-executing crawlers may see an effectively empty page.",
		priority:    6,
	},
	checklist.RuleReadability: {
		severity:    audit.SeverityInfo,
		title:       "Content is hard to read",
		description: "The page scores below 60 on the Flesch reading ease scale.",
		impact:      "Dense prose extracts into lower-quality answers.",
		priority:    3,
	},
	"extractable_content": {
		severity:    audit.SeverityInfo,
		title:       "Content extracts poorly",
		description: "Converting the page to plain text loses most of its content.",
		impact:      "Engines that normalize pages to text will underrepresent this page.",
		priority:    3,
	},
}

// synthesizeIssues converts failed rules into issues and appends the
// rendering-mode issue for client-side rendered pages. Sorted by
// priority, highest first, with a stable order for ties.
func synthesizeIssues(items []audit.ChecklistItem, rendering audit.RenderingClassification) []audit.Issue {
	var issues []audit.Issue
	for _, item := range items {
		if item.Passed {
			continue
		}
		tmpl, ok := issueTemplates[item.ID]
		if !ok {
			continue
		}
		issues = append(issues, audit.Issue{
			Severity:    tmpl.severity,
			Category:    item.Category,
			Title:       tmpl.title,
			Description: tmpl.description,
			Impact:      tmpl.impact,
			FixPriority: tmpl.priority,
		})
	}

	if rendering.Mode == audit.RenderingCSR {
		issues = append(issues, audit.Issue{
			Severity:    audit.SeverityWarning,
			Category:    audit.CategoryAIOptimized,
			Title:       "Page is client-side rendered",
			Description: "The initial HTML carries little content; the page is assembled by JavaScript in the browser.",
			Impact:      "Crawlers that do not execute JavaScript see an empty shell instead of the page.",
			FixPriority: 8,
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].FixPriority > issues[j].FixPriority
	})
	return issues
}
