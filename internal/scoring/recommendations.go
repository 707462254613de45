package scoring

import (
	"sort"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/checklist"
)

// buildRecommendations proposes forward-looking improvements. Unlike
// issues, these are not tied one-to-one to failed rules: some fire on
// opportunities (question headings without FAQ schema), and a few are
// always worth stating.
func buildRecommendations(items []audit.ChecklistItem, rendering audit.RenderingClassification) []audit.Recommendation {
	byID := make(map[string]audit.ChecklistItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	failed := func(id string) bool {
		item, ok := byID[id]
		return ok && !item.Passed
	}

	var recs []audit.Recommendation

	if failed(checklist.RuleFAQSchema) {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategorySchema,
			Title:          "Add FAQPage schema to question content",
			Description:    "The page already answers questions under question-form headings; declaring them as FAQPage schema makes each Q&A pair directly citable.",
			Implementation: "Wrap each question and its answer in a FAQPage/Question/Answer JSON-LD block in the page head.",
			Effort:         audit.EffortLow,
			PriorityScore:  8,
		})
	}

	// llms.txt is cheap and always worth publishing regardless of how
	// the rest of the audit went.
	recs = append(recs, audit.Recommendation{
		Category:       audit.CategoryAIOptimized,
		Title:          "Publish an llms.txt file",
		Description:    "An llms.txt at the site root gives AI crawlers a curated map of your most citable content.",
		Implementation: "Create /llms.txt listing key pages with one-line descriptions, mirroring the robots.txt location.",
		Effort:         audit.EffortLow,
		PriorityScore:  5,
	})

	if failed(checklist.RuleQuestionHeadings) {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategoryAIOptimized,
			Title:          "Phrase subheadings as questions",
			Description:    "Answer engines match user questions against headings; question-form subheadings followed by direct answers are cited far more often.",
			Implementation: "Rewrite key H2/H3 headings as the questions users actually ask, each followed by a one-paragraph direct answer.",
			Effort:         audit.EffortMedium,
			PriorityScore:  7,
		})
	}

	if failed(checklist.RuleContentLists) {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategoryAIOptimized,
			Title:          "Structure content with lists",
			Description:    "Steps, features and comparisons expressed as lists extract far more reliably than prose.",
			Implementation: "Convert enumerable prose into ul/ol markup.",
			Effort:         audit.EffortLow,
			PriorityScore:  4,
		})
	}

	if failed(checklist.RuleOGTitle) || failed("og_description") || failed("og_image") {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategorySchema,
			Title:          "Complete the Open Graph tag set",
			Description:    "og:title, og:description and og:image together control how the page appears when shared or previewed.",
			Implementation: "Add the missing og: meta properties to the page head.",
			Effort:         audit.EffortLow,
			PriorityScore:  4,
		})
	}

	if failed(checklist.RuleBreadcrumbSchema) {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategorySchema,
			Title:          "Declare BreadcrumbList schema",
			Description:    "Breadcrumb markup tells engines where deep pages sit in the site hierarchy.",
			Implementation: "Add a BreadcrumbList JSON-LD block mirroring the page's navigation path.",
			Effort:         audit.EffortLow,
			PriorityScore:  3,
		})
	}

	if rendering.Mode != audit.RenderingSSR {
		effort := audit.EffortHigh
		priority := 9
		if rendering.Mode == audit.RenderingHybrid {
			effort = audit.EffortMedium
			priority = 6
		}
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategoryAIOptimized,
			Title:          "Serve fully rendered HTML",
			Description:    "Content assembled in the browser is invisible to crawlers that do not execute JavaScript.",
			Implementation: "Adopt server-side rendering or static generation so the initial HTML response contains the full page content.",
			Effort:         effort,
			PriorityScore:  priority,
		})
	}

	if failed(checklist.RuleFreshness) {
		recs = append(recs, audit.Recommendation{
			Category:       audit.CategoryContent,
			Title:          "Expose publication and modification dates",
			Description:    "Engines weight fresh content higher and cite dated content more confidently.",
			Implementation: "Add article:published_time and article:modified_time meta properties, or visible <time> elements.",
			Effort:         audit.EffortLow,
			PriorityScore:  3,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PriorityScore > recs[j].PriorityScore
	})
	return recs
}
