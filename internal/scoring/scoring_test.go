package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/checklist"
	"github.com/seolytics/aeo-audit/internal/rendering"
)

func ssr() audit.RenderingClassification {
	return audit.RenderingClassification{Mode: audit.RenderingSSR, Confidence: 90}
}

var wellOptimizedHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>How Structured Data Improves AI Visibility</title>
<meta name="description" content="A practical walkthrough of structured data, semantic markup and content patterns that make pages easier for answer engines to cite accurately.">
<link rel="canonical" href="https://example.com/guides/structured-data">
<link rel="icon" href="/favicon.ico">
<meta property="og:title" content="How Structured Data Improves AI Visibility">
<meta property="og:description" content="Structured data guide">
<meta property="og:image" content="https://example.com/og.png">
<meta name="twitter:card" content="summary_large_image">
<meta property="article:modified_time" content="2026-02-01T00:00:00Z">
</head>
<body>
<header><nav><a href="/guides">All guides</a></nav></header>
<main>
<h1>How Structured Data Improves AI Visibility</h1>
<p>` + strings.Repeat("Structured data gives answer engines explicit facts to cite. ", 20) + `</p>
<h2>Why does schema markup matter?</h2>
<p>` + strings.Repeat("Schema markup removes the guesswork from extraction and keeps citations accurate across engines. ", 12) + `</p>
<h2>Checklist</h2>
<ul><li>Declare your organization</li><li>Mark up breadcrumbs</li></ul>
<figure><img src="/diagram.png" alt="Diagram of a JSON-LD graph with nested entities" width="640" height="480"><figcaption>A JSON-LD graph</figcaption></figure>
</main>
<footer><p>Contact us for details about the audit service we run.</p></footer>
<script src="/app.js"></script>
</body>
</html>`

var poorlyOptimizedHTML = `<html>
<head><script>` + "window.__BOOT__ = {payload: \"AAAA\"};" + `</script></head>
<body><div class="wrap"><p>We make some things and we sell them here.
Take a look at all of our stuff on this page. We ship fast and we price
fair. Call us or mail us any time you like and we will help you out.</p></div>
<script src="/bundle_v2.js"></script>` + strings.Repeat("<!-- pad -->", 300) + `
</body></html>`

func TestWellOptimizedPageScoresHigh(t *testing.T) {
	t.Parallel()

	rec := audit.PageRecord{
		URL:        "https://example.com/guides/structured-data",
		HTML:       wellOptimizedHTML,
		Markdown:   strings.Repeat("Structured data gives answer engines explicit facts to cite. ", 25),
		StatusCode: 200,
		StructuredData: []string{
			`{"@context":"https://schema.org","@graph":[{"@type":"Organization"},{"@type":"BreadcrumbList"}]}`,
		},
	}
	result := Aggregate(checklist.Evaluate(rec), ssr())

	require.GreaterOrEqual(t, result.OverallScore, 85)
	require.Zero(t, result.SSRPenalty)
	for _, issue := range result.Issues {
		require.NotEqual(t, audit.SeverityCritical, issue.Severity,
			"unexpected critical issue: %s", issue.Title)
	}
	require.Greater(t, result.WeightedScore, 0.9*MaxWeight())
}

func TestPoorlyOptimizedPageScoresLow(t *testing.T) {
	t.Parallel()

	rec := audit.PageRecord{
		URL:        "http://example.com/app_pages/deep/page",
		HTML:       poorlyOptimizedHTML,
		StatusCode: 200,
	}
	rendering := audit.RenderingClassification{Mode: audit.RenderingHybrid, Confidence: 55}
	result := Aggregate(checklist.Evaluate(rec), rendering)

	require.LessOrEqual(t, result.OverallScore, 30)
	require.Equal(t, 3, result.SSRPenalty)

	var criticals []string
	var hasMissingTitle, hasThinContent bool
	for _, issue := range result.Issues {
		if issue.Severity != audit.SeverityCritical {
			continue
		}
		criticals = append(criticals, issue.Title)
		if issue.Title == "Missing page title" {
			hasMissingTitle = true
		}
		if issue.Title == "Thin content" {
			hasThinContent = true
		}
	}
	require.GreaterOrEqual(t, len(criticals), 3, "criticals: %v", criticals)
	require.True(t, hasMissingTitle)
	require.True(t, hasThinContent)
}

// A bare page with no head metadata, plain http and a few dozen words
// must land deep in the red even though it fails almost nothing in the
// media category outright; absence earns no credit on a page this thin.
func TestBareThinPageScoresCritically(t *testing.T) {
	t.Parallel()

	rec := audit.PageRecord{
		URL: "http://example.com/",
		HTML: `<html><body>
<p>We sell things here and we ship them fast. Look at all of our stuff on this page and call us any time you like. We price fair and we help you out when you need a hand.</p>
<script src="/bundle.js"></script>
</body></html>`,
		StatusCode: 200,
	}
	classification := rendering.New().Classify(rec.HTML)
	result := Aggregate(checklist.Evaluate(rec), classification)

	require.LessOrEqual(t, result.OverallScore, 30,
		"overall %d (penalty %d, mode %s)", result.OverallScore, result.SSRPenalty, classification.Mode)

	var criticals []string
	var hasMissingTitle, hasThinContent bool
	for _, issue := range result.Issues {
		if issue.Severity != audit.SeverityCritical {
			continue
		}
		criticals = append(criticals, issue.Title)
		if issue.Title == "Missing page title" {
			hasMissingTitle = true
		}
		if issue.Title == "Thin content" {
			hasThinContent = true
		}
	}
	require.GreaterOrEqual(t, len(criticals), 3, "criticals: %v", criticals)
	require.True(t, hasMissingTitle)
	require.True(t, hasThinContent)
}

func TestRenderingPenalties(t *testing.T) {
	t.Parallel()

	items := []audit.ChecklistItem{
		{ID: "a", Category: audit.CategoryContent, Weight: 1, Passed: true},
	}

	csr := Aggregate(items, audit.RenderingClassification{Mode: audit.RenderingCSR})
	require.Equal(t, 8, csr.SSRPenalty)
	require.Equal(t, 92, csr.OverallScore)

	hybrid := Aggregate(items, audit.RenderingClassification{Mode: audit.RenderingHybrid})
	require.Equal(t, 3, hybrid.SSRPenalty)
	require.Equal(t, 97, hybrid.OverallScore)

	server := Aggregate(items, ssr())
	require.Zero(t, server.SSRPenalty)
	require.Equal(t, 100, server.OverallScore)
}

func TestScoreClampedAtZero(t *testing.T) {
	t.Parallel()

	items := []audit.ChecklistItem{
		{ID: "a", Category: audit.CategoryContent, Weight: 10, Passed: false},
	}
	// Nothing passed means a checklist score of 0; subtracting the CSR
	// penalty must clamp at 0, never go negative.
	result := Aggregate(items, audit.RenderingClassification{Mode: audit.RenderingCSR})
	require.Zero(t, result.OverallScore)
	require.Zero(t, result.WeightedScore)
}

func TestCategoryScoresIgnorePenalty(t *testing.T) {
	t.Parallel()

	items := []audit.ChecklistItem{
		{ID: "a", Category: audit.CategoryContent, Weight: 2, Passed: true},
		{ID: "b", Category: audit.CategoryContent, Weight: 2, Passed: false},
		{ID: "c", Category: audit.CategoryTechnical, Weight: 1, Passed: true},
	}
	result := Aggregate(items, audit.RenderingClassification{Mode: audit.RenderingCSR})

	require.Equal(t, 50, result.CategoryScores[audit.CategoryContent])
	require.Equal(t, 100, result.CategoryScores[audit.CategoryTechnical])
	// Categories with no rules are omitted rather than reported as zero.
	_, ok := result.CategoryScores[audit.CategorySchema]
	require.False(t, ok)
}

func TestIssuesSortedByPriority(t *testing.T) {
	t.Parallel()

	rec := audit.PageRecord{
		URL:        "http://example.com/app_pages/deep/page",
		HTML:       poorlyOptimizedHTML,
		StatusCode: 200,
	}
	result := Aggregate(checklist.Evaluate(rec), audit.RenderingClassification{Mode: audit.RenderingCSR})

	require.NotEmpty(t, result.Issues)
	for i := 1; i < len(result.Issues); i++ {
		require.GreaterOrEqual(t, result.Issues[i-1].FixPriority, result.Issues[i].FixPriority)
	}
}

func TestRecommendationsForRenderingAndStructure(t *testing.T) {
	t.Parallel()

	rec := audit.PageRecord{
		URL:        "http://example.com/app_pages/deep/page",
		HTML:       poorlyOptimizedHTML,
		StatusCode: 200,
	}
	result := Aggregate(checklist.Evaluate(rec), audit.RenderingClassification{Mode: audit.RenderingCSR})

	titles := map[string]bool{}
	for _, r := range result.Recommendations {
		titles[r.Title] = true
	}
	require.True(t, titles["Serve fully rendered HTML"])
	require.True(t, titles["Publish an llms.txt file"])
	for i := 1; i < len(result.Recommendations); i++ {
		require.GreaterOrEqual(t, result.Recommendations[i-1].PriorityScore, result.Recommendations[i].PriorityScore)
	}
}

func TestSSRPageGetsNoRenderingRecommendation(t *testing.T) {
	t.Parallel()

	items := []audit.ChecklistItem{{ID: "a", Category: audit.CategoryContent, Weight: 1, Passed: true}}
	result := Aggregate(items, ssr())
	for _, r := range result.Recommendations {
		require.NotEqual(t, "Serve fully rendered HTML", r.Title)
	}
}
