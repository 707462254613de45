// Package scoring turns checklist results and a rendering
// classification into a page-level analysis: overall and per-category
// scores, synthesized issues, and prioritized recommendations.
package scoring

import (
	"math"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/checklist"
)

// Rendering penalties subtracted from the checklist score. Client-side
// rendering hides content from non-executing crawlers, so it costs the
// most; hybrid pages ship partial content and cost less.
const (
	penaltyCSR    = 8
	penaltyHybrid = 3
)

// Aggregate computes the final analysis for one page. The checklist
// score is the weighted pass ratio on a 0-100 scale; the rendering
// penalty is applied only to the overall score, never to category
// scores, and the result is clamped at zero.
func Aggregate(items []audit.ChecklistItem, rendering audit.RenderingClassification) audit.AnalysisResult {
	var earned, total float64
	categoryEarned := map[audit.Category]float64{}
	categoryTotal := map[audit.Category]float64{}

	for _, item := range items {
		total += item.Weight
		categoryTotal[item.Category] += item.Weight
		if item.Passed {
			earned += item.Weight
			categoryEarned[item.Category] += item.Weight
		}
	}

	checklistScore := 0
	if total > 0 {
		checklistScore = int(math.Round(100 * earned / total))
	}

	penalty := 0
	switch rendering.Mode {
	case audit.RenderingCSR:
		penalty = penaltyCSR
	case audit.RenderingHybrid:
		penalty = penaltyHybrid
	}

	overall := checklistScore - penalty
	if overall < 0 {
		overall = 0
	}

	categoryScores := map[audit.Category]int{}
	for _, cat := range audit.Categories() {
		if categoryTotal[cat] > 0 {
			categoryScores[cat] = int(math.Round(100 * categoryEarned[cat] / categoryTotal[cat]))
		}
	}

	return audit.AnalysisResult{
		OverallScore:    overall,
		WeightedScore:   earned,
		CategoryScores:  categoryScores,
		Rendering:       rendering,
		SSRPenalty:      penalty,
		Issues:          synthesizeIssues(items, rendering),
		Recommendations: buildRecommendations(items, rendering),
		Checklist:       items,
	}
}

// MaxWeight is the rubric's constant total; exported for report
// consumers that want to show earned/total.
func MaxWeight() float64 {
	return checklist.TotalWeight()
}
