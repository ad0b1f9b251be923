package models

import "github.com/shopspring/decimal"

// Statistics aggregates a set of violations for GET /statistics.
type Statistics struct {
	Total             int                   `json:"total"`
	Pending           int                   `json:"pending"`
	Approved          int                   `json:"approved"`
	Rejected          int                   `json:"rejected"`
	TotalFines        decimal.Decimal       `json:"totalFines"`
	AverageConfidence float64               `json:"averageConfidence"`
	ByType            map[ViolationType]int `json:"byType"`
}

// Summarize computes Statistics over violations.
func Summarize(violations []Violation) Statistics {
	stats := Statistics{
		TotalFines: decimal.Zero,
		ByType:     make(map[ViolationType]int),
	}
	for _, t := range violationTypeCodes {
		stats.ByType[t] = 0
	}

	var confidenceSum float64
	for _, v := range violations {
		stats.Total++
		switch v.Status {
		case ViolationPending:
			stats.Pending++
		case ViolationApproved:
			stats.Approved++
		case ViolationRejected:
			stats.Rejected++
		}
		stats.TotalFines = stats.TotalFines.Add(v.FineAmount)
		if v.AIAnalysis != nil {
			confidenceSum += v.AIAnalysis.Confidence
		}
		stats.ByType[v.ViolationType]++
	}
	if stats.Total > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Total)
	}
	return stats
}
