package models

import "time"

// ============================================================
// Risk summary
// ============================================================

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Верхние границы диапазонов (включительно).
const (
	LowThreshold    = 10.0
	MediumThreshold = 25.0
	HighThreshold   = 50.0
)

// LevelFor дискретизирует индекс риска.
func LevelFor(index float64) RiskLevel {
	switch {
	case index <= LowThreshold:
		return RiskLow
	case index <= MediumThreshold:
		return RiskMedium
	case index <= HighThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskSummary: производный результат расчета для одной зоны.
type RiskSummary struct {
	ZoneID                 string    `json:"zoneId"`
	Index                  float64   `json:"index"`
	Level                  RiskLevel `json:"level"`
	ContributingFindingIDs []string  `json:"contributingFindingIds"`
	ComputedAt             time.Time `json:"computedAt"`
}

func (r RiskSummary) Clone() RiskSummary {
	r.ContributingFindingIDs = cloneStrings(r.ContributingFindingIDs)
	return r
}
