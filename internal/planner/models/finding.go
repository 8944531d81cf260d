package models

import (
	"time"
)

// ============================================================
// Finding
// ============================================================

type FindingType string

const (
	FindingObstruction    FindingType = "obstruction"
	FindingSignageMissing FindingType = "signage_missing"
	FindingPPEMissing     FindingType = "ppe_missing"
	FindingFallRisk       FindingType = "fall_risk"
	FindingElectricalRisk FindingType = "electrical_risk"
	FindingFireRisk       FindingType = "fire_risk"
	FindingChemicalRisk   FindingType = "chemical_risk"
	FindingOther          FindingType = "other"
)

// FindingTypes: полный список допустимых типов.
var FindingTypes = []FindingType{
	FindingObstruction,
	FindingSignageMissing,
	FindingPPEMissing,
	FindingFallRisk,
	FindingElectricalRisk,
	FindingFireRisk,
	FindingChemicalRisk,
	FindingOther,
}

type Finding struct {
	ID          string      `json:"id" validate:"required"`
	PlanID      string      `json:"planId" validate:"required"`
	ZoneID      string      `json:"zoneId,omitempty"`
	ElementID   string      `json:"elementId,omitempty"`
	Type        FindingType `json:"type" validate:"oneof=obstruction signage_missing ppe_missing fall_risk electrical_risk fire_risk chemical_risk other"`
	Severity    int         `json:"severity" validate:"min=1,max=5"`
	Frequency   int         `json:"frequency" validate:"min=1,max=5"`
	Description string      `json:"description"`
	PhotoRefs   []string    `json:"photoRefs,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	AuthorID    string      `json:"authorId,omitempty"`
}

// NewFinding создает замечание без привязки к зоне или элементу.
func NewFinding(planID string, typ FindingType, severity, frequency int, description string) (Finding, error) {
	f := Finding{
		ID:          NewID(),
		PlanID:      planID,
		Type:        typ,
		Severity:    severity,
		Frequency:   frequency,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := validateStruct("finding", f.ID, f); err != nil {
		return Finding{}, err
	}
	return f, nil
}

func (f Finding) Clone() Finding {
	f.PhotoRefs = cloneStrings(f.PhotoRefs)
	return f
}
