package edits

import (
	"fmt"
	"time"

	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/snapshot"
)

// ============================================================
// Operations
// ============================================================

type Op string

const (
	OpAddLayer      Op = "addLayer"
	OpUpdateLayer   Op = "updateLayer"
	OpRemoveLayer   Op = "removeLayer"
	OpAddElement    Op = "addElement"
	OpUpdateElement Op = "updateElement"
	OpRemoveElement Op = "removeElement"
	OpAddFinding    Op = "addFinding"
	OpUpdateFinding Op = "updateFinding"
	OpRemoveFinding Op = "removeFinding"
	OpLinkZones     Op = "linkZones"
	OpUnlinkZones   Op = "unlinkZones"
)

// Operation: одно логическое изменение плана в JSON-представлении.
// Для add/update заполняется соответствующая сущность, для remove ID,
// для link/unlink ZoneID и RelatedID.
type Operation struct {
	Op        Op                      `json:"op"`
	Layer     *models.Layer           `json:"layer,omitempty"`
	Element   *snapshot.ElementRecord `json:"element,omitempty"`
	Finding   *models.Finding         `json:"finding,omitempty"`
	ID        string                  `json:"id,omitempty"`
	ZoneID    string                  `json:"zoneId,omitempty"`
	RelatedID string                  `json:"relatedId,omitempty"`
}

// Compile проверяет форму операций и собирает мутацию для
// versioning.Commit. Операции применяются по порядку; первая ошибка
// прерывает весь коммит.
func Compile(planID string, ops []Operation) (func(*models.PlanState) error, error) {
	if len(ops) == 0 {
		return nil, &models.ValidationError{Entity: "edit", Reason: "no operations"}
	}

	steps := make([]func(*models.PlanState) error, 0, len(ops))
	for i, op := range ops {
		step, err := compileOne(planID, op)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Op, err)
		}
		steps = append(steps, step)
	}

	return func(s *models.PlanState) error {
		for i, step := range steps {
			if err := step(s); err != nil {
				return fmt.Errorf("operation %d (%s): %w", i, ops[i].Op, err)
			}
		}
		return nil
	}, nil
}

func compileOne(planID string, op Operation) (func(*models.PlanState) error, error) {
	switch op.Op {
	case OpAddLayer, OpUpdateLayer:
		if op.Layer == nil {
			return nil, missing("layer")
		}
		l := *op.Layer
		if op.Op == OpAddLayer {
			if l.ID == "" {
				l.ID = models.NewID()
			}
			return func(s *models.PlanState) error { return s.AddLayer(l) }, nil
		}
		return func(s *models.PlanState) error { return s.UpdateLayer(l) }, nil

	case OpAddElement, OpUpdateElement:
		if op.Element == nil {
			return nil, missing("element")
		}
		rec := *op.Element
		if op.Op == OpAddElement && rec.ID == "" {
			rec.ID = models.NewID()
		}
		e, err := snapshot.RecordToElement(rec)
		if err != nil {
			return nil, err
		}
		if op.Op == OpAddElement {
			return func(s *models.PlanState) error { return s.AddElement(e.Clone()) }, nil
		}
		return func(s *models.PlanState) error { return s.UpdateElement(e.Clone()) }, nil

	case OpAddFinding, OpUpdateFinding:
		if op.Finding == nil {
			return nil, missing("finding")
		}
		f := op.Finding.Clone()
		if f.PlanID == "" {
			f.PlanID = planID
		}
		if op.Op == OpAddFinding {
			if f.ID == "" {
				f.ID = models.NewID()
			}
			if f.CreatedAt.IsZero() {
				f.CreatedAt = time.Now().UTC()
			}
			return func(s *models.PlanState) error { return s.AddFinding(f) }, nil
		}
		return func(s *models.PlanState) error { return s.UpdateFinding(f) }, nil

	case OpRemoveLayer, OpRemoveElement, OpRemoveFinding:
		if op.ID == "" {
			return nil, missing("id")
		}
		id := op.ID
		switch op.Op {
		case OpRemoveLayer:
			return func(s *models.PlanState) error { return s.RemoveLayer(id) }, nil
		case OpRemoveElement:
			return func(s *models.PlanState) error { return s.RemoveElement(id) }, nil
		default:
			return func(s *models.PlanState) error { return s.RemoveFinding(id) }, nil
		}

	case OpLinkZones, OpUnlinkZones:
		if op.ZoneID == "" || op.RelatedID == "" {
			return nil, missing("zoneId/relatedId")
		}
		from, to := op.ZoneID, op.RelatedID
		if op.Op == OpLinkZones {
			return func(s *models.PlanState) error { return s.LinkZones(from, to) }, nil
		}
		return func(s *models.PlanState) error { return s.UnlinkZones(from, to) }, nil

	default:
		return nil, &models.ValidationError{Entity: "edit", Field: "op", Reason: fmt.Sprintf("unknown operation %q", op.Op)}
	}
}

func missing(field string) error {
	return &models.ValidationError{Entity: "edit", Field: field, Reason: "required for this operation"}
}
