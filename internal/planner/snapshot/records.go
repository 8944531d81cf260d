package snapshot

import (
	"fmt"
	"time"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Flat records
// ============================================================

// Version: версия формата плоского представления.
const Version = 1

// Flat: плоское сохраняемое представление рабочего пространства:
// четыре упорядоченных списка.
type Flat struct {
	Version  int              `json:"version"`
	Plans    []PlanRecord     `json:"plans"`
	Findings []models.Finding `json:"findings"`
	Commits  []CommitRecord   `json:"commits"`
	Heads    []HeadRecord     `json:"heads"`
}

type PlanRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	ProjectID string          `json:"projectId,omitempty"`
	Scale     float64         `json:"scale"`
	Layers    []models.Layer  `json:"layers"`
	Elements  []ElementRecord `json:"elements"`
	Commits   []string        `json:"commits,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ElementRecord: элемент с явным дискриминатором kind. Заполнено ровно
// одно из полей wall/zone/point.
type ElementRecord struct {
	ID      string             `json:"id"`
	LayerID string             `json:"layerId"`
	Kind    models.ElementKind `json:"kind"`
	Wall    *models.Wall       `json:"wall,omitempty"`
	Zone    *models.Zone       `json:"zone,omitempty"`
	Point   *models.Marker     `json:"point,omitempty"`
}

type StateRecord struct {
	Layers   []models.Layer   `json:"layers"`
	Elements []ElementRecord  `json:"elements"`
	Findings []models.Finding `json:"findings"`
}

type ElementChanges struct {
	Added   []ElementRecord `json:"added,omitempty"`
	Updated []ElementRecord `json:"updated,omitempty"`
	Removed []string        `json:"removed,omitempty"`
}

type DiffRecord struct {
	Layers   models.ChangeSet[models.Layer]   `json:"layers"`
	Elements ElementChanges                   `json:"elements"`
	Findings models.ChangeSet[models.Finding] `json:"findings"`
}

type CommitRecord struct {
	ID        string       `json:"id"`
	PlanID    string       `json:"planId"`
	ParentIDs []string     `json:"parentIds,omitempty"`
	Seq       int          `json:"seq"`
	Author    string       `json:"author,omitempty"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"createdAt"`
	Diff      DiffRecord   `json:"diff"`
	Reverse   DiffRecord   `json:"reverse"`
	Snapshot  *StateRecord `json:"snapshot,omitempty"`
}

type HeadRecord struct {
	PlanID   string `json:"planId"`
	CommitID string `json:"commitId"`
}

// ============================================================
// Element conversion
// ============================================================

// ElementToRecord раскладывает закрытый тип Shape по полям записи.
func ElementToRecord(e models.Element) ElementRecord {
	rec := ElementRecord{ID: e.ID, LayerID: e.LayerID, Kind: e.Kind()}
	cp := e.Clone()
	switch s := cp.Shape.(type) {
	case *models.Wall:
		rec.Wall = s
	case *models.Zone:
		rec.Zone = s
	case *models.Marker:
		rec.Point = s
	}
	return rec
}

// RecordToElement собирает элемент обратно; kind должен совпадать с
// заполненным полем.
func RecordToElement(r ElementRecord) (models.Element, error) {
	e := models.Element{ID: r.ID, LayerID: r.LayerID}
	switch r.Kind {
	case models.KindWall:
		if r.Wall == nil {
			return e, kindMismatch(r)
		}
		w := *r.Wall
		e.Shape = &w
	case models.KindZone:
		if r.Zone == nil {
			return e, kindMismatch(r)
		}
		e.Shape = r.Zone
		e = e.Clone()
	case models.KindPoint:
		if r.Point == nil {
			return e, kindMismatch(r)
		}
		e.Shape = r.Point
		e = e.Clone()
	default:
		return e, &models.ValidationError{Entity: "element", ID: r.ID, Field: "kind", Reason: fmt.Sprintf("unknown element kind %q", r.Kind)}
	}
	return e, nil
}

func kindMismatch(r ElementRecord) error {
	return &models.ValidationError{Entity: "element", ID: r.ID, Field: string(r.Kind), Reason: "payload missing for kind"}
}

func elementsToRecords(elems []models.Element) []ElementRecord {
	if elems == nil {
		return nil
	}
	out := make([]ElementRecord, len(elems))
	for i, e := range elems {
		out[i] = ElementToRecord(e)
	}
	return out
}

func recordsToElements(recs []ElementRecord) ([]models.Element, error) {
	if recs == nil {
		return nil, nil
	}
	out := make([]models.Element, len(recs))
	for i, r := range recs {
		e, err := RecordToElement(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// ============================================================
// Plan / state / diff conversion
// ============================================================

func PlanToRecord(p *models.Plan) PlanRecord {
	return PlanRecord{
		ID:        p.ID,
		Name:      p.Name,
		ProjectID: p.ProjectID,
		Scale:     p.Scale,
		Layers:    copyOf(p.Layers),
		Elements:  elementsToRecords(p.Elements),
		Commits:   copyOf(p.Commits),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func RecordToPlan(r PlanRecord) (*models.Plan, error) {
	elems, err := recordsToElements(r.Elements)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", r.ID, err)
	}
	return &models.Plan{
		ID:        r.ID,
		Name:      r.Name,
		ProjectID: r.ProjectID,
		Scale:     r.Scale,
		Layers:    copyOf(r.Layers),
		Elements:  elems,
		Commits:   copyOf(r.Commits),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func StateToRecord(s models.PlanState) StateRecord {
	return StateRecord{
		Layers:   copyOf(s.Layers),
		Elements: elementsToRecords(s.Elements),
		Findings: findingsCopy(s.Findings),
	}
}

func RecordToState(r StateRecord) (models.PlanState, error) {
	elems, err := recordsToElements(r.Elements)
	if err != nil {
		return models.PlanState{}, err
	}
	return models.PlanState{
		Layers:   copyOf(r.Layers),
		Elements: elems,
		Findings: findingsCopy(r.Findings),
	}, nil
}

func DiffToRecord(d models.Diff) DiffRecord {
	return DiffRecord{
		Layers: models.ChangeSet[models.Layer]{
			Added:   copyOf(d.Layers.Added),
			Updated: copyOf(d.Layers.Updated),
			Removed: copyOf(d.Layers.Removed),
		},
		Elements: ElementChanges{
			Added:   elementsToRecords(d.Elements.Added),
			Updated: elementsToRecords(d.Elements.Updated),
			Removed: copyOf(d.Elements.Removed),
		},
		Findings: models.ChangeSet[models.Finding]{
			Added:   findingsCopy(d.Findings.Added),
			Updated: findingsCopy(d.Findings.Updated),
			Removed: copyOf(d.Findings.Removed),
		},
	}
}

func RecordToDiff(r DiffRecord) (models.Diff, error) {
	added, err := recordsToElements(r.Elements.Added)
	if err != nil {
		return models.Diff{}, err
	}
	updated, err := recordsToElements(r.Elements.Updated)
	if err != nil {
		return models.Diff{}, err
	}
	return models.Diff{
		Layers: models.ChangeSet[models.Layer]{
			Added:   copyOf(r.Layers.Added),
			Updated: copyOf(r.Layers.Updated),
			Removed: copyOf(r.Layers.Removed),
		},
		Elements: models.ChangeSet[models.Element]{
			Added:   added,
			Updated: updated,
			Removed: copyOf(r.Elements.Removed),
		},
		Findings: models.ChangeSet[models.Finding]{
			Added:   findingsCopy(r.Findings.Added),
			Updated: findingsCopy(r.Findings.Updated),
			Removed: copyOf(r.Findings.Removed),
		},
	}, nil
}

func CommitToRecord(c *models.Commit) CommitRecord {
	rec := CommitRecord{
		ID:        c.ID,
		PlanID:    c.PlanID,
		ParentIDs: copyOf(c.ParentIDs),
		Seq:       c.Seq,
		Author:    c.Author,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
		Diff:      DiffToRecord(c.Diff),
		Reverse:   DiffToRecord(c.Reverse),
	}
	if c.Snapshot != nil {
		s := StateToRecord(*c.Snapshot)
		rec.Snapshot = &s
	}
	return rec
}

func RecordToCommit(r CommitRecord) (*models.Commit, error) {
	diff, err := RecordToDiff(r.Diff)
	if err != nil {
		return nil, fmt.Errorf("commit %s diff: %w", r.ID, err)
	}
	reverse, err := RecordToDiff(r.Reverse)
	if err != nil {
		return nil, fmt.Errorf("commit %s reverse: %w", r.ID, err)
	}
	c := &models.Commit{
		ID:        r.ID,
		PlanID:    r.PlanID,
		ParentIDs: copyOf(r.ParentIDs),
		Seq:       r.Seq,
		Author:    r.Author,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		Diff:      diff,
		Reverse:   reverse,
	}
	if r.Snapshot != nil {
		s, err := RecordToState(*r.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("commit %s snapshot: %w", r.ID, err)
		}
		c.Snapshot = &s
	}
	return c, nil
}

func copyOf[T any](src []T) []T {
	if src == nil {
		return nil
	}
	return append([]T(nil), src...)
}

func findingsCopy(src []models.Finding) []models.Finding {
	if src == nil {
		return nil
	}
	out := make([]models.Finding, len(src))
	for i, f := range src {
		out[i] = f.Clone()
	}
	return out
}
