package models

import (
	"sort"
	"time"
)

// ============================================================
// Workspace
// ============================================================

// Workspace: состояние одной сессии редактирования: планы, замечания,
// коммиты и указатели head. Синхронизацию обеспечивает владелец.
type Workspace struct {
	Plans    map[string]*Plan
	Findings map[string]Finding
	Commits  map[string]*Commit
	Heads    map[string]string // planID → commitID
}

func NewWorkspace() *Workspace {
	return &Workspace{
		Plans:    make(map[string]*Plan),
		Findings: make(map[string]Finding),
		Commits:  make(map[string]*Commit),
		Heads:    make(map[string]string),
	}
}

// Plan возвращает план по id или ErrNotFound.
func (w *Workspace) Plan(id string) (*Plan, error) {
	p, ok := w.Plans[id]
	if !ok {
		return nil, notFound("plan", id)
	}
	return p, nil
}

// Commit возвращает коммит по id или ErrNotFound.
func (w *Workspace) Commit(id string) (*Commit, error) {
	c, ok := w.Commits[id]
	if !ok {
		return nil, notFound("commit", id)
	}
	return c, nil
}

// Head возвращает текущий head плана, если он задан.
func (w *Workspace) Head(planID string) (string, bool) {
	id, ok := w.Heads[planID]
	return id, ok
}

// AddPlan регистрирует новый план. План добавляется без истории:
// первый коммит станет корнем.
func (w *Workspace) AddPlan(p *Plan) error {
	if _, exists := w.Plans[p.ID]; exists {
		return duplicate("plan", p.ID)
	}
	if err := validateStruct("plan", p.ID, p); err != nil {
		return err
	}
	state := PlanState{Layers: p.Layers, Elements: p.Elements}
	if err := ValidateState(p.ID, state); err != nil {
		return err
	}
	w.Plans[p.ID] = p
	return nil
}

// DeletePlan удаляет план каскадно: коммиты, head и замечания плана.
func (w *Workspace) DeletePlan(id string) error {
	if _, ok := w.Plans[id]; !ok {
		return notFound("plan", id)
	}
	for cid, c := range w.Commits {
		if c.PlanID == id {
			delete(w.Commits, cid)
		}
	}
	for fid, f := range w.Findings {
		if f.PlanID == id {
			delete(w.Findings, fid)
		}
	}
	delete(w.Heads, id)
	delete(w.Plans, id)
	return nil
}

// FindingsFor возвращает замечания плана, отсортированные по id.
func (w *Workspace) FindingsFor(planID string) []Finding {
	var out []Finding
	for _, f := range w.Findings {
		if f.PlanID == planID {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State собирает текущее версионируемое состояние плана (без кэша риска).
func (w *Workspace) State(planID string) (PlanState, error) {
	p, err := w.Plan(planID)
	if err != nil {
		return PlanState{}, err
	}
	s := PlanState{
		Layers:   cloneSlice(p.Layers, func(l Layer) Layer { return l }),
		Elements: cloneSlice(p.Elements, Element.WithoutRisk),
		Findings: w.FindingsFor(planID),
	}
	s.Normalize()
	return s, nil
}

// SetState заменяет материализованное состояние плана. Вызывающий
// отвечает за предварительную валидацию.
func (w *Workspace) SetState(planID string, s PlanState, now time.Time) error {
	p, err := w.Plan(planID)
	if err != nil {
		return err
	}
	s = s.Clone()
	s.Normalize()

	p.Layers = s.Layers
	p.Elements = s.Elements
	p.UpdatedAt = now

	for fid, f := range w.Findings {
		if f.PlanID == planID {
			delete(w.Findings, fid)
		}
	}
	for _, f := range s.Findings {
		w.Findings[f.ID] = f
	}
	return nil
}

// PlanCommits возвращает коммиты плана в порядке Seq.
func (w *Workspace) PlanCommits(planID string) []*Commit {
	var out []*Commit
	for _, c := range w.Commits {
		if c.PlanID == planID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PlanIDs возвращает идентификаторы планов по возрастанию.
func (w *Workspace) PlanIDs() []string {
	ids := make([]string, 0, len(w.Plans))
	for id := range w.Plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
