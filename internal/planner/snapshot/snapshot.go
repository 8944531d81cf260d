package snapshot

import (
	"fmt"
	"sort"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Serialize / Deserialize
// ============================================================

// Serialize строит плоское представление. Порядок детерминирован:
// планы и замечания по id, коммиты по (план, seq, id), head по плану.
func Serialize(w *models.Workspace) *Flat {
	f := &Flat{Version: Version}

	for _, id := range w.PlanIDs() {
		f.Plans = append(f.Plans, PlanToRecord(w.Plans[id]))
	}

	findingIDs := make([]string, 0, len(w.Findings))
	for id := range w.Findings {
		findingIDs = append(findingIDs, id)
	}
	sort.Strings(findingIDs)
	for _, id := range findingIDs {
		f.Findings = append(f.Findings, w.Findings[id].Clone())
	}

	commits := make([]*models.Commit, 0, len(w.Commits))
	for _, c := range w.Commits {
		commits = append(commits, c)
	}
	sort.Slice(commits, func(i, j int) bool {
		a, b := commits[i], commits[j]
		if a.PlanID != b.PlanID {
			return a.PlanID < b.PlanID
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
	for _, c := range commits {
		f.Commits = append(f.Commits, CommitToRecord(c))
	}

	planIDs := make([]string, 0, len(w.Heads))
	for id := range w.Heads {
		planIDs = append(planIDs, id)
	}
	sort.Strings(planIDs)
	for _, id := range planIDs {
		f.Heads = append(f.Heads, HeadRecord{PlanID: id, CommitID: w.Heads[id]})
	}

	return f
}

// Deserialize восстанавливает рабочее пространство. Дубли id внутри
// коллекции и head на отсутствующий коммит отклоняются, после сборки
// проверяются все инварианты модели.
func Deserialize(f *Flat) (*models.Workspace, error) {
	if f == nil {
		return nil, fmt.Errorf("deserialize: nil snapshot")
	}
	if f.Version > Version {
		return nil, fmt.Errorf("deserialize: unsupported snapshot version %d", f.Version)
	}

	w := models.NewWorkspace()

	for _, rec := range f.Plans {
		if _, dup := w.Plans[rec.ID]; dup {
			return nil, fmt.Errorf("deserialize: %w: plan %s", models.ErrDuplicateID, rec.ID)
		}
		p, err := RecordToPlan(rec)
		if err != nil {
			return nil, fmt.Errorf("deserialize: %w", err)
		}
		w.Plans[p.ID] = p
	}

	for _, fd := range f.Findings {
		if _, dup := w.Findings[fd.ID]; dup {
			return nil, fmt.Errorf("deserialize: %w: finding %s", models.ErrDuplicateID, fd.ID)
		}
		w.Findings[fd.ID] = fd.Clone()
	}

	for _, rec := range f.Commits {
		if _, dup := w.Commits[rec.ID]; dup {
			return nil, fmt.Errorf("deserialize: %w: commit %s", models.ErrDuplicateID, rec.ID)
		}
		c, err := RecordToCommit(rec)
		if err != nil {
			return nil, fmt.Errorf("deserialize: %w", err)
		}
		w.Commits[c.ID] = c
	}

	for _, h := range f.Heads {
		if _, dup := w.Heads[h.PlanID]; dup {
			return nil, fmt.Errorf("deserialize: %w: head for plan %s", models.ErrDuplicateID, h.PlanID)
		}
		if _, ok := w.Commits[h.CommitID]; !ok {
			return nil, fmt.Errorf("deserialize: head of plan %s: %w: commit %s", h.PlanID, models.ErrNotFound, h.CommitID)
		}
		w.Heads[h.PlanID] = h.CommitID
	}

	if err := models.ValidateWorkspace(w); err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	return w, nil
}
