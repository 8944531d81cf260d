package versioning

import (
	"reflect"
	"sort"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Diff construction
// ============================================================

// ComputeDiff сравнивает два состояния по id. Кэш риска зон в сравнении
// не участвует; результат отсортирован по id.
func ComputeDiff(prev, next models.PlanState) models.Diff {
	return models.Diff{
		Layers: changes(prev.Layers, next.Layers,
			func(l models.Layer) string { return l.ID },
			func(l models.Layer) models.Layer { return l },
			func(a, b models.Layer) bool { return a == b },
		),
		Elements: changes(prev.Elements, next.Elements,
			func(e models.Element) string { return e.ID },
			models.Element.WithoutRisk,
			equalElements,
		),
		Findings: changes(prev.Findings, next.Findings,
			func(f models.Finding) string { return f.ID },
			models.Finding.Clone,
			equalFindings,
		),
	}
}

func changes[T any](prev, next []T, idOf func(T) string, clone func(T) T, equal func(a, b T) bool) models.ChangeSet[T] {
	before := make(map[string]T, len(prev))
	for _, v := range prev {
		before[idOf(v)] = v
	}
	after := make(map[string]T, len(next))
	for _, v := range next {
		after[idOf(v)] = v
	}

	var cs models.ChangeSet[T]
	for _, v := range next {
		old, existed := before[idOf(v)]
		switch {
		case !existed:
			cs.Added = append(cs.Added, clone(v))
		case !equal(old, v):
			cs.Updated = append(cs.Updated, clone(v))
		}
	}
	for _, v := range prev {
		if _, kept := after[idOf(v)]; !kept {
			cs.Removed = append(cs.Removed, idOf(v))
		}
	}

	byID := func(list []T) {
		sort.Slice(list, func(i, j int) bool { return idOf(list[i]) < idOf(list[j]) })
	}
	byID(cs.Added)
	byID(cs.Updated)
	sort.Strings(cs.Removed)
	return cs
}

// equalElements сравнивает элементы структурно, без кэша риска. Пустые
// и nil-коллекции считаются равными.
func equalElements(a, b models.Element) bool {
	return reflect.DeepEqual(canonicalElement(a), canonicalElement(b))
}

func canonicalElement(e models.Element) models.Element {
	e = e.WithoutRisk()
	switch s := e.Shape.(type) {
	case *models.Zone:
		if len(s.RelatedZoneIDs) == 0 {
			s.RelatedZoneIDs = nil
		}
	case *models.Marker:
		if len(s.Metadata) == 0 {
			s.Metadata = nil
		}
	}
	return e
}

func equalFindings(a, b models.Finding) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	a, b = a.Clone(), b.Clone()
	a.CreatedAt, b.CreatedAt = a.CreatedAt.UTC(), b.CreatedAt.UTC()
	if len(a.PhotoRefs) == 0 {
		a.PhotoRefs = nil
	}
	if len(b.PhotoRefs) == 0 {
		b.PhotoRefs = nil
	}
	return reflect.DeepEqual(a, b)
}

// ============================================================
// Diff application
// ============================================================

// ApplyDiff применяет дифф к копии состояния. Добавления и обновления работают как
// upsert по id, удаления отсутствующих id игнорируются, поэтому повторное
// применение того же диффа ничего не меняет.
func ApplyDiff(s models.PlanState, d models.Diff) models.PlanState {
	out := s.Clone()

	out.Layers = apply(out.Layers, d.Layers,
		func(l models.Layer) string { return l.ID },
		func(l models.Layer) models.Layer { return l },
	)
	out.Elements = apply(out.Elements, d.Elements,
		func(e models.Element) string { return e.ID },
		models.Element.WithoutRisk,
	)
	out.Findings = apply(out.Findings, d.Findings,
		func(f models.Finding) string { return f.ID },
		models.Finding.Clone,
	)

	out.Normalize()
	return out
}

func apply[T any](items []T, cs models.ChangeSet[T], idOf func(T) string, clone func(T) T) []T {
	if len(cs.Removed) > 0 {
		removed := make(map[string]bool, len(cs.Removed))
		for _, id := range cs.Removed {
			removed[id] = true
		}
		kept := items[:0]
		for _, v := range items {
			if !removed[idOf(v)] {
				kept = append(kept, v)
			}
		}
		items = kept
	}

	index := make(map[string]int, len(items))
	for i, v := range items {
		index[idOf(v)] = i
	}
	for _, group := range [][]T{cs.Added, cs.Updated} {
		for _, v := range group {
			if i, ok := index[idOf(v)]; ok {
				items[i] = clone(v)
				continue
			}
			index[idOf(v)] = len(items)
			items = append(items, clone(v))
		}
	}
	return items
}
