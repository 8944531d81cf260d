package models

import (
	"time"
)

// ============================================================
// Commit & Diff
// ============================================================

// ChangeSet: изменения одной коллекции между двумя состояниями.
type ChangeSet[T any] struct {
	Added   []T      `json:"added,omitempty"`
	Updated []T      `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func (c ChangeSet[T]) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// validate проверяет, что один коммит не добавляет и не удаляет один и тот же id.
func (c ChangeSet[T]) validate(entity string, idOf func(T) string) error {
	removed := make(map[string]bool, len(c.Removed))
	for _, id := range c.Removed {
		removed[id] = true
	}

	seen := make(map[string]bool, len(c.Added)+len(c.Updated))
	for _, group := range [][]T{c.Added, c.Updated} {
		for _, v := range group {
			id := idOf(v)
			if removed[id] {
				return invalid("diff", id, entity, "id is both upserted and removed in one commit")
			}
			if seen[id] {
				return invalid("diff", id, entity, "id appears twice among added/updated")
			}
			seen[id] = true
		}
	}
	return nil
}

func (c ChangeSet[T]) clone(cloneItem func(T) T) ChangeSet[T] {
	return ChangeSet[T]{
		Added:   cloneSlice(c.Added, cloneItem),
		Updated: cloneSlice(c.Updated, cloneItem),
		Removed: cloneStrings(c.Removed),
	}
}

type Diff struct {
	Layers   ChangeSet[Layer]   `json:"layers"`
	Elements ChangeSet[Element] `json:"elements"`
	Findings ChangeSet[Finding] `json:"findings"`
}

func (d Diff) Empty() bool {
	return d.Layers.Empty() && d.Elements.Empty() && d.Findings.Empty()
}

// Validate проверяет контракт диффа.
func (d Diff) Validate() error {
	if err := d.Layers.validate("layers", func(l Layer) string { return l.ID }); err != nil {
		return err
	}
	if err := d.Elements.validate("elements", func(e Element) string { return e.ID }); err != nil {
		return err
	}
	return d.Findings.validate("findings", func(f Finding) string { return f.ID })
}

func (d Diff) Clone() Diff {
	return Diff{
		Layers:   d.Layers.clone(func(l Layer) Layer { return l }),
		Elements: d.Elements.clone(Element.Clone),
		Findings: d.Findings.clone(Finding.Clone),
	}
}

// Commit: единица версионирования плана. Seq задает позицию в линейной
// истории, корневой коммит имеет Seq == 1.
type Commit struct {
	ID        string     `json:"id"`
	PlanID    string     `json:"planId"`
	ParentIDs []string   `json:"parentIds"`
	Seq       int        `json:"seq"`
	Author    string     `json:"author,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	Diff      Diff       `json:"diff"`
	Reverse   Diff       `json:"reverse"`
	Snapshot  *PlanState `json:"snapshot,omitempty"`
}

// Parent возвращает единственного родителя; для корня пустую строку.
func (c *Commit) Parent() string {
	if len(c.ParentIDs) == 0 {
		return ""
	}
	return c.ParentIDs[0]
}

func (c *Commit) Clone() *Commit {
	cp := *c
	cp.ParentIDs = cloneStrings(c.ParentIDs)
	cp.Diff = c.Diff.Clone()
	cp.Reverse = c.Reverse.Clone()
	if c.Snapshot != nil {
		s := c.Snapshot.Clone()
		cp.Snapshot = &s
	}
	return &cp
}
