package models

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ============================================================
// Validation
// ============================================================

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// validateStruct проверяет теги validate и переводит первую ошибку в ValidationError.
func validateStruct(entity, id string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return invalid(entity, id, fe.Field(), "failed %q (got %v)", reason, fe.Value())
	}
	return fmt.Errorf("validate %s %s: %w", entity, id, err)
}

func validateElement(e Element) error {
	if err := validateStruct("element", e.ID, e); err != nil {
		return err
	}
	switch s := e.Shape.(type) {
	case *Wall:
		return validateStruct("wall", e.ID, s)
	case *Zone:
		return validateStruct("zone", e.ID, s)
	case *Marker:
		return validateStruct("point", e.ID, s)
	case nil:
		return invalid("element", e.ID, "kind", "element has no shape")
	default:
		return invalid("element", e.ID, "kind", "unknown shape %T", e.Shape)
	}
}

// ValidateState проверяет поля сущностей и ссылочную целостность
// состояния плана.
func ValidateState(planID string, s PlanState) error {
	layers := make(map[string]bool, len(s.Layers))
	for _, l := range s.Layers {
		if layers[l.ID] {
			return duplicate("layer", l.ID)
		}
		layers[l.ID] = true
		if err := validateStruct("layer", l.ID, l); err != nil {
			return err
		}
	}

	elements := make(map[string]ElementKind, len(s.Elements))
	for _, e := range s.Elements {
		if _, dup := elements[e.ID]; dup {
			return duplicate("element", e.ID)
		}
		elements[e.ID] = e.Kind()
		if err := validateElement(e); err != nil {
			return err
		}
		if !layers[e.LayerID] {
			return invalid("element", e.ID, "layerId", "references missing layer %s", e.LayerID)
		}
	}

	for _, e := range s.Elements {
		z, ok := e.Zone()
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(z.RelatedZoneIDs))
		for _, rel := range z.RelatedZoneIDs {
			if rel == e.ID {
				return invalid("zone", e.ID, "relatedZoneIds", "zone cannot relate to itself")
			}
			if seen[rel] {
				return invalid("zone", e.ID, "relatedZoneIds", "zone %s listed twice", rel)
			}
			seen[rel] = true
		}
	}

	findings := make(map[string]bool, len(s.Findings))
	for _, f := range s.Findings {
		if findings[f.ID] {
			return duplicate("finding", f.ID)
		}
		findings[f.ID] = true
		if err := validateStruct("finding", f.ID, f); err != nil {
			return err
		}
		if f.PlanID != planID {
			return invalid("finding", f.ID, "planId", "belongs to plan %s, not %s", f.PlanID, planID)
		}
		if f.ZoneID != "" {
			kind, ok := elements[f.ZoneID]
			if !ok {
				return invalid("finding", f.ID, "zoneId", "references missing zone %s", f.ZoneID)
			}
			if kind != KindZone {
				return invalid("finding", f.ID, "zoneId", "element %s is a %s, not a zone", f.ZoneID, kind)
			}
		}
		if f.ElementID != "" {
			if _, ok := elements[f.ElementID]; !ok {
				return invalid("finding", f.ID, "elementId", "references missing element %s", f.ElementID)
			}
		}
	}
	return nil
}

// ValidateWorkspace проверяет все инварианты рабочего пространства:
// состояние каждого плана, принадлежность замечаний, ацикличность и
// линейность истории, указатели head.
func ValidateWorkspace(w *Workspace) error {
	for _, id := range w.PlanIDs() {
		p := w.Plans[id]
		if p.ID != id {
			return invalid("plan", id, "id", "keyed under %s but has id %s", id, p.ID)
		}
		if err := validateStruct("plan", p.ID, p); err != nil {
			return err
		}
		state := PlanState{Layers: p.Layers, Elements: p.Elements, Findings: w.FindingsFor(id)}
		if err := ValidateState(id, state); err != nil {
			return err
		}
		for _, cid := range p.Commits {
			c, ok := w.Commits[cid]
			if !ok || c.PlanID != id {
				return invalid("plan", id, "commits", "lists unknown commit %s", cid)
			}
		}
	}

	for fid, f := range w.Findings {
		if _, ok := w.Plans[f.PlanID]; !ok {
			return invalid("finding", fid, "planId", "references missing plan %s", f.PlanID)
		}
	}

	commitIDs := make([]string, 0, len(w.Commits))
	for cid := range w.Commits {
		commitIDs = append(commitIDs, cid)
	}
	sort.Strings(commitIDs)

	// История плана линейна: один корень и не больше одного потомка у
	// каждого коммита.
	roots := make(map[string]string)
	children := make(map[string]string)
	withCommits := make(map[string]bool)
	for _, cid := range commitIDs {
		c := w.Commits[cid]
		if err := validateCommit(w, cid, c); err != nil {
			return err
		}
		withCommits[c.PlanID] = true
		if len(c.ParentIDs) == 0 {
			if other, ok := roots[c.PlanID]; ok {
				return invalid("commit", cid, "parentIds", "second root in plan %s, first is %s", c.PlanID, other)
			}
			roots[c.PlanID] = cid
			continue
		}
		parent := c.ParentIDs[0]
		if other, ok := children[parent]; ok {
			return invalid("commit", cid, "parentIds", "branches history: %s already continues %s", other, parent)
		}
		children[parent] = cid
	}
	for _, id := range w.PlanIDs() {
		if len(w.Plans[id].Commits) > 0 {
			withCommits[id] = true
		}
	}

	for planID, cid := range w.Heads {
		if _, ok := w.Plans[planID]; !ok {
			return invalid("head", planID, "planId", "references missing plan")
		}
		c, ok := w.Commits[cid]
		if !ok {
			return invalid("head", planID, "commitId", "references missing commit %s", cid)
		}
		if c.PlanID != planID {
			return invalid("head", planID, "commitId", "commit %s belongs to plan %s", cid, c.PlanID)
		}
		if child, ok := children[cid]; ok {
			return invalid("head", planID, "commitId", "commit %s is not the latest, %s follows it", cid, child)
		}
	}

	for _, id := range w.PlanIDs() {
		if _, ok := w.Heads[id]; withCommits[id] && !ok {
			return invalid("plan", id, "head", "plan has commits but no head")
		}
	}
	return nil
}

func validateCommit(w *Workspace, id string, c *Commit) error {
	if c.ID != id {
		return invalid("commit", id, "id", "keyed under %s but has id %s", id, c.ID)
	}
	if _, ok := w.Plans[c.PlanID]; !ok {
		return invalid("commit", id, "planId", "references missing plan %s", c.PlanID)
	}
	if err := c.Diff.Validate(); err != nil {
		return err
	}
	if err := c.Reverse.Validate(); err != nil {
		return err
	}

	switch len(c.ParentIDs) {
	case 0:
		if c.Seq != 1 {
			return invalid("commit", id, "seq", "root commit must have seq 1, got %d", c.Seq)
		}
	case 1:
		parent, ok := w.Commits[c.ParentIDs[0]]
		if !ok {
			return invalid("commit", id, "parentIds", "references missing parent %s", c.ParentIDs[0])
		}
		if parent.PlanID != c.PlanID {
			return invalid("commit", id, "parentIds", "parent %s belongs to plan %s", parent.ID, parent.PlanID)
		}
		// Seq строго растет вдоль истории, значит циклов нет.
		if c.Seq != parent.Seq+1 {
			return invalid("commit", id, "seq", "expected %d after parent %s, got %d", parent.Seq+1, parent.ID, c.Seq)
		}
	default:
		return invalid("commit", id, "parentIds", "merge commits are not supported")
	}
	return nil
}
