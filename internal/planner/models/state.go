package models

import (
	"sort"
)

// ============================================================
// Plan state
// ============================================================

// PlanState: версионируемое материализованное состояние плана:
// слои, элементы и замечания. Коллекции хранятся в каноническом
// порядке (см. Normalize), поэтому два равных состояния равны и
// структурно.
type PlanState struct {
	Layers   []Layer   `json:"layers"`
	Elements []Element `json:"elements"`
	Findings []Finding `json:"findings"`
}

func (s PlanState) Clone() PlanState {
	return PlanState{
		Layers:   cloneSlice(s.Layers, func(l Layer) Layer { return l }),
		Elements: cloneSlice(s.Elements, Element.Clone),
		Findings: cloneSlice(s.Findings, Finding.Clone),
	}
}

// Normalize сортирует слои по (Order, ID), элементы и замечания по ID.
// Пустые коллекции приводятся к nil.
func (s *PlanState) Normalize() {
	if len(s.Layers) == 0 {
		s.Layers = nil
	}
	if len(s.Elements) == 0 {
		s.Elements = nil
	}
	if len(s.Findings) == 0 {
		s.Findings = nil
	}

	sort.SliceStable(s.Layers, func(i, j int) bool {
		if s.Layers[i].Order != s.Layers[j].Order {
			return s.Layers[i].Order < s.Layers[j].Order
		}
		return s.Layers[i].ID < s.Layers[j].ID
	})
	sort.SliceStable(s.Elements, func(i, j int) bool { return s.Elements[i].ID < s.Elements[j].ID })
	sort.SliceStable(s.Findings, func(i, j int) bool { return s.Findings[i].ID < s.Findings[j].ID })
}

func (s PlanState) layerIndex(id string) int {
	for i, l := range s.Layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s PlanState) elementIndex(id string) int {
	for i, e := range s.Elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s PlanState) findingIndex(id string) int {
	for i, f := range s.Findings {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (s PlanState) Layer(id string) (Layer, bool) {
	if i := s.layerIndex(id); i >= 0 {
		return s.Layers[i], true
	}
	return Layer{}, false
}

func (s PlanState) Element(id string) (Element, bool) {
	if i := s.elementIndex(id); i >= 0 {
		return s.Elements[i], true
	}
	return Element{}, false
}

func (s PlanState) Finding(id string) (Finding, bool) {
	if i := s.findingIndex(id); i >= 0 {
		return s.Findings[i], true
	}
	return Finding{}, false
}

// ============================================================
// Layer mutations
// ============================================================

func (s *PlanState) AddLayer(l Layer) error {
	if s.layerIndex(l.ID) >= 0 {
		return duplicate("layer", l.ID)
	}
	s.Layers = append(s.Layers, l)
	return nil
}

func (s *PlanState) UpdateLayer(l Layer) error {
	i := s.layerIndex(l.ID)
	if i < 0 {
		return notFound("layer", l.ID)
	}
	s.Layers[i] = l
	return nil
}

// RemoveLayer удаляет слой каскадно: вместе со всеми его элементами.
// Замечания, ссылавшиеся на удаленные элементы, отвязываются.
func (s *PlanState) RemoveLayer(id string) error {
	i := s.layerIndex(id)
	if i < 0 {
		return notFound("layer", id)
	}
	s.Layers = append(s.Layers[:i], s.Layers[i+1:]...)

	var doomed []string
	for _, e := range s.Elements {
		if e.LayerID == id {
			doomed = append(doomed, e.ID)
		}
	}
	for _, elemID := range doomed {
		if err := s.RemoveElement(elemID); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================
// Element mutations
// ============================================================

func (s *PlanState) AddElement(e Element) error {
	if s.elementIndex(e.ID) >= 0 {
		return duplicate("element", e.ID)
	}
	s.Elements = append(s.Elements, e.WithoutRisk())
	return nil
}

func (s *PlanState) UpdateElement(e Element) error {
	i := s.elementIndex(e.ID)
	if i < 0 {
		return notFound("element", e.ID)
	}
	s.Elements[i] = e.WithoutRisk()
	return nil
}

// RemoveElement удаляет элемент, отвязывает ссылающиеся на него
// замечания и убирает его id из связей других зон.
func (s *PlanState) RemoveElement(id string) error {
	i := s.elementIndex(id)
	if i < 0 {
		return notFound("element", id)
	}
	s.Elements = append(s.Elements[:i], s.Elements[i+1:]...)

	for k := range s.Findings {
		if s.Findings[k].ZoneID == id {
			s.Findings[k].ZoneID = ""
		}
		if s.Findings[k].ElementID == id {
			s.Findings[k].ElementID = ""
		}
	}

	for k := range s.Elements {
		z, ok := s.Elements[k].Zone()
		if !ok || !z.RelatesTo(id) {
			continue
		}
		s.Elements[k] = s.Elements[k].Clone()
		z, _ = s.Elements[k].Zone()
		z.RelatedZoneIDs = removeString(z.RelatedZoneIDs, id)
	}
	return nil
}

// LinkZones добавляет направленную связь from → to: при распространении
// риска зона from учитывает базовый индекс зоны to.
func (s *PlanState) LinkZones(from, to string) error {
	if from == to {
		return invalid("zone", from, "relatedZoneIds", "zone cannot relate to itself")
	}
	i := s.elementIndex(from)
	if i < 0 {
		return notFound("zone", from)
	}
	if _, ok := s.Elements[i].Zone(); !ok {
		return invalid("element", from, "kind", "expected zone, got %s", s.Elements[i].Kind())
	}
	j := s.elementIndex(to)
	if j < 0 {
		return notFound("zone", to)
	}
	if _, ok := s.Elements[j].Zone(); !ok {
		return invalid("element", to, "kind", "expected zone, got %s", s.Elements[j].Kind())
	}

	s.Elements[i] = s.Elements[i].Clone()
	z, _ := s.Elements[i].Zone()
	if !z.RelatesTo(to) {
		z.RelatedZoneIDs = append(z.RelatedZoneIDs, to)
	}
	return nil
}

func (s *PlanState) UnlinkZones(from, to string) error {
	i := s.elementIndex(from)
	if i < 0 {
		return notFound("zone", from)
	}
	if _, ok := s.Elements[i].Zone(); !ok {
		return invalid("element", from, "kind", "expected zone, got %s", s.Elements[i].Kind())
	}
	s.Elements[i] = s.Elements[i].Clone()
	z, _ := s.Elements[i].Zone()
	z.RelatedZoneIDs = removeString(z.RelatedZoneIDs, to)
	return nil
}

// ============================================================
// Finding mutations
// ============================================================

func (s *PlanState) AddFinding(f Finding) error {
	if s.findingIndex(f.ID) >= 0 {
		return duplicate("finding", f.ID)
	}
	s.Findings = append(s.Findings, f.Clone())
	return nil
}

func (s *PlanState) UpdateFinding(f Finding) error {
	i := s.findingIndex(f.ID)
	if i < 0 {
		return notFound("finding", f.ID)
	}
	s.Findings[i] = f.Clone()
	return nil
}

func (s *PlanState) RemoveFinding(id string) error {
	i := s.findingIndex(id)
	if i < 0 {
		return notFound("finding", id)
	}
	s.Findings = append(s.Findings[:i], s.Findings[i+1:]...)
	return nil
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
