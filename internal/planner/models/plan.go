package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Plan
// ============================================================

type Plan struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	ProjectID string    `json:"projectId,omitempty"`
	Scale     float64   `json:"scale" validate:"gt=0"` // единицы плана → метры
	Layers    []Layer   `json:"layers" validate:"-"`
	Elements  []Element `json:"elements" validate:"-"`
	Commits   []string  `json:"commits" validate:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPlan создает пустой план без истории.
func NewPlan(name, projectID string, scale float64) (*Plan, error) {
	now := time.Now().UTC()
	p := &Plan{
		ID:        NewID(),
		Name:      name,
		ProjectID: projectID,
		Scale:     scale,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateStruct("plan", p.ID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// NewID выдает новый идентификатор сущности.
func NewID() string {
	return uuid.NewString()
}

// Zones возвращает элементы-зоны плана в порядке хранения.
func (p *Plan) Zones() []Element {
	var out []Element
	for _, e := range p.Elements {
		if e.Kind() == KindZone {
			out = append(out, e)
		}
	}
	return out
}

// Element ищет элемент по id.
func (p *Plan) Element(id string) (Element, bool) {
	for _, e := range p.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// Layer ищет слой по id.
func (p *Plan) Layer(id string) (Layer, bool) {
	for _, l := range p.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Clone возвращает глубокую копию плана вместе с кэшем риска зон.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Layers = cloneSlice(p.Layers, func(l Layer) Layer { return l })
	cp.Elements = cloneSlice(p.Elements, Element.Clone)
	cp.Commits = cloneStrings(p.Commits)
	return &cp
}

// ============================================================
// Layer
// ============================================================

type LayerCategory string

const (
	LayerArchitectural LayerCategory = "architectural"
	LayerSafety        LayerCategory = "safety"
	LayerEvacuation    LayerCategory = "evacuation"
	LayerElectrical    LayerCategory = "electrical"
	LayerAnnotation    LayerCategory = "annotation"
	LayerOther         LayerCategory = "other"
)

type Layer struct {
	ID       string        `json:"id" validate:"required"`
	Name     string        `json:"name" validate:"required"`
	Category LayerCategory `json:"category" validate:"oneof=architectural safety evacuation electrical annotation other"`
	Visible  bool          `json:"visible"`
	Locked   bool          `json:"locked"`
	Color    string        `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Order    int           `json:"order"`
}

// NewLayer создает видимый незаблокированный слой.
func NewLayer(name string, category LayerCategory, order int) (Layer, error) {
	l := Layer{
		ID:       NewID(),
		Name:     name,
		Category: category,
		Visible:  true,
		Order:    order,
	}
	if err := validateStruct("layer", l.ID, l); err != nil {
		return Layer{}, err
	}
	return l, nil
}

// ============================================================
// Helpers
// ============================================================

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	return append([]string(nil), src...)
}

func cloneSlice[T any](src []T, clone func(T) T) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(src))
	for i, v := range src {
		out[i] = clone(v)
	}
	return out
}
