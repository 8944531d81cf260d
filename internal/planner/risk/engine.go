package risk

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Engine
// ============================================================

// Engine считает индекс риска зон по замечаниям. Расчет чистый: при
// одинаковых входных данных результат отличается только ComputedAt.
type Engine struct {
	cfg    RulesConfig
	rules  map[string]Rule
	logger zerolog.Logger
	now    func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(cfg RulesConfig, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		logger: logger.With().Str("component", "risk").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.setRules(cfg)
	return e, nil
}

// WithRules возвращает движок с новыми правилами и теми же логгером и часами.
func (e *Engine) WithRules(cfg RulesConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	next := &Engine{logger: e.logger, now: e.now}
	next.setRules(cfg)
	return next, nil
}

func (e *Engine) setRules(cfg RulesConfig) {
	e.cfg = cfg.Clone()
	e.rules = make(map[string]Rule, len(e.cfg.Rules))
	for _, r := range e.cfg.Rules {
		e.rules[r.FindingType] = r
	}
}

// Rules возвращает копию действующих правил.
func (e *Engine) Rules() RulesConfig {
	return e.cfg.Clone()
}

// Contribution: вклад одного замечания. ok == false, если правило не
// найдено или множитель вне таблицы; вклад тогда нулевой.
func (e *Engine) Contribution(f models.Finding) (float64, bool) {
	rule, found := e.rules[string(f.Type)]
	if !found {
		rule, found = e.rules[AnyType]
	}
	if !found {
		e.logger.Warn().
			Str("finding_id", f.ID).
			Str("finding_type", string(f.Type)).
			Msg("no risk rule for finding type and no fallback, skipping")
		return 0, false
	}
	if f.Severity < 1 || f.Severity > len(rule.SeverityMultiplier) ||
		f.Frequency < 1 || f.Frequency > len(rule.FrequencyMultiplier) {
		e.logger.Warn().
			Str("finding_id", f.ID).
			Int("severity", f.Severity).
			Int("frequency", f.Frequency).
			Msg("finding rating outside multiplier table, skipping")
		return 0, false
	}
	return rule.Base * rule.SeverityMultiplier[f.Severity-1] * rule.FrequencyMultiplier[f.Frequency-1], true
}

type zoneBase struct {
	index        float64
	contributing []string
}

// base считает базовые индексы всех зон плана до распространения.
func (e *Engine) base(plan *models.Plan, findings []models.Finding) map[string]*zoneBase {
	out := make(map[string]*zoneBase)
	for _, z := range plan.Zones() {
		out[z.ID] = &zoneBase{}
	}

	// Сумма по замечаниям в порядке id, чтобы результат не зависел от
	// порядка входного списка.
	sorted := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if f.ZoneID != "" {
			sorted = append(sorted, f)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, f := range sorted {
		zb, ok := out[f.ZoneID]
		if !ok {
			continue
		}
		c, ok := e.Contribution(f)
		if !ok {
			continue
		}
		zb.index += c
		zb.contributing = append(zb.contributing, f.ID)
	}
	return out
}

// Base возвращает базовые индексы зон без учета связанных зон.
func (e *Engine) Base(plan *models.Plan, findings []models.Finding) map[string]float64 {
	bases := e.base(plan, findings)
	out := make(map[string]float64, len(bases))
	for id, zb := range bases {
		out[id] = zb.index
	}
	return out
}

// Evaluate возвращает RiskSummary для каждой зоны плана. Распространение
// читает только базовые индексы связанных зон; неизвестные id дают ноль.
func (e *Engine) Evaluate(plan *models.Plan, findings []models.Finding) map[string]models.RiskSummary {
	bases := e.base(plan, findings)
	now := e.now()

	out := make(map[string]models.RiskSummary, len(bases))
	for _, el := range plan.Zones() {
		zone, _ := el.Zone()
		own := bases[el.ID]

		var neighbours float64
		counted := make(map[string]bool, len(zone.RelatedZoneIDs))
		for _, rel := range zone.RelatedZoneIDs {
			// Каждый сосед учитывается один раз.
			if rel == el.ID || counted[rel] {
				continue
			}
			counted[rel] = true
			if nb, ok := bases[rel]; ok {
				neighbours += nb.index
			}
		}
		index := own.index + e.cfg.Propagation.Factor*neighbours

		out[el.ID] = models.RiskSummary{
			ZoneID:                 el.ID,
			Index:                  index,
			Level:                  models.LevelFor(index),
			ContributingFindingIDs: append([]string(nil), own.contributing...),
			ComputedAt:             now,
		}
	}
	return out
}

// Apply вычисляет риск и кэширует сводки на зонах плана. План изменяется
// на месте; вызывающий владеет им.
func (e *Engine) Apply(plan *models.Plan, findings []models.Finding) map[string]models.RiskSummary {
	summaries := e.Evaluate(plan, findings)
	for i := range plan.Elements {
		zone, ok := plan.Elements[i].Zone()
		if !ok {
			continue
		}
		s := summaries[plan.Elements[i].ID]
		zone.Risk = &s
	}
	return summaries
}

// ============================================================
// Holder
// ============================================================

// Holder хранит текущий движок; замена атомарна, читатели не блокируются.
type Holder struct {
	p atomic.Pointer[Engine]
}

func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.p.Store(e)
	return h
}

func (h *Holder) Load() *Engine {
	return h.p.Load()
}

func (h *Holder) Store(e *Engine) {
	h.p.Store(e)
}
