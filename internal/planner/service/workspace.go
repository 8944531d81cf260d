package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"safety-planner/internal/planner/edits"
	"safety-planner/internal/planner/importer"
	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/repository"
	"safety-planner/internal/planner/risk"
	"safety-planner/internal/planner/snapshot"
	"safety-planner/internal/planner/versioning"
	"safety-planner/internal/planner/views"
)

// ============================================================
// Workspace Service
// ============================================================

// Workspace владеет одним рабочим пространством. Все обращения идут под
// мьютексом; после каждой успешной записи снимок уходит в Persister.
type Workspace struct {
	mu sync.Mutex
	ws *models.Workspace

	versioner *versioning.Versioner
	rules     *risk.Holder
	persister *Persister
	metrics   *Metrics
	logger    zerolog.Logger
}

type Option func(*Workspace)

// WithPersister включает фоновое сохранение.
func WithPersister(p *Persister) Option {
	return func(s *Workspace) { s.persister = p }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Workspace) { s.metrics = m }
}

func New(versioner *versioning.Versioner, rules *risk.Holder, logger zerolog.Logger, opts ...Option) *Workspace {
	s := &Workspace{
		ws:        models.NewWorkspace(),
		versioner: versioner,
		rules:     rules,
		logger:    logger.With().Str("component", "workspace").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlanSummary: строка списка планов.
type PlanSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProjectID string    `json:"projectId,omitempty"`
	Scale     float64   `json:"scale"`
	Head      string    `json:"head,omitempty"`
	Commits   int       `json:"commits"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ============================================================
// Load / snapshot
// ============================================================

// Restore заменяет рабочее пространство сохраненным снимком. Пустое
// хранилище оставляет текущее состояние без изменений.
func (s *Workspace) Restore(ctx context.Context, adapter repository.Adapter) (bool, error) {
	f, ok, err := adapter.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	ws, err := snapshot.Deserialize(f)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws = ws
	s.refreshAll()
	s.logger.Info().Int("plans", len(ws.Plans)).Int("commits", len(ws.Commits)).Msg("workspace restored")
	return true, nil
}

// Snapshot возвращает плоское представление текущего состояния.
func (s *Workspace) Snapshot() *snapshot.Flat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Serialize(s.ws)
}

// RefreshRisk пересчитывает кэш риска всех планов, например после
// перезагрузки правил.
func (s *Workspace) RefreshRisk() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshAll()
	s.persist()
}

func (s *Workspace) refreshAll() {
	for _, id := range s.ws.PlanIDs() {
		s.refresh(id)
	}
	if s.metrics != nil {
		s.metrics.Plans.Set(float64(len(s.ws.Plans)))
	}
}

func (s *Workspace) refresh(planID string) {
	plan, err := s.ws.Plan(planID)
	if err != nil {
		return
	}
	s.rules.Load().Apply(plan, s.ws.FindingsFor(planID))
	if s.metrics != nil {
		s.metrics.RiskEvaluations.Inc()
	}
}

func (s *Workspace) persist() {
	if s.persister == nil {
		return
	}
	s.persister.Submit(snapshot.Serialize(s.ws))
}

// ============================================================
// Plans
// ============================================================

func (s *Workspace) CreatePlan(name, projectID string, scale float64) (*models.Plan, error) {
	plan, err := models.NewPlan(name, projectID, scale)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.AddPlan(plan); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Plans.Set(float64(len(s.ws.Plans)))
	}
	s.persist()
	s.logger.Info().Str("plan", plan.ID).Str("name", name).Msg("plan created")
	return plan.Clone(), nil
}

func (s *Workspace) ListPlans() []PlanSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PlanSummary, 0, len(s.ws.Plans))
	for _, id := range s.ws.PlanIDs() {
		p := s.ws.Plans[id]
		head, _ := s.ws.Head(id)
		out = append(out, PlanSummary{
			ID:        p.ID,
			Name:      p.Name,
			ProjectID: p.ProjectID,
			Scale:     p.Scale,
			Head:      head,
			Commits:   len(p.Commits),
			UpdatedAt: p.UpdatedAt,
		})
	}
	return out
}

// Plan возвращает копию плана с актуальным кэшем риска.
func (s *Workspace) Plan(id string) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scored(id)
}

func (s *Workspace) scored(id string) (*models.Plan, error) {
	plan, err := s.ws.Plan(id)
	if err != nil {
		return nil, err
	}
	cp := plan.Clone()
	s.rules.Load().Apply(cp, s.ws.FindingsFor(id))
	return cp, nil
}

func (s *Workspace) DeletePlan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.DeletePlan(id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Plans.Set(float64(len(s.ws.Plans)))
	}
	s.persist()
	s.logger.Info().Str("plan", id).Msg("plan deleted")
	return nil
}

// ImportPlan создает план из SVG и фиксирует импортированное состояние
// корневым коммитом. Если коммит не удался, план не остается.
func (s *Workspace) ImportPlan(name, projectID string, r io.Reader, opts importer.Options, author string) (*models.Plan, *importer.Result, error) {
	res, err := importer.Import(r, opts)
	if err != nil {
		return nil, nil, err
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	plan, err := models.NewPlan(name, projectID, scale)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.AddPlan(plan); err != nil {
		return nil, nil, err
	}
	imported := res.State
	_, err = s.versioner.Commit(s.ws, plan.ID, versioning.CommitOptions{
		Author:  author,
		Message: fmt.Sprintf("Import %d walls, %d zones, %d markers", res.Walls, res.Zones, res.Markers),
	}, func(st *models.PlanState) error {
		*st = imported.Clone()
		return nil
	})
	if s.metrics != nil {
		s.metrics.commit("import", err)
	}
	if err != nil {
		_ = s.ws.DeletePlan(plan.ID)
		return nil, nil, err
	}

	s.refresh(plan.ID)
	if s.metrics != nil {
		s.metrics.Plans.Set(float64(len(s.ws.Plans)))
	}
	s.persist()
	s.logger.Info().Str("plan", plan.ID).Int("skipped", len(res.Skipped)).Msg("plan imported")

	out, err := s.scored(plan.ID)
	if err != nil {
		return nil, nil, err
	}
	return out, res, nil
}

// ============================================================
// History
// ============================================================

// Commit компилирует операции и фиксирует их одним коммитом.
func (s *Workspace) Commit(planID string, opts versioning.CommitOptions, ops []edits.Operation) (*models.Commit, error) {
	mutate, err := edits.Compile(planID, ops)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.versioner.Commit(s.ws, planID, opts, mutate)
	if s.metrics != nil {
		s.metrics.commit("commit", err)
	}
	if err != nil {
		return nil, err
	}
	s.afterWrite(planID, c)
	return c, nil
}

func (s *Workspace) Revert(planID, commitID string, opts versioning.CommitOptions) (*models.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.versioner.Revert(s.ws, planID, commitID, opts)
	if s.metrics != nil {
		s.metrics.commit("revert", err)
	}
	if err != nil {
		return nil, err
	}
	s.afterWrite(planID, c)
	return c, nil
}

func (s *Workspace) afterWrite(planID string, c *models.Commit) {
	s.refresh(planID)
	s.persist()
	s.logger.Info().Str("plan", planID).Str("commit", c.ID).Int("seq", c.Seq).Str("message", c.Message).Msg("commit")
}

func (s *Workspace) History(planID string) ([]*models.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versioner.History(s.ws, planID)
}

// Checkout восстанавливает состояние плана на момент коммита. Текущий
// head не меняется.
func (s *Workspace) Checkout(planID, commitID string) (models.PlanState, *models.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.versioner.Checkout(s.ws, planID, commitID)
	if err != nil {
		return models.PlanState{}, nil, err
	}
	c, err := s.ws.Commit(commitID)
	if err != nil {
		return models.PlanState{}, nil, err
	}
	return state, c.Clone(), nil
}

// ============================================================
// Risk & findings
// ============================================================

func (s *Workspace) Risk(planID string) (map[string]models.RiskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.ws.Plan(planID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RiskEvaluations.Inc()
	}
	return s.rules.Load().Evaluate(plan, s.ws.FindingsFor(planID)), nil
}

func (s *Workspace) Findings(planID string) ([]models.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ws.Plan(planID); err != nil {
		return nil, err
	}
	return s.ws.FindingsFor(planID), nil
}

func (s *Workspace) Rules() risk.RulesConfig {
	return s.rules.Load().Rules()
}

// ============================================================
// Views
// ============================================================

func (s *Workspace) View2D(planID string, vp views.Viewport) (*views.View2D, error) {
	s.mu.Lock()
	plan, err := s.scored(planID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return views.Build2D(plan, vp), nil
}

func (s *Workspace) View3D(planID string, highlight ...string) (*views.Scene3D, error) {
	s.mu.Lock()
	plan, err := s.scored(planID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	scene := views.Build3D(plan)
	scene.Highlight(highlight...)
	return scene, nil
}

func (s *Workspace) ExportSVG(planID string) (string, error) {
	s.mu.Lock()
	plan, err := s.scored(planID)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return views.ExportSVG(plan)
}
