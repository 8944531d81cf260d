package versioning

import (
	"fmt"
	"time"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Versioner
// ============================================================

// DefaultSnapshotInterval: каждый N-й коммит хранит полное состояние,
// поэтому checkout проигрывает не больше N-1 диффов.
const DefaultSnapshotInterval = 50

// NoHead в CommitOptions.ExpectedHead означает «у плана еще нет коммитов».
const NoHead = "-"

type Versioner struct {
	snapshotInterval int
	now              func() time.Time
	newID            func() string
}

type Option func(*Versioner)

func WithSnapshotInterval(n int) Option {
	return func(v *Versioner) {
		if n > 0 {
			v.snapshotInterval = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Versioner) {
		if now != nil {
			v.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(v *Versioner) {
		if newID != nil {
			v.newID = newID
		}
	}
}

func New(opts ...Option) *Versioner {
	v := &Versioner{
		snapshotInterval: DefaultSnapshotInterval,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            models.NewID,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Versioner) SnapshotInterval() int {
	return v.snapshotInterval
}

// CommitOptions: метаданные коммита. Непустой ExpectedHead включает
// оптимистичную блокировку: коммит отклоняется с ErrConflict, если
// фактический head плана другой.
type CommitOptions struct {
	Author       string
	Message      string
	ExpectedHead string
}

// Mutation изменяет рабочую копию состояния плана.
type Mutation func(s *models.PlanState) error

// ============================================================
// Commit
// ============================================================

// Commit применяет mutation к копии текущего состояния, проверяет
// инварианты, вычисляет дифф и только после этого атомарно записывает
// коммит, новое состояние и head.
func (v *Versioner) Commit(ws *models.Workspace, planID string, opts CommitOptions, mutate Mutation) (*models.Commit, error) {
	plan, err := ws.Plan(planID)
	if err != nil {
		return nil, err
	}

	head, hasHead := ws.Head(planID)
	if opts.ExpectedHead != "" {
		want := opts.ExpectedHead
		if want == NoHead {
			want = ""
		}
		if head != want {
			return nil, fmt.Errorf("%w: plan %s head is %q, expected %q", models.ErrConflict, planID, head, want)
		}
	}

	var parent *models.Commit
	if hasHead {
		if parent, err = ws.Commit(head); err != nil {
			return nil, fmt.Errorf("plan %s head: %w", planID, err)
		}
	}

	current, err := ws.State(planID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return nil, fmt.Errorf("mutate plan %s: %w", planID, err)
	}
	next.Normalize()
	if err := models.ValidateState(planID, next); err != nil {
		return nil, err
	}

	// Корневой дифф строится от пустого состояния, чтобы replay с нуля
	// воспроизводил его без внешнего базиса.
	base := current
	if parent == nil {
		base = models.PlanState{}
	}
	diff := ComputeDiff(base, next)
	if diff.Empty() {
		return nil, &models.ValidationError{Entity: "commit", ID: planID, Reason: "nothing to commit"}
	}
	if err := diff.Validate(); err != nil {
		return nil, err
	}

	now := v.now()
	c := &models.Commit{
		ID:        v.newID(),
		PlanID:    planID,
		Seq:       1,
		Author:    opts.Author,
		Message:   opts.Message,
		CreatedAt: now,
		Diff:      diff,
		Reverse:   ComputeDiff(next, current),
	}
	if parent != nil {
		c.ParentIDs = []string{parent.ID}
		c.Seq = parent.Seq + 1
	}
	if c.Seq == 1 || c.Seq%v.snapshotInterval == 0 {
		s := next.Clone()
		c.Snapshot = &s
	}

	// Дальше ошибок быть не может: план существует, состояние проверено.
	ws.Commits[c.ID] = c
	if err := ws.SetState(planID, next, now); err != nil {
		delete(ws.Commits, c.ID)
		return nil, err
	}
	ws.Heads[planID] = c.ID
	plan.Commits = append(plan.Commits, c.ID)

	return c.Clone(), nil
}

// Revert создает новый коммит, применяющий обратный дифф commitID к
// текущему состоянию. Результат проходит ту же валидацию, что и обычный
// коммит.
func (v *Versioner) Revert(ws *models.Workspace, planID, commitID string, opts CommitOptions) (*models.Commit, error) {
	target, err := planCommit(ws, planID, commitID)
	if err != nil {
		return nil, err
	}
	if opts.Message == "" {
		opts.Message = fmt.Sprintf("Revert %q", target.Message)
	}
	reverse := target.Reverse.Clone()
	return v.Commit(ws, planID, opts, func(s *models.PlanState) error {
		*s = ApplyDiff(*s, reverse)
		return nil
	})
}

// ============================================================
// Checkout & history
// ============================================================

// Checkout восстанавливает состояние плана на момент commitID.
func (v *Versioner) Checkout(ws *models.Workspace, planID, commitID string) (models.PlanState, error) {
	state, _, err := v.Replay(ws, planID, commitID)
	return state, err
}

// Replay работает как Checkout, дополнительно возвращая число проигранных диффов.
// Обход идет от commitID к ближайшему коммиту со снимком (или к корню),
// затем диффы применяются в прямом порядке.
func (v *Versioner) Replay(ws *models.Workspace, planID, commitID string) (models.PlanState, int, error) {
	if _, err := ws.Plan(planID); err != nil {
		return models.PlanState{}, 0, err
	}
	c, err := planCommit(ws, planID, commitID)
	if err != nil {
		return models.PlanState{}, 0, err
	}

	var chain []*models.Commit
	visited := make(map[string]bool)
	for {
		if visited[c.ID] {
			return models.PlanState{}, 0, &models.ValidationError{Entity: "commit", ID: c.ID, Field: "parentIds", Reason: "history contains a cycle"}
		}
		visited[c.ID] = true
		chain = append(chain, c)

		if c.Snapshot != nil || len(c.ParentIDs) == 0 {
			break
		}
		if len(c.ParentIDs) > 1 {
			return models.PlanState{}, 0, &models.ValidationError{Entity: "commit", ID: c.ID, Field: "parentIds", Reason: "merge commits are not supported"}
		}
		if c, err = planCommit(ws, planID, c.ParentIDs[0]); err != nil {
			return models.PlanState{}, 0, fmt.Errorf("walk history: %w", err)
		}
	}

	var state models.PlanState
	start := len(chain) - 1
	if base := chain[start]; base.Snapshot != nil {
		state = base.Snapshot.Clone()
		start--
	}
	replayed := 0
	for i := start; i >= 0; i-- {
		state = ApplyDiff(state, chain[i].Diff)
		replayed++
	}
	state.Normalize()
	return state, replayed, nil
}

// History возвращает коммиты плана от head к корню.
func (v *Versioner) History(ws *models.Workspace, planID string) ([]*models.Commit, error) {
	if _, err := ws.Plan(planID); err != nil {
		return nil, err
	}
	head, ok := ws.Head(planID)
	if !ok {
		return nil, nil
	}

	var out []*models.Commit
	visited := make(map[string]bool)
	for id := head; id != ""; {
		if visited[id] {
			return nil, &models.ValidationError{Entity: "commit", ID: id, Field: "parentIds", Reason: "history contains a cycle"}
		}
		visited[id] = true
		c, err := planCommit(ws, planID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Clone())
		id = c.Parent()
	}
	return out, nil
}

// Verify проверяет, что материализованное состояние плана совпадает с
// результатом checkout его head.
func (v *Versioner) Verify(ws *models.Workspace, planID string) error {
	current, err := ws.State(planID)
	if err != nil {
		return err
	}
	head, ok := ws.Head(planID)
	if !ok {
		return nil
	}
	replayed, err := v.Checkout(ws, planID, head)
	if err != nil {
		return err
	}
	if d := ComputeDiff(replayed, current); !d.Empty() {
		return &models.ValidationError{Entity: "plan", ID: planID, Reason: "materialized state diverges from head " + head}
	}
	return nil
}

func planCommit(ws *models.Workspace, planID, commitID string) (*models.Commit, error) {
	c, err := ws.Commit(commitID)
	if err != nil {
		return nil, err
	}
	if c.PlanID != planID {
		return nil, fmt.Errorf("%w: commit %s in plan %s", models.ErrNotFound, commitID, planID)
	}
	return c, nil
}
