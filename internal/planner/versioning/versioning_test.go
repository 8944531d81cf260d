package versioning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

func square(x, y, size float64) geometry.Polygon {
	return geometry.Polygon{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

func newWorkspace(t *testing.T) (*models.Workspace, *models.Plan) {
	t.Helper()
	ws := models.NewWorkspace()
	plan, err := models.NewPlan("Warehouse", "proj-1", 0.01)
	require.NoError(t, err)
	require.NoError(t, ws.AddPlan(plan))
	return ws, plan
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%03d", n)
	}
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Minute)
		return at
	}
}

func newVersioner(opts ...Option) *Versioner {
	return New(append([]Option{WithIDGenerator(sequentialIDs()), WithClock(fixedClock())}, opts...)...)
}

// seed commits a layer with two zones and returns their ids.
func seed(t *testing.T, v *Versioner, ws *models.Workspace, planID string) (layerID, zoneA, zoneB string) {
	t.Helper()
	layer, err := models.NewLayer("ground", models.LayerArchitectural, 0)
	require.NoError(t, err)
	a, err := models.NewZone(layer.ID, square(0, 0, 10), "storage")
	require.NoError(t, err)
	b, err := models.NewZone(layer.ID, square(10, 0, 10), "office")
	require.NoError(t, err)

	_, err = v.Commit(ws, planID, CommitOptions{Author: "alice", Message: "initial"}, func(s *models.PlanState) error {
		if err := s.AddLayer(layer); err != nil {
			return err
		}
		if err := s.AddElement(a); err != nil {
			return err
		}
		return s.AddElement(b)
	})
	require.NoError(t, err)
	return layer.ID, a.ID, b.ID
}

func addFinding(t *testing.T, v *Versioner, ws *models.Workspace, planID, zoneID string, sev int) *models.Commit {
	t.Helper()
	f, err := models.NewFinding(planID, models.FindingFallRisk, sev, 2, "open edge")
	require.NoError(t, err)
	f.ZoneID = zoneID
	c, err := v.Commit(ws, planID, CommitOptions{Message: "finding"}, func(s *models.PlanState) error {
		return s.AddFinding(f)
	})
	require.NoError(t, err)
	return c
}

// ============================================================
// Diff
// ============================================================

func TestComputeDiffIdentical(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	s, err := ws.State(plan.ID)
	require.NoError(t, err)
	assert.True(t, ComputeDiff(s, s.Clone()).Empty())
}

func TestComputeDiffIgnoresRiskCache(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)

	prev, err := ws.State(plan.ID)
	require.NoError(t, err)
	next := prev.Clone()
	for i := range next.Elements {
		if z, ok := next.Elements[i].Zone(); ok && next.Elements[i].ID == zoneA {
			z.Risk = &models.RiskSummary{ZoneID: zoneA, Index: 40, Level: models.RiskHigh}
		}
	}
	assert.True(t, ComputeDiff(prev, next).Empty())
}

func TestComputeDiffClassifiesChanges(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	layerID, zoneA, zoneB := seed(t, v, ws, plan.ID)

	prev, err := ws.State(plan.ID)
	require.NoError(t, err)
	next := prev.Clone()
	require.NoError(t, next.RemoveElement(zoneB))
	wall, err := models.NewWall(layerID, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 10, Y: 0}, 0.2, 3)
	require.NoError(t, err)
	require.NoError(t, next.AddElement(wall))
	el, _ := next.Element(zoneA)
	el = el.Clone()
	z, _ := el.Zone()
	z.Usage = "workshop"
	require.NoError(t, next.UpdateElement(el))

	d := ComputeDiff(prev, next)
	require.Len(t, d.Elements.Added, 1)
	assert.Equal(t, wall.ID, d.Elements.Added[0].ID)
	require.Len(t, d.Elements.Updated, 1)
	assert.Equal(t, zoneA, d.Elements.Updated[0].ID)
	assert.Equal(t, []string{zoneB}, d.Elements.Removed)
	assert.True(t, d.Layers.Empty())
}

func TestApplyDiffRoundTrip(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	layerID, zoneA, _ := seed(t, v, ws, plan.ID)
	addFinding(t, v, ws, plan.ID, zoneA, 3)

	prev, err := ws.State(plan.ID)
	require.NoError(t, err)
	next := prev.Clone()
	require.NoError(t, next.RemoveLayer(layerID))
	next.Normalize()

	d := ComputeDiff(prev, next)
	assert.Equal(t, next, ApplyDiff(prev, d))
	assert.Equal(t, prev, ApplyDiff(next, ComputeDiff(next, prev)))
}

func TestApplyDiffIdempotent(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	prev, err := ws.State(plan.ID)
	require.NoError(t, err)
	next := prev.Clone()
	layer, err := models.NewLayer("safety", models.LayerSafety, 1)
	require.NoError(t, err)
	require.NoError(t, next.AddLayer(layer))

	d := ComputeDiff(prev, next)
	once := ApplyDiff(prev, d)
	assert.Equal(t, once, ApplyDiff(once, d))
}

func TestApplyDiffDoesNotMutateInput(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)

	prev, err := ws.State(plan.ID)
	require.NoError(t, err)
	before := prev.Clone()
	next := prev.Clone()
	require.NoError(t, next.RemoveElement(zoneA))

	ApplyDiff(prev, ComputeDiff(prev, next))
	assert.Equal(t, before, prev)
}

// ============================================================
// Commit
// ============================================================

func TestCommitRootAndLinearHistory(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)
	c2 := addFinding(t, v, ws, plan.ID, zoneA, 3)
	c3 := addFinding(t, v, ws, plan.ID, zoneA, 4)

	history, err := v.History(ws, plan.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, c3.ID, history[0].ID)
	assert.Equal(t, c2.ID, history[1].ID)
	assert.Empty(t, history[2].ParentIDs)
	assert.Equal(t, 1, history[2].Seq)
	assert.NotNil(t, history[2].Snapshot)
	assert.Equal(t, []string{c2.ID}, c3.ParentIDs)
	assert.Equal(t, 3, c3.Seq)

	head, ok := ws.Head(plan.ID)
	require.True(t, ok)
	assert.Equal(t, c3.ID, head)
	assert.Equal(t, []string{"c001", "c002", "c003"}, ws.Plans[plan.ID].Commits)
}

func TestCommitRejectsEmptyChange(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	_, err := v.Commit(ws, plan.ID, CommitOptions{}, func(*models.PlanState) error { return nil })
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Len(t, ws.Commits, 1)
}

func TestCommitIsAtomicOnValidationFailure(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	layerID, _, _ := seed(t, v, ws, plan.ID)
	before, err := ws.State(plan.ID)
	require.NoError(t, err)
	head, _ := ws.Head(plan.ID)

	_, err = v.Commit(ws, plan.ID, CommitOptions{}, func(s *models.PlanState) error {
		bad, err := models.NewZone(layerID, square(50, 50, 5), "yard")
		if err != nil {
			return err
		}
		bad.LayerID = "missing-layer"
		return s.AddElement(bad)
	})
	require.ErrorIs(t, err, models.ErrValidation)

	after, err := ws.State(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	newHead, _ := ws.Head(plan.ID)
	assert.Equal(t, head, newHead)
	assert.Len(t, ws.Commits, 1)
}

func TestCommitMutationErrorPropagates(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	_, err := v.Commit(ws, plan.ID, CommitOptions{}, func(s *models.PlanState) error {
		return s.RemoveElement("nope")
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCommitExpectedHead(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	layer, err := models.NewLayer("ground", models.LayerArchitectural, 0)
	require.NoError(t, err)

	_, err = v.Commit(ws, plan.ID, CommitOptions{ExpectedHead: "c999"}, func(s *models.PlanState) error {
		return s.AddLayer(layer)
	})
	require.ErrorIs(t, err, models.ErrConflict)

	root, err := v.Commit(ws, plan.ID, CommitOptions{ExpectedHead: NoHead}, func(s *models.PlanState) error {
		return s.AddLayer(layer)
	})
	require.NoError(t, err)

	other, err := models.NewLayer("safety", models.LayerSafety, 1)
	require.NoError(t, err)
	_, err = v.Commit(ws, plan.ID, CommitOptions{ExpectedHead: NoHead}, func(s *models.PlanState) error {
		return s.AddLayer(other)
	})
	require.ErrorIs(t, err, models.ErrConflict)

	_, err = v.Commit(ws, plan.ID, CommitOptions{ExpectedHead: root.ID}, func(s *models.PlanState) error {
		return s.AddLayer(other)
	})
	require.NoError(t, err)
}

func TestCommitUnknownPlan(t *testing.T) {
	ws, _ := newWorkspace(t)
	v := newVersioner()
	_, err := v.Commit(ws, "missing", CommitOptions{}, func(*models.PlanState) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================
// Checkout
// ============================================================

func TestCheckoutEachCommit(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, zoneB := seed(t, v, ws, plan.ID)
	s1, err := ws.State(plan.ID)
	require.NoError(t, err)

	addFinding(t, v, ws, plan.ID, zoneA, 3)
	s2, err := ws.State(plan.ID)
	require.NoError(t, err)

	_, err = v.Commit(ws, plan.ID, CommitOptions{Message: "link"}, func(s *models.PlanState) error {
		return s.LinkZones(zoneA, zoneB)
	})
	require.NoError(t, err)
	s3, err := ws.State(plan.ID)
	require.NoError(t, err)

	history, err := v.History(ws, plan.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, want := range []models.PlanState{s3, s2, s1} {
		got, err := v.Checkout(ws, plan.ID, history[i].ID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "commit %s", history[i].ID)
	}
	require.NoError(t, v.Verify(ws, plan.ID))
}

func TestCheckoutUsesSnapshots(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner(WithSnapshotInterval(3))
	_, zoneA, _ := seed(t, v, ws, plan.ID)

	var last *models.Commit
	for i := 0; i < 6; i++ {
		last = addFinding(t, v, ws, plan.ID, zoneA, 1+i%5)
	}
	// seq 1..7, снимки на 1, 3 и 6
	assert.Equal(t, 7, last.Seq)
	for _, c := range ws.PlanCommits(plan.ID) {
		hasSnapshot := c.Seq == 1 || c.Seq%3 == 0
		assert.Equal(t, hasSnapshot, c.Snapshot != nil, "seq %d", c.Seq)
	}

	state, replayed, err := v.Replay(ws, plan.ID, last.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	current, err := ws.State(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, current, state)
}

func TestCheckoutNotFound(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	_, err := v.Checkout(ws, plan.ID, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	other, err := models.NewPlan("Office", "", 1)
	require.NoError(t, err)
	require.NoError(t, ws.AddPlan(other))
	head, _ := ws.Head(plan.ID)
	_, err = v.Checkout(ws, other.ID, head)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCheckoutRejectsMergeCommits(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)
	c := addFinding(t, v, ws, plan.ID, zoneA, 2)
	ws.Commits[c.ID].ParentIDs = append(ws.Commits[c.ID].ParentIDs, "c001")

	_, err := v.Checkout(ws, plan.ID, c.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCheckoutDetectsCycle(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)
	c2 := addFinding(t, v, ws, plan.ID, zoneA, 2)
	c3 := addFinding(t, v, ws, plan.ID, zoneA, 3)
	ws.Commits[c2.ID].ParentIDs = []string{c3.ID}

	_, err := v.Checkout(ws, plan.ID, c3.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
}

// ============================================================
// Revert
// ============================================================

func TestRevert(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	_, zoneA, _ := seed(t, v, ws, plan.ID)
	before, err := ws.State(plan.ID)
	require.NoError(t, err)

	c := addFinding(t, v, ws, plan.ID, zoneA, 3)
	r, err := v.Revert(ws, plan.ID, c.ID, CommitOptions{Author: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, r.ParentIDs)
	assert.Contains(t, r.Message, "Revert")
	assert.Equal(t, "bob", r.Author)

	after, err := ws.State(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.NoError(t, v.Verify(ws, plan.ID))
}

func TestRevertRootEmptiesPlan(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)
	root := ws.PlanCommits(plan.ID)[0]

	_, err := v.Revert(ws, plan.ID, root.ID, CommitOptions{})
	require.NoError(t, err)
	s, err := ws.State(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanState{}, s)
}

func TestRevertUnknownCommit(t *testing.T) {
	ws, plan := newWorkspace(t)
	v := newVersioner()
	seed(t, v, ws, plan.ID)

	_, err := v.Revert(ws, plan.ID, "nope", CommitOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
