package snapshot_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/snapshot"
	"safety-planner/internal/planner/versioning"
)

func buildWorkspace(t *testing.T) *models.Workspace {
	t.Helper()
	ws := models.NewWorkspace()
	plan, err := models.NewPlan("Depot", "proj-7", 0.02)
	require.NoError(t, err)
	require.NoError(t, ws.AddPlan(plan))

	layer, err := models.NewLayer("ground", models.LayerArchitectural, 0)
	require.NoError(t, err)
	zone, err := models.NewZone(layer.ID, geometry.Polygon{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}}, "loading")
	require.NoError(t, err)
	wall, err := models.NewWall(layer.ID, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 4, Y: 0}, 0.25, 3)
	require.NoError(t, err)
	marker, err := models.NewMarker(layer.ID, geometry.Point{X: 1, Y: 1}, models.PointEquipment, map[string]string{"kind": "extinguisher"})
	require.NoError(t, err)
	finding, err := models.NewFinding(plan.ID, models.FindingObstruction, 2, 3, "pallets in aisle")
	require.NoError(t, err)
	finding.ZoneID = zone.ID
	finding.PhotoRefs = []string{"photo-1.jpg"}

	v := versioning.New()
	_, err = v.Commit(ws, plan.ID, versioning.CommitOptions{Author: "alice", Message: "initial"}, func(s *models.PlanState) error {
		if err := s.AddLayer(layer); err != nil {
			return err
		}
		for _, e := range []models.Element{zone, wall, marker} {
			if err := s.AddElement(e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	_, err = v.Commit(ws, plan.ID, versioning.CommitOptions{Message: "finding"}, func(s *models.PlanState) error {
		return s.AddFinding(finding)
	})
	require.NoError(t, err)
	return ws
}

func TestSerializeRoundTrip(t *testing.T) {
	ws := buildWorkspace(t)

	flat := snapshot.Serialize(ws)
	assert.Equal(t, snapshot.Version, flat.Version)
	assert.Len(t, flat.Plans, 1)
	assert.Len(t, flat.Commits, 2)
	assert.Len(t, flat.Heads, 1)

	restored, err := snapshot.Deserialize(flat)
	require.NoError(t, err)
	assert.Equal(t, flat, snapshot.Serialize(restored))
}

func TestJSONRoundTrip(t *testing.T) {
	ws := buildWorkspace(t)
	flat := snapshot.Serialize(ws)

	var buf bytes.Buffer
	require.NoError(t, snapshot.EncodeJSON(&buf, flat))
	decoded, err := snapshot.DecodeJSON(&buf)
	require.NoError(t, err)

	restored, err := snapshot.Deserialize(decoded)
	require.NoError(t, err)
	planID := ws.PlanIDs()[0]
	want, err := ws.State(planID)
	require.NoError(t, err)
	got, err := restored.State(planID)
	require.NoError(t, err)
	assert.True(t, versioning.ComputeDiff(want, got).Empty())

	head, _ := ws.Head(planID)
	restoredHead, _ := restored.Head(planID)
	assert.Equal(t, head, restoredHead)
	require.NoError(t, versioning.New().Verify(restored, planID))
}

func TestCBORRoundTrip(t *testing.T) {
	ws := buildWorkspace(t)
	flat := snapshot.Serialize(ws)

	data, err := snapshot.EncodeCBOR(flat)
	require.NoError(t, err)
	again, err := snapshot.EncodeCBOR(flat)
	require.NoError(t, err)
	assert.Equal(t, data, again, "canonical encoding is deterministic")

	decoded, err := snapshot.DecodeCBOR(data)
	require.NoError(t, err)
	restored, err := snapshot.Deserialize(decoded)
	require.NoError(t, err)

	planID := ws.PlanIDs()[0]
	require.NoError(t, versioning.New().Verify(restored, planID))
	history, err := versioning.New().History(restored, planID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDeserializeRejectsDuplicates(t *testing.T) {
	flat := snapshot.Serialize(buildWorkspace(t))

	dupPlans := *flat
	dupPlans.Plans = append(dupPlans.Plans, flat.Plans[0])
	_, err := snapshot.Deserialize(&dupPlans)
	assert.ErrorIs(t, err, models.ErrDuplicateID)

	dupFindings := *flat
	dupFindings.Findings = append(dupFindings.Findings, flat.Findings[0])
	_, err = snapshot.Deserialize(&dupFindings)
	assert.ErrorIs(t, err, models.ErrDuplicateID)

	dupCommits := *flat
	dupCommits.Commits = append(dupCommits.Commits, flat.Commits[0])
	_, err = snapshot.Deserialize(&dupCommits)
	assert.ErrorIs(t, err, models.ErrDuplicateID)
}

func TestDeserializeRejectsDanglingHead(t *testing.T) {
	flat := snapshot.Serialize(buildWorkspace(t))
	flat.Heads = []snapshot.HeadRecord{{PlanID: flat.Plans[0].ID, CommitID: "missing"}}

	_, err := snapshot.Deserialize(flat)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeserializeRejectsOrphanFinding(t *testing.T) {
	flat := snapshot.Serialize(buildWorkspace(t))
	flat.Findings[0].PlanID = "ghost"

	_, err := snapshot.Deserialize(flat)
	assert.Error(t, err)
}

func TestDeserializeRejectsUnknownElementKind(t *testing.T) {
	flat := snapshot.Serialize(buildWorkspace(t))
	flat.Plans[0].Elements[0].Kind = "door"

	_, err := snapshot.Deserialize(flat)
	assert.Error(t, err)
}

func TestDeserializeNewerVersion(t *testing.T) {
	_, err := snapshot.Deserialize(&snapshot.Flat{Version: snapshot.Version + 1})
	assert.Error(t, err)
	_, err = snapshot.Deserialize(nil)
	assert.Error(t, err)
}

func TestSerializeEmptyWorkspace(t *testing.T) {
	flat := snapshot.Serialize(models.NewWorkspace())
	restored, err := snapshot.Deserialize(flat)
	require.NoError(t, err)
	assert.Empty(t, restored.Plans)
}
