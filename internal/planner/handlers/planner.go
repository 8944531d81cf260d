package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"safety-planner/internal/planner/edits"
	"safety-planner/internal/planner/importer"
	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/service"
	"safety-planner/internal/planner/snapshot"
	"safety-planner/internal/planner/versioning"
	"safety-planner/internal/planner/views"
)

// ============================================================
// Planner Handler
// ============================================================

type PlannerHandler struct {
	svc    *service.Workspace
	logger zerolog.Logger
}

func NewPlannerHandler(svc *service.Workspace, logger zerolog.Logger) *PlannerHandler {
	return &PlannerHandler{
		svc:    svc,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Register вешает маршруты API на router (обычно группа /api/v1).
func (h *PlannerHandler) Register(router fiber.Router) {
	router.Get("/plans", h.ListPlans)
	router.Post("/plans", h.CreatePlan)
	router.Post("/plans/import", h.ImportPlan)
	router.Get("/plans/:id", h.GetPlan)
	router.Delete("/plans/:id", h.DeletePlan)
	router.Get("/plans/:id/commits", h.History)
	router.Post("/plans/:id/commits", h.Commit)
	router.Get("/plans/:id/commits/:commitId", h.Checkout)
	router.Post("/plans/:id/commits/:commitId/revert", h.Revert)
	router.Get("/plans/:id/risk", h.Risk)
	router.Get("/plans/:id/findings", h.Findings)
	router.Get("/plans/:id/views/2d", h.View2D)
	router.Get("/plans/:id/views/3d", h.View3D)
	router.Get("/plans/:id/export.svg", h.ExportSVG)
	router.Get("/rules", h.Rules)
}

type createPlanRequest struct {
	Name      string  `json:"name"`
	ProjectID string  `json:"projectId"`
	Scale     float64 `json:"scale"`
}

type commitRequest struct {
	Author       string            `json:"author"`
	Message      string            `json:"message"`
	ExpectedHead string            `json:"expectedHead"`
	Operations   []edits.Operation `json:"operations"`
}

type revertRequest struct {
	Author       string `json:"author"`
	Message      string `json:"message"`
	ExpectedHead string `json:"expectedHead"`
}

// commitPayload: запись истории без диффов.
type commitPayload struct {
	ID          string    `json:"id"`
	ParentIDs   []string  `json:"parentIds,omitempty"`
	Seq         int       `json:"seq"`
	Author      string    `json:"author,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	HasSnapshot bool      `json:"hasSnapshot"`
}

func mapCommit(c *models.Commit) commitPayload {
	return commitPayload{
		ID:          c.ID,
		ParentIDs:   c.ParentIDs,
		Seq:         c.Seq,
		Author:      c.Author,
		Message:     c.Message,
		CreatedAt:   c.CreatedAt,
		HasSnapshot: c.Snapshot != nil,
	}
}

// ============================================================
// Plans
// ============================================================

func (h *PlannerHandler) ListPlans(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": h.svc.ListPlans()})
}

func (h *PlannerHandler) CreatePlan(c fiber.Ctx) error {
	var req createPlanRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.Scale == 0 {
		req.Scale = 1
	}

	plan, err := h.svc.CreatePlan(req.Name, req.ProjectID, req.Scale)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(snapshot.PlanToRecord(plan))
}

func (h *PlannerHandler) GetPlan(c fiber.Ctx) error {
	planID := planParam(c)
	plan, err := h.svc.Plan(planID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snapshot.PlanToRecord(plan))
}

func (h *PlannerHandler) DeletePlan(c fiber.Ctx) error {
	if err := h.svc.DeletePlan(planParam(c)); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ImportPlan принимает SVG телом запроса; name, projectId, scale,
// wallHeight и author передаются в query.
func (h *PlannerHandler) ImportPlan(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}

	name := c.Query("name")
	if name == "" {
		name = "Imported plan"
	}

	opts := importer.Options{}
	var err error
	if opts.Scale, err = queryFloat(c, "scale"); err != nil {
		return h.fail(c, err)
	}
	if opts.WallHeight, err = queryFloat(c, "wallHeight"); err != nil {
		return h.fail(c, err)
	}

	plan, res, err := h.svc.ImportPlan(name, c.Query("projectId"), bytes.NewReader(body), opts, c.Query("author"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"plan":    snapshot.PlanToRecord(plan),
		"walls":   res.Walls,
		"zones":   res.Zones,
		"markers": res.Markers,
		"skipped": res.Skipped,
	})
}

// ============================================================
// Commits
// ============================================================

func (h *PlannerHandler) History(c fiber.Ctx) error {
	history, err := h.svc.History(planParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]commitPayload, 0, len(history))
	for _, commit := range history {
		out = append(out, mapCommit(commit))
	}
	return c.JSON(fiber.Map{"commits": out})
}

func (h *PlannerHandler) Commit(c fiber.Ctx) error {
	var req commitRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.ExpectedHead == "" {
		req.ExpectedHead = c.Get(fiber.HeaderIfMatch)
	}

	commit, err := h.svc.Commit(planParam(c), versioning.CommitOptions{
		Author:       req.Author,
		Message:      req.Message,
		ExpectedHead: req.ExpectedHead,
	}, req.Operations)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(snapshot.CommitToRecord(commit))
}

// Checkout отдает коммит и состояние плана на его момент.
func (h *PlannerHandler) Checkout(c fiber.Ctx) error {
	state, commit, err := h.svc.Checkout(planParam(c), c.Params("commitId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"commit": mapCommit(commit),
		"state":  snapshot.StateToRecord(state),
	})
}

func (h *PlannerHandler) Revert(c fiber.Ctx) error {
	var req revertRequest
	if len(c.Body()) > 0 {
		if err := decodeBody(c, &req); err != nil {
			return h.fail(c, err)
		}
	}

	commit, err := h.svc.Revert(planParam(c), c.Params("commitId"), versioning.CommitOptions{
		Author:       req.Author,
		Message:      req.Message,
		ExpectedHead: req.ExpectedHead,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(snapshot.CommitToRecord(commit))
}

// ============================================================
// Risk & findings
// ============================================================

func (h *PlannerHandler) Risk(c fiber.Ctx) error {
	planID := planParam(c)
	zones, err := h.svc.Risk(planID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"planId": planID, "zones": zones})
}

func (h *PlannerHandler) Findings(c fiber.Ctx) error {
	findings, err := h.svc.Findings(planParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	if zoneID := c.Query("zoneId"); zoneID != "" {
		filtered := findings[:0]
		for _, f := range findings {
			if f.ZoneID == zoneID {
				filtered = append(filtered, f)
			}
		}
		findings = filtered
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	return c.JSON(fiber.Map{"findings": findings})
}

func (h *PlannerHandler) Rules(c fiber.Ctx) error {
	return c.JSON(h.svc.Rules())
}

// ============================================================
// Views
// ============================================================

// View2D: width/height задают размер холста; без scale план вписывается.
func (h *PlannerHandler) View2D(c fiber.Ctx) error {
	var vp views.Viewport
	var err error
	for key, dst := range map[string]*float64{
		"width":   &vp.Width,
		"height":  &vp.Height,
		"scale":   &vp.Transform.Scale,
		"offsetX": &vp.Transform.Offset.X,
		"offsetY": &vp.Transform.Offset.Y,
	} {
		if *dst, err = queryFloat(c, key); err != nil {
			return h.fail(c, err)
		}
	}

	view, err := h.svc.View2D(planParam(c), vp)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(view)
}

func (h *PlannerHandler) View3D(c fiber.Ctx) error {
	var highlight []string
	if raw := c.Query("highlight"); raw != "" {
		highlight = strings.Split(raw, ",")
	}
	scene, err := h.svc.View3D(planParam(c), highlight...)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(scene)
}

func (h *PlannerHandler) ExportSVG(c fiber.Ctx) error {
	svg, err := h.svc.ExportSVG(planParam(c))
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

// ============================================================
// Helpers
// ============================================================

func planParam(c fiber.Ctx) string {
	id := c.Params("id")
	c.Locals("planID", id)
	return id
}

// decodeBody разбирает JSON-тело; ошибки формата относятся к валидации.
func decodeBody(c fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return fmt.Errorf("%w: empty body", models.ErrValidation)
	}
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", models.ErrValidation, err)
	}
	return nil
}

// queryFloat читает необязательный числовой параметр; отсутствие дает 0.
func queryFloat(c fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: query %s: %v", models.ErrValidation, key, err)
	}
	return v, nil
}

// fail переводит ошибку домена в HTTP-статус.
func (h *PlannerHandler) fail(c fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
