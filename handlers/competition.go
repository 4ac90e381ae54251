// handlers/competition.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"competition-engine/middleware"
	"competition-engine/models"
	"competition-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type Handler struct {
	svc    *services.Services
	logger *slog.Logger
}

func NewHandler(svc *services.Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Roles read from the X-User-Roles header set by the Gateway.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// SetupCompetitionRoutes registers every competition engine route.
func SetupCompetitionRoutes(router fiber.Router, h *Handler) {
	admin := middleware.RequireRole(RoleAdmin)

	router.Post("/competitions", h.CreateCompetition)
	router.Get("/competitions", h.ListCompetitions)
	router.Get("/competitions/:id", h.GetCompetition)
	router.Patch("/competitions/:id", admin, h.UpdateCompetition)
	router.Delete("/competitions/:id", admin, h.DeleteCompetition)

	// Stages
	router.Post("/competitions/:id/stages", admin, h.CreateStage)
	router.Get("/competitions/:id/stages", h.ListStages)
	router.Put("/competitions/:id/stages/:stage_id", admin, h.UpdateStage)
	router.Delete("/competitions/:id/stages/:stage_id", admin, h.DeleteStage)

	// Players
	router.Post("/competitions/:id/players", h.RegisterPlayer)
	router.Get("/competitions/:id/players", admin, h.ListPlayers)
	router.Get("/competitions/:id/players/:player_id", h.GetPlayer)
	router.Patch("/competitions/:id/players/:player_id", admin, h.UpdatePlayer)
	router.Delete("/competitions/:id/players/:player_id", admin, h.DeletePlayer)

	setupChainRoutes(router, h)
	setupEntryRoutes(router, h)
	setupModerationRoutes(router, h)
}

type createCompetitionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) CreateCompetition(c *fiber.Ctx) error {
	var req createCompetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	comp, err := h.svc.Competitions.CreateCompetition(c.UserContext(), models.Competition{
		OwnerID:     middleware.UserID(c),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comp)
}

func (h *Handler) ListCompetitions(c *fiber.Ctx) error {
	comps, err := h.svc.Competitions.ListCompetitions(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(comps)
}

func (h *Handler) GetCompetition(c *fiber.Ctx) error {
	comp, err := h.svc.Competitions.GetCompetition(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(comp)
}

func (h *Handler) UpdateCompetition(c *fiber.Ctx) error {
	var patch services.CompetitionPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	comp, err := h.svc.Competitions.UpdateCompetition(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(comp)
}

func (h *Handler) DeleteCompetition(c *fiber.Ctx) error {
	ok, err := h.svc.Competitions.DeleteCompetition(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrCompetitionNotFound.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type createStageRequest struct {
	Type           models.StageType      `json:"type"`
	Name           string                `json:"name"`
	StartTime      time.Time             `json:"start_time"`
	EndTime        time.Time             `json:"end_time"`
	TransitionMode models.TransitionMode `json:"transition_mode"`
	ManualAdvance  bool                  `json:"manual_advance"`
	Rules          json.RawMessage       `json:"rules"`
}

func (h *Handler) CreateStage(c *fiber.Ctx) error {
	var req createStageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	stage, err := h.svc.Stages.CreateStage(c.UserContext(), c.Params("id"), models.Stage{
		Type:           req.Type,
		Name:           req.Name,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		TransitionMode: req.TransitionMode,
		ManualAdvance:  req.ManualAdvance,
		RuleSet:        datatypes.JSON(req.Rules),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stage)
}

func (h *Handler) ListStages(c *fiber.Ctx) error {
	stages, err := h.svc.Stages.ListStages(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(stages)
}

func (h *Handler) UpdateStage(c *fiber.Ctx) error {
	var patch services.StagePatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	stage, err := h.svc.Stages.GetStage(c.UserContext(), c.Params("stage_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if stage.CompetitionID != c.Params("id") {
		return respondError(c, h.logger, services.ErrStageNotFound)
	}
	stage, err = h.svc.Stages.UpdateStage(c.UserContext(), stage.ID, patch)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(stage)
}

// DeleteStage removes a stage. A chained stage needs ?cascade=true, which
// deletes the chain with its entries and players first.
func (h *Handler) DeleteStage(c *fiber.Ctx) error {
	stage, err := h.svc.Stages.GetStage(c.UserContext(), c.Params("stage_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if stage.CompetitionID != c.Params("id") {
		return respondError(c, h.logger, services.ErrStageNotFound)
	}
	ok, err := h.svc.Stages.DeleteStage(c.UserContext(), stage.ID, c.QueryBool("cascade"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !ok {
		return respondError(c, h.logger, services.ErrStageNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type registerPlayerRequest struct {
	Email    string          `json:"email"`
	Metadata json.RawMessage `json:"metadata"`
}

func (h *Handler) RegisterPlayer(c *fiber.Ctx) error {
	var req registerPlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	player, err := h.svc.Players.RegisterPlayer(c.UserContext(), c.Params("id"), models.Player{
		Email:    req.Email,
		Metadata: datatypes.JSON(req.Metadata),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

func (h *Handler) ListPlayers(c *fiber.Ctx) error {
	players, err := h.svc.Players.ListPlayers(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(players)
}

func (h *Handler) GetPlayer(c *fiber.Ctx) error {
	player, err := h.svc.Players.GetPlayer(c.UserContext(), c.Params("id"), c.Params("player_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(player)
}

func (h *Handler) UpdatePlayer(c *fiber.Ctx) error {
	var patch services.PlayerPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	player, err := h.svc.Players.UpdatePlayer(c.UserContext(), c.Params("id"), c.Params("player_id"), patch)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(player)
}

// DeletePlayer removes the player together with its entries.
func (h *Handler) DeletePlayer(c *fiber.Ctx) error {
	ok, err := h.svc.Players.DeletePlayer(c.UserContext(), c.Params("id"), c.Params("player_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !ok {
		return respondError(c, h.logger, services.ErrPlayerNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
