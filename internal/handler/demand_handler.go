package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/service"
)

const defaultDemandDays = 30

type DemandHandler struct {
	demandService service.DemandService
}

func NewDemandHandler(demandService service.DemandService) *DemandHandler {
	return &DemandHandler{demandService: demandService}
}

type demandQuery struct {
	partyID uuid.UUID
	product string
	days    int
}

// parseDemandQuery reads ?party=&product=&days=. party defaults to the
// caller's own party.
func parseDemandQuery(c *fiber.Ctx, actor service.Actor) (demandQuery, error) {
	q := demandQuery{product: c.Query("product"), days: c.QueryInt("days", defaultDemandDays)}
	if raw := c.Query("party"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "Invalid party ID")
		}
		q.partyID = id
	} else if actor.PartyID != nil {
		q.partyID = *actor.PartyID
	} else {
		return q, fiber.NewError(fiber.StatusBadRequest, "party query parameter is required")
	}
	if q.product == "" {
		return q, fiber.NewError(fiber.StatusBadRequest, "product query parameter is required")
	}
	return q, nil
}

// GetDemand returns daily sold quantities.
// GET /api/v1/demand
func (h *DemandHandler) GetDemand(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	q, err := parseDemandQuery(c, actor)
	if err != nil {
		return err
	}
	series, err := h.demandService.DailyDemand(c.UserContext(), actor, q.partyID, q.product, q.days, time.Now().UTC())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(series)
}

// GetForecast proxies the external forecast service.
// GET /api/v1/forecast
func (h *DemandHandler) GetForecast(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	q, err := parseDemandQuery(c, actor)
	if err != nil {
		return err
	}
	result, err := h.demandService.Forecast(c.UserContext(), actor, q.partyID, q.product, q.days)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}
