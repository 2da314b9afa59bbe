package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/service"
)

type PartyHandler struct {
	partyService service.PartyService
}

func NewPartyHandler(partyService service.PartyService) *PartyHandler {
	return &PartyHandler{partyService: partyService}
}

// ListParties returns every party, optionally filtered with ?tier=
// GET /api/v1/parties
func (h *PartyHandler) ListParties(c *fiber.Ctx) error {
	parties, err := h.partyService.List(c.UserContext(), c.Query("tier"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(parties)
}

// GetParty returns one party.
// GET /api/v1/parties/:id
func (h *PartyHandler) GetParty(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "party")
	}
	party, err := h.partyService.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(party)
}

// CreateParty registers a producer, supermarket or local market.
// POST /api/v1/parties
func (h *PartyHandler) CreateParty(c *fiber.Ctx) error {
	var req service.PartyRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	party, err := h.partyService.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Party created successfully",
		"data":    party,
	})
}
