package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/service"
)

type PoolHandler struct {
	poolService service.PoolService
}

func NewPoolHandler(poolService service.PoolService) *PoolHandler {
	return &PoolHandler{poolService: poolService}
}

// ListPool returns open entries. Filters: ?reason=&category=&product=&others=true
// GET /api/v1/pool
func (h *PoolHandler) ListPool(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	filter := repository.PoolFilter{
		Category: c.Query("category"),
		Product:  c.Query("product"),
	}
	if raw := c.Query("reason"); raw != "" {
		reason, ok := model.ParsePoolReason(raw)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown pool reason"})
		}
		filter.Reason = reason
	}
	if c.QueryBool("others") && actor.PartyID != nil {
		filter.ExcludeParty = actor.PartyID
	}

	entries, err := h.poolService.ListOpen(c.UserContext(), actor, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(entries)
}

// OfferToPool moves quantity from an owned batch into the pool.
// POST /api/v1/pool
func (h *PoolHandler) OfferToPool(c *fiber.Ctx) error {
	var req service.OfferRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	entry, err := h.poolService.Offer(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Stock offered to pool",
		"data":    entry,
	})
}

// ClaimEntry claims an open entry; only one claimant wins.
// POST /api/v1/pool/:id/claim
func (h *PoolHandler) ClaimEntry(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "pool entry")
	}
	transfer, err := h.poolService.Claim(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Pool entry claimed",
		"data":    transfer,
	})
}

// WithdrawEntry returns an open entry to its batch.
// POST /api/v1/pool/:id/withdraw
func (h *PoolHandler) WithdrawEntry(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "pool entry")
	}
	entry, err := h.poolService.Withdraw(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Pool entry withdrawn",
		"data":    entry,
	})
}
