package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type LedgerHandler struct {
	ledgerService service.LedgerService
}

func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// GetLedger lists a party's batches.
// GET /api/v1/ledgers/:partyId?view=inventory|incoming|all
func (h *LedgerHandler) GetLedger(c *fiber.Ctx) error {
	partyID, ok := paramUUID(c, "partyId")
	if !ok {
		return invalidID(c, "party")
	}
	batches, err := h.ledgerService.ListLedger(c.UserContext(), middleware.Actor(c), partyID, c.Query("view"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(batches)
}

// GetExpiring lists accepted batches expiring within ?days=.
// GET /api/v1/ledgers/:partyId/expiring
func (h *LedgerHandler) GetExpiring(c *fiber.Ctx) error {
	partyID, ok := paramUUID(c, "partyId")
	if !ok {
		return invalidID(c, "party")
	}
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days query parameter is required"})
	}

	batches, err := h.ledgerService.ExpiringSoon(c.UserContext(), middleware.Actor(c), partyID, days, time.Now().UTC())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"days": days, "data": batches})
}

// GetSummary returns per-category totals.
// GET /api/v1/ledgers/:partyId/summary
func (h *LedgerHandler) GetSummary(c *fiber.Ctx) error {
	partyID, ok := paramUUID(c, "partyId")
	if !ok {
		return invalidID(c, "party")
	}
	summary, err := h.ledgerService.Summary(c.UserContext(), middleware.Actor(c), partyID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summary)
}

// ExportLedger downloads the ledger as XLSX.
// GET /api/v1/ledgers/:partyId/export
func (h *LedgerHandler) ExportLedger(c *fiber.Ctx) error {
	partyID, ok := paramUUID(c, "partyId")
	if !ok {
		return invalidID(c, "party")
	}
	data, err := h.ledgerService.Export(c.UserContext(), middleware.Actor(c), partyID)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, partyID))
	return c.Send(data)
}

// CreateBatch adds a batch to the caller's ledger.
// POST /api/v1/batches
func (h *LedgerHandler) CreateBatch(c *fiber.Ctx) error {
	var req service.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	batch, err := h.ledgerService.CreateBatch(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Batch created successfully",
		"data":    batch,
	})
}

// GetBatch returns one batch.
// GET /api/v1/batches/:id
func (h *LedgerHandler) GetBatch(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "batch")
	}
	batch, err := h.ledgerService.GetBatch(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(batch)
}

// UpdateBatch edits an accepted batch.
// PUT /api/v1/batches/:id
func (h *LedgerHandler) UpdateBatch(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "batch")
	}
	var req service.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	batch, err := h.ledgerService.UpdateBatch(c.UserContext(), middleware.Actor(c), id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Batch updated successfully",
		"data":    batch,
	})
}

// DeleteBatch soft deletes a batch.
// DELETE /api/v1/batches/:id
func (h *LedgerHandler) DeleteBatch(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "batch")
	}
	if err := h.ledgerService.DeleteBatch(c.UserContext(), middleware.Actor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Batch deleted successfully"})
}

// SellBatch records a sale against a batch.
// POST /api/v1/batches/:id/sell
func (h *LedgerHandler) SellBatch(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "batch")
	}
	var req service.SellRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	sale, err := h.ledgerService.Sell(c.UserContext(), middleware.Actor(c), id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Sale recorded successfully",
		"data":    sale,
	})
}
