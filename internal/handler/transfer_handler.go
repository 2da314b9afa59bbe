package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/service"
)

type TransferHandler struct {
	transferService service.TransferService
}

func NewTransferHandler(transferService service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// CreateTransfer ships stock to a downstream party.
// POST /api/v1/transfers
func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	var req service.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	transfer, err := h.transferService.Transfer(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Transfer created successfully",
		"data":    transfer,
	})
}

// AcceptTransfer moves the incoming batch into inventory. Repeated calls
// return the already accepted transfer.
// POST /api/v1/transfers/:id/accept
func (h *TransferHandler) AcceptTransfer(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "transfer")
	}
	transfer, err := h.transferService.Accept(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Transfer accepted",
		"data":    transfer,
	})
}

// GetTransfer
// GET /api/v1/transfers/:id
func (h *TransferHandler) GetTransfer(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "transfer")
	}
	transfer, err := h.transferService.Get(c.UserContext(), middleware.Actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(transfer)
}

// ListTransfers lists the caller's transfers.
// GET /api/v1/transfers?direction=incoming|outgoing&pending=true
func (h *TransferHandler) ListTransfers(c *fiber.Ctx) error {
	direction := c.Query("direction", service.DirectionIncoming)
	if direction != service.DirectionIncoming && direction != service.DirectionOutgoing {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direction must be incoming or outgoing"})
	}
	transfers, err := h.transferService.List(c.UserContext(), middleware.Actor(c), direction, c.QueryBool("pending"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(transfers)
}
