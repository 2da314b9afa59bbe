package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-freshflow/internal/forecast"
	"go-freshflow/internal/model"
	"go-freshflow/internal/service"
	"go-freshflow/pkg/jwt"
	"go-freshflow/pkg/validator"
)

var statusByError = []struct {
	status int
	errs   []error
}{
	{fiber.StatusNotFound, []error{
		service.ErrPartyNotFound, service.ErrBatchNotFound, service.ErrTransferNotFound,
		service.ErrPoolEntryMissing, service.ErrUserNotFound, service.ErrRoleNotFound,
	}},
	{fiber.StatusForbidden, []error{
		service.ErrForbiddenLedger, service.ErrNotOwner, service.ErrNotDestination,
		service.ErrNotOfferingParty, service.ErrNoParty,
	}},
	{fiber.StatusConflict, []error{
		service.ErrPartyExists, service.ErrEmailExists, service.ErrBatchNotAccepted,
		service.ErrBatchInPool, service.ErrPoolEntryNotOpen, service.ErrInsufficientQuantity,
	}},
	{fiber.StatusBadRequest, []error{
		service.ErrInvalidQuantity, service.ErrInvalidDiscount, service.ErrInvalidPrice,
		service.ErrTierOrder, service.ErrSameParty, service.ErrOwnPoolEntry,
		service.ErrHorizonRequired, service.ErrInvalidView, service.ErrWrongPassword,
		model.ErrUnknownTier, model.ErrNegativeQuantity, model.ErrExpiryBeforeMfg,
		forecast.ErrInvalidDays,
	}},
	{fiber.StatusUnauthorized, []error{
		service.ErrInvalidCredentials, service.ErrUserInactive, service.ErrSessionTimeout,
		service.ErrSessionReplaced, jwt.ErrInvalidToken, jwt.ErrMissingToken,
	}},
	{fiber.StatusServiceUnavailable, []error{forecast.ErrDisabled}},
}

// fail writes the JSON error response for a service error. Errors without a
// known status are returned to fiber's ErrorHandler as 500s.
func fail(c *fiber.Ctx, err error) error {
	var verr *validator.Error
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	}
	for _, group := range statusByError {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return c.Status(group.status).JSON(fiber.Map{"error": err.Error()})
			}
		}
	}
	return err
}

// ErrorHandler renders unhandled errors as {"error": "..."} and hides the
// detail of internal failures.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func badJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func invalidID(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid " + what + " ID"})
}
