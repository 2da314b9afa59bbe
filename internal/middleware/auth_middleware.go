package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"go-freshflow/internal/model"
	"go-freshflow/internal/service"
	"go-freshflow/pkg/jwt"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID     = "user_id"
	LocalUserEmail  = "user_email"
	LocalUserName   = "user_name"
	LocalPartyID    = "party_id"
	LocalPartyTier  = "party_tier"
	LocalPrivileges = "user_privileges"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", jwt.ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("Invalid authorization format. Use: Bearer <token>")
	}
	return parts[1], nil
}

// RequireAuth validates the bearer token against the user's current session
// and stores the caller's identity in Locals for downstream handlers.
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := BearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		claims, user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		c.Locals(LocalUserID, claims.UserID.String())
		c.Locals(LocalUserEmail, claims.Email)
		c.Locals(LocalUserName, user.FullName)
		c.Locals(LocalPrivileges, user.GetPrivilegeCodes())
		if user.PartyID != nil {
			c.Locals(LocalPartyID, user.PartyID.String())
			c.Locals(LocalPartyTier, string(user.PartyTier()))
		}

		return c.Next()
	}
}

// Actor builds the service actor for an authenticated request.
func Actor(c *fiber.Ctx) service.Actor {
	var actor service.Actor
	if s, ok := c.Locals(LocalUserID).(string); ok {
		actor.UserID, _ = uuid.Parse(s)
	}
	actor.Name, _ = c.Locals(LocalUserName).(string)
	if s, ok := c.Locals(LocalPartyID).(string); ok && s != "" {
		if id, err := uuid.Parse(s); err == nil {
			actor.PartyID = &id
		}
	}
	actor.SeesAll = hasPrivilege(c, model.PrivLedgerViewAll)
	return actor
}

func hasPrivilege(c *fiber.Ctx, code string) bool {
	privileges, _ := c.Locals(LocalPrivileges).([]string)
	for _, p := range privileges {
		if p == code {
			return true
		}
	}
	return false
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalPrivileges).([]string); !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No privileges found"})
		}
		if hasPrivilege(c, requiredPrivilege) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: requires '" + requiredPrivilege + "' privilege",
		})
	}
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalPrivileges).([]string); !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No privileges found"})
		}
		for _, reqPriv := range requiredPrivileges {
			if hasPrivilege(c, reqPriv) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(requiredPrivileges, ", ") + " privileges",
		})
	}
}
