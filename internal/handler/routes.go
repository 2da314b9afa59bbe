package handler

import (
	"github.com/gofiber/fiber/v2"

	"go-freshflow/internal/middleware"
	"go-freshflow/internal/model"
)

// Handlers groups every REST handler served under /api/v1.
type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Role     *RoleHandler
	Party    *PartyHandler
	Ledger   *LedgerHandler
	Transfer *TransferHandler
	Pool     *PoolHandler
	Demand   *DemandHandler
}

// Register mounts the API routes. requireAuth guards every route except
// login, password reset and token validation.
func (h Handlers) Register(api fiber.Router, requireAuth fiber.Handler) {
	priv := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/validate-token", h.Auth.ValidateToken)
	auth.Post("/heartbeat", requireAuth, h.Auth.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	protected.Get("/parties", h.Party.ListParties)
	protected.Get("/parties/:id", h.Party.GetParty)
	protected.Post("/parties", priv(model.PrivPartyManage), h.Party.CreateParty)

	protected.Get("/users", priv(model.PrivUserManage), h.User.GetUsers)
	protected.Get("/users/:id", priv(model.PrivUserManage), h.User.GetUser)
	protected.Post("/users", priv(model.PrivUserManage), h.User.CreateUser)
	protected.Put("/users/:id", priv(model.PrivUserManage), h.User.UpdateUser)
	protected.Delete("/users/:id", priv(model.PrivUserManage), h.User.DeleteUser)
	protected.Put("/users/:id/privileges", priv(model.PrivUserManage), h.User.UpdateUserPrivileges)

	protected.Get("/roles", h.Role.GetRoles)
	protected.Get("/privileges", h.Role.GetPrivileges)

	view := middleware.RequireAnyPrivilege(model.PrivStockView, model.PrivLedgerViewAll)
	protected.Get("/ledgers/:partyId", view, h.Ledger.GetLedger)
	protected.Get("/ledgers/:partyId/expiring", view, h.Ledger.GetExpiring)
	protected.Get("/ledgers/:partyId/summary", view, h.Ledger.GetSummary)
	protected.Get("/ledgers/:partyId/export", view, h.Ledger.ExportLedger)

	protected.Post("/batches", priv(model.PrivStockCreate), h.Ledger.CreateBatch)
	protected.Get("/batches/:id", view, h.Ledger.GetBatch)
	protected.Put("/batches/:id", priv(model.PrivStockUpdate), h.Ledger.UpdateBatch)
	protected.Delete("/batches/:id", priv(model.PrivStockDelete), h.Ledger.DeleteBatch)
	protected.Post("/batches/:id/sell", priv(model.PrivStockSell), h.Ledger.SellBatch)

	protected.Get("/transfers", h.Transfer.ListTransfers)
	protected.Get("/transfers/:id", h.Transfer.GetTransfer)
	protected.Post("/transfers", priv(model.PrivTransferCreate), h.Transfer.CreateTransfer)
	protected.Post("/transfers/:id/accept", priv(model.PrivTransferAccept), h.Transfer.AcceptTransfer)

	protected.Get("/pool", h.Pool.ListPool)
	protected.Post("/pool", priv(model.PrivPoolOffer), h.Pool.OfferToPool)
	protected.Post("/pool/:id/claim", priv(model.PrivPoolClaim), h.Pool.ClaimEntry)
	protected.Post("/pool/:id/withdraw", priv(model.PrivPoolOffer), h.Pool.WithdrawEntry)

	protected.Get("/demand", priv(model.PrivDemandView), h.Demand.GetDemand)
	protected.Get("/forecast", priv(model.PrivDemandView), h.Demand.GetForecast)
}
