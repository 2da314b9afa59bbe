package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-freshflow/internal/events"
	"go-freshflow/internal/middleware"
	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/internal/service"
	"go-freshflow/internal/testutil"
	"go-freshflow/pkg/jwt"
)

const testPartyHeader = "X-Test-Party"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	auth   service.AuthService
	users  service.UserService
	roles  repository.RoleRepository
	farm   *model.Party
	market *model.Party
	shop   *model.Party
}

// fakeAuth trusts the party header and grants operator privileges.
func fakeAuth(c *fiber.Ctx) error {
	partyID := c.Get(testPartyHeader)
	if partyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing test party"})
	}
	c.Locals(middleware.LocalUserID, uuid.NewString())
	c.Locals(middleware.LocalUserName, "operator")
	c.Locals(middleware.LocalPartyID, partyID)
	c.Locals(middleware.LocalPrivileges, model.OperatorPrivileges)
	return c.Next()
}

func newTestEnv(t *testing.T, realAuth bool) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	ctx := context.Background()

	batchRepo := repository.NewBatchRepo(db)
	partyRepo := repository.NewPartyRepo(db)
	poolRepo := repository.NewPoolRepo(db)
	transferRepo := repository.NewTransferRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	if err := service.SeedIdentity(ctx, privilegeRepo, roleRepo, userRepo, "admin@freshflow.local", "secret123", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pub := events.Nop{}
	authService := service.NewAuthService(userRepo, jwt.NewSigner("handler-test-secret", time.Hour), 0, pub, nil)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo, partyRepo)

	h := Handlers{
		Auth:     NewAuthHandler(authService),
		User:     NewUserHandler(userService),
		Role:     NewRoleHandler(roleRepo, privilegeRepo),
		Party:    NewPartyHandler(service.NewPartyService(partyRepo)),
		Ledger:   NewLedgerHandler(service.NewLedgerService(db, batchRepo, partyRepo, poolRepo, saleRepo, pub, nil, nil)),
		Transfer: NewTransferHandler(service.NewTransferService(db, batchRepo, transferRepo, partyRepo, pub, nil, nil)),
		Pool:     NewPoolHandler(service.NewPoolService(db, batchRepo, poolRepo, transferRepo, pub, nil, nil)),
		Demand:   NewDemandHandler(service.NewDemandService(saleRepo, partyRepo, nil, nil)),
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	requireAuth := fiber.Handler(fakeAuth)
	if realAuth {
		requireAuth = middleware.RequireAuth(authService)
	}
	h.Register(app.Group("/api/v1"), requireAuth)

	return &testEnv{
		app:    app,
		db:     db,
		auth:   authService,
		users:  userService,
		roles:  roleRepo,
		farm:   testutil.CreateParty(t, db, "Green Farm", model.TierProducer),
		market: testutil.CreateParty(t, db, "Supermarket A", model.TierSupermarket),
		shop:   testutil.CreateParty(t, db, "Corner Shop", model.TierLocalMarket),
	}
}

type result struct {
	status int
	header http.Header
	body   []byte
}

func (r result) object(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(r.body, &out); err != nil {
		t.Fatalf("decode %s: %v", r.body, err)
	}
	return out
}

func (r result) list(t *testing.T) []interface{} {
	t.Helper()
	var out []interface{}
	if err := json.Unmarshal(r.body, &out); err != nil {
		t.Fatalf("decode %s: %v", r.body, err)
	}
	return out
}

func (r result) dataID(t *testing.T) string {
	t.Helper()
	data, ok := r.object(t)["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("no data in %s", r.body)
	}
	return data["id"].(string)
}

func (e *testEnv) call(t *testing.T, method, path string, body interface{}, headers map[string]string) result {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return result{status: resp.StatusCode, header: resp.Header, body: raw}
}

func as(p *model.Party) map[string]string {
	return map[string]string{testPartyHeader: p.ID.String()}
}

func TestLedgerAndTransferRoutes(t *testing.T) {
	e := newTestEnv(t, false)
	now := time.Now().UTC()

	created := e.call(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"product_name":       "Tomatoes",
		"category":           "produce",
		"quantity":           20,
		"unit_price":         "2.50",
		"manufacturing_date": now.AddDate(0, 0, -1),
		"expiry_date":        now.AddDate(0, 0, 3),
		"perishable":         true,
	}, as(e.farm))
	if created.status != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", created.status, created.body)
	}
	batchID := created.dataID(t)

	invalid := e.call(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"quantity":           1,
		"manufacturing_date": now,
		"expiry_date":        now,
	}, as(e.farm))
	if invalid.status != fiber.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for missing product, got %d", invalid.status)
	}

	tests := []struct {
		name   string
		path   string
		party  *model.Party
		status int
		count  int
	}{
		{"own ledger", "/api/v1/ledgers/" + e.farm.ID.String(), e.farm, fiber.StatusOK, 1},
		{"other ledger", "/api/v1/ledgers/" + e.farm.ID.String(), e.shop, fiber.StatusForbidden, -1},
		{"expiring in horizon", "/api/v1/ledgers/" + e.farm.ID.String() + "/expiring?days=7", e.farm, fiber.StatusOK, -1},
		{"expiring without days", "/api/v1/ledgers/" + e.farm.ID.String() + "/expiring", e.farm, fiber.StatusBadRequest, -1},
		{"bad view", "/api/v1/ledgers/" + e.farm.ID.String() + "?view=archive", e.farm, fiber.StatusBadRequest, -1},
		{"bad party id", "/api/v1/ledgers/not-a-uuid", e.farm, fiber.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.call(t, http.MethodGet, tt.path, nil, as(tt.party))
			if res.status != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, res.status, res.body)
			}
			if tt.count >= 0 && len(res.list(t)) != tt.count {
				t.Errorf("Expected %d batches, got %s", tt.count, res.body)
			}
		})
	}

	upstream := e.call(t, http.MethodPost, "/api/v1/transfers", map[string]interface{}{
		"source_batch_id":      e.market.ID,
		"destination_party_id": e.farm.ID,
		"quantity":             1,
	}, as(e.market))
	if upstream.status != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for an upstream transfer, got %d", upstream.status)
	}

	shipped := e.call(t, http.MethodPost, "/api/v1/transfers", map[string]interface{}{
		"source_batch_id":      batchID,
		"destination_party_id": e.shop.ID,
		"quantity":             8,
		"discount_percent":     "25",
	}, as(e.farm))
	if shipped.status != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", shipped.status, shipped.body)
	}
	transferID := shipped.dataID(t)

	if res := e.call(t, http.MethodPost, "/api/v1/transfers/"+transferID+"/accept", nil, as(e.market)); res.status != fiber.StatusForbidden {
		t.Errorf("Expected 403 for non-destination accept, got %d", res.status)
	}
	for i := 0; i < 2; i++ {
		if res := e.call(t, http.MethodPost, "/api/v1/transfers/"+transferID+"/accept", nil, as(e.shop)); res.status != fiber.StatusOK {
			t.Fatalf("Accept #%d: expected 200, got %d: %s", i+1, res.status, res.body)
		}
	}

	incoming := e.call(t, http.MethodGet, "/api/v1/transfers?direction=incoming", nil, as(e.shop))
	if incoming.status != fiber.StatusOK || len(incoming.list(t)) != 1 {
		t.Errorf("Expected one incoming transfer, got %d: %s", incoming.status, incoming.body)
	}

	inventory := e.call(t, http.MethodGet, "/api/v1/ledgers/"+e.shop.ID.String()+"?view=inventory", nil, as(e.shop))
	items := inventory.list(t)
	if len(items) != 1 {
		t.Fatalf("Expected 1 accepted batch in shop inventory, got %s", inventory.body)
	}
	if price := items[0].(map[string]interface{})["unit_price"]; price != "1.88" {
		t.Errorf("Expected discounted price 1.88, got %v", price)
	}

	export := e.call(t, http.MethodGet, "/api/v1/ledgers/"+e.farm.ID.String()+"/export", nil, as(e.farm))
	if export.status != fiber.StatusOK || export.header.Get(fiber.HeaderContentType) != xlsxContentType {
		t.Errorf("Unexpected export response: %d %s", export.status, export.header.Get(fiber.HeaderContentType))
	}
}

func TestPoolRoutes(t *testing.T) {
	e := newTestEnv(t, false)
	b := testutil.CreateBatch(t, e.db, e.market.ID, "Bananas", 30)

	offered := e.call(t, http.MethodPost, "/api/v1/pool", map[string]interface{}{
		"batch_id": b.ID,
		"quantity": 10,
		"reason":   "overstock",
	}, as(e.market))
	if offered.status != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", offered.status, offered.body)
	}
	entryID := offered.dataID(t)
	claimPath := "/api/v1/pool/" + entryID + "/claim"

	if res := e.call(t, http.MethodGet, "/api/v1/pool?reason=overstock&others=true", nil, as(e.shop)); len(res.list(t)) != 1 {
		t.Errorf("Expected shop to see one entry, got %s", res.body)
	}
	if res := e.call(t, http.MethodGet, "/api/v1/pool?reason=charity", nil, as(e.shop)); res.status != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for unknown reason, got %d", res.status)
	}

	steps := []struct {
		name   string
		party  *model.Party
		status int
	}{
		{"own entry", e.market, fiber.StatusBadRequest},
		{"winner", e.shop, fiber.StatusCreated},
		{"too late", e.farm, fiber.StatusConflict},
	}
	for _, st := range steps {
		if res := e.call(t, http.MethodPost, claimPath, nil, as(st.party)); res.status != st.status {
			t.Errorf("%s: expected %d, got %d: %s", st.name, st.status, res.status, res.body)
		}
	}

	if res := e.call(t, http.MethodPost, "/api/v1/pool/"+entryID+"/withdraw", nil, as(e.market)); res.status != fiber.StatusConflict {
		t.Errorf("Expected 409 withdrawing a claimed entry, got %d", res.status)
	}
}

func TestDemandRoutes(t *testing.T) {
	e := newTestEnv(t, false)

	if res := e.call(t, http.MethodGet, "/api/v1/demand", nil, as(e.market)); res.status != fiber.StatusBadRequest {
		t.Errorf("Expected 400 without product, got %d", res.status)
	}
	res := e.call(t, http.MethodGet, "/api/v1/demand?product=Milk&days=7", nil, as(e.market))
	if res.status != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", res.status, res.body)
	}
	if points := res.object(t)["points"].([]interface{}); len(points) != 7 {
		t.Errorf("Expected 7 zero-filled points, got %d", len(points))
	}
	if res := e.call(t, http.MethodGet, "/api/v1/forecast?product=Milk", nil, as(e.market)); res.status != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 with forecasting disabled, got %d", res.status)
	}
}

func TestRequireAuth(t *testing.T) {
	e := newTestEnv(t, true)
	ctx := context.Background()

	login := func(email, password string) string {
		res := e.call(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password}, nil)
		if res.status != fiber.StatusOK {
			t.Fatalf("login %s: %d %s", email, res.status, res.body)
		}
		return res.object(t)["token"].(string)
	}
	bearer := func(token string) map[string]string {
		return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
	}

	if res := e.call(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "admin@freshflow.local", "password": "nope"}, nil); res.status != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", res.status)
	}

	admin := login("admin@freshflow.local", "secret123")
	operatorRole, err := e.roles.FindByCode(ctx, model.RoleOperator)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if _, err := e.users.CreateUser(ctx, service.SystemActor, &service.CreateUserRequest{
		Email: "op@shop.local", Password: "secret123", FullName: "Shop Operator", RoleID: operatorRole.ID, PartyID: &e.shop.ID,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	operator := login("op@shop.local", "secret123")

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		headers map[string]string
		status  int
	}{
		{"no token", http.MethodGet, "/api/v1/parties", nil, nil, fiber.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/api/v1/parties", nil, map[string]string{fiber.HeaderAuthorization: "Token abc"}, fiber.StatusUnauthorized},
		{"admin lists parties", http.MethodGet, "/api/v1/parties", nil, bearer(admin), fiber.StatusOK},
		{"admin creates party", http.MethodPost, "/api/v1/parties", map[string]string{"name": "Hill Farm", "tier": "producer"}, bearer(admin), fiber.StatusCreated},
		{"bad tier", http.MethodPost, "/api/v1/parties", map[string]string{"name": "Depot", "tier": "warehouse"}, bearer(admin), fiber.StatusUnprocessableEntity},
		{"operator lacks party:manage", http.MethodPost, "/api/v1/parties", map[string]string{"name": "Other", "tier": "producer"}, bearer(operator), fiber.StatusForbidden},
		{"operator reads own ledger", http.MethodGet, "/api/v1/ledgers/" + e.shop.ID.String(), nil, bearer(operator), fiber.StatusOK},
		{"operator blocked from other ledger", http.MethodGet, "/api/v1/ledgers/" + e.farm.ID.String(), nil, bearer(operator), fiber.StatusForbidden},
		{"admin sees every ledger", http.MethodGet, "/api/v1/ledgers/" + e.farm.ID.String(), nil, bearer(admin), fiber.StatusOK},
		{"heartbeat", http.MethodPost, "/api/v1/auth/heartbeat", nil, bearer(operator), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := e.call(t, tt.method, tt.path, tt.body, tt.headers); res.status != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, res.status, res.body)
			}
		})
	}

	login("op@shop.local", "secret123")
	if res := e.call(t, http.MethodGet, "/api/v1/parties", nil, bearer(operator)); res.status != fiber.StatusUnauthorized {
		t.Errorf("Expected replaced session to be rejected, got %d", res.status)
	}
}
