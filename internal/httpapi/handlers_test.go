package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/service"
	"pasarhub/backend/internal/store/memory"
)

const demoTenant = memory.DemoSlug

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{RootDomain: "pasarhub.test", PasswordCost: bcrypt.MinCost})
	auth := NewAuthManager("test-secret-key-test-secret-key-0", time.Hour, svc)

	return New(svc, auth, Options{AllowedOrigin: "*"})
}

type testResponse struct {
	Code int
	Body envelope
	raw  json.RawMessage
}

// call sends one request through the full handler chain. tenant and token are
// optional.
func call(t *testing.T, api *API, method string, path string, tenant string, token string, body any) testResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *errorBody      `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return testResponse{Code: rec.Code, Body: envelope{Success: raw.Success, Error: raw.Error}, raw: raw.Data}
}

func (r testResponse) decode(t *testing.T, dest any) {
	t.Helper()
	if err := json.Unmarshal(r.raw, dest); err != nil {
		t.Fatalf("decode data: %v (data: %s)", err, r.raw)
	}
}

func (r testResponse) expect(t *testing.T, status int, code string) {
	t.Helper()
	if r.Code != status {
		t.Fatalf("expected %d, got %d (error: %+v, data: %s)", status, r.Code, r.Body.Error, r.raw)
	}
	if code == "" {
		if !r.Body.Success {
			t.Fatalf("expected success envelope, got error %+v", r.Body.Error)
		}
		return
	}
	if r.Body.Success || r.Body.Error == nil || r.Body.Error.Code != code {
		t.Fatalf("expected error code %s, got %+v", code, r.Body.Error)
	}
}

func login(t *testing.T, api *API, tenant string, username string, password string) string {
	t.Helper()
	res := call(t, api, http.MethodPost, "/api/v1/auth/login", tenant, "", domain.LoginRequest{Username: username, Password: password})
	res.expect(t, http.StatusOK, "")
	var resp domain.LoginResponse
	res.decode(t, &resp)
	if resp.AccessToken == "" {
		t.Fatalf("expected access token for %s", username)
	}
	return resp.AccessToken
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodGet, "/healthz", "", "", nil)
	res.expect(t, http.StatusOK, "")

	var body map[string]any
	res.decode(t, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginAndRefresh(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "manager", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/auth/refresh", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")
	var refreshed domain.LoginResponse
	res.decode(t, &refreshed)
	if refreshed.Role != domain.RoleManager || refreshed.AccessToken == "" {
		t.Fatalf("unexpected refresh response: %+v", refreshed)
	}
}

func TestHandleLoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodPost, "/api/v1/auth/login", demoTenant, "", domain.LoginRequest{Username: "admin", Password: "nope-nope"})
	res.expect(t, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestTenantResolution(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "admin", Password: memory.DemoPassword})
	res.expect(t, http.StatusBadRequest, "TENANT_REQUIRED")

	res = call(t, api, http.MethodPost, "/api/v1/auth/login", "nowhere", "", domain.LoginRequest{Username: "admin", Password: memory.DemoPassword})
	res.expect(t, http.StatusNotFound, "NOT_FOUND")

	// Subdomain of the root domain works without the header.
	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: memory.DemoPassword})
	req := httptest.NewRequest(http.MethodPost, "http://demo.pasarhub.test/api/v1/auth/login", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected subdomain login to succeed, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodGet, "/api/v1/products", demoTenant, "", nil)
	res.expect(t, http.StatusUnauthorized, "UNAUTHORIZED")

	res = call(t, api, http.MethodGet, "/api/v1/products", demoTenant, "garbage", nil)
	res.expect(t, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestCrossTenantTokenForbidden(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodPost, "/api/v1/companies/register", "", "", domain.CompanyRegisterRequest{
		Name:          "Kedai Sebelah",
		Slug:          "kedai",
		AdminUsername: "owner",
		AdminPassword: "kedai-secret",
	})
	res.expect(t, http.StatusCreated, "")

	token := login(t, api, "kedai", "owner", "kedai-secret")

	res = call(t, api, http.MethodGet, "/api/v1/products", demoTenant, token, nil)
	res.expect(t, http.StatusForbidden, "FORBIDDEN")

	res = call(t, api, http.MethodGet, "/api/v1/products", "kedai", token, nil)
	res.expect(t, http.StatusOK, "")
	var body struct {
		Products []domain.Product `json:"products"`
	}
	res.decode(t, &body)
	if len(body.Products) != 0 {
		t.Fatalf("expected new tenant to start without products, got %d", len(body.Products))
	}
}

func TestCompanyBySlug(t *testing.T) {
	api := newTestAPI(t)

	res := call(t, api, http.MethodGet, "/api/v1/companies/by-slug/demo", "", "", nil)
	res.expect(t, http.StatusOK, "")

	res = call(t, api, http.MethodGet, "/api/v1/companies/by-slug/missing", "", "", nil)
	res.expect(t, http.StatusNotFound, "NOT_FOUND")
}

func TestUsersRouteIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	staff := login(t, api, demoTenant, "staff", memory.DemoPassword)
	res := call(t, api, http.MethodGet, "/api/v1/users", demoTenant, staff, nil)
	res.expect(t, http.StatusForbidden, "FORBIDDEN")

	admin := login(t, api, demoTenant, "admin", memory.DemoPassword)
	res = call(t, api, http.MethodGet, "/api/v1/users", demoTenant, admin, nil)
	res.expect(t, http.StatusOK, "")
}

func TestPlaceOrderAndCancelWithinGrace(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "staff", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, domain.OrderCreateRequest{
		WarehouseID: memory.DemoMainWarehouse,
		Items:       []domain.OrderLineInput{{ProductID: memory.DemoProductRice, Quantity: 3}},
	})
	res.expect(t, http.StatusCreated, "")
	var placed domain.OrderResult
	res.decode(t, &placed)
	if placed.Order.ID == "" || len(placed.Movements) != 1 || placed.Movements[0].Quantity != -3 {
		t.Fatalf("unexpected placed order: %+v", placed)
	}

	res = call(t, api, http.MethodPut, "/api/v1/orders/"+placed.Order.ID+"/cancel", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")

	res = call(t, api, http.MethodGet, "/api/v1/inventory?warehouse_id="+memory.DemoMainWarehouse, demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")
	var inv struct {
		Inventory []domain.WarehouseInventory `json:"inventory"`
	}
	res.decode(t, &inv)
	for _, row := range inv.Inventory {
		if row.ProductID == memory.DemoProductRice && row.StockCount != 120 {
			t.Fatalf("expected rice stock restored to 120, got %d", row.StockCount)
		}
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "staff", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, domain.OrderCreateRequest{
		WarehouseID: memory.DemoMainWarehouse,
		Items:       []domain.OrderLineInput{{ProductID: memory.DemoProductEggs, Quantity: 1000}},
	})
	res.expect(t, http.StatusConflict, "INSUFFICIENT_STOCK")
}

func TestPlaceOrderValidation(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "staff", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, map[string]any{
		"warehouse_id": memory.DemoMainWarehouse,
		"items":        []any{},
	})
	res.expect(t, http.StatusBadRequest, "VALIDATION_ERROR")

	res = call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, map[string]any{
		"warehouse_id": memory.DemoMainWarehouse,
		"unknown":      true,
	})
	res.expect(t, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestMethodNotAllowedAndUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "admin", memory.DemoPassword)

	res := call(t, api, http.MethodDelete, "/api/v1/orders", demoTenant, token, nil)
	res.expect(t, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	res = call(t, api, http.MethodGet, "/api/v1/nothing-here", "", "", nil)
	res.expect(t, http.StatusNotFound, "NOT_FOUND")
}

func TestCustomerEcommerceOrderNeedsSucceededIntent(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "customer", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/payments/intents", demoTenant, token, map[string]any{"amount": "72500"})
	res.expect(t, http.StatusCreated, "")
	var created struct {
		Intent struct {
			ID string `json:"id"`
		} `json:"intent"`
	}
	res.decode(t, &created)

	order := domain.OrderCreateRequest{
		WarehouseID:     memory.DemoMainWarehouse,
		PaymentIntentID: created.Intent.ID,
		Items:           []domain.OrderLineInput{{ProductID: memory.DemoProductRice, Quantity: 1}},
	}
	res = call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, order)
	res.expect(t, http.StatusConflict, "CONFLICT")

	res = call(t, api, http.MethodPost, "/api/v1/payments/intents/"+created.Intent.ID+"/succeed", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")

	res = call(t, api, http.MethodPost, "/api/v1/orders", demoTenant, token, order)
	res.expect(t, http.StatusCreated, "")
	var placed domain.OrderResult
	res.decode(t, &placed)
	if placed.Order.OrderSource != domain.OrderSourceEcommerce || placed.Order.CustomerID != "usr_demo_customer" {
		t.Fatalf("expected ecommerce order owned by the customer, got %+v", placed.Order)
	}
}

func TestProcurementChainOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "manager", memory.DemoPassword)

	res := call(t, api, http.MethodPost, "/api/v1/suppliers", demoTenant, token, domain.SupplierCreateRequest{Code: "SUP-1", Name: "CV Tani Makmur"})
	res.expect(t, http.StatusCreated, "")
	var supplier domain.SupplierResult
	res.decode(t, &supplier)

	res = call(t, api, http.MethodPost, "/api/v1/purchase-orders", demoTenant, token, map[string]any{
		"supplier_id":  supplier.Supplier.ID,
		"warehouse_id": memory.DemoMainWarehouse,
		"items": []map[string]any{
			{"product_id": memory.DemoProductOil, "quantity": 10, "unit_price": "30000"},
		},
	})
	res.expect(t, http.StatusCreated, "")
	var poBody struct {
		PurchaseOrder domain.PurchaseOrder `json:"purchase_order"`
	}
	res.decode(t, &poBody)
	poID := poBody.PurchaseOrder.ID

	res = call(t, api, http.MethodPut, "/api/v1/purchase-orders/"+poID+"/status", demoTenant, token, domain.PurchaseOrderStatusRequest{Status: domain.POStatusApproved})
	res.expect(t, http.StatusOK, "")

	res = call(t, api, http.MethodPost, "/api/v1/goods-receipts", demoTenant, token, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: poID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductOil, Quantity: 10}},
	})
	res.expect(t, http.StatusCreated, "")
	var grn domain.GoodsReceiptResult
	res.decode(t, &grn)

	res = call(t, api, http.MethodPost, "/api/v1/goods-receipts/"+grn.GoodsReceipt.ID+"/complete", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")
	var completed domain.GoodsReceiptResult
	res.decode(t, &completed)
	if completed.GoodsReceipt.Status != domain.GRNStatusCompleted || len(completed.Movements) != 1 {
		t.Fatalf("unexpected completed receipt: %+v", completed)
	}

	res = call(t, api, http.MethodPost, "/api/v1/purchase-invoices", demoTenant, token, domain.PurchaseInvoiceCreateRequest{
		GoodsReceiptID:        grn.GoodsReceipt.ID,
		SupplierInvoiceNumber: "INV-TM-001",
	})
	res.expect(t, http.StatusCreated, "")
	var invBody struct {
		Invoice domain.PurchaseInvoice `json:"purchase_invoice"`
	}
	res.decode(t, &invBody)

	res = call(t, api, http.MethodPost, "/api/v1/supplier-payments", demoTenant, token, map[string]any{
		"invoice_id": invBody.Invoice.ID,
		"amount":     "400000",
		"status":     "completed",
	})
	res.expect(t, http.StatusConflict, "CONFLICT")

	res = call(t, api, http.MethodPost, "/api/v1/supplier-payments", demoTenant, token, map[string]any{
		"invoice_id": invBody.Invoice.ID,
		"amount":     "300000",
		"status":     "completed",
	})
	res.expect(t, http.StatusCreated, "")
	var paid domain.SupplierPaymentResult
	res.decode(t, &paid)
	if paid.Invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected invoice paid, got %s", paid.Invoice.Status)
	}

	res = call(t, api, http.MethodGet, "/api/v1/inventory/reconcile", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")
	var report domain.ReconcileReport
	res.decode(t, &report)
	if !report.Consistent {
		t.Fatalf("expected ledger to reconcile, got %+v", report)
	}
}

func TestAuditLogsRejectBadTime(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, demoTenant, "admin", memory.DemoPassword)

	res := call(t, api, http.MethodGet, "/api/v1/audit-logs?from=yesterday", demoTenant, token, nil)
	res.expect(t, http.StatusBadRequest, "VALIDATION_ERROR")

	res = call(t, api, http.MethodGet, "/api/v1/audit-logs", demoTenant, token, nil)
	res.expect(t, http.StatusOK, "")
}

func TestParsePositiveLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"-4", 50},
		{"abc", 50},
		{"9000", 500},
	}
	for _, tc := range cases {
		if got := parsePositiveLimit(tc.raw, 50, 500); got != tc.want {
			t.Fatalf("parsePositiveLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
