package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pasarhub/backend/internal/service"
	"pasarhub/backend/internal/store"
)

const TenantHeader = "X-Tenant-Subdomain"

var (
	errUnauthorized     = errors.New("unauthorized")
	errMethodNotAllowed = errors.New("method not allowed")
	errRateLimited      = errors.New("too many attempts")
)

type Options struct {
	AllowedOrigin string
	Logger        *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/companies/register", a.handleRegisterCompany)
	mux.HandleFunc("/api/v1/companies/by-slug/{slug}", a.handleCompanyBySlug)

	mux.HandleFunc("/api/v1/auth/login", a.tenant(a.handleLogin))
	mux.HandleFunc("/api/v1/auth/refresh", a.tenant(a.requireAuth(a.handleRefresh)))

	a.route(mux, "/api/v1/users", a.handleUsers, "admin")
	a.route(mux, "/api/v1/warehouses", a.handleWarehouses)
	a.route(mux, "/api/v1/products", a.handleProducts)

	a.route(mux, "/api/v1/inventory", a.handleInventory)
	a.route(mux, "/api/v1/inventory/adjust", a.handleStockAdjust)
	a.route(mux, "/api/v1/inventory/transfer", a.handleStockTransfer)
	a.route(mux, "/api/v1/inventory/movements", a.handleMovements)
	a.route(mux, "/api/v1/inventory/reconcile", a.handleReconcile)

	a.route(mux, "/api/v1/suppliers", a.handleSuppliers)
	a.route(mux, "/api/v1/purchase-orders", a.handlePurchaseOrders)
	a.route(mux, "/api/v1/purchase-orders/{id}", a.handlePurchaseOrder)
	a.route(mux, "/api/v1/purchase-orders/{id}/status", a.handlePurchaseOrderStatus)
	a.route(mux, "/api/v1/goods-receipts", a.handleGoodsReceipts)
	a.route(mux, "/api/v1/goods-receipts/{id}", a.handleGoodsReceipt)
	a.route(mux, "/api/v1/goods-receipts/{id}/status", a.handleGoodsReceiptStatus)
	a.route(mux, "/api/v1/goods-receipts/{id}/complete", a.handleGoodsReceiptComplete)
	a.route(mux, "/api/v1/purchase-invoices", a.handlePurchaseInvoices)
	a.route(mux, "/api/v1/purchase-invoices/{id}", a.handlePurchaseInvoice)
	a.route(mux, "/api/v1/purchase-invoices/{id}/cancel", a.handlePurchaseInvoiceCancel)
	a.route(mux, "/api/v1/supplier-payments", a.handleSupplierPayments)
	a.route(mux, "/api/v1/supplier-payments/{id}/complete", a.handleSupplierPaymentComplete)

	a.route(mux, "/api/v1/payments/intents", a.handlePaymentIntents)
	a.route(mux, "/api/v1/payments/intents/{id}/succeed", a.handlePaymentIntentSucceed)
	a.route(mux, "/api/v1/orders", a.handleOrders)
	a.route(mux, "/api/v1/orders/{id}", a.handleOrder)
	a.route(mux, "/api/v1/orders/{id}/status", a.handleOrderStatus)
	a.route(mux, "/api/v1/orders/{id}/cancel", a.handleOrderCancel)
	a.route(mux, "/api/v1/orders/{id}/return", a.handleOrderReturn)
	a.route(mux, "/api/v1/orders/{id}/restock", a.handleOrderRestock)

	a.route(mux, "/api/v1/audit-logs", a.handleAuditLogs, "admin", "manager")

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, fmt.Errorf("%w: no route for %s", store.ErrNotFound, r.URL.Path))
	})

	return a.withMiddleware(mux)
}

// route registers a tenant-scoped, authenticated handler.
func (a *API) route(mux *http.ServeMux, pattern string, next http.HandlerFunc, roles ...string) {
	mux.HandleFunc(pattern, a.tenant(a.requireAuth(next, roles...)))
}

// tenant resolves the company from the tenant header or the subdomain before
// anything else runs.
func (a *API) tenant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company, err := a.service.ResolveTenant(r.Context(), r.Host, r.Header.Get(TenantHeader))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(service.WithTenant(r.Context(), company)))
	}
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.writeError(w, r, fmt.Errorf("%w: missing bearer token", errUnauthorized))
			return
		}
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		company, _ := service.TenantFromContext(r.Context())
		if actor.CompanyID != company.ID {
			a.writeError(w, r, fmt.Errorf("%w: token does not belong to this tenant", store.ErrForbidden))
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, r, fmt.Errorf("%w: role %s is not allowed", store.ErrForbidden, actor.Role))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+TenantHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("tenant", service.TenantSlug(r.Host, r.Header.Get(TenantHeader), a.service.RootDomain())),
		)
	})
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// errorStatus is the single place that turns an error into a status code and
// an error code. ErrInsufficientStock also matches ErrConflict, so it goes first.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrTenantRequired):
		return http.StatusBadRequest, "TENANT_REQUIRED"
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, errUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, envelope{Error: &errorBody{Message: msg, Code: code}})
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.writeError(w, r, fmt.Errorf("%w: %s", errMethodNotAllowed, r.Method))
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", store.ErrInvalidInput, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", store.ErrInvalidInput, err)
	}
	return nil
}

// decodeRequest decodes the body into dest and runs struct validation on it.
func decodeRequest(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	return validateStruct(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an RFC3339 time or a date", store.ErrInvalidInput, raw)
	}
	return t.UTC(), nil
}
