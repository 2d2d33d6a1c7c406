package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/service"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.CompanyRegisterRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	reg, err := a.service.RegisterCompany(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, reg)
}

func (a *API) handleCompanyBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	company, err := a.service.GetCompanyBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"company": company})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, fmt.Errorf("%w: too many login attempts", errRateLimited))
		return
	}

	var req domain.LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	company, _ := service.TenantFromContext(r.Context())
	resp, err := a.auth.Login(r.Context(), company, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	resp, err := a.auth.Refresh(r.Context(), actor)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.service.ListUsers(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var req domain.UserCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		user, err := a.service.CreateUser(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"user": user})
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleWarehouses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		warehouses, err := a.service.ListWarehouses(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"warehouses": warehouses})
	case http.MethodPost:
		var req domain.WarehouseCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		warehouse, err := a.service.CreateWarehouse(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"warehouse": warehouse})
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"product": product})
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	rows, err := a.service.ListInventory(r.Context(), r.URL.Query().Get("warehouse_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"inventory": rows})
}

func (a *API) handleStockAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.StockAdjustRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.AdjustStock(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleStockTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.StockTransferRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.TransferStock(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleMovements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	filter := domain.MovementFilter{
		WarehouseID:   q.Get("warehouse_id"),
		ProductID:     q.Get("product_id"),
		MovementType:  domain.MovementType(strings.ToUpper(q.Get("movement_type"))),
		ReferenceType: q.Get("reference_type"),
		ReferenceID:   q.Get("reference_id"),
		Limit:         parsePositiveLimit(q.Get("limit"), 50, 500),
	}
	if q.Has("variant_id") {
		variantID := q.Get("variant_id")
		filter.VariantID = &variantID
	}
	movements, err := a.service.ListMovements(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	report, err := a.service.ReconcileInventory(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"suppliers": suppliers})
	case http.MethodPost:
		var req domain.SupplierCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		result, err := a.service.CreateSupplier(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, result)
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handlePurchaseOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		orders, err := a.service.ListPurchaseOrders(r.Context(), domain.PurchaseOrderStatus(q.Get("status")), parsePositiveLimit(q.Get("limit"), 50, 500))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"purchase_orders": orders})
	case http.MethodPost:
		var req domain.PurchaseOrderCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		po, err := a.service.CreatePurchaseOrder(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"purchase_order": po})
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handlePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	detail, err := a.service.GetPurchaseOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (a *API) handlePurchaseOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.PurchaseOrderStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	po, err := a.service.UpdatePurchaseOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"purchase_order": po})
}

func (a *API) handleGoodsReceipts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		receipts, err := a.service.ListGoodsReceipts(r.Context(), q.Get("purchase_order_id"), parsePositiveLimit(q.Get("limit"), 50, 500))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"goods_receipts": receipts})
	case http.MethodPost:
		var req domain.GoodsReceiptCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		result, err := a.service.CreateGoodsReceipt(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, result)
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleGoodsReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	grn, err := a.service.GetGoodsReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"goods_receipt": grn})
}

func (a *API) handleGoodsReceiptStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.GoodsReceiptStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.UpdateGoodsReceiptStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleGoodsReceiptComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	result, err := a.service.CompleteGoodsReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handlePurchaseInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		invoices, err := a.service.ListPurchaseInvoices(r.Context(), domain.InvoiceFilter{
			PurchaseOrderID: q.Get("purchase_order_id"),
			Status:          domain.InvoiceStatus(q.Get("status")),
			Limit:           parsePositiveLimit(q.Get("limit"), 50, 500),
		})
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"purchase_invoices": invoices})
	case http.MethodPost:
		var req domain.PurchaseInvoiceCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		invoice, err := a.service.CreatePurchaseInvoice(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"purchase_invoice": invoice})
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handlePurchaseInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	detail, err := a.service.GetPurchaseInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (a *API) handlePurchaseInvoiceCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	invoice, err := a.service.CancelPurchaseInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"purchase_invoice": invoice})
}

func (a *API) handleSupplierPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.SupplierPaymentCreateRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.RecordSupplierPayment(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, result)
}

func (a *API) handleSupplierPaymentComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	result, err := a.service.CompleteSupplierPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handlePaymentIntents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.PaymentIntentRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	intent, err := a.service.CreatePaymentIntent(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"intent": intent})
}

// handlePaymentIntentSucceed stands in for the processor's success callback.
func (a *API) handlePaymentIntentSucceed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	intent, err := a.service.ConfirmPaymentIntent(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"intent": intent})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		orders, err := a.service.ListOrders(r.Context(), domain.OrderFilter{
			OrderType:       domain.OrderType(q.Get("order_type")),
			Status:          domain.OrderStatus(q.Get("status")),
			CustomerID:      q.Get("customer_id"),
			OriginalOrderID: q.Get("original_order_id"),
			Limit:           parsePositiveLimit(q.Get("limit"), 50, 500),
		})
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.OrderCreateRequest
		if err := decodeRequest(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		result, err := a.service.PlaceOrder(r.Context(), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, result)
	default:
		a.writeMethodNotAllowed(w, r)
	}
}

func (a *API) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	detail, err := a.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (a *API) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.OrderStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		a.writeMethodNotAllowed(w, r)
		return
	}
	result, err := a.service.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleOrderReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	var req domain.ReturnOrderRequest
	if err := decodeRequest(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.CreateReturnOrder(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, result)
}

func (a *API) handleOrderRestock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w, r)
		return
	}
	result, err := a.service.RestockReturnOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !to.IsZero() && len(strings.TrimSpace(q.Get("to"))) == len(time.DateOnly) {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	logs, err := a.service.ListAuditLogs(r.Context(), from, to, parsePositiveLimit(q.Get("limit"), 50, 500))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"audit_logs": logs})
}
