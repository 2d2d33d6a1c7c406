package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/store/memory"
)

func createOrderedPurchaseOrder(t *testing.T, env *testEnv, lines ...domain.PurchaseOrderLineInput) domain.PurchaseOrder {
	t.Helper()
	ctx := ctxAs(domain.RoleAdmin)

	supplier, err := env.svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Code: "sup-" + lines[0].ProductID, Name: "CV Sumber Pangan"})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}
	po, err := env.svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID:  supplier.Supplier.ID,
		WarehouseID: memory.DemoMainWarehouse,
		Items:       lines,
	})
	if err != nil {
		t.Fatalf("create purchase order failed: %v", err)
	}
	for _, status := range []domain.PurchaseOrderStatus{domain.POStatusApproved, domain.POStatusOrdered} {
		if po, err = env.svc.UpdatePurchaseOrderStatus(ctx, po.ID, status); err != nil {
			t.Fatalf("move purchase order to %s failed: %v", status, err)
		}
	}
	return po
}

func receiveIntoMain(t *testing.T, env *testEnv, productID string, qty int) domain.GoodsReceipt {
	t.Helper()
	po := createOrderedPurchaseOrder(t, env, domain.PurchaseOrderLineInput{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(1000)})
	result, err := env.svc.CreateGoodsReceipt(ctxAs(domain.RoleAdmin), domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: productID, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("create goods receipt failed: %v", err)
	}
	return result.GoodsReceipt
}

func TestSupplierBankAccountsAreAnEffect(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.svc.CreateSupplier(ctxAs(domain.RoleManager), domain.SupplierCreateRequest{
		Code: "tani",
		Name: "UD Tani Makmur",
		BankAccounts: []domain.SupplierBankAccountInput{
			{BankName: "BCA", AccountNumber: "1234567890", AccountHolder: "UD Tani Makmur"},
		},
	})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}
	if result.Supplier.Code != "TANI" {
		t.Fatalf("expected normalized code, got %q", result.Supplier.Code)
	}
	if len(result.Effects) != 2 || result.Effects[0].Name != "supplier_bank_accounts" || result.Effects[0].Failed() {
		t.Fatalf("unexpected effects %+v", result.Effects)
	}
}

func TestCreatePurchaseOrderComputesTotal(t *testing.T) {
	env := newTestEnv(t)
	po := createOrderedPurchaseOrder(t, env,
		domain.PurchaseOrderLineInput{ProductID: memory.DemoProductRice, Quantity: 10, UnitPrice: decimal.RequireFromString("70000.50")},
		domain.PurchaseOrderLineInput{ProductID: memory.DemoProductOil, Quantity: 4, UnitPrice: decimal.NewFromInt(32000)},
	)
	if !po.TotalAmount.Equal(decimal.RequireFromString("828005")) {
		t.Fatalf("unexpected total %s", po.TotalAmount)
	}
	if po.Status != domain.POStatusOrdered || !strings.HasPrefix(po.Number, "PO-") {
		t.Fatalf("unexpected purchase order %+v", po)
	}
}

func TestCreatePurchaseOrderRejectsDuplicateLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)
	supplier, err := env.svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Code: "dup", Name: "Dup"})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}

	_, err = env.svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID:  supplier.Supplier.ID,
		WarehouseID: memory.DemoMainWarehouse,
		Items: []domain.PurchaseOrderLineInput{
			{ProductID: memory.DemoProductRice, Quantity: 1},
			{ProductID: memory.DemoProductRice, Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPurchaseOrderManualTransitions(t *testing.T) {
	env := newTestEnv(t)
	po := createOrderedPurchaseOrder(t, env, domain.PurchaseOrderLineInput{ProductID: memory.DemoProductRice, Quantity: 5})
	ctx := ctxAs(domain.RoleManager)

	if _, err := env.svc.UpdatePurchaseOrderStatus(ctx, po.ID, domain.POStatusReceived); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected receipt statuses to be refused, got %v", err)
	}
	if _, err := env.svc.UpdatePurchaseOrderStatus(ctx, po.ID, domain.POStatusApproved); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ordered -> approved to conflict, got %v", err)
	}
	if _, err := env.svc.UpdatePurchaseOrderStatus(ctxAs(domain.RoleStaff), po.ID, domain.POStatusCancelled); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff to be refused, got %v", err)
	}

	if _, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductRice, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create goods receipt failed: %v", err)
	}
	if _, err := env.svc.UpdatePurchaseOrderStatus(ctx, po.ID, domain.POStatusCancelled); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected cancel with received goods to conflict, got %v", err)
	}
}

func TestGoodsReceiptRequiresReceivablePurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)
	supplier, err := env.svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Code: "pend", Name: "Pending"})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}
	po, err := env.svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID:  supplier.Supplier.ID,
		WarehouseID: memory.DemoMainWarehouse,
		Items:       []domain.PurchaseOrderLineInput{{ProductID: memory.DemoProductRice, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create purchase order failed: %v", err)
	}

	_, err = env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductRice, Quantity: 5}},
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected pending purchase order to refuse receipts, got %v", err)
	}
}

func TestGoodsReceiptQuantitiesFollowPurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)
	po := createOrderedPurchaseOrder(t, env, domain.PurchaseOrderLineInput{ProductID: memory.DemoProductRice, Quantity: 100, UnitPrice: decimal.NewFromInt(70000)})

	if _, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductRice, Quantity: 101}},
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected over-receipt to conflict, got %v", err)
	}

	first, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{PurchaseOrderItemID: po.Items[0].ID, Quantity: 60}},
	})
	if err != nil {
		t.Fatalf("first receipt failed: %v", err)
	}
	if first.PurchaseOrder.Status != domain.POStatusPartiallyReceived || first.PurchaseOrder.Items[0].ReceivedQty != 60 {
		t.Fatalf("unexpected purchase order after 60: %+v", first.PurchaseOrder)
	}

	second, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductRice, Quantity: 40}},
	})
	if err != nil {
		t.Fatalf("second receipt failed: %v", err)
	}
	if second.PurchaseOrder.Status != domain.POStatusReceived {
		t.Fatalf("expected received, got %s", second.PurchaseOrder.Status)
	}

	if _, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductRice, Quantity: 1}},
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected receipt on a received purchase order to conflict, got %v", err)
	}

	rejected, err := env.svc.UpdateGoodsReceiptStatus(ctx, second.GoodsReceipt.ID, domain.GRNStatusRejected)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.PurchaseOrder == nil || rejected.PurchaseOrder.Status != domain.POStatusPartiallyReceived || rejected.PurchaseOrder.Items[0].ReceivedQty != 60 {
		t.Fatalf("unexpected purchase order after rejection: %+v", rejected.PurchaseOrder)
	}

	rejected, err = env.svc.UpdateGoodsReceiptStatus(ctx, first.GoodsReceipt.ID, domain.GRNStatusRejected)
	if err != nil {
		t.Fatalf("second reject failed: %v", err)
	}
	if rejected.PurchaseOrder.Status != domain.POStatusOrdered || rejected.PurchaseOrder.Items[0].ReceivedQty != 0 {
		t.Fatalf("expected ordered with nothing received, got %+v", rejected.PurchaseOrder)
	}
}

func TestGoodsReceiptStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	grn := receiveIntoMain(t, env, memory.DemoProductOil, 10)

	if _, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleStaff), grn.ID, domain.GRNStatusApproved); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff approval to be refused, got %v", err)
	}
	if _, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleManager), grn.ID, domain.GRNStatusApproved); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected pending -> approved to conflict, got %v", err)
	}
	if _, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleStaff), grn.ID, domain.GRNStatusInspected); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	approved, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleManager), grn.ID, domain.GRNStatusApproved)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.GoodsReceipt.Status != domain.GRNStatusApproved {
		t.Fatalf("unexpected status %s", approved.GoodsReceipt.Status)
	}
	if _, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleManager), grn.ID, domain.GRNStatusCompleted); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected completed to need the complete operation, got %v", err)
	}
}

func TestCompleteGoodsReceiptOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleStaff)
	grn := receiveIntoMain(t, env, memory.DemoProductRice, 60)

	result, err := env.svc.CompleteGoodsReceipt(ctx, grn.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.GoodsReceipt.Status != domain.GRNStatusCompleted || result.GoodsReceipt.CompletedAt == nil {
		t.Fatalf("unexpected goods receipt %+v", result.GoodsReceipt)
	}
	if len(result.Movements) != 1 || result.Movements[0].MovementType != domain.MovementReceipt || result.Movements[0].BalanceAfter != 180 {
		t.Fatalf("unexpected movements %+v", result.Movements)
	}

	_, err = env.svc.CompleteGoodsReceipt(ctx, grn.ID)
	if !errors.Is(err, store.ErrConflict) || !strings.Contains(err.Error(), "goods receipt already completed") {
		t.Fatalf("expected already completed conflict, got %v", err)
	}
	if got := env.stock(t, memory.DemoMainWarehouse, memory.DemoProductRice, ""); got != 180 {
		t.Fatalf("expected a single credit to 180, got %d", got)
	}
	if got := env.movements(t, domain.MovementFilter{ReferenceType: domain.RefGoodsReceipt, ReferenceID: grn.ID}); len(got) != 1 {
		t.Fatalf("expected one receipt movement, got %d", len(got))
	}
}

func TestRejectedGoodsReceiptCannotBeCompleted(t *testing.T) {
	env := newTestEnv(t)
	grn := receiveIntoMain(t, env, memory.DemoProductRice, 5)

	if _, err := env.svc.UpdateGoodsReceiptStatus(ctxAs(domain.RoleManager), grn.ID, domain.GRNStatusRejected); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := env.svc.CompleteGoodsReceipt(ctxAs(domain.RoleManager), grn.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := env.stock(t, memory.DemoMainWarehouse, memory.DemoProductRice, ""); got != 120 {
		t.Fatalf("stock should be untouched, got %d", got)
	}
}

func invoicedReceipt(t *testing.T, env *testEnv, dueDate *time.Time) domain.PurchaseInvoice {
	t.Helper()
	ctx := ctxAs(domain.RoleAdmin)
	po := createOrderedPurchaseOrder(t, env, domain.PurchaseOrderLineInput{ProductID: memory.DemoProductOil, Quantity: 100, UnitPrice: decimal.NewFromInt(5)})
	grn, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductOil, Quantity: 100}},
	})
	if err != nil {
		t.Fatalf("create goods receipt failed: %v", err)
	}
	if _, err := env.svc.CreatePurchaseInvoice(ctx, domain.PurchaseInvoiceCreateRequest{
		GoodsReceiptID:        grn.GoodsReceipt.ID,
		SupplierInvoiceNumber: "SUP-001",
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected invoice before completion to conflict, got %v", err)
	}
	if _, err := env.svc.CompleteGoodsReceipt(ctx, grn.GoodsReceipt.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	invoice, err := env.svc.CreatePurchaseInvoice(ctx, domain.PurchaseInvoiceCreateRequest{
		GoodsReceiptID:        grn.GoodsReceipt.ID,
		SupplierInvoiceNumber: "SUP-001",
		DueDate:               dueDate,
	})
	if err != nil {
		t.Fatalf("create invoice failed: %v", err)
	}
	return invoice
}

func TestInvoiceIsOnePerGoodsReceipt(t *testing.T) {
	env := newTestEnv(t)
	invoice := invoicedReceipt(t, env, nil)
	if !invoice.TotalAmount.Equal(decimal.NewFromInt(500)) || invoice.Status != domain.InvoiceStatusPending {
		t.Fatalf("unexpected invoice %+v", invoice)
	}

	_, err := env.svc.CreatePurchaseInvoice(ctxAs(domain.RoleAdmin), domain.PurchaseInvoiceCreateRequest{
		GoodsReceiptID:        invoice.GoodsReceiptID,
		SupplierInvoiceNumber: "SUP-002",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected second invoice to conflict, got %v", err)
	}
}

func TestZeroTotalInvoiceIsPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)
	po := createOrderedPurchaseOrder(t, env, domain.PurchaseOrderLineInput{ProductID: memory.DemoProductEggs, Quantity: 12, UnitPrice: decimal.Zero})
	grn, err := env.svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptCreateRequest{
		PurchaseOrderID: po.ID,
		Items:           []domain.GoodsReceiptLineInput{{ProductID: memory.DemoProductEggs, Quantity: 12}},
	})
	if err != nil {
		t.Fatalf("create goods receipt failed: %v", err)
	}
	if _, err := env.svc.CompleteGoodsReceipt(ctx, grn.GoodsReceipt.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	invoice, err := env.svc.CreatePurchaseInvoice(ctx, domain.PurchaseInvoiceCreateRequest{
		GoodsReceiptID:        grn.GoodsReceipt.ID,
		SupplierInvoiceNumber: "SUP-FREE",
	})
	if err != nil {
		t.Fatalf("create invoice failed: %v", err)
	}
	if !invoice.TotalAmount.IsZero() || invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected zero total invoice to be paid, got %+v", invoice)
	}
	if _, err := env.svc.RecordSupplierPayment(ctxAs(domain.RoleManager), domain.SupplierPaymentCreateRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(1),
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected payment on a paid invoice to conflict, got %v", err)
	}
}

func TestSupplierPaymentsDeriveInvoiceStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleManager)
	invoice := invoicedReceipt(t, env, nil)

	pay := func(amount int64) (domain.SupplierPaymentResult, error) {
		return env.svc.RecordSupplierPayment(ctx, domain.SupplierPaymentCreateRequest{
			InvoiceID: invoice.ID,
			Amount:    decimal.NewFromInt(amount),
			Method:    "transfer",
		})
	}

	first, err := pay(300)
	if err != nil {
		t.Fatalf("pay 300 failed: %v", err)
	}
	if first.Invoice.Status != domain.InvoiceStatusPartial || !first.Invoice.PaidAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected invoice after 300: %+v", first.Invoice)
	}
	if _, err := pay(300); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected overpayment to conflict, got %v", err)
	}
	second, err := pay(200)
	if err != nil {
		t.Fatalf("pay 200 failed: %v", err)
	}
	if second.Invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", second.Invoice.Status)
	}
	if _, err := pay(1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected payment on a paid invoice to conflict, got %v", err)
	}
	if _, err := env.svc.CancelPurchaseInvoice(ctx, invoice.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected cancel of a paid invoice to conflict, got %v", err)
	}

	detail, err := env.svc.GetPurchaseInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("get invoice failed: %v", err)
	}
	if len(detail.Payments) != 2 || detail.EffectiveStatus != domain.InvoiceStatusPaid {
		t.Fatalf("unexpected invoice detail %+v", detail)
	}
}

func TestPendingSupplierPaymentIsCappedAtCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleManager)
	invoice := invoicedReceipt(t, env, nil)

	pending, err := env.svc.RecordSupplierPayment(ctx, domain.SupplierPaymentCreateRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(200),
		Status:    domain.PaymentStatusPending,
	})
	if err != nil {
		t.Fatalf("record pending payment failed: %v", err)
	}
	if !pending.Invoice.PaidAmount.IsZero() || pending.Payment.PaidAt != nil {
		t.Fatalf("pending payment must not settle: %+v", pending)
	}

	if _, err := env.svc.RecordSupplierPayment(ctx, domain.SupplierPaymentCreateRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(400),
	}); err != nil {
		t.Fatalf("record completed payment failed: %v", err)
	}

	if _, err := env.svc.CompleteSupplierPayment(ctx, pending.Payment.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected completion beyond outstanding to conflict, got %v", err)
	}
}

func TestCompleteSupplierPaymentSettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleManager)
	invoice := invoicedReceipt(t, env, nil)

	pending, err := env.svc.RecordSupplierPayment(ctx, domain.SupplierPaymentCreateRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(200),
		Status:    domain.PaymentStatusProcessing,
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}
	completed, err := env.svc.CompleteSupplierPayment(ctx, pending.Payment.ID)
	if err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}
	if completed.Invoice.Status != domain.InvoiceStatusPartial || !completed.Invoice.PaidAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected invoice %+v", completed.Invoice)
	}
	if _, err := env.svc.CompleteSupplierPayment(ctx, pending.Payment.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected second completion to conflict, got %v", err)
	}
}

func TestCancelUnpaidInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)
	invoice := invoicedReceipt(t, env, nil)

	cancelled, err := env.svc.CancelPurchaseInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.InvoiceStatusCancelled {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if _, err := env.svc.RecordSupplierPayment(ctx, domain.SupplierPaymentCreateRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(1),
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected payment on cancelled invoice to conflict, got %v", err)
	}
}

func TestInvoiceOverdueIsDerivedOnRead(t *testing.T) {
	env := newTestEnv(t)
	due := env.clock.Now().Add(48 * time.Hour)
	invoice := invoicedReceipt(t, env, &due)
	ctx := ctxAs(domain.RoleAdmin)

	env.clock.Advance(72 * time.Hour)
	detail, err := env.svc.GetPurchaseInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("get invoice failed: %v", err)
	}
	if detail.EffectiveStatus != domain.InvoiceStatusOverdue || detail.Invoice.Status != domain.InvoiceStatusPending {
		t.Fatalf("expected overdue over stored pending, got %s / %s", detail.EffectiveStatus, detail.Invoice.Status)
	}

	overdue, err := env.svc.ListPurchaseInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoiceStatusOverdue})
	if err != nil {
		t.Fatalf("list invoices failed: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != invoice.ID {
		t.Fatalf("expected the overdue invoice, got %+v", overdue)
	}
}

func TestGetPurchaseOrderAggregatesDocuments(t *testing.T) {
	env := newTestEnv(t)
	invoice := invoicedReceipt(t, env, nil)

	detail, err := env.svc.GetPurchaseOrder(ctxAs(domain.RoleStaff), invoice.PurchaseOrderID)
	if err != nil {
		t.Fatalf("get purchase order failed: %v", err)
	}
	if detail.PurchaseOrder.Status != domain.POStatusReceived || len(detail.GoodsReceipts) != 1 || len(detail.Invoices) != 1 {
		t.Fatalf("unexpected purchase order detail %+v", detail)
	}
	if _, err := env.svc.GetPurchaseOrder(ctxAs(domain.RoleStaff), "po_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
