package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	cases := []struct {
		total, paid int64
		want        InvoiceStatus
	}{
		{500, 0, InvoiceStatusPending},
		{500, 300, InvoiceStatusPartial},
		{500, 500, InvoiceStatusPaid},
		{500, 600, InvoiceStatusPaid},
		{0, 0, InvoiceStatusPaid},
	}
	for _, tc := range cases {
		got := DeriveInvoiceStatus(decimal.NewFromInt(tc.total), decimal.NewFromInt(tc.paid))
		if got != tc.want {
			t.Fatalf("DeriveInvoiceStatus(%d, %d) = %s, want %s", tc.total, tc.paid, got, tc.want)
		}
	}
}

func TestInvoiceEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name    string
		invoice PurchaseInvoice
		want    InvoiceStatus
	}{
		{"no due date", PurchaseInvoice{Status: InvoiceStatusPending}, InvoiceStatusPending},
		{"not yet due", PurchaseInvoice{Status: InvoiceStatusPartial, DueDate: &future}, InvoiceStatusPartial},
		{"pending past due", PurchaseInvoice{Status: InvoiceStatusPending, DueDate: &past}, InvoiceStatusOverdue},
		{"partial past due", PurchaseInvoice{Status: InvoiceStatusPartial, DueDate: &past}, InvoiceStatusOverdue},
		{"paid past due", PurchaseInvoice{Status: InvoiceStatusPaid, DueDate: &past}, InvoiceStatusPaid},
		{"cancelled past due", PurchaseInvoice{Status: InvoiceStatusCancelled, DueDate: &past}, InvoiceStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.invoice.EffectiveStatus(now); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPurchaseOrderReceiptStatus(t *testing.T) {
	po := PurchaseOrder{Items: []PurchaseOrderItem{
		{OrderedQty: 100},
		{OrderedQty: 10},
	}}
	if got := po.ReceiptStatus(); got != POStatusOrdered {
		t.Fatalf("nothing received: got %s", got)
	}
	po.Items[0].ReceivedQty = 60
	if got := po.ReceiptStatus(); got != POStatusPartiallyReceived {
		t.Fatalf("partial: got %s", got)
	}
	po.Items[0].ReceivedQty = 100
	po.Items[1].ReceivedQty = 10
	if got := po.ReceiptStatus(); got != POStatusReceived {
		t.Fatalf("complete: got %s", got)
	}
	if po.Items[0].OutstandingQty() != 0 {
		t.Fatalf("expected nothing outstanding")
	}
}

func TestPurchaseOrderTransitions(t *testing.T) {
	allowed := [][2]PurchaseOrderStatus{
		{POStatusPending, POStatusApproved},
		{POStatusPending, POStatusCancelled},
		{POStatusApproved, POStatusOrdered},
		{POStatusOrdered, POStatusCancelled},
	}
	for _, pair := range allowed {
		if !CanTransitionPurchaseOrder(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]PurchaseOrderStatus{
		{POStatusPending, POStatusOrdered},
		{POStatusOrdered, POStatusApproved},
		{POStatusReceived, POStatusCancelled},
		{POStatusCancelled, POStatusApproved},
	}
	for _, pair := range denied {
		if CanTransitionPurchaseOrder(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestOrderEffectiveStatus(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	order := Order{Status: OrderStatusPending, CreatedAt: created}

	if got := order.EffectiveStatus(created.Add(DefaultGraceWindow), DefaultGraceWindow); got != OrderStatusPending {
		t.Fatalf("at the boundary: got %s", got)
	}
	if got := order.EffectiveStatus(created.Add(DefaultGraceWindow+time.Millisecond), DefaultGraceWindow); got != OrderStatusProcessing {
		t.Fatalf("past the boundary: got %s", got)
	}

	order.Status = OrderStatusCancelled
	if got := order.EffectiveStatus(created.Add(time.Hour), DefaultGraceWindow); got != OrderStatusCancelled {
		t.Fatalf("cancelled orders keep their status: got %s", got)
	}
}

func TestComputeReturnable(t *testing.T) {
	original := Order{
		ID:        "ord_1",
		OrderType: OrderTypeSales,
		Items: []OrderItem{
			{ProductID: "oil", Quantity: 3},
			{ProductID: "sugar", VariantID: "1kg", Quantity: 5},
		},
	}
	returns := []Order{
		{OrderType: OrderTypeReturn, OriginalOrderID: "ord_1", Items: []OrderItem{{ProductID: "oil", Quantity: 2}}},
		{OrderType: OrderTypeReturn, OriginalOrderID: "ord_1", Items: []OrderItem{{ProductID: "sugar", VariantID: "1kg", Quantity: 1}}},
		{OrderType: OrderTypeReturn, OriginalOrderID: "ord_2", Items: []OrderItem{{ProductID: "oil", Quantity: 3}}},
	}

	lines := ComputeReturnable(original, returns)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ProductID != "oil" || lines[0].Returned != 2 || lines[0].Remaining != 1 {
		t.Fatalf("unexpected oil line %+v", lines[0])
	}
	if lines[1].VariantID != "1kg" || lines[1].Remaining != 4 {
		t.Fatalf("unexpected sugar line %+v", lines[1])
	}
}

func TestActorWarehouseScope(t *testing.T) {
	open := Actor{Role: RoleManager}
	if !open.CanAccessWarehouse("wh_any") {
		t.Fatalf("empty scope should cover every warehouse")
	}
	scoped := Actor{Role: RoleStaff, Warehouses: []string{"wh_main"}}
	if !scoped.CanAccessWarehouse("wh_main") || scoped.CanAccessWarehouse("wh_branch") {
		t.Fatalf("unexpected scope result for %+v", scoped)
	}
}
