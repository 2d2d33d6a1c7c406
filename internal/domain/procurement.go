package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID        string    `json:"id" db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Contact   string    `json:"contact" db:"contact"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SupplierBankAccount struct {
	ID            string    `json:"id" db:"id"`
	CompanyID     string    `json:"company_id" db:"company_id"`
	SupplierID    string    `json:"supplier_id" db:"supplier_id"`
	BankName      string    `json:"bank_name" db:"bank_name"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	AccountHolder string    `json:"account_holder" db:"account_holder"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type SupplierBankAccountInput struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountHolder string `json:"account_holder" validate:"required"`
}

type SupplierCreateRequest struct {
	Code         string                     `json:"code" validate:"required,max=32"`
	Name         string                     `json:"name" validate:"required,max=160"`
	Contact      string                     `json:"contact"`
	BankAccounts []SupplierBankAccountInput `json:"bank_accounts" validate:"dive"`
}

type SupplierResult struct {
	Supplier Supplier `json:"supplier"`
	Effects  []Effect `json:"effects"`
}

type PurchaseOrderStatus string

const (
	POStatusPending           PurchaseOrderStatus = "pending"
	POStatusApproved          PurchaseOrderStatus = "approved"
	POStatusOrdered           PurchaseOrderStatus = "ordered"
	POStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	POStatusReceived          PurchaseOrderStatus = "received"
	POStatusCancelled         PurchaseOrderStatus = "cancelled"
)

type PurchaseOrder struct {
	ID          string              `json:"id" db:"id"`
	CompanyID   string              `json:"company_id" db:"company_id"`
	Number      string              `json:"number" db:"number"`
	SupplierID  string              `json:"supplier_id" db:"supplier_id"`
	WarehouseID string              `json:"warehouse_id" db:"warehouse_id"`
	Notes       string              `json:"notes" db:"notes"`
	Status      PurchaseOrderStatus `json:"status" db:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount" db:"total_amount"`
	CreatedBy   string              `json:"created_by" db:"created_by"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
	Items       []PurchaseOrderItem `json:"items" db:"-"`
}

type PurchaseOrderItem struct {
	ID              string          `json:"id" db:"id"`
	PurchaseOrderID string          `json:"purchase_order_id" db:"purchase_order_id"`
	ProductID       string          `json:"product_id" db:"product_id"`
	VariantID       string          `json:"variant_id" db:"variant_id"`
	OrderedQty      int             `json:"ordered_qty" db:"ordered_qty"`
	ReceivedQty     int             `json:"received_qty" db:"received_qty"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (i PurchaseOrderItem) OutstandingQty() int {
	if i.ReceivedQty >= i.OrderedQty {
		return 0
	}
	return i.OrderedQty - i.ReceivedQty
}

func (po PurchaseOrder) Clone() PurchaseOrder {
	po.Items = append([]PurchaseOrderItem(nil), po.Items...)
	return po
}

// ReceiptStatus is the status implied by the received quantities alone.
// With nothing received the order falls back to ordered.
func (po PurchaseOrder) ReceiptStatus() PurchaseOrderStatus {
	received, complete := 0, true
	for _, item := range po.Items {
		received += item.ReceivedQty
		if item.OutstandingQty() > 0 {
			complete = false
		}
	}
	switch {
	case complete && len(po.Items) > 0:
		return POStatusReceived
	case received > 0:
		return POStatusPartiallyReceived
	default:
		return POStatusOrdered
	}
}

func (po PurchaseOrder) Receivable() bool {
	switch po.Status {
	case POStatusApproved, POStatusOrdered, POStatusPartiallyReceived:
		return true
	}
	return false
}

var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	POStatusPending:  {POStatusApproved, POStatusCancelled},
	POStatusApproved: {POStatusOrdered, POStatusCancelled},
	POStatusOrdered:  {POStatusCancelled},
}

// CanTransitionPurchaseOrder covers manual transitions only. Receipt-driven
// statuses are set by goods receipts.
func CanTransitionPurchaseOrder(from, to PurchaseOrderStatus) bool {
	for _, next := range purchaseOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PurchaseOrderLineInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID  string                   `json:"supplier_id" validate:"required"`
	WarehouseID string                   `json:"warehouse_id" validate:"required"`
	Notes       string                   `json:"notes"`
	Items       []PurchaseOrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type PurchaseOrderStatusRequest struct {
	Status PurchaseOrderStatus `json:"status" validate:"required"`
}

type PurchaseOrderDetail struct {
	PurchaseOrder PurchaseOrder     `json:"purchase_order"`
	GoodsReceipts []GoodsReceipt    `json:"goods_receipts"`
	Invoices      []PurchaseInvoice `json:"invoices"`
}

type GoodsReceiptStatus string

const (
	GRNStatusPending   GoodsReceiptStatus = "pending"
	GRNStatusInspected GoodsReceiptStatus = "inspected"
	GRNStatusApproved  GoodsReceiptStatus = "approved"
	GRNStatusRejected  GoodsReceiptStatus = "rejected"
	GRNStatusCompleted GoodsReceiptStatus = "completed"
)

type GoodsReceipt struct {
	ID              string             `json:"id" db:"id"`
	CompanyID       string             `json:"company_id" db:"company_id"`
	Number          string             `json:"number" db:"number"`
	PurchaseOrderID string             `json:"purchase_order_id" db:"purchase_order_id"`
	WarehouseID     string             `json:"warehouse_id" db:"warehouse_id"`
	Status          GoodsReceiptStatus `json:"status" db:"status"`
	Notes           string             `json:"notes" db:"notes"`
	ReceivedBy      string             `json:"received_by" db:"received_by"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
	Items           []GoodsReceiptItem `json:"items" db:"-"`
}

type GoodsReceiptItem struct {
	ID                  string          `json:"id" db:"id"`
	GoodsReceiptID      string          `json:"goods_receipt_id" db:"goods_receipt_id"`
	PurchaseOrderItemID string          `json:"purchase_order_item_id" db:"purchase_order_item_id"`
	ProductID           string          `json:"product_id" db:"product_id"`
	VariantID           string          `json:"variant_id" db:"variant_id"`
	Quantity            int             `json:"quantity" db:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (g GoodsReceipt) Clone() GoodsReceipt {
	g.Items = append([]GoodsReceiptItem(nil), g.Items...)
	return g
}

func (g GoodsReceipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range g.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

var goodsReceiptTransitions = map[GoodsReceiptStatus][]GoodsReceiptStatus{
	GRNStatusPending:   {GRNStatusInspected, GRNStatusRejected},
	GRNStatusInspected: {GRNStatusApproved, GRNStatusRejected},
	GRNStatusApproved:  {GRNStatusRejected},
}

func CanTransitionGoodsReceipt(from, to GoodsReceiptStatus) bool {
	for _, next := range goodsReceiptTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (g GoodsReceipt) Completable() bool {
	switch g.Status {
	case GRNStatusPending, GRNStatusInspected, GRNStatusApproved:
		return true
	}
	return false
}

type GoodsReceiptLineInput struct {
	PurchaseOrderItemID string `json:"purchase_order_item_id"`
	ProductID           string `json:"product_id"`
	VariantID           string `json:"variant_id"`
	Quantity            int    `json:"quantity" validate:"gt=0"`
}

type GoodsReceiptCreateRequest struct {
	PurchaseOrderID string                  `json:"purchase_order_id" validate:"required"`
	WarehouseID     string                  `json:"warehouse_id"`
	Notes           string                  `json:"notes"`
	Items           []GoodsReceiptLineInput `json:"items" validate:"required,min=1,dive"`
}

type GoodsReceiptStatusRequest struct {
	Status GoodsReceiptStatus `json:"status" validate:"required"`
}

type GoodsReceiptResult struct {
	GoodsReceipt  GoodsReceipt    `json:"goods_receipt"`
	PurchaseOrder *PurchaseOrder  `json:"purchase_order,omitempty"`
	Movements     []StockMovement `json:"movements,omitempty"`
	Effects       []Effect        `json:"effects,omitempty"`
}

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// DeriveInvoiceStatus is the single source of invoice payment status. It
// never yields overdue or cancelled; those are applied on top of it. An
// invoice with nothing to pay is paid.
func DeriveInvoiceStatus(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

type PurchaseInvoice struct {
	ID                    string          `json:"id" db:"id"`
	CompanyID             string          `json:"company_id" db:"company_id"`
	Number                string          `json:"number" db:"number"`
	SupplierInvoiceNumber string          `json:"supplier_invoice_number" db:"supplier_invoice_number"`
	PurchaseOrderID       string          `json:"purchase_order_id" db:"purchase_order_id"`
	GoodsReceiptID        string          `json:"goods_receipt_id" db:"goods_receipt_id"`
	SupplierID            string          `json:"supplier_id" db:"supplier_id"`
	TotalAmount           decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount            decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	DueDate               *time.Time      `json:"due_date,omitempty" db:"due_date"`
	Status                InvoiceStatus   `json:"status" db:"status"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

func (inv PurchaseInvoice) Outstanding() decimal.Decimal {
	out := inv.TotalAmount.Sub(inv.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// EffectiveStatus applies overdue to unpaid invoices whose due date has passed.
func (inv PurchaseInvoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.Status != InvoiceStatusPending && inv.Status != InvoiceStatusPartial {
		return inv.Status
	}
	if inv.DueDate != nil && now.After(*inv.DueDate) {
		return InvoiceStatusOverdue
	}
	return inv.Status
}

type PurchaseInvoiceCreateRequest struct {
	GoodsReceiptID        string     `json:"goods_receipt_id" validate:"required"`
	SupplierInvoiceNumber string     `json:"supplier_invoice_number" validate:"required,max=64"`
	DueDate               *time.Time `json:"due_date"`
}

type InvoiceFilter struct {
	PurchaseOrderID string
	Status          InvoiceStatus
	Limit           int
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
)

type SupplierPayment struct {
	ID        string          `json:"id" db:"id"`
	CompanyID string          `json:"company_id" db:"company_id"`
	InvoiceID string          `json:"invoice_id" db:"invoice_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Method    string          `json:"method" db:"method"`
	Reference string          `json:"reference" db:"reference"`
	Status    PaymentStatus   `json:"status" db:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedBy string          `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type SupplierPaymentCreateRequest struct {
	InvoiceID string          `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,oneof=transfer cash cheque giro"`
	Reference string          `json:"reference"`
	Status    PaymentStatus   `json:"status" validate:"omitempty,oneof=pending processing completed"`
}

type SupplierPaymentResult struct {
	Payment SupplierPayment `json:"payment"`
	Invoice PurchaseInvoice `json:"invoice"`
	Effects []Effect        `json:"effects,omitempty"`
}

type PurchaseInvoiceDetail struct {
	Invoice         PurchaseInvoice   `json:"invoice"`
	EffectiveStatus InvoiceStatus     `json:"effective_status"`
	Payments        []SupplierPayment `json:"payments"`
}
