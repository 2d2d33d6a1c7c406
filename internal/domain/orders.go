package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeSales    OrderType = "sales"
	OrderTypePurchase OrderType = "purchase"
	OrderTypeReturn   OrderType = "return"
)

type OrderSource string

const (
	OrderSourceEcommerce OrderSource = "ecommerce"
	OrderSourcePOS       OrderSource = "pos"
	OrderSourceSales     OrderSource = "sales"
	OrderSourceInternal  OrderSource = "internal"
)

func (s OrderSource) Valid() bool {
	switch s {
	case OrderSourceEcommerce, OrderSourcePOS, OrderSourceSales, OrderSourceInternal:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

const DefaultGraceWindow = 5 * time.Minute

type Order struct {
	ID              string          `json:"id" db:"id"`
	CompanyID       string          `json:"company_id" db:"company_id"`
	Number          string          `json:"number" db:"number"`
	OrderType       OrderType       `json:"order_type" db:"order_type"`
	OrderSource     OrderSource     `json:"order_source" db:"order_source"`
	Status          OrderStatus     `json:"status" db:"status"`
	WarehouseID     string          `json:"warehouse_id" db:"warehouse_id"`
	CustomerID      string          `json:"customer_id,omitempty" db:"customer_id"`
	OriginalOrderID string          `json:"original_order_id,omitempty" db:"original_order_id"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	Reason          string          `json:"reason,omitempty" db:"reason"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	CreatedBy       string          `json:"created_by" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RestockedAt     *time.Time      `json:"restocked_at,omitempty" db:"restocked_at"`
	Items           []OrderItem     `json:"items" db:"-"`
}

type OrderItem struct {
	ID        string          `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	VariantID string          `json:"variant_id" db:"variant_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

func NewOrderItem(productID, variantID string, qty int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

func (o Order) WithinGraceWindow(now time.Time, grace time.Duration) bool {
	return now.Sub(o.CreatedAt) <= grace
}

// EffectiveStatus promotes a pending order to processing once the grace
// window has elapsed. Nothing persists the promotion until the next write.
func (o Order) EffectiveStatus(now time.Time, grace time.Duration) OrderStatus {
	if o.Status == OrderStatusPending && !o.WithinGraceWindow(now, grace) {
		return OrderStatusProcessing
	}
	return o.Status
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type LineKey struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

func (i OrderItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

type ReturnableLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Ordered   int    `json:"ordered"`
	Returned  int    `json:"returned"`
	Remaining int    `json:"remaining"`
}

// ComputeReturnable returns, per (product, variant) of the original order,
// the ordered quantity minus everything already returned against it.
func ComputeReturnable(original Order, returns []Order) []ReturnableLine {
	ordered := make(map[LineKey]int, len(original.Items))
	keys := make([]LineKey, 0, len(original.Items))
	for _, item := range original.Items {
		if _, seen := ordered[item.Key()]; !seen {
			keys = append(keys, item.Key())
		}
		ordered[item.Key()] += item.Quantity
	}

	returned := make(map[LineKey]int, len(ordered))
	for _, ret := range returns {
		if ret.OrderType != OrderTypeReturn || ret.OriginalOrderID != original.ID {
			continue
		}
		for _, item := range ret.Items {
			returned[item.Key()] += item.Quantity
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID < keys[j].ProductID
		}
		return keys[i].VariantID < keys[j].VariantID
	})

	lines := make([]ReturnableLine, 0, len(keys))
	for _, key := range keys {
		remaining := ordered[key] - returned[key]
		if remaining < 0 {
			remaining = 0
		}
		lines = append(lines, ReturnableLine{
			ProductID: key.ProductID,
			VariantID: key.VariantID,
			Ordered:   ordered[key],
			Returned:  returned[key],
			Remaining: remaining,
		})
	}
	return lines
}

type OrderLineInput struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type OrderCreateRequest struct {
	WarehouseID     string           `json:"warehouse_id" validate:"required"`
	OrderType       OrderType        `json:"order_type" validate:"omitempty,oneof=sales purchase return"`
	OrderSource     OrderSource      `json:"order_source" validate:"omitempty,oneof=ecommerce pos sales internal"`
	CustomerID      string           `json:"customer_id"`
	PaymentIntentID string           `json:"payment_intent_id"`
	Items           []OrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type OrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type ReturnOrderRequest struct {
	Reason string           `json:"reason" validate:"max=255"`
	Items  []OrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type OrderFilter struct {
	OrderType       OrderType
	Status          OrderStatus
	CustomerID      string
	OriginalOrderID string
	PaymentIntentID string
	Limit           int
}

type OrderResult struct {
	Order           Order           `json:"order"`
	EffectiveStatus OrderStatus     `json:"effective_status"`
	Movements       []StockMovement `json:"movements,omitempty"`
	Effects         []Effect        `json:"effects,omitempty"`
}

type OrderDetail struct {
	Order           Order            `json:"order"`
	EffectiveStatus OrderStatus      `json:"effective_status"`
	Cancellable     bool             `json:"cancellable"`
	Returns         []Order          `json:"returns,omitempty"`
	Returnable      []ReturnableLine `json:"returnable,omitempty"`
}

type PaymentIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
}
