package domain

import "time"

type MovementType string

const (
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	MovementTransferIn    MovementType = "TRANSFER_IN"
	MovementTransferOut   MovementType = "TRANSFER_OUT"
	MovementSale          MovementType = "SALE"
	MovementReturn        MovementType = "RETURN"
	MovementReceipt       MovementType = "RECEIPT"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementAdjustmentIn, MovementAdjustmentOut, MovementTransferIn, MovementTransferOut,
		MovementSale, MovementReturn, MovementReceipt:
		return true
	}
	return false
}

const (
	RefAdjustment   = "adjustment"
	RefTransfer     = "transfer"
	RefGoodsReceipt = "goods_receipt"
	RefOrder        = "order"
	RefOrderCancel  = "order_cancel"
	RefReturnOrder  = "return_order"
)

// StockKey identifies one inventory row. VariantID is empty for products
// without variants.
type StockKey struct {
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id"`
}

// StockMovement is an append-only ledger entry. Quantity is signed.
type StockMovement struct {
	ID            string       `json:"id" db:"id"`
	CompanyID     string       `json:"company_id" db:"company_id"`
	WarehouseID   string       `json:"warehouse_id" db:"warehouse_id"`
	ProductID     string       `json:"product_id" db:"product_id"`
	VariantID     string       `json:"variant_id" db:"variant_id"`
	MovementType  MovementType `json:"movement_type" db:"movement_type"`
	Quantity      int          `json:"quantity" db:"quantity"`
	BalanceAfter  int          `json:"balance_after" db:"balance_after"`
	ReferenceType string       `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID   string       `json:"reference_id,omitempty" db:"reference_id"`
	CorrelationID string       `json:"correlation_id,omitempty" db:"correlation_id"`
	Reason        string       `json:"reason,omitempty" db:"reason"`
	CreatedBy     string       `json:"created_by" db:"created_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

func (m StockMovement) Key() StockKey {
	return StockKey{WarehouseID: m.WarehouseID, ProductID: m.ProductID, VariantID: m.VariantID}
}

type WarehouseInventory struct {
	ID            string    `json:"id" db:"id"`
	CompanyID     string    `json:"company_id" db:"company_id"`
	WarehouseID   string    `json:"warehouse_id" db:"warehouse_id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	VariantID     string    `json:"variant_id" db:"variant_id"`
	StockCount    int       `json:"stock_count" db:"stock_count"`
	ReservedStock int       `json:"reserved_stock" db:"reserved_stock"`
	Version       int64     `json:"version" db:"version"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (i WarehouseInventory) Key() StockKey {
	return StockKey{WarehouseID: i.WarehouseID, ProductID: i.ProductID, VariantID: i.VariantID}
}

func (i WarehouseInventory) Available() int {
	return i.StockCount - i.ReservedStock
}

type StockAdjustRequest struct {
	WarehouseID      string `json:"warehouse_id" validate:"required"`
	ProductID        string `json:"product_id" validate:"required"`
	VariantID        string `json:"variant_id"`
	PhysicalQuantity int    `json:"physical_quantity" validate:"gte=0"`
	Reason           string `json:"reason" validate:"max=255"`
}

type StockAdjustResult struct {
	Difference int                `json:"difference"`
	Movement   *StockMovement     `json:"movement,omitempty"`
	Inventory  WarehouseInventory `json:"inventory"`
	Effects    []Effect           `json:"effects,omitempty"`
}

type StockTransferLine struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type StockTransferRequest struct {
	SourceWarehouseID      string              `json:"source_warehouse_id" validate:"required"`
	DestinationWarehouseID string              `json:"destination_warehouse_id" validate:"required"`
	Reason                 string              `json:"reason" validate:"max=255"`
	Items                  []StockTransferLine `json:"items" validate:"required,min=1,dive"`
}

type StockTransferResult struct {
	CorrelationID string          `json:"correlation_id"`
	Movements     []StockMovement `json:"movements"`
	Effects       []Effect        `json:"effects,omitempty"`
}

type MovementFilter struct {
	WarehouseID   string
	WarehouseIDs  []string
	ProductID     string
	VariantID     *string
	MovementType  MovementType
	ReferenceType string
	ReferenceID   string
	Limit         int
}

type ReconcileLine struct {
	StockKey
	StockCount int  `json:"stock_count"`
	LedgerSum  int  `json:"ledger_sum"`
	Consistent bool `json:"consistent"`
}

type ReconcileReport struct {
	Consistent bool            `json:"consistent"`
	Lines      []ReconcileLine `json:"lines"`
}
