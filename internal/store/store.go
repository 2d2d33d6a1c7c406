package store

import (
	"context"
	"errors"
	"time"

	"pasarhub/backend/internal/domain"
)

type sentinel struct {
	msg    string
	parent error
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.parent }

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrTenantRequired = errors.New("tenant required")

	// ErrInsufficientStock also matches ErrConflict.
	ErrInsufficientStock error = &sentinel{msg: "insufficient stock", parent: ErrConflict}
)

// Repository hands out units of work. Atomic runs fn in a single read-write
// transaction that commits only when fn returns nil; View runs fn read-only.
type Repository interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the data access surface inside a unit of work. Every business query
// takes the company id; rows of other companies are reported as ErrNotFound.
type Tx interface {
	CreateCompany(ctx context.Context, company domain.Company) error
	GetCompany(ctx context.Context, id string) (*domain.Company, error)
	GetCompanyBySlug(ctx context.Context, slug string) (*domain.Company, error)
	SetCompanyModules(ctx context.Context, companyID string, modules []string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, companyID string, id string) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, companyID string, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, companyID string) ([]domain.UserAccount, error)

	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) error
	GetWarehouse(ctx context.Context, companyID string, id string) (*domain.Warehouse, error)
	ListWarehouses(ctx context.Context, companyID string) ([]domain.Warehouse, error)

	CreateProduct(ctx context.Context, product domain.Product) error
	GetProductsByIDs(ctx context.Context, companyID string, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context, companyID string) ([]domain.Product, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) error
	GetSupplier(ctx context.Context, companyID string, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, companyID string) ([]domain.Supplier, error)
	CreateSupplierBankAccount(ctx context.Context, account domain.SupplierBankAccount) error

	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, companyID string, id string) (*domain.PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	ListPurchaseOrders(ctx context.Context, companyID string, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error)

	CreateGoodsReceipt(ctx context.Context, grn domain.GoodsReceipt) error
	GetGoodsReceipt(ctx context.Context, companyID string, id string) (*domain.GoodsReceipt, error)
	GetGoodsReceiptForUpdate(ctx context.Context, companyID string, id string) (*domain.GoodsReceipt, error)
	UpdateGoodsReceipt(ctx context.Context, grn domain.GoodsReceipt) error
	ListGoodsReceipts(ctx context.Context, companyID string, purchaseOrderID string, limit int) ([]domain.GoodsReceipt, error)

	CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error
	GetPurchaseInvoice(ctx context.Context, companyID string, id string) (*domain.PurchaseInvoice, error)
	GetPurchaseInvoiceForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseInvoice, error)
	GetPurchaseInvoiceByGoodsReceipt(ctx context.Context, companyID string, goodsReceiptID string) (*domain.PurchaseInvoice, error)
	UpdatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error
	ListPurchaseInvoices(ctx context.Context, companyID string, filter domain.InvoiceFilter) ([]domain.PurchaseInvoice, error)

	CreateSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error
	GetSupplierPaymentForUpdate(ctx context.Context, companyID string, id string) (*domain.SupplierPayment, error)
	UpdateSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error
	ListSupplierPayments(ctx context.Context, companyID string, invoiceID string) ([]domain.SupplierPayment, error)

	// GetInventoryForUpdate locks the row for key. ErrNotFound means no row
	// exists yet; SaveInventory with expectedVersion 0 creates it.
	GetInventoryForUpdate(ctx context.Context, companyID string, key domain.StockKey) (*domain.WarehouseInventory, error)
	// SaveInventory writes inv only if the stored version equals
	// expectedVersion, otherwise it returns ErrConflict.
	SaveInventory(ctx context.Context, inv domain.WarehouseInventory, expectedVersion int64) error
	InsertStockMovement(ctx context.Context, movement domain.StockMovement) error
	ListInventory(ctx context.Context, companyID string, warehouseID string) ([]domain.WarehouseInventory, error)
	ListStockMovements(ctx context.Context, companyID string, filter domain.MovementFilter) ([]domain.StockMovement, error)
	SumStockMovements(ctx context.Context, companyID string) (map[domain.StockKey]int, error)

	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, companyID string, id string) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) error
	ListOrders(ctx context.Context, companyID string, filter domain.OrderFilter) ([]domain.Order, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
