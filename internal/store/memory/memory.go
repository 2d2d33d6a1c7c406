package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

var errReadOnly = errors.New("memory store: write in read-only view")

// Store keeps every company's rows in process. Units of work are serialized
// by a single lock and a failed Atomic call restores the pre-call snapshot.
// Stored values are never mutated in place, so a shallow copy of the maps is
// a complete snapshot.
type Store struct {
	mu   sync.RWMutex
	data *state
}

type inventoryKey struct {
	companyID string
	domain.StockKey
}

type state struct {
	companies        map[string]domain.Company
	companyBySlug    map[string]string
	users            map[string]domain.UserAccount
	warehouses       map[string]domain.Warehouse
	products         map[string]domain.Product
	suppliers        map[string]domain.Supplier
	bankAccounts     []domain.SupplierBankAccount
	purchaseOrders   map[string]domain.PurchaseOrder
	purchaseOrderIDs []string
	goodsReceipts    map[string]domain.GoodsReceipt
	goodsReceiptIDs  []string
	invoices         map[string]domain.PurchaseInvoice
	invoiceIDs       []string
	payments         map[string]domain.SupplierPayment
	paymentIDs       []string
	inventory        map[inventoryKey]domain.WarehouseInventory
	movements        []domain.StockMovement
	orders           map[string]domain.Order
	orderIDs         []string
	auditLogs        []domain.AuditLog
}

func newState() *state {
	return &state{
		companies:      make(map[string]domain.Company),
		companyBySlug:  make(map[string]string),
		users:          make(map[string]domain.UserAccount),
		warehouses:     make(map[string]domain.Warehouse),
		products:       make(map[string]domain.Product),
		suppliers:      make(map[string]domain.Supplier),
		purchaseOrders: make(map[string]domain.PurchaseOrder),
		goodsReceipts:  make(map[string]domain.GoodsReceipt),
		invoices:       make(map[string]domain.PurchaseInvoice),
		payments:       make(map[string]domain.SupplierPayment),
		inventory:      make(map[inventoryKey]domain.WarehouseInventory),
		orders:         make(map[string]domain.Order),
	}
}

func (st *state) clone() *state {
	return &state{
		companies:        maps.Clone(st.companies),
		companyBySlug:    maps.Clone(st.companyBySlug),
		users:            maps.Clone(st.users),
		warehouses:       maps.Clone(st.warehouses),
		products:         maps.Clone(st.products),
		suppliers:        maps.Clone(st.suppliers),
		bankAccounts:     slices.Clone(st.bankAccounts),
		purchaseOrders:   maps.Clone(st.purchaseOrders),
		purchaseOrderIDs: slices.Clone(st.purchaseOrderIDs),
		goodsReceipts:    maps.Clone(st.goodsReceipts),
		goodsReceiptIDs:  slices.Clone(st.goodsReceiptIDs),
		invoices:         maps.Clone(st.invoices),
		invoiceIDs:       slices.Clone(st.invoiceIDs),
		payments:         maps.Clone(st.payments),
		paymentIDs:       slices.Clone(st.paymentIDs),
		inventory:        maps.Clone(st.inventory),
		movements:        slices.Clone(st.movements),
		orders:           maps.Clone(st.orders),
		orderIDs:         slices.Clone(st.orderIDs),
		auditLogs:        slices.Clone(st.auditLogs),
	}
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(ctx, &txn{st: s.data}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &txn{st: s.data, readOnly: true})
}

type txn struct {
	st       *state
	readOnly bool
}

func (t *txn) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *txn) CreateCompany(_ context.Context, company domain.Company) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.st.companyBySlug[company.Slug]; exists {
		return fmt.Errorf("%w: company slug %q already taken", store.ErrConflict, company.Slug)
	}
	company.Modules = slices.Clone(company.Modules)
	t.st.companies[company.ID] = company
	t.st.companyBySlug[company.Slug] = company.ID
	return nil
}

func (t *txn) GetCompany(_ context.Context, id string) (*domain.Company, error) {
	company, ok := t.st.companies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	company.Modules = slices.Clone(company.Modules)
	return &company, nil
}

func (t *txn) GetCompanyBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	id, ok := t.st.companyBySlug[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.GetCompany(ctx, id)
}

func (t *txn) SetCompanyModules(_ context.Context, companyID string, modules []string) error {
	if err := t.writable(); err != nil {
		return err
	}
	company, ok := t.st.companies[companyID]
	if !ok {
		return store.ErrNotFound
	}
	company.Modules = slices.Clone(modules)
	t.st.companies[companyID] = company
	return nil
}

func (t *txn) CreateUser(_ context.Context, user domain.UserAccount) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.users {
		if existing.CompanyID == user.CompanyID && existing.Username == user.Username {
			return fmt.Errorf("%w: username %q already exists", store.ErrConflict, user.Username)
		}
	}
	user.Warehouses = slices.Clone(user.Warehouses)
	t.st.users[user.ID] = user
	return nil
}

func (t *txn) GetUser(_ context.Context, companyID string, id string) (*domain.UserAccount, error) {
	user, ok := t.st.users[id]
	if !ok || user.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	user.Warehouses = slices.Clone(user.Warehouses)
	return &user, nil
}

func (t *txn) GetUserByUsername(ctx context.Context, companyID string, username string) (*domain.UserAccount, error) {
	for id, user := range t.st.users {
		if user.CompanyID == companyID && user.Username == username {
			return t.GetUser(ctx, companyID, id)
		}
	}
	return nil, store.ErrNotFound
}

func (t *txn) ListUsers(_ context.Context, companyID string) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0)
	for _, user := range t.st.users {
		if user.CompanyID == companyID {
			user.Warehouses = slices.Clone(user.Warehouses)
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (t *txn) CreateWarehouse(_ context.Context, warehouse domain.Warehouse) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.warehouses {
		if existing.CompanyID == warehouse.CompanyID && strings.EqualFold(existing.Code, warehouse.Code) {
			return fmt.Errorf("%w: warehouse code %q already exists", store.ErrConflict, warehouse.Code)
		}
	}
	t.st.warehouses[warehouse.ID] = warehouse
	return nil
}

func (t *txn) GetWarehouse(_ context.Context, companyID string, id string) (*domain.Warehouse, error) {
	warehouse, ok := t.st.warehouses[id]
	if !ok || warehouse.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &warehouse, nil
}

func (t *txn) ListWarehouses(_ context.Context, companyID string) ([]domain.Warehouse, error) {
	out := make([]domain.Warehouse, 0)
	for _, warehouse := range t.st.warehouses {
		if warehouse.CompanyID == companyID {
			out = append(out, warehouse)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *txn) CreateProduct(_ context.Context, product domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.products {
		if existing.CompanyID == product.CompanyID && existing.SKU == product.SKU {
			return fmt.Errorf("%w: sku %q already exists", store.ErrConflict, product.SKU)
		}
	}
	t.st.products[product.ID] = product
	return nil
}

func (t *txn) GetProductsByIDs(_ context.Context, companyID string, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		product, ok := t.st.products[id]
		if ok && product.CompanyID == companyID {
			out[id] = product
		}
	}
	return out, nil
}

func (t *txn) ListProducts(_ context.Context, companyID string) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	for _, product := range t.st.products {
		if product.CompanyID == companyID {
			out = append(out, product)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (t *txn) CreateSupplier(_ context.Context, supplier domain.Supplier) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.suppliers {
		if existing.CompanyID == supplier.CompanyID && strings.EqualFold(existing.Code, supplier.Code) {
			return fmt.Errorf("%w: supplier code %q already exists", store.ErrConflict, supplier.Code)
		}
	}
	t.st.suppliers[supplier.ID] = supplier
	return nil
}

func (t *txn) GetSupplier(_ context.Context, companyID string, id string) (*domain.Supplier, error) {
	supplier, ok := t.st.suppliers[id]
	if !ok || supplier.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (t *txn) ListSuppliers(_ context.Context, companyID string) ([]domain.Supplier, error) {
	out := make([]domain.Supplier, 0)
	for _, supplier := range t.st.suppliers {
		if supplier.CompanyID == companyID {
			out = append(out, supplier)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *txn) CreateSupplierBankAccount(_ context.Context, account domain.SupplierBankAccount) error {
	if err := t.writable(); err != nil {
		return err
	}
	supplier, ok := t.st.suppliers[account.SupplierID]
	if !ok || supplier.CompanyID != account.CompanyID {
		return store.ErrNotFound
	}
	t.st.bankAccounts = append(t.st.bankAccounts, account)
	return nil
}

func (t *txn) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.st.purchaseOrders[po.ID]; exists {
		return fmt.Errorf("%w: purchase order %s already exists", store.ErrConflict, po.ID)
	}
	t.st.purchaseOrders[po.ID] = po.Clone()
	t.st.purchaseOrderIDs = append(t.st.purchaseOrderIDs, po.ID)
	return nil
}

func (t *txn) GetPurchaseOrder(_ context.Context, companyID string, id string) (*domain.PurchaseOrder, error) {
	po, ok := t.st.purchaseOrders[id]
	if !ok || po.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	po = po.Clone()
	return &po, nil
}

func (t *txn) GetPurchaseOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseOrder, error) {
	return t.GetPurchaseOrder(ctx, companyID, id)
}

func (t *txn) UpdatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.purchaseOrders[po.ID]
	if !ok || existing.CompanyID != po.CompanyID {
		return store.ErrNotFound
	}
	t.st.purchaseOrders[po.ID] = po.Clone()
	return nil
}

func (t *txn) ListPurchaseOrders(_ context.Context, companyID string, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error) {
	out := make([]domain.PurchaseOrder, 0)
	for i := len(t.st.purchaseOrderIDs) - 1; i >= 0; i-- {
		po := t.st.purchaseOrders[t.st.purchaseOrderIDs[i]]
		if po.CompanyID != companyID || (status != "" && po.Status != status) {
			continue
		}
		out = append(out, po.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *txn) CreateGoodsReceipt(_ context.Context, grn domain.GoodsReceipt) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.goodsReceipts[grn.ID] = grn.Clone()
	t.st.goodsReceiptIDs = append(t.st.goodsReceiptIDs, grn.ID)
	return nil
}

func (t *txn) GetGoodsReceipt(_ context.Context, companyID string, id string) (*domain.GoodsReceipt, error) {
	grn, ok := t.st.goodsReceipts[id]
	if !ok || grn.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	grn = grn.Clone()
	return &grn, nil
}

func (t *txn) GetGoodsReceiptForUpdate(ctx context.Context, companyID string, id string) (*domain.GoodsReceipt, error) {
	return t.GetGoodsReceipt(ctx, companyID, id)
}

func (t *txn) UpdateGoodsReceipt(_ context.Context, grn domain.GoodsReceipt) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.goodsReceipts[grn.ID]
	if !ok || existing.CompanyID != grn.CompanyID {
		return store.ErrNotFound
	}
	t.st.goodsReceipts[grn.ID] = grn.Clone()
	return nil
}

func (t *txn) ListGoodsReceipts(_ context.Context, companyID string, purchaseOrderID string, limit int) ([]domain.GoodsReceipt, error) {
	out := make([]domain.GoodsReceipt, 0)
	for i := len(t.st.goodsReceiptIDs) - 1; i >= 0; i-- {
		grn := t.st.goodsReceipts[t.st.goodsReceiptIDs[i]]
		if grn.CompanyID != companyID || (purchaseOrderID != "" && grn.PurchaseOrderID != purchaseOrderID) {
			continue
		}
		out = append(out, grn.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *txn) CreatePurchaseInvoice(_ context.Context, invoice domain.PurchaseInvoice) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.invoices {
		if existing.CompanyID == invoice.CompanyID && existing.GoodsReceiptID == invoice.GoodsReceiptID {
			return fmt.Errorf("%w: goods receipt %s already invoiced", store.ErrConflict, invoice.GoodsReceiptID)
		}
	}
	t.st.invoices[invoice.ID] = invoice
	t.st.invoiceIDs = append(t.st.invoiceIDs, invoice.ID)
	return nil
}

func (t *txn) GetPurchaseInvoice(_ context.Context, companyID string, id string) (*domain.PurchaseInvoice, error) {
	invoice, ok := t.st.invoices[id]
	if !ok || invoice.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &invoice, nil
}

func (t *txn) GetPurchaseInvoiceForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseInvoice, error) {
	return t.GetPurchaseInvoice(ctx, companyID, id)
}

func (t *txn) GetPurchaseInvoiceByGoodsReceipt(_ context.Context, companyID string, goodsReceiptID string) (*domain.PurchaseInvoice, error) {
	for _, invoice := range t.st.invoices {
		if invoice.CompanyID == companyID && invoice.GoodsReceiptID == goodsReceiptID {
			return &invoice, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *txn) UpdatePurchaseInvoice(_ context.Context, invoice domain.PurchaseInvoice) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.invoices[invoice.ID]
	if !ok || existing.CompanyID != invoice.CompanyID {
		return store.ErrNotFound
	}
	t.st.invoices[invoice.ID] = invoice
	return nil
}

func (t *txn) ListPurchaseInvoices(_ context.Context, companyID string, filter domain.InvoiceFilter) ([]domain.PurchaseInvoice, error) {
	out := make([]domain.PurchaseInvoice, 0)
	for i := len(t.st.invoiceIDs) - 1; i >= 0; i-- {
		invoice := t.st.invoices[t.st.invoiceIDs[i]]
		if invoice.CompanyID != companyID {
			continue
		}
		if filter.PurchaseOrderID != "" && invoice.PurchaseOrderID != filter.PurchaseOrderID {
			continue
		}
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		out = append(out, invoice)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (t *txn) CreateSupplierPayment(_ context.Context, payment domain.SupplierPayment) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.payments[payment.ID] = payment
	t.st.paymentIDs = append(t.st.paymentIDs, payment.ID)
	return nil
}

func (t *txn) GetSupplierPaymentForUpdate(_ context.Context, companyID string, id string) (*domain.SupplierPayment, error) {
	payment, ok := t.st.payments[id]
	if !ok || payment.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &payment, nil
}

func (t *txn) UpdateSupplierPayment(_ context.Context, payment domain.SupplierPayment) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.payments[payment.ID]
	if !ok || existing.CompanyID != payment.CompanyID {
		return store.ErrNotFound
	}
	t.st.payments[payment.ID] = payment
	return nil
}

func (t *txn) ListSupplierPayments(_ context.Context, companyID string, invoiceID string) ([]domain.SupplierPayment, error) {
	out := make([]domain.SupplierPayment, 0)
	for _, id := range t.st.paymentIDs {
		payment := t.st.payments[id]
		if payment.CompanyID == companyID && (invoiceID == "" || payment.InvoiceID == invoiceID) {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (t *txn) GetInventoryForUpdate(_ context.Context, companyID string, key domain.StockKey) (*domain.WarehouseInventory, error) {
	inv, ok := t.st.inventory[inventoryKey{companyID: companyID, StockKey: key}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (t *txn) SaveInventory(_ context.Context, inv domain.WarehouseInventory, expectedVersion int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if inv.StockCount < 0 {
		return fmt.Errorf("%w: stock count cannot be negative", store.ErrInsufficientStock)
	}
	key := inventoryKey{companyID: inv.CompanyID, StockKey: inv.Key()}
	current, exists := t.st.inventory[key]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("%w: inventory row disappeared", store.ErrConflict)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("%w: inventory row was modified concurrently", store.ErrConflict)
	}
	t.st.inventory[key] = inv
	return nil
}

func (t *txn) InsertStockMovement(_ context.Context, movement domain.StockMovement) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.movements = append(t.st.movements, movement)
	return nil
}

func (t *txn) ListInventory(_ context.Context, companyID string, warehouseID string) ([]domain.WarehouseInventory, error) {
	out := make([]domain.WarehouseInventory, 0)
	for key, inv := range t.st.inventory {
		if key.companyID != companyID || (warehouseID != "" && inv.WarehouseID != warehouseID) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.WarehouseID != b.WarehouseID {
			return a.WarehouseID < b.WarehouseID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.VariantID < b.VariantID
	})
	return out, nil
}

func (t *txn) ListStockMovements(_ context.Context, companyID string, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	out := make([]domain.StockMovement, 0)
	for i := len(t.st.movements) - 1; i >= 0; i-- {
		m := t.st.movements[i]
		if m.CompanyID != companyID || !matchesMovement(m, filter) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matchesMovement(m domain.StockMovement, f domain.MovementFilter) bool {
	switch {
	case f.WarehouseID != "" && m.WarehouseID != f.WarehouseID:
		return false
	case len(f.WarehouseIDs) > 0 && !slices.Contains(f.WarehouseIDs, m.WarehouseID):
		return false
	case f.ProductID != "" && m.ProductID != f.ProductID:
		return false
	case f.VariantID != nil && m.VariantID != *f.VariantID:
		return false
	case f.MovementType != "" && m.MovementType != f.MovementType:
		return false
	case f.ReferenceType != "" && m.ReferenceType != f.ReferenceType:
		return false
	case f.ReferenceID != "" && m.ReferenceID != f.ReferenceID:
		return false
	}
	return true
}

func (t *txn) SumStockMovements(_ context.Context, companyID string) (map[domain.StockKey]int, error) {
	sums := make(map[domain.StockKey]int)
	for _, m := range t.st.movements {
		if m.CompanyID == companyID {
			sums[m.Key()] += m.Quantity
		}
	}
	return sums, nil
}

func (t *txn) CreateOrder(_ context.Context, order domain.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.st.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s already exists", store.ErrConflict, order.ID)
	}
	t.st.orders[order.ID] = order.Clone()
	t.st.orderIDs = append(t.st.orderIDs, order.ID)
	return nil
}

func (t *txn) GetOrder(_ context.Context, companyID string, id string) (*domain.Order, error) {
	order, ok := t.st.orders[id]
	if !ok || order.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	order = order.Clone()
	return &order, nil
}

func (t *txn) GetOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.Order, error) {
	return t.GetOrder(ctx, companyID, id)
}

func (t *txn) UpdateOrder(_ context.Context, order domain.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.orders[order.ID]
	if !ok || existing.CompanyID != order.CompanyID {
		return store.ErrNotFound
	}
	t.st.orders[order.ID] = order.Clone()
	return nil
}

func (t *txn) ListOrders(_ context.Context, companyID string, filter domain.OrderFilter) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	for i := len(t.st.orderIDs) - 1; i >= 0; i-- {
		order := t.st.orders[t.st.orderIDs[i]]
		switch {
		case order.CompanyID != companyID:
			continue
		case filter.OrderType != "" && order.OrderType != filter.OrderType:
			continue
		case filter.Status != "" && order.Status != filter.Status:
			continue
		case filter.CustomerID != "" && order.CustomerID != filter.CustomerID:
			continue
		case filter.OriginalOrderID != "" && order.OriginalOrderID != filter.OriginalOrderID:
			continue
		case filter.PaymentIntentID != "" && order.PaymentIntentID != filter.PaymentIntentID:
			continue
		}
		out = append(out, order.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (t *txn) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.auditLogs = append(t.st.auditLogs, entry)
	return nil
}

func (t *txn) ListAuditLogs(_ context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	out := make([]domain.AuditLog, 0)
	for i := len(t.st.auditLogs) - 1; i >= 0; i-- {
		entry := t.st.auditLogs[i]
		if entry.CompanyID != companyID || entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
