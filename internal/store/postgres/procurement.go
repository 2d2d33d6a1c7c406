package postgres

import (
	"context"
	"fmt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

const purchaseOrderColumns = `id, company_id, number, supplier_id, warehouse_id, notes, status, total_amount, created_by, created_at, updated_at`

func (t *txn) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	if _, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO purchase_orders (`+purchaseOrderColumns+`)
		VALUES (:id, :company_id, :number, :supplier_id, :warehouse_id, :notes, :status, :total_amount, :created_by, :created_at, :updated_at)
	`, po); err != nil {
		return err
	}
	for i, item := range po.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (id, purchase_order_id, line_no, product_id, variant_id, ordered_qty, received_qty, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, po.ID, i+1, item.ProductID, item.VariantID, item.OrderedQty, item.ReceivedQty, item.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) GetPurchaseOrder(ctx context.Context, companyID string, id string) (*domain.PurchaseOrder, error) {
	return t.getPurchaseOrder(ctx, companyID, id, "")
}

func (t *txn) GetPurchaseOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseOrder, error) {
	return t.getPurchaseOrder(ctx, companyID, id, " FOR UPDATE")
}

func (t *txn) getPurchaseOrder(ctx context.Context, companyID string, id string, lock string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	if err := t.tx.GetContext(ctx, &po, `
		SELECT `+purchaseOrderColumns+` FROM purchase_orders
		WHERE company_id = $1 AND id = $2`+lock, companyID, id); err != nil {
		return nil, notFound(err)
	}
	orders := []domain.PurchaseOrder{po}
	if err := t.loadPurchaseOrderItems(ctx, orders, lock); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (t *txn) loadPurchaseOrderItems(ctx context.Context, orders []domain.PurchaseOrder, lock string) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, po := range orders {
		ids[i] = po.ID
		index[po.ID] = i
		orders[i].Items = []domain.PurchaseOrderItem{}
	}
	var items []domain.PurchaseOrderItem
	if err := t.tx.SelectContext(ctx, &items, `
		SELECT id, purchase_order_id, product_id, variant_id, ordered_qty, received_qty, unit_price
		FROM purchase_order_items
		WHERE purchase_order_id = ANY($1)
		ORDER BY purchase_order_id, line_no`+lock, ids); err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.PurchaseOrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}

func (t *txn) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	if err := affected(t.tx.NamedExecContext(ctx, `
		UPDATE purchase_orders
		SET notes = :notes, status = :status, total_amount = :total_amount, updated_at = :updated_at
		WHERE company_id = :company_id AND id = :id
	`, po)); err != nil {
		return err
	}
	for _, item := range po.Items {
		if err := affected(t.tx.ExecContext(ctx, `
			UPDATE purchase_order_items SET received_qty = $1
			WHERE purchase_order_id = $2 AND id = $3
		`, item.ReceivedQty, po.ID, item.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) ListPurchaseOrders(ctx context.Context, companyID string, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error) {
	orders := make([]domain.PurchaseOrder, 0)
	if err := t.tx.SelectContext(ctx, &orders, `
		SELECT `+purchaseOrderColumns+` FROM purchase_orders
		WHERE company_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, id DESC`+limitClause(limit), companyID, string(status)); err != nil {
		return nil, err
	}
	if err := t.loadPurchaseOrderItems(ctx, orders, ""); err != nil {
		return nil, err
	}
	return orders, nil
}

const goodsReceiptColumns = `id, company_id, number, purchase_order_id, warehouse_id, status, notes, received_by, created_at, updated_at, completed_at`

func (t *txn) CreateGoodsReceipt(ctx context.Context, grn domain.GoodsReceipt) error {
	if _, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO goods_receipts (`+goodsReceiptColumns+`)
		VALUES (:id, :company_id, :number, :purchase_order_id, :warehouse_id, :status, :notes, :received_by, :created_at, :updated_at, :completed_at)
	`, grn); err != nil {
		return err
	}
	for i, item := range grn.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO goods_receipt_items (id, goods_receipt_id, line_no, purchase_order_item_id, product_id, variant_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, grn.ID, i+1, item.PurchaseOrderItemID, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) GetGoodsReceipt(ctx context.Context, companyID string, id string) (*domain.GoodsReceipt, error) {
	return t.getGoodsReceipt(ctx, companyID, id, "")
}

func (t *txn) GetGoodsReceiptForUpdate(ctx context.Context, companyID string, id string) (*domain.GoodsReceipt, error) {
	return t.getGoodsReceipt(ctx, companyID, id, " FOR UPDATE")
}

func (t *txn) getGoodsReceipt(ctx context.Context, companyID string, id string, lock string) (*domain.GoodsReceipt, error) {
	var grn domain.GoodsReceipt
	if err := t.tx.GetContext(ctx, &grn, `
		SELECT `+goodsReceiptColumns+` FROM goods_receipts
		WHERE company_id = $1 AND id = $2`+lock, companyID, id); err != nil {
		return nil, notFound(err)
	}
	receipts := []domain.GoodsReceipt{grn}
	if err := t.loadGoodsReceiptItems(ctx, receipts); err != nil {
		return nil, err
	}
	return &receipts[0], nil
}

func (t *txn) loadGoodsReceiptItems(ctx context.Context, receipts []domain.GoodsReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	ids := make([]string, len(receipts))
	index := make(map[string]int, len(receipts))
	for i, grn := range receipts {
		ids[i] = grn.ID
		index[grn.ID] = i
		receipts[i].Items = []domain.GoodsReceiptItem{}
	}
	var items []domain.GoodsReceiptItem
	if err := t.tx.SelectContext(ctx, &items, `
		SELECT id, goods_receipt_id, purchase_order_item_id, product_id, variant_id, quantity, unit_price
		FROM goods_receipt_items
		WHERE goods_receipt_id = ANY($1)
		ORDER BY goods_receipt_id, line_no
	`, ids); err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.GoodsReceiptID]
		receipts[i].Items = append(receipts[i].Items, item)
	}
	return nil
}

func (t *txn) UpdateGoodsReceipt(ctx context.Context, grn domain.GoodsReceipt) error {
	return affected(t.tx.NamedExecContext(ctx, `
		UPDATE goods_receipts
		SET status = :status, notes = :notes, updated_at = :updated_at, completed_at = :completed_at
		WHERE company_id = :company_id AND id = :id
	`, grn))
}

func (t *txn) ListGoodsReceipts(ctx context.Context, companyID string, purchaseOrderID string, limit int) ([]domain.GoodsReceipt, error) {
	receipts := make([]domain.GoodsReceipt, 0)
	if err := t.tx.SelectContext(ctx, &receipts, `
		SELECT `+goodsReceiptColumns+` FROM goods_receipts
		WHERE company_id = $1 AND ($2::text = '' OR purchase_order_id = $2)
		ORDER BY created_at DESC, id DESC`+limitClause(limit), companyID, purchaseOrderID); err != nil {
		return nil, err
	}
	if err := t.loadGoodsReceiptItems(ctx, receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

const invoiceColumns = `id, company_id, number, supplier_invoice_number, purchase_order_id, goods_receipt_id, supplier_id, total_amount, paid_amount, due_date, status, created_at, updated_at`

func (t *txn) CreatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO purchase_invoices (`+invoiceColumns+`)
		VALUES (:id, :company_id, :number, :supplier_invoice_number, :purchase_order_id, :goods_receipt_id, :supplier_id, :total_amount, :paid_amount, :due_date, :status, :created_at, :updated_at)
	`, invoice)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: goods receipt %s is already invoiced", store.ErrConflict, invoice.GoodsReceiptID)
	}
	return err
}

func (t *txn) GetPurchaseInvoice(ctx context.Context, companyID string, id string) (*domain.PurchaseInvoice, error) {
	return t.getInvoice(ctx, `WHERE company_id = $1 AND id = $2`, companyID, id)
}

func (t *txn) GetPurchaseInvoiceForUpdate(ctx context.Context, companyID string, id string) (*domain.PurchaseInvoice, error) {
	return t.getInvoice(ctx, `WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id)
}

func (t *txn) GetPurchaseInvoiceByGoodsReceipt(ctx context.Context, companyID string, goodsReceiptID string) (*domain.PurchaseInvoice, error) {
	return t.getInvoice(ctx, `WHERE company_id = $1 AND goods_receipt_id = $2`, companyID, goodsReceiptID)
}

func (t *txn) getInvoice(ctx context.Context, where string, args ...any) (*domain.PurchaseInvoice, error) {
	var invoice domain.PurchaseInvoice
	if err := t.tx.GetContext(ctx, &invoice, `SELECT `+invoiceColumns+` FROM purchase_invoices `+where, args...); err != nil {
		return nil, notFound(err)
	}
	return &invoice, nil
}

func (t *txn) UpdatePurchaseInvoice(ctx context.Context, invoice domain.PurchaseInvoice) error {
	return affected(t.tx.NamedExecContext(ctx, `
		UPDATE purchase_invoices
		SET paid_amount = :paid_amount, status = :status, due_date = :due_date, updated_at = :updated_at
		WHERE company_id = :company_id AND id = :id
	`, invoice))
}

func (t *txn) ListPurchaseInvoices(ctx context.Context, companyID string, filter domain.InvoiceFilter) ([]domain.PurchaseInvoice, error) {
	invoices := make([]domain.PurchaseInvoice, 0)
	err := t.tx.SelectContext(ctx, &invoices, `
		SELECT `+invoiceColumns+` FROM purchase_invoices
		WHERE company_id = $1
		  AND ($2::text = '' OR purchase_order_id = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id DESC`+limitClause(filter.Limit), companyID, filter.PurchaseOrderID, string(filter.Status))
	return invoices, err
}

const paymentColumns = `id, company_id, invoice_id, amount, method, reference, status, paid_at, created_by, created_at`

func (t *txn) CreateSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO supplier_payments (`+paymentColumns+`)
		VALUES (:id, :company_id, :invoice_id, :amount, :method, :reference, :status, :paid_at, :created_by, :created_at)
	`, payment)
	return err
}

func (t *txn) GetSupplierPaymentForUpdate(ctx context.Context, companyID string, id string) (*domain.SupplierPayment, error) {
	var payment domain.SupplierPayment
	if err := t.tx.GetContext(ctx, &payment, `
		SELECT `+paymentColumns+` FROM supplier_payments
		WHERE company_id = $1 AND id = $2
		FOR UPDATE
	`, companyID, id); err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (t *txn) UpdateSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error {
	return affected(t.tx.NamedExecContext(ctx, `
		UPDATE supplier_payments
		SET status = :status, paid_at = :paid_at, reference = :reference
		WHERE company_id = :company_id AND id = :id
	`, payment))
}

func (t *txn) ListSupplierPayments(ctx context.Context, companyID string, invoiceID string) ([]domain.SupplierPayment, error) {
	payments := make([]domain.SupplierPayment, 0)
	err := t.tx.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+` FROM supplier_payments
		WHERE company_id = $1 AND invoice_id = $2
		ORDER BY created_at, id
	`, companyID, invoiceID)
	return payments, err
}
