package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

// CreatePurchaseInvoice bills a completed goods receipt. Each receipt is
// invoiced at most once and the total comes from the received lines.
func (s *Service) CreatePurchaseInvoice(ctx context.Context, req domain.PurchaseInvoiceCreateRequest) (domain.PurchaseInvoice, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}
	grnID := strings.TrimSpace(req.GoodsReceiptID)
	supplierNumber := strings.TrimSpace(req.SupplierInvoiceNumber)
	if grnID == "" || supplierNumber == "" {
		return domain.PurchaseInvoice{}, fmt.Errorf("%w: goods_receipt_id and supplier_invoice_number are required", store.ErrInvalidInput)
	}

	var invoice domain.PurchaseInvoice
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		grn, err := tx.GetGoodsReceiptForUpdate(ctx, companyID, grnID)
		if err != nil {
			return err
		}
		if grn.Status != domain.GRNStatusCompleted {
			return fmt.Errorf("%w: goods receipt %s is %s, invoices need a completed receipt", store.ErrConflict, grn.Number, grn.Status)
		}
		existing, err := tx.GetPurchaseInvoiceByGoodsReceipt(ctx, companyID, grn.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: goods receipt %s is already invoiced by %s", store.ErrConflict, grn.Number, existing.Number)
		case !isNotFound(err):
			return err
		}
		po, err := tx.GetPurchaseOrder(ctx, companyID, grn.PurchaseOrderID)
		if err != nil {
			return err
		}

		now := s.now()
		invoice = domain.PurchaseInvoice{
			ID:                    xid.New("pinv"),
			CompanyID:             companyID,
			SupplierInvoiceNumber: supplierNumber,
			PurchaseOrderID:       po.ID,
			GoodsReceiptID:        grn.ID,
			SupplierID:            po.SupplierID,
			TotalAmount:           grn.Total(),
			PaidAmount:            decimal.Zero,
			DueDate:               req.DueDate,
			Status:                domain.DeriveInvoiceStatus(grn.Total(), decimal.Zero),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		invoice.Number = xid.Number("INV", invoice.ID)
		return tx.CreatePurchaseInvoice(ctx, invoice)
	})
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	s.audit(ctx, companyID, actor, "purchase_invoice_create", "purchase_invoice", invoice.ID,
		fmt.Sprintf("number=%s,total=%s", invoice.Number, invoice.TotalAmount.StringFixed(2)))
	return invoice, nil
}

func payable(invoice domain.PurchaseInvoice) error {
	switch invoice.Status {
	case domain.InvoiceStatusPaid:
		return fmt.Errorf("%w: invoice %s is already paid", store.ErrConflict, invoice.Number)
	case domain.InvoiceStatusCancelled:
		return fmt.Errorf("%w: invoice %s is cancelled", store.ErrConflict, invoice.Number)
	}
	return nil
}

func fitsOutstanding(invoice domain.PurchaseInvoice, amount decimal.Decimal) error {
	if amount.GreaterThan(invoice.Outstanding()) {
		return fmt.Errorf("%w: payment %s exceeds outstanding %s", store.ErrConflict, amount.StringFixed(2), invoice.Outstanding().StringFixed(2))
	}
	return nil
}

// settle applies a completed payment to its invoice.
func settle(invoice *domain.PurchaseInvoice, amount decimal.Decimal) {
	invoice.PaidAmount = invoice.PaidAmount.Add(amount)
	invoice.Status = domain.DeriveInvoiceStatus(invoice.TotalAmount, invoice.PaidAmount)
}

func (s *Service) RecordSupplierPayment(ctx context.Context, req domain.SupplierPaymentCreateRequest) (domain.SupplierPaymentResult, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.SupplierPaymentResult{}, err
	}
	if strings.TrimSpace(req.InvoiceID) == "" {
		return domain.SupplierPaymentResult{}, fmt.Errorf("%w: invoice_id is required", store.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return domain.SupplierPaymentResult{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}
	status := req.Status
	switch status {
	case "":
		status = domain.PaymentStatusCompleted
	case domain.PaymentStatusPending, domain.PaymentStatusProcessing, domain.PaymentStatusCompleted:
	default:
		return domain.SupplierPaymentResult{}, fmt.Errorf("%w: unknown payment status %q", store.ErrInvalidInput, status)
	}

	var result domain.SupplierPaymentResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		invoice, err := tx.GetPurchaseInvoiceForUpdate(ctx, companyID, strings.TrimSpace(req.InvoiceID))
		if err != nil {
			return err
		}
		if err := payable(*invoice); err != nil {
			return err
		}
		if err := fitsOutstanding(*invoice, req.Amount); err != nil {
			return err
		}

		now := s.now()
		payment := domain.SupplierPayment{
			ID:        xid.New("spay"),
			CompanyID: companyID,
			InvoiceID: invoice.ID,
			Amount:    req.Amount,
			Method:    defaultString(strings.TrimSpace(req.Method), "transfer"),
			Reference: strings.TrimSpace(req.Reference),
			Status:    status,
			CreatedBy: actor.Username,
			CreatedAt: now,
		}
		if status == domain.PaymentStatusCompleted {
			payment.PaidAt = &now
			settle(invoice, req.Amount)
			invoice.UpdatedAt = now
			if err := tx.UpdatePurchaseInvoice(ctx, *invoice); err != nil {
				return err
			}
		}
		if err := tx.CreateSupplierPayment(ctx, payment); err != nil {
			return err
		}
		result.Payment = payment
		result.Invoice = *invoice
		return nil
	})
	if err != nil {
		return domain.SupplierPaymentResult{}, err
	}

	result.Effects = []domain.Effect{s.audit(ctx, companyID, actor, "supplier_payment_create", "supplier_payment", result.Payment.ID,
		fmt.Sprintf("invoice=%s,amount=%s,status=%s", result.Invoice.Number, result.Payment.Amount.StringFixed(2), result.Payment.Status))}
	return result, nil
}

// CompleteSupplierPayment settles a pending or processing payment against the
// invoice's outstanding amount at completion time.
func (s *Service) CompleteSupplierPayment(ctx context.Context, id string) (domain.SupplierPaymentResult, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.SupplierPaymentResult{}, err
	}

	var result domain.SupplierPaymentResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		payment, err := tx.GetSupplierPaymentForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentStatusCompleted {
			return fmt.Errorf("%w: payment already completed", store.ErrConflict)
		}
		invoice, err := tx.GetPurchaseInvoiceForUpdate(ctx, companyID, payment.InvoiceID)
		if err != nil {
			return err
		}
		if err := payable(*invoice); err != nil {
			return err
		}
		if err := fitsOutstanding(*invoice, payment.Amount); err != nil {
			return err
		}

		now := s.now()
		settle(invoice, payment.Amount)
		invoice.UpdatedAt = now
		payment.Status = domain.PaymentStatusCompleted
		payment.PaidAt = &now
		if err := tx.UpdatePurchaseInvoice(ctx, *invoice); err != nil {
			return err
		}
		if err := tx.UpdateSupplierPayment(ctx, *payment); err != nil {
			return err
		}
		result.Payment = *payment
		result.Invoice = *invoice
		return nil
	})
	if err != nil {
		return domain.SupplierPaymentResult{}, err
	}

	result.Effects = []domain.Effect{s.audit(ctx, companyID, actor, "supplier_payment_complete", "supplier_payment", result.Payment.ID,
		fmt.Sprintf("invoice=%s,paid=%s", result.Invoice.Number, result.Invoice.PaidAmount.StringFixed(2)))}
	return result, nil
}

func (s *Service) CancelPurchaseInvoice(ctx context.Context, id string) (domain.PurchaseInvoice, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	var invoice domain.PurchaseInvoice
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetPurchaseInvoiceForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status == domain.InvoiceStatusCancelled {
			return fmt.Errorf("%w: invoice %s is already cancelled", store.ErrConflict, current.Number)
		}
		if !current.PaidAmount.IsZero() {
			return fmt.Errorf("%w: invoice %s has payments of %s", store.ErrConflict, current.Number, current.PaidAmount.StringFixed(2))
		}
		current.Status = domain.InvoiceStatusCancelled
		current.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseInvoice(ctx, *current); err != nil {
			return err
		}
		invoice = *current
		return nil
	})
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	s.audit(ctx, companyID, actor, "purchase_invoice_cancel", "purchase_invoice", invoice.ID, "number="+invoice.Number)
	return invoice, nil
}

func (s *Service) GetPurchaseInvoice(ctx context.Context, id string) (domain.PurchaseInvoiceDetail, error) {
	companyID, _, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.PurchaseInvoiceDetail{}, err
	}

	var detail domain.PurchaseInvoiceDetail
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		invoice, err := tx.GetPurchaseInvoice(ctx, companyID, id)
		if err != nil {
			return err
		}
		payments, err := tx.ListSupplierPayments(ctx, companyID, invoice.ID)
		if err != nil {
			return err
		}
		detail.Invoice = *invoice
		detail.Payments = payments
		return nil
	})
	if err != nil {
		return domain.PurchaseInvoiceDetail{}, err
	}
	detail.EffectiveStatus = detail.Invoice.EffectiveStatus(s.now())
	return detail, nil
}

// ListPurchaseInvoices reports effective statuses. Overdue is never stored,
// so filtering on it happens after the read.
func (s *Service) ListPurchaseInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.PurchaseInvoice, error) {
	companyID, _, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return nil, err
	}
	wanted := filter.Status
	filter.Limit = clampLimit(filter.Limit)
	if wanted == domain.InvoiceStatusOverdue {
		filter.Status = ""
		filter.Limit = 0
	}

	var invoices []domain.PurchaseInvoice
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		invoices, err = tx.ListPurchaseInvoices(ctx, companyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := invoices[:0]
	for _, invoice := range invoices {
		invoice.Status = invoice.EffectiveStatus(now)
		if wanted != "" && invoice.Status != wanted {
			continue
		}
		out = append(out, invoice)
	}
	return out, nil
}
