package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

const (
	DemoCompanyID       = "co_demo"
	DemoSlug            = "demo"
	DemoPassword        = "pasarhub-demo"
	DemoMainWarehouse   = "wh_demo_main"
	DemoBranchWarehouse = "wh_demo_branch"

	DemoProductRice  = "prd_demo_beras"
	DemoProductOil   = "prd_demo_minyak"
	DemoProductEggs  = "prd_demo_telur"
	DemoProductSugar = "prd_demo_gula"

	// DemoSugarVariant is the only variant-tracked stock in the seed.
	DemoSugarVariant = "1kg"
)

var demoPasswordHash = sync.OnceValues(func() ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
})

// NewSeeded returns a store holding one active demo company with a user per
// role, two warehouses and opening stock. Opening stock is booked as
// ADJUSTMENT_IN movements so the ledger reconciles from the start.
func NewSeeded() *Store {
	s := New()
	hash, err := demoPasswordHash()
	if err != nil {
		panic(err)
	}
	seededAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err = s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateCompany(ctx, domain.Company{
			ID:        DemoCompanyID,
			Slug:      DemoSlug,
			Name:      "Pasar Demo",
			Status:    domain.CompanyStatusActive,
			Modules:   domain.DefaultModules,
			CreatedAt: seededAt,
		}); err != nil {
			return err
		}

		users := []domain.UserAccount{
			{ID: "usr_demo_admin", Username: "admin", Role: domain.RoleAdmin},
			{ID: "usr_demo_manager", Username: "manager", Role: domain.RoleManager},
			{ID: "usr_demo_staff", Username: "staff", Role: domain.RoleStaff, Warehouses: []string{DemoMainWarehouse}},
			{ID: "usr_demo_customer", Username: "customer", Role: domain.RoleCustomer},
		}
		for _, user := range users {
			user.CompanyID = DemoCompanyID
			user.PasswordHash = string(hash)
			user.Active = true
			user.CreatedAt = seededAt
			if err := tx.CreateUser(ctx, user); err != nil {
				return err
			}
		}

		for _, wh := range []domain.Warehouse{
			{ID: DemoMainWarehouse, Code: "MAIN", Name: "Gudang Utama"},
			{ID: DemoBranchWarehouse, Code: "BRANCH", Name: "Gudang Cabang"},
		} {
			wh.CompanyID = DemoCompanyID
			wh.Active = true
			wh.CreatedAt = seededAt
			if err := tx.CreateWarehouse(ctx, wh); err != nil {
				return err
			}
		}

		for _, p := range []domain.Product{
			{ID: DemoProductRice, SKU: "BERAS-5KG", Name: "Beras Premium 5kg", UnitPrice: decimal.NewFromInt(72500)},
			{ID: DemoProductOil, SKU: "MINYAK-2L", Name: "Minyak Goreng 2L", UnitPrice: decimal.NewFromInt(34000)},
			{ID: DemoProductEggs, SKU: "TELUR-10", Name: "Telur Ayam 10 Butir", UnitPrice: decimal.NewFromInt(26500)},
			{ID: DemoProductSugar, SKU: "GULA", Name: "Gula Pasir", UnitPrice: decimal.NewFromInt(17400)},
		} {
			p.CompanyID = DemoCompanyID
			p.Active = true
			p.CreatedAt = seededAt
			if err := tx.CreateProduct(ctx, p); err != nil {
				return err
			}
		}

		opening := []struct {
			key domain.StockKey
			qty int
		}{
			{domain.StockKey{WarehouseID: DemoMainWarehouse, ProductID: DemoProductRice}, 120},
			{domain.StockKey{WarehouseID: DemoMainWarehouse, ProductID: DemoProductOil}, 80},
			{domain.StockKey{WarehouseID: DemoMainWarehouse, ProductID: DemoProductEggs}, 60},
			{domain.StockKey{WarehouseID: DemoMainWarehouse, ProductID: DemoProductSugar, VariantID: DemoSugarVariant}, 50},
			{domain.StockKey{WarehouseID: DemoBranchWarehouse, ProductID: DemoProductRice}, 30},
		}
		for i, line := range opening {
			if err := tx.SaveInventory(ctx, domain.WarehouseInventory{
				ID:          "inv_demo_" + line.key.WarehouseID + "_" + line.key.ProductID,
				CompanyID:   DemoCompanyID,
				WarehouseID: line.key.WarehouseID,
				ProductID:   line.key.ProductID,
				VariantID:   line.key.VariantID,
				StockCount:  line.qty,
				Version:     1,
				UpdatedAt:   seededAt,
			}, 0); err != nil {
				return err
			}
			if err := tx.InsertStockMovement(ctx, domain.StockMovement{
				ID:            "mov_demo_opening_" + string(rune('a'+i)),
				CompanyID:     DemoCompanyID,
				WarehouseID:   line.key.WarehouseID,
				ProductID:     line.key.ProductID,
				VariantID:     line.key.VariantID,
				MovementType:  domain.MovementAdjustmentIn,
				Quantity:      line.qty,
				BalanceAfter:  line.qty,
				ReferenceType: domain.RefAdjustment,
				ReferenceID:   "adj_demo_opening",
				Reason:        "opening stock",
				CreatedBy:     "system",
				CreatedAt:     seededAt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
	return s
}
