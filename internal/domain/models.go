package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

type Actor struct {
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Role       string   `json:"role"`
	CompanyID  string   `json:"company_id"`
	Warehouses []string `json:"warehouses,omitempty"`
}

// CanAccessWarehouse reports whether the actor's warehouse scope covers id.
// An empty scope means every warehouse of the company.
func (a Actor) CanAccessWarehouse(id string) bool {
	if len(a.Warehouses) == 0 {
		return true
	}
	for _, w := range a.Warehouses {
		if w == id {
			return true
		}
	}
	return false
}

type CompanyStatus string

const (
	CompanyStatusActive   CompanyStatus = "active"
	CompanyStatusInactive CompanyStatus = "inactive"
	CompanyStatusBlocked  CompanyStatus = "blocked"
)

var DefaultModules = []string{"inventory", "procurement", "sales"}

type Company struct {
	ID        string        `json:"id" db:"id"`
	Slug      string        `json:"slug" db:"slug"`
	Name      string        `json:"name" db:"name"`
	Status    CompanyStatus `json:"status" db:"status"`
	Modules   []string      `json:"modules" db:"-"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

func (c Company) Active() bool {
	return c.Status == CompanyStatusActive
}

type CompanyRegisterRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Slug          string `json:"slug" validate:"required,min=3,max=63"`
	AdminUsername string `json:"admin_username" validate:"required,min=4,max=64"`
	AdminPassword string `json:"admin_password" validate:"required,min=8,max=72"`
}

type CompanyRegistration struct {
	Company       Company  `json:"company"`
	AdminUsername string   `json:"admin_username"`
	Effects       []Effect `json:"effects"`
}

type UserAccount struct {
	ID           string    `json:"id" db:"id"`
	CompanyID    string    `json:"company_id" db:"company_id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	Warehouses   []string  `json:"warehouses,omitempty" db:"-"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (u UserAccount) Actor() Actor {
	return Actor{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		CompanyID:  u.CompanyID,
		Warehouses: append([]string(nil), u.Warehouses...),
	}
}

type UserCreateRequest struct {
	Username   string   `json:"username" validate:"required,min=4,max=64"`
	Password   string   `json:"password" validate:"required,min=8,max=72"`
	Role       string   `json:"role" validate:"required,oneof=admin manager staff customer"`
	Warehouses []string `json:"warehouses"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Warehouse struct {
	ID        string    `json:"id" db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type WarehouseCreateRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=120"`
}

type Product struct {
	ID        string          `json:"id" db:"id"`
	CompanyID string          `json:"company_id" db:"company_id"`
	SKU       string          `json:"sku" db:"sku"`
	Name      string          `json:"name" db:"name"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Active    bool            `json:"active" db:"active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type ProductCreateRequest struct {
	SKU       string          `json:"sku" validate:"required,max=64"`
	Name      string          `json:"name" validate:"required,max=160"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type AuditLog struct {
	ID        string    `json:"id" db:"id"`
	CompanyID string    `json:"company_id" db:"company_id"`
	Actor     string    `json:"actor" db:"actor"`
	Action    string    `json:"action" db:"action"`
	Entity    string    `json:"entity" db:"entity"`
	EntityID  string    `json:"entity_id" db:"entity_id"`
	Detail    string    `json:"detail" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
