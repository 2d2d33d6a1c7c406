package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validateCredentials(username string, password string) error {
	switch {
	case len(username) < 4:
		return fmt.Errorf("%w: username must be at least 4 characters", store.ErrInvalidInput)
	case strings.ContainsAny(username, " \t\r\n"):
		return fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidInput)
	case len(password) < 8:
		return fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidInput)
	case len(password) > 72:
		return fmt.Errorf("%w: password must be at most 72 bytes", store.ErrInvalidInput)
	}
	return nil
}

// Authenticate checks a username and password within one company. Unknown
// users, inactive users and wrong passwords are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, companyID string, username string, password string) (domain.Actor, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if companyID == "" {
		return domain.Actor{}, store.ErrTenantRequired
	}
	if username == "" || password == "" {
		return domain.Actor{}, ErrInvalidCredentials
	}

	var user *domain.UserAccount
	err := s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUserByUsername(ctx, companyID, username)
		return err
	})
	if isNotFound(err) {
		return domain.Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Actor{}, err
	}
	if !user.Active || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.Actor{}, ErrInvalidCredentials
	}
	return user.Actor(), nil
}

// ActorForUser reloads a user for token refresh so that role and warehouse
// changes take effect on the next token.
func (s *Service) ActorForUser(ctx context.Context, companyID string, userID string) (domain.Actor, error) {
	var user *domain.UserAccount
	err := s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, companyID, userID)
		return err
	})
	if isNotFound(err) {
		return domain.Actor{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Actor{}, err
	}
	if !user.Active {
		return domain.Actor{}, ErrInvalidCredentials
	}
	return user.Actor(), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	companyID, actor, err := s.scope(ctx, adminRoles...)
	if err != nil {
		return domain.UserAccount{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if err := validateCredentials(username, req.Password); err != nil {
		return domain.UserAccount{}, err
	}
	switch req.Role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleStaff, domain.RoleCustomer:
	default:
		return domain.UserAccount{}, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, req.Role)
	}

	warehouses := make([]string, 0, len(req.Warehouses))
	for _, id := range req.Warehouses {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(warehouses, id) {
			warehouses = append(warehouses, id)
		}
	}

	hash, err := HashPassword(req.Password, s.passwordCost)
	if err != nil {
		return domain.UserAccount{}, err
	}
	user := domain.UserAccount{
		ID:           xid.New("usr"),
		CompanyID:    companyID,
		Username:     username,
		PasswordHash: hash,
		Role:         req.Role,
		Warehouses:   warehouses,
		Active:       true,
		CreatedAt:    s.now(),
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, id := range warehouses {
			if _, err := tx.GetWarehouse(ctx, companyID, id); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("%w: warehouse %s not found", store.ErrInvalidInput, id)
				}
				return err
			}
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return domain.UserAccount{}, err
	}

	s.audit(ctx, companyID, actor, "user_create", "user", user.ID, fmt.Sprintf("username=%s,role=%s", user.Username, user.Role))
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	companyID, _, err := s.scope(ctx, adminRoles...)
	if err != nil {
		return nil, err
	}
	var users []domain.UserAccount
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx, companyID)
		return err
	})
	return users, err
}
