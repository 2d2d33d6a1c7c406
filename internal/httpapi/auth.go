package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"pasarhub/backend/internal/domain"
)

const tokenIssuer = "pasarhub"

var ErrInvalidToken = errors.New("invalid or expired token")

// Authenticator is the user lookup the token issuer needs.
type Authenticator interface {
	Authenticate(ctx context.Context, companyID string, username string, password string) (domain.Actor, error)
	ActorForUser(ctx context.Context, companyID string, userID string) (domain.Actor, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    Authenticator
	now      func() time.Time
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role       string   `json:"role"`
	CompanyID  string   `json:"company_id"`
	Username   string   `json:"username"`
	Warehouses []string `json:"warehouses,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users Authenticator) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthManager) Login(ctx context.Context, company domain.Company, req domain.LoginRequest) (domain.LoginResponse, error) {
	actor, err := a.users.Authenticate(ctx, company.ID, req.Username, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return a.issue(actor)
}

// Refresh re-reads the user so role and warehouse changes show up in the new
// token, and deactivated users lose access at their next refresh.
func (a *AuthManager) Refresh(ctx context.Context, current domain.Actor) (domain.LoginResponse, error) {
	actor, err := a.users.ActorForUser(ctx, current.CompanyID, current.UserID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return a.issue(actor)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.CompanyID == "" || claims.Role == "" {
		return domain.Actor{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	return domain.Actor{
		UserID:     sub,
		Username:   claims.Username,
		Role:       claims.Role,
		CompanyID:  claims.CompanyID,
		Warehouses: claims.Warehouses,
	}, nil
}

func (a *AuthManager) issue(actor domain.Actor) (domain.LoginResponse, error) {
	issuedAt := a.now()
	expiresAt := issuedAt.Add(a.tokenTTL)
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:       actor.Role,
		CompanyID:  actor.CompanyID,
		Username:   actor.Username,
		Warehouses: actor.Warehouses,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Role:        actor.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}
