// Package auth issues and verifies bearer tokens and carries the caller identity
// through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrAccountNotFound is returned by an AccountLookup for deleted accounts.
	ErrAccountNotFound = errors.New("account no longer exists")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanSell reports whether the caller may manage catalog products.
func (i Identity) CanSell() bool {
	return i.Role == RoleSeller || i.Role == RoleAdmin
}

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// AccountLookup returns the role currently stored for an account.
type AccountLookup interface {
	CurrentRole(ctx context.Context, id uuid.UUID) (Role, error)
}

type Tokens struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	accounts AccountLookup
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithAccounts returns a copy whose Authenticate checks every token against
// the stored account, so deletions and role changes apply before expiry.
func (t *Tokens) WithAccounts(accounts AccountLookup) *Tokens {
	c := *t
	c.accounts = accounts
	return &c
}

// Issue signs an HS256 token for id.
func (t *Tokens) Issue(id Identity) (string, error) {
	now := t.now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the identity it carries.
func (t *Tokens) Parse(raw string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: bad role %q", ErrInvalidToken, claims.Role)
	}

	return Identity{UserID: userID, Role: claims.Role}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
