package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("role is not allowed")
	ErrPasswordRequired   = errors.New("password cannot be empty")
	ErrCannotDeleteSelf   = errors.New("admins cannot delete their own account")
)

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type Service interface {
	// Register creates a customer or seller account.
	Register(ctx context.Context, u *User, password string) (*User, error)
	Login(ctx context.Context, email, password string) (string, *User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// CreateUser is the admin path and accepts any role.
	CreateUser(ctx context.Context, u *User, password string) (*User, error)
	// UpdateUser changes profile fields and role; an empty password keeps the current one.
	UpdateUser(ctx context.Context, u *User, password string) (*User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
	DeleteUser(ctx context.Context, actor auth.Identity, id uuid.UUID) error
	// CurrentRole returns auth.ErrAccountNotFound for deleted accounts.
	CurrentRole(ctx context.Context, id uuid.UUID) (auth.Role, error)
}

type service struct {
	repo   Repository
	tokens TokenIssuer
}

func NewService(repo Repository, tokens TokenIssuer) Service {
	return &service{repo: repo, tokens: tokens}
}

func (s *service) Register(ctx context.Context, u *User, password string) (*User, error) {
	if u.Role == "" {
		u.Role = auth.RoleCustomer
	}
	if u.Role != auth.RoleCustomer && u.Role != auth.RoleSeller {
		log.Warn().Str("role", u.Role.String()).Msg("service: registration with privileged role rejected")
		return nil, ErrInvalidRole
	}
	return s.create(ctx, u, password)
}

func (s *service) CreateUser(ctx context.Context, u *User, password string) (*User, error) {
	if !u.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.create(ctx, u, password)
}

func (s *service) create(ctx context.Context, u *User, password string) (*User, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return nil, fmt.Errorf("service: internal error hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Email = normalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)

	createdID, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}
	u.ID = createdID

	log.Info().Stringer("user_id", u.ID).Str("role", u.Role.String()).Msg("service: user created")
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to fetch user for login")
		return "", nil, fmt.Errorf("service: failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login with wrong password")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.Identity())
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to issue token")
		return "", nil, fmt.Errorf("service: failed to issue token: %w", err)
	}
	return token, u, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id in repository")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}
	return u, nil
}

func (s *service) CurrentRole(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", auth.ErrAccountNotFound
		}
		return "", err
	}
	return u.Role, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

func (s *service) UpdateUser(ctx context.Context, u *User, password string) (*User, error) {
	current, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	if u.Role != "" {
		if !u.Role.Valid() {
			return nil, ErrInvalidRole
		}
		current.Role = u.Role
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		current.Name = name
	}
	if email := normalizeEmail(u.Email); email != "" {
		current.Email = email
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msg("service: failed to generate password hash")
			return nil, fmt.Errorf("service: failed to generate password hash: %w", err)
		}
		current.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, ErrEmailExists) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to update user")
		return nil, fmt.Errorf("service: failed to update user by id '%s': %w", u.ID, err)
	}
	return current, nil
}

func (s *service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if next == "" {
		return ErrPasswordRequired
	}
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	_, err = s.UpdateUser(ctx, &User{ID: id}, next)
	return err
}

func (s *service) DeleteUser(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	if actor.UserID == id {
		log.Warn().Stringer("user_id", id).Msg("service: admin attempted self-deletion")
		return ErrCannotDeleteSelf
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to delete user")
		return fmt.Errorf("service: failed to delete user by id '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Stringer("actor_id", actor.UserID).Msg("service: user deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
