package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/auth"
)

const minPasswordLen = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)

// TokenIssuer signs access tokens. *auth.Issuer satisfies it.
type TokenIssuer interface {
	Issue(userID, username string, roles []string, staffID string) (string, time.Time, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	logger zerolog.Logger
	cost   int
	now    func() time.Time
	// dummyHash is compared against when the username is unknown so a
	// failed lookup costs the same as a wrong password.
	dummyHash []byte
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	s := &Service{
		repo:   repo,
		tokens: tokens,
		logger: logger.With().Str("domain", "identity").Logger(),
		now:    time.Now,
	}
	s.SetCost(bcrypt.DefaultCost)
	return s
}

// SetCost changes the bcrypt work factor for new hashes.
func (s *Service) SetCost(cost int) {
	s.cost = cost
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", apperr.Invalid("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > 72 {
		return "", apperr.Invalid("password must be at most 72 bytes")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func validateRole(role string) error {
	if !auth.IsKnownRole(role) {
		return apperr.Invalid("unknown role %q", role)
	}
	return nil
}

// CreateUser stores a new active account with a bcrypt hash of password.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if !usernamePattern.MatchString(u.Username) {
		return apperr.Invalid("username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
	}
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	if err := validateRole(u.Role); err != nil {
		return err
	}
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = h
	u.Active = true
	return s.repo.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateUser changes role, staff link and the active flag.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, role string, staffID *uuid.UUID, active bool) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = strings.ToLower(strings.TrimSpace(role))
	if err := validateRole(u.Role); err != nil {
		return nil, err
	}
	u.StaffID = staffID
	u.Active = active
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Info().Str("username", username).Msg("login failed: unknown user")
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info().Str("username", username).Msg("login failed: wrong password")
		return nil, ErrBadCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	staffID := ""
	if u.StaffID != nil {
		staffID = u.StaffID.String()
	}
	token, exp, err := s.tokens.Issue(u.ID.String(), u.Username, []string{u.Role}, staffID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("record last login")
	} else {
		u.LastLoginAt = &now
	}
	return &Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: u}, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrBadCredentials
	}
	h, err := s.hash(next)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, id, h)
}

// ResetPassword sets a new password without the current one.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID, password string) error {
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, id, h)
}
