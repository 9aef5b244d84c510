package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

const defaultTokenTTL = time.Hour

// AuthOptions tunes an AuthService. Zero values select the defaults.
type AuthOptions struct {
	TokenTTL   time.Duration
	BcryptCost int
	Clock      func() time.Time
	Audit      ports.AuditSink
	Logger     zerolog.Logger
}

// AuthService implements token issuance, validation and credential management.
type AuthService struct {
	users      ports.UserRepository
	clients    ports.ClientRepository
	scheme     ports.TokenScheme
	audit      ports.AuditSink
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger

	// dummyHash is compared against when the username is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// NewAuthService wires the credential store, optional client registry and
// token scheme. clients may be nil when no OAuth client model is used.
func NewAuthService(users ports.UserRepository, clients ports.ClientRepository, scheme ports.TokenScheme, opts AuthOptions) (*AuthService, error) {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Audit == nil {
		opts.Audit = nopAudit{}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("upload-gateway"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &AuthService{
		users:      users,
		clients:    clients,
		scheme:     scheme,
		audit:      opts.Audit,
		tokenTTL:   opts.TokenTTL,
		bcryptCost: opts.BcryptCost,
		now:        opts.Clock,
		log:        opts.Logger,
		dummyHash:  dummy,
	}, nil
}

// TokenTTL is the lifetime applied to newly issued tokens.
func (s *AuthService) TokenTTL() time.Duration { return s.tokenTTL }

// IssueToken runs the password grant: grant type, then client, then user.
func (s *AuthService) IssueToken(ctx context.Context, req ports.TokenRequest) (*domain.Token, error) {
	grant := strings.TrimSpace(req.GrantType)
	if grant == "" {
		grant = domain.GrantPassword
	}
	if grant != domain.GrantPassword {
		s.recordLogin(req.Username, domain.ErrUnsupportedGrant)
		return nil, domain.ErrUnsupportedGrant
	}

	if s.clients != nil && s.clients.Enabled() {
		if err := s.checkClient(ctx, req.ClientID, req.ClientSecret, grant); err != nil {
			s.recordLogin(req.Username, err)
			return nil, err
		}
	}

	user, err := s.authenticate(ctx, req.Username, req.Password)
	if err != nil {
		s.recordLogin(req.Username, err)
		return nil, err
	}

	now := s.now().UTC()
	token := &domain.Token{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ClientID:  req.ClientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	value, err := s.scheme.Mint(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	token.Value = value

	s.recordLogin(user.Username, nil)
	s.log.Debug().
		Str("username", user.Username).
		Str("scheme", s.scheme.Name()).
		Time("expires_at", token.ExpiresAt).
		Msg("token issued")

	return token, nil
}

// Validate resolves a bearer token to the identity snapshotted at issue time.
func (s *AuthService) Validate(ctx context.Context, tokenValue string) (domain.Identity, error) {
	if tokenValue == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	token, err := s.scheme.Resolve(ctx, tokenValue)
	if err != nil {
		return domain.Identity{}, err
	}
	return token.Identity(), nil
}

// Authenticate checks a username/password pair without minting a token.
// It backs session login.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	user, err := s.authenticate(ctx, username, password)
	s.recordLogin(username, err)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// CreateUser hashes the password and stores a new user. An empty role means user.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = domain.RoleUser
	}
	if username == "" || password == "" || !domain.ValidRole(role) {
		return nil, domain.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditUserCreated,
		Username:   created.Username,
		Status:     "success",
		OccurredAt: now,
	})
	return created, nil
}

// ChangePassword replaces the hash after verifying the current password.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return domain.ErrInvalidInput
	}
	if _, err := s.authenticate(ctx, username, oldPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, username, string(hash)); err != nil {
		return err
	}

	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditPasswordChange,
		Username:   username,
		Status:     "success",
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// SetRole changes a user's role. Tokens already issued keep their snapshot.
func (s *AuthService) SetRole(ctx context.Context, username, role string) error {
	if !domain.ValidRole(role) {
		return domain.ErrInvalidInput
	}
	if err := s.users.UpdateRole(ctx, username, role); err != nil {
		return err
	}

	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditRoleChange,
		Username:   username,
		Status:     "success",
		Reason:     role,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *AuthService) authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) checkClient(ctx context.Context, clientID, secret, grant string) error {
	if clientID == "" || secret == "" {
		return domain.ErrInvalidClient
	}

	client, err := s.clients.FindClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidClient) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
			return domain.ErrInvalidClient
		}
		return fmt.Errorf("find client: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) != nil {
		return domain.ErrInvalidClient
	}
	if !client.AllowsGrant(grant) {
		return domain.ErrUnsupportedGrant
	}
	return nil
}

func (s *AuthService) recordLogin(username string, err error) {
	ev := domain.AuditEvent{
		Action:     domain.AuditLoginSucceeded,
		Username:   username,
		Status:     "success",
		OccurredAt: s.now().UTC(),
	}
	if err != nil {
		ev.Action = domain.AuditLoginFailed
		ev.Status = "failure"
		ev.Reason = err.Error()
	}
	s.audit.Record(ev)
}

type nopAudit struct{}

func (nopAudit) Record(domain.AuditEvent) {}
