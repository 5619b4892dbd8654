package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultAccessTTL      = 24 * time.Hour
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultResetTTL       = time.Hour
	defaultAuditRetention = 90 * 24 * time.Hour
)

// Service provides token issuance, session lifecycle, and authorization
// checks on top of a Store. The signing secret is read-only after
// construction; everything else is stateless per request.
type Service struct {
	store Store
	now   func() time.Time

	secret         []byte
	issuer         string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	resetTTL       time.Duration
	bcryptCost     int
	auditRetention time.Duration
	notifier       Notifier
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithResetTTL configures password reset token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithBcryptCost overrides the password hashing cost factor.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.bcryptCost = cost
		}
		return nil
	}
}

// WithAuditRetention configures how long audit rows survive the sweep.
func WithAuditRetention(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.auditRetention = d
		}
		return nil
	}
}

// WithNotifier sets the delivery channel for password reset tokens.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) error {
		if n != nil {
			s.notifier = n
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. The signing secret is required: there is
// no fallback value, and a blank secret is a startup error.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:          store,
		now:            time.Now,
		secret:         []byte(secret),
		accessTTL:      defaultAccessTTL,
		refreshTTL:     defaultRefreshTTL,
		resetTTL:       defaultResetTTL,
		auditRetention: defaultAuditRetention,
		notifier:       logNotifier{},
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// EnsureBuiltins ensures predefined permissions exist.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Login authenticates credentials and issues a fresh token pair. Unknown
// email, wrong password, and a disabled account all collapse into
// ErrInvalidCredentials so the response never identifies which check failed.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !user.Active() {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.mintPair(ctx, user)
}

// AppendAudit records an action in the append-only log.
func (s *Service) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.store.AppendAudit(ctx, entry)
}
