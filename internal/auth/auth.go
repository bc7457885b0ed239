package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/useradmin/internal/models"
	"github.com/wuwenbin0122/useradmin/internal/users"
)

var (
	ErrSecretRequired     = errors.New("auth: jwt secret required")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTooManyAttempts    = errors.New("auth: too many login attempts")
)

const defaultIssuer = "useradmin"

// UserFinder looks up a stored user, hash included, by normalised email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// Limiter throttles login attempts per key. Allow returns ErrTooManyAttempts
// once the key is over its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type LoginInput struct {
	Email    string
	Password string
	// IP is the client address. Attempts are throttled per email and IP so
	// a stranger cannot lock an account out from elsewhere.
	IP string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.Identity
}

// Claims is the session token payload. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.Subject, Email: c.Email}
}

type Option func(*Service)

func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

func WithLimiter(limiter Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service verifies credentials and issues stateless session tokens. There is
// no server-side session state: a token is valid while its signature and
// expiry check out.
type Service struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	users   UserFinder
	hasher  *Hasher
	limiter Limiter
	logger  *zap.Logger
	now     func() time.Time

	// dummyHash is compared against when the email is unknown so that both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewService(secret string, ttl time.Duration, finder UserFinder, hasher *Hasher, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if finder == nil || hasher == nil {
		return nil, errors.New("auth: user finder and hasher are required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: defaultIssuer,
		users:  finder,
		hasher: hasher,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := hasher.Hash(context.Background(), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

func throttleKey(email, ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return email
	}
	return email + "|" + ip
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	key := throttleKey(email, input.IP)
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, key); err != nil {
			if errors.Is(err, ErrTooManyAttempts) {
				return nil, err
			}
			// The throttle is best effort; an unavailable backend does not
			// lock everybody out.
			s.logger.Warn("login throttle unavailable", zap.Error(err))
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			_, _ = s.hasher.Compare(ctx, s.dummyHash, input.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn("reset login throttle failed", zap.Error(err))
		}
	}

	identity := user.Identity()
	token, expiresAt, err := s.generateToken(identity)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      identity,
	}, nil
}

func (s *Service) VerifyToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) generateToken(identity models.Identity) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
