package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means the request carried no bearer token at all.
	ErrMissingToken = errors.New("bearer token is required")

	// ErrExpiredToken means the token was well formed but past its expiry.
	ErrExpiredToken = errors.New("bearer token is expired")

	// ErrInvalidToken covers bad signatures, wrong algorithms, wrong
	// issuers, and malformed tokens.
	ErrInvalidToken = errors.New("bearer token is invalid")
)

// Config defines how connection tokens are verified.
type Config struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

// Identity is the trusted result of a successful verification. It is
// attached to the connection before any other handler runs and is the
// sole source of the acting user for all later authorization checks.
type Identity struct {
	UserID string
}

// Verifier checks signed bearer tokens presented at connection time.
type Verifier struct {
	cfg Config
}

func NewVerifier(cfg Config) *Verifier {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}
}

type connClaims struct {
	jwt.RegisteredClaims
}

// Verify validates signature, expiry, and issuer, and resolves the
// subject user identifier. It runs exactly once per connection.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	if len(v.cfg.Secret) == 0 {
		return Identity{}, errors.New("token verifier is not configured")
	}

	var parsed connClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.cfg.Now),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	if v.cfg.Issuer != "" && parsed.Issuer != v.cfg.Issuer {
		return Identity{}, ErrInvalidToken
	}
	if parsed.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: parsed.Subject}, nil
}

// BearerToken extracts the token from an upgrade request: the
// Authorization header when present, else the token query parameter
// (browser WebSocket clients cannot set headers).
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrInvalidToken
	default:
		return ErrInvalidToken
	}
}
