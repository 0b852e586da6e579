package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/infrastructure/config"
)

const tokenTypeAccess = "access"

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 access tokens. The secret is fixed
// for the lifetime of the process.
type JWTService struct {
	hmacSecret     []byte
	issuer         string
	accessTokenTTL time.Duration
	now            func() time.Time
	parser         *jwt.Parser
}

var _ outbound.TokenService = (*JWTService)(nil)

type Option func(*JWTService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

func NewJWTService(cfg *config.Config, opts ...Option) (*JWTService, error) {
	if cfg.JWTSecret == "" {
		return nil, config.ErrMissingJWTSecret
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, config.ErrInvalidTokenTTL
	}

	s := &JWTService{
		hmacSecret:     []byte(cfg.JWTSecret),
		issuer:         cfg.JWTIssuer,
		accessTokenTTL: cfg.AccessTokenTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

func (s *JWTService) GenerateAccessToken(claims outbound.TokenClaims) (string, *outbound.TokenClaims, error) {
	if claims.UserID <= 0 {
		return "", nil, fmt.Errorf("generate access token: invalid subject %d", claims.UserID)
	}

	// JWT times have second precision
	now := s.now().UTC().Truncate(time.Second)
	claims.TokenID = uuid.NewString()
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(s.accessTokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email: claims.Email,
		Role:  claims.Role,
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Subject:   strconv.FormatInt(claims.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, &claims, nil
}

// GenerateRefreshToken returns 32 random bytes encoded base64url.
func (s *JWTService) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidateAccessToken checks the signature before anything else, then expiry.
func (s *JWTService) ValidateAccessToken(tokenString string) (*outbound.TokenClaims, error) {
	var claims accessClaims
	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.hmacSecret, nil
	})
	if err != nil {
		return nil, s.handleValidationError(err)
	}
	if !token.Valid {
		return nil, outbound.ErrInvalidToken
	}

	if claims.Type != tokenTypeAccess || claims.ID == "" || claims.IssuedAt == nil {
		return nil, outbound.ErrTokenMalformed
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, outbound.ErrTokenMalformed
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, outbound.ErrTokenMalformed
	}

	return &outbound.TokenClaims{
		UserID:    userID,
		TokenID:   claims.ID,
		Email:     claims.Email,
		Role:      claims.Role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// PeekTokenID extracts the jti without checking the signature. The result
// must only be used for lookups that can reject a token, never to trust it.
func (s *JWTService) PeekTokenID(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return "", outbound.ErrTokenMalformed
	}
	if claims.ID == "" {
		return "", outbound.ErrTokenMalformed
	}
	return claims.ID, nil
}

func (s *JWTService) handleValidationError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return outbound.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return outbound.ErrTokenExpired
	default:
		return outbound.ErrTokenMalformed
	}
}
