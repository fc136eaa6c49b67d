package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AudienceAdmin  = "admin"
	AudienceDevice = "device"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

type AdminIdentity struct {
	AdminID uint   `json:"adminId"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	SID     string `json:"sid"`
}

// AdminClaims includes the admin identity and standard JWT claims
type AdminClaims struct {
	AdminIdentity
	jwt.RegisteredClaims
}

type DeviceIdentity struct {
	DeviceID   uint   `json:"deviceId"`
	DeviceCode string `json:"deviceCode"`
	SID        string `json:"sid"`
}

type DeviceClaims struct {
	DeviceIdentity
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret []byte, issuer string) *Signer {
	return &Signer{secret: secret, issuer: issuer, now: time.Now}
}

// DecodeSecret decodes a base64 signing secret.
func DecodeSecret(base64Secret string) ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	if len(secret) < 16 {
		return nil, errors.New("signing secret must be at least 16 bytes")
	}
	return secret, nil
}

// WithClock replaces the time source used for issuing and validating.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Signer) registered(audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  []string{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *Signer) SignAdmin(identity AdminIdentity, ttl time.Duration) (string, time.Time, error) {
	claims := AdminClaims{
		AdminIdentity:    identity,
		RegisteredClaims: s.registered(AudienceAdmin, ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, claims.ExpiresAt.Time, err
}

func (s *Signer) SignDevice(identity DeviceIdentity, ttl time.Duration) (string, time.Time, error) {
	claims := DeviceClaims{
		DeviceIdentity:   identity,
		RegisteredClaims: s.registered(AudienceDevice, ttl),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, claims.ExpiresAt.Time, err
}

func (s *Signer) ParseAdmin(tokenStr string) (*AdminClaims, error) {
	var claims AdminClaims
	if err := s.parse(tokenStr, AudienceAdmin, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *Signer) ParseDevice(tokenStr string) (*DeviceClaims, error) {
	var claims DeviceClaims
	if err := s.parse(tokenStr, AudienceDevice, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *Signer) parse(tokenStr, audience string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC is accepted
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
