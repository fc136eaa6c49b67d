package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestAdminTokenRoundTrip(t *testing.T) {
	signer := NewSigner(testSecret, "punchinout")

	token, expiresAt, err := signer.SignAdmin(AdminIdentity{AdminID: 7, Email: "a@b.c", Role: "ADMIN", SID: "s1"}, 24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := signer.ParseAdmin(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "s1", claims.SID)
}

func TestExpiredTokenIsDistinct(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	signer := NewSigner(testSecret, "punchinout").WithClock(func() time.Time { return t0 })

	token, _, err := signer.SignDevice(DeviceIdentity{DeviceID: 1}, time.Hour)
	require.NoError(t, err)

	later := signer.WithClock(func() time.Time { return t0.Add(2 * time.Hour) })
	_, err = later.ParseDevice(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRejectsForeignTokens(t *testing.T) {
	signer := NewSigner(testSecret, "punchinout")

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-jwt" },
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other := NewSigner([]byte("ffffffffffffffffffffffffffffffff"), "punchinout")
				tok, _, err := other.SignDevice(DeviceIdentity{DeviceID: 1}, time.Hour)
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "admin token used as device token",
			token: func(t *testing.T) string {
				tok, _, err := signer.SignAdmin(AdminIdentity{AdminID: 1}, time.Hour)
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "none algorithm",
			token: func(t *testing.T) string {
				claims := DeviceClaims{
					DeviceIdentity: DeviceIdentity{DeviceID: 1},
					RegisteredClaims: jwt.RegisteredClaims{
						Issuer:    "punchinout",
						Audience:  []string{AudienceDevice},
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
				}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return tok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.ParseDevice(tt.token(t))
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "s3cret"))
	assert.Error(t, h.Compare(hash, "wrong"))
}

func TestDecodeSecret(t *testing.T) {
	_, err := DecodeSecret("c2hvcnQ=")
	assert.Error(t, err)

	secret, err := DecodeSecret("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	assert.Equal(t, testSecret, secret)
}
