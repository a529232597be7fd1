package utils

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	id := uuid.New()

	token, err := GenerateToken(testSecret, id, "a@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", claims.Email)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestGenerateToken_ZeroTTLHasNoExpiry(t *testing.T) {
	token, err := GenerateToken(testSecret, uuid.New(), "a@example.com", 0)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseToken_Rejects(t *testing.T) {
	id := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken(testSecret, id, "a@example.com", time.Hour)
		require.NoError(t, err)
		_, err = ParseToken("other", token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		claims := &Claims{
			Email: "a@example.com",
			ID:    id.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ParseToken(testSecret, signed)
		assert.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := &Claims{ID: id.String()}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ParseToken(testSecret, signed)
		assert.Error(t, err)
	})

	t.Run("malformed id", func(t *testing.T) {
		claims := &Claims{ID: "not-a-uuid"}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ParseToken(testSecret, signed)
		assert.Error(t, err)
	})
}

func TestHashAndCheckPassword(t *testing.T) {
	PasswordCost = bcrypt.MinCost

	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
	assert.False(t, CheckPassword("", ""))
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, limit                     int
		wantPage, wantLimit, wantOffset int
	}{
		{1, 20, 1, 20, 0},
		{3, 10, 3, 10, 20},
		{0, 0, 1, defaultPageLimit, 0},
		{-2, 500, 1, maxPageLimit, 0},
		{92233720368547760, 100, math.MaxInt / 100, 100, (math.MaxInt/100 - 1) * 100},
		{math.MaxInt, 1, math.MaxInt, 1, math.MaxInt - 1},
	}
	for _, tc := range cases {
		p := NewPagination(tc.page, tc.limit)
		assert.GreaterOrEqual(t, p.Offset, 0)
		assert.Equal(t, tc.wantPage, p.Page)
		assert.Equal(t, tc.wantLimit, p.Limit)
		assert.Equal(t, tc.wantOffset, p.Offset)
	}

	meta := NewPagination(2, 5).Meta(42)
	assert.Equal(t, 2, meta["current_page"])
	assert.Equal(t, 5, meta["items_per_page"])
	assert.Equal(t, int64(42), meta["total_items"])
}

func TestValidate(t *testing.T) {
	type signup struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6,pwbytes"`
	}

	err := Validate(&signup{Password: "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")

	err = Validate(&signup{Email: "nope", Password: "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")

	err = Validate(&signup{Email: "a@example.com", Password: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password must be at least 6 characters")

	assert.NoError(t, Validate(&signup{Email: "a@example.com", Password: "secret1"}))
}

func TestValidate_PasswordBytes(t *testing.T) {
	type signup struct {
		Password string  `json:"password" validate:"required,min=6,pwbytes"`
		NewPass  *string `json:"newPass" validate:"omitempty,pwbytes"`
	}

	err := Validate(&signup{Password: strings.Repeat("a", 80)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password must be at most 72 bytes")

	// 40 runes but 80 bytes
	err = Validate(&signup{Password: strings.Repeat("é", 40)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password must be at most 72 bytes")

	long := strings.Repeat("b", 73)
	err = Validate(&signup{Password: "secret1", NewPass: &long})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newPass must be at most 72 bytes")

	edge := strings.Repeat("c", MaxPasswordBytes)
	assert.NoError(t, Validate(&signup{Password: edge, NewPass: &edge}))
	assert.NoError(t, Validate(&signup{Password: "secret1"}))

	PasswordCost = bcrypt.MinCost
	_, err = HashPassword(edge)
	assert.NoError(t, err)
}
