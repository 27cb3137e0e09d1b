// Package jwt JWT令牌校验单元测试
package jwt

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-token-signing"

func setupTestManager() *Manager {
	return NewManager(&Config{
		Secret:           testSecret,
		Issuer:           "session-service",
		AccessExpireTime: 15 * time.Minute,
	})
}

func TestManager_GenerateAndParse(t *testing.T) {
	m := setupTestManager()

	token, expiresAt, err := m.GenerateAccessToken(42, UserTypeUser, "")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
	assert.InDelta(t, time.Now().Add(15*time.Minute).Unix(), expiresAt, 2)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, UserTypeUser, claims.UserType)
	assert.False(t, claims.IsAdmin())
	assert.Equal(t, "session-service", claims.Issuer)

	adminToken, _, err := m.GenerateAccessToken(7, UserTypeAdmin, "finance")
	require.NoError(t, err)
	claims, err = m.ParseToken(adminToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "finance", claims.Role)
}

func sign(t *testing.T, method gojwt.SigningMethod, key interface{}, claims *Claims) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestManager_ParseToken_Rejects(t *testing.T) {
	m := setupTestManager()
	now := time.Now()
	valid := func() *Claims {
		return &Claims{
			UserID:   1,
			UserType: UserTypeUser,
			RegisteredClaims: gojwt.RegisteredClaims{
				Issuer:    "session-service",
				ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  gojwt.NewNumericDate(now),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = gojwt.NewNumericDate(now.Add(-time.Minute))

	notYet := valid()
	notYet.NotBefore = gojwt.NewNumericDate(now.Add(time.Hour))

	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"

	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	noUser := valid()
	noUser.UserID = 0

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"格式错误", "not.a.jwt", ErrTokenMalformed},
		{"空令牌", "", ErrTokenMalformed},
		{"密钥错误", sign(t, gojwt.SigningMethodHS256, []byte("other-secret"), valid()), ErrTokenInvalid},
		{"算法不符", sign(t, gojwt.SigningMethodHS512, []byte(testSecret), valid()), ErrTokenInvalid},
		{"已过期", sign(t, gojwt.SigningMethodHS256, []byte(testSecret), expired), ErrTokenExpired},
		{"尚未生效", sign(t, gojwt.SigningMethodHS256, []byte(testSecret), notYet), ErrTokenNotActive},
		{"签发方不符", sign(t, gojwt.SigningMethodHS256, []byte(testSecret), wrongIssuer), ErrTokenInvalid},
		{"缺少过期时间", sign(t, gojwt.SigningMethodHS256, []byte(testSecret), noExpiry), ErrTokenInvalid},
		{"缺少用户", sign(t, gojwt.SigningMethodHS256, []byte(testSecret), noUser), ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := m.ParseToken(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_Leeway(t *testing.T) {
	m := NewManager(&Config{Secret: testSecret, Leeway: time.Minute})
	claims := &Claims{
		UserID:   1,
		UserType: UserTypeUser,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
		},
	}
	_, err := m.ParseToken(sign(t, gojwt.SigningMethodHS256, []byte(testSecret), claims))
	assert.NoError(t, err)
}
