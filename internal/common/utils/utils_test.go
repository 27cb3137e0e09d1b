// Package utils 通用工具函数单元测试
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== GenerateOrderNo 测试 ====================

func TestGenerateOrderNo(t *testing.T) {
	tests := []string{"SUB", "WD", ""}

	for _, prefix := range tests {
		t.Run("prefix_"+prefix, func(t *testing.T) {
			orderNo := GenerateOrderNo(prefix)
			assert.True(t, strings.HasPrefix(orderNo, prefix))
			// 前缀 + 14位时间戳 + 6位随机数
			assert.Equal(t, len(prefix)+20, len(orderNo))
		})
	}
}

func TestGenerateOrderNo_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		orderNo := GenerateOrderNo("SUB")
		assert.False(t, seen[orderNo], "订单号应该是唯一的")
		seen[orderNo] = true
	}
}

func TestGenerateRandomNumber(t *testing.T) {
	for _, length := range []int{4, 6, 10} {
		n := GenerateRandomNumber(length)
		assert.Len(t, n, length)
		assert.Equal(t, n, OnlyDigits(n))
	}
}

// ==================== GenerateReferralCode 测试 ====================

func TestGenerateReferralCode(t *testing.T) {
	for _, length := range []int{6, 8, 12} {
		code := GenerateReferralCode(length)
		require.Len(t, code, length)
		assert.True(t, ValidateReferralCode(code))
		for _, c := range "0OI1" {
			assert.NotContains(t, code, string(c))
		}
	}
}

// ==================== 校验函数测试 ====================

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "52998224725", OnlyDigits("529.982.247-25"))
	assert.Equal(t, "", OnlyDigits("abc"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("ana@example.com"))
	assert.True(t, ValidateEmail("a.b+c@sub.example.com.br"))
	assert.False(t, ValidateEmail("ana@"))
	assert.False(t, ValidateEmail("ana.example.com"))
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"11987654321", true},
		{"1133334444", true},
		{"+5511987654321", true},
		{"5511987654321", true},
		{"987654321", false},
		{"+1 555 0100", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidatePhone(tt.phone), tt.phone)
	}
}

func TestValidateReferralCode(t *testing.T) {
	assert.True(t, ValidateReferralCode("ANA2024"))
	assert.False(t, ValidateReferralCode("ab"))
	assert.False(t, ValidateReferralCode("lower"))
	assert.False(t, ValidateReferralCode("WITH SPACE"))
}

func TestValidateUUID(t *testing.T) {
	assert.True(t, ValidateUUID("123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, ValidateUUID("123e4567e89b12d3a456426614174000"))
}

func TestValidateCPF(t *testing.T) {
	assert.True(t, ValidateCPF("52998224725"))
	assert.False(t, ValidateCPF("52998224724"))
	assert.False(t, ValidateCPF("11111111111"))
	assert.False(t, ValidateCPF("5299822472"))
}

func TestValidateCNPJ(t *testing.T) {
	assert.True(t, ValidateCNPJ("11222333000181"))
	assert.False(t, ValidateCNPJ("11222333000182"))
	assert.False(t, ValidateCNPJ("00000000000000"))
	assert.False(t, ValidateCNPJ("1122233300018"))
}
