package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision every amount is rounded to.
const MoneyPlaces = 2

// GenerateUUID generates a new UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateInviteCode generates a short uppercase invitation code
func GenerateInviteCode() string {
	return strings.ToUpper(GenerateRandomString(8))
}

// GenerateRandomString generates a random string of specified length
func GenerateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// RoundMoney rounds to cents, half away from zero
func RoundMoney(value decimal.Decimal) decimal.Decimal {
	return value.Round(MoneyPlaces)
}

// ValidAmount reports whether amount is positive and in whole cents
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(RoundMoney(amount))
}

// Pagination converts page/limit into limit/offset with sane bounds
func Pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit
}
