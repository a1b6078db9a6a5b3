package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale 金額最多的小數位數
	AmountScale = 8
	// MaxAmountDigits 金額整數部分最多的位數
	MaxAmountDigits = 30
)

// ParseAmount 將使用者輸入的文字解析為金額
//
// 參數:
//
//	text: 使用者輸入，例如 "20" 或 "12.5"
//
// 回傳:
//
//	decimal.Decimal: 大於 0 的金額，小數最多 AmountScale 位
//	error: 無法解析、為零、為負數或超出位數限制時回傳 ErrInvalidAmount
func ParseAmount(text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	// 只看係數位數與指數，在做任何會放大係數的運算前擋掉 1e300000000 這類輸入
	exp := int(amount.Exponent())
	if exp > MaxAmountDigits || exp < -(AmountScale+MaxAmountDigits) {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.NumDigits()+exp > MaxAmountDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	if exp < -AmountScale {
		// "1.000000000" 這類尾端多餘的 0 仍可接受
		truncated := amount.Truncate(AmountScale)
		if !truncated.Equal(amount) {
			return decimal.Zero, ErrInvalidAmount
		}
		amount = truncated
	}
	return amount, nil
}
