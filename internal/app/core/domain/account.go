package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Account 帳戶快照
// 帳戶在第一次被引用時以餘額 0 建立 (lazy creation)，永不刪除
type Account struct {
	ID      string
	Balance decimal.Decimal
}

// NewAccount 建立餘額為 0 的帳戶
func NewAccount(id string) *Account {
	return &Account{
		ID:      id,
		Balance: decimal.Zero,
	}
}

// Adjust 將 delta 加到餘額上，delta 可為負數。
// 不檢查透支，透支由 LedgerService 把關。
func (a *Account) Adjust(delta decimal.Decimal) {
	a.Balance = a.Balance.Add(delta)
}

// NormalizeAccountID 去除前後空白，並驗證 ID 不為空
func NormalizeAccountID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidAccountID
	}
	return id, nil
}
