package domain

import "errors"

var (
	// ErrInvalidAmount 金額無法解析、為零或為負數
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAccountID 帳戶 ID 為空
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrStorage 底層儲存失敗，該次請求已完整回滾
	ErrStorage = errors.New("storage error")
)
