package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
)

// AccountStore 帳戶餘額的持久化儲存
//
// 兩個方法都會先確保帳戶存在 (不存在則以餘額 0 建立並立即寫入)，
// 回傳前資料必須已經持久化。
type AccountStore interface {
	// GetBalance 取得帳戶餘額，帳戶不存在時先建立
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// AdjustBalance 將 delta 加到帳戶餘額，delta 可為負數，不做透支檢查
	AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
}

// TransactionLog 只能追加的轉帳紀錄
type TransactionLog interface {
	// Append 寫入一筆不可變的紀錄
	Append(ctx context.Context, rec *domain.Record) error
	// QueryRecent 依寫入順序由新到舊，回傳最多 limit 筆與該帳戶相關的紀錄
	QueryRecent(ctx context.Context, accountID string, limit int) ([]domain.Record, error)
}

// Store 帳本狀態：AccountStore 與 TransactionLog 加上交易邊界
type Store interface {
	AccountStore
	TransactionLog
	// Atomic 在單一交易內執行 fn；fn 回傳錯誤或提交失敗時，所有寫入皆回滾
	Atomic(ctx context.Context, fn func(accounts AccountStore, history TransactionLog) error) error
}
