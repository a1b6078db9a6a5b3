package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
)

// LedgerService 是核心業務邏輯層
//
// 結構:
//
//	store: 帳本狀態 (餘額 + 交易紀錄)
//	mu: 序列化所有會改變狀態的操作
//	now: 取得提交時間
type LedgerService struct {
	store  Store
	mu     sync.Mutex
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// Option 設定 LedgerService
type Option func(*LedgerService)

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		s.now = now
	}
}

// WithLocation 設定交易時間使用的時區，預設為本地時間
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger 設定 logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *LedgerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewLedgerService(store Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetBalance 取得帳戶餘額，帳戶不存在時以 0 建立
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	accountID, err := domain.NormalizeAccountID(accountID)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, s.storageError("get balance", err, slog.String("account", accountID))
	}
	return balance, nil
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amountText: 使用者輸入的金額
//
// 回傳:
//
//	decimal.Decimal: 存款後的餘額
//	error: ErrInvalidAmount / ErrInvalidAccountID / ErrStorage
func (s *LedgerService) Deposit(ctx context.Context, accountID, amountText string) (decimal.Decimal, error) {
	accountID, err := domain.NormalizeAccountID(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := domain.ParseAmount(amountText)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var balance decimal.Decimal
	err = s.store.Atomic(ctx, func(accounts AccountStore, _ TransactionLog) error {
		if err := accounts.AdjustBalance(ctx, accountID, amount); err != nil {
			return err
		}
		b, err := accounts.GetBalance(ctx, accountID)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return decimal.Zero, s.storageError("deposit", err, slog.String("account", accountID))
	}

	s.logger.Info("deposit committed",
		slog.String("account", accountID),
		slog.String("amount", amount.String()),
		slog.String("balance", balance.String()),
	)
	return balance, nil
}

// Transfer 轉帳
//
// 扣款、入帳與寫入紀錄在同一個交易內完成；
// 驗證失敗不改變任何狀態，之後任一步驟失敗則全部回滾。
//
// 參數:
//
//	ctx: 上下文
//	senderID: 付款帳戶
//	recipientID: 收款帳戶 (允許與 senderID 相同)
//	amountText: 使用者輸入的金額
//
// 回傳:
//
//	decimal.Decimal: 實際轉出的金額
//	error: ErrInvalidAmount / ErrInsufficientFunds / ErrInvalidAccountID / ErrStorage
func (s *LedgerService) Transfer(ctx context.Context, senderID, recipientID, amountText string) (decimal.Decimal, error) {
	senderID, err := domain.NormalizeAccountID(senderID)
	if err != nil {
		return decimal.Zero, err
	}
	recipientID, err = domain.NormalizeAccountID(recipientID)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := domain.ParseAmount(amountText)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Atomic(ctx, func(accounts AccountStore, history TransactionLog) error {
		balance, err := accounts.GetBalance(ctx, senderID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		if err := accounts.AdjustBalance(ctx, senderID, amount.Neg()); err != nil {
			return fmt.Errorf("debit %s: %w", senderID, err)
		}
		if err := accounts.AdjustBalance(ctx, recipientID, amount); err != nil {
			return fmt.Errorf("credit %s: %w", recipientID, err)
		}
		rec := domain.NewRecord(senderID, recipientID, amount, s.now().In(s.loc))
		if err := history.Append(ctx, rec); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, s.storageError("transfer", err,
			slog.String("sender", senderID),
			slog.String("recipient", recipientID),
		)
	}

	s.logger.Info("transfer committed",
		slog.String("sender", senderID),
		slog.String("recipient", recipientID),
		slog.String("amount", amount.String()),
	)
	return amount, nil
}

// RecentHistory 回傳最多 limit 筆相關紀錄，由新到舊；limit <= 0 時使用預設值
func (s *LedgerService) RecentHistory(ctx context.Context, accountID string, limit int) ([]domain.Record, error) {
	accountID, err := domain.NormalizeAccountID(accountID)
	if err != nil {
		return nil, err
	}
	limit = domain.HistoryLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.QueryRecent(ctx, accountID, limit)
	if err != nil {
		return nil, s.storageError("recent history", err, slog.String("account", accountID))
	}
	return records, nil
}

func (s *LedgerService) storageError(op string, err error, attrs ...any) error {
	s.logger.Error(op+" failed", append(attrs, slog.Any("error", err))...)
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
