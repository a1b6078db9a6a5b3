package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
)

// stagedTx 交易進行中的暫存區，所有寫入先記在 ops，提交前不碰 MutexLedger 的狀態
type stagedTx struct {
	base     *MutexLedger
	balances map[string]decimal.Decimal
	pending  []domain.Record
	ops      []op
}

func newStagedTx(base *MutexLedger) *stagedTx {
	return &stagedTx{
		base:     base,
		balances: make(map[string]decimal.Decimal),
	}
}

func (tx *stagedTx) GetBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	if b, ok := tx.balances[accountID]; ok {
		return b, nil
	}
	if account, ok := tx.base.accounts[accountID]; ok {
		tx.balances[accountID] = account.Balance
		return account.Balance, nil
	}
	tx.balances[accountID] = decimal.Zero
	tx.ops = append(tx.ops, op{Kind: opOpen, Account: accountID})
	return decimal.Zero, nil
}

func (tx *stagedTx) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	balance, _ := tx.GetBalance(ctx, accountID)
	tx.balances[accountID] = balance.Add(delta)
	tx.ops = append(tx.ops, op{Kind: opAdjust, Account: accountID, Delta: delta})
	return nil
}

func (tx *stagedTx) Append(_ context.Context, rec *domain.Record) error {
	stored := *rec
	tx.pending = append(tx.pending, stored)
	tx.ops = append(tx.ops, op{Kind: opAppend, Record: &stored})
	return nil
}

func (tx *stagedTx) QueryRecent(_ context.Context, accountID string, limit int) ([]domain.Record, error) {
	return recent(tx.base.history, tx.pending, accountID, limit), nil
}
