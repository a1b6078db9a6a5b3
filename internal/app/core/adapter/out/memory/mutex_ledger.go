package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-chat-ledger/pkg/wal"
)

// opKind WAL 內單一操作的種類
type opKind uint8

const (
	// 以餘額 0 建立帳戶
	opOpen opKind = 1
	// 調整餘額
	opAdjust opKind = 2
	// 追加交易紀錄
	opAppend opKind = 3
)

type op struct {
	Kind    opKind          `json:"kind"`
	Account string          `json:"account,omitempty"`
	Delta   decimal.Decimal `json:"delta"`
	Record  *domain.Record  `json:"record,omitempty"`
}

// batch 一次提交的所有操作，WAL 內一行一個 batch
type batch struct {
	Sequence uint64 `json:"seq"`
	Ops      []op   `json:"ops"`
}

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	history: 交易紀錄，依寫入順序
//	mu: Mutex 用於保護帳戶資料
//	wal: Write-Ahead Log 實例，nil 時不持久化
type MutexLedger struct {
	accounts map[string]*domain.Account
	history  []domain.Record
	sequence uint64
	mu       sync.Mutex
	// Write-Ahead Logging
	wal *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例並從 WAL 恢復狀態
//
// 參數:
//
//	wal: Write-Ahead Log 實例，可為 nil (純記憶體，用於測試)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(wal *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts: make(map[string]*domain.Account),
		wal:      wal,
	}
	if wal == nil {
		return ledger, nil
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var b batch
		if err := json.Unmarshal(jsonRaw, &b); err != nil {
			return fmt.Errorf("decode wal batch: %w", err)
		}
		m.apply(b.Ops)
		m.sequence = b.Sequence
		return nil
	})
}

// Atomic 在 Lock 內以暫存區執行 fn，成功後先寫 WAL 再套用到記憶體
func (m *MutexLedger) Atomic(ctx context.Context, fn func(usecase.AccountStore, usecase.TransactionLog) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newStagedTx(m)
	if err := fn(tx, tx); err != nil {
		return err
	}
	return m.commitLocked(tx.ops)
}

// commitLocked 寫入 WAL (Critical Path) 後套用操作；WAL 失敗時記憶體不變
func (m *MutexLedger) commitLocked(ops []op) error {
	if len(ops) == 0 {
		return nil
	}
	if m.wal != nil {
		b := batch{Sequence: m.sequence + 1, Ops: ops}
		if err := m.wal.Write(b); err != nil {
			return fmt.Errorf("write wal: %w", err)
		}
	}
	m.sequence++
	m.apply(ops)
	return nil
}

func (m *MutexLedger) apply(ops []op) {
	for _, o := range ops {
		switch o.Kind {
		case opOpen:
			if _, ok := m.accounts[o.Account]; !ok {
				m.accounts[o.Account] = domain.NewAccount(o.Account)
			}
		case opAdjust:
			account, ok := m.accounts[o.Account]
			if !ok {
				account = domain.NewAccount(o.Account)
				m.accounts[o.Account] = account
			}
			account.Adjust(o.Delta)
		case opAppend:
			if o.Record != nil {
				m.history = append(m.history, *o.Record)
			}
		}
	}
}

// GetBalance 取得指定帳戶的當前餘額，不存在時以 0 建立
func (m *MutexLedger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := m.Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		b, err := accounts.GetBalance(ctx, accountID)
		balance = b
		return err
	})
	return balance, err
}

// AdjustBalance 調整帳戶餘額
func (m *MutexLedger) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	return m.Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		return accounts.AdjustBalance(ctx, accountID, delta)
	})
}

// Append 追加一筆交易紀錄
func (m *MutexLedger) Append(ctx context.Context, rec *domain.Record) error {
	return m.Atomic(ctx, func(_ usecase.AccountStore, history usecase.TransactionLog) error {
		return history.Append(ctx, rec)
	})
}

// QueryRecent 由新到舊回傳最多 limit 筆相關紀錄
func (m *MutexLedger) QueryRecent(ctx context.Context, accountID string, limit int) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return recent(m.history, nil, accountID, limit), nil
}

// recent 先看尚未提交的 pending，再看已提交的 history，兩者皆由尾端往前
func recent(history, pending []domain.Record, accountID string, limit int) []domain.Record {
	limit = domain.HistoryLimit(limit)
	out := make([]domain.Record, 0, min(limit, len(history)+len(pending)))
	for _, list := range [][]domain.Record{pending, history} {
		for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
			if list[i].Involves(accountID) {
				out = append(out, list[i])
			}
		}
	}
	return out
}

var _ usecase.Store = (*MutexLedger)(nil)
