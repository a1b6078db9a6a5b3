package gormdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-chat-ledger/pkg/database"
)

// sqlAccount 對應資料庫的 accounts 表，金額以十進位字串保存，運算在 Go 端完成
type sqlAccount struct {
	ID      string          `gorm:"primaryKey;size:191"`
	Balance decimal.Decimal `gorm:"type:varchar(80);not null;default:'0'"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlHistory 對應資料庫的 history 表，Seq 即寫入順序
type sqlHistory struct {
	Seq       int64           `gorm:"primaryKey;autoIncrement"`
	RefID     string          `gorm:"column:ref_id;size:36;uniqueIndex"`
	Sender    string          `gorm:"size:191;not null"`
	Recipient string          `gorm:"size:191;not null"`
	Amount    decimal.Decimal `gorm:"type:varchar(80);not null"`
	Timestamp string          `gorm:"size:32;not null"`
}

func (*sqlHistory) TableName() string {
	return "history"
}

// GormLedger 以 GORM 實作 usecase.Store
//
// 結構:
//
//	db: 連線，Atomic 內為交易中的 *gorm.DB
//	inTx: 是否位於 Atomic 交易內
type GormLedger struct {
	db   *gorm.DB
	inTx bool
}

// NewGormLedger 建立 GormLedger 並建立缺少的資料表
func NewGormLedger(client *database.Client) (*GormLedger, error) {
	db := client.DB()
	if err := db.AutoMigrate(&sqlAccount{}, &sqlHistory{}); err != nil {
		return nil, fmt.Errorf("migrate ledger tables: %w", err)
	}
	return &GormLedger{db: db}, nil
}

// Atomic 以資料庫 Transaction 包住 fn，fn 回傳錯誤時 GORM 會 Rollback
func (ledger *GormLedger) Atomic(ctx context.Context, fn func(usecase.AccountStore, usecase.TransactionLog) error) error {
	return ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &GormLedger{db: tx, inTx: true}
		return fn(scoped, scoped)
	})
}

// ensureAccount 帳戶不存在時以餘額 0 建立
func (ledger *GormLedger) ensureAccount(ctx context.Context, accountID string) error {
	err := ledger.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sqlAccount{ID: accountID, Balance: decimal.Zero}).Error
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}
	return nil
}

// GetBalance 取得帳戶餘額，帳戶不存在時先建立
func (ledger *GormLedger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if err := ledger.ensureAccount(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	var account sqlAccount
	if err := ledger.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		return decimal.Zero, fmt.Errorf("select account %s: %w", accountID, err)
	}
	return account.Balance, nil
}

// AdjustBalance 在交易內鎖定帳戶列、以 decimal 計算後寫回，不做透支檢查
func (ledger *GormLedger) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	if !ledger.inTx {
		return ledger.Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
			return accounts.AdjustBalance(ctx, accountID, delta)
		})
	}
	if err := ledger.ensureAccount(ctx, accountID); err != nil {
		return err
	}

	query := ledger.db.WithContext(ctx)
	// SQLite 沒有列鎖，單一連線本身已序列化寫入
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account sqlAccount
	if err := query.Where("id = ?", accountID).First(&account).Error; err != nil {
		return fmt.Errorf("lock account %s: %w", accountID, err)
	}

	res := ledger.db.WithContext(ctx).
		Model(&sqlAccount{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", account.Balance.Add(delta))
	if res.Error != nil {
		return fmt.Errorf("update balance %s: %w", accountID, res.Error)
	}
	return nil
}

// Append 寫入一筆交易紀錄
func (ledger *GormLedger) Append(ctx context.Context, rec *domain.Record) error {
	row := sqlHistory{
		RefID:     rec.RefID.String(),
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Amount:    rec.Amount,
		Timestamp: rec.Timestamp,
	}
	if err := ledger.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// QueryRecent 依 seq 由新到舊查詢最多 limit 筆，limit <= 0 時使用預設值
func (ledger *GormLedger) QueryRecent(ctx context.Context, accountID string, limit int) ([]domain.Record, error) {
	var rows []sqlHistory
	err := ledger.db.WithContext(ctx).
		Where("sender = ? OR recipient = ?", accountID, accountID).
		Order("seq DESC").
		Limit(domain.HistoryLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select history %s: %w", accountID, err)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		refID, err := uuid.Parse(row.RefID)
		if err != nil {
			return nil, fmt.Errorf("history seq %d: bad ref_id: %w", row.Seq, err)
		}
		records = append(records, domain.Record{
			RefID:     refID,
			Sender:    row.Sender,
			Recipient: row.Recipient,
			Amount:    row.Amount,
			Timestamp: row.Timestamp,
		})
	}
	return records, nil
}

var _ usecase.Store = (*GormLedger)(nil)
