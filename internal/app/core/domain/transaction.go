package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimestampLayout 交易時間的固定格式 DD/MM/YYYY hh:mm:ss AM/PM
const TimestampLayout = "02/01/2006 03:04:05 PM"

// DefaultHistoryLimit 查詢交易紀錄的預設筆數
const DefaultHistoryLimit = 5

// HistoryLimit limit <= 0 時回傳 DefaultHistoryLimit
func HistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// Record 一筆轉帳紀錄，寫入後不可變更
type Record struct {
	// RefID: 提交時配發的追蹤號
	RefID uuid.UUID `json:"ref_id"`
	// Sender, Recipient: 帳戶 ID
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	// Amount: 實際移動的金額 (> 0)
	Amount decimal.Decimal `json:"amount"`
	// Timestamp: 提交當下的時間，格式為 TimestampLayout
	Timestamp string `json:"timestamp"`
}

// NewRecord 以提交時間建立一筆紀錄
func NewRecord(sender, recipient string, amount decimal.Decimal, at time.Time) *Record {
	return &Record{
		RefID:     uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: at.Format(TimestampLayout),
	}
}

// Involves 回傳該帳戶是否為寄款方或收款方
func (r *Record) Involves(accountID string) bool {
	return r.Sender == accountID || r.Recipient == accountID
}
