package telegram

import (
	"sync"
	"time"
)

// Stage 轉帳對話目前等待的輸入
type Stage uint8

const (
	// StageIdle 沒有進行中的對話
	StageIdle Stage = iota
	// StageAwaitingRecipient 等待收款人
	StageAwaitingRecipient
	// StageAwaitingAmount 已有收款人，等待金額
	StageAwaitingAmount
)

// Session 單一使用者的轉帳對話狀態
// 對話期間不持有任何帳本的鎖，只有最後的 Transfer 會動到帳本
type Session struct {
	Stage     Stage
	Recipient string
	UpdatedAt time.Time
}

// Sessions 以使用者 ID 為 key 保存對話，超過 ttl 未更新的對話視為放棄
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
	now   func() time.Time
}

func NewSessions(ttl time.Duration, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		items: make(map[string]*Session),
		ttl:   ttl,
		now:   now,
	}
}

// Begin 開始 (或重新開始) 一段轉帳對話
func (s *Sessions) Begin(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = &Session{
		Stage:     StageAwaitingRecipient,
		UpdatedAt: s.now(),
	}
}

// Get 回傳進行中對話的複本；不存在或已逾時回傳 false
func (s *Sessions) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[userID]
	if !ok {
		return Session{}, false
	}
	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.items, userID)
		return Session{}, false
	}
	return *sess, true
}

// SetRecipient 記下收款人並進入等待金額
func (s *Sessions) SetRecipient(userID, recipient string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[userID]
	if !ok {
		return
	}
	sess.Recipient = recipient
	sess.Stage = StageAwaitingAmount
	sess.UpdatedAt = s.now()
}

// End 結束對話，回傳原本是否有對話
func (s *Sessions) End(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[userID]
	delete(s.items, userID)
	return ok
}

// Sweep 清除所有逾時的對話，回傳清除的數量
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.items {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			delete(s.items, id)
			n++
		}
	}
	return n
}
