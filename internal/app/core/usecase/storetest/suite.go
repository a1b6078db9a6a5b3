// Package storetest 提供 usecase.Store 實作共用的行為測試
package storetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
)

var errBoom = errors.New("boom")

// Run 對 newStore 建立的 Store 執行所有共用測試，每個子測試都拿到全新的 Store
func Run(t *testing.T, newStore func(t *testing.T) usecase.Store) {
	t.Run("LazyCreation", func(t *testing.T) { testLazyCreation(t, newStore(t)) })
	t.Run("AdjustBalance", func(t *testing.T) { testAdjustBalance(t, newStore(t)) })
	t.Run("QueryRecentOrderAndLimit", func(t *testing.T) { testQueryRecent(t, newStore(t)) })
	t.Run("QueryRecentLimitBounds", func(t *testing.T) { testQueryRecentLimitBounds(t, newStore(t)) })
	t.Run("ExactArithmetic", func(t *testing.T) { testExactArithmetic(t, newStore(t)) })
	t.Run("AtomicCommit", func(t *testing.T) { testAtomicCommit(t, newStore(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func balance(t *testing.T, s usecase.Store, id string) decimal.Decimal {
	t.Helper()
	b, err := s.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBalance(%s) err=%v", id, err)
	}
	return b
}

func wantBalance(t *testing.T, s usecase.Store, id, want string) {
	t.Helper()
	if got := balance(t, s, id); !got.Equal(dec(t, want)) {
		t.Fatalf("balance(%s)=%s want=%s", id, got, want)
	}
}

func record(sender, recipient, amount string) *domain.Record {
	return domain.NewRecord(sender, recipient, decimal.RequireFromString(amount), time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC))
}

func testLazyCreation(t *testing.T, s usecase.Store) {
	wantBalance(t, s, "alice", "0")
	// 第二次查詢仍為 0，且不會重複建立
	wantBalance(t, s, "alice", "0")
}

func testAdjustBalance(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	if err := s.AdjustBalance(ctx, "bob", dec(t, "50")); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustBalance(ctx, "bob", dec(t, "-12.5")); err != nil {
		t.Fatal(err)
	}
	wantBalance(t, s, "bob", "37.5")

	// 不做透支檢查
	if err := s.AdjustBalance(ctx, "carol", dec(t, "-3")); err != nil {
		t.Fatal(err)
	}
	wantBalance(t, s, "carol", "-3")
}

func testQueryRecent(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	appends := []*domain.Record{
		record("alice", "bob", "1"),
		record("bob", "carol", "2"),
		record("carol", "alice", "3"),
		record("dave", "erin", "4"),
		record("alice", "dave", "5"),
	}
	for _, r := range appends {
		if err := s.Append(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.QueryRecent(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"5", "3", "1"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want=%d", len(got), len(want))
	}
	for i, r := range got {
		if !r.Amount.Equal(dec(t, want[i])) {
			t.Fatalf("record %d amount=%s want=%s", i, r.Amount, want[i])
		}
	}
	if got[0].RefID != appends[4].RefID || got[0].Timestamp != "01/03/2024 03:04:05 PM" {
		t.Fatalf("record not stored as written: %+v", got[0])
	}

	limited, err := s.QueryRecent(ctx, "alice", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || !limited[1].Amount.Equal(dec(t, "3")) {
		t.Fatalf("limited=%+v", limited)
	}

	none, err := s.QueryRecent(ctx, "nobody", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("none=%+v", none)
	}
}

func testQueryRecentLimitBounds(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if err := s.Append(ctx, record("alice", "bob", "1")); err != nil {
			t.Fatal(err)
		}
	}
	cases := map[int]int{
		0:             domain.DefaultHistoryLimit,
		-1:            domain.DefaultHistoryLimit,
		math.MinInt:   domain.DefaultHistoryLimit,
		math.MaxInt32: 7,
		math.MaxInt:   7,
	}
	for limit, want := range cases {
		got, err := s.QueryRecent(ctx, "alice", limit)
		if err != nil {
			t.Fatalf("QueryRecent(limit=%d) err=%v", limit, err)
		}
		if len(got) != want {
			t.Errorf("QueryRecent(limit=%d) len=%d want=%d", limit, len(got), want)
		}
	}
}

// testExactArithmetic 餘額與紀錄金額都必須原樣保存，不經過浮點數
func testExactArithmetic(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	for _, delta := range []string{"0.1", "0.2"} {
		if err := s.AdjustBalance(ctx, "alice", dec(t, delta)); err != nil {
			t.Fatal(err)
		}
	}
	if got := balance(t, s, "alice"); got.String() != "0.3" {
		t.Fatalf("balance=%s want=0.3", got)
	}

	large := "123456789012345678901234567890.12345678"
	if err := s.AdjustBalance(ctx, "bob", dec(t, large)); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustBalance(ctx, "bob", dec(t, "0.00000001")); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, s, "bob"); got.String() != "123456789012345678901234567890.12345679" {
		t.Fatalf("balance=%s", got)
	}

	if err := s.Append(ctx, record("alice", "bob", "0.00000001")); err != nil {
		t.Fatal(err)
	}
	recs, err := s.QueryRecent(ctx, "bob", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Amount.String() != "0.00000001" {
		t.Fatalf("records=%+v", recs)
	}
}

func testAtomicCommit(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	err := s.Atomic(ctx, func(accounts usecase.AccountStore, history usecase.TransactionLog) error {
		if err := accounts.AdjustBalance(ctx, "alice", dec(t, "-5")); err != nil {
			return err
		}
		if err := accounts.AdjustBalance(ctx, "bob", dec(t, "5")); err != nil {
			return err
		}
		// 同一交易內讀得到自己的寫入
		b, err := accounts.GetBalance(ctx, "bob")
		if err != nil {
			return err
		}
		if !b.Equal(dec(t, "5")) {
			t.Errorf("in-tx balance=%s want=5", b)
		}
		return history.Append(ctx, record("alice", "bob", "5"))
	})
	if err != nil {
		t.Fatal(err)
	}
	wantBalance(t, s, "alice", "-5")
	wantBalance(t, s, "bob", "5")
	recs, err := s.QueryRecent(ctx, "bob", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("records=%d want=1", len(recs))
	}
}

func testAtomicRollback(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	if err := s.AdjustBalance(ctx, "alice", dec(t, "10")); err != nil {
		t.Fatal(err)
	}

	err := s.Atomic(ctx, func(accounts usecase.AccountStore, history usecase.TransactionLog) error {
		if err := accounts.AdjustBalance(ctx, "alice", dec(t, "-10")); err != nil {
			return err
		}
		if err := accounts.AdjustBalance(ctx, "newcomer", dec(t, "10")); err != nil {
			return err
		}
		if err := history.Append(ctx, record("alice", "newcomer", "10")); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom, got %v", err)
	}

	wantBalance(t, s, "alice", "10")
	wantBalance(t, s, "newcomer", "0")
	recs, err := s.QueryRecent(ctx, "alice", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("rolled back record visible: %+v", recs)
	}
}
