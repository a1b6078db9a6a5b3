package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/out/gormdb"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-chat-ledger/pkg/database"
)

var fixedNow = time.Date(2024, 3, 1, 21, 7, 9, 0, time.UTC)

// backends 兩種 Store 實作都跑同一組測試
var backends = map[string]func(t *testing.T) usecase.Store{
	"memory": func(t *testing.T) usecase.Store {
		s, err := memory.NewMutexLedger(nil)
		if err != nil {
			t.Fatal(err)
		}
		return s
	},
	"sqlite": func(t *testing.T) usecase.Store {
		client, err := database.NewClient(database.Config{
			Driver:   database.DriverSQLite,
			Path:     filepath.Join(t.TempDir(), "ledger.db"),
			LogLevel: "silent",
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = client.Close() })
		s, err := gormdb.NewGormLedger(client)
		if err != nil {
			t.Fatal(err)
		}
		return s
	},
}

func newService(store usecase.Store) *usecase.LedgerService {
	return usecase.NewLedgerService(store,
		usecase.WithClock(func() time.Time { return fixedNow }),
		usecase.WithLocation(time.UTC),
		usecase.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *usecase.LedgerService, store usecase.Store)) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			fn(t, newService(store), store)
		})
	}
}

func wantBalance(t *testing.T, svc *usecase.LedgerService, id, want string) {
	t.Helper()
	got, err := svc.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBalance(%s) err=%v", id, err)
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("balance(%s)=%s want=%s", id, got.StringFixed(2), want)
	}
}

func historyLen(t *testing.T, svc *usecase.LedgerService, id string, limit int) int {
	t.Helper()
	recs, err := svc.RecentHistory(context.Background(), id, limit)
	if err != nil {
		t.Fatalf("RecentHistory(%s) err=%v", id, err)
	}
	return len(recs)
}

// TestScenarios 依序執行：新帳戶、存款、轉帳、餘額不足、查詢紀錄
func TestScenarios(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		ctx := context.Background()

		// 1. 新帳戶餘額為 0
		wantBalance(t, svc, "alice", "0")

		// 2. 存款
		bal, err := svc.Deposit(ctx, "alice", "50.0")
		if err != nil {
			t.Fatal(err)
		}
		if bal.StringFixed(2) != "50.00" {
			t.Fatalf("deposit balance=%s", bal.StringFixed(2))
		}
		if _, err := svc.Deposit(ctx, "alice", "-5"); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("want ErrInvalidAmount, got %v", err)
		}
		wantBalance(t, svc, "alice", "50")

		// 3. 轉帳
		moved, err := svc.Transfer(ctx, "alice", "bob", "20.0")
		if err != nil {
			t.Fatal(err)
		}
		if !moved.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("moved=%s", moved)
		}
		wantBalance(t, svc, "alice", "30")
		wantBalance(t, svc, "bob", "20")

		// 4. 餘額不足
		if _, err := svc.Transfer(ctx, "alice", "bob", "1000.0"); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("want ErrInsufficientFunds, got %v", err)
		}
		wantBalance(t, svc, "alice", "30")
		wantBalance(t, svc, "bob", "20")

		// 5. bob 的紀錄只有一筆，bob 為收款方
		recs, err := svc.RecentHistory(ctx, "bob", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("records=%d want=1", len(recs))
		}
		r := recs[0]
		if r.Sender != "alice" || r.Recipient != "bob" || r.Amount.StringFixed(2) != "20.00" {
			t.Fatalf("record=%+v", r)
		}
		if r.Timestamp != "01/03/2024 09:07:09 PM" {
			t.Fatalf("timestamp=%q", r.Timestamp)
		}
	})
}

func TestInvalidAmounts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		ctx := context.Background()
		if _, err := svc.Deposit(ctx, "alice", "10"); err != nil {
			t.Fatal(err)
		}
		invalid := []string{
			"0", "-1", "0.00", "abc", "", "NaN", "Inf", "1,5",
			"1e300000000", "1e-300000000", "0.000000001", "1e31",
		}
		for _, text := range invalid {
			if _, err := svc.Deposit(ctx, "alice", text); !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("Deposit(%q) want ErrInvalidAmount, got %v", text, err)
			}
			if _, err := svc.Transfer(ctx, "alice", "bob", text); !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("Transfer(%q) want ErrInvalidAmount, got %v", text, err)
			}
		}
		wantBalance(t, svc, "alice", "10")
		wantBalance(t, svc, "bob", "0")
		if n := historyLen(t, svc, "alice", 5); n != 0 {
			t.Fatalf("history=%d want=0", n)
		}
	})
}

func TestInvalidAccountID(t *testing.T) {
	svc := newService(backends["memory"](t))
	ctx := context.Background()
	if _, err := svc.GetBalance(ctx, "  "); !errors.Is(err, domain.ErrInvalidAccountID) {
		t.Fatalf("want ErrInvalidAccountID, got %v", err)
	}
	if _, err := svc.Transfer(ctx, "alice", "", "1"); !errors.Is(err, domain.ErrInvalidAccountID) {
		t.Fatalf("want ErrInvalidAccountID, got %v", err)
	}
}

// TestSelfTransfer 自己轉給自己：餘額不變，寫入一筆紀錄
func TestSelfTransfer(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		ctx := context.Background()
		if _, err := svc.Deposit(ctx, "alice", "5"); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Transfer(ctx, "alice", "alice", "5"); err != nil {
			t.Fatal(err)
		}
		wantBalance(t, svc, "alice", "5")
		if n := historyLen(t, svc, "alice", 5); n != 1 {
			t.Fatalf("history=%d want=1", n)
		}
	})
}

func TestRecentHistoryLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		ctx := context.Background()
		if _, err := svc.Deposit(ctx, "alice", "100"); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= 7; i++ {
			if _, err := svc.Transfer(ctx, "alice", "bob", strconv.Itoa(i)); err != nil {
				t.Fatal(err)
			}
		}
		// limit <= 0 使用預設 5 筆
		recs, err := svc.RecentHistory(ctx, "bob", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != domain.DefaultHistoryLimit {
			t.Fatalf("records=%d want=%d", len(recs), domain.DefaultHistoryLimit)
		}
		if !recs[0].Amount.Equal(decimal.NewFromInt(7)) || !recs[4].Amount.Equal(decimal.NewFromInt(3)) {
			t.Fatalf("not newest first: %s .. %s", recs[0].Amount, recs[4].Amount)
		}
		if n := historyLen(t, svc, "alice", 3); n != 3 {
			t.Fatalf("history=%d want=3", n)
		}
		// 超大的 limit 只回傳實際存在的筆數
		if n := historyLen(t, svc, "alice", math.MaxInt32); n != 7 {
			t.Fatalf("history=%d want=7", n)
		}
		if n := historyLen(t, svc, "alice", -1); n != domain.DefaultHistoryLimit {
			t.Fatalf("history=%d want=%d", n, domain.DefaultHistoryLimit)
		}
	})
}

// TestDepositIsExact 小數存款在每種 Store 上都不會有浮點誤差
func TestDepositIsExact(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		ctx := context.Background()
		for _, amount := range []string{"0.1", "0.2"} {
			if _, err := svc.Deposit(ctx, "alice", amount); err != nil {
				t.Fatal(err)
			}
		}
		got, err := svc.GetBalance(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if got.String() != "0.3" {
			t.Fatalf("balance=%s want=0.3", got)
		}
	})
}

// TestConcurrentTransfers N 個並行的 1 元轉帳不會遺失更新
func TestConcurrentTransfers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *usecase.LedgerService, _ usecase.Store) {
		const n = 50
		ctx := context.Background()
		if _, err := svc.Deposit(ctx, "A", strconv.Itoa(n)); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				if _, err := svc.Transfer(ctx, "A", "B", "1"); err != nil {
					t.Errorf("transfer: %v", err)
				}
			}()
		}
		wg.Wait()

		wantBalance(t, svc, "A", "0")
		wantBalance(t, svc, "B", strconv.Itoa(n))
		if got := historyLen(t, svc, "B", n+10); got != n {
			t.Fatalf("history=%d want=%d", got, n)
		}
		// 餘額歸零後再轉一定失敗
		if _, err := svc.Transfer(ctx, "A", "B", "1"); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("want ErrInsufficientFunds, got %v", err)
		}
	})
}

// failingStore 讓交易內的 Append 失敗，用來驗證回滾
type failingStore struct {
	usecase.Store
}

type failingLog struct {
	usecase.TransactionLog
}

var errDiskFull = errors.New("disk full")

func (failingLog) Append(context.Context, *domain.Record) error { return errDiskFull }

func (s failingStore) Atomic(ctx context.Context, fn func(usecase.AccountStore, usecase.TransactionLog) error) error {
	return s.Store.Atomic(ctx, func(accounts usecase.AccountStore, history usecase.TransactionLog) error {
		return fn(accounts, failingLog{history})
	})
}

func TestTransferRollsBackOnStorageError(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			healthy := newService(store)
			if _, err := healthy.Deposit(ctx, "alice", "50"); err != nil {
				t.Fatal(err)
			}

			broken := newService(failingStore{store})
			_, err := broken.Transfer(ctx, "alice", "bob", "20")
			if !errors.Is(err, domain.ErrStorage) || !errors.Is(err, errDiskFull) {
				t.Fatalf("want ErrStorage wrapping errDiskFull, got %v", err)
			}

			wantBalance(t, healthy, "alice", "50")
			wantBalance(t, healthy, "bob", "0")
			if n := historyLen(t, healthy, "alice", 5); n != 0 {
				t.Fatalf("history=%d want=0", n)
			}
		})
	}
}
