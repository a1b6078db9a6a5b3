package grpc

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/JoeShih716/go-chat-ledger/api/ledgerv1"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
	pkggrpc "github.com/JoeShih716/go-chat-ledger/pkg/grpc"
)

// newTestClient 以 bufconn 啟動 server，回傳經由 Pool 建立的 client
func newTestClient(t *testing.T) *pb.LedgerServiceClient {
	t.Helper()
	store, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := usecase.NewLedgerService(store, usecase.WithLogger(logger))

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	pool := pkggrpc.NewPool(
		pkggrpc.WithLogger(logger),
		pkggrpc.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	t.Cleanup(func() { _ = pool.Close() })

	conn, err := pool.GetConnection("passthrough:///bufnet")
	if err != nil {
		t.Fatal(err)
	}
	return pb.NewLedgerServiceClient(conn)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestTransferFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := testContext(t)

	bal, err := c.GetBalance(ctx, &pb.GetBalanceRequest{AccountID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if bal.Balance != "0" {
		t.Fatalf("balance=%q want=0", bal.Balance)
	}

	dep, err := c.Deposit(ctx, &pb.DepositRequest{AccountID: "alice", Amount: "50"})
	if err != nil {
		t.Fatal(err)
	}
	if !dep.Success || dep.Balance != "50" {
		t.Fatalf("deposit=%+v", dep)
	}

	tr, err := c.Transfer(ctx, &pb.TransferRequest{FromAccountID: "alice", ToAccountID: "bob", Amount: "20"})
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Success || tr.Amount != "20" {
		t.Fatalf("transfer=%+v", tr)
	}

	hist, err := c.RecentHistory(ctx, &pb.RecentHistoryRequest{AccountID: "bob", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Records) != 1 {
		t.Fatalf("records=%d want=1", len(hist.Records))
	}
	r := hist.Records[0]
	if r.FromAccountID != "alice" || r.ToAccountID != "bob" || r.Amount != "20" || r.RefID == "" {
		t.Fatalf("record=%+v", r)
	}

	wide, err := c.RecentHistory(ctx, &pb.RecentHistoryRequest{AccountID: "bob", Limit: math.MaxInt32})
	if err != nil {
		t.Fatal(err)
	}
	if len(wide.Records) != 1 {
		t.Fatalf("records=%d want=1", len(wide.Records))
	}
}

func TestSoftFailures(t *testing.T) {
	c := newTestClient(t)
	ctx := testContext(t)

	dep, err := c.Deposit(ctx, &pb.DepositRequest{AccountID: "alice", Amount: "-5"})
	if err != nil {
		t.Fatal(err)
	}
	if dep.Success || dep.Code != pb.CodeInvalidAmount {
		t.Fatalf("deposit=%+v", dep)
	}

	tr, err := c.Transfer(ctx, &pb.TransferRequest{FromAccountID: "alice", ToAccountID: "bob", Amount: "1000"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Success || tr.Code != pb.CodeInsufficientFunds {
		t.Fatalf("transfer=%+v", tr)
	}

	tr, err = c.Transfer(ctx, &pb.TransferRequest{FromAccountID: "alice", ToAccountID: " ", Amount: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Success || tr.Code != pb.CodeInvalidAccount {
		t.Fatalf("transfer=%+v", tr)
	}

	_, err = c.GetBalance(ctx, &pb.GetBalanceRequest{AccountID: ""})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

// TestConcurrentTransfersOverRPC 並行透過 RPC 轉帳，總額一致
func TestConcurrentTransfersOverRPC(t *testing.T) {
	c := newTestClient(t)
	ctx := testContext(t)
	const n = 40

	if _, err := c.Deposit(ctx, &pb.DepositRequest{AccountID: "A", Amount: "40"}); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			resp, err := c.Transfer(ctx, &pb.TransferRequest{FromAccountID: "A", ToAccountID: "B", Amount: "1"})
			if err != nil || !resp.Success {
				t.Errorf("transfer resp=%+v err=%v", resp, err)
			}
		}()
	}
	wg.Wait()

	for id, want := range map[string]string{"A": "0", "B": "40"} {
		bal, err := c.GetBalance(ctx, &pb.GetBalanceRequest{AccountID: id})
		if err != nil {
			t.Fatal(err)
		}
		if bal.Balance != want {
			t.Fatalf("%s=%q want=%q", id, bal.Balance, want)
		}
	}
}
