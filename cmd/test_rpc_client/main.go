package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	pb "github.com/JoeShih716/go-chat-ledger/api/ledgerv1"
	"github.com/JoeShih716/go-chat-ledger/pkg/grpc"
)

// 對執行中的 server 做並行轉帳檢查：
// 先存入 count 到 A，再並行送出 count 筆 A -> B 的 1 元轉帳，
// 結束後 A 應回到原本餘額、B 增加 count，且紀錄筆數吻合。
func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	count := flag.Int("count", 1000, "number of unit transfers")
	concurrency := flag.Int("concurrency", 100, "max in-flight requests")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pool := grpc.NewPool(grpc.WithLogger(log))
	defer pool.Close()

	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Error("did not connect", slog.Any("error", err))
		os.Exit(1)
	}
	c := pb.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	// 每次執行使用新的帳戶，避免受前一次影響
	run := uuid.NewString()[:8]
	from, to := "load-a-"+run, "load-b-"+run

	dep, err := c.Deposit(ctx, &pb.DepositRequest{AccountID: from, Amount: strconv.Itoa(*count)})
	if err != nil || !dep.Success {
		log.Error("deposit failed", slog.Any("resp", dep), slog.Any("error", err))
		os.Exit(1)
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	startTime := time.Now()

	for i := 0; i < *count; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := c.Transfer(ctx, &pb.TransferRequest{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        "1",
			})
			if err != nil || !resp.Success {
				failed.Add(1)
				if idx%100 == 0 {
					log.Warn("transfer failed", slog.Int("idx", idx), slog.Any("resp", resp), slog.Any("error", err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	fromBal, err := c.GetBalance(ctx, &pb.GetBalanceRequest{AccountID: from})
	if err != nil {
		log.Error("get balance failed", slog.Any("error", err))
		os.Exit(1)
	}
	toBal, err := c.GetBalance(ctx, &pb.GetBalanceRequest{AccountID: to})
	if err != nil {
		log.Error("get balance failed", slog.Any("error", err))
		os.Exit(1)
	}
	hist, err := c.RecentHistory(ctx, &pb.RecentHistoryRequest{AccountID: to, Limit: int32(*count)})
	if err != nil {
		log.Error("recent history failed", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("Completed %d transfers in %v (%d failed)\n", *count, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*count)/elapsed.Seconds())
	fmt.Printf("%s balance: %s (want 0)\n", from, fromBal.Balance)
	fmt.Printf("%s balance: %s (want %d)\n", to, toBal.Balance, *count)
	fmt.Printf("history records: %d (want %d)\n", len(hist.Records), *count)

	if failed.Load() > 0 || fromBal.Balance != "0" || toBal.Balance != strconv.Itoa(*count) || len(hist.Records) != *count {
		os.Exit(1)
	}
}
