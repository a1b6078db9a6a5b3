package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/JoeShih716/go-chat-ledger/api/ledgerv1"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
)

// Ledger 是 gRPC adapter 需要的核心操作
type Ledger interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, accountID, amountText string) (decimal.Decimal, error)
	Transfer(ctx context.Context, senderID, recipientID, amountText string) (decimal.Decimal, error)
	RecentHistory(ctx context.Context, accountID string, limit int) ([]domain.Record, error)
}

var _ Ledger = (*usecase.LedgerService)(nil)

type GrpcServer struct {
	pb.UnimplementedLedgerServiceServer
	core Ledger
}

func NewGrpcServer(core Ledger) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// softFailure 將業務錯誤轉成回應內的代碼；不是業務錯誤時回傳 false
func softFailure(err error) (code string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return pb.CodeInvalidAmount, true
	case errors.Is(err, domain.ErrInsufficientFunds):
		return pb.CodeInsufficientFunds, true
	case errors.Is(err, domain.ErrInvalidAccountID):
		return pb.CodeInvalidAccount, true
	}
	return "", false
}

// toStatus 非業務錯誤一律視為 Internal
func toStatus(err error) error {
	if errors.Is(err, domain.ErrInvalidAccountID) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *pb.GetBalanceRequest) (*pb.GetBalanceResponse, error) {
	balance, err := s.core.GetBalance(ctx, req.AccountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetBalanceResponse{
		Balance: balance.String(),
	}, nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *pb.DepositRequest) (*pb.DepositResponse, error) {
	balance, err := s.core.Deposit(ctx, req.AccountID, req.Amount)
	if err != nil {
		if code, ok := softFailure(err); ok {
			return &pb.DepositResponse{
				Success: false,
				Code:    code,
				Message: err.Error(),
			}, nil
		}
		return nil, toStatus(err)
	}
	return &pb.DepositResponse{
		Success: true,
		Balance: balance.String(),
	}, nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *pb.TransferRequest) (*pb.TransferResponse, error) {
	amount, err := s.core.Transfer(ctx, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		// 業務邏輯錯誤，回傳 Success=false (Soft Failure)
		if code, ok := softFailure(err); ok {
			return &pb.TransferResponse{
				Success: false,
				Code:    code,
				Message: err.Error(),
			}, nil
		}
		return nil, toStatus(err)
	}
	return &pb.TransferResponse{
		Success: true,
		Amount:  amount.String(),
	}, nil
}

func (s *GrpcServer) RecentHistory(ctx context.Context, req *pb.RecentHistoryRequest) (*pb.RecentHistoryResponse, error) {
	records, err := s.core.RecentHistory(ctx, req.AccountID, int(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.RecentHistoryResponse{
		Records: make([]pb.Record, 0, len(records)),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, pb.Record{
			RefID:         r.RefID.String(),
			FromAccountID: r.Sender,
			ToAccountID:   r.Recipient,
			Amount:        r.Amount.String(),
			Timestamp:     r.Timestamp,
		})
	}
	return resp, nil
}

// LoggingInterceptor 記錄每個 RPC 的方法、耗時與錯誤
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(attrs, slog.String("code", status.Code(err).String()), slog.Any("error", err))...)
		} else {
			logger.Debug("rpc served", attrs...)
		}
		return resp, err
	}
}

// NewServer 建立已註冊 LedgerService 的 grpc.Server
func NewServer(core Ledger, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	pb.RegisterLedgerServiceServer(s, NewGrpcServer(core))
	return s
}
