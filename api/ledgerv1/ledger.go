// Package ledgerv1 定義 ledger.v1.LedgerService 的 gRPC 合約。
//
// 訊息以 JSON 編碼 (content-subtype "json")，不需要產生 protobuf 程式碼；
// 伺服端以 RegisterLedgerServiceServer 註冊，客戶端使用 NewLedgerServiceClient。
package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "ledger.v1.LedgerService"

	GetBalanceFullMethod    = "/" + ServiceName + "/GetBalance"
	DepositFullMethod       = "/" + ServiceName + "/Deposit"
	TransferFullMethod      = "/" + ServiceName + "/Transfer"
	RecentHistoryFullMethod = "/" + ServiceName + "/RecentHistory"
)

// 業務錯誤代碼 (Soft Failure)
const (
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInvalidAccount    = "INVALID_ACCOUNT"
)

type GetBalanceRequest struct {
	AccountID string `json:"account_id"`
}

type GetBalanceResponse struct {
	Balance string `json:"balance"`
}

type DepositRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

type DepositResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Balance string `json:"balance,omitempty"`
}

type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
}

type TransferResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	// Amount: 實際轉出的金額
	Amount string `json:"amount,omitempty"`
}

type RecentHistoryRequest struct {
	AccountID string `json:"account_id"`
	Limit     int32  `json:"limit"`
}

type Record struct {
	RefID         string `json:"ref_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Timestamp     string `json:"timestamp"`
}

type RecentHistoryResponse struct {
	Records []Record `json:"records"`
}

// LedgerServiceServer 伺服端介面
type LedgerServiceServer interface {
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	Deposit(context.Context, *DepositRequest) (*DepositResponse, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	RecentHistory(context.Context, *RecentHistoryRequest) (*RecentHistoryResponse, error)
}

// UnimplementedLedgerServiceServer 嵌入後未實作的方法回傳 codes.Unimplemented
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedLedgerServiceServer) Deposit(context.Context, *DepositRequest) (*DepositResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Deposit not implemented")
}

func (UnimplementedLedgerServiceServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}

func (UnimplementedLedgerServiceServer) RecentHistory(context.Context, *RecentHistoryRequest) (*RecentHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecentHistory not implemented")
}

// RegisterLedgerServiceServer 將實作註冊到 grpc.Server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unaryHandler 產生單一 RPC 的 grpc.MethodHandler
func unaryHandler[Req any, Resp any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerService_ServiceDesc ledger.v1.LedgerService 的服務描述
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(GetBalanceFullMethod, LedgerServiceServer.GetBalance),
		},
		{
			MethodName: "Deposit",
			Handler:    unaryHandler(DepositFullMethod, LedgerServiceServer.Deposit),
		},
		{
			MethodName: "Transfer",
			Handler:    unaryHandler(TransferFullMethod, LedgerServiceServer.Transfer),
		},
		{
			MethodName: "RecentHistory",
			Handler:    unaryHandler(RecentHistoryFullMethod, LedgerServiceServer.RecentHistory),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger",
}

// LedgerServiceClient 客戶端
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

// callOptions 強制使用 JSON codec
func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.cc.Invoke(ctx, GetBalanceFullMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error) {
	out := new(DepositResponse)
	if err := c.cc.Invoke(ctx, DepositFullMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	out := new(TransferResponse)
	if err := c.cc.Invoke(ctx, TransferFullMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) RecentHistory(ctx context.Context, in *RecentHistoryRequest, opts ...grpc.CallOption) (*RecentHistoryResponse, error) {
	out := new(RecentHistoryResponse)
	if err := c.cc.Invoke(ctx, RecentHistoryFullMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
