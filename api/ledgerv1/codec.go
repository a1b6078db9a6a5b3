package ledgerv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName 註冊到 gRPC 的 codec 名稱，也是 content-subtype
const CodecName = "json"

// jsonCodec 以 encoding/json 編碼 gRPC 訊息
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
