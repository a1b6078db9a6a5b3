package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JoeShih716/go-chat-ledger/pkg/database"
)

func TestDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := Parse([]byte("grpc:\n  addr: \":50051\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != database.DriverSQLite || cfg.Database.Path != "ledger.db" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if cfg.Storage.Backend != BackendSQL {
		t.Fatalf("backend=%q", cfg.Storage.Backend)
	}
	if cfg.Telegram.SessionTimeout != 5*time.Minute || cfg.Ledger.HistoryLimit != 5 {
		t.Fatalf("cfg=%+v", cfg)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("loc=%v err=%v", loc, err)
	}
}

func TestParseFull(t *testing.T) {
	t.Setenv(TokenEnv, "")
	data := `
log:
  level: debug
  format: text
database:
  driver: mysql
  host: db
  user: ledger
  password: secret
  db_name: ledger
  conn_max_lifetime: 10m
storage:
  backend: memory
  wal_path: /var/lib/ledger/wal.log
telegram:
  token: file-token
  session_timeout: 90s
ledger:
  timezone: UTC
  history_limit: 10
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Port != 3306 || cfg.Database.ConnMaxLifetime != 10*time.Minute {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if got := cfg.Database.DSN(); !strings.HasPrefix(got, "ledger:secret@tcp(db:3306)/ledger?") {
		t.Fatalf("dsn=%q", got)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Storage.WALPath != "/var/lib/ledger/wal.log" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
	if cfg.Telegram.Token != "file-token" || cfg.Telegram.SessionTimeout != 90*time.Second {
		t.Fatalf("telegram=%+v", cfg.Telegram)
	}
	if cfg.Ledger.HistoryLimit != 10 || cfg.Log.Level != "debug" {
		t.Fatalf("cfg=%+v", cfg)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("loc=%v err=%v", loc, err)
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	cfg, err := Parse([]byte("telegram:\n  token: file-token\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token=%q", cfg.Telegram.Token)
	}
}

func TestInvalid(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cases := map[string]string{
		"nothing to serve": "storage:\n  backend: sql\n",
		"bad backend":      "grpc:\n  addr: \":1\"\nstorage:\n  backend: redis\n",
		"bad timezone":     "grpc:\n  addr: \":1\"\nledger:\n  timezone: Mars/Olympus\n",
		"bad yaml":         "grpc: [",
		"negative limit":   "grpc:\n  addr: \":1\"\nledger:\n  history_limit: -1\n",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestZeroHistoryLimitUsesDefault(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cfg, err := Parse([]byte("grpc:\n  addr: \":1\"\nledger:\n  history_limit: 0\n"))
	if err != nil {
		t.Fatalf("history_limit 0 err=%v", err)
	}
	if cfg.Ledger.HistoryLimit != 5 {
		t.Fatalf("history_limit=%d want=5", cfg.Ledger.HistoryLimit)
	}

	_, err = Parse([]byte("grpc:\n  addr: \":1\"\nledger:\n  history_limit: -1\n"))
	if err == nil || !strings.Contains(err.Error(), "must not be negative") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(TokenEnv, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("grpc:\n  addr: \":50051\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GRPC.Addr != ":50051" {
		t.Fatalf("addr=%q", cfg.GRPC.Addr)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
