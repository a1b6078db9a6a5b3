package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-chat-ledger/pkg/database"
	"github.com/JoeShih716/go-chat-ledger/pkg/logger"
)

// 帳本儲存方式
const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// TokenEnv 優先於設定檔的 Telegram token 環境變數
const TokenEnv = "TELEGRAM_BOT_TOKEN"

type Config struct {
	Log      logger.Config   `yaml:"log"`
	Database database.Config `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	GRPC     GRPCConfig      `yaml:"grpc"`
	Telegram TelegramConfig  `yaml:"telegram"`
	Ledger   LedgerConfig    `yaml:"ledger"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`  // "sql" (預設) 或 "memory"
	WALPath string `yaml:"wal_path"` // memory backend 使用的 WAL 檔
}

type GRPCConfig struct {
	Addr string `yaml:"addr"` // 空字串代表不啟動
}

type TelegramConfig struct {
	Token          string        `yaml:"token"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	PollTimeout    int           `yaml:"poll_timeout"` // 秒
}

type LedgerConfig struct {
	// Timezone 交易時間使用的 IANA 時區，空字串為本地時間
	Timezone     string `yaml:"timezone"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Load 讀取 YAML 設定檔並補上預設值
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 並補上預設值
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Telegram.Token = token
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults 補全預設配置 (如果 yaml 沒寫)
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverSQLite
	}
	if c.Database.Driver == database.DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "ledger.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQL
	}
	if c.Storage.WALPath == "" {
		c.Storage.WALPath = "wal.log"
	}
	if c.Telegram.SessionTimeout == 0 {
		c.Telegram.SessionTimeout = 5 * time.Minute
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Ledger.HistoryLimit == 0 {
		c.Ledger.HistoryLimit = domain.DefaultHistoryLimit
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQL, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Ledger.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Telegram.Token == "" && c.GRPC.Addr == "" {
		return fmt.Errorf("nothing to serve: set telegram.token (or %s) or grpc.addr", TokenEnv)
	}
	return nil
}

// Location 回傳交易時間使用的時區
func (c *Config) Location() (*time.Location, error) {
	if c.Ledger.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger timezone: %w", err)
	}
	return loc, nil
}
