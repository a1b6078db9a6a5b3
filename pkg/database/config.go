package database

import (
	"fmt"
	"time"
)

// 支援的 Driver
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver string `yaml:"driver"` // "sqlite" (預設) 或 "mysql"

	// SQLite 設定
	Path string `yaml:"path"` // 資料庫檔案路徑

	// MySQL 設定
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// GORM Log 等級: "silent", "error", "warn", "info"
	LogLevel string `yaml:"log_level"`
}

// DSN (Data Source Name) 產生連線字串
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		// user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User,
			c.Password,
			c.Host,
			c.Port,
			c.DBName,
		)
	default:
		// 開啟 WAL 模式並設定 busy timeout，避免寫入時立即回傳 SQLITE_BUSY
		return c.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
}
