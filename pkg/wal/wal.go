package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 常用的權限常量
const (
	// rw-r--r--
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫)
	FileModePrivate fs.FileMode = 0600
)

// ErrFailed 寫入失敗且無法截回原本長度，WAL 拒絕後續寫入
var ErrFailed = errors.New("wal: log is in a failed state")

// logFile WAL 用到的檔案操作，*os.File 即滿足
type logFile interface {
	io.ReadWriteSeeker
	Sync() error
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Close() error
}

// WAL 以一行一筆 JSON 的方式追加寫入的檔案
//
// 結構:
//
//	file: 底層檔案
//	failed: 非 nil 時代表檔案尾端可能留有殘缺資料，不再接受寫入
type WAL struct {
	file   logFile
	mu     sync.Mutex
	failed error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟，回傳時資料已持久化
// 回傳錯誤時檔案會截回寫入前的長度，重啟後不會重播這筆資料。
func (w *WAL) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return fmt.Errorf("%w: %w", ErrFailed, w.failed)
	}

	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	// 單次 write，避免一筆資料被拆成兩段
	if _, err := w.file.Write(data); err != nil {
		return w.rollback(size, err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(size, err)
	}
	return nil
}

// rollback 截掉這次寫入的資料；截不回去時將 WAL 標記為失敗
func (w *WAL) rollback(size int64, cause error) error {
	if err := w.file.Truncate(size); err != nil {
		w.failed = errors.Join(cause, err)
		return fmt.Errorf("%w: %w", ErrFailed, w.failed)
	}
	if err := w.file.Sync(); err != nil {
		w.failed = errors.Join(cause, err)
		return fmt.Errorf("%w: %w", ErrFailed, w.failed)
	}
	return cause
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 由頭依序讀取所有資料
// callback 每次收到一筆原始 JSON，避免一次將所有資料載入記憶體。
// 最後一行若只寫了一半 (程序在 Write 中途中止)，視為未提交並截掉。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.file.Truncate(good)
			}
			return err
		}
		good = decoder.InputOffset()
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}
