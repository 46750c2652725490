package journal

// ============================================================================
// Journal 核心實作
// 職責：
// 1. 追加播放事件到日誌檔案（append-only，JSON lines）
// 2. 提供重放功能，從快照的 LastSeq 之後恢復播放器位置
// 3. 支援日誌旋轉（快照後歸檔並壓縮）
// 4. 批次寫入：緩衝區滿或超過 flush 間隔才寫入磁碟
// ============================================================================

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileInterface 定義檔案操作所需的方法
type FileInterface interface {
	Write(p []byte) (n int, err error)
	Sync() error
	Close() error
}

// Options 控制批次寫入行為
type Options struct {
	BufferSize    int           // 緩衝事件數，<=1 表示每次 Append 都寫入
	FlushInterval time.Duration // 距上次 flush 超過此時間則寫入
	SyncOnFlush   bool          // flush 時是否 fsync
}

// DefaultOptions 預設批次設定
func DefaultOptions() Options {
	return Options{
		BufferSize:    256,
		FlushInterval: time.Second,
		SyncOnFlush:   true,
	}
}

// Journal 表示一個播放事件日誌
type Journal struct {
	mu      sync.Mutex
	file    FileInterface
	encoder *json.Encoder
	path    string
	seq     uint64
	session string
	opts    Options
	closed  bool

	buffer        []Event
	lastFlushTime time.Time
}

// Open 建立或開啟一個 journal
//
// 行為：
// - 如果檔案不存在，建立新檔案，seq 從 0 開始
// - 如果檔案已存在，讀取最後一個事件的 seq 並繼續
// - 每次開啟產生新的 session ID
func Open(path string, opts Options) (*Journal, error) {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	var seq uint64
	if stat, statErr := file.Stat(); statErr == nil && stat.Size() > 0 {
		// 損壞的尾部不阻止開啟：seq 從最後一個完整事件繼續
		if last, err := GetLastEvent(path); last != nil {
			seq = last.Seq
		} else if err != nil && !isCorruption(err) {
			file.Close()
			return nil, err
		}
	}

	return &Journal{
		file:          file,
		encoder:       json.NewEncoder(file),
		path:          path,
		seq:           seq,
		session:       uuid.NewString(),
		opts:          opts,
		buffer:        make([]Event, 0, opts.BufferSize),
		lastFlushTime: time.Now(),
	}, nil
}

// Path 回傳 journal 檔案路徑
func (j *Journal) Path() string { return j.path }

// Session 回傳本次開啟的 session ID
func (j *Journal) Session() string { return j.session }

// Append 追加一個事件
//
// 行為：
// - 自動遞增 seq，填入 session、timestamp、checksum
// - 加入緩衝，滿了或超時才 flush（force=true 立即 flush）
//
// 回傳：事件的 seq
func (j *Journal) Append(event Event, force bool) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}

	j.seq++
	event.Seq = j.seq
	event.Session = j.session
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	event.Checksum = CalculateChecksum(event)
	j.buffer = append(j.buffer, event)

	if force || len(j.buffer) >= j.opts.BufferSize || time.Since(j.lastFlushTime) > j.opts.FlushInterval {
		return event.Seq, j.flushLocked()
	}
	return event.Seq, nil
}

// Flush 將緩衝事件寫入磁碟
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.flushLocked()
}

// Replay 重放所有事件
func (j *Journal) Replay(handler EventHandler) error {
	return j.ReplayAfter(0, handler)
}

// ReplayAfter 重放 seq > after 的事件
//
// 行為：
// - 先 flush 緩衝，確保讀到所有事件
// - 驗證每個事件的 checksum
// - handler 回傳錯誤立即停止
func (j *Journal) ReplayAfter(after uint64, handler EventHandler) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if err := j.flushLocked(); err != nil {
		return err
	}
	return scan(j.path, func(event Event) error {
		if event.Seq <= after {
			return nil
		}
		return handler(event)
	})
}

// Rotate 旋轉日誌檔案
//
// 舊檔案重新命名並以 gzip 壓縮歸檔，seq 繼續遞增（快照的 LastSeq 仍有效）
//
// 回傳：歸檔檔案路徑
func (j *Journal) Rotate() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return "", ErrClosed
	}
	if err := j.flushLocked(); err != nil {
		return "", err
	}
	if err := j.file.Close(); err != nil {
		return "", err
	}

	backupPath := j.path + "." + time.Now().Format("20060102_150405.000000")
	if err := os.Rename(j.path, backupPath); err != nil {
		return "", err
	}

	newFile, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}
	j.file = newFile
	j.encoder = json.NewEncoder(newFile)
	j.lastFlushTime = time.Now()

	archive := backupPath + ".gz"
	if err := compressFile(backupPath, archive); err != nil {
		return backupPath, nil
	}
	os.Remove(backupPath)
	return archive, nil
}

// Close 關閉 journal，之後的操作回傳 ErrClosed
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if err := j.flushLocked(); err != nil {
		return err
	}
	j.closed = true
	return j.file.Close()
}

// GetLastSeq 取得當前的事件序號
//
// 用途：快照時記錄 last_seq，恢復時從此之後重放
func (j *Journal) GetLastSeq() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// AdvanceSeq 確保後續事件的 seq 大於 seq
//
// 用途：旋轉後的新檔案是空的，重新開啟時從快照的 LastSeq 繼續編號
func (j *Journal) AdvanceSeq(seq uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if seq > j.seq {
		j.seq = seq
	}
}

// flushLocked 假設調用者已經持有 j.mu 鎖
func (j *Journal) flushLocked() error {
	for _, event := range j.buffer {
		if err := j.encoder.Encode(event); err != nil {
			return err
		}
	}
	j.buffer = j.buffer[:0]
	j.lastFlushTime = time.Now()
	if j.opts.SyncOnFlush {
		return j.file.Sync()
	}
	return nil
}

// compressFile 以 gzip 壓縮 srcPath 到 dstPath
func compressFile(srcPath, dstPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	gzipWriter := gzip.NewWriter(dstFile)
	if _, err := io.Copy(gzipWriter, srcFile); err != nil {
		gzipWriter.Close()
		return err
	}
	return gzipWriter.Close()
}
