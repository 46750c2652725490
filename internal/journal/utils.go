package journal

// ============================================================================
// Journal 工具函式
// 職責：讀取、驗證、輸出 journal 檔案（包含 .gz 歸檔）
// ============================================================================

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ChuLiYu/workclip/pkg/types"
)

// openReader 開啟 journal 檔案，.gz 結尾自動解壓
func openReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.file.Close()
}

// scan 逐一解碼事件並驗證 checksum
func scan(path string, fn EventHandler) error {
	r, err := openReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	decoder := json.NewDecoder(r)
	var lastSeq uint64
	for decoder.More() {
		offset := decoder.InputOffset()
		var event Event
		if err := decoder.Decode(&event); err != nil {
			return &CorruptionError{Seq: lastSeq, Offset: offset, Cause: err}
		}
		if !VerifyChecksum(event) {
			return &ChecksumError{Seq: event.Seq, Expected: CalculateChecksum(event), Actual: event.Checksum}
		}
		lastSeq = event.Seq
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func isCorruption(err error) bool {
	return errors.Is(err, ErrCorrupted) || errors.Is(err, ErrChecksumMismatch)
}

// ReadAll 讀取檔案中所有事件
func ReadAll(path string) ([]Event, error) {
	var events []Event
	err := scan(path, func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

// GetLastEvent 讀取最後一個完整事件
//
// 檔案損壞時回傳損壞前的最後一個事件以及錯誤；空檔案回傳 nil, nil
func GetLastEvent(path string) (*Event, error) {
	var last *Event
	err := scan(path, func(e Event) error {
		ev := e
		last = &ev
		return nil
	})
	return last, err
}

// Validate 驗證檔案完整性：格式、checksum、seq 嚴格遞增
func Validate(path string) error {
	var prev uint64
	var errs []error
	err := scan(path, func(e Event) error {
		if prev != 0 && e.Seq <= prev {
			errs = append(errs, fmt.Errorf("journal: seq %d after %d is not increasing", e.Seq, prev))
		}
		prev = e.Seq
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Dump 輸出人類可讀格式
//
//	[seq:1] STATE player-1 FREE -> PLAY 0.000 @ 2024-01-01T00:00:00Z (session 1c0f…)
func Dump(path string, w io.Writer) error {
	return scan(path, func(e Event) error {
		ts := time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)
		line := fmt.Sprintf("[seq:%d] %s %s", e.Seq, e.Kind, e.PlayerID)
		if e.From != "" || e.To != "" {
			line += fmt.Sprintf(" %s -> %s", e.From, e.To)
		}
		line += fmt.Sprintf(" %.3f @ %s", e.Percent, ts)
		if e.Detail != "" {
			line += " " + e.Detail
		}
		_, err := fmt.Fprintf(w, "%s (session %s)\n", line, shortSession(e.Session))
		return err
	})
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Stats journal 統計資訊
type Stats struct {
	TotalEvents int                     `json:"total_events"`
	Kinds       map[types.EventKind]int `json:"kinds"`
	Players     map[types.PlayerID]int  `json:"players"`
	Sessions    int                     `json:"sessions"`
	FirstSeq    uint64                  `json:"first_seq"`
	LastSeq     uint64                  `json:"last_seq"`
	TimeRange   [2]int64                `json:"time_range"` // [最早, 最晚] Unix ms
}

// GetStats 掃描檔案並收集統計資訊
func GetStats(path string) (*Stats, error) {
	st := &Stats{
		Kinds:   make(map[types.EventKind]int),
		Players: make(map[types.PlayerID]int),
	}
	sessions := make(map[string]struct{})
	err := scan(path, func(e Event) error {
		if st.TotalEvents == 0 {
			st.FirstSeq = e.Seq
			st.TimeRange[0] = e.Timestamp
		}
		st.TotalEvents++
		st.Kinds[e.Kind]++
		st.Players[e.PlayerID]++
		sessions[e.Session] = struct{}{}
		st.LastSeq = e.Seq
		if e.Timestamp > st.TimeRange[1] {
			st.TimeRange[1] = e.Timestamp
		}
		if e.Timestamp < st.TimeRange[0] {
			st.TimeRange[0] = e.Timestamp
		}
		return nil
	})
	st.Sessions = len(sessions)
	return st, err
}
