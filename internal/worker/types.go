package worker

import (
	"time"

	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/pkg/types"
)

// Ticker 是可以被 Worker 推進的播放器（*timeline.Player 實作此介面）
type Ticker interface {
	Tick(dt float64)
	State() timeline.PlayerState
	Percent() float64
	Elapsed() float64
}

// Task 代表一次 tick：把 Target 推進 Delta 秒
type Task struct {
	PlayerID types.PlayerID // 播放器唯一識別碼
	Target   Ticker         // 要推進的播放器
	Delta    float64        // 本次 tick 的秒數（已乘上 time scale）
}

// Result 代表 tick 執行結果
type Result struct {
	PlayerID types.PlayerID       // 播放器 ID
	State    timeline.PlayerState // tick 之後的狀態
	Percent  float64              // tick 之後的進度
	Elapsed  float64              // tick 之後的已播放秒數
	Error    error                // panic 轉換成的錯誤（如果有）
	Duration time.Duration        // 實際執行時間
}
