// ============================================================================
// Workclip Worker Pool - 並發 tick 執行器
// ============================================================================
//
// 每個 Step 由排程器把「一個播放器一個 tick」打包成 Task 交給 Dispatch，
// Dispatch 等到整批 Result 回來才返回（barrier），因此：
//   - 同一播放器在同一步內只會被一個 goroutine 推進（single writer）
//   - 排程器在 barrier 之後才序列化地派發事件，順序可預測
//
//   Scheduler.Step ──Dispatch([]Task)──> taskCh ──> Worker × N
//                 <──────[]Result─────── resultCh <──┘
//
// Worker 內的 panic 轉為 Result.Err，一個壞掉的 content 不會拖垮整個 Step。
// 未 Start 回傳 ErrPoolNotStarted；Stop 之後回傳 ErrPoolClosed。
// ============================================================================

package worker

import (
	"errors"
	"sync"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrPoolClosed Stop 之後不再接受 tick
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted Start 之前不能派發 tick
	ErrPoolNotStarted = errors.New("worker pool not started")
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Pool 代表 Worker 池，管理多個並發的 Worker
type Pool struct {
	workers  []*Worker      // 所有啟動的 Worker 實例
	taskCh   chan Task      // 任務通道
	resultCh chan Result    // 結果通道
	stopCh   chan struct{}  // 停止訊號
	wg       sync.WaitGroup // 等待所有 Worker 完成
	started  bool           // Pool 是否已啟動
	stopped  bool           // Pool 是否已停止
	mu       sync.Mutex     // 保護 started 和 stopped 狀態
	batchMu  sync.Mutex     // 一次只允許一個 Dispatch 批次
}

// NewPool 建立新的 Worker Pool
// 參數：
//   - bufferSize: 任務和結果通道的緩衝大小
func NewPool(bufferSize int) *Pool {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start 啟動指定數量的 Worker
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started") // 防止重複啟動
	}
	if workerCount < 1 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		worker := newWorker(i, p.taskCh, p.resultCh, p.stopCh)
		p.workers = append(p.workers, worker)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(worker)
	}

	p.started = true
	return nil
}

// Submit 提交任務到 Worker Pool
//
// Stop() 可能與 Submit() 同時發生：select 會先看到 stopCh 關閉並返回
// ErrPoolClosed。呼叫端（Scheduler）保證 Stop() 前已不再 Submit。
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	taskCh := p.taskCh
	stopCh := p.stopCh
	p.mu.Unlock()

	select {
	case taskCh <- task:
		return nil
	case <-stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult 從結果通道接收執行結果
func (p *Pool) ReceiveResult() (Result, error) {
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	}
}

// Dispatch 提交一批任務並等待全部結果（tick barrier）
//
// 提交在獨立 goroutine 中進行，因此批次大小可以超過通道緩衝。
// 結果順序與完成順序一致，不保證與 tasks 順序相同。
// Dispatch 不可與 Submit/ReceiveResult 混用。
func (p *Pool) Dispatch(tasks []Task) ([]Result, error) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	if len(tasks) == 0 {
		return nil, nil
	}

	var submitErr error
	done := make(chan int, 1) // 實際提交成功的任務數
	go func() {
		n := 0
		for _, task := range tasks {
			if err := p.Submit(task); err != nil {
				submitErr = err
				break
			}
			n++
		}
		done <- n
	}()

	results := make([]Result, 0, len(tasks))
	expected := len(tasks)
	for len(results) < expected {
		select {
		case n := <-done:
			expected = n
			done = nil
		case r, ok := <-p.resultCh:
			if !ok {
				return results, ErrPoolClosed
			}
			results = append(results, r)
		case <-p.stopCh:
			return results, ErrPoolClosed
		}
	}
	if done != nil {
		<-done
	}
	return results, submitErr
}

// Stop 優雅地關閉 Worker Pool
// 關閉流程：
//  1. 設定 stopped 標誌
//  2. 關閉 stopCh，通知所有 Worker 停止
//  3. 關閉 taskCh，結束 Worker 的 range 循環
//  4. 等待所有 Worker 完成當前任務
//  5. 關閉 resultCh
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	close(p.taskCh)

	p.wg.Wait()

	close(p.resultCh)
}

// GetWorkerCount 返回當前 Worker 數量
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted 檢查 Pool 是否已啟動
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
