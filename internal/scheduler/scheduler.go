// ============================================================================
// Workclip 排程器 - 播放器生命週期協調器
// ============================================================================
//
// Package: internal/scheduler
// 文件: scheduler.go
// 功能: 擁有所有播放器，驅動 tick、記錄 journal、定期快照、崩潰恢復
//
// 架構設計:
//   - Pool: 每個 tick 把需要推進的播放器分派給 worker（一個播放器一個 task）
//   - Journal: 追加所有狀態轉換、活躍片段變化、完成、觸發事件
//   - Snapshot: 定期保存所有播放器位置，加速恢復
//   - Metrics: Prometheus 指標（可選）
//
// 核心循環 (2 個 Goroutine):
//   1. Tick Loop - 每個 tick_interval 呼叫 Step(dt)
//   2. Snapshot Loop - 定期快照並旋轉 journal
//
// 單一寫者:
//   - 一個播放器在同一時間只由一個 goroutine 驅動
//   - Step 持有 mu 直到 barrier 完成，控制 API 也持有 mu
//   - tick 期間產生的事件先寫入各播放器自己的緩衝
//   - barrier 之後依 PlayerID 排序串行分發給 journal、metrics、訂閱者
//
// 崩潰恢復流程:
//   1. 載入快照（位置 + LastSeq）
//   2. 重放 LastSeq 之後的 journal 事件，更新位置
//   3. 已註冊的播放器回到記錄的位置；原本在播放的繼續播放
//
// ============================================================================

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChuLiYu/workclip/internal/effects"
	"github.com/ChuLiYu/workclip/internal/journal"
	"github.com/ChuLiYu/workclip/internal/metrics"
	"github.com/ChuLiYu/workclip/internal/snapshot"
	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/internal/worker"
	"github.com/ChuLiYu/workclip/pkg/types"
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Config Scheduler 配置
type Config struct {
	Workers          int             // Worker 數量
	TickInterval     time.Duration   // tick 間隔，<=0 表示不啟動 tick loop（Start 之後手動 Step）
	TimeScale        float64         // 每次 tick 的 dt 乘數，0 表示 1
	SnapshotInterval time.Duration   // 快照間隔，<=0 表示只在 Stop 時快照
	KeepBackups      int             // 保留的快照備份數
	JournalPath      string          // journal 路徑，空字串表示不記錄
	JournalOptions   journal.Options // journal 批次設定
	SnapshotPath     string          // 快照路徑，空字串表示不快照
}

// EventFunc 接收分發後的事件（已分配 seq）
//
// 在 Scheduler 的鎖內被呼叫，不可回呼 Scheduler。
type EventFunc func(journal.Event)

// Option 設定 Scheduler 的可選依賴
type Option func(*Scheduler)

// WithMetrics 啟用 Prometheus 指標
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = c }
}

// WithLogger 替換 component logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// entry 一個已註冊的播放器
type entry struct {
	id       types.PlayerID
	player   *timeline.Player
	observer *timeline.Observers
	triggers []*effects.Trigger
	pending  []journal.Event // 由驅動該播放器的 goroutine 寫入
}

// Scheduler 播放器排程器
type Scheduler struct {
	mu        sync.Mutex
	entries   map[types.PlayerID]*entry
	journal   *journal.Journal
	snapshot  *snapshot.Manager
	restored  types.SnapshotData // New 時載入，Start 時套用
	pool      *worker.Pool
	metrics   *metrics.Collector
	config    Config
	log       zerolog.Logger
	listeners map[int]EventFunc
	nextID    int

	ticks     uint64
	seq       uint64 // 沒有 journal 時的本地事件序號
	started   bool
	running   bool // worker pool 已啟動，可以 Step
	stopped   bool
	startTime time.Time
	lastTick  time.Time
	stopCh    chan struct{}
	loopWg    sync.WaitGroup
}

// ============================================================================
// 核心方法實作
// ============================================================================

// New 建立 Scheduler，開啟 journal（若有設定）
func New(config Config, opts ...Option) (*Scheduler, error) {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.TimeScale == 0 {
		config.TimeScale = 1
	}
	s := &Scheduler{
		entries:   make(map[types.PlayerID]*entry),
		pool:      worker.NewPool(config.Workers * 2),
		config:    config,
		log:       log.With().Str("component", "scheduler").Logger(),
		listeners: make(map[int]EventFunc),
		stopCh:    make(chan struct{}),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.JournalPath != "" {
		jopts := config.JournalOptions
		if jopts == (journal.Options{}) {
			jopts = journal.DefaultOptions()
		}
		j, err := journal.Open(config.JournalPath, jopts)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = j
	}
	if config.SnapshotPath != "" {
		s.snapshot = snapshot.NewManager(config.SnapshotPath)
		data, err := s.snapshot.Load()
		if err != nil {
			if s.journal != nil {
				s.journal.Close()
			}
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		s.restored = data
		// 旋轉後的 journal 是空的：seq 從快照的 LastSeq 繼續
		if s.journal != nil {
			s.journal.AdvanceSeq(data.LastSeq)
		}
	}
	return s, nil
}

// Subscribe 註冊事件訂閱者，回傳取消函式
func (s *Scheduler) Subscribe(fn EventFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Add 註冊播放器並進入（Enter）它
//
// id 為空時分配 uuid。triggers 的觸發事件會被記錄為 TRIGGER。
// 播放器此後只能經由 Scheduler 驅動。
func (s *Scheduler) Add(id types.PlayerID, p *timeline.Player, triggers ...*effects.Trigger) (types.PlayerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return "", ErrStopped
	}
	if id == "" {
		id = types.PlayerID(uuid.NewString())
	}
	if _, exists := s.entries[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}

	e := &entry{id: id, player: p, observer: timeline.NewObservers(), triggers: triggers}
	e.observer.OnPlayerStateChanged(e.onState)
	e.observer.OnContentElementChanged(e.onContent)
	p.SetObservers(e.observer)
	if c, ok := p.Content().(*timeline.WorkClipContainer); ok {
		attachContainers(c, e.observer)
	}
	for _, tr := range triggers {
		tr.OnFire(e.onTrigger)
	}
	s.entries[id] = e

	if p.State() == timeline.StateInit {
		p.Enter()
	}
	s.drainLocked(e)

	s.log.Info().Str("player", string(id)).Str("state", p.State().String()).Msg("player added")
	return id, nil
}

// Remove 讓播放器離開（Exit）並取消註冊
func (s *Scheduler) Remove(id types.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	e.player.Exit()
	s.drainLocked(e)

	e.player.SetObservers(nil)
	if c, ok := e.player.Content().(*timeline.WorkClipContainer); ok {
		attachContainers(c, nil)
	}
	for _, tr := range e.triggers {
		tr.OnFire(nil)
	}
	delete(s.entries, id)
	s.log.Info().Str("player", string(id)).Msg("player removed")
	return nil
}

// Start 執行恢復並啟動 worker pool 與核心循環
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler: already started")
	}
	s.started = true
	s.mu.Unlock()

	start := time.Now()
	s.log.Info().Msg("Starting recovery...")
	restored, err := s.recover()
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	recoveryTime := time.Since(start)
	if s.metrics != nil {
		s.metrics.SetRecoveryTime(recoveryTime.Seconds())
	}
	s.log.Info().Dur("duration", recoveryTime).Int("restored_players", restored).Msg("Recovery completed")

	if err := s.pool.Start(s.config.Workers); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	s.mu.Lock()
	s.startTime = time.Now()
	s.lastTick = s.startTime
	s.running = true
	s.mu.Unlock()

	if s.config.TickInterval > 0 {
		s.loopWg.Add(1)
		go s.tickLoop(ctx)
	}
	if s.config.SnapshotInterval > 0 && s.snapshot != nil {
		s.loopWg.Add(1)
		go s.snapshotLoop(ctx)
	}

	s.log.Info().Int("workers", s.config.Workers).Dur("tick_interval", s.config.TickInterval).Msg("Scheduler started")
	return nil
}

// Step 推進所有活動中的播放器 dt 秒（乘上 TimeScale）
//
// 必須在 Start 完成之後呼叫（恢復先於第一個 tick），否則回傳 ErrNotStarted。
//
// 流程：
//  1. 收集需要 tick 的播放器（PLAY / PLAYING / FINISHED / STOP）
//  2. Pool.Dispatch 並等待 barrier
//  3. 依 PlayerID 順序分發緩衝事件
func (s *Scheduler) Step(dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if !s.running {
		return ErrNotStarted
	}
	start := time.Now()
	delta := dt * s.config.TimeScale

	var tasks []worker.Task
	for _, id := range s.sortedIDsLocked() {
		e := s.entries[id]
		if needsTick(e.player.State()) {
			tasks = append(tasks, worker.Task{PlayerID: id, Target: e.player, Delta: delta})
		}
	}

	results, err := s.pool.Dispatch(tasks)
	for _, r := range results {
		if r.Error != nil {
			s.log.Error().Err(r.Error).Str("player", string(r.PlayerID)).Msg("player tick failed")
			if s.metrics != nil {
				s.metrics.RecordTickError()
			}
		}
	}
	s.drainAllLocked()
	s.ticks++

	if s.metrics != nil {
		s.metrics.RecordTick(time.Since(start).Seconds())
		s.metrics.UpdatePlayerStats(s.countByStateLocked())
	}
	return err
}

// Stop 優雅關閉 Scheduler（可重複呼叫）
//
// 關閉順序：
//  1. close(stopCh) → 通知循環停止
//  2. loopWg.Wait() → 等待循環退出（tick loop 不再呼叫 Dispatch）
//  3. pool.Stop()   → 關閉 worker
//  4. 最後一次快照 + 旋轉 journal
//  5. 關閉 journal
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.log.Info().Msg("Scheduler already stopped")
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.log.Info().Msg("Stopping scheduler...")
	close(s.stopCh)
	s.loopWg.Wait()
	s.pool.Stop()

	if s.snapshot != nil {
		if err := s.takeSnapshot(); err != nil {
			s.log.Error().Err(err).Msg("Failed to take final snapshot")
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.log.Error().Err(err).Msg("Failed to close journal")
		}
	}
	s.log.Info().Msg("Scheduler stopped")
}

// ============================================================================
// 核心循環
// ============================================================================

// tickLoop 以牆上時間驅動 Step
func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.loopWg.Done()
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.stopCh:
			s.log.Info().Msg("Tick loop stopped")
			return
		case <-ctx.Done():
			s.log.Info().Msg("Tick loop stopped (context)")
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := s.Step(dt); err != nil {
				if errors.Is(err, ErrStopped) || errors.Is(err, worker.ErrPoolClosed) {
					return
				}
				s.log.Error().Err(err).Msg("Step failed")
			}
		}
	}
}

// snapshotLoop 定期生成快照
func (s *Scheduler) snapshotLoop(ctx context.Context) {
	defer s.loopWg.Done()
	ticker := time.NewTicker(s.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.log.Info().Msg("Snapshot loop stopped")
			return
		case <-ctx.Done():
			s.log.Info().Msg("Snapshot loop stopped (context)")
			return
		case <-ticker.C:
			if err := s.takeSnapshot(); err != nil {
				s.log.Error().Err(err).Msg("Failed to take snapshot")
			}
		}
	}
}

// TakeSnapshot 立即快照並旋轉 journal
func (s *Scheduler) TakeSnapshot() error {
	if s.snapshot == nil {
		return errors.New("scheduler: no snapshot path configured")
	}
	return s.takeSnapshot()
}

// takeSnapshot 寫入快照後旋轉 journal
//
// 在鎖內取得位置與 LastSeq，保證快照與 journal 一致。
func (s *Scheduler) takeSnapshot() error {
	start := time.Now()

	s.mu.Lock()
	data := types.SnapshotData{Players: make(map[types.PlayerID]*types.PlayerSnapshot, len(s.entries))}
	now := time.Now().UnixMilli()
	for id, e := range s.entries {
		data.Players[id] = &types.PlayerSnapshot{
			ID:        id,
			State:     e.player.State().String(),
			Elapsed:   e.player.Elapsed(),
			Percent:   e.player.Percent(),
			UpdatedAt: now,
		}
	}
	data.LastSeq = s.journal.GetLastSeq()

	var err error
	if s.config.KeepBackups > 0 {
		err = s.snapshot.WriteWithBackup(data, s.config.KeepBackups)
	} else {
		err = s.snapshot.Write(data)
	}
	if err == nil && s.journal != nil {
		if _, rerr := s.journal.Rotate(); rerr != nil && !errors.Is(rerr, journal.ErrClosed) {
			err = fmt.Errorf("failed to rotate journal: %w", rerr)
		}
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.log.Debug().Dur("duration", time.Since(start)).Int("players", len(data.Players)).Uint64("last_seq", data.LastSeq).Msg("Snapshot taken")
	return nil
}

// ============================================================================
// 事件分發
// ============================================================================

func needsTick(st timeline.PlayerState) bool {
	switch st {
	case timeline.StatePlay, timeline.StatePlaying, timeline.StateFinished, timeline.StateStop:
		return true
	}
	return false
}

func (e *entry) onState(p *timeline.Player, from, to timeline.PlayerState) {
	ev := journal.Event{
		Kind:      types.EventState,
		PlayerID:  e.id,
		From:      from.String(),
		To:        to.String(),
		Percent:   p.Percent(),
		Elapsed:   p.Elapsed(),
		Timestamp: time.Now().UnixMilli(),
	}
	e.pending = append(e.pending, ev)
	if to == timeline.StateFinished {
		ev.Kind = types.EventFinish
		ev.From, ev.To = "", ""
		e.pending = append(e.pending, ev)
	}
}

func (e *entry) onContent(c *timeline.WorkClipContainer, oldActive, newActive []timeline.PlayableState, percent float64) {
	e.pending = append(e.pending, journal.Event{
		Kind:      types.EventContent,
		PlayerID:  e.id,
		From:      joinNames(oldActive),
		To:        joinNames(newActive),
		Percent:   e.player.Percent(),
		Elapsed:   e.player.Elapsed(),
		Detail:    c.Name(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (e *entry) onTrigger(t *effects.Trigger, percent float64) {
	e.pending = append(e.pending, journal.Event{
		Kind:      types.EventTrigger,
		PlayerID:  e.id,
		Percent:   e.player.Percent(),
		Elapsed:   e.player.Elapsed(),
		Detail:    t.Name(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func joinNames(states []timeline.PlayableState) string {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = timeline.NameOf(st)
	}
	return strings.Join(names, ",")
}

func (s *Scheduler) drainAllLocked() {
	for _, id := range s.sortedIDsLocked() {
		s.drainLocked(s.entries[id])
	}
}

// drainLocked 串行分發一個播放器的緩衝事件：journal → metrics → 訂閱者
func (s *Scheduler) drainLocked(e *entry) {
	if len(e.pending) == 0 {
		return
	}
	pending := e.pending
	e.pending = nil

	listeners := make([]EventFunc, 0, len(s.listeners))
	for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
		listeners = append(listeners, s.listeners[id])
	}

	for _, ev := range pending {
		if s.journal == nil {
			s.seq++
			ev.Seq = s.seq
			if ev.Timestamp == 0 {
				ev.Timestamp = time.Now().UnixMilli()
			}
		} else {
			seq, err := s.journal.Append(ev, false)
			if err != nil {
				s.log.Error().Err(err).Str("player", string(ev.PlayerID)).Str("kind", string(ev.Kind)).Msg("Failed to append journal event")
			} else {
				ev.Seq = seq
				ev.Session = s.journal.Session()
				if s.metrics != nil {
					s.metrics.RecordJournalEvent()
				}
			}
		}
		if s.metrics != nil {
			switch ev.Kind {
			case types.EventState:
				s.metrics.RecordTransition(ev.To)
			case types.EventContent:
				s.metrics.RecordContentChange()
			case types.EventFinish:
				s.metrics.RecordFinish()
			case types.EventTrigger:
				s.metrics.RecordTrigger()
			}
		}
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

func attachContainers(c *timeline.WorkClipContainer, obs *timeline.Observers) {
	c.SetObservers(obs)
	for _, clip := range c.Clips() {
		if nested, ok := clip.State().(*timeline.WorkClipContainer); ok {
			attachContainers(nested, obs)
		}
	}
}

// ============================================================================
// 控制 API
// ============================================================================

func (s *Scheduler) lookupLocked(id types.PlayerID) (*entry, error) {
	if s.stopped {
		return nil, ErrStopped
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return e, nil
}

// control 在鎖內對播放器執行 fn，然後分發事件
func (s *Scheduler) control(id types.PlayerID, fn func(p *timeline.Player) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	err = fn(e.player)
	s.drainLocked(e)
	return err
}

func invalid(op string, st timeline.PlayerState) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidState, op, st)
}

// Play 開始播放
func (s *Scheduler) Play(id types.PlayerID) error {
	return s.control(id, func(p *timeline.Player) error {
		if p.State() == timeline.StateInit {
			return invalid("play", p.State())
		}
		p.Play()
		return nil
	})
}

// Pause 暫停，僅在 PLAYING 時有效
func (s *Scheduler) Pause(id types.PlayerID) error {
	return s.control(id, func(p *timeline.Player) error {
		if !p.Pause() {
			return invalid("pause", p.State())
		}
		return nil
	})
}

// Resume 繼續暫停中的播放器，或重播已完成的循環播放器
func (s *Scheduler) Resume(id types.PlayerID) error {
	return s.control(id, func(p *timeline.Player) error {
		if !p.Resume() {
			return invalid("resume", p.State())
		}
		return nil
	})
}

// StopPlayer 停止播放器（任何狀態皆可）
func (s *Scheduler) StopPlayer(id types.PlayerID) error {
	return s.control(id, func(p *timeline.Player) error {
		p.Stop()
		return nil
	})
}

// Replay 從 0 重新播放
func (s *Scheduler) Replay(id types.PlayerID) error {
	return s.control(id, func(p *timeline.Player) error {
		if p.State() == timeline.StateInit {
			return invalid("replay", p.State())
		}
		p.Replay()
		return nil
	})
}

// Seek 跳到指定進度
func (s *Scheduler) Seek(id types.PlayerID, percent float64) error {
	if math.IsNaN(percent) || percent < 0 || percent > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidPercent, percent)
	}
	return s.control(id, func(p *timeline.Player) error {
		if !p.Seek(percent) {
			return invalid("seek", p.State())
		}
		return nil
	})
}

// Status 取得單一播放器狀態
func (s *Scheduler) Status(id types.PlayerID) (types.PlayerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupLocked(id)
	if err != nil {
		return types.PlayerStatus{}, err
	}
	return statusOf(e), nil
}

// List 取得所有播放器狀態（依 ID 排序）
func (s *Scheduler) List() []types.PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PlayerStatus, 0, len(s.entries))
	for _, id := range s.sortedIDsLocked() {
		out = append(out, statusOf(s.entries[id]))
	}
	return out
}

// Stats 排程器概況
type Stats struct {
	Players int            `json:"players"`
	Ticks   uint64         `json:"ticks"`
	Uptime  time.Duration  `json:"uptime"`
	States  map[string]int `json:"states"`
	LastSeq uint64         `json:"last_seq"`
}

// GetStats 取得排程器概況
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.seq
	if s.journal != nil {
		last = s.journal.GetLastSeq()
	}
	return Stats{
		Players: len(s.entries),
		Ticks:   s.ticks,
		Uptime:  time.Since(s.startTime),
		States:  s.countByStateLocked(),
		LastSeq: last,
	}
}

func statusOf(e *entry) types.PlayerStatus {
	st := e.player.Status()
	return types.PlayerStatus{
		ID:       e.id,
		State:    st.State.String(),
		Elapsed:  st.Elapsed,
		Duration: st.Duration,
		Percent:  st.Percent,
		Speed:    st.Speed,
		Loop:     st.Loop,
		Active:   st.Active,
	}
}

func (s *Scheduler) sortedIDsLocked() []types.PlayerID {
	return slices.Sorted(maps.Keys(s.entries))
}

func (s *Scheduler) countByStateLocked() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.player.State().String()]++
	}
	return counts
}
