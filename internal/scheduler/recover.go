package scheduler

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/workclip/internal/journal"
	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/pkg/types"
)

// position 恢復期間折疊出的播放器位置
type position struct {
	state   string
	elapsed float64
	percent float64
}

// recover 從快照與 journal 恢復已註冊播放器的位置
//
// 流程：
//  1. 快照（New 時載入）：位置與 LastSeq
//  2. 折疊 LastSeq 之後、屬於先前 session 的 journal 事件
//     （本次 session 在恢復前寫入的事件，例如 Add 的 Enter，不參與）
//  3. 套用到已註冊的播放器（未註冊的 ID 忽略）
//
// journal 損壞時記錄警告，以損壞前的事件繼續。
func (s *Scheduler) recover() (int, error) {
	positions := make(map[types.PlayerID]*position)
	var after uint64

	if s.snapshot != nil {
		data := s.restored
		for id, ps := range data.Players {
			if ps == nil {
				continue
			}
			positions[id] = &position{state: ps.State, elapsed: ps.Elapsed, percent: ps.Percent}
		}
		after = data.LastSeq
		s.log.Info().Int("players", len(data.Players)).Uint64("last_seq", after).Msg("Snapshot loaded")
	}

	if s.journal != nil {
		replayed := 0
		session := s.journal.Session()
		err := s.journal.ReplayAfter(after, func(ev journal.Event) error {
			if ev.Session == session {
				return nil
			}
			replayed++
			pos := positions[ev.PlayerID]
			if pos == nil {
				pos = &position{}
				positions[ev.PlayerID] = pos
			}
			pos.elapsed = ev.Elapsed
			pos.percent = ev.Percent
			if ev.Kind == types.EventState {
				pos.state = ev.To
			}
			return nil
		})
		switch {
		case err == nil:
		case errors.Is(err, journal.ErrCorrupted), errors.Is(err, journal.ErrChecksumMismatch):
			s.log.Warn().Err(err).Int("replayed", replayed).Msg("journal damaged; recovering from the events before the damage")
		default:
			return 0, fmt.Errorf("failed to replay journal: %w", err)
		}
		s.log.Info().Int("events", replayed).Uint64("after", after).Msg("Journal replayed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, id := range s.sortedIDsLocked() {
		pos, ok := positions[id]
		if !ok {
			continue
		}
		e := s.entries[id]
		if e.player.Restore(pos.elapsed, wasPlaying(pos.state)) {
			restored++
		}
		s.drainLocked(e)
	}
	return restored, nil
}

// wasPlaying 崩潰前是否在播放（含剛開始播放）
func wasPlaying(state string) bool {
	st, err := timeline.ParsePlayerState(state)
	if err != nil {
		return false
	}
	return st == timeline.StatePlay || st == timeline.StatePlaying
}
