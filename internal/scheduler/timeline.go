package scheduler

import (
	"fmt"

	"github.com/ChuLiYu/workclip/internal/config"
	"github.com/ChuLiYu/workclip/pkg/types"
)

// AddTimeline builds every player of doc and registers it under its
// document id, together with its triggers. Players added before a
// failure stay registered.
func (s *Scheduler) AddTimeline(doc *config.Timeline, env config.Env) ([]types.PlayerID, error) {
	ids := make([]types.PlayerID, 0, len(doc.Players))
	for _, spec := range doc.Players {
		built, err := doc.Build(spec, env)
		if err != nil {
			return ids, fmt.Errorf("failed to build player %q: %w", spec.ID, err)
		}
		id, err := s.Add(types.PlayerID(spec.ID), built.Player, built.Triggers...)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
