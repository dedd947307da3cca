package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/splitpot/api/internal/wire"
)

// bumpActivity refreshes an event's last-activity timestamp off the command
// path, then broadcasts the updated event to admins and wakes long-poll
// waiters. Ordering relative to the data-topic broadcast is deliberately
// unspecified; clients tolerate either arrival order.
func (s *SyncService) bumpActivity(code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		ev, err := s.events.Get(ctx, code)
		if err != nil {
			s.logger.Error("activity bump failed",
				slog.String("invitation_code", code),
				slog.String("error", err.Error()))
			return
		}
		if ev == nil {
			return
		}

		ev.Touch(s.now())
		if err := s.events.Save(ctx, ev); err != nil {
			s.logger.Error("activity bump failed",
				slog.String("invitation_code", code),
				slog.String("error", err.Error()))
			return
		}

		s.broadcast(wire.AdminTopic(wire.EntityEvent, wire.OpUpdate), ev)
		s.updates.Notify(code, ev)
	}()
}
