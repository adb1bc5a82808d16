package orders

import (
	"context"
	"errors"
	"go.uber.org/zap"
	"strings"
)

// SweepIdle deletes ticket and support channels whose last activity is older
// than the idle threshold and drops their records. It returns how many were removed.
func (e *Engine) SweepIdle(ctx context.Context, guildID string) (int, error) {
	settings, err := e.repos.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	cats := TicketCategories{Ticket: settings.TicketCategoryID, Support: settings.SupportCategoryID}
	tickets, err := e.tickets.ListTickets(ctx, guildID, cats)
	if err != nil {
		return 0, err
	}

	cutoff := e.now().Add(-e.cfg.IdleAfter)
	removed := 0
	for _, t := range tickets {
		if !strings.HasPrefix(t.Name, TicketPrefix) && !strings.HasPrefix(t.Name, SupportPrefix) {
			continue
		}
		if !t.LastActivity.Before(cutoff) {
			continue
		}
		if e.sweepOne(ctx, t) {
			removed++
		}
	}
	if removed > 0 {
		e.log.Info("idle tickets removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (e *Engine) sweepOne(ctx context.Context, t Ticket) bool {
	unlock := e.lock(t.ID)
	defer unlock()

	if e.isClosing(t.ID) {
		return false
	}
	if err := e.tickets.DeleteChannel(ctx, t.ID); err != nil && !errors.Is(err, ErrUnknownChannel) {
		e.log.Warn("idle ticket delete failed", zap.String("channel_id", t.ID), zap.Error(err))
		return false
	}
	if err := e.forget(ctx, t.ID); err != nil {
		e.log.Error("failed to drop idle ticket records", zap.String("channel_id", t.ID), zap.Error(err))
	}
	e.log.Info("idle ticket removed", zap.String("channel_id", t.ID), zap.String("name", t.Name), zap.Time("last_activity", t.LastActivity))
	return true
}
