package orders

import (
	"context"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"strings"
	"time"
)

type CloseRequest struct {
	ChannelID   string
	ChannelName string
	ClosedBy    string
	Status      models.OrderStatus
}

// StepResult is the outcome of one post-commit side effect.
type StepResult struct {
	Name    string
	Err     error
	Skipped bool
}

// CloseResult describes a finished close. Warning is set when the ticket
// closed without recording what a done close normally records.
type CloseResult struct {
	Status   models.OrderStatus
	Order    *models.Order
	Pending  *models.PendingOrder
	TestMode bool
	Warning  string
	Steps    []StepResult
}

// Failed lists the side effects that did not go through.
func (r CloseResult) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

const maxIDAttempts = 20

// Close finalizes a purchase ticket. A done close with stock no longer
// available fails and leaves the ticket open so it can be cancelled instead.
// Closing a ticket that is already closing returns ErrTicketClosed.
func (e *Engine) Close(ctx context.Context, req CloseRequest) (CloseResult, error) {
	if !strings.HasPrefix(req.ChannelName, TicketPrefix) {
		return CloseResult{}, ErrNotTicket
	}
	if req.Status != models.StatusCompleted && req.Status != models.StatusCancelled {
		return CloseResult{}, validation.Errorf("status must be done or cancelled")
	}

	unlock := e.lock(req.ChannelID)
	defer unlock()

	if e.isClosing(req.ChannelID) {
		return CloseResult{}, ErrTicketClosed
	}
	settings, err := e.repos.GetSettings(ctx)
	if err != nil {
		return CloseResult{}, err
	}
	res := CloseResult{Status: req.Status, TestMode: settings.TestMode}

	pending, err := e.repos.GetPending(ctx, req.ChannelID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if req.Status == models.StatusCompleted {
			res.Warning = "no pending order was found for this ticket; nothing was recorded"
			e.log.Warn("closing ticket without pending order", zap.String("channel_id", req.ChannelID))
		}
	case err != nil:
		return CloseResult{}, err
	default:
		res.Pending = &pending
	}

	if req.Status == models.StatusCompleted && res.Pending != nil {
		if settings.TestMode {
			res.Warning = "test mode is on; no order was recorded and stock is unchanged"
		} else {
			order, listing, err := e.commit(ctx, pending, req.ClosedBy)
			if err != nil {
				return CloseResult{}, err
			}
			res.Order = &order
			res.Steps = e.fulfill(ctx, order, listing)
		}
	}

	if err := e.forget(ctx, req.ChannelID); err != nil {
		e.log.Error("failed to drop ticket records", zap.String("channel_id", req.ChannelID), zap.Error(err))
	}
	e.scheduleDelete(req.ChannelID)

	fields := []zap.Field{
		zap.String("channel_id", req.ChannelID),
		zap.String("status", string(req.Status)),
		zap.String("closed_by", req.ClosedBy),
		zap.Bool("test_mode", res.TestMode),
	}
	if res.Order != nil {
		fields = append(fields, zap.String("order_id", res.Order.OrderID))
	}
	e.log.Info("ticket closed", fields...)
	return res, nil
}

// commit writes the data side of a completed order: stock, then the order log.
// The returned step is the outcome of updating the listing message.
func (e *Engine) commit(ctx context.Context, p models.PendingOrder, closedBy string) (models.Order, StepResult, error) {
	listing := StepResult{Name: "listing"}
	closedAt := e.now()
	id, err := e.uniqueOrderID(ctx, closedAt)
	if err != nil {
		return models.Order{}, listing, err
	}
	order := p.Finalize(id, models.StatusCompleted, closedAt, closedBy)

	if _, err := e.catalog.RecordSale(ctx, p.ProductID, p.VariantName, p.Quantity); err != nil {
		if !errors.Is(err, catalog.ErrPartial) {
			return models.Order{}, listing, err
		}
		listing.Err = err
	}
	if err := e.repos.AppendOrder(ctx, order); err != nil {
		if _, rerr := e.catalog.ReverseSale(ctx, p.ProductID, p.VariantName, p.Quantity); rerr != nil && !errors.Is(rerr, catalog.ErrPartial) {
			e.log.Error("stock rollback failed", zap.String("product", p.ProductID), zap.Error(rerr))
		}
		return models.Order{}, listing, fmt.Errorf("append order: %w", err)
	}
	return order, listing, nil
}

func (e *Engine) uniqueOrderID(ctx context.Context, t time.Time) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := e.newID(t)
		_, err := e.repos.GetOrder(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique order id")
}

// fulfill runs the side effects in order. Each step reports on its own.
func (e *Engine) fulfill(ctx context.Context, o models.Order, listing StepResult) []StepResult {
	steps := []StepResult{listing}

	credit := StepResult{Name: "affiliate", Skipped: o.AffiliateCode == ""}
	if !credit.Skipped {
		_, credit.Err = e.affiliates.Credit(ctx, o.AffiliateCode, o.OrderID)
	}
	steps = append(steps, credit)

	steps = append(steps,
		StepResult{Name: "transcript", Err: e.fulfil.PostTranscript(ctx, o.ChannelID, o)},
		StepResult{Name: "invoice", Err: e.fulfil.SendInvoice(ctx, o)},
		StepResult{Name: "order_log", Err: e.fulfil.LogOrder(ctx, o)},
	)

	trusted := StepResult{Name: "trusted_buyer", Skipped: true}
	if e.cfg.TrustedThreshold > 0 {
		n, err := e.CompletedCount(ctx, o.UserID)
		switch {
		case err != nil:
			trusted = StepResult{Name: "trusted_buyer", Err: err}
		case n >= e.cfg.TrustedThreshold:
			trusted = StepResult{Name: "trusted_buyer", Err: e.fulfil.GrantTrustedBuyer(ctx, o.GuildID, o.UserID, n)}
		}
	}
	steps = append(steps, trusted)

	for _, s := range steps {
		if s.Err != nil {
			e.log.Warn("close step failed", zap.String("order_id", o.OrderID), zap.String("step", s.Name), zap.Error(s.Err))
		}
	}
	return steps
}
