package orders

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"sort"
	"strings"
)

type SupportRequest struct {
	GuildID  string `validate:"required" label:"guild"`
	UserID   string `validate:"required" label:"user"`
	Username string
	OrderID  string `validate:"required" label:"order_id"`
	Issue    string `validate:"required,max=1000" label:"issue"`
}

// OpenSupport opens a support ticket for one of the caller's completed orders.
func (e *Engine) OpenSupport(ctx context.Context, req SupportRequest) (string, models.Order, error) {
	req.OrderID = strings.ToUpper(strings.TrimSpace(req.OrderID))
	if err := validation.Struct(req); err != nil {
		return "", models.Order{}, err
	}
	o, err := e.FindOrder(ctx, req.OrderID)
	if err != nil {
		return "", models.Order{}, err
	}
	if o.UserID != req.UserID {
		return "", models.Order{}, ErrNotOwner
	}
	settings, err := e.repos.GetSettings(ctx)
	if err != nil {
		return "", models.Order{}, err
	}
	channelID, err := e.tickets.OpenTicket(ctx, TicketRequest{
		GuildID:    req.GuildID,
		UserID:     req.UserID,
		Username:   req.Username,
		Kind:       models.TicketSupport,
		CategoryID: settings.SupportCategoryID,
	})
	if err != nil {
		return "", models.Order{}, fmt.Errorf("open support ticket: %w", err)
	}
	owner := models.TicketOwner{ChannelID: channelID, UserID: req.UserID, Kind: models.TicketSupport, OrderID: o.OrderID, CreatedAt: e.now()}
	if err := e.repos.SaveOwner(ctx, owner); err != nil {
		e.discardChannel(ctx, channelID)
		return "", models.Order{}, fmt.Errorf("save ticket owner: %w", err)
	}
	e.log.Info("support ticket opened", zap.String("channel_id", channelID), zap.String("order_id", o.OrderID))
	return channelID, o, nil
}

// CloseSupport schedules a support ticket for deletion.
func (e *Engine) CloseSupport(ctx context.Context, channelID, channelName, closedBy string) error {
	if !strings.HasPrefix(channelName, SupportPrefix) {
		return ErrNotTicket
	}
	unlock := e.lock(channelID)
	defer unlock()

	if e.isClosing(channelID) {
		return ErrTicketClosed
	}
	if err := e.forget(ctx, channelID); err != nil {
		e.log.Error("failed to drop ticket records", zap.String("channel_id", channelID), zap.Error(err))
	}
	e.scheduleDelete(channelID)
	e.log.Info("support ticket closed", zap.String("channel_id", channelID), zap.String("closed_by", closedBy))
	return nil
}

func (e *Engine) FindOrder(ctx context.Context, orderID string) (models.Order, error) {
	o, err := e.repos.GetOrder(ctx, strings.ToUpper(strings.TrimSpace(orderID)))
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, ErrUnknownOrder
	}
	return o, err
}

// OrdersFor lists a user's orders, newest first.
func (e *Engine) OrdersFor(ctx context.Context, userID string) ([]models.Order, error) {
	all, err := e.repos.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	return out, nil
}

func (e *Engine) CompletedCount(ctx context.Context, userID string) (int, error) {
	all, err := e.OrdersFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range all {
		if o.Status == models.StatusCompleted {
			n++
		}
	}
	return n, nil
}
