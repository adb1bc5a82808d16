package orders

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
)

// Initiate returns the variants a buyer can pick from.
func (e *Engine) Initiate(ctx context.Context, productID string) (models.Product, []models.Variant, error) {
	p, err := e.catalog.Get(ctx, productID)
	if err != nil {
		return models.Product{}, nil, err
	}
	in := p.InStock()
	if len(in) == 0 {
		return p, nil, ErrOutOfStock
	}
	return p, in, nil
}

type QuoteRequest struct {
	UserID        string `validate:"required" label:"user"`
	Username      string
	ProductID     string `validate:"required" label:"product"`
	Variant       string `validate:"required" label:"variant"`
	Quantity      int
	AffiliateCode string
}

type Quote struct {
	Product       models.Product
	Variant       models.Variant
	Quantity      int
	UnitPrice     decimal.Decimal
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	FinalPrice    decimal.Decimal
	AffiliateCode string
}

// Price applies the affiliate discount to unit*qty when a code is present.
func (e *Engine) Price(unit decimal.Decimal, qty int, withCode bool) (subtotal, discount, final decimal.Decimal) {
	subtotal = unit.Mul(decimal.NewFromInt(int64(qty)))
	discount = decimal.Zero
	if withCode {
		discount = subtotal.Mul(e.cfg.DiscountRate).Round(2)
	}
	return subtotal, discount, subtotal.Sub(discount)
}

// Quote validates a purchase without changing anything.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if err := validation.Struct(req); err != nil {
		return Quote{}, err
	}
	p, err := e.catalog.Get(ctx, req.ProductID)
	if err != nil {
		return Quote{}, err
	}
	i := p.VariantIndex(req.Variant)
	if i < 0 {
		return Quote{}, validation.Errorf("variant %q does not exist on %s", req.Variant, p.Title)
	}
	v := p.Variants[i]
	if v.Stock == 0 {
		return Quote{}, ErrOutOfStock
	}
	if req.Quantity < 1 || req.Quantity > v.Stock {
		return Quote{}, fmt.Errorf("%w: choose between 1 and %d", ErrInvalidQuantity, v.Stock)
	}

	q := Quote{Product: p, Variant: v, Quantity: req.Quantity, UnitPrice: v.Price}
	if code := strings.TrimSpace(req.AffiliateCode); code != "" {
		a, err := e.affiliates.CheckRedeemable(ctx, code, req.UserID)
		if err != nil {
			return Quote{}, err
		}
		q.AffiliateCode = a.Code
	}
	q.Subtotal, q.Discount, q.FinalPrice = e.Price(v.Price, req.Quantity, q.AffiliateCode != "")
	return q, nil
}

type PurchaseRequest struct {
	QuoteRequest
	GuildID string
}

// Purchase opens the ticket and records the pending order. A rejected quote
// creates nothing.
func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest) (models.PendingOrder, error) {
	unlock := e.lock("buyer:" + req.UserID)
	defer unlock()

	q, err := e.Quote(ctx, req.QuoteRequest)
	if err != nil {
		return models.PendingOrder{}, err
	}
	settings, err := e.repos.GetSettings(ctx)
	if err != nil {
		return models.PendingOrder{}, err
	}

	channelID, err := e.tickets.OpenTicket(ctx, TicketRequest{
		GuildID:    req.GuildID,
		UserID:     req.UserID,
		Username:   req.Username,
		Kind:       models.TicketPurchase,
		CategoryID: settings.TicketCategoryID,
	})
	if err != nil {
		return models.PendingOrder{}, fmt.Errorf("open ticket: %w", err)
	}

	now := e.now()
	pending := models.PendingOrder{
		ChannelID:     channelID,
		GuildID:       req.GuildID,
		UserID:        req.UserID,
		Username:      req.Username,
		ProductID:     q.Product.ID,
		ProductName:   q.Product.Title + " - " + q.Variant.Name,
		VariantName:   q.Variant.Name,
		Quantity:      q.Quantity,
		UnitPrice:     q.UnitPrice,
		InitialPrice:  q.Subtotal,
		Discount:      q.Discount,
		FinalPrice:    q.FinalPrice,
		AffiliateCode: q.AffiliateCode,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	if err := e.repos.SavePending(ctx, pending); err != nil {
		e.discardChannel(ctx, channelID)
		return models.PendingOrder{}, fmt.Errorf("save pending order: %w", err)
	}
	owner := models.TicketOwner{ChannelID: channelID, UserID: req.UserID, Kind: models.TicketPurchase, CreatedAt: now}
	if err := e.repos.SaveOwner(ctx, owner); err != nil {
		_ = e.repos.DeletePending(ctx, channelID)
		e.discardChannel(ctx, channelID)
		return models.PendingOrder{}, fmt.Errorf("save ticket owner: %w", err)
	}

	e.log.Info("ticket opened",
		zap.String("channel_id", channelID),
		zap.String("user_id", req.UserID),
		zap.String("product", q.Product.ID),
		zap.String("variant", q.Variant.Name),
		zap.Int("quantity", q.Quantity),
		zap.String("final_price", q.FinalPrice.String()))
	return pending, nil
}

func (e *Engine) discardChannel(ctx context.Context, channelID string) {
	if err := e.tickets.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, ErrUnknownChannel) {
		e.log.Warn("failed to remove ticket after error", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// Redeem attaches an affiliate code to a pending order that has none.
func (e *Engine) Redeem(ctx context.Context, channelID, userID, code string) (models.PendingOrder, error) {
	unlock := e.lock(channelID)
	defer unlock()

	if e.isClosing(channelID) {
		return models.PendingOrder{}, ErrTicketClosed
	}
	p, err := e.Pending(ctx, channelID)
	if err != nil {
		return models.PendingOrder{}, err
	}
	if p.UserID != userID {
		return models.PendingOrder{}, ErrNotOwner
	}
	if p.AffiliateCode != "" {
		return models.PendingOrder{}, ErrCodeAlreadyApplied
	}
	a, err := e.affiliates.CheckRedeemable(ctx, code, userID)
	if err != nil {
		return models.PendingOrder{}, err
	}

	p.AffiliateCode = a.Code
	p.InitialPrice, p.Discount, p.FinalPrice = e.Price(p.UnitPrice, p.Quantity, true)
	if err := e.repos.SavePending(ctx, p); err != nil {
		return models.PendingOrder{}, fmt.Errorf("save pending order: %w", err)
	}
	e.log.Info("affiliate code redeemed", zap.String("channel_id", channelID), zap.String("code", a.Code))
	return p, nil
}

// MarkReady flags the ticket as picked up by staff.
func (e *Engine) MarkReady(ctx context.Context, channelID string) (models.PendingOrder, error) {
	unlock := e.lock(channelID)
	defer unlock()

	if e.isClosing(channelID) {
		return models.PendingOrder{}, ErrTicketClosed
	}
	p, err := e.Pending(ctx, channelID)
	if err != nil {
		return models.PendingOrder{}, err
	}
	if p.Ready {
		return p, nil
	}
	p.Ready = true
	if err := e.repos.SavePending(ctx, p); err != nil {
		return models.PendingOrder{}, err
	}
	return p, nil
}
