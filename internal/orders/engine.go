// Package orders runs the ticket lifecycle: a purchase opens a private ticket
// holding a pending order, and an admin closes it as done or cancelled.
//
// Work on one ticket is serialized by a per-channel mutex. A completed close
// commits stock, the order log and the affiliate credit before any chat side
// effect runs; side effects are an ordered list of steps that each report
// their own outcome and never undo committed data.
package orders

import (
	"context"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"errors"
	"github.com/puzpuzpuz/xsync"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	TicketPrefix  = "ticket-"
	SupportPrefix = "support-"
)

var (
	ErrOutOfStock         = errors.New("this product is out of stock")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrCodeAlreadyApplied = errors.New("an affiliate code is already applied to this order")
	ErrNotTicket          = errors.New("this command only works inside a ticket channel")
	ErrTicketClosed       = errors.New("this ticket is already being closed")
	ErrNoPendingOrder     = errors.New("no pending order for this ticket")
	ErrUnknownOrder       = errors.New("order not found")
	ErrNotOwner           = errors.New("this order belongs to someone else")

	// ErrUnknownChannel is returned by Tickets adapters for channels that are already gone.
	ErrUnknownChannel = errors.New("unknown channel")
)

type TicketRequest struct {
	GuildID    string
	UserID     string
	Username   string
	Kind       models.TicketKind
	CategoryID string
}

type Ticket struct {
	ID           string
	Name         string
	LastActivity time.Time
}

// TicketCategories holds the configured parent categories. An empty field
// means the platform's default category of that kind.
type TicketCategories struct {
	Ticket  string
	Support string
}

// Tickets is the chat-platform side of ticket channels.
type Tickets interface {
	OpenTicket(ctx context.Context, req TicketRequest) (channelID string, err error)
	DeleteChannel(ctx context.Context, channelID string) error
	// ListTickets returns the channels under both categories.
	ListTickets(ctx context.Context, guildID string, cats TicketCategories) ([]Ticket, error)
}

// Fulfillment delivers what a buyer and the staff see once an order completes.
type Fulfillment interface {
	PostTranscript(ctx context.Context, channelID string, o models.Order) error
	SendInvoice(ctx context.Context, o models.Order) error
	LogOrder(ctx context.Context, o models.Order) error
	GrantTrustedBuyer(ctx context.Context, guildID, userID string, completed int) error
}

// Repos is the slice of the store the engine writes to.
type Repos interface {
	store.Orders
	store.PendingOrders
	store.TicketOwners
	store.Settings
}

type Config struct {
	DiscountRate     decimal.Decimal
	GraceDelay       time.Duration
	IdleAfter        time.Duration
	TrustedThreshold int
}

type Engine struct {
	repos      Repos
	catalog    *catalog.Manager
	affiliates *affiliate.Ledger
	tickets    Tickets
	fulfil     Fulfillment
	cfg        Config
	log        *zap.Logger

	locks   *xsync.MapOf[string, *sync.Mutex]
	closing *xsync.MapOf[string, time.Time]

	now       func() time.Time
	afterFunc func(d time.Duration, f func())
	newID     func(t time.Time) string
}

func NewEngine(repos Repos, cat *catalog.Manager, aff *affiliate.Ledger, tickets Tickets, fulfil Fulfillment, cfg Config, log *zap.Logger) *Engine {
	return &Engine{
		repos:      repos,
		catalog:    cat,
		affiliates: aff,
		tickets:    tickets,
		fulfil:     fulfil,
		cfg:        cfg,
		log:        log,
		locks:      xsync.NewMapOf[*sync.Mutex](),
		closing:    xsync.NewMapOf[time.Time](),
		now:        time.Now,
		afterFunc:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		newID:      NewOrderID,
	}
}

func (e *Engine) lock(key string) func() {
	mu, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) isClosing(channelID string) bool {
	_, ok := e.closing.Load(channelID)
	return ok
}

// Pending returns the pending order of a ticket.
func (e *Engine) Pending(ctx context.Context, channelID string) (models.PendingOrder, error) {
	p, err := e.repos.GetPending(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return models.PendingOrder{}, ErrNoPendingOrder
	}
	return p, err
}

// Owner returns who opened the ticket.
func (e *Engine) Owner(ctx context.Context, channelID string) (models.TicketOwner, error) {
	return e.repos.GetOwner(ctx, channelID)
}

// scheduleDelete removes the channel after the grace delay. Channels that are
// already gone count as deleted.
func (e *Engine) scheduleDelete(channelID string) {
	e.closing.Store(channelID, e.now())
	e.afterFunc(e.cfg.GraceDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.tickets.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, ErrUnknownChannel) {
			e.log.Warn("ticket channel delete failed", zap.String("channel_id", channelID), zap.Error(err))
		}
		e.closing.Delete(channelID)
		e.locks.Delete(channelID)
	})
}

// forget drops the pending order and owner records; missing records are fine.
func (e *Engine) forget(ctx context.Context, channelID string) error {
	if err := e.repos.DeletePending(ctx, channelID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := e.repos.DeleteOwner(ctx, channelID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
