// Package store declares the repositories the bot depends on. The jsonfile
// subpackage and the db package provide the two backends.
package store

import (
	"context"
	"discord-store-bot/internal/models"
	"errors"
)

var ErrNotFound = errors.New("not found")

// ErrExists is returned when inserting a record whose key is already taken.
var ErrExists = errors.New("already exists")

type Products interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	SaveProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// Orders is append-only.
type Orders interface {
	AppendOrder(ctx context.Context, o models.Order) error
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
}

type PendingOrders interface {
	ListPending(ctx context.Context) ([]models.PendingOrder, error)
	GetPending(ctx context.Context, channelID string) (models.PendingOrder, error)
	SavePending(ctx context.Context, p models.PendingOrder) error
	DeletePending(ctx context.Context, channelID string) error
}

type TicketOwners interface {
	ListOwners(ctx context.Context) ([]models.TicketOwner, error)
	GetOwner(ctx context.Context, channelID string) (models.TicketOwner, error)
	SaveOwner(ctx context.Context, o models.TicketOwner) error
	DeleteOwner(ctx context.Context, channelID string) error
}

type Affiliates interface {
	ListAffiliates(ctx context.Context) ([]models.Affiliate, error)
	GetAffiliate(ctx context.Context, userID string) (models.Affiliate, error)
	SaveAffiliate(ctx context.Context, a models.Affiliate) error

	ListTiers(ctx context.Context) ([]models.Tier, error)
	SaveTier(ctx context.Context, t models.Tier) error
	DeleteTier(ctx context.Context, name string) error
}

type Giveaways interface {
	ListGiveaways(ctx context.Context) ([]models.Giveaway, error)
	GetGiveaway(ctx context.Context, messageID string) (models.Giveaway, error)
	SaveGiveaway(ctx context.Context, g models.Giveaway) error
}

type Settings interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error
}

type Security interface {
	GetWarnings(ctx context.Context, userID string) (models.Warnings, error)
	SaveWarnings(ctx context.Context, userID string, w models.Warnings) error
	ClearWarnings(ctx context.Context, userID string) error

	AppendViolation(ctx context.Context, v models.Violation) error
	ListViolations(ctx context.Context, userID string) ([]models.Violation, error)

	ListPhishingDomains(ctx context.Context) ([]string, error)
	SavePhishingDomains(ctx context.Context, domains []string) error
}

// Store groups every repository of one backend.
type Store interface {
	Products
	Orders
	PendingOrders
	TicketOwners
	Affiliates
	Giveaways
	Settings
	Security
	Close() error
}
