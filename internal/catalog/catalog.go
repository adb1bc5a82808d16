// Package catalog manages product listings and the messages that display them.
//
// Every mutation is applied to a copy, persisted, and only then pushed to the
// Publisher. The stored listing is authoritative: when the publisher fails the
// change stays saved and the caller gets ErrPartial alongside the new listing.
package catalog

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrPartial           = errors.New("saved, but the posted listing could not be updated")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownVariant    = errors.New("unknown variant")
)

// Publisher renders listings on the chat platform.
type Publisher interface {
	Publish(ctx context.Context, channelID string, p models.Product) (messageID string, err error)
	Refresh(ctx context.Context, p models.Product) error
	Remove(ctx context.Context, p models.Product) error
}

// Listing ids and variant names end up inside component custom ids, which
// Discord caps at 100 characters.
const (
	MaxIDLength      = 40
	MaxVariantLength = 35
)

// listingID slugs the title and cuts it to MaxIDLength.
func listingID(title string) string {
	id := slug.Make(title)
	if len(id) > MaxIDLength {
		id = strings.TrimRight(id[:MaxIDLength], "-")
	}
	return id
}

type Manager struct {
	mu   sync.Mutex
	repo store.Products
	pub  Publisher
	log  *zap.Logger
	now  func() time.Time
}

func NewManager(repo store.Products, pub Publisher, log *zap.Logger) *Manager {
	return &Manager{repo: repo, pub: pub, log: log, now: time.Now}
}

type CreateInput struct {
	ChannelID   string `validate:"required" label:"channel"`
	Title       string `validate:"required,max=256"`
	Description string `validate:"required,max=4000"`
	Features    string
	Variants    string `validate:"required"`
	ImageURL    string `validate:"omitempty,url" label:"image_url"`
	Notes       string `validate:"max=1000"`
}

// Create posts the listing first so the record can carry its message id. If
// saving fails the posted message is taken back down.
func (m *Manager) Create(ctx context.Context, in CreateInput) (models.Product, error) {
	if err := validation.Struct(in); err != nil {
		return models.Product{}, err
	}
	variants, err := ParseVariants(in.Variants)
	if err != nil {
		return models.Product{}, err
	}
	id := listingID(in.Title)
	if id == "" {
		return models.Product{}, validation.Errorf("title %q does not produce a usable id", in.Title)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetProduct(ctx, id); err == nil {
		return models.Product{}, validation.Errorf("a listing with id %q already exists", id)
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Product{}, err
	}

	p := models.Product{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Notes:       in.Notes,
		Features:    ParseFeatures(in.Features),
		Variants:    variants,
		ChannelID:   in.ChannelID,
		CreatedAt:   m.now(),
	}
	msgID, err := m.pub.Publish(ctx, in.ChannelID, p)
	if err != nil {
		return models.Product{}, fmt.Errorf("post listing: %w", err)
	}
	p.MessageID = msgID

	if err := m.repo.SaveProduct(ctx, p); err != nil {
		if rmErr := m.pub.Remove(ctx, p); rmErr != nil {
			m.log.Warn("failed to remove listing after save error", zap.String("product", id), zap.Error(rmErr))
		}
		return models.Product{}, fmt.Errorf("save listing: %w", err)
	}
	m.log.Info("listing created", zap.String("product", id), zap.Int("variants", len(variants)))
	return p, nil
}

func (m *Manager) Get(ctx context.Context, id string) (models.Product, error) {
	return m.repo.GetProduct(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]models.Product, error) {
	return m.repo.ListProducts(ctx)
}

// mutate runs fn on a copy of the listing, saves it and refreshes the message.
func (m *Manager) mutate(ctx context.Context, id string, fn func(p *models.Product) error) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return cur, err
	}
	if err := m.repo.SaveProduct(ctx, next); err != nil {
		return cur, fmt.Errorf("save listing: %w", err)
	}
	if err := m.pub.Refresh(ctx, next); err != nil {
		m.log.Warn("listing refresh failed", zap.String("product", id), zap.Error(err))
		return next, fmt.Errorf("%w: %v", ErrPartial, err)
	}
	return next, nil
}

func (m *Manager) AddVariant(ctx context.Context, id string, v models.Variant) (models.Product, error) {
	if err := validation.Struct(variantInput{Name: v.Name, Price: v.Price, Stock: v.Stock}); err != nil {
		return models.Product{}, err
	}
	return m.mutate(ctx, id, func(p *models.Product) error {
		if p.VariantIndex(v.Name) >= 0 {
			return validation.Errorf("variant %q already exists on %s", v.Name, p.Title)
		}
		p.Variants = append(p.Variants, v)
		return nil
	})
}

// VariantEdit holds the fields to change; nil fields are left alone.
type VariantEdit struct {
	Price *decimal.Decimal
	Stock *int
}

func (m *Manager) EditVariant(ctx context.Context, id, name string, edit VariantEdit) (models.Product, error) {
	if edit.Price == nil && edit.Stock == nil {
		return models.Product{}, validation.Errorf("nothing to change: give a new price or stock")
	}
	if edit.Price != nil && edit.Price.IsNegative() {
		return models.Product{}, validation.Errorf("price must not be negative")
	}
	if edit.Stock != nil && *edit.Stock < 0 {
		return models.Product{}, validation.Errorf("stock must not be negative")
	}
	return m.mutate(ctx, id, func(p *models.Product) error {
		i := p.VariantIndex(name)
		if i < 0 {
			return fmt.Errorf("%w %q", ErrUnknownVariant, name)
		}
		if edit.Price != nil {
			p.Variants[i].Price = *edit.Price
		}
		if edit.Stock != nil {
			p.Variants[i].Stock = *edit.Stock
		}
		return nil
	})
}

func (m *Manager) RemoveVariant(ctx context.Context, id, name string) (models.Product, error) {
	return m.mutate(ctx, id, func(p *models.Product) error {
		i := p.VariantIndex(name)
		if i < 0 {
			return fmt.Errorf("%w %q", ErrUnknownVariant, name)
		}
		if len(p.Variants) == 1 {
			return validation.Errorf("a listing needs at least one variant; delete the listing instead")
		}
		p.Variants = append(p.Variants[:i], p.Variants[i+1:]...)
		return nil
	})
}

// UpdateInput changes listing metadata; nil fields are left alone. The id is
// fixed at creation and does not follow title changes.
type UpdateInput struct {
	Title       *string
	Description *string
	ImageURL    *string
	Features    *string
	Notes       *string
}

func (m *Manager) Update(ctx context.Context, id string, in UpdateInput) (models.Product, error) {
	return m.mutate(ctx, id, func(p *models.Product) error {
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return validation.Errorf("title must not be empty")
			}
			p.Title = t
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.ImageURL != nil {
			p.ImageURL = *in.ImageURL
		}
		if in.Features != nil {
			p.Features = ParseFeatures(*in.Features)
		}
		if in.Notes != nil {
			p.Notes = *in.Notes
		}
		return nil
	})
}

// Delete removes the record, then the posted message.
func (m *Manager) Delete(ctx context.Context, id string) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if err := m.repo.DeleteProduct(ctx, id); err != nil {
		return p, fmt.Errorf("delete listing: %w", err)
	}
	if err := m.pub.Remove(ctx, p); err != nil {
		m.log.Warn("listing message removal failed", zap.String("product", id), zap.Error(err))
		return p, fmt.Errorf("%w: %v", ErrPartial, err)
	}
	return p, nil
}

// AddRating stores one rating per user, replacing an earlier one.
func (m *Manager) AddRating(ctx context.Context, id string, r models.Rating) (models.Product, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return models.Product{}, validation.Errorf("rating must be between 1 and 5")
	}
	if strings.TrimSpace(r.Comment) == "" {
		r.Comment = "GG"
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = m.now()
	}
	return m.mutate(ctx, id, func(p *models.Product) error {
		for i := range p.Ratings {
			if p.Ratings[i].UserID == r.UserID {
				p.Ratings[i] = r
				return nil
			}
		}
		p.Ratings = append(p.Ratings, r)
		return nil
	})
}

// RecordSale takes qty units out of the variant's stock. Stock never goes below zero.
func (m *Manager) RecordSale(ctx context.Context, id, variant string, qty int) (models.Product, error) {
	if qty < 1 {
		return models.Product{}, validation.Errorf("quantity must be at least 1")
	}
	return m.mutate(ctx, id, func(p *models.Product) error {
		i := p.VariantIndex(variant)
		if i < 0 {
			return fmt.Errorf("%w %q", ErrUnknownVariant, variant)
		}
		if p.Variants[i].Stock < qty {
			return fmt.Errorf("%w: %s has %d left, %d requested", ErrInsufficientStock, p.Variants[i].Name, p.Variants[i].Stock, qty)
		}
		p.Variants[i].Stock -= qty
		p.TotalSold += qty
		return nil
	})
}

// ReverseSale undoes RecordSale when the order that caused it could not be written.
func (m *Manager) ReverseSale(ctx context.Context, id, variant string, qty int) (models.Product, error) {
	return m.mutate(ctx, id, func(p *models.Product) error {
		i := p.VariantIndex(variant)
		if i < 0 {
			return fmt.Errorf("%w %q", ErrUnknownVariant, variant)
		}
		p.Variants[i].Stock += qty
		p.TotalSold -= qty
		if p.TotalSold < 0 {
			p.TotalSold = 0
		}
		return nil
	})
}

// TopSellers returns up to n listings ordered by units sold.
func (m *Manager) TopSellers(ctx context.Context, n int) ([]models.Product, error) {
	all, err := m.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TotalSold > all[j].TotalSold })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
