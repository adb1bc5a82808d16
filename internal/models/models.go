// Package models holds the records shared by the store backends and the domain packages.
package models

import (
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

type Variant struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type Rating struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// Product is a listing. ChannelID/MessageID point at the posted listing message.
type Product struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Notes       string    `json:"notes"`
	Features    []string  `gorm:"serializer:json" json:"features"`
	Variants    []Variant `gorm:"serializer:json" json:"variants"`
	Ratings     []Rating  `gorm:"serializer:json" json:"ratings"`
	TotalSold   int       `json:"totalSold"`
	ChannelID   string    `json:"channelId"`
	MessageID   string    `json:"messageId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VariantIndex finds a variant by name, ignoring case.
func (p *Product) VariantIndex(name string) int {
	for i, v := range p.Variants {
		if strings.EqualFold(v.Name, name) {
			return i
		}
	}
	return -1
}

func (p *Product) InStock() []Variant {
	var out []Variant
	for _, v := range p.Variants {
		if v.Stock > 0 {
			out = append(out, v)
		}
	}
	return out
}

func (p *Product) TotalStock() int {
	n := 0
	for _, v := range p.Variants {
		n += v.Stock
	}
	return n
}

func (p *Product) AverageRating() (float64, int) {
	if len(p.Ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Rating
	}
	return float64(sum) / float64(len(p.Ratings)), len(p.Ratings)
}

// Clone returns a copy whose slices can be mutated without touching the original.
func (p Product) Clone() Product {
	p.Features = append([]string(nil), p.Features...)
	p.Variants = append([]Variant(nil), p.Variants...)
	p.Ratings = append([]Rating(nil), p.Ratings...)
	return p
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// PendingOrder is keyed by the ticket channel it lives in.
type PendingOrder struct {
	ChannelID     string          `gorm:"primaryKey" json:"channelId"`
	GuildID       string          `json:"guildId"`
	UserID        string          `gorm:"index" json:"userId"`
	Username      string          `json:"username"`
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	VariantName   string          `json:"variantName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric" json:"unitPrice"`
	InitialPrice  decimal.Decimal `gorm:"type:numeric" json:"initialPrice"`
	Discount      decimal.Decimal `gorm:"type:numeric" json:"discount"`
	FinalPrice    decimal.Decimal `gorm:"type:numeric" json:"finalPrice"`
	AffiliateCode string          `json:"affiliateCode,omitempty"`
	Status        OrderStatus     `json:"status"`
	Ready         bool            `json:"ready"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Order is a finalized ticket. Orders are append-only.
type Order struct {
	OrderID       string          `gorm:"primaryKey" json:"orderId"`
	ChannelID     string          `json:"channelId"`
	GuildID       string          `json:"guildId"`
	UserID        string          `gorm:"index" json:"userId"`
	Username      string          `json:"username"`
	ProductID     string          `gorm:"index" json:"productId"`
	ProductName   string          `json:"productName"`
	VariantName   string          `json:"variantName"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric" json:"unitPrice"`
	InitialPrice  decimal.Decimal `gorm:"type:numeric" json:"initialPrice"`
	Discount      decimal.Decimal `gorm:"type:numeric" json:"discount"`
	FinalPrice    decimal.Decimal `gorm:"type:numeric" json:"finalPrice"`
	AffiliateCode string          `gorm:"index" json:"affiliateCode,omitempty"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	ClosedAt      time.Time       `gorm:"index" json:"closedAt"`
	ClosedBy      string          `json:"closedBy"`
}

func (p PendingOrder) Finalize(orderID string, status OrderStatus, closedAt time.Time, closedBy string) Order {
	return Order{
		OrderID:       orderID,
		ChannelID:     p.ChannelID,
		GuildID:       p.GuildID,
		UserID:        p.UserID,
		Username:      p.Username,
		ProductID:     p.ProductID,
		ProductName:   p.ProductName,
		VariantName:   p.VariantName,
		Quantity:      p.Quantity,
		UnitPrice:     p.UnitPrice,
		InitialPrice:  p.InitialPrice,
		Discount:      p.Discount,
		FinalPrice:    p.FinalPrice,
		AffiliateCode: p.AffiliateCode,
		Status:        status,
		CreatedAt:     p.CreatedAt,
		ClosedAt:      closedAt,
		ClosedBy:      closedBy,
	}
}

type TicketKind string

const (
	TicketPurchase TicketKind = "purchase"
	TicketSupport  TicketKind = "support"
)

type TicketOwner struct {
	ChannelID string     `gorm:"primaryKey" json:"channelId"`
	UserID    string     `json:"userId"`
	Kind      TicketKind `json:"kind"`
	OrderID   string     `json:"orderId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Affiliate struct {
	UserID       string    `gorm:"primaryKey" json:"userId"`
	Username     string    `json:"username"`
	Code         string    `gorm:"uniqueIndex" json:"code"`
	Tier         string    `json:"tier,omitempty"`
	Referrals    []string  `gorm:"serializer:json" json:"referrals"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (a *Affiliate) HasReferral(orderID string) bool {
	for _, id := range a.Referrals {
		if id == orderID {
			return true
		}
	}
	return false
}

type Tier struct {
	Name       string          `gorm:"primaryKey" json:"name"`
	Percentage decimal.Decimal `gorm:"type:numeric" json:"percentage"`
}

type GiveawayStatus string

const (
	GiveawayRunning GiveawayStatus = "running"
	GiveawayEnded   GiveawayStatus = "ended"
)

// Giveaway is keyed by its announcement message id.
type Giveaway struct {
	MessageID        string         `gorm:"primaryKey" json:"messageId"`
	ChannelID        string         `json:"channelId"`
	GuildID          string         `json:"guildId"`
	HostID           string         `json:"hostId"`
	Prize            string         `json:"prize"`
	WinnerCount      int            `json:"winnerCount"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          time.Time      `gorm:"index" json:"endTime"`
	Participants     []string       `gorm:"serializer:json" json:"participants"`
	RequiredWinnerID string         `json:"requiredWinnerId,omitempty"`
	Status           GiveawayStatus `gorm:"index" json:"status"`
	Winners          []string       `gorm:"serializer:json" json:"winners"`
}

func (g *Giveaway) HasEntered(userID string) bool {
	for _, id := range g.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

type Settings struct {
	ID                uint   `gorm:"primaryKey" json:"-"`
	TicketCategoryID  string `json:"ticketCategoryId"`
	SupportCategoryID string `json:"supportCategoryId"`
	TestMode          bool   `json:"testMode"`
}

type ViolationType string

const (
	ViolationPhishing      ViolationType = "phishing"
	ViolationDangerousFile ViolationType = "dangerous_file"
	ViolationSpam          ViolationType = "spam"
)

type Violation struct {
	ID        string        `gorm:"primaryKey" json:"id"`
	UserID    string        `gorm:"index" json:"userId"`
	GuildID   string        `json:"guildId"`
	ChannelID string        `json:"channelId"`
	Type      ViolationType `json:"type"`
	Reason    string        `json:"reason"`
	Timestamp time.Time     `json:"timestamp"`
}

// Warnings counts violations per type for one user.
type Warnings map[ViolationType]int

func (w Warnings) Total() int {
	n := 0
	for _, c := range w {
		n += c
	}
	return n
}
