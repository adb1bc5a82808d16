// Package affiliate tracks referral codes, named commission tiers and the
// orders credited to each affiliate.
package affiliate

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotRegistered = errors.New("not registered as an affiliate")
	ErrUnknownCode   = errors.New("unknown affiliate code")
	ErrSelfReferral  = errors.New("own affiliate code")
	ErrUnknownTier   = errors.New("unknown tier")
)

const maxBaseLen = 10

var hundred = decimal.NewFromInt(100)

type Ledger struct {
	mu     sync.Mutex
	repo   store.Affiliates
	orders store.Orders
	log    *zap.Logger
	now    func() time.Time
	suffix func() int
}

func NewLedger(repo store.Affiliates, orders store.Orders, log *zap.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		orders: orders,
		log:    log,
		now:    time.Now,
		suffix: func() int { return 100 + rand.IntN(900) },
	}
}

// BaseCode lowercases the username, keeps only a-z and 0-9 and truncates it.
func BaseCode(username string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxBaseLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// Register is idempotent: an existing affiliate is returned unchanged with created=false.
func (l *Ledger) Register(ctx context.Context, userID, username string) (a models.Affiliate, created bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.register(ctx, userID, username)
}

func (l *Ledger) register(ctx context.Context, userID, username string) (models.Affiliate, bool, error) {
	if a, err := l.repo.GetAffiliate(ctx, userID); err == nil {
		return a, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Affiliate{}, false, err
	}

	all, err := l.repo.ListAffiliates(ctx)
	if err != nil {
		return models.Affiliate{}, false, err
	}
	taken := make(map[string]bool, len(all))
	for _, a := range all {
		taken[strings.ToLower(a.Code)] = true
	}
	base := BaseCode(username)
	code := ""
	// 900 suffixes per base; give up well past the point of exhausting them.
	for i := 0; i < 5000; i++ {
		c := fmt.Sprintf("%s-%d", base, l.suffix())
		if !taken[c] {
			code = c
			break
		}
	}
	if code == "" {
		return models.Affiliate{}, false, fmt.Errorf("no free affiliate code for base %q", base)
	}

	a := models.Affiliate{
		UserID:       userID,
		Username:     username,
		Code:         code,
		RegisteredAt: l.now(),
	}
	if err := l.repo.SaveAffiliate(ctx, a); err != nil {
		return models.Affiliate{}, false, err
	}
	l.log.Info("affiliate registered", zap.String("user_id", userID), zap.String("code", code))
	return a, true, nil
}

func (l *Ledger) Get(ctx context.Context, userID string) (models.Affiliate, error) {
	a, err := l.repo.GetAffiliate(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Affiliate{}, ErrNotRegistered
	}
	return a, err
}

// Resolve looks a code up ignoring case, the way buyers type it.
func (l *Ledger) Resolve(ctx context.Context, code string) (models.Affiliate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Affiliate{}, ErrUnknownCode
	}
	all, err := l.repo.ListAffiliates(ctx)
	if err != nil {
		return models.Affiliate{}, err
	}
	for _, a := range all {
		if strings.EqualFold(a.Code, code) {
			return a, nil
		}
	}
	return models.Affiliate{}, fmt.Errorf("%w %q", ErrUnknownCode, code)
}

// CheckRedeemable resolves code for buyerID, refusing the buyer's own code.
func (l *Ledger) CheckRedeemable(ctx context.Context, code, buyerID string) (models.Affiliate, error) {
	a, err := l.Resolve(ctx, code)
	if err != nil {
		return models.Affiliate{}, err
	}
	if a.UserID == buyerID {
		return models.Affiliate{}, ErrSelfReferral
	}
	return a, nil
}

// Credit appends orderID to the affiliate owning code. The code must match the
// stored form exactly. Crediting the same order twice is a no-op.
func (l *Ledger) Credit(ctx context.Context, code, orderID string) (models.Affiliate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.repo.ListAffiliates(ctx)
	if err != nil {
		return models.Affiliate{}, err
	}
	for _, a := range all {
		if a.Code != code {
			continue
		}
		if a.HasReferral(orderID) {
			return a, nil
		}
		a.Referrals = append(a.Referrals, orderID)
		if err := l.repo.SaveAffiliate(ctx, a); err != nil {
			return models.Affiliate{}, err
		}
		l.log.Info("affiliate credited", zap.String("code", code), zap.String("order_id", orderID))
		return a, nil
	}
	return models.Affiliate{}, fmt.Errorf("%w %q", ErrUnknownCode, code)
}

// --- tiers ---

type tierInput struct {
	Name       string          `validate:"required,max=50"`
	Percentage decimal.Decimal `validate:"percent"`
}

func (l *Ledger) CreateTier(ctx context.Context, name string, pct decimal.Decimal) (models.Tier, error) {
	in := tierInput{Name: strings.TrimSpace(name), Percentage: pct}
	if err := validation.Struct(in); err != nil {
		return models.Tier{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.findTier(ctx, in.Name); err == nil {
		return models.Tier{}, validation.Errorf("tier %q already exists", in.Name)
	} else if !errors.Is(err, ErrUnknownTier) {
		return models.Tier{}, err
	}
	t := models.Tier{Name: in.Name, Percentage: in.Percentage}
	if err := l.repo.SaveTier(ctx, t); err != nil {
		return models.Tier{}, err
	}
	return t, nil
}

func (l *Ledger) DeleteTier(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.repo.DeleteTier(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w %q", ErrUnknownTier, name)
	}
	return err
}

func (l *Ledger) ListTiers(ctx context.Context) ([]models.Tier, error) {
	tiers, err := l.repo.ListTiers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Percentage.LessThan(tiers[j].Percentage) })
	return tiers, nil
}

func (l *Ledger) findTier(ctx context.Context, name string) (models.Tier, error) {
	tiers, err := l.repo.ListTiers(ctx)
	if err != nil {
		return models.Tier{}, err
	}
	for _, t := range tiers {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return models.Tier{}, fmt.Errorf("%w %q", ErrUnknownTier, name)
}

// AssignTier registers the user first when needed.
func (l *Ledger) AssignTier(ctx context.Context, userID, username, tierName string) (models.Affiliate, models.Tier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.findTier(ctx, tierName)
	if err != nil {
		return models.Affiliate{}, models.Tier{}, err
	}
	a, _, err := l.register(ctx, userID, username)
	if err != nil {
		return models.Affiliate{}, models.Tier{}, err
	}
	a.Tier = t.Name
	if err := l.repo.SaveAffiliate(ctx, a); err != nil {
		return models.Affiliate{}, models.Tier{}, err
	}
	return a, t, nil
}

// Rate is the assigned tier's percentage as a fraction; zero without a tier.
func (l *Ledger) Rate(ctx context.Context, a models.Affiliate) (decimal.Decimal, error) {
	if a.Tier == "" {
		return decimal.Zero, nil
	}
	t, err := l.findTier(ctx, a.Tier)
	if errors.Is(err, ErrUnknownTier) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return t.Percentage.Div(hundred), nil
}

type Stats struct {
	Affiliate models.Affiliate
	Rate      decimal.Decimal
	Completed int
	Revenue   decimal.Decimal
	Earnings  decimal.Decimal
}

// Stats sums final prices of referred orders that still resolve to completed
// orders. Missing orders contribute nothing.
func (l *Ledger) Stats(ctx context.Context, userID string) (Stats, error) {
	a, err := l.Get(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	rate, err := l.Rate(ctx, a)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Affiliate: a, Rate: rate, Revenue: decimal.Zero}
	for _, id := range a.Referrals {
		o, err := l.orders.GetOrder(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Stats{}, err
		}
		if o.Status != models.StatusCompleted {
			continue
		}
		st.Completed++
		st.Revenue = st.Revenue.Add(o.FinalPrice)
	}
	st.Earnings = st.Revenue.Mul(rate).Round(2)
	return st, nil
}

type Standing struct {
	Code     string
	UserID   string
	Username string
	Orders   int
	Revenue  decimal.Decimal
}

// Leaderboard ranks affiliates by completed orders carrying their code. Zero
// from/to leave that side of the range open.
func (l *Ledger) Leaderboard(ctx context.Context, from, to time.Time, limit int) ([]Standing, error) {
	orders, err := l.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	all, err := l.repo.ListAffiliates(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]models.Affiliate, len(all))
	for _, a := range all {
		byCode[strings.ToLower(a.Code)] = a
	}

	tally := make(map[string]*Standing)
	for _, o := range orders {
		if o.Status != models.StatusCompleted || o.AffiliateCode == "" {
			continue
		}
		if !from.IsZero() && o.ClosedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.ClosedAt.After(to) {
			continue
		}
		key := strings.ToLower(o.AffiliateCode)
		s, ok := tally[key]
		if !ok {
			s = &Standing{Code: o.AffiliateCode, Revenue: decimal.Zero}
			if a, ok := byCode[key]; ok {
				s.Code, s.UserID, s.Username = a.Code, a.UserID, a.Username
			}
			tally[key] = s
		}
		s.Orders++
		s.Revenue = s.Revenue.Add(o.FinalPrice)
	}

	out := make([]Standing, 0, len(tally))
	for _, s := range tally {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].Code < out[j].Code
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
