// Package jsonfile keeps every collection in memory and mirrors it to one
// JSON file per collection under a data directory. Orders are an append-only
// JSON-lines log.
package jsonfile

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	productsFile   = "products.json"
	ordersFile     = "orders.jsonl"
	pendingFile    = "pending_orders.json"
	ownersFile     = "ticket_owners.json"
	affiliatesFile = "affiliates.json"
	tiersFile      = "affiliate_tiers.json"
	giveawaysFile  = "giveaways.json"
	settingsFile   = "settings.json"
	warningsFile   = "warnings.json"
	violationsFile = "violation_history.json"
	phishingFile   = "phishing_domains.json"
)

// Store mutates a copy of a collection, writes it, and only then swaps it in,
// so memory never runs ahead of disk.
type Store struct {
	dir string

	mu         sync.RWMutex
	products   []models.Product
	orders     []models.Order
	orderIdx   map[string]int
	ordersLog  *os.File
	pending    map[string]models.PendingOrder
	owners     map[string]models.TicketOwner
	affiliates map[string]models.Affiliate
	tiers      []models.Tier
	giveaways  map[string]models.Giveaway
	settings   models.Settings
	warnings   map[string]models.Warnings
	violations map[string][]models.Violation
	phishing   []string
}

var _ store.Store = (*Store)(nil)

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir:        dir,
		orderIdx:   make(map[string]int),
		pending:    make(map[string]models.PendingOrder),
		owners:     make(map[string]models.TicketOwner),
		affiliates: make(map[string]models.Affiliate),
		giveaways:  make(map[string]models.Giveaway),
		warnings:   make(map[string]models.Warnings),
		violations: make(map[string][]models.Violation),
	}
	loads := []struct {
		file string
		v    any
	}{
		{productsFile, &s.products},
		{pendingFile, &s.pending},
		{ownersFile, &s.owners},
		{affiliatesFile, &s.affiliates},
		{tiersFile, &s.tiers},
		{giveawaysFile, &s.giveaways},
		{settingsFile, &s.settings},
		{warningsFile, &s.warnings},
		{violationsFile, &s.violations},
		{phishingFile, &s.phishing},
	}
	for _, l := range loads {
		if err := readJSON(s.path(l.file), l.v); err != nil {
			return nil, err
		}
	}
	// JSON null decodes to a nil map.
	if s.pending == nil {
		s.pending = make(map[string]models.PendingOrder)
	}
	if s.owners == nil {
		s.owners = make(map[string]models.TicketOwner)
	}
	if s.affiliates == nil {
		s.affiliates = make(map[string]models.Affiliate)
	}
	if s.giveaways == nil {
		s.giveaways = make(map[string]models.Giveaway)
	}
	if s.warnings == nil {
		s.warnings = make(map[string]models.Warnings)
	}
	if s.violations == nil {
		s.violations = make(map[string][]models.Violation)
	}

	good, needNewline, err := readLines(s.path(ordersFile), func(o models.Order) error {
		if _, dup := s.orderIdx[o.OrderID]; dup {
			return fmt.Errorf("duplicate order id %s in %s", o.OrderID, ordersFile)
		}
		s.orderIdx[o.OrderID] = len(s.orders)
		s.orders = append(s.orders, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.path(ordersFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(good); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	if needNewline {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return nil, err
		}
	}
	s.ordersLog = f
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ordersLog == nil {
		return nil
	}
	err := s.ordersLog.Close()
	s.ordersLog = nil
	return err
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, store.ErrNotFound)
}

// --- products ---

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	for i, p := range s.products {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return models.Product{}, notFound("product", id)
}

func (s *Store) SaveProduct(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Product, 0, len(s.products)+1)
	replaced := false
	for _, cur := range s.products {
		if cur.ID == p.ID {
			next = append(next, p.Clone())
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, p.Clone())
	}
	if err := writeJSON(s.path(productsFile), next); err != nil {
		return err
	}
	s.products = next
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Product, 0, len(s.products))
	for _, cur := range s.products {
		if cur.ID != id {
			next = append(next, cur)
		}
	}
	if len(next) == len(s.products) {
		return notFound("product", id)
	}
	if err := writeJSON(s.path(productsFile), next); err != nil {
		return err
	}
	s.products = next
	return nil
}

// --- orders ---

func (s *Store) AppendOrder(_ context.Context, o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.orderIdx[o.OrderID]; dup {
		return fmt.Errorf("order %q: %w", o.OrderID, store.ErrExists)
	}
	if s.ordersLog == nil {
		return os.ErrClosed
	}
	line, err := json.Marshal(o)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.ordersLog.Write(line); err != nil {
		return err
	}
	if err := s.ordersLog.Sync(); err != nil {
		return err
	}
	s.orderIdx[o.OrderID] = len(s.orders)
	s.orders = append(s.orders, o)
	return nil
}

func (s *Store) ListOrders(_ context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Order(nil), s.orders...), nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.orderIdx[orderID]; ok {
		return s.orders[i], nil
	}
	return models.Order{}, notFound("order", orderID)
}

// --- pending orders ---

func (s *Store) ListPending(_ context.Context) ([]models.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PendingOrder, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetPending(_ context.Context, channelID string) (models.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[channelID]
	if !ok {
		return models.PendingOrder{}, notFound("pending order", channelID)
	}
	return p, nil
}

func (s *Store) SavePending(_ context.Context, p models.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyMap(s.pending)
	next[p.ChannelID] = p
	if err := writeJSON(s.path(pendingFile), next); err != nil {
		return err
	}
	s.pending = next
	return nil
}

func (s *Store) DeletePending(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[channelID]; !ok {
		return notFound("pending order", channelID)
	}
	next := copyMap(s.pending)
	delete(next, channelID)
	if err := writeJSON(s.path(pendingFile), next); err != nil {
		return err
	}
	s.pending = next
	return nil
}

// --- ticket owners ---

func (s *Store) ListOwners(_ context.Context) ([]models.TicketOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TicketOwner, 0, len(s.owners))
	for _, o := range s.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetOwner(_ context.Context, channelID string) (models.TicketOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[channelID]
	if !ok {
		return models.TicketOwner{}, notFound("ticket owner", channelID)
	}
	return o, nil
}

func (s *Store) SaveOwner(_ context.Context, o models.TicketOwner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyMap(s.owners)
	next[o.ChannelID] = o
	if err := writeJSON(s.path(ownersFile), next); err != nil {
		return err
	}
	s.owners = next
	return nil
}

func (s *Store) DeleteOwner(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[channelID]; !ok {
		return notFound("ticket owner", channelID)
	}
	next := copyMap(s.owners)
	delete(next, channelID)
	if err := writeJSON(s.path(ownersFile), next); err != nil {
		return err
	}
	s.owners = next
	return nil
}

// --- affiliates ---

func cloneAffiliate(a models.Affiliate) models.Affiliate {
	a.Referrals = append([]string(nil), a.Referrals...)
	return a
}

func (s *Store) ListAffiliates(_ context.Context) ([]models.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Affiliate, 0, len(s.affiliates))
	for _, a := range s.affiliates {
		out = append(out, cloneAffiliate(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *Store) GetAffiliate(_ context.Context, userID string) (models.Affiliate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.affiliates[userID]
	if !ok {
		return models.Affiliate{}, notFound("affiliate", userID)
	}
	return cloneAffiliate(a), nil
}

func (s *Store) SaveAffiliate(_ context.Context, a models.Affiliate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.affiliates {
		if id != a.UserID && cur.Code == a.Code {
			return fmt.Errorf("affiliate code %q: %w", a.Code, store.ErrExists)
		}
	}
	next := copyMap(s.affiliates)
	next[a.UserID] = cloneAffiliate(a)
	if err := writeJSON(s.path(affiliatesFile), next); err != nil {
		return err
	}
	s.affiliates = next
	return nil
}

func (s *Store) ListTiers(_ context.Context) ([]models.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Tier(nil), s.tiers...), nil
}

func (s *Store) SaveTier(_ context.Context, t models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Tier, 0, len(s.tiers)+1)
	replaced := false
	for _, cur := range s.tiers {
		if strings.EqualFold(cur.Name, t.Name) {
			next = append(next, t)
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, t)
	}
	if err := writeJSON(s.path(tiersFile), next); err != nil {
		return err
	}
	s.tiers = next
	return nil
}

func (s *Store) DeleteTier(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Tier, 0, len(s.tiers))
	for _, cur := range s.tiers {
		if !strings.EqualFold(cur.Name, name) {
			next = append(next, cur)
		}
	}
	if len(next) == len(s.tiers) {
		return notFound("tier", name)
	}
	if err := writeJSON(s.path(tiersFile), next); err != nil {
		return err
	}
	s.tiers = next
	return nil
}

// --- giveaways ---

func cloneGiveaway(g models.Giveaway) models.Giveaway {
	g.Participants = append([]string(nil), g.Participants...)
	g.Winners = append([]string(nil), g.Winners...)
	return g
}

func (s *Store) ListGiveaways(_ context.Context) ([]models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Giveaway, 0, len(s.giveaways))
	for _, g := range s.giveaways {
		out = append(out, cloneGiveaway(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (s *Store) GetGiveaway(_ context.Context, messageID string) (models.Giveaway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.giveaways[messageID]
	if !ok {
		return models.Giveaway{}, notFound("giveaway", messageID)
	}
	return cloneGiveaway(g), nil
}

func (s *Store) SaveGiveaway(_ context.Context, g models.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyMap(s.giveaways)
	next[g.MessageID] = cloneGiveaway(g)
	if err := writeJSON(s.path(giveawaysFile), next); err != nil {
		return err
	}
	s.giveaways = next
	return nil
}

// --- settings ---

func (s *Store) GetSettings(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, st models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.path(settingsFile), st); err != nil {
		return err
	}
	s.settings = st
	return nil
}

// --- security ---

func (s *Store) GetWarnings(_ context.Context, userID string) (models.Warnings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.Warnings{}
	for k, v := range s.warnings[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SaveWarnings(_ context.Context, userID string, w models.Warnings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyMap(s.warnings)
	cp := models.Warnings{}
	for k, v := range w {
		cp[k] = v
	}
	next[userID] = cp
	if err := writeJSON(s.path(warningsFile), next); err != nil {
		return err
	}
	s.warnings = next
	return nil
}

func (s *Store) ClearWarnings(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.warnings[userID]; !ok {
		return nil
	}
	next := copyMap(s.warnings)
	delete(next, userID)
	if err := writeJSON(s.path(warningsFile), next); err != nil {
		return err
	}
	s.warnings = next
	return nil
}

func (s *Store) AppendViolation(_ context.Context, v models.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyMap(s.violations)
	next[v.UserID] = append(append([]models.Violation(nil), s.violations[v.UserID]...), v)
	if err := writeJSON(s.path(violationsFile), next); err != nil {
		return err
	}
	s.violations = next
	return nil
}

func (s *Store) ListViolations(_ context.Context, userID string) ([]models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Violation(nil), s.violations[userID]...), nil
}

func (s *Store) ListPhishingDomains(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.phishing...), nil
}

func (s *Store) SavePhishingDomains(_ context.Context, domains []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]string{}, domains...)
	if err := writeJSON(s.path(phishingFile), next); err != nil {
		return err
	}
	s.phishing = next
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
