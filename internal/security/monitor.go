// Package security screens guild messages for phishing links, dangerous
// attachments and spam, and keeps per-user warning counters and a violation log.
package security

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"fmt"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
	"go.uber.org/zap"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// Message is the part of a chat message the monitor looks at.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string
	FromBot     bool
	Content     string
	Attachments []string
}

// Enforcer applies the consequences of a violation on the chat platform.
type Enforcer interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	Report(ctx context.Context, r Result) error
}

type Config struct {
	SpamThreshold       int
	SpamWindow          time.Duration
	WarningLimit        int
	TimeoutDuration     time.Duration
	DangerousExtensions []string

	// Exempt reports users that are never screened.
	Exempt func(userID string) bool
}

// Result describes a detected violation and what was done about it.
type Result struct {
	Violation models.Violation
	Username  string
	Warnings  int
	TimedOut  bool
}

type Monitor struct {
	repo store.Security
	enf  Enforcer
	cfg  Config
	log  *zap.Logger
	now  func() time.Time

	// users serializes warning updates per user.
	users *xsync.MapOf[string, *sync.Mutex]

	mu      sync.Mutex
	recent  map[string][]time.Time
	domains []string
	loaded  bool
}

func NewMonitor(repo store.Security, enf Enforcer, cfg Config, log *zap.Logger) *Monitor {
	if cfg.Exempt == nil {
		cfg.Exempt = func(string) bool { return false }
	}
	return &Monitor{
		repo:   repo,
		enf:    enf,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		users:  xsync.NewMapOf[*sync.Mutex](),
		recent: make(map[string][]time.Time),
	}
}

// Screen runs the checks in order and acts on the first one that trips.
// It returns nil when the message is clean or exempt.
func (m *Monitor) Screen(ctx context.Context, msg Message) (*Result, error) {
	if msg.FromBot || msg.GuildID == "" || m.cfg.Exempt(msg.AuthorID) {
		return nil, nil
	}
	typ, reason, err := m.detect(ctx, msg)
	if err != nil || typ == "" {
		return nil, err
	}
	return m.punish(ctx, msg, typ, reason)
}

func (m *Monitor) detect(ctx context.Context, msg Message) (models.ViolationType, string, error) {
	hit, err := m.phishing(ctx, msg.Content)
	if err != nil {
		return "", "", err
	}
	if hit != "" {
		return models.ViolationPhishing, "Phishing link detected: " + hit, nil
	}
	if name := m.dangerousFile(msg.Attachments); name != "" {
		return models.ViolationDangerousFile, "Dangerous file extension: " + name, nil
	}
	if m.spam(msg.AuthorID, msg.ChannelID) {
		return models.ViolationSpam, "Message spam detected", nil
	}
	return "", "", nil
}

// phishing returns the first listed domain found inside a URL of content.
func (m *Monitor) phishing(ctx context.Context, content string) (string, error) {
	urls := urlPattern.FindAllString(content, -1)
	if len(urls) == 0 {
		return "", nil
	}
	domains, err := m.Domains(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range urls {
		u = strings.ToLower(u)
		for _, d := range domains {
			if strings.Contains(u, d) {
				return d, nil
			}
		}
	}
	return "", nil
}

func (m *Monitor) dangerousFile(names []string) string {
	for _, n := range names {
		lower := strings.ToLower(n)
		for _, ext := range m.cfg.DangerousExtensions {
			if strings.HasSuffix(lower, ext) {
				return n
			}
		}
	}
	return ""
}

// spam records the message and reports whether the author posted at least
// SpamThreshold messages in the channel within SpamWindow.
func (m *Monitor) spam(userID, channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := userID + "-" + channelID
	kept := m.recent[key][:0]
	for _, t := range m.recent[key] {
		if now.Sub(t) < m.cfg.SpamWindow {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	m.recent[key] = kept
	return len(kept) >= m.cfg.SpamThreshold
}

// PruneTracker drops spam history older than the window.
func (m *Monitor) PruneTracker() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, ts := range m.recent {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= m.cfg.SpamWindow {
			delete(m.recent, k)
			removed++
		}
	}
	return removed
}

func (m *Monitor) lockUser(userID string) func() {
	mu, _ := m.users.LoadOrStore(userID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// addWarning increments one counter and returns its new value.
func (m *Monitor) addWarning(ctx context.Context, userID string, typ models.ViolationType) (int, error) {
	defer m.lockUser(userID)()
	w, err := m.repo.GetWarnings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if w == nil {
		w = models.Warnings{}
	}
	w[typ]++
	if err := m.repo.SaveWarnings(ctx, userID, w); err != nil {
		return 0, err
	}
	return w[typ], nil
}

func (m *Monitor) punish(ctx context.Context, msg Message, typ models.ViolationType, reason string) (*Result, error) {
	if err := m.enf.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		m.log.Warn("failed to delete flagged message", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}

	count, err := m.addWarning(ctx, msg.AuthorID, typ)
	if err != nil {
		return nil, err
	}
	v := models.Violation{
		ID:        uuid.NewString(),
		UserID:    msg.AuthorID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Type:      typ,
		Reason:    reason,
		Timestamp: m.now(),
	}
	if err := m.repo.AppendViolation(ctx, v); err != nil {
		return nil, err
	}

	res := &Result{Violation: v, Username: msg.AuthorName, Warnings: count}
	if res.Warnings >= m.cfg.WarningLimit {
		until := m.now().Add(m.cfg.TimeoutDuration)
		if err := m.enf.Timeout(ctx, msg.GuildID, msg.AuthorID, until, fmt.Sprintf("Reached %d %s warnings", res.Warnings, typ)); err != nil {
			m.log.Warn("timeout failed", zap.String("user_id", msg.AuthorID), zap.Error(err))
		} else {
			res.TimedOut = true
		}
	}
	if err := m.enf.Report(ctx, *res); err != nil {
		m.log.Warn("security report not posted", zap.Error(err))
	}
	m.log.Info("security violation",
		zap.String("user_id", msg.AuthorID),
		zap.String("type", string(typ)),
		zap.Int("warnings", res.Warnings),
		zap.Bool("timed_out", res.TimedOut))
	return res, nil
}

// --- phishing list ---

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

// Domains returns the phishing list, loading it from the store once.
func (m *Monitor) Domains(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), m.domains...), nil
}

func (m *Monitor) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	d, err := m.repo.ListPhishingDomains(ctx)
	if err != nil {
		return err
	}
	m.domains, m.loaded = d, true
	return nil
}

// AddDomain reports false when the domain was already listed.
func (m *Monitor) AddDomain(ctx context.Context, domain string) (bool, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return false, validation.Errorf("domain is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return false, err
	}
	for _, d := range m.domains {
		if d == domain {
			return false, nil
		}
	}
	next := append(append([]string(nil), m.domains...), domain)
	if err := m.repo.SavePhishingDomains(ctx, next); err != nil {
		return false, err
	}
	m.domains = next
	return true, nil
}

// RemoveDomain reports false when the domain was not listed.
func (m *Monitor) RemoveDomain(ctx context.Context, domain string) (bool, error) {
	domain = normalizeDomain(domain)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return false, err
	}
	next := make([]string, 0, len(m.domains))
	for _, d := range m.domains {
		if d != domain {
			next = append(next, d)
		}
	}
	if len(next) == len(m.domains) {
		return false, nil
	}
	if err := m.repo.SavePhishingDomains(ctx, next); err != nil {
		return false, err
	}
	m.domains = next
	return true, nil
}

// --- admin lookups ---

func (m *Monitor) Warnings(ctx context.Context, userID string) (models.Warnings, error) {
	w, err := m.repo.GetWarnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = models.Warnings{}
	}
	return w, nil
}

// ClearWarnings resets the counters. The violation log is kept.
func (m *Monitor) ClearWarnings(ctx context.Context, userID string) error {
	defer m.lockUser(userID)()
	return m.repo.ClearWarnings(ctx, userID)
}

// History returns up to limit violations, newest first.
func (m *Monitor) History(ctx context.Context, userID string, limit int) ([]models.Violation, int, error) {
	all, err := m.repo.ListViolations(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	total := len(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

type Risk string

const (
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

type Profile struct {
	UserID         string
	AccountAgeDays int
	Violations     int
	Risk           Risk
}

// Assess rates a user by account age and violation count. Later rules win.
func Assess(accountAgeDays, violations int) Risk {
	risk := RiskLow
	if accountAgeDays < 7 {
		risk = RiskMedium
	}
	if violations > 3 {
		risk = RiskHigh
	}
	if accountAgeDays < 2 && violations > 0 {
		risk = RiskCritical
	}
	return risk
}

func (m *Monitor) Profile(ctx context.Context, userID string, createdAt time.Time) (Profile, error) {
	all, err := m.repo.ListViolations(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	days := int(m.now().Sub(createdAt).Hours() / 24)
	return Profile{
		UserID:         userID,
		AccountAgeDays: days,
		Violations:     len(all),
		Risk:           Assess(days, len(all)),
	}, nil
}
