// Package giveaway runs time-boxed entry contests. A periodic Tick finalizes
// every running giveaway whose end time has passed; ended giveaways are never
// touched again.
package giveaway

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnknown         = errors.New("giveaway not found")
	ErrEnded           = errors.New("this giveaway has already ended")
	ErrNotEnded        = errors.New("this giveaway has not ended yet")
	ErrAlreadyEntered  = errors.New("you have already entered this giveaway")
	ErrNoParticipants  = errors.New("there were no participants")
	ErrInvalidDuration = errors.New("invalid duration, use 10m, 1h, 2d or 1w")
)

// Announcer shows giveaways on the chat platform.
type Announcer interface {
	Announce(ctx context.Context, channelID string, g models.Giveaway) (messageID string, err error)
	AnnounceWinners(ctx context.Context, g models.Giveaway) error
	AnnounceReroll(ctx context.Context, channelID string, g models.Giveaway, winnerID string) error
}

// Scheduler keeps giveaways in the store. pick returns a random index in [0,n).
type Scheduler struct {
	mu   sync.Mutex
	repo store.Giveaways
	ann  Announcer
	log  *zap.Logger
	now  func() time.Time
	pick func(n int) int
}

func NewScheduler(repo store.Giveaways, ann Announcer, log *zap.Logger) *Scheduler {
	return &Scheduler{repo: repo, ann: ann, log: log, now: time.Now, pick: rand.IntN}
}

var unitDurations = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration accepts a positive count followed by s, m, h, d or w.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, ErrInvalidDuration
	}
	unit, ok := unitDurations[s[len(s)-1]]
	if !ok {
		return 0, ErrInvalidDuration
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, ErrInvalidDuration
	}
	return time.Duration(n) * unit, nil
}

type StartInput struct {
	GuildID          string `validate:"required" label:"guild"`
	ChannelID        string `validate:"required" label:"channel"`
	HostID           string
	Prize            string `validate:"required,max=256"`
	Winners          int    `validate:"min=1,max=50" label:"winners"`
	Duration         string `validate:"required"`
	RequiredWinnerID string
}

// Start posts the announcement and saves the giveaway under its message id.
func (s *Scheduler) Start(ctx context.Context, in StartInput) (models.Giveaway, error) {
	if err := validation.Struct(in); err != nil {
		return models.Giveaway{}, err
	}
	d, err := ParseDuration(in.Duration)
	if err != nil {
		return models.Giveaway{}, validation.Errorf("%v", err)
	}
	now := s.now()
	g := models.Giveaway{
		ChannelID:        in.ChannelID,
		GuildID:          in.GuildID,
		HostID:           in.HostID,
		Prize:            in.Prize,
		WinnerCount:      in.Winners,
		StartTime:        now,
		EndTime:          now.Add(d),
		RequiredWinnerID: in.RequiredWinnerID,
		Status:           models.GiveawayRunning,
	}
	msgID, err := s.ann.Announce(ctx, in.ChannelID, g)
	if err != nil {
		return models.Giveaway{}, fmt.Errorf("announce giveaway: %w", err)
	}
	g.MessageID = msgID

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveGiveaway(ctx, g); err != nil {
		return models.Giveaway{}, err
	}
	s.log.Info("giveaway started", zap.String("message_id", msgID), zap.String("prize", g.Prize), zap.Time("ends", g.EndTime))
	return g, nil
}

func (s *Scheduler) get(ctx context.Context, messageID string) (models.Giveaway, error) {
	g, err := s.repo.GetGiveaway(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Giveaway{}, ErrUnknown
	}
	return g, err
}

// Enter adds userID to the participants once.
func (s *Scheduler) Enter(ctx context.Context, messageID, userID string) (models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.get(ctx, messageID)
	if err != nil {
		return models.Giveaway{}, err
	}
	if g.Status == models.GiveawayEnded {
		return models.Giveaway{}, ErrEnded
	}
	if g.HasEntered(userID) {
		return g, ErrAlreadyEntered
	}
	g.Participants = append(g.Participants, userID)
	if err := s.repo.SaveGiveaway(ctx, g); err != nil {
		return models.Giveaway{}, err
	}
	return g, nil
}

// EndEarly moves the end time into the past; the next Tick finalizes it.
func (s *Scheduler) EndEarly(ctx context.Context, messageID string) (models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.get(ctx, messageID)
	if err != nil {
		return models.Giveaway{}, err
	}
	if g.Status != models.GiveawayRunning {
		return models.Giveaway{}, ErrEnded
	}
	g.EndTime = s.now().Add(-time.Second)
	if err := s.repo.SaveGiveaway(ctx, g); err != nil {
		return models.Giveaway{}, err
	}
	return g, nil
}

// Reroll draws one participant of an ended giveaway. Stored winners stay as they are.
func (s *Scheduler) Reroll(ctx context.Context, messageID, channelID string) (string, error) {
	g, err := s.get(ctx, messageID)
	if err != nil {
		return "", err
	}
	if g.Status != models.GiveawayEnded {
		return "", ErrNotEnded
	}
	if len(g.Participants) == 0 {
		return "", ErrNoParticipants
	}
	winner := g.Participants[s.pick(len(g.Participants))]
	if channelID == "" {
		channelID = g.ChannelID
	}
	if err := s.ann.AnnounceReroll(ctx, channelID, g, winner); err != nil {
		return winner, fmt.Errorf("announce reroll: %w", err)
	}
	s.log.Info("giveaway rerolled", zap.String("message_id", messageID), zap.String("winner", winner))
	return winner, nil
}

// Tick finalizes running giveaways past their end time and returns them.
func (s *Scheduler) Tick(ctx context.Context) ([]models.Giveaway, error) {
	s.mu.Lock()
	all, err := s.repo.ListGiveaways(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.now()
	var ended []models.Giveaway
	for _, g := range all {
		if g.Status != models.GiveawayRunning || g.EndTime.After(now) {
			continue
		}
		g.Winners = s.SelectWinners(g)
		g.Status = models.GiveawayEnded
		if err := s.repo.SaveGiveaway(ctx, g); err != nil {
			s.log.Error("failed to finalize giveaway", zap.String("message_id", g.MessageID), zap.Error(err))
			continue
		}
		ended = append(ended, g)
	}
	s.mu.Unlock()

	sort.Slice(ended, func(i, j int) bool { return ended[i].EndTime.Before(ended[j].EndTime) })
	for _, g := range ended {
		s.log.Info("giveaway ended", zap.String("message_id", g.MessageID), zap.Strings("winners", g.Winners))
		if err := s.ann.AnnounceWinners(ctx, g); err != nil {
			s.log.Warn("giveaway result not posted", zap.String("message_id", g.MessageID), zap.Error(err))
		}
	}
	return ended, nil
}

// SelectWinners returns the required winner when they entered, otherwise up to
// WinnerCount distinct participants drawn uniformly.
func (s *Scheduler) SelectWinners(g models.Giveaway) []string {
	if len(g.Participants) == 0 {
		return nil
	}
	if g.RequiredWinnerID != "" && g.HasEntered(g.RequiredWinnerID) {
		return []string{g.RequiredWinnerID}
	}
	pool := append([]string(nil), g.Participants...)
	n := min(g.WinnerCount, len(pool))
	for i := 0; i < n; i++ {
		j := i + s.pick(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Running lists giveaways that have not ended, soonest first.
func (s *Scheduler) Running(ctx context.Context) ([]models.Giveaway, error) {
	all, err := s.repo.ListGiveaways(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Giveaway
	for _, g := range all {
		if g.Status == models.GiveawayRunning {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}
