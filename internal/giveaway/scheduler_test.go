package giveaway

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/store/jsonfile"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"testing"
	"time"
)

type fakeAnnouncer struct {
	n       int
	ended   []models.Giveaway
	rerolls []string
	failEnd bool
}

func (f *fakeAnnouncer) Announce(_ context.Context, _ string, _ models.Giveaway) (string, error) {
	f.n++
	return fmt.Sprintf("msg-%d", f.n), nil
}

func (f *fakeAnnouncer) AnnounceWinners(_ context.Context, g models.Giveaway) error {
	f.ended = append(f.ended, g)
	if f.failEnd {
		return errors.New("missing access")
	}
	return nil
}

func (f *fakeAnnouncer) AnnounceReroll(_ context.Context, _ string, _ models.Giveaway, winnerID string) error {
	f.rerolls = append(f.rerolls, winnerID)
	return nil
}

func newScheduler(t *testing.T) (*Scheduler, *fakeAnnouncer, *time.Time) {
	t.Helper()
	s, err := jsonfile.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ann := &fakeAnnouncer{}
	sch := NewScheduler(s, ann, zap.NewNop())
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	sch.now = func() time.Time { return now }
	return sch, ann, &now
}

func start(t *testing.T, s *Scheduler, winners int, required string) models.Giveaway {
	t.Helper()
	g, err := s.Start(context.Background(), StartInput{
		GuildID: "g", ChannelID: "c", Prize: "Nitro", Winners: winners, Duration: "1h", RequiredWinnerID: required,
	})
	require.NoError(t, err)
	return g
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"10m", 10 * time.Minute, false},
		{"1h", time.Hour, false},
		{"2d", 48 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"1H", time.Hour, false},
		{"0m", 0, true},
		{"m", 0, true},
		{"10x", 0, true},
		{"-1h", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartValidates(t *testing.T) {
	s, _, _ := newScheduler(t)
	_, err := s.Start(context.Background(), StartInput{GuildID: "g", ChannelID: "c", Prize: "x", Winners: 1, Duration: "soon"})
	var verr *validation.Error
	assert.ErrorAs(t, err, &verr)

	_, err = s.Start(context.Background(), StartInput{GuildID: "g", ChannelID: "c", Prize: "x", Winners: 0, Duration: "1h"})
	assert.ErrorAs(t, err, &verr)
}

func TestEnterDedupsAndRejectsEnded(t *testing.T) {
	s, _, now := newScheduler(t)
	ctx := context.Background()
	g := start(t, s, 1, "")

	_, err := s.Enter(ctx, g.MessageID, "u1")
	require.NoError(t, err)
	_, err = s.Enter(ctx, g.MessageID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyEntered)

	*now = now.Add(2 * time.Hour)
	_, err = s.Tick(ctx)
	require.NoError(t, err)
	_, err = s.Enter(ctx, g.MessageID, "u2")
	assert.ErrorIs(t, err, ErrEnded)

	_, err = s.Enter(ctx, "nope", "u2")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestRequiredWinnerAlwaysChosen(t *testing.T) {
	s, _, now := newScheduler(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		g := start(t, s, 1, "x")
		_, err := s.Enter(ctx, g.MessageID, "y")
		require.NoError(t, err)
		_, err = s.Enter(ctx, g.MessageID, "x")
		require.NoError(t, err)
	}
	*now = now.Add(time.Hour)
	ended, err := s.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, ended, 20)
	for _, g := range ended {
		assert.Equal(t, []string{"x"}, g.Winners)
	}
}

func TestRequiredWinnerWhoDidNotEnter(t *testing.T) {
	s, _, _ := newScheduler(t)
	s.pick = func(int) int { return 0 }
	g := models.Giveaway{WinnerCount: 2, Participants: []string{"a", "b", "c"}, RequiredWinnerID: "z"}
	assert.Equal(t, []string{"a", "b"}, s.SelectWinners(g))
}

func TestSelectWinnersDistinctAndCapped(t *testing.T) {
	s, _, _ := newScheduler(t)
	g := models.Giveaway{WinnerCount: 5, Participants: []string{"a", "b", "c"}}
	w := s.SelectWinners(g)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, w)
	assert.Equal(t, []string{"a", "b", "c"}, g.Participants)
	assert.Nil(t, s.SelectWinners(models.Giveaway{WinnerCount: 1}))
}

func TestTickIsIdempotent(t *testing.T) {
	s, ann, now := newScheduler(t)
	ctx := context.Background()
	g := start(t, s, 1, "")
	for _, u := range []string{"a", "b", "c"} {
		_, err := s.Enter(ctx, g.MessageID, u)
		require.NoError(t, err)
	}

	ended, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, ended)

	*now = now.Add(time.Hour)
	ended, err = s.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	first := ended[0].Winners

	s.pick = func(n int) int { return n - 1 }
	*now = now.Add(time.Hour)
	ended, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, ended)

	stored, err := s.get(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, first, stored.Winners)
	assert.Len(t, ann.ended, 1)
}

func TestAnnounceFailureStillEnds(t *testing.T) {
	s, ann, now := newScheduler(t)
	ann.failEnd = true
	ctx := context.Background()
	g := start(t, s, 1, "")
	*now = now.Add(time.Hour)
	_, err := s.Tick(ctx)
	require.NoError(t, err)
	stored, err := s.get(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayEnded, stored.Status)
}

func TestEndEarly(t *testing.T) {
	s, _, _ := newScheduler(t)
	ctx := context.Background()
	g := start(t, s, 1, "")

	got, err := s.EndEarly(ctx, g.MessageID)
	require.NoError(t, err)
	assert.True(t, got.EndTime.Before(s.now()))

	ended, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, ended, 1)

	_, err = s.EndEarly(ctx, g.MessageID)
	assert.ErrorIs(t, err, ErrEnded)
}

func TestRerollKeepsStoredWinners(t *testing.T) {
	s, ann, now := newScheduler(t)
	ctx := context.Background()
	g := start(t, s, 1, "")

	_, err := s.Reroll(ctx, g.MessageID, "")
	assert.ErrorIs(t, err, ErrNotEnded)

	for _, u := range []string{"a", "b"} {
		_, err := s.Enter(ctx, g.MessageID, u)
		require.NoError(t, err)
	}
	s.pick = func(int) int { return 0 }
	*now = now.Add(time.Hour)
	_, err = s.Tick(ctx)
	require.NoError(t, err)

	s.pick = func(n int) int { return n - 1 }
	winner, err := s.Reroll(ctx, g.MessageID, "")
	require.NoError(t, err)
	assert.Equal(t, "b", winner)
	assert.Equal(t, []string{"b"}, ann.rerolls)

	stored, err := s.get(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, stored.Winners)
}
