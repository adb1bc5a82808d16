package bot

import (
	"discord-store-bot/config"
	"discord-store-bot/internal/admin"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/giveaway"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/orders"
	"discord-store-bot/internal/store"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := NewRateLimiter(30*time.Second, func(id string) bool { return id == "admin" })
	r.now = func() time.Time { return now }

	require.False(t, r.IsLimited("u1", "purchase"), "first call passes")
	require.True(t, r.IsLimited("u1", "purchase"), "second call inside the cooldown")
	require.False(t, r.IsLimited("u2", "purchase"), "users are independent")
	require.False(t, r.IsLimited("u1", "help"), "commands are independent")

	now = now.Add(29 * time.Second)
	require.True(t, r.IsLimited("u1", "purchase"))
	now = now.Add(time.Second)
	require.False(t, r.IsLimited("u1", "purchase"))

	for i := 0; i < 5; i++ {
		require.False(t, r.IsLimited("admin", "purchase"))
	}
}

func TestRateLimiterZeroCooldownNeverLimits(t *testing.T) {
	r := NewRateLimiter(0, nil)
	for i := 0; i < 3; i++ {
		require.False(t, r.IsLimited("u1", "purchase"))
	}
}

func TestRateLimiterPrune(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := NewRateLimiter(30*time.Second, nil)
	r.now = func() time.Time { return now }

	r.IsLimited("u1", "purchase")
	r.IsLimited("u2", "help")
	now = now.Add(5 * time.Second)
	require.Equal(t, 1, r.Prune(), "only the help limiter has refilled")
	now = now.Add(time.Minute)
	require.Equal(t, 1, r.Prune())
	require.Equal(t, 0, r.Prune())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want string
	}{
		{"validation", validation.Errorf("title is required"), "title is required"},
		{"wrapped sentinel", fmt.Errorf("%w: choose between 1 and 3", orders.ErrInvalidQuantity), "Invalid quantity: choose between 1 and 3."},
		{"ticket", orders.ErrNotTicket, "This command only works inside a ticket channel."},
		{"giveaway", giveaway.ErrAlreadyEntered, "You have already entered this giveaway."},
		{"self referral", affiliate.ErrSelfReferral, "You cannot use your own affiliate code."},
		{"unknown code", fmt.Errorf("%w %q", affiliate.ErrUnknownCode, "x"), "That affiliate code does not exist."},
		{"stock", catalog.ErrInsufficientStock, "There is not enough stock left to complete this order. Cancel the ticket or restock first."},
		{"not found", fmt.Errorf("get product: %w", store.ErrNotFound), "Not found."},
		{"internal", errors.New("disk full"), genericFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, userMessage(tt.err), tt.desc)
	}
	assert.True(t, isInternal(errors.New("boom")))
	assert.False(t, isInternal(orders.ErrOutOfStock))
	assert.False(t, isInternal(nil))
}

func opt(name string, typ discordgo.ApplicationCommandOptionType, value interface{}, children ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: typ, Value: value, Options: children}
}

func TestParseOptions(t *testing.T) {
	sub, o := parseOptions([]*discordgo.ApplicationCommandInteractionDataOption{
		opt("tier", discordgo.ApplicationCommandOptionSubCommandGroup, nil,
			opt("create", discordgo.ApplicationCommandOptionSubCommand, nil,
				opt("name", discordgo.ApplicationCommandOptionString, "  Gold "),
				opt("percentage", discordgo.ApplicationCommandOptionNumber, 12.5),
			),
		),
	})
	require.Equal(t, "tier create", sub)
	require.Equal(t, "Gold", o.String("name"))
	f, ok := o.Float("percentage")
	require.True(t, ok)
	require.Equal(t, 12.5, f)
	require.Equal(t, map[string]string{"name": "  Gold ", "percentage": "12.5"}, o.Audit())

	sub, o = parseOptions([]*discordgo.ApplicationCommandInteractionDataOption{
		opt("stock", discordgo.ApplicationCommandOptionInteger, float64(4)),
		opt("enabled", discordgo.ApplicationCommandOptionBoolean, true),
	})
	require.Empty(t, sub)
	require.Equal(t, 4, o.Int("stock", 0))
	require.Equal(t, 7, o.Int("missing", 7))
	require.True(t, o.Bool("enabled"))
	require.Nil(t, o.Ptr("new_title"))
	require.False(t, o.Has("new_title"))
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: idSupportModal,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "order_id", Value: " ord-20240101-ab12 "},
			}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "issue_description", Value: "key does not work"},
			}},
		},
	}
	require.Equal(t, map[string]string{
		"order_id":          "ord-20240101-ab12",
		"issue_description": "key does not work",
	}, modalValues(data))
}

func TestCustomIDRoundTrips(t *testing.T) {
	pid, variant, ok := parseQuantityModalID(quantityModalID("widget", "Basic Plan 1 Month"))
	require.True(t, ok)
	require.Equal(t, "widget", pid)
	require.Equal(t, "Basic Plan 1 Month", variant)

	_, _, ok = parseQuantityModalID(idQuantityModal + "widget")
	require.False(t, ok)

	user, page, ok := parseOrdersPageID(ordersPageID("123456789012345678", 3))
	require.True(t, ok)
	require.Equal(t, "123456789012345678", user)
	require.Equal(t, 3, page)

	for _, bad := range []string{idOrdersPage, idOrdersPage + "42", idOrdersPage + "42_x", idOrdersPage + "42_-1", "other_1"} {
		_, _, ok := parseOrdersPageID(bad)
		require.False(t, ok, bad)
	}
}

func TestCustomIDsFitDiscordLimit(t *testing.T) {
	const limit = 100
	p := widget(1)
	p.ID = strings.Repeat("p", catalog.MaxIDLength)
	name := strings.Repeat("v", catalog.MaxVariantLength)
	p.Variants[0].Name = name

	ids := []string{
		ListingComponents(p)[0].(discordgo.ActionsRow).Components[0].(discordgo.Button).CustomID,
		variantSelect(p, p.Variants)[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu).CustomID,
		quantityModalID(p.ID, name),
		idReviewModal + p.ID,
		ordersPageID("123456789012345678901", 999),
	}
	for _, c := range feedbackComponents(p.ID)[0].(discordgo.ActionsRow).Components {
		ids = append(ids, c.(discordgo.Button).CustomID)
	}
	for _, id := range ids {
		require.LessOrEqual(t, len(id), limit, id)
	}
}

func widget(stock int) models.Product {
	return models.Product{
		ID:          "widget",
		Title:       "Widget",
		Description: "A fine widget",
		Features:    []string{"Fast", "Cheap"},
		Variants: []models.Variant{
			{Name: "Basic", Price: decimal.NewFromInt(10000), Stock: stock},
		},
		Notes: "No refunds",
	}
}

func TestListingEmbed(t *testing.T) {
	e := ListingEmbed(widget(2))
	require.Equal(t, "Widget", e.Title)
	require.Contains(t, e.Description, "✅ - Fast\n✅ - Cheap")
	require.Contains(t, e.Description, "**Basic**")
	require.Contains(t, e.Description, "(Stock: 2)")
	require.Contains(t, e.Description, "No refunds")
	require.Empty(t, e.Fields, "no rating field without ratings")

	btn := func(p models.Product) discordgo.Button {
		row := ListingComponents(p)[0].(discordgo.ActionsRow)
		return row.Components[0].(discordgo.Button)
	}
	require.False(t, btn(widget(2)).Disabled)
	require.Equal(t, idPurchaseInitiate+"widget", btn(widget(2)).CustomID)
	require.True(t, btn(widget(0)).Disabled)
}

func TestOrdersPage(t *testing.T) {
	var all []models.Order
	for i := 0; i < 12; i++ {
		all = append(all, models.Order{OrderID: fmt.Sprintf("ORD-%02d", i), ProductName: "Widget", Quantity: 1, FinalPrice: decimal.NewFromInt(100)})
	}

	e, comps := ordersPage("u1", all, 0)
	require.Len(t, e.Fields, ordersPerPage)
	require.Equal(t, "Page 1 of 3", e.Footer.Text)
	row := comps[0].(discordgo.ActionsRow)
	prev, next := row.Components[0].(discordgo.Button), row.Components[1].(discordgo.Button)
	require.True(t, prev.Disabled)
	require.False(t, next.Disabled)
	require.Equal(t, ordersPageID("u1", 1), next.CustomID)

	e, _ = ordersPage("u1", all, 9)
	require.Equal(t, "Page 3 of 3", e.Footer.Text, "pages past the end clamp")
	require.Len(t, e.Fields, 2)

	e, comps = ordersPage("u1", nil, 0)
	require.Nil(t, comps)
	require.Equal(t, "You have no completed orders yet.", e.Description)
}

func TestTicketChannelName(t *testing.T) {
	require.Equal(t, "ticket-alice-smith", ticketChannelName(models.TicketPurchase, "Alice Smith", "42"))
	require.Equal(t, "support-bob", ticketChannelName(models.TicketSupport, "bob", "42"))
	require.Equal(t, "ticket-42", ticketChannelName(models.TicketPurchase, "", "42"))
}

func TestCloseReport(t *testing.T) {
	o := models.Order{OrderID: "ORD-1", ProductName: "Widget - Basic", Quantity: 2, FinalPrice: decimal.NewFromInt(20000)}
	text := closeReport(orders.CloseResult{
		Status: models.StatusCompleted,
		Order:  &o,
		Steps: []orders.StepResult{
			{Name: "invoice", Err: errors.New("dm closed")},
			{Name: "order_log"},
		},
	}, "bye")
	require.Contains(t, text, "Order `ORD-1` completed")
	require.Contains(t, text, "Step `invoice` failed: dm closed")
	require.NotContains(t, text, "order_log")
	require.True(t, strings.HasSuffix(text, "\nbye"))

	text = closeReport(orders.CloseResult{Status: models.StatusCompleted, Warning: "test mode is on"}, "bye")
	require.Contains(t, text, "⚠️ Test mode is on.")

	text = closeReport(orders.CloseResult{Status: models.StatusCancelled}, "bye")
	require.True(t, strings.HasPrefix(text, "❌ Order cancelled."))
}

func TestLeaderboardRange(t *testing.T) {
	from, to, err := leaderboardRange("", "", time.UTC)
	require.NoError(t, err)
	require.True(t, from.IsZero() && to.IsZero())

	_, _, err = leaderboardRange("2024-01-01", "", time.UTC)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)

	from, to, err = leaderboardRange("2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, 31, to.Day())
}

func TestEveryCommandHasHandler(t *testing.T) {
	b := New(nil, Deps{Config: &config.AppConfig{}})
	defs := Commands()
	names := make(map[string]bool, len(defs))
	for _, c := range defs {
		require.False(t, names[c.Name], "duplicate command %s", c.Name)
		names[c.Name] = true

		cmd, ok := b.commands[c.Name]
		require.True(t, ok, "no handler for %s", c.Name)
		require.Equal(t, cmd.admin, c.DefaultMemberPermissions != nil, "admin flag of %s", c.Name)
	}
	require.Len(t, b.commands, len(defs))
}

func TestMessageMemberUsesStatePermissions(t *testing.T) {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Name: "@everyone"},
			{ID: "r-admin", Name: "Owner team", Permissions: discordgo.PermissionAdministrator},
			{ID: "r-staff", Name: "Helpers", Permissions: discordgo.PermissionManageChannels},
		},
	}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: "c1", GuildID: "g1", Name: "ticket-alice"}))
	for id, role := range map[string]string{"admin": "r-admin", "staff": "r-staff", "buyer": ""} {
		m := &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: id}}
		if role != "" {
			m.Roles = []string{role}
		}
		require.NoError(t, state.MemberAdd(m))
	}
	s := &discordgo.Session{State: state}
	msg := func(userID string) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID: "c1",
			GuildID:   "g1",
			Author:    &discordgo.User{ID: userID},
			Member:    &discordgo.Member{},
		}}
	}

	access := admin.Access{AdminRoleName: "Bot Admin"}
	require.True(t, access.IsAdmin(messageMember(s, msg("admin"))), "Administrator through a role")
	staff := messageMember(s, msg("staff"))
	require.False(t, access.IsAdmin(staff))
	require.NotZero(t, staff.Permissions&discordgo.PermissionManageChannels)
	require.False(t, access.IsAdmin(messageMember(s, msg("buyer"))))
	require.Zero(t, messageMember(s, msg("buyer")).Permissions&discordgo.PermissionManageChannels)

	require.Zero(t, messageMember(nil, msg("admin")).Permissions, "no state, only the event payload")
}

func TestTicketParentsFallBackPerKind(t *testing.T) {
	channels := []*discordgo.Channel{
		{ID: "def-tickets", Name: ticketCategoryName, Type: discordgo.ChannelTypeGuildCategory},
		{ID: "def-support", Name: supportCategoryName, Type: discordgo.ChannelTypeGuildCategory},
		{ID: "text", Name: supportCategoryName, Type: discordgo.ChannelTypeGuildText},
	}
	require.Equal(t, []string{"def-tickets", "def-support"}, ticketParents(channels, orders.TicketCategories{}))
	require.Equal(t, []string{"cat-tickets", "def-support"}, ticketParents(channels, orders.TicketCategories{Ticket: "cat-tickets"}))
	require.Equal(t, []string{"def-tickets", "cat-support"}, ticketParents(channels, orders.TicketCategories{Support: "cat-support"}))
	require.Equal(t, []string{"a", "b"}, ticketParents(channels, orders.TicketCategories{Ticket: "a", Support: "b"}))
}
