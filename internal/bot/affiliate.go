package bot

import (
	"context"
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/services"
	"discord-store-bot/internal/validation"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

const leaderboardSize = 10

// resolvedUser пользователь из аргумента команды типа user
func resolvedUser(i *discordgo.InteractionCreate, opts options, name string) *discordgo.User {
	id := opts.ID(name)
	if id == "" {
		return nil
	}
	data := i.ApplicationCommandData()
	if data.Resolved != nil {
		if u, ok := data.Resolved.Users[id]; ok {
			return u
		}
	}
	return &discordgo.User{ID: id}
}

func (b *Bot) cmdRegisterAffiliate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	u := interactionUser(i)
	a, created, err := b.ledger.Register(ctx, u.ID, u.Username)
	if err != nil {
		respondError(s, i, "daftar-affiliate", err)
		return
	}
	if !created {
		respond(s, i, fmt.Sprintf("You are already registered. Your affiliate code is `%s`.", a.Code))
		return
	}
	respond(s, i, fmt.Sprintf("🎉 You are now an affiliate! Your code is `%s`.\nBuyers who use it get %s off, and you earn a commission on every completed order.",
		a.Code, percent(decimal.NewFromFloat(b.cfg.Tunables.Affiliate.DiscountRate))))
}

func (b *Bot) cmdCommission(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	st, err := b.ledger.Stats(ctx, interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "commission", err)
		return
	}
	respondEmbed(s, i, affiliateEmbed(st))
}

func (b *Bot) cmdMyAffiliate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	st, err := b.ledger.Stats(ctx, interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "myaffiliate", err)
		return
	}
	e := affiliateEmbed(st)
	e.Description = fmt.Sprintf("Share your code `%s` with buyers. They can enter it when buying or with /redeem inside their ticket.", st.Affiliate.Code)
	respondEmbed(s, i, e)
}

// leaderboardRange даты необязательны, но задаются парой
func leaderboardRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	switch {
	case from == "" && to == "":
		return time.Time{}, time.Time{}, nil
	case from == "" || to == "":
		return time.Time{}, time.Time{}, validation.Errorf("give both from and to, or neither")
	}
	return services.ParseRange(from, to, loc)
}

func (b *Bot) cmdLeaderboard(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	from, to, err := leaderboardRange(opts.String("from"), opts.String("to"), b.location())
	if err != nil {
		respondError(s, i, "leaderboard", err)
		return
	}
	rows, err := b.ledger.Leaderboard(ctx, from, to, leaderboardSize)
	if err != nil {
		respondError(s, i, "leaderboard", err)
		return
	}
	e := leaderboardEmbed(rows)
	if !from.IsZero() {
		e.Footer = &discordgo.MessageEmbedFooter{Text: from.Format("2006-01-02") + " – " + to.Format("2006-01-02")}
	}
	respondEmbed(s, i, e)
}

// cmdRedeem применяет код к заказу в текущем тикете
func (b *Bot) cmdRedeem(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	p, err := b.engine.Redeem(ctx, i.ChannelID, interactionUser(i).ID, opts.String("code"))
	if err != nil {
		respondError(s, i, "redeem", err)
		return
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Affiliate code `%s` applied. New price: %s (was %s).",
				p.AffiliateCode, services.FormatRupiah(p.FinalPrice), services.FormatRupiah(p.InitialPrice)),
			Embeds: []*discordgo.MessageEmbed{TicketEmbed(p, "")},
		},
	})
	if err != nil {
		respondError(s, i, "redeem reply", err)
	}
}

// cmdAffiliate /affiliate tier create|delete|list, /affiliate set
func (b *Bot) cmdAffiliate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub string, opts options) {
	switch sub {
	case "tier create":
		pct, _ := opts.Float("percentage")
		t, err := b.ledger.CreateTier(ctx, opts.String("name"), decimal.NewFromFloat(pct))
		if err != nil {
			respondError(s, i, "affiliate tier create", err)
			return
		}
		respond(s, i, fmt.Sprintf("Tier **%s** saved at %s%%.", t.Name, t.Percentage.String()))
	case "tier delete":
		if err := b.ledger.DeleteTier(ctx, opts.String("name")); err != nil {
			respondError(s, i, "affiliate tier delete", err)
			return
		}
		respond(s, i, fmt.Sprintf("Tier **%s** deleted.", opts.String("name")))
	case "tier list":
		tiers, err := b.ledger.ListTiers(ctx)
		if err != nil {
			respondError(s, i, "affiliate tier list", err)
			return
		}
		var sb strings.Builder
		if len(tiers) == 0 {
			sb.WriteString("No tiers yet. Every affiliate earns the default rate.")
		}
		for _, t := range tiers {
			fmt.Fprintf(&sb, "• **%s**: %s%%\n", t.Name, t.Percentage.String())
		}
		respondEmbed(s, i, &discordgo.MessageEmbed{Title: "Affiliate tiers", Description: sb.String(), Color: colorInfo})
	case "set":
		target := resolvedUser(i, opts, "user")
		if target == nil {
			respond(s, i, "Pick a member.")
			return
		}
		a, t, err := b.ledger.AssignTier(ctx, target.ID, target.Username, opts.String("tier"))
		if errors.Is(err, affiliate.ErrNotRegistered) {
			respond(s, i, fmt.Sprintf("<@%s> is not registered as an affiliate.", target.ID))
			return
		}
		if err != nil {
			respondError(s, i, "affiliate set", err)
			return
		}
		respond(s, i, fmt.Sprintf("<@%s> (`%s`) is now on tier **%s** (%s%%).", a.UserID, a.Code, t.Name, t.Percentage.String()))
	default:
		respond(s, i, "Unknown subcommand.")
	}
}

func percent(rate decimal.Decimal) string {
	return rate.Shift(2).String() + "%"
}
