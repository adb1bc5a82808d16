package bot

import (
	"context"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/security"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"strconv"
	"strings"
)

const historyLimit = 10

func (b *Bot) cmdAddPhishing(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	domain := opts.String("domain")
	added, err := b.monitor.AddDomain(ctx, domain)
	if err != nil {
		respondError(s, i, "addphishing", err)
		return
	}
	if !added {
		respond(s, i, fmt.Sprintf("`%s` is already on the list.", domain))
		return
	}
	respond(s, i, fmt.Sprintf("`%s` added to the phishing list.", domain))
}

func (b *Bot) cmdRemovePhishing(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	domain := opts.String("domain")
	removed, err := b.monitor.RemoveDomain(ctx, domain)
	if err != nil {
		respondError(s, i, "removephishing", err)
		return
	}
	if !removed {
		respond(s, i, fmt.Sprintf("`%s` is not on the list.", domain))
		return
	}
	respond(s, i, fmt.Sprintf("`%s` removed from the phishing list.", domain))
}

func (b *Bot) cmdListPhishing(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	domains, err := b.monitor.Domains(ctx)
	if err != nil {
		respondError(s, i, "listphishing", err)
		return
	}
	desc := "The list is empty."
	if len(domains) > 0 {
		desc = "`" + strings.Join(domains, "`\n`") + "`"
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Phishing domains (%d)", len(domains)),
		Description: truncate(desc, 4000),
		Color:       colorAlert,
	})
}

func warningFields(w models.Warnings) []*discordgo.MessageEmbedField {
	types := []models.ViolationType{models.ViolationPhishing, models.ViolationDangerousFile, models.ViolationSpam}
	fields := make([]*discordgo.MessageEmbedField, 0, len(types)+1)
	for _, t := range types {
		fields = append(fields, &discordgo.MessageEmbedField{Name: string(t), Value: strconv.Itoa(w[t]), Inline: true})
	}
	return append(fields, &discordgo.MessageEmbedField{Name: "Total", Value: strconv.Itoa(w.Total())})
}

func (b *Bot) cmdWarnings(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	target := resolvedUser(i, opts, "user")
	if target == nil {
		respond(s, i, "Pick a member.")
		return
	}
	w, err := b.monitor.Warnings(ctx, target.ID)
	if err != nil {
		respondError(s, i, "warnings", err)
		return
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:  "Warnings for " + displayName(target),
		Color:  colorAlert,
		Fields: warningFields(w),
	})
}

func (b *Bot) cmdClearWarnings(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	target := resolvedUser(i, opts, "user")
	if target == nil {
		respond(s, i, "Pick a member.")
		return
	}
	if err := b.monitor.ClearWarnings(ctx, target.ID); err != nil {
		respondError(s, i, "clearwarnings", err)
		return
	}
	respond(s, i, fmt.Sprintf("Warnings for <@%s> cleared. Their violation history is kept.", target.ID))
}

func (b *Bot) cmdViolationHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	target := resolvedUser(i, opts, "user")
	if target == nil {
		respond(s, i, "Pick a member.")
		return
	}
	list, total, err := b.monitor.History(ctx, target.ID, historyLimit)
	if err != nil {
		respondError(s, i, "violationhistory", err)
		return
	}
	var sb strings.Builder
	if total == 0 {
		sb.WriteString("No violations recorded.")
	}
	for _, v := range list {
		fmt.Fprintf(&sb, "%s **%s** in <#%s>: %s\n", timestamp(v.Timestamp), v.Type, v.ChannelID, v.Reason)
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Violation history for " + displayName(target),
		Description: sb.String(),
		Color:       colorAlert,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing %d of %d", len(list), total)},
	})
}

func riskColor(r security.Risk) int {
	switch r {
	case security.RiskCritical, security.RiskHigh:
		return colorAlert
	case security.RiskMedium:
		return colorPending
	}
	return colorReady
}

func (b *Bot) cmdUserInfo(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	target := resolvedUser(i, opts, "user")
	if target == nil {
		respond(s, i, "Pick a member.")
		return
	}
	created := b.discord.userCreated(target.ID)
	p, err := b.monitor.Profile(ctx, target.ID, created)
	if err != nil {
		respondError(s, i, "userinfo", err)
		return
	}
	e := &discordgo.MessageEmbed{
		Title: "Security profile: " + displayName(target),
		Color: riskColor(p.Risk),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + target.ID + ">", Inline: true},
			{Name: "Account created", Value: timestamp(created), Inline: true},
			{Name: "Account age", Value: fmt.Sprintf("%d days", p.AccountAgeDays), Inline: true},
			{Name: "Violations", Value: strconv.Itoa(p.Violations), Inline: true},
			{Name: "Risk", Value: string(p.Risk), Inline: true},
		},
	}
	if target.Avatar != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: target.AvatarURL("128")}
	}
	respondEmbed(s, i, e)
}

func displayName(u *discordgo.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
