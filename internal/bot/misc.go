package bot

import (
	"context"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/models"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"math/rand/v2"
	"time"
)

// ordersWindow сколько живут кнопки листания /myorders
const ordersWindow = 60 * time.Second

func (b *Bot) cmdCheckOrder(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	o, err := b.engine.FindOrder(ctx, opts.String("id"))
	if err != nil {
		respondError(s, i, "checkorder", err)
		return
	}
	if o.UserID != interactionUser(i).ID && !b.isStaff(i) {
		respond(s, i, "You can only look up your own orders.")
		return
	}
	respondEmbed(s, i, orderEmbed(o))
}

func completedOnly(all []models.Order) []models.Order {
	out := make([]models.Order, 0, len(all))
	for _, o := range all {
		if o.Status == models.StatusCompleted {
			out = append(out, o)
		}
	}
	return out
}

func (b *Bot) cmdMyOrders(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	userID := interactionUser(i).ID
	all, err := b.engine.OrdersFor(ctx, userID)
	if err != nil {
		respondError(s, i, "myorders", err)
		return
	}
	e, components := ordersPage(userID, completedOnly(all), 0)
	respondEmbed(s, i, e, components...)
}

// onOrdersPage листает список заказов; кнопки действуют ordersWindow после показа
func (b *Bot) onOrdersPage(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	userID, page, ok := parseOrdersPageID(customID)
	if !ok || userID != interactionUser(i).ID {
		respond(s, i, "These buttons are not for you.")
		return
	}
	if i.Message != nil && time.Since(i.Message.Timestamp) > ordersWindow {
		respond(s, i, "This list has expired. Run /myorders again.")
		return
	}
	all, err := b.engine.OrdersFor(ctx, userID)
	if err != nil {
		respondError(s, i, "myorders page", err)
		return
	}
	e, components := ordersPage(userID, completedOnly(all), page)
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{e},
			Components: components,
		},
	})
	if err != nil {
		logger.Error("orders page update failed", zap.Error(err))
	}
}

func (b *Bot) cmdAvatar(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	u := resolvedUser(i, opts, "user")
	if u == nil {
		u = interactionUser(i)
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title: displayName(u) + "'s avatar",
				Color: colorInfo,
				Image: &discordgo.MessageEmbedImage{URL: u.AvatarURL("1024")},
			}},
		},
	})
	if err != nil {
		logger.Error("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) cmdCoinflip(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	side := "Heads"
	if rand.IntN(2) == 1 {
		side = "Tails"
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: "🪙 The coin landed on **" + side + "**!"},
	})
	if err != nil {
		logger.Error("interaction respond failed", zap.Error(err))
	}
}

const publicHelp = `**Shop**
Click **Buy Now** on a listing to open a private ticket.
/redeem: apply an affiliate code inside your ticket
/checkorder: look up one of your orders
/myorders: list your completed orders

**Affiliate**
/daftar-affiliate: register and get your code
/myaffiliate, /commission: your code, referrals and earnings
/leaderboard: top affiliates

**Other**
/avatar, /coinflip, /version, /help`

const adminHelp = `

**Listings**
/listing create|addvariant|editvariant|removevariant|update|delete, /salestop

**Tickets**
/close, /close-support, /kirim, /supportpanel, /setting, /testmode, !pay <method>

**Reports**
/summary, /ticketstats, /export

**Affiliate tiers**
/affiliate tier create|delete|list, /affiliate set

**Giveaways**
/giveaway start|end|reroll

**Security**
/addphishing, /removephishing, /listphishing, /warnings, /clearwarnings, /violationhistory, /userinfo

**Posts**
/ann, /testimonial`

// cmdHelp админские разделы видны только админам
func (b *Bot) cmdHelp(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	text := publicHelp
	if b.isAdmin(i) {
		text += adminHelp
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{Title: "Commands", Description: text, Color: colorInfo})
}

func (b *Bot) cmdVersion(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	uptime := time.Since(b.started).Round(time.Second)
	respond(s, i, fmt.Sprintf("Version `%s`, up for %s.", b.cfg.BotVersion, uptime))
}

// cmdAnnounce /ann
func (b *Bot) cmdAnnounce(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	channelID := opts.ID("channel")
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "📢 Announcement",
			Description: opts.String("message"),
			Color:       colorInfo,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if opts.Bool("ping_everyone") {
		msg.Content = "@everyone"
		msg.AllowedMentions.Parse = []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone}
	}
	if _, err := s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		respondError(s, i, "ann", err)
		return
	}
	respond(s, i, fmt.Sprintf("Announcement posted in <#%s>.", channelID))
}

// cmdTestimonial публикует отзыв покупателя в канал отзывов
func (b *Bot) cmdTestimonial(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	channelID := b.cfg.TestimonialChannelID
	if channelID == "" {
		channelID = i.ChannelID
	}
	e := &discordgo.MessageEmbed{
		Title: "✅ Transaction complete",
		Color: colorReady,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Buyer", Value: opts.String("buyer"), Inline: true},
			{Name: "Product", Value: opts.String("product"), Inline: true},
			{Name: "Price", Value: opts.String("price"), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Thank you for trusting us!"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data := i.ApplicationCommandData(); data.Resolved != nil {
		if att, ok := data.Resolved.Attachments[opts.ID("image")]; ok {
			e.Image = &discordgo.MessageEmbedImage{URL: att.URL}
		}
	}
	if _, err := s.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx)); err != nil {
		respondError(s, i, "testimonial", err)
		return
	}
	respond(s, i, fmt.Sprintf("Testimonial posted in <#%s>.", channelID))
}
