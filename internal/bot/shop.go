package bot

import (
	"context"
	"discord-store-bot/internal/catalog"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/orders"
	"errors"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strconv"
	"strings"
)

// cmdListing /listing create|addvariant|editvariant|removevariant|update|delete
func (b *Bot) cmdListing(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub string, opts options) {
	deferReply(s, i)
	var (
		p   models.Product
		err error
		msg string
	)
	id := opts.String("listing")
	switch sub {
	case "create":
		p, err = b.catalog.Create(ctx, catalog.CreateInput{
			ChannelID:   opts.ID("channel"),
			Title:       opts.String("title"),
			Description: opts.String("description"),
			Features:    opts.String("features"),
			Variants:    opts.String("variants"),
			ImageURL:    opts.String("image_url"),
			Notes:       opts.String("notes"),
		})
		msg = fmt.Sprintf("Listing `%s` posted in <#%s>.", p.ID, p.ChannelID)
	case "addvariant":
		price, _ := opts.Float("price")
		var v models.Variant
		v, err = catalog.NewVariant(opts.String("name"), strconv.FormatFloat(price, 'f', -1, 64), strconv.Itoa(opts.Int("stock", 0)))
		if err == nil {
			p, err = b.catalog.AddVariant(ctx, id, v)
		}
		msg = fmt.Sprintf("Variant **%s** added to `%s`.", v.Name, id)
	case "editvariant":
		var edit catalog.VariantEdit
		if f, ok := opts.Float("new_price"); ok {
			price := decimal.NewFromFloat(f)
			edit.Price = &price
		}
		if opts.Has("new_stock") {
			stock := opts.Int("new_stock", 0)
			edit.Stock = &stock
		}
		p, err = b.catalog.EditVariant(ctx, id, opts.String("variant"), edit)
		msg = fmt.Sprintf("Variant **%s** of `%s` updated.", opts.String("variant"), id)
	case "removevariant":
		p, err = b.catalog.RemoveVariant(ctx, id, opts.String("variant"))
		msg = fmt.Sprintf("Variant **%s** removed from `%s`.", opts.String("variant"), id)
	case "update":
		p, err = b.catalog.Update(ctx, id, catalog.UpdateInput{
			Title:       opts.Ptr("new_title"),
			Description: opts.Ptr("new_description"),
			ImageURL:    opts.Ptr("new_image_url"),
			Features:    opts.Ptr("new_features"),
			Notes:       opts.Ptr("new_notes"),
		})
		msg = fmt.Sprintf("Listing `%s` updated.", id)
	case "delete":
		p, err = b.catalog.Delete(ctx, id)
		msg = fmt.Sprintf("Listing `%s` deleted.", id)
	default:
		editReply(s, i, "Unknown subcommand.")
		return
	}
	if errors.Is(err, catalog.ErrPartial) {
		logger.Error("listing message out of sync", zap.String("product", p.ID), zap.Error(err))
		editReply(s, i, msg+" "+userMessage(err))
		return
	}
	if err != nil {
		editReplyError(s, i, "listing "+sub, err)
		return
	}
	editReply(s, i, msg)
}

func (b *Bot) cmdSalesTop(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	top, err := b.catalog.TopSellers(ctx, 10)
	if err != nil {
		respondError(s, i, "salestop", err)
		return
	}
	var sb strings.Builder
	if len(top) == 0 {
		sb.WriteString("No sales recorded yet.")
	}
	for n, p := range top {
		fmt.Fprintf(&sb, "**%d.** %s · %d sold\n", n+1, p.Title, p.TotalSold)
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{Title: "Top selling listings", Description: sb.String(), Color: colorInfo})
}

// --- покупка ---

func (b *Bot) onPurchaseInitiate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, productID string) {
	p, variants, err := b.engine.Initiate(ctx, productID)
	if err != nil {
		respondError(s, i, "purchase initiate", err)
		return
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "Please select the product variant you want to buy:",
			Components: variantSelect(p, variants),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Error("variant select failed", zap.String("product", productID), zap.Error(err))
	}
}

func (b *Bot) onVariantSelect(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, productID string) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		respond(s, i, "Please pick a variant.")
		return
	}
	variant := values[0]
	p, err := b.catalog.Get(ctx, productID)
	if err != nil {
		respondError(s, i, "variant select", err)
		return
	}
	idx := p.VariantIndex(variant)
	if idx < 0 || p.Variants[idx].Stock == 0 {
		respond(s, i, userMessage(orders.ErrOutOfStock))
		return
	}
	showModal(s, i, quantityModalID(productID, variant), "Purchase "+truncate(variant, 36),
		discordgo.TextInput{
			CustomID:  "quantity",
			Label:     fmt.Sprintf("Quantity (stock: %d)", p.Variants[idx].Stock),
			Style:     discordgo.TextInputShort,
			Value:     "1",
			Required:  true,
			MaxLength: 4,
		},
		discordgo.TextInput{
			CustomID:    "affiliate_code",
			Label:       "Affiliate code (optional)",
			Style:       discordgo.TextInputShort,
			Placeholder: "e.g. alice-123",
			Required:    false,
			MaxLength:   64,
		},
	)
}

func (b *Bot) onQuantitySubmit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, customID string, values map[string]string) {
	productID, variant, ok := parseQuantityModalID(customID)
	if !ok {
		respond(s, i, genericFailure)
		return
	}
	qty, err := strconv.Atoi(values["quantity"])
	if err != nil {
		respond(s, i, "Quantity must be a whole number.")
		return
	}
	deferReply(s, i)
	u := interactionUser(i)
	pending, err := b.engine.Purchase(ctx, orders.PurchaseRequest{
		QuoteRequest: orders.QuoteRequest{
			UserID:        u.ID,
			Username:      u.Username,
			ProductID:     productID,
			Variant:       variant,
			Quantity:      qty,
			AffiliateCode: values["affiliate_code"],
		},
		GuildID: i.GuildID,
	})
	if err != nil {
		editReplyError(s, i, "purchase", err)
		return
	}

	var image string
	if p, err := b.catalog.Get(ctx, productID); err == nil {
		image = p.ImageURL
	}
	_, err = s.ChannelMessageSendComplex(pending.ChannelID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("Welcome <@%s>! A staff member will be with you shortly.", u.ID),
		Embeds:     []*discordgo.MessageEmbed{TicketEmbed(pending, image)},
		Components: ticketComponents(false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("ticket welcome failed", zap.String("channel_id", pending.ChannelID), zap.Error(err))
	}
	editReply(s, i, fmt.Sprintf("Your ticket has been created: <#%s>", pending.ChannelID))
}

// onTicketReady кнопка Ready доступна только персоналу
func (b *Bot) onTicketReady(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isStaff(i) {
		respond(s, i, "Only staff can mark a ticket as ready.")
		return
	}
	pending, err := b.engine.MarkReady(ctx, i.ChannelID)
	if err != nil {
		respondError(s, i, "ticket ready", err)
		return
	}
	var image string
	if p, err := b.catalog.Get(ctx, pending.ProductID); err == nil {
		image = p.ImageURL
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    i.Message.Content,
			Embeds:     []*discordgo.MessageEmbed{TicketEmbed(pending, image)},
			Components: ticketComponents(true),
		},
	})
	if err != nil {
		logger.Error("ticket ready update failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
	}
}

// --- отзывы ---

func (b *Bot) onReviewButton(s *discordgo.Session, i *discordgo.InteractionCreate, productID string) {
	showModal(s, i, idReviewModal+productID, "Leave a review",
		discordgo.TextInput{
			CustomID:    "rating",
			Label:       "Rating (1-5)",
			Style:       discordgo.TextInputShort,
			Placeholder: "5",
			Required:    true,
			MaxLength:   1,
		},
		discordgo.TextInput{
			CustomID:  "review",
			Label:     "Your review",
			Style:     discordgo.TextInputParagraph,
			Required:  false,
			MaxLength: 1000,
		},
	)
}

func (b *Bot) onReviewSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     i.Message.Embeds,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		logger.Error("review skip failed", zap.Error(err))
	}
}

func (b *Bot) onReviewSubmit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, productID string, values map[string]string) {
	rating, err := strconv.Atoi(values["rating"])
	if err != nil {
		respond(s, i, "Rating must be a number from 1 to 5.")
		return
	}
	u := interactionUser(i)
	p, err := b.catalog.AddRating(ctx, productID, models.Rating{
		UserID:   u.ID,
		Username: u.Username,
		Rating:   rating,
		Comment:  values["review"],
	})
	if err != nil && !errors.Is(err, catalog.ErrPartial) {
		respondError(s, i, "review", err)
		return
	}
	respond(s, i, "Thank you for your review!")

	if b.cfg.FeedbackLogChannelID == "" {
		return
	}
	comment := values["review"]
	if comment == "" {
		comment = "GG"
	}
	e := &discordgo.MessageEmbed{
		Title:       "New review: " + p.Title,
		Description: fmt.Sprintf("%s\n\n%s", strings.Repeat("⭐", rating), comment),
		Color:       colorReady,
		Footer:      &discordgo.MessageEmbedFooter{Text: "by " + u.Username},
	}
	if _, err := s.ChannelMessageSendEmbed(b.cfg.FeedbackLogChannelID, e, discordgo.WithContext(ctx)); err != nil {
		logger.Error("feedback log failed", zap.String("product", productID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
