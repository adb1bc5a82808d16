package bot

import (
	"bytes"
	"context"
	"discord-store-bot/internal/logger"
	"discord-store-bot/internal/services"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"strconv"
	"time"
)

func (b *Bot) cmdSummary(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, opts options) {
	from, to, err := services.ParseRange(opts.String("from"), opts.String("to"), b.location())
	if err != nil {
		respondError(s, i, "summary", err)
		return
	}
	all, err := b.store.ListOrders(ctx)
	if err != nil {
		respondError(s, i, "summary", err)
		return
	}
	respondEmbed(s, i, SummaryEmbed("Sales summary", services.Summarize(all, from, to)))
}

func (b *Bot) cmdTicketStats(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	all, err := b.store.ListOrders(ctx)
	if err != nil {
		respondError(s, i, "ticketstats", err)
		return
	}
	pending, err := b.store.ListPending(ctx)
	if err != nil {
		respondError(s, i, "ticketstats", err)
		return
	}
	st := services.ComputeTicketStats(all, pending, time.Now())
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Ticket statistics",
		Description: "Completed orders in the last 30 days and tickets still open.",
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Completed", Value: strconv.Itoa(st.Completed), Inline: true},
			{Name: "Open", Value: strconv.Itoa(st.Open), Inline: true},
			{Name: "Total", Value: strconv.Itoa(st.Total), Inline: true},
		},
	})
}

// cmdExport отправляет CSV заказов и товаров и сохраняет их в архив
func (b *Bot) cmdExport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, _ string, _ options) {
	deferReply(s, i)
	all, err := b.store.ListOrders(ctx)
	if err != nil {
		editReplyError(s, i, "export", err)
		return
	}
	products, err := b.catalog.List(ctx)
	if err != nil {
		editReplyError(s, i, "export", err)
		return
	}
	var ordersCSV, productsCSV bytes.Buffer
	if err := services.ExportOrders(&ordersCSV, all); err != nil {
		editReplyError(s, i, "export", err)
		return
	}
	if err := services.ExportProducts(&productsCSV, products); err != nil {
		editReplyError(s, i, "export", err)
		return
	}
	now := time.Now()
	files := []*discordgo.File{
		{Name: services.ExportName("orders", now), ContentType: "text/csv", Reader: bytes.NewReader(ordersCSV.Bytes())},
		{Name: services.ExportName("products", now), ContentType: "text/csv", Reader: bytes.NewReader(productsCSV.Bytes())},
	}
	if b.discord.archiver != nil {
		for n, buf := range []*bytes.Buffer{&ordersCSV, &productsCSV} {
			key := "exports/" + files[n].Name
			if err := b.discord.archiver.Put(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv"); err != nil {
				logger.Error("export archive failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	content := fmt.Sprintf("Exported %d orders and %d listings.", len(all), len(products))
	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Files:   files,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		editReplyError(s, i, "export upload", err)
		return
	}
	editReply(s, i, "Export ready.")
}
