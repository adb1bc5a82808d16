package bot

import (
	"discord-store-bot/internal/affiliate"
	"discord-store-bot/internal/models"
	"discord-store-bot/internal/security"
	"discord-store-bot/internal/services"
	"fmt"
	"github.com/bwmarrin/discordgo"
	"strconv"
	"strings"
	"time"
)

const (
	colorListing = 0x1E90FF
	colorPending = 0xFFA500
	colorReady   = 0x2ECC71
	colorInvoice = 0x57F287
	colorEnded   = 0xDC143C
	colorInfo    = 0x5865F2
	colorAlert   = 0xED4245
)

// Префиксы custom_id кнопок, меню и модальных окон
const (
	idPurchaseInitiate = "purchase_initiate_"
	idVariantSelect    = "purchase_variant_select_"
	idQuantityModal    = "purchase_quantity_modal_"
	idTicketReady      = "ticket_ready"
	idGiveawayEnter    = "giveaway_enter"
	idGiveawayEnded    = "giveaway_ended"
	idReviewButton     = "feedback_leave_review_"
	idReviewSkip       = "feedback_no_thanks"
	idReviewModal      = "feedback_review_modal_"
	idSupportCreate    = "support_ticket_create"
	idSupportModal     = "support_ticket_modal"
	idOrdersPage       = "myorders_page_"
)

const ordersPerPage = 5

// quantityModalID кодирует листинг и вариант; имя варианта может содержать пробелы
func quantityModalID(productID, variant string) string {
	return idQuantityModal + productID + "|" + variant
}

func parseQuantityModalID(customID string) (productID, variant string, ok bool) {
	rest, found := strings.CutPrefix(customID, idQuantityModal)
	if !found {
		return "", "", false
	}
	productID, variant, ok = strings.Cut(rest, "|")
	return productID, variant, ok && productID != "" && variant != ""
}

func ordersPageID(userID string, page int) string {
	return idOrdersPage + userID + "_" + strconv.Itoa(page)
}

func parseOrdersPageID(customID string) (userID string, page int, ok bool) {
	rest, found := strings.CutPrefix(customID, idOrdersPage)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return "", 0, false
	}
	page, err := strconv.Atoi(rest[i+1:])
	if err != nil || page < 0 {
		return "", 0, false
	}
	return rest[:i], page, true
}

func timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// ListingEmbed собирает карточку товара: описание, преимущества, цены и заметки
func ListingEmbed(p models.Product) *discordgo.MessageEmbed {
	var b strings.Builder
	b.WriteString(p.Description)
	if len(p.Features) > 0 {
		b.WriteString("\n\n")
		for i, f := range p.Features {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("✅ - " + f)
		}
	}
	b.WriteString("\n\n**Price:**")
	for _, v := range p.Variants {
		fmt.Fprintf(&b, "\n> **%s** : %s (Stock: %d)", v.Name, services.FormatRupiah(v.Price), v.Stock)
	}
	if p.Notes != "" {
		b.WriteString("\n\n**Note:**\n" + p.Notes)
	}
	e := &discordgo.MessageEmbed{
		Title:       p.Title,
		Description: b.String(),
		Color:       colorListing,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Click the button below to buy an item from this listing."},
	}
	if avg, n := p.AverageRating(); n > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "Rating",
			Value: fmt.Sprintf("%s %.1f/5 (%d reviews) · %d sold", strings.Repeat("⭐", int(avg+0.5)), avg, n, p.TotalSold),
		})
	}
	if p.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	return e
}

// ListingComponents кнопка покупки; неактивна, если всё распродано
func ListingComponents(p models.Product) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Buy Now",
				Style:    discordgo.SuccessButton,
				CustomID: idPurchaseInitiate + p.ID,
				Disabled: p.TotalStock() == 0,
			},
		}},
	}
}

func variantSelect(p models.Product, variants []models.Variant) []discordgo.MessageComponent {
	opts := make([]discordgo.SelectMenuOption, 0, len(variants))
	for _, v := range variants {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       v.Name,
			Value:       v.Name,
			Description: fmt.Sprintf("Price: %s | Stock: %d", services.FormatRupiah(v.Price), v.Stock),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    idVariantSelect + p.ID,
				Placeholder: "Select the product variant",
				Options:     opts,
			},
		}},
	}
}

// TicketEmbed приветствие в канале тикета
func TicketEmbed(p models.PendingOrder, imageURL string) *discordgo.MessageEmbed {
	status, color := "Waiting for staff", colorPending
	if p.Ready {
		status, color = "Ready to process", colorReady
	}
	e := &discordgo.MessageEmbed{
		Title: "Purchase: " + p.ProductName,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Instructions", Value: "• Wait for a staff member to process your order.\n• Do not spam or the ticket will be closed.\n• Prepare the payment for the price shown."},
			{Name: "Price", Value: services.FormatRupiah(p.FinalPrice), Inline: true},
			{Name: "Quantity", Value: "`" + strconv.Itoa(p.Quantity) + "`", Inline: true},
			{Name: "Status", Value: status, Inline: true},
			{Name: "Buyer", Value: "<@" + p.UserID + ">"},
			{Name: "Time", Value: timestamp(p.CreatedAt)},
		},
	}
	if p.AffiliateCode != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "Affiliate code used",
			Value: fmt.Sprintf("`%s` (-%s)", p.AffiliateCode, services.FormatRupiah(p.Discount)),
		})
	}
	if imageURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: imageURL}
	}
	return e
}

func ticketComponents(ready bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Ready", Style: discordgo.SuccessButton, CustomID: idTicketReady, Disabled: ready},
		}},
	}
}

func orderFields(o models.Order) []*discordgo.MessageEmbedField {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Order ID", Value: "`" + o.OrderID + "`"},
		{Name: "Product", Value: o.ProductName},
		{Name: "Quantity", Value: strconv.Itoa(o.Quantity), Inline: true},
		{Name: "Price", Value: services.FormatRupiah(o.FinalPrice), Inline: true},
	}
	if o.AffiliateCode != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Affiliate",
			Value:  fmt.Sprintf("`%s` (-%s)", o.AffiliateCode, services.FormatRupiah(o.Discount)),
			Inline: true,
		})
	}
	return fields
}

// InvoiceEmbed отправляется покупателю в личные сообщения
func InvoiceEmbed(o models.Order) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Invoice " + o.OrderID,
		Description: "Thank you for your purchase! Keep this order ID for support requests.",
		Color:       colorInvoice,
		Fields:      append(orderFields(o), &discordgo.MessageEmbedField{Name: "Completed", Value: timestamp(o.ClosedAt)}),
	}
}

func feedbackComponents(productID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Leave a Review", Style: discordgo.PrimaryButton, CustomID: idReviewButton + productID},
			discordgo.Button{Label: "No thanks", Style: discordgo.SecondaryButton, CustomID: idReviewSkip},
		}},
	}
}

// OrderLogEmbed запись в канале журнала заказов
func OrderLogEmbed(o models.Order) *discordgo.MessageEmbed {
	fields := append(orderFields(o),
		&discordgo.MessageEmbedField{Name: "Buyer", Value: fmt.Sprintf("<@%s> (%s)", o.UserID, o.Username), Inline: true},
		&discordgo.MessageEmbedField{Name: "Closed by", Value: "<@" + o.ClosedBy + ">", Inline: true},
	)
	return &discordgo.MessageEmbed{
		Title:     "Order completed",
		Color:     colorInvoice,
		Fields:    fields,
		Timestamp: o.ClosedAt.UTC().Format(time.RFC3339),
	}
}

func GiveawayEmbed(g models.Giveaway) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("Prize: **%s**\nWinners: %d\nEnds: <t:%d:R>\nHosted by: <@%s>",
		g.Prize, g.WinnerCount, g.EndTime.Unix(), g.HostID)
	e := &discordgo.MessageEmbed{
		Title:       "🎉 GIVEAWAY 🎉",
		Description: desc,
		Color:       0xFFD700,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Click the button to enter!"},
	}
	if g.Status == models.GiveawayEnded {
		e.Title = "🎉 GIVEAWAY ENDED 🎉"
		e.Color = colorEnded
		e.Description = fmt.Sprintf("This giveaway for **%s** has ended.\n\nWinners: %s", g.Prize, mentions(g.Winners, "No one entered!"))
		e.Footer = nil
	}
	return e
}

func giveawayComponents(ended bool) []discordgo.MessageComponent {
	btn := discordgo.Button{Label: "Enter", Style: discordgo.PrimaryButton, CustomID: idGiveawayEnter}
	if ended {
		btn = discordgo.Button{Label: "Giveaway Ended", Style: discordgo.SecondaryButton, CustomID: idGiveawayEnded, Disabled: true}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{btn}},
	}
}

func mentions(ids []string, empty string) string {
	if len(ids) == 0 {
		return empty
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<@" + id + ">"
	}
	return strings.Join(out, ", ")
}

func SummaryEmbed(title string, s services.Summary) *discordgo.MessageEmbed {
	top := "-"
	if s.TopSeller != "" {
		top = fmt.Sprintf("%s (%d sold)", s.TopSeller, s.TopSellerQty)
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Period", Value: s.From.Format("2006-01-02") + " – " + s.To.Format("2006-01-02")},
			{Name: "Orders", Value: strconv.Itoa(s.Orders), Inline: true},
			{Name: "Revenue", Value: services.FormatRupiah(s.Revenue), Inline: true},
			{Name: "Top seller", Value: top},
		},
	}
}

func affiliateEmbed(st affiliate.Stats) *discordgo.MessageEmbed {
	tier := st.Affiliate.Tier
	if tier == "" {
		tier = "Default"
	}
	return &discordgo.MessageEmbed{
		Title: "Affiliate: " + st.Affiliate.Username,
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Code", Value: "`" + st.Affiliate.Code + "`", Inline: true},
			{Name: "Tier", Value: fmt.Sprintf("%s (%s%%)", tier, st.Rate.Shift(2).String()), Inline: true},
			{Name: "Completed referrals", Value: strconv.Itoa(st.Completed), Inline: true},
			{Name: "Referred revenue", Value: services.FormatRupiah(st.Revenue), Inline: true},
			{Name: "Estimated commission", Value: services.FormatRupiah(st.Earnings), Inline: true},
		},
	}
}

func leaderboardEmbed(rows []affiliate.Standing) *discordgo.MessageEmbed {
	var b strings.Builder
	if len(rows) == 0 {
		b.WriteString("No completed referrals yet.")
	}
	for i, r := range rows {
		fmt.Fprintf(&b, "**%d.** <@%s> `%s` · %d orders · %s\n", i+1, r.UserID, r.Code, r.Orders, services.FormatRupiah(r.Revenue))
	}
	return &discordgo.MessageEmbed{Title: "Affiliate Leaderboard", Description: b.String(), Color: colorInfo}
}

// ordersPage страница /myorders; page считается с нуля
func ordersPage(userID string, all []models.Order, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	pages := (len(all) + ordersPerPage - 1) / ordersPerPage
	if pages == 0 {
		pages = 1
	}
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	e := &discordgo.MessageEmbed{
		Title:  "Your orders",
		Color:  colorInfo,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", page+1, pages)},
	}
	start := page * ordersPerPage
	end := min(start+ordersPerPage, len(all))
	for _, o := range all[start:end] {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  o.OrderID,
			Value: fmt.Sprintf("%s × %d · %s · %s", o.ProductName, o.Quantity, services.FormatRupiah(o.FinalPrice), timestamp(o.ClosedAt)),
		})
	}
	if len(all) == 0 {
		e.Description = "You have no completed orders yet."
	}
	if pages == 1 {
		return e, nil
	}
	return e, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Previous", Style: discordgo.SecondaryButton, CustomID: ordersPageID(userID, page-1), Disabled: page == 0},
			discordgo.Button{Label: "Next", Style: discordgo.SecondaryButton, CustomID: ordersPageID(userID, page+1), Disabled: page >= pages-1},
		}},
	}
}

func orderEmbed(o models.Order) *discordgo.MessageEmbed {
	fields := append(orderFields(o),
		&discordgo.MessageEmbedField{Name: "Status", Value: string(o.Status), Inline: true},
		&discordgo.MessageEmbedField{Name: "Buyer", Value: "<@" + o.UserID + ">", Inline: true},
		&discordgo.MessageEmbedField{Name: "Date", Value: timestamp(o.ClosedAt)},
	)
	return &discordgo.MessageEmbed{Title: "Order " + o.OrderID, Color: colorInfo, Fields: fields}
}

func supportPanel() (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	e := &discordgo.MessageEmbed{
		Title:       "Need help with an order?",
		Description: "Click the button below and enter your order ID. A private support channel will be opened for you.",
		Color:       colorInfo,
	}
	return e, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Open support ticket", Style: discordgo.PrimaryButton, CustomID: idSupportCreate},
		}},
	}
}

func violationEmbed(r security.Result) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: "Security: " + string(r.Violation.Type),
		Color: colorAlert,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", r.Violation.UserID, r.Username), Inline: true},
			{Name: "Channel", Value: "<#" + r.Violation.ChannelID + ">", Inline: true},
			{Name: "Warnings", Value: strconv.Itoa(r.Warnings), Inline: true},
			{Name: "Reason", Value: r.Violation.Reason},
		},
		Timestamp: r.Violation.Timestamp.UTC().Format(time.RFC3339),
	}
	if r.TimedOut {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Action", Value: "Timed out"})
	}
	return e
}
