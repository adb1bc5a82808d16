package bot

import (
	"github.com/bwmarrin/discordgo"
)

func str(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc, Required: required}
}

func integer(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: desc, Required: required}
}

func number(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionNumber, Name: name, Description: desc, Required: required}
}

func user(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: name, Description: desc, Required: required}
}

func boolean(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: name, Description: desc, Required: required}
}

func attachment(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionAttachment, Name: name, Description: desc, Required: required}
}

func channel(name, desc string, required bool, types ...discordgo.ChannelType) *discordgo.ApplicationCommandOption {
	if len(types) == 0 {
		types = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
	}
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionChannel, Name: name, Description: desc, Required: required, ChannelTypes: types}
}

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts}
}

func group(name, desc string, subs ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommandGroup, Name: name, Description: desc, Options: subs}
}

// Commands полный список слэш-команд бота
func Commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionManageChannels)
	admin := func(c *discordgo.ApplicationCommand) *discordgo.ApplicationCommand {
		c.DefaultMemberPermissions = &adminOnly
		return c
	}
	listing := func(name string) *discordgo.ApplicationCommandOption {
		return str(name, "Listing id", true)
	}

	return []*discordgo.ApplicationCommand{
		// магазин
		admin(&discordgo.ApplicationCommand{
			Name:        "listing",
			Description: "[Admin] Manage product listings",
			Options: []*discordgo.ApplicationCommandOption{
				sub("create", "Post a new listing",
					channel("channel", "Channel to post the listing in", true),
					str("title", "Listing title", true),
					str("description", "Listing description", true),
					str("variants", "Variants as Name,Price,Stock;Name,Price,Stock", true),
					str("features", "Features separated by ;", false),
					str("image_url", "Image URL", false),
					str("notes", "Extra notes", false),
				),
				sub("addvariant", "Add a variant to a listing",
					listing("listing"),
					str("name", "Variant name", true),
					number("price", "Price", true),
					integer("stock", "Stock", true),
				),
				sub("editvariant", "Change the price or stock of a variant",
					listing("listing"),
					str("variant", "Variant name", true),
					number("new_price", "New price", false),
					integer("new_stock", "New stock", false),
				),
				sub("removevariant", "Remove a variant from a listing",
					listing("listing"),
					str("variant", "Variant name", true),
				),
				sub("update", "Edit listing details",
					listing("listing"),
					str("new_title", "New title", false),
					str("new_description", "New description", false),
					str("new_image_url", "New image URL", false),
					str("new_features", "New features separated by ;", false),
					str("new_notes", "New notes", false),
				),
				sub("delete", "Delete a listing and its message", listing("listing")),
			},
		}),
		admin(&discordgo.ApplicationCommand{Name: "salestop", Description: "[Admin] Show the best selling listings"}),

		// тикеты
		admin(&discordgo.ApplicationCommand{
			Name:        "close",
			Description: "[Admin] Close this purchase ticket",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "status",
				Description: "Result of the order",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Done", Value: "done"},
					{Name: "Cancelled", Value: "cancelled"},
				},
			}},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "close-support",
			Description: "[Admin] Close this support ticket",
			Options:     []*discordgo.ApplicationCommandOption{str("reason", "Reason for closing", false)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "kirim",
			Description: "[Admin] Send the product file to the buyer of this ticket",
			Options: []*discordgo.ApplicationCommandOption{
				str("product_name", "Name of the product being sent", true),
				attachment("file", "The product file", true),
			},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "supportpanel",
			Description: "[Admin] Post the support ticket panel",
			Options:     []*discordgo.ApplicationCommandOption{channel("channel", "Channel for the panel", false)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "setting",
			Description: "[Admin] Bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				sub("ticket-category", "Category for purchase tickets", channel("category", "Category", true, discordgo.ChannelTypeGuildCategory)),
				sub("support-category", "Category for support tickets", channel("category", "Category", true, discordgo.ChannelTypeGuildCategory)),
			},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "testmode",
			Description: "[Admin] Toggle test mode: closed tickets record nothing",
			Options:     []*discordgo.ApplicationCommandOption{boolean("enabled", "Enable test mode", true)},
		}),

		// отчёты
		admin(&discordgo.ApplicationCommand{Name: "export", Description: "[Admin] Export orders and listings as CSV"}),
		admin(&discordgo.ApplicationCommand{
			Name:        "summary",
			Description: "[Admin] Sales summary for a date range",
			Options: []*discordgo.ApplicationCommandOption{
				str("from", "Start date YYYY-MM-DD", true),
				str("to", "End date YYYY-MM-DD", true),
			},
		}),
		admin(&discordgo.ApplicationCommand{Name: "ticketstats", Description: "[Admin] Ticket statistics for the last 30 days"}),

		// партнёрка
		admin(&discordgo.ApplicationCommand{
			Name:        "affiliate",
			Description: "[Admin] Manage affiliate tiers",
			Options: []*discordgo.ApplicationCommandOption{
				group("tier", "Commission tiers",
					sub("create", "Create or update a tier",
						str("name", "Tier name", true),
						number("percentage", "Commission percentage", true),
					),
					sub("delete", "Delete a tier", str("name", "Tier name", true)),
					sub("list", "List tiers"),
				),
				sub("set", "Assign a tier to an affiliate",
					user("user", "Affiliate", true),
					str("tier", "Tier name", true),
				),
			},
		}),
		{Name: "daftar-affiliate", Description: "Register as an affiliate and get your code"},
		{Name: "commission", Description: "Check your affiliate commission and earnings"},
		{Name: "myaffiliate", Description: "Show your affiliate code and stats"},
		{
			Name:        "leaderboard",
			Description: "Top affiliates",
			Options: []*discordgo.ApplicationCommandOption{
				str("from", "Start date YYYY-MM-DD", false),
				str("to", "End date YYYY-MM-DD", false),
			},
		},
		{
			Name:        "redeem",
			Description: "Apply an affiliate code to the order in this ticket",
			Options:     []*discordgo.ApplicationCommandOption{str("code", "Affiliate code", true)},
		},

		// розыгрыши
		admin(&discordgo.ApplicationCommand{
			Name:        "giveaway",
			Description: "[Admin] Manage giveaways",
			Options: []*discordgo.ApplicationCommandOption{
				sub("start", "Start a giveaway",
					str("duration", "Duration like 10m, 1h, 2d", true),
					integer("winners", "Number of winners", true),
					str("prize", "Prize", true),
					channel("channel", "Channel for the giveaway", false),
					user("required_winner", "Member who must win if they enter", false),
				),
				sub("reroll", "Pick a new winner", str("message_id", "Giveaway message id", true)),
				sub("end", "End a giveaway now", str("message_id", "Giveaway message id", true)),
			},
		}),

		// безопасность
		admin(&discordgo.ApplicationCommand{
			Name:        "addphishing",
			Description: "[Admin] Add a phishing domain",
			Options:     []*discordgo.ApplicationCommandOption{str("domain", "Domain", true)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "removephishing",
			Description: "[Admin] Remove a phishing domain",
			Options:     []*discordgo.ApplicationCommandOption{str("domain", "Domain", true)},
		}),
		admin(&discordgo.ApplicationCommand{Name: "listphishing", Description: "[Admin] List phishing domains"}),
		admin(&discordgo.ApplicationCommand{
			Name:        "warnings",
			Description: "[Admin] Show a member's warnings",
			Options:     []*discordgo.ApplicationCommandOption{user("user", "Member", true)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "clearwarnings",
			Description: "[Admin] Clear a member's warnings",
			Options:     []*discordgo.ApplicationCommandOption{user("user", "Member", true)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "violationhistory",
			Description: "[Admin] Show a member's last violations",
			Options:     []*discordgo.ApplicationCommandOption{user("user", "Member", true)},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "userinfo",
			Description: "[Admin] Security profile of a member",
			Options:     []*discordgo.ApplicationCommandOption{user("user", "Member", true)},
		}),

		// объявления
		admin(&discordgo.ApplicationCommand{
			Name:        "ann",
			Description: "[Admin] Post an announcement",
			Options: []*discordgo.ApplicationCommandOption{
				channel("channel", "Channel", true),
				str("message", "Announcement text", true),
				boolean("ping_everyone", "Mention @everyone", false),
			},
		}),
		admin(&discordgo.ApplicationCommand{
			Name:        "testimonial",
			Description: "[Admin] Post a testimonial",
			Options: []*discordgo.ApplicationCommandOption{
				str("buyer", "Buyer", true),
				str("product", "Product", true),
				str("price", "Price", true),
				attachment("image", "Proof image", false),
			},
		}),

		// общие
		{
			Name:        "checkorder",
			Description: "Look up an order by id",
			Options:     []*discordgo.ApplicationCommandOption{str("id", "Order id", true)},
		},
		{Name: "myorders", Description: "List your completed orders"},
		{
			Name:        "avatar",
			Description: "Show a member's avatar",
			Options:     []*discordgo.ApplicationCommandOption{user("user", "Member", false)},
		},
		{Name: "coinflip", Description: "Flip a coin"},
		{Name: "help", Description: "List the available commands"},
		{Name: "version", Description: "Show the bot version"},
	}
}

// RegisterCommands заменяет команды приложения на сервере текущим списком
func RegisterCommands(s *discordgo.Session, appID, guildID string) (int, error) {
	created, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	if err != nil {
		return 0, err
	}
	return len(created), nil
}
