package main

import (
	"github.com/urfave/cli/v2"
	"log"
	"os"
)

func main() {
	a := &app{}

	cliApp := cli.NewApp()
	cliApp.Action = cli.ShowAppHelp
	cliApp.Name = "discord-store-bot"
	cliApp.Usage = "Discord storefront and support bot"
	cliApp.Commands = []*cli.Command{
		{
			Action:   a.run,
			Name:     "run",
			Usage:    "Connect to the gateway and serve the guild",
			Category: "Bot",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "register",
					Usage: "overwrite slash commands before connecting",
				},
			},
			Description: "Starts the bot, the background jobs and the /health endpoint.",
		},
		{
			Action:      a.register,
			Name:        "register",
			Usage:       "Overwrite the guild slash commands",
			Category:    "Bot",
			Description: "Registers every slash command in GUILD_ID and exits.",
		},
		{
			Action:   a.export,
			Name:     "export",
			Usage:    "Write orders or listings as CSV to stdout",
			Category: "Maintenance",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kind",
					Value: "orders",
					Usage: "orders or products",
				},
			},
		},
		{
			Action:      a.backup,
			Name:        "backup",
			Usage:       "Run a manual backup",
			Category:    "Maintenance",
			Description: "pg_dump when DATABASE_URL is set, otherwise a zip of DATA_DIR.",
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}
