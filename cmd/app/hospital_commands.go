package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/courier/cmd/app/commands"
	"github.com/allisson/courier/internal/app"
	"github.com/allisson/courier/internal/config"
)

func getHospitalCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list-hospital",
			Usage: "List hospitalized work items, newest first",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "topic",
					Aliases: []string{"t"},
					Usage:   "Only show records of this topic",
				},
				&cli.IntFlag{
					Name:  "offset",
					Value: 0,
					Usage: "Number of records to skip",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of records to show (1-1000)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				hospitalUseCase, err := container.HospitalUseCase()
				if err != nil {
					return err
				}

				return commands.RunListHospital(
					ctx,
					hospitalUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("topic"),
					int(cmd.Int("offset")),
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
	}
}
