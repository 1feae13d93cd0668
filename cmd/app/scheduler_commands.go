package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/courier/cmd/app/commands"
	"github.com/allisson/courier/internal/app"
	"github.com/allisson/courier/internal/config"
)

func getSchedulerCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "enqueue-job",
			Usage: "Enqueue a one-shot job for a registered task",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "task",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Task name (e.g., outbox-drain)",
				},
				&cli.StringFlag{
					Name:    "payload",
					Aliases: []string{"p"},
					Usage:   "JSON payload matching the task's payload type",
				},
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Usage:   "Instance id; a generated UUID when omitted",
				},
				&cli.StringFlag{
					Name:    "at",
					Aliases: []string{"a"},
					Usage:   "Execution time in RFC 3339 format; now when omitted",
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

				scheduler, err := container.Scheduler()
				if err != nil {
					return err
				}

				return commands.RunEnqueueJob(
					ctx,
					scheduler,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.EnqueueJobInput{
						TaskName:   cmd.String("task"),
						Payload:    cmd.String("payload"),
						InstanceID: cmd.String("id"),
						At:         cmd.String("at"),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cancel-job",
			Usage: "Remove a pending task instance",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "task",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Task name",
				},
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Instance id",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				scheduler, err := container.Scheduler()
				if err != nil {
					return err
				}

				return commands.RunCancelJob(
					ctx,
					scheduler,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("task"),
					cmd.String("id"),
				)
			},
		},
	}
}
