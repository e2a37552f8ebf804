package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/envsafe/cmd/app/commands"
	"github.com/allisson/envsafe/internal/app"
	cryptoService "github.com/allisson/envsafe/internal/crypto/service"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func jobIDFlag(required bool, usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "job-id",
		Required: required,
		Usage:    usage,
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-root-key",
			Usage: "Generate a new root key, optionally sealed with a KMS key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Usage: "KMS key URI (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					return commands.RunCreateRootKey(
						ctx,
						cryptoService.NewKMSService(),
						container.Logger(),
						commands.Stdout,
						cmd.String("kms-key-uri"),
					)
				})
			},
		},
		{
			Name:  "bootstrap-key",
			Usage: "Create the first active encryption key if none exists",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					registry, err := container.KeyRegistry(ctx)
					if err != nil {
						return err
					}
					return commands.RunBootstrapKey(ctx, registry, container.Logger(), commands.Stdout)
				})
			},
		},
		{
			Name:  "rotate-keys",
			Usage: "Start a key rotation, process a chunk of one, or clean up rotation history",
			Flags: []cli.Flag{
				jobIDFlag(false, "Process the next chunk of this job instead of starting a new rotation"),
				&cli.BoolFlag{
					Name:  "cleanup-only",
					Usage: "Only prune retired keys and old jobs",
				},
				&cli.BoolFlag{
					Name:  "wait",
					Usage: "Process chunks in this process until the job finishes",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					useCase, err := container.RotationUseCase(ctx)
					if err != nil {
						return err
					}
					return commands.RunRotateKeys(
						ctx,
						useCase,
						container.Logger(),
						commands.Stdout,
						cmd.String("job-id"),
						cmd.Bool("cleanup-only"),
						cmd.Bool("wait"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "rotation-status",
			Usage: "Show a key rotation job and its failed rows",
			Flags: []cli.Flag{
				jobIDFlag(true, "Rotation job ID (UUID)"),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					useCase, err := container.RotationUseCase(ctx)
					if err != nil {
						return err
					}
					return commands.RunRotationStatus(
						ctx,
						useCase,
						commands.Stdout,
						cmd.String("job-id"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
