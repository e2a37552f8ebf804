package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/envsafe/cmd/app/commands"
	authService "github.com/allisson/envsafe/internal/auth/service"
)

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-admin-token",
			Usage: "Generate an admin bearer token and the ADMIN_TOKEN_HASH to configure",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateAdminToken(
					authService.NewAdminTokenService(),
					commands.Stdout,
					cmd.String("format"),
				)
			},
		},
	}
}
