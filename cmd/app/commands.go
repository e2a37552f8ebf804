package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/envsafe/internal/app"
	"github.com/allisson/envsafe/internal/config"
)

// getCommands assembles every subcommand, tagging each group with its help category.
func getCommands(version string) []*cli.Command {
	groups := []struct {
		category string
		commands []*cli.Command
	}{
		{"system", getSystemCommands(version)},
		{"keys", getKeyCommands()},
		{"admin", getAuthCommands()},
	}

	var cmds []*cli.Command
	for _, group := range groups {
		for _, cmd := range group.commands {
			cmd.Category = group.category
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// withContainer loads configuration from the environment, builds a container and shuts it
// down once fn returns.
func withContainer(ctx context.Context, fn func(container *app.Container) error) error {
	container := app.NewContainer(config.Load())
	defer func() { _ = container.Shutdown(ctx) }()
	return fn(container)
}
