package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCommands(t *testing.T) {
	categories := make(map[string]string)
	for _, cmd := range getCommands("test") {
		categories[cmd.Name] = cmd.Category
	}

	assert.Equal(t, map[string]string{
		"server":             "system",
		"migrate":            "system",
		"create-root-key":    "keys",
		"bootstrap-key":      "keys",
		"rotate-keys":        "keys",
		"rotation-status":    "keys",
		"create-admin-token": "admin",
	}, categories)
}
