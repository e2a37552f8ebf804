package commands

import (
	"fmt"
	"io"

	authService "github.com/allisson/envsafe/internal/auth/service"
)

// RunCreateAdminToken generates an admin bearer token. The token is shown once; only its
// hash goes into ADMIN_TOKEN_HASH.
func RunCreateAdminToken(tokenService authService.AdminTokenService, writer io.Writer, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	plainToken, tokenHash, err := tokenService.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate admin token: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]string{
			"token":            plainToken,
			"admin_token_hash": tokenHash,
		})
	}

	_, _ = fmt.Fprintln(writer, "# Admin Token")
	_, _ = fmt.Fprintln(writer, "# Store the token securely. It will not be shown again.")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "Token: %s\n", plainToken)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Configure the server with:")
	_, _ = fmt.Fprintf(writer, "ADMIN_TOKEN_HASH='%s'\n", tokenHash)
	return nil
}
