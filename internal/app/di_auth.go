package app

import (
	authService "github.com/allisson/envsafe/internal/auth/service"
)

// AdminTokenService returns the service that generates and verifies the admin token.
func (c *Container) AdminTokenService() authService.AdminTokenService {
	c.adminTokenServiceInit.Do(func() {
		c.adminTokenService = authService.NewAdminTokenService()
	})
	return c.adminTokenService
}
