package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	admin := s.router.Group("/admin")
	apiKey := strings.TrimSpace(os.Getenv("PROMPT_REGISTRY_API_KEY"))
	if apiKey != "" {
		admin.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("PROMPT_REGISTRY_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set PROMPT_REGISTRY_API_KEY or set PROMPT_REGISTRY_DISABLE_AUTH=true")
	}

	admin.GET("/health", s.handleHealth)

	admin.POST("/prompts", s.handleCreatePrompt)
	admin.GET("/prompts", s.handleListPrompts)
	admin.GET("/prompts/:id", s.handleGetPrompt)
	admin.PUT("/prompts/:id", s.handleUpdatePrompt)
	admin.DELETE("/prompts/:id", s.handleArchivePrompt)

	admin.POST("/prompts/:id/test", s.handleRunTest)
	admin.GET("/prompts/:id/test-result", s.handleLastTestResult)
	admin.POST("/prompts/:id/mark-tested", s.handleMarkTested)
	admin.POST("/prompts/:id/activate", s.handleActivatePrompt)

	// Resolution endpoint for consuming services.
	admin.GET("/active", s.handleGetActivePrompt)

	admin.GET("/audit", s.handleListAudit)
	admin.GET("/stats", s.handleStats)

	return nil
}
