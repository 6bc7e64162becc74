package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-registry/internal/config"
	"github.com/stellarlinkco/prompt-registry/internal/llm"
	"github.com/stellarlinkco/prompt-registry/internal/runner"
	"github.com/stellarlinkco/prompt-registry/internal/store"
)

type Server struct {
	router   *gin.Engine
	store    store.Store
	provider llm.Provider
	runner   *runner.Runner
	config   *config.Config
}

func NewServer(cfg *config.Config, st store.Store, provider llm.Provider) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:   r,
		store:    st,
		provider: provider,
		config:   cfg,
		runner: runner.NewRunner(st, provider, runner.Config{
			Timeout:     cfg.TestTimeout(),
			Concurrency: cfg.TestConcurrency(),
		}),
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
