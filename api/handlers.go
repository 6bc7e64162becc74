package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-registry/internal/runner"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

type activateRequest struct {
	Reason string `json:"reason"`
}

type testRequest struct {
	InputData           map[string]any `json:"input_data"`
	TemperatureOverride *float64       `json:"temperature_override,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreatePrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req store.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if who := actor(c); who != "" {
		req.CreatedBy = who
	}

	tpl, err := s.store.Create(c.Request.Context(), req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (s *Server) handleListPrompts(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	filter := store.TemplateFilter{
		ServiceCode: strings.TrimSpace(c.Query("service_code")),
		DocType:     strings.TrimSpace(c.Query("doc_type")),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := template.Status(strings.ToUpper(raw))
		if !template.ValidStatus(status) {
			respondError(c, http.StatusBadRequest, fmt.Errorf("unknown status %q", raw))
			return
		}
		filter.Status = status
	}
	filter.IncludeArchived = strings.EqualFold(strings.TrimSpace(c.Query("include_archived")), "true")

	var err error
	filter.Limit, err = parseLimitParam(c.Query("limit"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	filter.Offset, err = parseLimitParam(c.Query("offset"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	templates, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (s *Server) handleGetPrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	tpl, err := s.store.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// handleUpdatePrompt applies a partial edit. DRAFT rows change in place;
// any other editable row forks a new DRAFT version, returned in the body.
func (s *Server) handleUpdatePrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req store.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	req.UpdatedBy = actor(c)

	tpl, err := s.store.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleArchivePrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	err := s.store.Archive(c.Request.Context(), strings.TrimSpace(c.Param("id")), actor(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRunTest executes the template against the posted input. A failed test
// is still a successful request: the outcome is in the body's status field.
func (s *Server) handleRunTest(c *gin.Context) {
	if s == nil || s.runner == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req testRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.RunTest(c.Request.Context(), &runner.RunRequest{
		TemplateID:          strings.TrimSpace(c.Param("id")),
		InputData:           req.InputData,
		TemperatureOverride: req.TemperatureOverride,
		Actor:               actor(c),
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLastTestResult(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	result, err := s.store.LastTestResult(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if result == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("template %s has no test results", id))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleMarkTested(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	tpl, err := s.store.MarkTested(c.Request.Context(), strings.TrimSpace(c.Param("id")), actor(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleActivatePrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	tpl, err := s.store.Activate(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Reason, actor(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleGetActivePrompt(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	serviceCode := strings.TrimSpace(c.Query("service_code"))
	docType := strings.TrimSpace(c.Query("doc_type"))
	if serviceCode == "" || docType == "" {
		respondError(c, http.StatusBadRequest, errors.New("service_code and doc_type are required"))
		return
	}

	tpl, err := s.store.GetActive(c.Request.Context(), serviceCode, docType)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleListAudit(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	filter := store.AuditFilter{
		TemplateID: strings.TrimSpace(c.Query("template_id")),
		Action:     template.Action(strings.ToUpper(strings.TrimSpace(c.Query("action")))),
	}

	var err error
	filter.Limit, err = parseLimitParam(c.Query("limit"), s.config.AuditPageSize())
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	filter.Offset, err = parseLimitParam(c.Query("offset"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	entries, err := s.store.ListAudit(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleStats(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	stats, err := s.store.Overview(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// actor reads the acting user from the X-Admin-User header; the store falls
// back to a default when empty.
func actor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Admin-User"))
}

func respondStoreError(c *gin.Context, err error) {
	var ve *template.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "violations": ve.Violations})
		return
	}

	switch {
	case template.IsNotFound(err):
		respondError(c, http.StatusNotFound, err)
	case template.IsPrecondition(err):
		respondError(c, http.StatusConflict, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid numeric parameter %q", raw)
	}
	return n, nil
}
