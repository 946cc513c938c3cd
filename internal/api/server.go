// Package api exposes the four pipeline stages over HTTP with gin.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/logging"
	"ScriptWriter/internal/ports"
	"ScriptWriter/internal/usecase"
)

// missingCredential is the fixed body returned when no provider key is set.
const missingCredential = "generation service API key is not configured"

// Deps wires the handlers to the stage implementations.
type Deps struct {
	Stages ports.Stages
	// Archive backs GET /scripts; optional.
	Archive ports.ScriptRepository
	// Credentialed reports whether the generation provider has a key.
	Credentialed bool
	Logger       *slog.Logger
}

type handler struct {
	stages       ports.Stages
	archive      ports.ScriptRepository
	credentialed bool
	log          *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{
		stages:       deps.Stages,
		archive:      deps.Archive,
		credentialed: deps.Credentialed,
		log:          deps.Logger,
	}
	if h.log == nil {
		h.log = logging.Discard()
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	r.GET("/healthz", h.health)
	r.GET("/scripts", h.listScripts)

	stages := r.Group("/", h.requireCredential())
	stages.POST("/gather-sources", h.gatherSources)
	stages.POST("/extract-content", h.extractContent)
	stages.POST("/generate-components", h.generateComponents)
	stages.POST("/generate-final-script", h.generateFinalScript)

	return r
}

func (h *handler) requireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.credentialed || h.stages == nil {
			respondError(c, http.StatusInternalServerError, missingCredential)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}

// GET /healthz
func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "credentialed": h.credentialed})
}

type gatherRequest struct {
	VideoIdea string `json:"videoIdea"`
}

// POST /gather-sources
func (h *handler) gatherSources(c *gin.Context) {
	var req gatherRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.VideoIdea) == "" {
		respondError(c, http.StatusBadRequest, "videoIdea is required")
		return
	}

	sources, err := h.stages.GatherSources(c.Request.Context(), req.VideoIdea)
	if err != nil {
		h.fail(c, "gather sources", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

type extractRequest struct {
	Sources []domain.Source `json:"sources"`
}

// POST /extract-content
func (h *handler) extractContent(c *gin.Context) {
	var req extractRequest
	if !bind(c, &req) {
		return
	}
	if len(req.Sources) == 0 {
		respondError(c, http.StatusBadRequest, "sources are required")
		return
	}

	sources, err := h.stages.ExtractContent(c.Request.Context(), req.Sources)
	if err != nil {
		h.fail(c, "extract content", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

type componentsRequest struct {
	VideoIdea string          `json:"videoIdea"`
	Sources   []domain.Source `json:"sources"`
}

// POST /generate-components
func (h *handler) generateComponents(c *gin.Context) {
	var req componentsRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.VideoIdea) == "" {
		respondError(c, http.StatusBadRequest, "videoIdea is required")
		return
	}
	if req.Sources == nil {
		respondError(c, http.StatusBadRequest, "sources are required")
		return
	}

	set, err := h.stages.GenerateComponents(c.Request.Context(), req.VideoIdea, req.Sources)
	if err != nil {
		h.fail(c, "generate components", err)
		return
	}
	c.JSON(http.StatusOK, set)
}

type finalScriptRequest struct {
	VideoIdea          string                  `json:"videoIdea"`
	SelectedComponents *domain.SelectedContent `json:"selectedComponents"`
}

// POST /generate-final-script
func (h *handler) generateFinalScript(c *gin.Context) {
	var req finalScriptRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.VideoIdea) == "" {
		respondError(c, http.StatusBadRequest, "videoIdea is required")
		return
	}
	if req.SelectedComponents == nil {
		respondError(c, http.StatusBadRequest, "selectedComponents is required")
		return
	}
	if err := req.SelectedComponents.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	script, err := h.stages.GenerateFinalScript(c.Request.Context(), req.VideoIdea, *req.SelectedComponents)
	if err != nil {
		h.fail(c, "generate final script", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finalScript": script})
}

// GET /scripts?limit=N
func (h *handler) listScripts(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusOK, gin.H{"scripts": []domain.ScriptRecord{}})
		return
	}

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.archive.List(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("list scripts failed", "error", err)
		respondError(c, http.StatusInternalServerError, "could not load scripts")
		return
	}
	if records == nil {
		records = []domain.ScriptRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"scripts": records})
}

// fail maps stage errors to statuses: input problems are 400, anything the
// generation service caused is 502.
func (h *handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn(op+" failed", "error", err, "status", status)
	}
	respondError(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyIdea),
		errors.Is(err, domain.ErrIncompleteSelection),
		errors.Is(err, usecase.ErrMalformedSources):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
