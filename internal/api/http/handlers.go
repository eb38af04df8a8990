package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/extsync/internal/domain/marketplace"
	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// Version is reported by the root endpoint.
var Version = "dev"

// BreakerSource reports per-host circuit state.
type BreakerSource interface {
	BreakerStates() map[string]resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager    *marketplace.Manager
	settings   *config.FileSource
	advisories *advisory.Recorder
	breakers   BreakerSource
	metrics    *monitoring.Metrics
}

// NewHandlers creates a new handler set. breakers and metrics may be nil.
func NewHandlers(
	manager *marketplace.Manager,
	settings *config.FileSource,
	advisories *advisory.Recorder,
	breakers BreakerSource,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		manager:    manager,
		settings:   settings,
		advisories: advisories,
		breakers:   breakers,
		metrics:    metrics,
	}
}

// Register attaches every route to r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/tree", h.Tree)
	r.GET("/tree/children", h.Branch)
	r.GET("/badge", h.Badge)
	r.POST("/refresh", h.Refresh)
	r.POST("/update", h.Update)

	r.POST("/extensions/:id/install", h.Install)
	r.POST("/extensions/:id/uninstall", h.Uninstall)
	r.GET("/extensions/:id/details", h.Details)

	r.PUT("/token", h.SetToken)
	r.DELETE("/token", h.ClearToken)

	r.GET("/settings", h.Settings)
	r.POST("/registries", h.AddRegistry)

	r.GET("/advisories", h.Advisories)
	r.GET("/metrics/json", h.MetricsJSON)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// Root handles the liveness probe.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "extsync",
		"version": Version,
	})
}

// Health reports catalog state and registry circuits.
func (h *Handlers) Health(c *gin.Context) {
	tree := h.manager.Tree()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"entries":    tree.Len(),
		"badge":      tree.Badge(),
		"refreshing": tree.Refreshing(),
		"registries": h.breakerStates(),
	})
}

type branchView struct {
	projection.Node
	Children []projection.Node `json:"children"`
}

// Tree returns every registry branch with its leaves. An empty catalog is
// built on first request.
func (h *Handlers) Tree(c *gin.Context) {
	tree := h.manager.Tree()
	roots := tree.Roots(c.Request.Context())

	out := make([]branchView, 0, len(roots))
	for _, r := range roots {
		children := tree.Children(r)
		if children == nil {
			children = []projection.Node{}
		}
		out = append(out, branchView{Node: r, Children: children})
	}

	c.JSON(http.StatusOK, gin.H{
		"roots": out,
		"badge": tree.Badge(),
	})
}

// Branch returns the leaves of the registry named by the "registry" query
// parameter. Registry names contain slashes, so they do not fit a path segment.
func (h *Handlers) Branch(c *gin.Context) {
	name := c.Query("registry")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "registry is required"})
		return
	}

	tree := h.manager.Tree()
	for _, r := range tree.Roots(c.Request.Context()) {
		if r.RegistryName == name {
			c.JSON(http.StatusOK, gin.H{
				"branch":   r,
				"children": tree.Children(r),
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "registry not in catalog"})
}

// Badge returns the outdated count.
func (h *Handlers) Badge(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Tree().Badge())
}

// Refresh rebuilds the catalog. A refresh already in flight yields 202 with
// the current state.
func (h *Handlers) Refresh(c *gin.Context) {
	report, err := h.manager.Refresh(c.Request.Context())
	if !report.Ran {
		c.JSON(http.StatusAccepted, gin.H{"report": report, "message": "refresh already in progress"})
		return
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"report": report, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// Update installs every outdated entry.
func (h *Handlers) Update(c *gin.Context) {
	res := h.manager.Update(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"result": res,
		"badge":  h.manager.Tree().Badge(),
	})
}

// Install installs the catalog's version of an extension.
func (h *Handlers) Install(c *gin.Context) {
	res, err := h.manager.Install(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Uninstall removes an extension.
func (h *Handlers) Uninstall(c *gin.Context) {
	res, err := h.manager.Uninstall(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Details returns an extension's manifest and rendered documentation.
func (h *Handlers) Details(c *gin.Context) {
	details, err := h.manager.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// SetToken stores the registry access token.
func (h *Handlers) SetToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.SetToken(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": marketplace.MsgTokenStored})
}

// ClearToken removes the stored token.
func (h *Handlers) ClearToken(c *gin.Context) {
	if err := h.manager.ClearToken(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Settings returns the effective settings.
func (h *Handlers) Settings(c *gin.Context) {
	settings, err := h.settings.Current()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"settings": settings, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type registryRequest struct {
	URL string `json:"url" binding:"required"`
}

// AddRegistry appends a package registry URL to the settings file. The
// settings watcher picks the change up and refreshes.
func (h *Handlers) AddRegistry(c *gin.Context) {
	var req registryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u := strings.TrimSpace(req.URL)
	if parsed, err := url.Parse(u); err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) url"})
		return
	}

	settings, err := h.settings.Update(func(s *config.Settings) {
		for _, existing := range s.PackageURLs {
			if strings.TrimSpace(existing) == u {
				return
			}
		}
		s.PackageURLs = append(s.PackageURLs, u)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// Advisories returns recent notices, oldest first.
func (h *Handlers) Advisories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"advisories": h.advisories.List()})
}

// MetricsJSON returns a compact metrics snapshot.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":    h.metrics.Snapshot(),
		"registries": h.breakerStates(),
	})
}

func (h *Handlers) breakerStates() map[string]string {
	out := make(map[string]string)
	if h.breakers == nil {
		return out
	}
	for host, state := range h.breakers.BreakerStates() {
		out[host] = state.String()
	}
	return out
}
