// Package webapi provides a read-only HTTP API over the skill catalog.
// It exposes REST endpoints for listing skills, inspecting a single
// skill, and reading bundled resource content, intended for dashboards
// and other local tooling sitting next to a satchel install.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/presenter"
	"github.com/satchel-sh/satchel/pkg/skills"
)

// Server serves the skill catalog over HTTP. All endpoints are read-only;
// the catalog is always answered through the loader so the responses
// follow the same cache window as every other consumer.
type Server struct {
	router *mux.Router
	loader *skills.Loader
	config *ServerConfig
	server *http.Server
}

// ServerConfig holds the configuration for the web server
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}

// NewServer creates a new catalog API server backed by the given loader.
func NewServer(loader *skills.Loader, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if loader == nil {
		return nil, errors.New("loader is required")
	}

	s := &Server{
		router: mux.NewRouter(),
		loader: loader,
		config: config,
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	// OPTIONS is listed so preflight requests match the route and reach
	// the CORS middleware instead of a bare 405.
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET", "OPTIONS")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET", "OPTIONS")
	// Resource paths are slash-separated relative paths, so the var has to
	// swallow separators.
	api.HandleFunc("/skills/{id}/resources/{path:.*}", s.handleGetResource).Methods("GET", "OPTIONS")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers for browser-based dashboards
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SkillSummary is the list-level view of one skill.
type SkillSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	ResourceCount int       `json:"resourceCount"`
	LastModified  time.Time `json:"lastModified"`
}

// SkillListResponse is the payload for GET /api/skills.
type SkillListResponse struct {
	Skills []SkillSummary `json:"skills"`
	Total  int            `json:"total"`
}

// ResourceInfo describes one bundled resource without its content.
type ResourceInfo struct {
	FileName     string    `json:"fileName"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// SkillDetail is the full view of one skill, instructions included.
type SkillDetail struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Instructions string         `json:"instructions"`
	Version      string         `json:"version,omitempty"`
	Author       string         `json:"author,omitempty"`
	Category     string         `json:"category,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	LastModified time.Time      `json:"lastModified"`
	LoadedAt     time.Time      `json:"loadedAt"`
	Resources    []ResourceInfo `json:"resources"`
}

// ResourceContentResponse is the payload for a single resource read.
type ResourceContentResponse struct {
	SkillID      string    `json:"skillId"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Content      string    `json:"content"`
}

// API Handlers

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		catalog []*skills.Skill
		err     error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		catalog, err = s.loader.FindSkillsByTag(ctx, tag)
	} else {
		catalog, err = s.loader.Discover(ctx)
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to list skills", err)
		return
	}

	summaries := make([]SkillSummary, 0, len(catalog))
	for _, skill := range catalog {
		summaries = append(summaries, SkillSummary{
			ID:            skill.ID,
			Name:          skill.Name,
			Description:   skill.Description,
			Category:      skill.Category,
			Tags:          skill.Tags,
			ResourceCount: skill.TotalResourceCount(),
			LastModified:  skill.LastModified,
		})
	}

	s.writeJSONResponse(w, &SkillListResponse{
		Skills: summaries,
		Total:  len(summaries),
	})
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	skill, err := s.loader.Load(ctx, id)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to load skill", err)
		return
	}
	if skill == nil {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("skill not found: %s", id), nil)
		return
	}

	all := skill.AllResources()
	resources := make([]ResourceInfo, 0, len(all))
	for _, res := range all {
		resources = append(resources, ResourceInfo{
			FileName:     res.FileName,
			Path:         res.RelativePath,
			Type:         string(res.Type),
			Size:         res.FileSize,
			LastModified: res.LastModified,
		})
	}

	s.writeJSONResponse(w, &SkillDetail{
		ID:           skill.ID,
		Name:         skill.Name,
		Description:  skill.Description,
		Instructions: skill.Instructions,
		Version:      skill.Version,
		Author:       skill.Author,
		Category:     skill.Category,
		Tags:         skill.Tags,
		LastModified: skill.LastModified,
		LoadedAt:     skill.LoadedAt,
		Resources:    resources,
	})
}

// handleGetResource handles GET /api/skills/{id}/resources/{path}
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]
	path := vars["path"]

	skill, err := s.loader.Load(ctx, id)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to load skill", err)
		return
	}
	if skill == nil {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("skill not found: %s", id), nil)
		return
	}

	res, ok := skill.FindResource(path)
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("resource not found: %s", path), nil)
		return
	}

	content, ok, err := s.loader.LoadResourceContent(ctx, res)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to read resource", err)
		return
	}
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("resource not found: %s", path), nil)
		return
	}

	s.writeJSONResponse(w, &ResourceContentResponse{
		SkillID:      skill.ID,
		Path:         res.RelativePath,
		Type:         string(res.Type),
		Size:         res.FileSize,
		LastModified: res.LastModified,
		Content:      content,
	})
}

// Utility methods

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Start starts the web server and blocks until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting catalog API on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("catalog API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the web server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
