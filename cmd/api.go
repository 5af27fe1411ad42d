package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sells-group/property-research/internal/analysis"
	"github.com/sells-group/property-research/internal/chat"
	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/monitoring"
)

const maxBodyBytes = 1 << 20

// apiServer holds the handlers' dependencies.
type apiServer struct {
	svc          *analysis.Service
	chat         *chat.Responder
	collector    *monitoring.Collector
	defaultDepth model.AnalysisDepth
	maxTaskAge   time.Duration
	lookbackHrs  int
	now          func() time.Time
}

type analyzeRequest struct {
	Address                     string `json:"address"`
	AnalysisDepth               string `json:"analysis_depth"`
	IncludeMarketAnalysis       *bool  `json:"include_market_analysis,omitempty"`
	IncludeDevelopmentPotential *bool  `json:"include_development_potential,omitempty"`
}

type analyzeAccepted struct {
	AnalysisID     string `json:"analysis_id"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	StatusEndpoint string `json:"status_endpoint"`
}

type analyzeSyncResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       *model.Envelope `json:"data"`
	AnalysisID string          `json:"analysis_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

type statusResponse struct {
	TaskID      string           `json:"task_id"`
	Status      model.TaskStatus `json:"status"`
	Progress    int              `json:"progress"`
	CurrentStep string           `json:"current_step"`
	Result      *model.Envelope  `json:"result"`
	Error       *string          `json:"error"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newStatusResponse(t model.Task) statusResponse {
	resp := statusResponse{
		TaskID:      t.ID,
		Status:      t.Status,
		Progress:    t.Progress,
		CurrentStep: t.CurrentStep,
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Error != "" {
		resp.Error = &t.Error
	}
	return resp
}

// newRouter builds the HTTP API.
func newRouter(s *apiServer) http.Handler {
	if s.now == nil {
		s.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze-sync", s.handleAnalyzeSync)
		r.Get("/status/{taskID}", s.handleStatus)
		r.Post("/chat", s.handleChat)
		r.Get("/metrics", s.handleMetrics)
		r.Delete("/tasks", s.handleEvict)
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Property Analysis API",
		"status":       "operational",
		"active_tasks": s.svc.CountActive(),
		"endpoints": map[string]string{
			"analyze":      "/api/analyze",
			"analyze_sync": "/api/analyze-sync",
			"status":       "/api/status/{task_id}",
			"chat":         "/api/chat",
			"metrics":      "/api/metrics",
			"health":       "/health",
		},
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"active_tasks": s.svc.CountActive(),
	})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeValidated(w, r, analyzeSchema, &req) {
		return
	}
	depth, err := model.ParseDepth(req.AnalysisDepth, s.defaultDepth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.svc.Submit(r.Context(), req.Address, depth)
	switch {
	case err == nil:
	case eris.Is(err, analysis.ErrAtCapacity):
		writeError(w, http.StatusServiceUnavailable, "Server at capacity, please try again later")
		return
	case eris.Is(err, analysis.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "Invalid address provided")
		return
	default:
		zap.L().Error("failed to start analysis", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start analysis: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analyzeAccepted{
		AnalysisID:     id,
		Success:        true,
		Message:        "Analysis started successfully",
		StatusEndpoint: "/api/status/" + id,
	})
}

func (s *apiServer) handleAnalyzeSync(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeValidated(w, r, analyzeSchema, &req) {
		return
	}
	depth, err := model.ParseDepth(req.AnalysisDepth, s.defaultDepth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, id, err := s.svc.Analyze(r.Context(), req.Address, depth)
	switch {
	case err == nil:
	case eris.Is(err, analysis.ErrTimeout):
		writeError(w, http.StatusRequestTimeout, "Analysis timed out")
		return
	case eris.Is(err, analysis.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "Invalid address provided")
		return
	default:
		zap.L().Error("sync analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Analysis failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analyzeSyncResponse{
		Success:    true,
		Message:    "Analysis completed successfully",
		Data:       env,
		AnalysisID: id,
		Timestamp:  s.now(),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.svc.Status(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(task))
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !decodeValidated(w, r, chatSchema, &req) {
		return
	}
	resp, err := s.chat.Respond(r.Context(), req)
	if eris.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Collect(s.lookbackHrs))
}

func (s *apiServer) handleEvict(w http.ResponseWriter, r *http.Request) {
	age := s.maxTaskAge
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := parseAge(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "older_than must be a duration like 30m or a number of minutes")
			return
		}
		age = d
	}
	removed := s.svc.EvictOld(age)
	writeJSON(w, http.StatusOK, map[string]any{
		"removed":    removed,
		"older_than": age.String(),
	})
}

// parseAge accepts a Go duration or a bare number of minutes.
func parseAge(raw string) (time.Duration, error) {
	if mins, err := strconv.Atoi(raw); err == nil {
		if mins < 0 {
			return 0, eris.New("negative age")
		}
		return time.Duration(mins) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, eris.New("negative age")
	}
	return d, nil
}

// decodeValidated reads the body, validates it against schema and decodes
// it into dst. On failure it writes a 400 and returns false.
func decodeValidated(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := validateBody(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
