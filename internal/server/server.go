// Package server wraps the bisection driver in an HTTP/JSON-RPC job
// service: submit a named objective, poll the job, cancel it. The
// solver itself stays a pure in-process library; everything stateful
// lives here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boxmin/boxmin/internal/config"
	apperrors "github.com/boxmin/boxmin/internal/errors"
	"github.com/boxmin/boxmin/internal/logging"
	"github.com/boxmin/boxmin/internal/metrics"
	"github.com/boxmin/boxmin/internal/optimization"
	"github.com/boxmin/boxmin/internal/optimization/bisection"
	"github.com/boxmin/boxmin/internal/optimization/objectives"
)

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job tracks one minimization from submission to a terminal state.
// Access goes through the server's mutex.
type Job struct {
	ID          string
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Result      *optimization.Result
	Error       string

	cancel context.CancelFunc
}

// Server manages minimization jobs over HTTP.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	zlog   *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewServer creates a job server backed by the given config and logger.
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		zlog:   logging.NewZapLogger(logger),
		jobs:   make(map[string]*Job),
	}
}

// RegisterRoutes mounts the REST API and the JSON-RPC endpoint.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/minimize/{id}", s.handleCancel)
	})
	r.Post("/rpc", s.handleJSONRPC)
}

// MinimizeRequest names a built-in objective and configures the run.
// The domain is either explicit bounds or a symmetric radius.
type MinimizeRequest struct {
	Objective  string `json:"objective"`
	Dimensions int    `json:"dimensions"`

	Low    []float64 `json:"low,omitempty"`
	High   []float64 `json:"high,omitempty"`
	Radius float64   `json:"radius,omitempty"`

	// Center parameterizes the shifted-sphere objective; ObjectiveSeed
	// pins the two-cosine surface.
	Center        []float64 `json:"center,omitempty"`
	ObjectiveSeed int64     `json:"objective_seed,omitempty"`

	EpsilonInner       float64 `json:"epsilon_inner,omitempty"`
	EpsilonOuter       float64 `json:"epsilon_outer,omitempty"`
	MaxOuterIterations int     `json:"max_outer_iterations,omitempty"`
	MaxRestarts        int     `json:"max_restarts,omitempty"`
	TargetF            float64 `json:"target_f,omitempty"`
	Seed               int64   `json:"seed,omitempty"`
	Workers            int     `json:"workers,omitempty"`
	TrustRadius        float64 `json:"trust_radius,omitempty"`
}

func (s *Server) buildObjective(req *MinimizeRequest) (optimization.Objective, error) {
	switch req.Objective {
	case "sphere":
		return objectives.Sphere{}, nil
	case "shifted-sphere":
		if len(req.Center) != req.Dimensions {
			return nil, apperrors.Errorf("shifted-sphere needs a center of length %d", req.Dimensions).
				WithOperation("build_objective").WithComponent("server")
		}
		return objectives.NewShiftedSphere(req.Center), nil
	case "two-cosine":
		return objectives.NewRandomTwoCosine(req.Dimensions, req.ObjectiveSeed), nil
	default:
		return nil, apperrors.Errorf("unknown objective %q", req.Objective).
			WithOperation("build_objective").WithComponent("server")
	}
}

func (s *Server) buildDomain(req *MinimizeRequest) (*optimization.Domain, error) {
	if len(req.Low) > 0 || len(req.High) > 0 {
		return optimization.NewDomain(req.Low, req.High)
	}
	radius := req.Radius
	if radius == 0 {
		radius = s.cfg.Optimization.TrustRadius
	}
	return optimization.NewSymmetricDomain(req.Dimensions, radius)
}

func (s *Server) buildConfig(req *MinimizeRequest) optimization.Config {
	cfg := optimization.Config{
		EpsilonInner:       req.EpsilonInner,
		EpsilonOuter:       req.EpsilonOuter,
		MaxOuterIterations: req.MaxOuterIterations,
		MaxRestarts:        req.MaxRestarts,
		TargetF:            req.TargetF,
		Seed:               req.Seed,
		Workers:            req.Workers,
		TrustRadius:        req.TrustRadius,
	}
	opt := s.cfg.Optimization
	if cfg.EpsilonInner == 0 {
		cfg.EpsilonInner = opt.EpsilonInner
	}
	if cfg.EpsilonOuter == 0 {
		cfg.EpsilonOuter = opt.EpsilonOuter
	}
	if cfg.MaxOuterIterations == 0 {
		cfg.MaxOuterIterations = opt.MaxOuterIterations
	}
	if cfg.MaxRestarts == 0 {
		cfg.MaxRestarts = opt.MaxRestarts
	}
	if cfg.Workers == 0 {
		cfg.Workers = opt.Workers
	}
	if cfg.TrustRadius == 0 {
		cfg.TrustRadius = opt.TrustRadius
	}
	return cfg.WithDefaults()
}

// start validates the request, registers a job and launches it.
func (s *Server) start(req *MinimizeRequest) (*Job, error) {
	if req.Dimensions < 1 {
		return nil, apperrors.New("dimensions must be at least 1").
			WithOperation("start").WithComponent("server")
	}
	obj, err := s.buildObjective(req)
	if err != nil {
		return nil, err
	}
	domain, err := s.buildDomain(req)
	if err != nil {
		return nil, err
	}
	if domain.Dim() != req.Dimensions {
		return nil, apperrors.Errorf("domain has %d dimensions, request says %d", domain.Dim(), req.Dimensions).
			WithOperation("start").WithComponent("server")
	}
	cfg := s.buildConfig(req)

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:          fmt.Sprintf("min_%d", time.Now().UnixNano()),
		Status:      StatusPending,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		cancel:      cancel,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runJob(ctx, job.ID, obj, domain, cfg)
	return job, nil
}

// runJob executes the driver and moves the job to a terminal state.
func (s *Server) runJob(ctx context.Context, id string, obj optimization.Objective, domain *optimization.Domain, cfg optimization.Config) {
	s.updateJob(id, func(j *Job) { j.Status = StatusRunning })
	metrics.MinimizationsActive.Inc()
	defer metrics.MinimizationsActive.Dec()

	s.logger.Info("job started", map[string]interface{}{
		"job_id":       id,
		"dimensions":   domain.Dim(),
		"max_restarts": cfg.MaxRestarts,
		"workers":      cfg.Workers,
	})

	driver := bisection.NewDriver(cfg, s.zlog.With(zap.String("job_id", id)))
	res, err := driver.Minimize(ctx, obj, domain)

	status := StatusCompleted
	switch {
	case ctx.Err() != nil:
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
		err = apperrors.Wrap(err, "minimization failed").
			WithOperation("minimize").WithComponent("driver")
	}

	s.updateJob(id, func(j *Job) {
		now := time.Now()
		j.Status = status
		j.EndTime = &now
		j.Result = res
		if err != nil {
			j.Error = err.Error()
		}
	})

	if res != nil {
		metrics.ObserveResult(status, res.RestartsUsed, res.InnerStepsTotal, res.OuterCyclesTotal)
	} else {
		metrics.MinimizationsTotal.WithLabelValues(status).Inc()
	}

	if err != nil {
		s.logger.Error("job failed", map[string]interface{}{"job_id": id, "error": err.Error()})
		return
	}
	s.logger.Info("job finished", map[string]interface{}{
		"job_id":    id,
		"status":    status,
		"f_best":    res.FBest,
		"converged": res.Converged,
		"restarts":  res.RestartsUsed,
	})
}

func (s *Server) updateJob(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.LastUpdated = time.Now()
	}
}

func (s *Server) getJob(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// cancelJob requests cancellation of a running job.
func (s *Server) cancelJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	switch job.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("cannot cancel job with status %s", job.Status)
	}
	job.cancel()
	job.LastUpdated = time.Now()
	return nil
}

// jobResponse is the wire form of a job's state.
func jobResponse(j *Job) map[string]interface{} {
	resp := map[string]interface{}{
		"job_id":      j.ID,
		"status":      j.Status,
		"start_time":  j.StartTime.Format(time.RFC3339),
		"last_update": j.LastUpdated.Format(time.RFC3339),
	}
	if j.EndTime != nil {
		resp["end_time"] = j.EndTime.Format(time.RFC3339)
	}
	if j.Error != "" {
		resp["error"] = j.Error
	}
	if j.Result != nil {
		resp["result"] = map[string]interface{}{
			"x_best":             j.Result.XBest,
			"f_best":             j.Result.FBest,
			"converged":          j.Result.Converged,
			"restarts_used":      j.Result.RestartsUsed,
			"inner_steps_total":  j.Result.InnerStepsTotal,
			"outer_cycles_total": j.Result.OuterCyclesTotal,
		}
	}
	return resp
}

func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req MinimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	job, err := s.start(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.getJob(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "job not found"})
		return
	}
	s.mu.RLock()
	resp := jobResponse(job)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancelJob(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("job cancellation requested", map[string]interface{}{"job_id": id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// JSON-RPC 2.0 surface, mirroring the REST operations.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcJobParams struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRPCError(w, -32700, "Parse error", nil)
		return
	}
	if req.JSONRPC != "2.0" {
		s.writeRPCError(w, -32600, "Invalid Request", req.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case "minimize.start":
		var params MinimizeRequest
		if err = json.Unmarshal(req.Params, &params); err == nil {
			var job *Job
			if job, err = s.start(&params); err == nil {
				result = map[string]interface{}{"job_id": job.ID, "status": job.Status}
			}
		}
	case "minimize.status":
		var params rpcJobParams
		if err = json.Unmarshal(req.Params, &params); err == nil {
			job, ok := s.getJob(params.JobID)
			if !ok {
				err = fmt.Errorf("job not found: %s", params.JobID)
			} else {
				s.mu.RLock()
				result = jobResponse(job)
				s.mu.RUnlock()
			}
		}
	case "minimize.cancel":
		var params rpcJobParams
		if err = json.Unmarshal(req.Params, &params); err == nil {
			if err = s.cancelJob(params.JobID); err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	default:
		s.writeRPCError(w, -32601, "Method not found", req.ID)
		return
	}

	if err != nil {
		s.writeRPCError(w, -32000, err.Error(), req.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	})
}

func (s *Server) writeRPCError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("rpc error", map[string]interface{}{"code": code, "message": message})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]interface{}{"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Close cancels every job that is still running.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	return nil
}
