// Package server exposes the metrics core over HTTP. Every route is scoped to a project uuid.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/common/logging"
	"github.com/weni-ai/insights/internal/common/requestid"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/insights/service"
	"github.com/weni-ai/insights/internal/upstream/chats"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

type QueryRunner interface {
	Run(ctx context.Context, projectUUID uuid.UUID, request service.QueryRequest) (*service.Result, error)
}

type FeatureFlags interface {
	GetActiveFeatureFlags(ctx context.Context, attributes map[string]interface{}) ([]string, error)
}

type OrderMetrics interface {
	GetMetrics(ctx context.Context, projectUUID string, credentials vtex.Credentials, params vtex.OrdersParams) (vtex.OrderMetrics, error)
}

type AbandonedCartMetrics interface {
	GetMetrics(ctx context.Context, projectUUID uuid.UUID, startDate, endDate string) (service.AbandonedCartMetrics, error)
}

type AgentLister interface {
	ListAgents(ctx context.Context, projectUUID string, params url.Values) ([]chats.Agent, error)
}

// Services are the backends the routes delegate to. A nil service makes its route answer 404.
type Services struct {
	Queries       QueryRunner
	FeatureFlags  FeatureFlags
	Orders        OrderMetrics
	AbandonedCart AbandonedCartMetrics
	Agents        AgentLister
	Integrations  integrations.Provider
}

type Server struct {
	services Services
}

func NewServer(services Services) *Server {
	return &Server{services: services}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/projects/{project}/metrics/{resource}", s.getMetrics)
	mux.HandleFunc("POST /v1/projects/{project}/metrics/{resource}", s.postMetrics)
	mux.HandleFunc("GET /v1/projects/{project}/feature-flags", s.featureFlags)
	mux.HandleFunc("GET /v1/projects/{project}/orders", s.orders)
	mux.HandleFunc("GET /v1/projects/{project}/abandoned-cart", s.abandonedCart)
	mux.HandleFunc("GET /v1/projects/{project}/agents", s.agents)
}

// WithMiddleware tags each request with an id and logs it once it has been answered.
func WithMiddleware(handler http.Handler) http.Handler {
	return requestid.Middleware(false, logRequests(handler))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		log.WithField("request_id", requestid.FromContextOrMissing(r.Context())).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", recorder.status).
			WithField("duration", time.Since(start)).
			Debug("Handled request")
	})
}

func projectFromPath(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("project")
	project, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &insightserrors.ErrInvalidArgument{Name: "project", Value: raw, Message: "must be a uuid"}
	}
	return project, nil
}

func notConfigured(feature string) error {
	return &insightserrors.ErrNotFound{Type: "feature", Value: feature, Message: "not configured on this server"}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := insightserrors.HTTPStatusFromError(err)
	entry := log.WithField("request_id", requestid.FromContextOrMissing(r.Context())).
		WithField("path", r.URL.Path).
		WithField("status", status)
	if status >= http.StatusInternalServerError {
		logging.WithError(entry, err).Error("Request failed")
	} else {
		entry.WithError(err).Debug("Request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
