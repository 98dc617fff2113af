package health

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const HealthPath = "/health"

type status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HttpHandler answers liveness probes: 200 when the checker passes, 503 with the failure otherwise.
type HttpHandler struct {
	checker Checker
}

func NewHttpHandler(checker Checker) *HttpHandler {
	return &HttpHandler{
		checker: checker,
	}
}

func (h *HttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	body := status{Status: "ok"}
	code := http.StatusOK
	if err := h.checker.Check(); err != nil {
		log.Warnf("Health check failed: %v", err)
		body = status{Status: "unavailable", Error: err.Error()}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to write health check response: %v", err)
	}
}

func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle(HealthPath, NewHttpHandler(checker))
}
