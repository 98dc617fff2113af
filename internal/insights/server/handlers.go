package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/insights/service"
	"github.com/weni-ai/insights/internal/querygen"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

const (
	queryTypeParam = "query_type"
	opFieldParam   = "op_field"
	fieldParam     = "field"
	fieldsParam    = "fields"
	orderByParam   = "order_by"
	limitParam     = "limit"
	offsetParam    = "offset"
)

// Query string keys that configure the aggregation rather than filter rows.
var reservedParams = []string{queryTypeParam, opFieldParam, fieldParam, fieldsParam, orderByParam, limitParam, offsetParam}

type metricsBody struct {
	Filters   querygen.Filters          `json:"filters"`
	QueryType string                    `json:"query_type"`
	Options   querygen.AggregateOptions `json:"options"`
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	filters, err := querygen.ParseFiltersQuery(r.URL.RawQuery, reservedParams...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	options, err := optionsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.runQuery(w, r, service.QueryRequest{
		Resource:  r.PathValue("resource"),
		Filters:   filters,
		QueryType: r.URL.Query().Get(queryTypeParam),
		Options:   options,
	})
}

func (s *Server) postMetrics(w http.ResponseWriter, r *http.Request) {
	var body metricsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, &insightserrors.ErrInvalidArgument{Name: "body", Message: err.Error()})
		return
	}
	s.runQuery(w, r, service.QueryRequest{
		Resource:  r.PathValue("resource"),
		Filters:   body.Filters,
		QueryType: body.QueryType,
		Options:   body.Options,
	})
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, request service.QueryRequest) {
	project, err := projectFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.services.Queries == nil {
		writeError(w, r, notConfigured("metrics"))
		return
	}
	result, err := s.services.Queries.Run(r.Context(), project, request)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) featureFlags(w http.ResponseWriter, r *http.Request) {
	project, err := projectFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.services.FeatureFlags == nil {
		writeError(w, r, notConfigured("feature flags"))
		return
	}
	attributes := map[string]interface{}{}
	for key, values := range r.URL.Query() {
		attributes[key] = values[0]
	}
	attributes["projectUUID"] = project.String()

	flags, err := s.services.FeatureFlags.GetActiveFeatureFlags(r.Context(), attributes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"active_features": flags})
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	project, err := projectFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.services.Orders == nil || s.services.Integrations == nil {
		writeError(w, r, notConfigured("orders"))
		return
	}
	credentials, err := integrations.VTEXCredentials(s.services.Integrations, project)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	metrics, err := s.services.Orders.GetMetrics(r.Context(), project.String(), credentials, vtex.OrdersParams{
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		UTMSource: query.Get("utm_source"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) abandonedCart(w http.ResponseWriter, r *http.Request) {
	project, err := projectFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.services.AbandonedCart == nil {
		writeError(w, r, notConfigured("abandoned cart"))
		return
	}
	query := r.URL.Query()
	metrics, err := s.services.AbandonedCart.GetMetrics(r.Context(), project, query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) agents(w http.ResponseWriter, r *http.Request) {
	project, err := projectFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.services.Agents == nil {
		writeError(w, r, notConfigured("agents"))
		return
	}
	agents, err := s.services.Agents.ListAgents(r.Context(), project.String(), r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": agents})
}

func optionsFromQuery(query url.Values) (querygen.AggregateOptions, error) {
	options := querygen.AggregateOptions{
		OpField: query.Get(opFieldParam),
		Field:   query.Get(fieldParam),
		Fields:  splitList(query[fieldsParam]),
		OrderBy: splitList(query[orderByParam]),
	}
	var err error
	if options.Limit, err = parseUint(query, limitParam); err != nil {
		return options, err
	}
	if options.Offset, err = parseUint(query, offsetParam); err != nil {
		return options, err
	}
	return options, nil
}

// splitList accepts both repeated keys and comma separated values.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func parseUint(query url.Values, name string) (uint, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, &insightserrors.ErrInvalidArgument{Name: name, Value: raw, Message: "must be a non-negative integer"}
	}
	return uint(value), nil
}
