package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/metrics"
	"github.com/weni-ai/insights/internal/insights/executor"
	"github.com/weni-ai/insights/internal/insights/resources"
	"github.com/weni-ai/insights/internal/querygen"
)

const (
	unknownLabel = "unknown"
	invalidLabel = "invalid"
)

type QueryRequest struct {
	Resource  string
	Filters   querygen.Filters
	QueryType string
	Options   querygen.AggregateOptions
}

type Result struct {
	Resource  string      `json:"resource"`
	QueryType string      `json:"query_type"`
	Value     interface{} `json:"value"`
}

// Plan is what a request would run. Exactly one of Sql and Search is set.
type Plan struct {
	Resource resources.Resource
	Sql      *querygen.Query
	Search   *querygen.SearchQuery
}

type QueryService struct {
	registry *resources.Registry
	sql      executor.SQLExecutor
	search   executor.SearchExecutor
	metrics  *metrics.Metrics
}

// NewQueryService wires the executors. Either may be nil when that backend is not configured.
func NewQueryService(registry *resources.Registry, sql executor.SQLExecutor, search executor.SearchExecutor) *QueryService {
	return &QueryService{
		registry: registry,
		sql:      sql,
		search:   search,
		metrics:  metrics.Get(),
	}
}

// Plan generates the query for request scoped to projectUUID without running it.
// A caller supplied project filter is always replaced.
func (s *QueryService) Plan(projectUUID uuid.UUID, request QueryRequest) (*Plan, error) {
	resource, err := s.registry.Get(request.Resource)
	if err != nil {
		return nil, err
	}
	filters := request.Filters.With(resources.ProjectFilter, projectUUID.String())

	plan := &Plan{Resource: resource}
	switch resource.Backend {
	case resources.BackendSQL:
		plan.Sql, err = resource.GenerateSQL(filters, request.QueryType, request.Options)
	case resources.BackendSearch:
		plan.Search, err = resource.GenerateSearch(filters, request.QueryType, request.Options)
	default:
		err = errors.Errorf("resource %s has unknown backend %q", resource.Name, resource.Backend)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *QueryService) Run(ctx context.Context, projectUUID uuid.UUID, request QueryRequest) (result *Result, err error) {
	queryType := request.QueryType
	if queryType == "" {
		queryType = querygen.DefaultAggregation
	}
	start := time.Now()
	defer func() {
		resourceLabel, queryTypeLabel := s.metricLabels(request.Resource, queryType)
		s.metrics.RecordQuery(resourceLabel, queryTypeLabel, err, time.Since(start))
	}()

	plan, err := s.Plan(projectUUID, request)
	if err != nil {
		return nil, err
	}
	value, err := s.execute(ctx, plan, queryType)
	if err != nil {
		return nil, err
	}
	log.WithField("resource", request.Resource).
		WithField("query_type", queryType).
		WithField("project", projectUUID).
		Debugf("Query answered in %s", time.Since(start))
	return &Result{Resource: request.Resource, QueryType: queryType, Value: value}, nil
}

// metricLabels maps caller supplied names onto the registered ones so the
// query metrics keep a bounded number of series.
func (s *QueryService) metricLabels(resourceName string, queryType string) (string, string) {
	resource, err := s.registry.Get(resourceName)
	if err != nil {
		return unknownLabel, unknownLabel
	}
	for _, known := range resource.Aggregations() {
		if known == queryType {
			return resource.Name, queryType
		}
	}
	return resource.Name, invalidLabel
}

func (s *QueryService) execute(ctx context.Context, plan *Plan, queryType string) (interface{}, error) {
	switch {
	case plan.Sql != nil:
		if s.sql == nil {
			return nil, errors.Errorf("no sql backend configured for resource %s", plan.Resource.Name)
		}
		if queryType == querygen.AggregationList {
			return s.sql.Rows(ctx, plan.Sql)
		}
		return s.sql.Scalar(ctx, plan.Sql)
	case plan.Search != nil:
		if s.search == nil {
			return nil, errors.Errorf("no search backend configured for resource %s", plan.Resource.Name)
		}
		response, err := s.search.Execute(ctx, plan.Search)
		if err != nil {
			return nil, err
		}
		return executor.ExtractValue(queryType, plan.Resource.Index.ValuesPath, response), nil
	default:
		return nil, errors.New("empty query plan")
	}
}
