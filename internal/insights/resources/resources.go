// Package resources lists the resources metrics can be queried on and how their filters map onto storage.
package resources

import (
	"sort"

	"github.com/weni-ai/insights/internal/common/insightserrors"
	"github.com/weni-ai/insights/internal/querygen"
)

type Backend string

const (
	BackendSQL    Backend = "sql"
	BackendSearch Backend = "search"
)

// ProjectFilter is the key every resource scopes its queries by. It is always set by the server.
const ProjectFilter = "project"

type Resource struct {
	Name    string
	Backend Backend
	Fields  querygen.MapFilterSet
	// SQL backends
	Table querygen.PostgresTable
	// Search backends
	Index       querygen.SearchIndex
	NestedPaths []string
}

func (r Resource) GenerateSQL(filters querygen.Filters, queryType string, opts querygen.AggregateOptions) (*querygen.Query, error) {
	return querygen.GenerateSQL(
		querygen.NewPostgresFilterStrategy,
		func() querygen.SQLQueryBuilder { return querygen.NewPostgresQueryBuilder(r.Table) },
		func() querygen.FilterSet { return r.Fields },
		filters,
		queryType,
		opts,
	)
}

func (r Resource) GenerateSearch(filters querygen.Filters, queryType string, opts querygen.AggregateOptions) (*querygen.SearchQuery, error) {
	return querygen.GenerateSearch(
		func() querygen.SearchFilterStrategy { return querygen.NewElasticSearchFilterStrategy(r.NestedPaths...) },
		func() querygen.SearchQueryBuilder { return querygen.NewElasticSearchQueryBuilder(r.Index) },
		func() querygen.FilterSet { return r.Fields },
		filters,
		queryType,
		opts,
	)
}

// Aggregations lists the query types the resource's backend can answer.
func (r Resource) Aggregations() []string {
	if r.Backend == BackendSearch {
		return querygen.NewElasticSearchQueryBuilder(r.Index).Aggregations()
	}
	return querygen.NewPostgresQueryBuilder(r.Table).Aggregations()
}

type Registry struct {
	resources map[string]Resource
}

func NewRegistry(resources ...Resource) *Registry {
	registry := &Registry{resources: make(map[string]Resource, len(resources))}
	for _, resource := range resources {
		registry.resources[resource.Name] = resource
	}
	return registry
}

func DefaultRegistry() *Registry {
	return NewRegistry(Rooms(), FlowRuns())
}

func (r *Registry) Get(name string) (Resource, error) {
	resource, ok := r.resources[name]
	if !ok {
		return Resource{}, &insightserrors.ErrNotFound{Type: "resource", Value: name}
	}
	return resource, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
