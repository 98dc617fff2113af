package querygen

import (
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

// GenerateSQL turns filters into a SQL query computing queryType (count when empty).
//
// Each call builds its own strategy, builder and filter set. Filters are applied in order:
// keys that do not resolve in the filter set, or that carry a malformed or unsupported
// operator, are skipped. An unknown queryType fails before any filter is looked at.
func GenerateSQL(
	newStrategy func() SQLFilterStrategy,
	newBuilder func() SQLQueryBuilder,
	newFilterSet func() FilterSet,
	filters Filters,
	queryType string,
	opts AggregateOptions,
) (*Query, error) {
	strategy := newStrategy()
	builder := newBuilder()
	filterSet := newFilterSet()

	if queryType == "" {
		queryType = DefaultAggregation
	}
	aggregation, ok := builder.Aggregation(queryType)
	if !ok {
		return nil, &insightserrors.ErrInvalidAggregation{Name: queryType, Supported: builder.Aggregations()}
	}

	for _, filter := range filters {
		field, operator, ok := resolve(filterSet, filter)
		if !ok {
			continue
		}
		if len(field.JoinClause) > 0 {
			builder.AddJoins(field.JoinClause)
		}
		if err := builder.AddFilter(strategy, field.SourceField, operator, filter.Value, field.TableAlias); err != nil {
			return nil, err
		}
	}
	if err := builder.BuildQuery(); err != nil {
		return nil, err
	}
	return aggregation(opts)
}

// GenerateSearch is GenerateSQL for search backends. There are no aliases or joins:
// nested documents are handled by the strategy.
func GenerateSearch(
	newStrategy func() SearchFilterStrategy,
	newBuilder func() SearchQueryBuilder,
	newFilterSet func() FilterSet,
	filters Filters,
	queryType string,
	opts AggregateOptions,
) (*SearchQuery, error) {
	strategy := newStrategy()
	builder := newBuilder()
	filterSet := newFilterSet()

	if queryType == "" {
		queryType = DefaultAggregation
	}
	aggregation, ok := builder.Aggregation(queryType)
	if !ok {
		return nil, &insightserrors.ErrInvalidAggregation{Name: queryType, Supported: builder.Aggregations()}
	}

	for _, filter := range filters {
		field, operator, ok := resolve(filterSet, filter)
		if !ok {
			continue
		}
		if err := builder.AddFilter(strategy, field.SourceField, operator, filter.Value); err != nil {
			return nil, err
		}
	}
	if err := builder.BuildQuery(); err != nil {
		return nil, err
	}
	return aggregation(opts)
}

func resolve(filterSet FilterSet, filter Filter) (FilterField, string, bool) {
	name, operator, ok := parseKey(filter.Key, filter.Value)
	if !ok {
		log.Debugf("Skipping malformed filter key %q", filter.Key)
		return FilterField{}, "", false
	}
	if !IsKnownOperator(operator) {
		log.Debugf("Skipping filter %q: unsupported operator %q", filter.Key, operator)
		return FilterField{}, "", false
	}
	field, ok := filterSet.GetField(name)
	if !ok {
		return FilterField{}, "", false
	}
	return field, operator, true
}
