package querygen

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SearchClause is one Elasticsearch query DSL clause.
type SearchClause = map[string]interface{}

// SearchFilterStrategy turns one (field, operator, value) triple into a query clause.
// A nil clause with a nil error means the filter should be skipped.
type SearchFilterStrategy interface {
	Apply(field string, operator string, value interface{}) (SearchClause, error)
}

// ElasticSearchFilterStrategy writes term level queries. Fields under one of NestedPaths,
// e.g. values.name under values, are wrapped in a nested query on that path.
type ElasticSearchFilterStrategy struct {
	NestedPaths []string
}

func NewElasticSearchFilterStrategy(nestedPaths ...string) SearchFilterStrategy {
	return &ElasticSearchFilterStrategy{NestedPaths: nestedPaths}
}

func (s *ElasticSearchFilterStrategy) Apply(field string, operator string, value interface{}) (SearchClause, error) {
	var clause SearchClause
	switch operator {
	case OperatorEq:
		if value == nil {
			clause = mustNot(exists(field))
			break
		}
		if isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		clause = SearchClause{"term": SearchClause{field: value}}
	case OperatorNe:
		if value == nil {
			clause = exists(field)
			break
		}
		if isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		clause = mustNot(SearchClause{"term": SearchClause{field: value}})
	case OperatorGt, OperatorGte, OperatorLt, OperatorLte:
		if value == nil || isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		clause = SearchClause{"range": SearchClause{field: SearchClause{operator: value}}}
	case OperatorIn:
		clause = SearchClause{"terms": SearchClause{field: toSlice(value)}}
	case OperatorContains, OperatorIContains:
		wildcard := SearchClause{"value": "*" + escapeWildcard(fmt.Sprint(value)) + "*"}
		if operator == OperatorIContains {
			wildcard["case_insensitive"] = true
		}
		clause = SearchClause{"wildcard": SearchClause{field: wildcard}}
	case OperatorIsNull:
		isNull, err := parseBool(value)
		if err != nil {
			return nil, invalidValue(field, operator, value, "expected a boolean")
		}
		if isNull {
			clause = mustNot(exists(field))
		} else {
			clause = exists(field)
		}
	default:
		log.Debugf("Skipping filter on %s: unsupported operator %q", field, operator)
		return nil, nil
	}

	if path := s.nestedPath(field); path != "" {
		return SearchClause{"nested": SearchClause{"path": path, "query": clause}}, nil
	}
	return clause, nil
}

func (s *ElasticSearchFilterStrategy) nestedPath(field string) string {
	for _, path := range s.NestedPaths {
		if strings.HasPrefix(field, path+".") {
			return path
		}
	}
	return ""
}

func exists(field string) SearchClause {
	return SearchClause{"exists": SearchClause{"field": field}}
}

func mustNot(clause SearchClause) SearchClause {
	return SearchClause{"bool": SearchClause{"must_not": []interface{}{clause}}}
}

func escapeWildcard(value string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(value)
}
