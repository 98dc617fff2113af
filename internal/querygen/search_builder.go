package querygen

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

// SearchQuery is a rendered search request: POST Body to Endpoint.
type SearchQuery struct {
	Endpoint string
	Body     map[string]interface{}
}

type SearchAggregation func(opts AggregateOptions) (*SearchQuery, error)

// SearchQueryBuilder accumulates filter clauses for one search request. Builders are single use.
type SearchQueryBuilder interface {
	AddFilter(strategy SearchFilterStrategy, field string, operator string, value interface{}) error
	BuildQuery() error
	Aggregation(name string) (SearchAggregation, bool)
	Aggregations() []string
}

// SearchIndex describes an index whose documents carry sparse facts in a nested list,
// e.g. values: [{name: "order_total", value: "10", value_number: 10}].
type SearchIndex struct {
	Name string
	// Path of the nested fact list
	ValuesPath string
	// Attribute of a fact holding its name
	NameField string
	// Attribute used by numeric aggregations when no op_field is given
	NumberField string
	// Attribute used by recurrence when no op_field is given
	RawField string
}

type ElasticSearchQueryBuilder struct {
	index   SearchIndex
	clauses []interface{}
	query   SearchClause
	built   bool
}

func NewElasticSearchQueryBuilder(index SearchIndex) *ElasticSearchQueryBuilder {
	return &ElasticSearchQueryBuilder{index: index}
}

func (b *ElasticSearchQueryBuilder) AddFilter(strategy SearchFilterStrategy, field string, operator string, value interface{}) error {
	if b.built {
		return errors.New("filter added after query was built")
	}
	clause, err := strategy.Apply(field, operator, value)
	if err != nil {
		return err
	}
	if clause != nil {
		b.clauses = append(b.clauses, clause)
	}
	return nil
}

func (b *ElasticSearchQueryBuilder) BuildQuery() error {
	if b.built {
		return errors.New("query already built")
	}
	if len(b.clauses) == 0 {
		b.query = SearchClause{"match_all": SearchClause{}}
	} else {
		b.query = SearchClause{"bool": SearchClause{"filter": b.clauses}}
	}
	b.built = true
	return nil
}

func (b *ElasticSearchQueryBuilder) aggregations() map[string]SearchAggregation {
	return map[string]SearchAggregation{
		AggregationCount:      b.Count,
		AggregationSum:        b.metric("sum"),
		AggregationAvg:        b.metric("avg"),
		AggregationMin:        b.metric("min"),
		AggregationMax:        b.metric("max"),
		AggregationRecurrence: b.Recurrence,
		AggregationList:       b.List,
	}
}

func (b *ElasticSearchQueryBuilder) Aggregation(name string) (SearchAggregation, bool) {
	aggregation, ok := b.aggregations()[name]
	return aggregation, ok
}

func (b *ElasticSearchQueryBuilder) Aggregations() []string {
	return sortedNames(b.aggregations())
}

func (b *ElasticSearchQueryBuilder) Count(_ AggregateOptions) (*SearchQuery, error) {
	if !b.built {
		return nil, errors.New("aggregation requested before the query was built")
	}
	return &SearchQuery{
		Endpoint: b.index.Name + "/_count",
		Body:     map[string]interface{}{"query": b.query},
	}, nil
}

func (b *ElasticSearchQueryBuilder) List(opts AggregateOptions) (*SearchQuery, error) {
	if !b.built {
		return nil, errors.New("aggregation requested before the query was built")
	}
	body := map[string]interface{}{"query": b.query}
	if opts.Limit > 0 {
		body["size"] = opts.Limit
	}
	if opts.Offset > 0 {
		body["from"] = opts.Offset
	}
	if len(opts.Fields) > 0 {
		for _, field := range opts.Fields {
			if err := validIdentifier("fields", field); err != nil {
				return nil, err
			}
		}
		body["_source"] = opts.Fields
	}
	if len(opts.OrderBy) > 0 {
		sort := make([]interface{}, 0, len(opts.OrderBy))
		for _, orderBy := range opts.OrderBy {
			field, descending := splitOrder(orderBy)
			if err := validIdentifier("order_by", field); err != nil {
				return nil, err
			}
			order := "asc"
			if descending {
				order = "desc"
			}
			sort = append(sort, SearchClause{field: SearchClause{"order": order}})
		}
		body["sort"] = sort
	}
	return &SearchQuery{Endpoint: b.index.Name + "/_search", Body: body}, nil
}

func (b *ElasticSearchQueryBuilder) metric(function string) SearchAggregation {
	return func(opts AggregateOptions) (*SearchQuery, error) {
		return b.nestedAggregation(function, opts, b.index.NumberField)
	}
}

// Recurrence is min over the raw fact value, answering "did this value ever appear".
func (b *ElasticSearchQueryBuilder) Recurrence(opts AggregateOptions) (*SearchQuery, error) {
	return b.nestedAggregation("min", opts, b.index.RawField)
}

// nestedAggregation computes function over one attribute of the facts whose name is opts.Field.
func (b *ElasticSearchQueryBuilder) nestedAggregation(function string, opts AggregateOptions, defaultOpField string) (*SearchQuery, error) {
	if !b.built {
		return nil, errors.New("aggregation requested before the query was built")
	}
	if opts.Field == "" {
		return nil, &insightserrors.ErrInvalidArgument{Name: "field", Value: "", Message: function + " needs the name of the value to aggregate"}
	}
	opField := opts.OpField
	if opField == "" {
		opField = defaultOpField
	}
	if err := validIdentifier("op_field", opField); err != nil {
		return nil, err
	}

	path := b.index.ValuesPath
	return &SearchQuery{
		Endpoint: b.index.Name + "/_search",
		Body: map[string]interface{}{
			"size":  0,
			"query": b.query,
			"aggs": SearchClause{
				path: SearchClause{
					"nested": SearchClause{"path": path},
					"aggs": SearchClause{
						"filtered": SearchClause{
							"filter": SearchClause{"term": SearchClause{nestedField(path, b.index.NameField): opts.Field}},
							"aggs": SearchClause{
								"result": SearchClause{function: SearchClause{"field": nestedField(path, opField)}},
							},
						},
					},
				},
			},
		},
	}, nil
}

func nestedField(path string, field string) string {
	if strings.HasPrefix(field, path+".") {
		return field
	}
	return path + "." + field
}
