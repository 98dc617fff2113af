package querygen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

const tagJoin = "JOIN tags AS tg ON tg.room_id = r.uuid"

var roomsFilterSet = MapFilterSet{
	"created_on": {SourceField: "created_on", TableAlias: "r"},
	"is_active":  {SourceField: "is_active", TableAlias: "r"},
	"tag":        {SourceField: "tag_id", TableAlias: "tg", JoinClause: []Join{{Alias: "tg", Clause: tagJoin}}},
	"tag_name":   {SourceField: "name", TableAlias: "tg", JoinClause: []Join{{Alias: "tg", Clause: tagJoin}}},
	"agent":      {SourceField: "user_id", TableAlias: "r"},
}

func generateRooms(filters Filters, queryType string, opts AggregateOptions) (*Query, error) {
	return GenerateSQL(
		NewPostgresFilterStrategy,
		func() SQLQueryBuilder { return NewPostgresQueryBuilder(PostgresTable{Name: "rooms", Alias: "r"}) },
		func() FilterSet { return roomsFilterSet },
		filters,
		queryType,
		opts,
	)
}

func TestGenerateSQL_CreatedOnAndTags(t *testing.T) {
	filters := NewFilters("created_on__gte", "2024-01-01", "tag", []string{"a", "b"})

	query, err := generateRooms(filters, "count", AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT COUNT(*) FROM rooms AS r "+tagJoin+" WHERE (r.created_on >= $1 AND tg.tag_id IN ($2, $3))",
		query.Sql)
	assert.Equal(t, []interface{}{"2024-01-01", "a", "b"}, query.Args)
	assert.Contains(t, query.Interpolated, "r.created_on >= '2024-01-01'")
	assert.Contains(t, query.Interpolated, "tg.tag_id IN ('a', 'b')")
	assert.Equal(t, 1, strings.Count(query.Interpolated, tagJoin))
}

func TestGenerateSQL_UnknownKeysAreSkipped(t *testing.T) {
	tests := map[string]Filters{
		"unknown field":       NewFilters("does_not_exist", "x"),
		"unknown operator":    NewFilters("created_on__between", "x"),
		"too many separators": NewFilters("created_on__gte__lte", "x"),
		"empty operator":      NewFilters("created_on__", "x"),
		"empty field":         NewFilters("__gte", "x"),
		"mixed garbage":       NewFilters("foo", 1, "bar__in", []string{"a"}, "baz__isnull", true),
	}

	empty, err := generateRooms(Filters{}, "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM rooms AS r", empty.Sql)

	for name, filters := range tests {
		t.Run(name, func(t *testing.T) {
			query, err := generateRooms(filters, "count", AggregateOptions{})
			require.NoError(t, err)
			assert.Equal(t, empty, query)
		})
	}
}

func TestGenerateSQL_GarbageKeysDoNotChangeQuery(t *testing.T) {
	base := NewFilters("created_on__gte", "2024-01-01", "agent", "agent@weni.ai")
	withGarbage := NewFilters("junk", "x", "created_on__gte", "2024-01-01", "agent", "agent@weni.ai", "more__junk", 1)

	expected, err := generateRooms(base, "count", AggregateOptions{})
	require.NoError(t, err)
	actual, err := generateRooms(withGarbage, "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestGenerateSQL_SequenceMeansIn(t *testing.T) {
	implicit, err := generateRooms(NewFilters("tag", []interface{}{"a", "b"}), "count", AggregateOptions{})
	require.NoError(t, err)
	explicit, err := generateRooms(NewFilters("tag__in", []interface{}{"a", "b"}), "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}

func TestGenerateSQL_Idempotent(t *testing.T) {
	filters := NewFilters("created_on__gte", "2024-01-01", "tag", []string{"a"}, "is_active", true)
	first, err := generateRooms(filters, "list", AggregateOptions{OrderBy: []string{"-r.created_on"}, Limit: 10})
	require.NoError(t, err)
	second, err := generateRooms(filters, "list", AggregateOptions{OrderBy: []string{"-r.created_on"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateSQL_JoinRegisteredOnce(t *testing.T) {
	filters := NewFilters("tag", []string{"a"}, "tag_name__icontains", "vip")
	query, err := generateRooms(filters, "count", AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(query.Sql, tagJoin))
	assert.Equal(t,
		"SELECT COUNT(*) FROM rooms AS r "+tagJoin+" WHERE (tg.tag_id IN ($1) AND tg.name ILIKE $2)",
		query.Sql)
	assert.Equal(t, []interface{}{"a", "%vip%"}, query.Args)
}

func TestGenerateSQL_FilterOrderIsPreserved(t *testing.T) {
	query, err := generateRooms(NewFilters("agent", "x", "created_on__lt", "2024-02-01"), "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM rooms AS r WHERE (r.user_id = $1 AND r.created_on < $2)", query.Sql)

	query, err = generateRooms(NewFilters("created_on__lt", "2024-02-01", "agent", "x"), "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM rooms AS r WHERE (r.created_on < $1 AND r.user_id = $2)", query.Sql)
}

func TestGenerateSQL_DefaultsToCount(t *testing.T) {
	query, err := generateRooms(NewFilters("agent", "x"), "", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM rooms AS r WHERE r.user_id = $1", query.Sql)
}

type recordingFilterSet struct {
	lookups int
}

func (s *recordingFilterSet) GetField(key string) (FilterField, bool) {
	s.lookups++
	return roomsFilterSet.GetField(key)
}

func TestGenerateSQL_InvalidAggregationFailsFirst(t *testing.T) {
	filterSet := &recordingFilterSet{}
	_, err := GenerateSQL(
		NewPostgresFilterStrategy,
		func() SQLQueryBuilder { return NewPostgresQueryBuilder(PostgresTable{Name: "rooms", Alias: "r"}) },
		func() FilterSet { return filterSet },
		NewFilters("created_on__gte", "2024-01-01"),
		"median",
		AggregateOptions{},
	)

	var aggErr *insightserrors.ErrInvalidAggregation
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, "median", aggErr.Name)
	assert.Contains(t, aggErr.Supported, "count")
	assert.Equal(t, 0, filterSet.lookups)
}

func TestGenerateSQL_InvalidValueIsReported(t *testing.T) {
	_, err := generateRooms(NewFilters("is_active__isnull", "maybe"), "count", AggregateOptions{})
	var argErr *insightserrors.ErrInvalidArgument
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "is_active__isnull", argErr.Name)
}

var flowRunsFilterSet = MapFilterSet{
	"project":    {SourceField: "project_uuid"},
	"created_on": {SourceField: "created_on"},
	"value_name": {SourceField: "values.name"},
}

var flowRunsIndex = SearchIndex{
	Name:        "flowruns",
	ValuesPath:  "values",
	NameField:   "name",
	NumberField: "value_number",
	RawField:    "value",
}

func generateFlowRuns(filters Filters, queryType string, opts AggregateOptions) (*SearchQuery, error) {
	return GenerateSearch(
		func() SearchFilterStrategy { return NewElasticSearchFilterStrategy("values") },
		func() SearchQueryBuilder { return NewElasticSearchQueryBuilder(flowRunsIndex) },
		func() FilterSet { return flowRunsFilterSet },
		filters,
		queryType,
		opts,
	)
}

func TestGenerateSearch_Count(t *testing.T) {
	query, err := generateFlowRuns(NewFilters("project", "p-1", "created_on__gte", "2024-01-01", "nope", 1), "", AggregateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "flowruns/_count", query.Endpoint)
	expected := map[string]interface{}{
		"query": SearchClause{"bool": SearchClause{"filter": []interface{}{
			SearchClause{"term": SearchClause{"project_uuid": "p-1"}},
			SearchClause{"range": SearchClause{"created_on": SearchClause{"gte": "2024-01-01"}}},
		}}},
	}
	if diff := cmp.Diff(expected, query.Body); diff != "" {
		t.Errorf("unexpected body (-want +got):\n%s", diff)
	}
}

func TestGenerateSearch_NestedFilterAndSum(t *testing.T) {
	query, err := generateFlowRuns(NewFilters("project", "p-1", "value_name", []string{"order_total"}), "sum", AggregateOptions{Field: "order_total"})
	require.NoError(t, err)

	assert.Equal(t, "flowruns/_search", query.Endpoint)
	expected := map[string]interface{}{
		"size": 0,
		"query": SearchClause{"bool": SearchClause{"filter": []interface{}{
			SearchClause{"term": SearchClause{"project_uuid": "p-1"}},
			SearchClause{"nested": SearchClause{
				"path":  "values",
				"query": SearchClause{"terms": SearchClause{"values.name": []interface{}{"order_total"}}},
			}},
		}}},
		"aggs": SearchClause{"values": SearchClause{
			"nested": SearchClause{"path": "values"},
			"aggs": SearchClause{"filtered": SearchClause{
				"filter": SearchClause{"term": SearchClause{"values.name": "order_total"}},
				"aggs":   SearchClause{"result": SearchClause{"sum": SearchClause{"field": "values.value_number"}}},
			}},
		}},
	}
	if diff := cmp.Diff(expected, query.Body); diff != "" {
		t.Errorf("unexpected body (-want +got):\n%s", diff)
	}
}

func TestGenerateSearch_RecurrenceUsesRawValue(t *testing.T) {
	query, err := generateFlowRuns(Filters{}, "recurrence", AggregateOptions{Field: "status"})
	require.NoError(t, err)

	aggs := query.Body["aggs"].(SearchClause)["values"].(SearchClause)["aggs"].(SearchClause)["filtered"].(SearchClause)["aggs"].(SearchClause)
	assert.Equal(t, SearchClause{"result": SearchClause{"min": SearchClause{"field": "values.value"}}}, aggs)
	assert.Equal(t, SearchClause{"match_all": SearchClause{}}, query.Body["query"])
}

func TestGenerateSearch_InvalidAggregation(t *testing.T) {
	_, err := generateFlowRuns(Filters{}, "median", AggregateOptions{})
	var aggErr *insightserrors.ErrInvalidAggregation
	assert.True(t, errors.As(err, &aggErr))
}

func TestGenerateSearch_Idempotent(t *testing.T) {
	filters := NewFilters("project", "p-1", "created_on__lte", "2024-03-01")
	opts := AggregateOptions{OrderBy: []string{"-created_on"}, Limit: 20, Offset: 40, Fields: []string{"uuid", "created_on"}}
	first, err := generateFlowRuns(filters, "list", opts)
	require.NoError(t, err)
	second, err := generateFlowRuns(filters, "list", opts)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("generation is not deterministic:\n%s", diff)
	}
	assert.Equal(t, uint(20), first.Body["size"])
	assert.Equal(t, uint(40), first.Body["from"])
	assert.Equal(t, []interface{}{SearchClause{"created_on": SearchClause{"order": "desc"}}}, first.Body["sort"])
}

func TestGenerateSearch_SequenceMeansIn(t *testing.T) {
	implicit, err := generateFlowRuns(NewFilters("project", []string{"a", "b"}), "count", AggregateOptions{})
	require.NoError(t, err)
	explicit, err := generateFlowRuns(NewFilters("project__in", []string{"a", "b"}), "count", AggregateOptions{})
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}
