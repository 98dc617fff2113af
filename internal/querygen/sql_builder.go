package querygen

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

var postgresDialect = goqu.Dialect("postgres")

// Query is a rendered SQL statement. Sql uses $n placeholders bound to Args.
// Interpolated has the arguments inlined and is only meant for logging and debugging.
type Query struct {
	Sql          string
	Args         []interface{}
	Interpolated string
}

// SQLAggregation renders the accumulated filters into a query computing one aggregate.
type SQLAggregation func(opts AggregateOptions) (*Query, error)

// SQLQueryBuilder accumulates predicates and joins for one query. Builders are single use.
type SQLQueryBuilder interface {
	// AddJoins registers joins. A join whose alias is already registered is ignored.
	AddJoins(joins []Join)
	AddFilter(strategy SQLFilterStrategy, field string, operator string, value interface{}, tableAlias string) error
	// BuildQuery finalises the predicate list. It must be called once, after the last AddFilter.
	BuildQuery() error
	Aggregation(name string) (SQLAggregation, bool)
	Aggregations() []string
}

type PostgresTable struct {
	Name  string
	Alias string
	// Counted distinctly when joins may multiply rows
	PrimaryKey string
}

type PostgresQueryBuilder struct {
	table       PostgresTable
	joins       []Join
	joinAliases map[string]bool
	fragments   []*Fragment
	where       []exp.Expression
	built       bool
}

func NewPostgresQueryBuilder(table PostgresTable) *PostgresQueryBuilder {
	return &PostgresQueryBuilder{
		table:       table,
		joinAliases: map[string]bool{},
	}
}

func (b *PostgresQueryBuilder) AddJoins(joins []Join) {
	for _, join := range joins {
		if b.joinAliases[join.Alias] || join.Alias == b.table.Alias {
			continue
		}
		b.joinAliases[join.Alias] = true
		b.joins = append(b.joins, join)
	}
}

func (b *PostgresQueryBuilder) AddFilter(strategy SQLFilterStrategy, field string, operator string, value interface{}, tableAlias string) error {
	if b.built {
		return errors.New("filter added after query was built")
	}
	fragment, err := strategy.Apply(field, operator, value, tableAlias)
	if err != nil {
		return err
	}
	if fragment != nil {
		b.fragments = append(b.fragments, fragment)
	}
	return nil
}

func (b *PostgresQueryBuilder) BuildQuery() error {
	if b.built {
		return errors.New("query already built")
	}
	b.where = make([]exp.Expression, 0, len(b.fragments))
	for _, fragment := range b.fragments {
		b.where = append(b.where, goqu.L(fragment.Clause, fragment.Params...))
	}
	b.built = true
	return nil
}

func (b *PostgresQueryBuilder) aggregations() map[string]SQLAggregation {
	return map[string]SQLAggregation{
		AggregationCount:      b.Count,
		AggregationSum:        b.numeric("SUM"),
		AggregationAvg:        b.numeric("AVG"),
		AggregationMin:        b.numeric("MIN"),
		AggregationMax:        b.numeric("MAX"),
		AggregationRecurrence: b.Recurrence,
		AggregationList:       b.List,
	}
}

func (b *PostgresQueryBuilder) Aggregation(name string) (SQLAggregation, bool) {
	aggregation, ok := b.aggregations()[name]
	return aggregation, ok
}

func (b *PostgresQueryBuilder) Aggregations() []string {
	return sortedNames(b.aggregations())
}

// Count counts matching rows, or non-null values of OpField when set. Rows are counted by
// primary key when joins are present, since a join can repeat a row.
func (b *PostgresQueryBuilder) Count(opts AggregateOptions) (*Query, error) {
	switch {
	case opts.OpField != "":
		if err := validIdentifier("op_field", opts.OpField); err != nil {
			return nil, err
		}
		return b.render(b.perRow(opts.OpField, func(column string) string { return "COUNT(" + column + ")" }))
	case len(b.joins) > 0 && b.table.PrimaryKey != "":
		return b.render(b.selectFrom(goqu.L("COUNT(DISTINCT " + qualify(b.table.Alias, b.table.PrimaryKey) + ")")))
	default:
		return b.render(b.selectFrom(goqu.L("COUNT(*)")))
	}
}

func (b *PostgresQueryBuilder) numeric(function string) SQLAggregation {
	return func(opts AggregateOptions) (*Query, error) {
		if opts.OpField == "" {
			return nil, &insightserrors.ErrInvalidArgument{
				Name:    "op_field",
				Value:   "",
				Message: strings.ToLower(function) + " needs a column to aggregate",
			}
		}
		if err := validIdentifier("op_field", opts.OpField); err != nil {
			return nil, err
		}
		aggregate := func(column string) string { return function + "((" + column + ")::numeric)" }
		if function == "MIN" || function == "MAX" {
			return b.render(b.selectFrom(goqu.L(aggregate(opts.OpField))))
		}
		return b.render(b.perRow(opts.OpField, aggregate))
	}
}

// perRow aggregates opField once per base table row. With joins and a primary key the
// distinct (primary key, value) pairs are selected first and aggregated in an outer query.
func (b *PostgresQueryBuilder) perRow(opField string, aggregate func(column string) string) *goqu.SelectDataset {
	if len(b.joins) == 0 || b.table.PrimaryKey == "" {
		return b.selectFrom(goqu.L(aggregate(opField)))
	}
	rows := b.selectFrom(goqu.L(qualify(b.table.Alias, b.table.PrimaryKey)), goqu.L(opField).As("value")).Distinct()
	return postgresDialect.From(rows.As("d")).Select(goqu.L(aggregate("d.value")))
}

// Recurrence is MIN over the raw, uncast OpField. It answers "did this value ever appear" rather than
// computing a numeric minimum.
func (b *PostgresQueryBuilder) Recurrence(opts AggregateOptions) (*Query, error) {
	if opts.OpField == "" {
		return nil, &insightserrors.ErrInvalidArgument{Name: "op_field", Value: "", Message: "recurrence needs a column"}
	}
	if err := validIdentifier("op_field", opts.OpField); err != nil {
		return nil, err
	}
	return b.render(b.selectFrom(goqu.L("MIN(" + opts.OpField + ")")))
}

func (b *PostgresQueryBuilder) List(opts AggregateOptions) (*Query, error) {
	columns := []interface{}{goqu.L(qualify(b.table.Alias, "*"))}
	if len(opts.Fields) > 0 {
		columns = make([]interface{}, 0, len(opts.Fields))
		for _, field := range opts.Fields {
			if err := validIdentifier("fields", field); err != nil {
				return nil, err
			}
			columns = append(columns, goqu.L(field))
		}
	}
	ds := b.selectFrom(columns...)
	if len(b.joins) > 0 {
		ds = ds.Distinct()
	}

	for _, orderBy := range opts.OrderBy {
		column, descending := splitOrder(orderBy)
		if err := validIdentifier("order_by", column); err != nil {
			return nil, err
		}
		if descending {
			ds = ds.OrderAppend(goqu.L(column).Desc())
		} else {
			ds = ds.OrderAppend(goqu.L(column).Asc())
		}
	}
	if opts.Limit > 0 {
		ds = ds.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		ds = ds.Offset(opts.Offset)
	}
	return b.render(ds)
}

func (b *PostgresQueryBuilder) selectFrom(columns ...interface{}) *goqu.SelectDataset {
	from := b.table.Name
	if b.table.Alias != "" {
		from += " AS " + b.table.Alias
	}
	for _, join := range b.joins {
		from += " " + join.Clause
	}
	ds := postgresDialect.From(goqu.L(from)).Select(columns...)
	if len(b.where) > 0 {
		ds = ds.Where(b.where...)
	}
	return ds
}

func (b *PostgresQueryBuilder) render(ds *goqu.SelectDataset) (*Query, error) {
	if !b.built {
		return nil, errors.New("aggregation requested before the query was built")
	}
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	interpolated, _, err := ds.ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Query{Sql: sql, Args: args, Interpolated: interpolated}, nil
}
