package querygen

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

// Fragment is a single SQL predicate. Clause uses ? for each entry in Params.
type Fragment struct {
	Clause string
	Params []interface{}
}

// SQLFilterStrategy turns one (field, operator, value) triple into a SQL predicate.
// A nil fragment with a nil error means the filter should be skipped.
type SQLFilterStrategy interface {
	Apply(field string, operator string, value interface{}, tableAlias string) (*Fragment, error)
}

type PostgresFilterStrategy struct{}

func NewPostgresFilterStrategy() SQLFilterStrategy {
	return &PostgresFilterStrategy{}
}

func (s *PostgresFilterStrategy) Apply(field string, operator string, value interface{}, tableAlias string) (*Fragment, error) {
	column := qualify(tableAlias, field)

	switch operator {
	case OperatorEq:
		if value == nil {
			return &Fragment{Clause: column + " IS NULL"}, nil
		}
		if isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		return &Fragment{Clause: column + " = ?", Params: []interface{}{value}}, nil
	case OperatorNe:
		if value == nil {
			return &Fragment{Clause: column + " IS NOT NULL"}, nil
		}
		if isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		return &Fragment{Clause: column + " <> ?", Params: []interface{}{value}}, nil
	case OperatorGt, OperatorGte, OperatorLt, OperatorLte:
		if value == nil || isSequence(value) {
			return nil, invalidValue(field, operator, value, "expected a single value")
		}
		return &Fragment{Clause: column + " " + operatorForComparison(operator) + " ?", Params: []interface{}{value}}, nil
	case OperatorIn:
		values := toSlice(value)
		if len(values) == 0 {
			// IN () is not valid SQL; an empty list matches nothing.
			return &Fragment{Clause: "1 = 0"}, nil
		}
		return &Fragment{Clause: column + " IN ?", Params: []interface{}{values}}, nil
	case OperatorContains:
		return &Fragment{Clause: column + " LIKE ?", Params: []interface{}{likePattern(value)}}, nil
	case OperatorIContains:
		return &Fragment{Clause: column + " ILIKE ?", Params: []interface{}{likePattern(value)}}, nil
	case OperatorIsNull:
		isNull, err := parseBool(value)
		if err != nil {
			return nil, invalidValue(field, operator, value, "expected a boolean")
		}
		if isNull {
			return &Fragment{Clause: column + " IS NULL"}, nil
		}
		return &Fragment{Clause: column + " IS NOT NULL"}, nil
	default:
		log.Debugf("Skipping filter on %s: unsupported operator %q", column, operator)
		return nil, nil
	}
}

func qualify(tableAlias string, field string) string {
	if tableAlias == "" {
		return field
	}
	return tableAlias + "." + field
}

func operatorForComparison(operator string) string {
	switch operator {
	case OperatorGt:
		return ">"
	case OperatorGte:
		return ">="
	case OperatorLt:
		return "<"
	default:
		return "<="
	}
}

func likePattern(value interface{}) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fmt.Sprint(value))
	return "%" + escaped + "%"
}

func parseBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("%v is not a boolean", value)
	}
}

func invalidValue(field string, operator string, value interface{}, message string) error {
	return &insightserrors.ErrInvalidArgument{
		Name:    field + operatorSeparator + operator,
		Value:   value,
		Message: message,
	}
}
