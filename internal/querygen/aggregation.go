package querygen

import (
	"regexp"
	"sort"
	"strings"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

const (
	AggregationCount      = "count"
	AggregationSum        = "sum"
	AggregationAvg        = "avg"
	AggregationMin        = "min"
	AggregationMax        = "max"
	AggregationRecurrence = "recurrence"
	AggregationList       = "list"
)

const DefaultAggregation = AggregationCount

// AggregateOptions are the arguments handed to an aggregation. Each aggregation reads the ones it needs.
type AggregateOptions struct {
	// Column or nested attribute the aggregate is computed over
	OpField string `json:"op_field"`
	// Named attribute the aggregate is restricted to, for sparse key/value documents
	Field string `json:"field"`
	// Columns returned by list
	Fields []string `json:"fields"`
	// Sort keys for list. A leading "-" sorts descending.
	OrderBy []string `json:"order_by"`
	// Zero means no limit
	Limit  uint `json:"limit"`
	Offset uint `json:"offset"`
}

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// validIdentifier guards values that are written into queries verbatim, such as op_field and sort keys.
func validIdentifier(name string, value string) error {
	if !identifierRegex.MatchString(value) {
		return &insightserrors.ErrInvalidArgument{
			Name:    name,
			Value:   value,
			Message: "must be a column or attribute name",
		}
	}
	return nil
}

// splitOrder turns "-created_on" into ("created_on", true).
func splitOrder(orderBy string) (string, bool) {
	if strings.HasPrefix(orderBy, "-") {
		return orderBy[1:], true
	}
	return strings.TrimPrefix(orderBy, "+"), false
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
