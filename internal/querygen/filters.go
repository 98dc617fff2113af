package querygen

import (
	"bytes"
	"encoding/json"
	"net/url"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/weni-ai/insights/internal/common/insightserrors"
)

const operatorSeparator = "__"

const (
	OperatorEq        = "eq"
	OperatorNe        = "ne"
	OperatorGt        = "gt"
	OperatorGte       = "gte"
	OperatorLt        = "lt"
	OperatorLte       = "lte"
	OperatorIn        = "in"
	OperatorContains  = "contains"
	OperatorIContains = "icontains"
	OperatorIsNull    = "isnull"
)

var knownOperators = map[string]bool{
	OperatorEq:        true,
	OperatorNe:        true,
	OperatorGt:        true,
	OperatorGte:       true,
	OperatorLt:        true,
	OperatorLte:       true,
	OperatorIn:        true,
	OperatorContains:  true,
	OperatorIContains: true,
	OperatorIsNull:    true,
}

func IsKnownOperator(operator string) bool {
	return knownOperators[operator]
}

type Filter struct {
	Key   string
	Value interface{}
}

// Filters is an ordered filter mapping. The order decides clause and join order in generated queries.
type Filters []Filter

// NewFilters builds Filters from alternating keys and values.
func NewFilters(keyValues ...interface{}) Filters {
	filters := make(Filters, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		filters = append(filters, Filter{Key: key, Value: keyValues[i+1]})
	}
	return filters
}

// With returns a copy of f with the filter prepended, replacing any filter already using key.
func (f Filters) With(key string, value interface{}) Filters {
	result := make(Filters, 0, len(f)+1)
	result = append(result, Filter{Key: key, Value: value})
	for _, filter := range f {
		if filter.Key != key {
			result = append(result, filter)
		}
	}
	return result
}

func (f Filters) Get(key string) (interface{}, bool) {
	for _, filter := range f {
		if filter.Key == key {
			return filter.Value, true
		}
	}
	return nil, false
}

// Without drops every filter whose key is in keys.
func (f Filters) Without(keys ...string) Filters {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	result := make(Filters, 0, len(f))
	for _, filter := range f {
		if !drop[filter.Key] {
			result = append(result, filter)
		}
	}
	return result
}

// UnmarshalJSON keeps the key order of the JSON object.
func (f *Filters) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFiltersJSON(data)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFiltersJSON decodes a JSON object into Filters in document order. null decodes to no filters.
// Integral numbers decode to int64 so ids above 2^53 keep every digit; other numbers decode to float64.
func ParseFiltersJSON(data []byte) (Filters, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Filters{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	token, err := decoder.Token()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, &insightserrors.ErrInvalidArgument{Name: "filters", Value: string(trimmed), Message: "filters must be a JSON object"}
	}
	filters := Filters{}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		key := token.(string)
		var value interface{}
		if err := decoder.Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "decoding filter %q", key)
		}
		value, err = convertNumbers(value)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding filter %q", key)
		}
		filters = append(filters, Filter{Key: key, Value: value})
	}
	if _, err := decoder.Token(); err != nil {
		return nil, errors.WithStack(err)
	}
	return filters, nil
}

func convertNumbers(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		return f, errors.WithStack(err)
	case []interface{}:
		for i, item := range v {
			converted, err := convertNumbers(item)
			if err != nil {
				return nil, err
			}
			v[i] = converted
		}
		return v, nil
	case map[string]interface{}:
		for k, item := range v {
			converted, err := convertNumbers(item)
			if err != nil {
				return nil, err
			}
			v[k] = converted
		}
		return v, nil
	default:
		return value, nil
	}
}

// ParseFiltersQuery reads filters from a raw query string in the order they appear.
// Repeated keys collapse into a sequence. A comma separated value on an __in key is split.
// Keys listed in reserved are left out.
func ParseFiltersQuery(rawQuery string, reserved ...string) (Filters, error) {
	skip := make(map[string]bool, len(reserved))
	for _, k := range reserved {
		skip[k] = true
	}

	var order []string
	values := map[string][]string{}
	for _, pair := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' }) {
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, &insightserrors.ErrInvalidArgument{Name: "query", Value: rawKey, Message: err.Error()}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, &insightserrors.ErrInvalidArgument{Name: key, Value: rawValue, Message: err.Error()}
		}
		if key == "" || skip[key] {
			continue
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = append(values[key], value)
	}

	filters := make(Filters, 0, len(order))
	for _, key := range order {
		vs := values[key]
		if strings.HasSuffix(key, operatorSeparator+OperatorIn) && len(vs) == 1 {
			vs = strings.Split(vs[0], ",")
		}
		if len(vs) == 1 && !strings.HasSuffix(key, operatorSeparator+OperatorIn) {
			filters = append(filters, Filter{Key: key, Value: vs[0]})
			continue
		}
		sequence := make([]interface{}, len(vs))
		for i, v := range vs {
			sequence[i] = v
		}
		filters = append(filters, Filter{Key: key, Value: sequence})
	}
	return filters, nil
}

// parseKey splits a filter key into its field and operator.
// A key with no separator is eq, or in when value is a sequence. A key with more than one separator is malformed.
func parseKey(key string, value interface{}) (field string, operator string, ok bool) {
	parts := strings.Split(key, operatorSeparator)
	switch len(parts) {
	case 1:
		if isSequence(value) {
			return key, OperatorIn, true
		}
		return key, OperatorEq, true
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

// isSequence reports whether value is a list of values. Strings and byte slices are scalars.
func isSequence(value interface{}) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// toSlice turns a sequence into []interface{}. Scalars become a one element slice.
func toSlice(value interface{}) []interface{} {
	if !isSequence(value) {
		return []interface{}{value}
	}
	rv := reflect.ValueOf(value)
	result := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		result[i] = rv.Index(i).Interface()
	}
	return result
}
