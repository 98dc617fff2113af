package growthbook

import (
	"hash/fnv"
	"math"
	"reflect"
	"strconv"
)

const defaultHashAttribute = "id"

// Evaluate returns the value of the first rule that applies to attributes, or the default value.
// key is the feature's name and seeds the rollout hash when a rule has no seed of its own.
func (f Feature) Evaluate(key string, attributes map[string]interface{}) interface{} {
	for _, rule := range f.Rules {
		if !conditionMatches(rule.Condition, attributes) {
			continue
		}
		switch {
		case rule.Force != nil:
			if rule.inRollout(key, attributes) {
				return rule.Force
			}
		case len(rule.Variations) > 0:
			if value, ok := rule.assignVariation(key, attributes); ok {
				return value
			}
		}
	}
	return f.DefaultValue
}

// inRollout reports whether the user falls inside the rule's range or coverage.
// Users without a value for the hash attribute are never included in a partial rollout.
func (r Rule) inRollout(featureKey string, attributes map[string]interface{}) bool {
	if r.Coverage == nil && r.Range == nil {
		return true
	}
	seed := r.Seed
	if seed == "" {
		seed = featureKey
	}
	n, ok := r.hash(seed, attributes)
	if !ok {
		return false
	}
	if r.Range != nil {
		return inRange(n, *r.Range)
	}
	return n <= *r.Coverage
}

func (r Rule) assignVariation(featureKey string, attributes map[string]interface{}) (interface{}, bool) {
	key := r.Key
	if key == "" {
		key = featureKey
	}
	seed := r.Seed
	if seed == "" {
		seed = key
	}
	n, ok := r.hash(seed, attributes)
	if !ok {
		return nil, false
	}
	coverage := 1.0
	if r.Coverage != nil {
		coverage = *r.Coverage
	}
	for i, bucket := range bucketRanges(len(r.Variations), coverage, r.Weights) {
		if inRange(n, bucket) {
			return r.Variations[i], true
		}
	}
	return nil, false
}

func (r Rule) hash(seed string, attributes map[string]interface{}) (float64, bool) {
	attribute := r.HashAttribute
	if attribute == "" {
		attribute = defaultHashAttribute
	}
	value := hashValue(attributes[attribute])
	if value == "" {
		return 0, false
	}
	switch r.HashVersion {
	case 0, 1:
		return float64(fnv32a(value+seed)%1000) / 1000, true
	case 2:
		inner := strconv.FormatUint(uint64(fnv32a(seed+value)), 10)
		return float64(fnv32a(inner)%10000) / 10000, true
	default:
		return 0, false
	}
}

func hashValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if n, ok := toFloat(value); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func fnv32a(value string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return h.Sum32()
}

// bucketRanges splits [0, coverage) between variations by weight. Weights that do not
// match the variations or do not add up to 1 fall back to an even split.
func bucketRanges(count int, coverage float64, weights []float64) [][2]float64 {
	coverage = math.Max(0, math.Min(1, coverage))
	if len(weights) != count || math.Abs(sum(weights)-1) > 0.01 {
		weights = make([]float64, count)
		for i := range weights {
			weights[i] = 1 / float64(count)
		}
	}
	ranges := make([][2]float64, 0, count)
	cumulative := 0.0
	for _, weight := range weights {
		start := cumulative
		cumulative += weight
		ranges = append(ranges, [2]float64{start, start + coverage*weight})
	}
	return ranges
}

func inRange(n float64, bucket [2]float64) bool {
	return n >= bucket[0] && n < bucket[1]
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func conditionMatches(condition map[string]interface{}, attributes map[string]interface{}) bool {
	for key, expected := range condition {
		switch key {
		case "$and":
			for _, sub := range asConditions(expected) {
				if !conditionMatches(sub, attributes) {
					return false
				}
			}
			continue
		case "$or":
			subs := asConditions(expected)
			matched := len(subs) == 0
			for _, sub := range subs {
				if conditionMatches(sub, attributes) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		case "$not":
			sub, _ := expected.(map[string]interface{})
			if conditionMatches(sub, attributes) {
				return false
			}
			continue
		}
		actual, present := attributes[key]
		if !valueMatches(expected, actual, present) {
			return false
		}
	}
	return true
}

func valueMatches(expected interface{}, actual interface{}, present bool) bool {
	operators, ok := expected.(map[string]interface{})
	if !ok {
		return equal(expected, actual)
	}
	for operator, operand := range operators {
		switch operator {
		case "$eq":
			if !equal(operand, actual) {
				return false
			}
		case "$ne":
			if equal(operand, actual) {
				return false
			}
		case "$in":
			if !contains(operand, actual) {
				return false
			}
		case "$nin":
			if contains(operand, actual) {
				return false
			}
		case "$exists":
			if truthy(operand) != (present && actual != nil) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !compare(operator, actual, operand) {
				return false
			}
		default:
			// Unsupported operators never match, so unknown rules fall through to the default.
			return false
		}
	}
	return true
}

func asConditions(value interface{}) []map[string]interface{} {
	list, _ := value.([]interface{})
	conditions := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if condition, ok := item.(map[string]interface{}); ok {
			conditions = append(conditions, condition)
		}
	}
	return conditions
}

// equal compares JSON values by type: the string "1" never equals the number 1.
// Numbers of any Go kind compare by value.
func equal(a interface{}, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	x, aNumber := toFloat(a)
	y, bNumber := toFloat(b)
	if aNumber || bNumber {
		return aNumber && bNumber && x == y
	}
	return reflect.DeepEqual(a, b)
}

func compare(operator string, actual interface{}, operand interface{}) bool {
	var cmp int
	if x, ok := toFloat(actual); ok {
		y, ok := toFloat(operand)
		if !ok {
			return false
		}
		cmp = compareOrdered(x, y)
	} else {
		x, ok := actual.(string)
		if !ok {
			return false
		}
		y, ok := operand.(string)
		if !ok {
			return false
		}
		cmp = compareOrdered(x, y)
	}
	switch operator {
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func compareOrdered[T float64 | string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func toFloat(value interface{}) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

func contains(list interface{}, value interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if equal(item, value) {
			return true
		}
	}
	return false
}

func truthy(value interface{}) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String, reflect.Slice, reflect.Map:
		return rv.Len() > 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	default:
		return true
	}
}
