package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filters arrive in the caller dialect the search layer builds:
// {"field": value} equality, {"$and": [...]}, {"$or": [...]}, {"$not": {...}},
// and per-field operator maps {"field": {"$eq"|"$ne"|"$in": ...}}. They are
// translated here into Qdrant's must/should/must_not condition lists.
const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

type filterClauses struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f filterClauses) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func (f *filterClauses) merge(src filterClauses) {
	if f == nil {
		return
	}
	f.Must = append(f.Must, src.Must...)
	f.Should = append(f.Should, src.Should...)
	f.MustNot = append(f.MustNot, src.MustNot...)
}

func translateFilterMap(filter map[string]any) (filterClauses, error) {
	out := filterClauses{}
	if len(filter) == 0 {
		return out, nil
	}

	// Deterministic key order keeps translated requests stable for tests
	// and request logs.
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}

		if strings.HasPrefix(k, "$") {
			if err := translateLogicalOp(&out, strings.ToLower(k), value); err != nil {
				return filterClauses{}, err
			}
			continue
		}

		fieldPart, err := translateFieldFilter(k, value)
		if err != nil {
			return filterClauses{}, err
		}
		out.merge(fieldPart)
	}

	return out, nil
}

func translateLogicalOp(out *filterClauses, op string, value any) error {
	switch op {
	case filterOpAnd, filterOpOr:
		items, err := toObjectSlice(value)
		if err != nil {
			return opErr(
				"filter_translate",
				OperationErrorValidation,
				fmt.Sprintf("operator %s expects array of objects", op),
				err,
			)
		}
		for _, item := range items {
			sub, err := translateFilterMap(item)
			if err != nil {
				return err
			}
			if op == filterOpAnd {
				out.Must = append(out.Must, sub.asMap())
			} else {
				out.Should = append(out.Should, sub.asMap())
			}
		}
		return nil
	case filterOpNot:
		item, ok := value.(map[string]any)
		if !ok {
			return opErr(
				"filter_translate",
				OperationErrorValidation,
				fmt.Sprintf("operator %s expects an object", filterOpNot),
				nil,
			)
		}
		sub, err := translateFilterMap(item)
		if err != nil {
			return err
		}
		out.MustNot = append(out.MustNot, sub.asMap())
		return nil
	default:
		return opErr(
			"filter_translate",
			OperationErrorUnsupportedFilter,
			fmt.Sprintf("unsupported top-level filter operator %q", op),
			nil,
		)
	}
}

func translateFieldFilter(field string, value any) (filterClauses, error) {
	out := filterClauses{}

	operatorMap, isMap := value.(map[string]any)
	if !isMap {
		scalar, ok := toScalarValue(value)
		if !ok {
			return filterClauses{}, opErr(
				"filter_translate",
				OperationErrorValidation,
				fmt.Sprintf("field %q expects scalar value or operator object", field),
				nil,
			)
		}
		out.Must = append(out.Must, matchCondition(field, scalar))
		return out, nil
	}

	if len(operatorMap) == 0 {
		return filterClauses{}, opErr(
			"filter_translate",
			OperationErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field),
			nil,
		)
	}

	ops := make([]string, 0, len(operatorMap))
	for op := range operatorMap {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		opVal := operatorMap[op]
		switch strings.ToLower(strings.TrimSpace(op)) {
		case filterOpEq:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return filterClauses{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpEq, field),
					nil,
				)
			}
			out.Must = append(out.Must, matchCondition(field, scalar))
		case filterOpNe:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return filterClauses{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpNe, field),
					nil,
				)
			}
			out.MustNot = append(out.MustNot, matchCondition(field, scalar))
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil {
				return filterClauses{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar array", filterOpIn, field),
					err,
				)
			}
			if len(values) == 0 {
				return filterClauses{}, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q cannot be empty", filterOpIn, field),
					nil,
				)
			}
			out.Must = append(out.Must, map[string]any{
				"key": field,
				"match": map[string]any{
					"any": values,
				},
			})
		default:
			return filterClauses{}, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", op, field),
				nil,
			)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func toObjectSlice(value any) ([]map[string]any, error) {
	rawSlice, ok := value.([]any)
	if !ok {
		// Callers building filters in Go commonly hand a typed slice.
		if typed, isTyped := value.([]map[string]any); isTyped {
			return typed, nil
		}
		return nil, fmt.Errorf("expected []any, got %T", value)
	}
	out := make([]map[string]any, 0, len(rawSlice))
	for _, item := range rawSlice {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map[string]any in array, got %T", item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []float64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case bool:
		return typed, true
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return typed, true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
