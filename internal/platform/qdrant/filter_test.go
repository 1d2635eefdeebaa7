package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterMapSubset(t *testing.T) {
	filter := map[string]any{
		"type": "found",
		"status": map[string]any{
			"$in": []any{"approved", "pending"},
		},
	}

	got, err := translateFilterMap(filter)
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 2 {
		t.Fatalf("must length: want=2 got=%d", len(got.Must))
	}

	typeCond := findConditionByKey(got.Must, "type")
	if typeCond == nil {
		t.Fatalf("missing type condition")
	}
	typeMatch, ok := typeCond["match"].(map[string]any)
	if !ok || typeMatch["value"] != "found" {
		t.Fatalf("type match: got=%v", typeCond["match"])
	}

	statusCond := findConditionByKey(got.Must, "status")
	if statusCond == nil {
		t.Fatalf("missing status condition")
	}
	statusMatch, ok := statusCond["match"].(map[string]any)
	if !ok {
		t.Fatalf("status match type: got=%T", statusCond["match"])
	}
	anyVals, ok := statusMatch["any"].([]any)
	if !ok {
		t.Fatalf("status any type: got=%T", statusMatch["any"])
	}
	if len(anyVals) != 2 || anyVals[0] != "approved" || anyVals[1] != "pending" {
		t.Fatalf("status any values: got=%v", anyVals)
	}
}

func TestTranslateFilterMapRangeBounds(t *testing.T) {
	got, err := translateFilterMap(map[string]any{
		"created_at": map[string]any{
			"$gte": int64(1700000000),
			"$lt":  int64(1800000000),
		},
	})
	if err != nil {
		t.Fatalf("translateFilterMap: %v", err)
	}
	if len(got.Must) != 1 {
		t.Fatalf("must length: want=1 got=%d", len(got.Must))
	}

	cond := findConditionByKey(got.Must, "created_at")
	if cond == nil {
		t.Fatalf("missing created_at condition")
	}
	bounds, ok := cond["range"].(map[string]any)
	if !ok {
		t.Fatalf("range type: got=%T", cond["range"])
	}
	if bounds["gte"] != int64(1700000000) {
		t.Fatalf("gte bound: got=%v", bounds["gte"])
	}
	if bounds["lt"] != int64(1800000000) {
		t.Fatalf("lt bound: got=%v", bounds["lt"])
	}
}

func TestTranslateFilterMapRangeRejectsNonNumeric(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"created_at": map[string]any{
			"$gte": "yesterday",
		},
	})
	if err == nil {
		t.Fatalf("translateFilterMap: expected error, got nil")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorValidation {
		t.Fatalf("error code: want=%q got=%q", OperationErrorValidation, opErr.Code)
	}
}

func TestTranslateFilterMapUnsupportedOperator(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"type": map[string]any{
			"$like": "lo%",
		},
	})
	if err == nil {
		t.Fatalf("translateFilterMap: expected error, got nil")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got=%T", err)
	}
	if opErr.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("error code: want=%q got=%q", OperationErrorUnsupportedFilter, opErr.Code)
	}
}

func findConditionByKey(items []any, key string) map[string]any {
	for _, raw := range items {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if condKey, _ := cond["key"].(string); condKey == key {
			return cond
		}
	}
	return nil
}
