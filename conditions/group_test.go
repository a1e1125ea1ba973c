package conditions

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvaluateGroupAll(t *testing.T) {
	engine := newTestEngine(t)
	group := All(Condition{Field: "status", Operator: OpEquals, Value: "approved"})
	categories := map[string]Category{"status": CategoryOption}

	if !engine.EvaluateGroup(group, MapLookup(map[string]any{"status": "approved"}, categories)) {
		t.Error("approved status should satisfy the group")
	}
	if engine.EvaluateGroup(group, MapLookup(map[string]any{"status": "pending"}, categories)) {
		t.Error("pending status should not satisfy the group")
	}
}

func TestEvaluateGroupModes(t *testing.T) {
	engine := newTestEngine(t)
	values := map[string]any{"age": 20, "country": "CA"}
	categories := map[string]Category{"age": CategoryNumeric, "country": CategoryOption}
	lookup := MapLookup(values, categories)

	adult := Condition{Field: "age", Operator: OpGreaterThanOrEqual, Value: 18}
	american := Condition{Field: "country", Operator: OpEquals, Value: "US"}

	testCases := []struct {
		name  string
		group Group
		want  bool
	}{
		{"All true and false", All(adult, american), false},
		{"Any true and false", Any(adult, american), true},
		{"Any all false", Any(american), false},
		{"Empty all", All(), true},
		{"Empty any", Any(), false},
		{"Blank match mode reads as all", Group{Conditions: []Node{Leaf(adult)}}, true},
		{"Upper case mode", Group{Match: "ANY", Conditions: []Node{Leaf(american), Leaf(adult)}}, true},
		{"Unknown mode", Group{Match: "most", Conditions: []Node{Leaf(adult)}}, false},
		{"Nested group", Group{Match: MatchAll, Conditions: []Node{Leaf(adult), Nested(Any(american, adult))}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.EvaluateGroup(tc.group, lookup); got != tc.want {
				t.Errorf("EvaluateGroup() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateGroupMisconfiguredConditionFailsClosed(t *testing.T) {
	engine := newTestEngine(t)
	lookup := MapLookup(map[string]any{"resume": "cv.pdf"}, map[string]Category{"resume": CategoryFileLike})

	group := All(Condition{Field: "resume", Operator: OpEquals, Value: "cv.pdf"})
	if engine.EvaluateGroup(group, lookup) {
		t.Error("equals is not legal for file fields, group should be false")
	}
}

func TestConditionCategoryOverridesLookup(t *testing.T) {
	engine := newTestEngine(t)
	lookup := MapLookup(map[string]any{"qty": "10"}, nil)

	group := All(Condition{Field: "qty", Operator: OpGreaterThan, Value: 5, Category: CategoryNumeric})
	if !engine.EvaluateGroup(group, lookup) {
		t.Error("explicit numeric category should allow greater_than")
	}
}

func TestVisible(t *testing.T) {
	engine := newTestEngine(t)
	lookup := MapLookup(map[string]any{"subscribe": true}, map[string]Category{"subscribe": CategoryBoolean})
	group := All(Condition{Field: "subscribe", Operator: OpChecked})

	if !engine.Visible(nil, ActionShow, lookup) {
		t.Error("field without conditions should be visible")
	}
	if !engine.Visible(&group, ActionShow, lookup) {
		t.Error("show action with satisfied group should be visible")
	}
	if engine.Visible(&group, ActionHide, lookup) {
		t.Error("hide action with satisfied group should be hidden")
	}
}

func TestDependencies(t *testing.T) {
	group := Group{
		Match: MatchAny,
		Conditions: []Node{
			Leaf(Condition{Field: "b", Operator: OpIsEmpty}),
			Leaf(Condition{Field: "a", Operator: OpIsEmpty}),
			Nested(All(
				Condition{Field: "b", Operator: OpIsNotEmpty},
				Condition{Field: "c", Operator: OpIsNotEmpty},
			)),
		},
	}

	if diff := cmp.Diff([]string{"b", "a", "c"}, Dependencies(group)); diff != "" {
		t.Errorf("Dependencies() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{}, Dependencies(All())); diff != "" {
		t.Errorf("Dependencies(empty) mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupJSON(t *testing.T) {
	raw := `{
		"match": "any",
		"conditions": [
			{"field": "total", "operator": "greater_than", "value": 100},
			{"match": "all", "conditions": [
				{"field": "coupon", "operator": "is_not_empty"}
			]}
		]
	}`

	var group Group
	if err := json.Unmarshal([]byte(raw), &group); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if group.Match != MatchAny || len(group.Conditions) != 2 {
		t.Fatalf("unexpected group: %+v", group)
	}
	if group.Conditions[0].Condition == nil || group.Conditions[0].Condition.Field != "total" {
		t.Errorf("first member should be the total condition, got %+v", group.Conditions[0])
	}
	if group.Conditions[1].Group == nil || len(group.Conditions[1].Group.Conditions) != 1 {
		t.Errorf("second member should be a nested group, got %+v", group.Conditions[1])
	}

	engine := newTestEngine(t)
	lookup := MapLookup(map[string]any{"total": "150"}, map[string]Category{"total": CategoryNumeric})
	if !engine.EvaluateGroup(group, lookup) {
		t.Error("decoded group should match total=150")
	}

	encoded, err := json.Marshal(group)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	var again Group
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("Unmarshal(Marshal()) failed: %v", err)
	}
	if diff := cmp.Diff(Dependencies(group), Dependencies(again)); diff != "" {
		t.Errorf("dependencies changed after encoding (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	categories := map[string]Category{"age": CategoryNumeric, "photo": CategoryFileLike}
	categoryOf := func(field string) (Category, bool) {
		c, ok := categories[field]
		return c, ok
	}

	ok := All(Condition{Field: "age", Operator: OpGreaterThan, Value: 1})
	if errs := Validate(ok, categoryOf); len(errs) != 0 {
		t.Errorf("Validate(valid) = %v, want no errors", errs)
	}

	bad := Group{Match: "most", Conditions: []Node{
		Leaf(Condition{Field: "photo", Operator: OpEquals}),
		Leaf(Condition{Field: "ghost", Operator: OpEquals}),
		{},
	}}
	if errs := Validate(bad, categoryOf); len(errs) != 4 {
		t.Errorf("Validate(invalid) returned %d errors, want 4: %v", len(errs), errs)
	}
}
