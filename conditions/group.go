package conditions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Condition compares one field's current value with a literal.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`

	// Category overrides the category the lookup reports for Field.
	Category Category `json:"category,omitempty"`
}

// Match selects how a group combines its members.
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Group combines conditions under one match mode. Members are nodes so a
// group may hold nested groups; forms built today only use a flat list.
type Group struct {
	Match      Match  `json:"match"`
	Conditions []Node `json:"conditions"`
}

// Node is either a leaf condition or a nested group. Exactly one is set.
type Node struct {
	Condition *Condition
	Group     *Group
}

// Leaf wraps a condition as a group member.
func Leaf(c Condition) Node { return Node{Condition: &c} }

// Nested wraps a group as a group member.
func Nested(g Group) Node { return Node{Group: &g} }

// All builds a group that requires every condition.
func All(conds ...Condition) Group { return flat(MatchAll, conds) }

// Any builds a group that requires at least one condition.
func Any(conds ...Condition) Group { return flat(MatchAny, conds) }

func flat(match Match, conds []Condition) Group {
	g := Group{Match: match, Conditions: make([]Node, 0, len(conds))}
	for _, c := range conds {
		g.Conditions = append(g.Conditions, Leaf(c))
	}
	return g
}

// MarshalJSON writes the member as a plain condition or group object.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Group != nil {
		return json.Marshal(n.Group)
	}
	return json.Marshal(n.Condition)
}

// UnmarshalJSON treats an object with a "conditions" key as a nested group.
func (n *Node) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("condition must be an object: %w", err)
	}
	if _, nested := probe["conditions"]; nested {
		var g Group
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		n.Group, n.Condition = &g, nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var c Condition
	if err := dec.Decode(&c); err != nil {
		return err
	}
	n.Condition, n.Group = &c, nil
	return nil
}

// Lookup returns a field's current value and category.
type Lookup func(field string) (value any, category Category)

// MapLookup builds a Lookup over submitted values and per-field categories.
// Fields without a category are treated as CategoryUnknown.
func MapLookup(values map[string]any, categories map[string]Category) Lookup {
	return func(field string) (any, Category) {
		c, ok := categories[field]
		if !ok {
			c = CategoryUnknown
		}
		return values[field], c
	}
}

// EvaluateGroup decides a group: MatchAll needs every member true (an empty
// group is true), MatchAny needs one (an empty group is false). An empty
// match mode is read as MatchAll; any other mode is false.
func (en *Engine) EvaluateGroup(g Group, lookup Lookup) bool {
	match := Match(strings.ToLower(string(g.Match)))
	switch match {
	case MatchAll, "":
		for _, n := range g.Conditions {
			if !en.evaluateNode(n, lookup) {
				return false
			}
		}
		return true
	case MatchAny:
		for _, n := range g.Conditions {
			if en.evaluateNode(n, lookup) {
				return true
			}
		}
		return false
	}
	return false
}

func (en *Engine) evaluateNode(n Node, lookup Lookup) bool {
	switch {
	case n.Group != nil:
		return en.EvaluateGroup(*n.Group, lookup)
	case n.Condition != nil:
		value, category := lookup(n.Condition.Field)
		if n.Condition.Category != "" {
			category = n.Condition.Category
		}
		return en.Evaluate(*n.Condition, value, category)
	}
	return false
}

// Action is what a satisfied condition group does to its field.
type Action string

const (
	ActionShow Action = "show"
	ActionHide Action = "hide"
)

// Visible applies a group to a field's visibility. A nil group leaves the
// field visible.
func (en *Engine) Visible(g *Group, action Action, lookup Lookup) bool {
	if g == nil {
		return true
	}
	matched := en.EvaluateGroup(*g, lookup)
	if action == ActionHide {
		return !matched
	}
	return matched
}

// Dependencies lists the fields a group's conditions read, without
// duplicates, in order of first appearance.
func Dependencies(g Group) []string {
	seen := make(map[string]bool)
	fields := []string{}
	var walk func(Group)
	walk = func(g Group) {
		for _, n := range g.Conditions {
			switch {
			case n.Group != nil:
				walk(*n.Group)
			case n.Condition != nil && !seen[n.Condition.Field]:
				seen[n.Condition.Field] = true
				fields = append(fields, n.Condition.Field)
			}
		}
	}
	walk(g)
	return fields
}

// Validate reports every condition whose operator is not legal for the
// category the lookup gives its field.
func Validate(g Group, categoryOf func(field string) (Category, bool)) []error {
	var errs []error
	var walk func(Group)
	walk = func(g Group) {
		switch Match(strings.ToLower(string(g.Match))) {
		case MatchAll, MatchAny, "":
		default:
			errs = append(errs, fmt.Errorf("unknown match mode %q", g.Match))
		}
		for _, n := range g.Conditions {
			switch {
			case n.Group != nil:
				walk(*n.Group)
			case n.Condition != nil:
				c := n.Condition
				category := c.Category
				if category == "" {
					var ok bool
					category, ok = categoryOf(c.Field)
					if !ok {
						errs = append(errs, fmt.Errorf("condition references unknown field %q", c.Field))
						continue
					}
				}
				if _, known := operatorTable[category]; !known {
					errs = append(errs, fmt.Errorf("field %q: %w: %q", c.Field, ErrUnknownCategory, category))
					continue
				}
				if !Allows(category, c.Operator) {
					errs = append(errs, fmt.Errorf("field %q: %w: %q for %s", c.Field, ErrUnknownOperator, c.Operator, category))
				}
			default:
				errs = append(errs, fmt.Errorf("empty condition entry"))
			}
		}
	}
	walk(g)
	return errs
}

// EvaluateGroup decides a group with the shared default engine.
func EvaluateGroup(g Group, lookup Lookup) bool {
	en, err := defaultEngine()
	if err != nil {
		return false
	}
	return en.EvaluateGroup(g, lookup)
}
