package forms

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/liamcoop/formlogic/conditions"
)

var groupType = reflect.TypeOf(conditions.Group{})

// DecodeForm reads a form definition from loosely typed metadata, such as a
// builder export decoded from YAML or JSON. Unknown keys are rejected. The
// decoded form is not validated.
func DecodeForm(raw map[string]any) (Form, error) {
	var form Form
	if err := decode(raw, &form); err != nil {
		return Form{}, fmt.Errorf("invalid form: %w", err)
	}
	return form, nil
}

// DecodeField reads a single field definition.
func DecodeField(raw map[string]any) (Field, error) {
	var field Field
	if err := decode(raw, &field); err != nil {
		return Field{}, fmt.Errorf("invalid field: %w", err)
	}
	return field, nil
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       conditionGroupHook,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.Decode(raw)
}

// conditionGroupHook decodes condition groups through their JSON form, which
// tells leaf conditions and nested groups apart.
func conditionGroupHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != groupType {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	var g conditions.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("invalid conditions: %w", err)
	}
	return g, nil
}
