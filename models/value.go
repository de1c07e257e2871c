package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags which member of Value is populated.
type ValueKind string

const (
	ValueNone   ValueKind = ""
	ValueString ValueKind = "string"
	ValueList   ValueKind = "list"
	ValueBool   ValueKind = "bool"
)

// Value is a mapped field value: a string, a list of strings or a boolean.
type Value struct {
	Kind ValueKind
	Str  string
	List []string
	Bool bool
}

func StringValue(s string) Value     { return Value{Kind: ValueString, Str: s} }
func ListValue(items []string) Value { return Value{Kind: ValueList, List: items} }
func BoolValue(b bool) Value         { return Value{Kind: ValueBool, Bool: b} }

// IsZero reports whether no variant is set.
func (v Value) IsZero() bool { return v.Kind == ValueNone }

// String renders the value for logs and summaries.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueList:
		return strings.Join(v.List, ", ")
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// As converts the value into the requested variant.
// A string becomes a one-element list; a list joins into a string;
// strings coerce into booleans by the usual truthy spellings.
func (v Value) As(kind ValueKind) Value {
	if v.Kind == kind || v.Kind == ValueNone {
		return v
	}
	switch kind {
	case ValueString:
		return StringValue(v.String())
	case ValueList:
		if v.Kind == ValueString {
			if v.Str == "" {
				return ListValue(nil)
			}
			return ListValue([]string{v.Str})
		}
		return ListValue([]string{v.String()})
	case ValueBool:
		if v.Kind == ValueList {
			return BoolValue(len(v.List) > 0)
		}
		return BoolValue(truthy(v.Str))
	}
	return v
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "0", "off", "n":
		return false
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case ValueBool:
		return json.Marshal(v.Bool)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromAny builds a Value from a decoded JSON scalar or array.
func ValueFromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return StringValue(fmt.Sprintf("%v", t)), nil
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprintf("%v", item)
			}
			items = append(items, s)
		}
		return ListValue(items), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}
