package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfile() *Profile {
	return &Profile{
		ID:   "p1",
		Name: "Ada",
		Personal: PersonalInfo{
			FirstName: "Ada",
			Email:     "ada@example.com",
		},
		Experiences: []WorkExperience{
			{Company: "Acme", Position: "Engineer", Current: true},
			{Company: "Initech"},
		},
		Education: []Education{{Degree: "BSc", School: "MIT"}},
		Skills:    []string{"Go"},
		Custom:    map[string]string{"visa": "none", "b.c": "dotted"},
	}
}

func TestCandidatePaths_Order(t *testing.T) {
	var paths []string
	for _, c := range sampleProfile().CandidatePaths() {
		paths = append(paths, c.Path)
	}

	assert.Equal(t, []string{
		"personal.firstName",
		"personal.email",
		"experiences.0.company",
		"experiences.0.position",
		"experiences.0.current",
		"education.0.degree",
		"education.0.school",
		"skills",
		"custom.b.c",
		"custom.visa",
	}, paths)
}

func TestLookup(t *testing.T) {
	p := sampleProfile()
	tests := []struct {
		path string
		want Value
		ok   bool
	}{
		{path: "personal.email", want: StringValue("ada@example.com"), ok: true},
		{path: "personal.phone", want: StringValue(""), ok: true},
		{path: "personal.shoeSize", want: StringValue(""), ok: false},
		{path: "experiences.1.company", want: StringValue("Initech"), ok: true},
		{path: "experiences.0.current", want: BoolValue(true), ok: true},
		{path: "experiences.2.company", ok: false},
		{path: "experiences.x.company", ok: false},
		{path: "education.0.school", want: StringValue("MIT"), ok: true},
		{path: "projects.0.name", ok: false},
		{path: "skills", want: ListValue([]string{"Go"}), ok: true},
		{path: "custom.b.c", want: StringValue("dotted"), ok: true},
		{path: "custom.missing", want: StringValue(""), ok: false},
		{path: "name", want: StringValue("Ada"), ok: true},
		{path: "bogus", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := p.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValueAs(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind ValueKind
		want Value
	}{
		{name: "string to list", in: StringValue("Go"), kind: ValueList, want: ListValue([]string{"Go"})},
		{name: "empty string to list", in: StringValue(""), kind: ValueList, want: ListValue(nil)},
		{name: "list to string", in: ListValue([]string{"Go", "SQL"}), kind: ValueString, want: StringValue("Go, SQL")},
		{name: "yes to bool", in: StringValue("Yes"), kind: ValueBool, want: BoolValue(true)},
		{name: "no to bool", in: StringValue("no"), kind: ValueBool, want: BoolValue(false)},
		{name: "bool to string", in: BoolValue(true), kind: ValueString, want: StringValue("true")},
		{name: "empty list to bool", in: ListValue(nil), kind: ValueBool, want: BoolValue(false)},
		{name: "none stays none", in: Value{}, kind: ValueString, want: Value{}},
		{name: "same kind untouched", in: StringValue("x"), kind: ValueString, want: StringValue("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.As(tt.kind))
		})
	}
}

func TestValueJSON(t *testing.T) {
	var got struct {
		A Value `json:"a"`
		B Value `json:"b"`
		C Value `json:"c"`
		D Value `json:"d"`
		E Value `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":["y",2],"c":true,"d":null,"e":3.5}`), &got))

	assert.Equal(t, StringValue("x"), got.A)
	assert.Equal(t, ListValue([]string{"y", "2"}), got.B)
	assert.Equal(t, BoolValue(true), got.C)
	assert.True(t, got.D.IsZero())
	assert.Equal(t, StringValue("3.5"), got.E)

	out, err := json.Marshal(ListValue(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":{"nested":1}}`), &got))
}

func TestNormalizeConfidence(t *testing.T) {
	assert.InDelta(t, 0.85, NormalizeConfidence(85), 1e-9)
	assert.InDelta(t, 0.85, NormalizeConfidence(0.85), 1e-9)
	assert.InDelta(t, 1.0, NormalizeConfidence(250), 1e-9)
	assert.InDelta(t, 0.0, NormalizeConfidence(-3), 1e-9)
}

func TestFieldKindValueKind(t *testing.T) {
	assert.Equal(t, ValueList, KindMultiSelect.ValueKind())
	assert.Equal(t, ValueBool, KindCheckbox.ValueKind())
	assert.Equal(t, ValueBool, KindRadio.ValueKind())
	assert.Equal(t, ValueString, KindSelect.ValueKind())
	assert.True(t, KindTextarea.IsTextLike())
	assert.False(t, KindDate.IsTextLike())
}
