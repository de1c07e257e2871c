package models

import (
	"formautofill/dom"
)

// FieldKind is the semantic kind of a fillable element.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindEmail       FieldKind = "email"
	KindTel         FieldKind = "tel"
	KindSelect      FieldKind = "select"
	KindMultiSelect FieldKind = "multi-select"
	KindCheckbox    FieldKind = "checkbox"
	KindRadio       FieldKind = "radio"
	KindTextarea    FieldKind = "textarea"
	KindDate        FieldKind = "date"
	KindFile        FieldKind = "file"
	KindHidden      FieldKind = "hidden"
	KindUnknown     FieldKind = "unknown"
)

// IsTextLike reports whether the kind accepts a plain string assignment.
func (k FieldKind) IsTextLike() bool {
	switch k {
	case KindText, KindEmail, KindTel, KindTextarea:
		return true
	}
	return false
}

// ValueKind returns the value variant a field of this kind expects.
func (k FieldKind) ValueKind() ValueKind {
	switch k {
	case KindMultiSelect:
		return ValueList
	case KindCheckbox, KindRadio:
		return ValueBool
	}
	return ValueString
}

type FieldAttributes struct {
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Label       string `json:"label,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
	Pattern     string `json:"pattern,omitempty"`
}

// Field is a handle to one fillable element found during a detection pass.
// It goes stale once the page mutates and must not be cached across passes.
type Field struct {
	Element    dom.Element     `json:"-"`
	Kind       FieldKind       `json:"kind"`
	Selector   string          `json:"selector"`
	Attributes FieldAttributes `json:"attributes"`
	// QuestionBlock marks synthetic fields produced from widget question
	// blocks; Element is then the block, not the answer control.
	QuestionBlock bool `json:"questionBlock,omitempty"`
}

// ContainerSource records which detection strategy produced a container.
type ContainerSource string

const (
	SourceExplicit      ContainerSource = "explicit"
	SourceQuestionBlock ContainerSource = "question-block"
	SourceImplicit      ContainerSource = "implicit"
)

// Container groups fields under a shared DOM boundary.
type Container struct {
	Element        dom.Element     `json:"-"`
	Fields         []Field         `json:"fields"`
	Selector       string          `json:"selector"`
	ContextText    string          `json:"contextText"`
	Source         ContainerSource `json:"source"`
	Classification *Classification `json:"classification,omitempty"`
}

// FieldAnalysis is the mapper input derived from a Field.
type FieldAnalysis struct {
	Field    Field    `json:"field"`
	Keywords []string `json:"keywords"`
	Context  string   `json:"context"`
}

// Classification is the inferred purpose of a container.
type Classification struct {
	Purpose          string   `json:"purpose"`
	Confidence       float64  `json:"confidence"`
	SuggestedFields  []string `json:"suggestedFields,omitempty"`
	IsJobApplication bool     `json:"isJobApplication"`
	IsContactForm    bool     `json:"isContactForm"`
	IsSurvey         bool     `json:"isSurvey"`
	IsRegistration   bool     `json:"isRegistration"`
	RequiresResume   bool     `json:"requiresResume"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// NormalizeConfidence maps a provider score on either a 0-1 or 0-100 scale into [0,1].
func NormalizeConfidence(c float64) float64 {
	if c > 1 {
		c = c / 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
