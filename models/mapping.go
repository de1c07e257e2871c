package models

import "formautofill/dom"

// AIGeneratedPath marks a mapping whose value was synthesized by the oracle.
const AIGeneratedPath = "ai-generated"

// MappingSource records which resolution step produced a mapping.
type MappingSource string

const (
	MappingDomain    MappingSource = "domain"
	MappingHeuristic MappingSource = "heuristic"
	MappingOracle    MappingSource = "oracle"
)

// FieldMapping binds a field to a resolved profile value.
type FieldMapping struct {
	Field       Field         `json:"field"`
	ProfilePath string        `json:"profilePath"`
	Confidence  float64       `json:"confidence"`
	Value       Value         `json:"value"`
	Source      MappingSource `json:"source"`
	Reasoning   string        `json:"reasoning,omitempty"`
}

// FillResult is the outcome of filling one field.
type FillResult struct {
	Field  Field  `json:"field"`
	Value  Value  `json:"value"`
	Target string `json:"target"`
	// Control is the element that was mutated, which for question blocks is
	// the answer control inside the block.
	Control dom.Element `json:"-"`
	Success bool        `json:"success"`
	Skipped bool        `json:"skipped"`
	Error   string      `json:"error,omitempty"`
	Err     error       `json:"-"`
}

// FillSummary aggregates the results of one fill run.
type FillSummary struct {
	TotalFields   int          `json:"totalFields"`
	FilledFields  int          `json:"filledFields"`
	SkippedFields int          `json:"skippedFields"`
	FailedFields  int          `json:"failedFields"`
	Results       []FillResult `json:"results"`
}
