// Package executor applies mapped values to page fields and reports the outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"formautofill/detector"
	"formautofill/dom"
	"formautofill/models"
	"formautofill/utils"
)

// Skip conditions. Fields failing with these are structurally unfillable.
var (
	ErrFieldDisabled = errors.New("field is disabled")
	ErrFieldReadOnly = errors.New("field is read-only")
	ErrFileInput     = errors.New("file inputs cannot be filled")
)

// Failure conditions.
var (
	ErrPatternMismatch    = errors.New("value does not match the field pattern")
	ErrNoMatchingOption   = errors.New("no matching option")
	ErrRequiresArray      = errors.New("multi-select requires an array value")
	ErrValueMismatch      = errors.New("value does not fit the field kind")
	ErrUnsupportedKind    = errors.New("unsupported field kind")
	ErrAnswerInputMissing = errors.New("question has no answer input")
)

// notificationEvents are dispatched after every successful mutation.
var notificationEvents = []string{"input", "change", "blur"}

const answerInputSelector = `input:not([type="hidden"]), textarea, select, [contenteditable="true"], [role="textbox"]`

// IsSkip reports whether err is one of the skip conditions.
func IsSkip(err error) bool {
	return errors.Is(err, ErrFieldDisabled) || errors.Is(err, ErrFieldReadOnly) || errors.Is(err, ErrFileInput)
}

type Executor struct {
	logger *utils.Logger
}

func New(logger *utils.Logger) *Executor {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &Executor{logger: logger.Named("executor")}
}

// Fill applies every mapping in order. Cancellation is honored between
// fields only; on cancellation the partial summary is returned with ctx.Err().
func (e *Executor) Fill(ctx context.Context, mappings []models.FieldMapping) (models.FillSummary, error) {
	summary := models.FillSummary{Results: make([]models.FillResult, 0, len(mappings))}
	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r := e.FillField(m)
		summary.TotalFields++
		switch {
		case r.Success:
			summary.FilledFields++
		case r.Skipped:
			summary.SkippedFields++
		default:
			summary.FailedFields++
		}
		summary.Results = append(summary.Results, r)
	}

	e.logger.Info("fill complete", map[string]interface{}{
		"total":   summary.TotalFields,
		"filled":  summary.FilledFields,
		"skipped": summary.SkippedFields,
		"failed":  summary.FailedFields,
	})
	return summary, nil
}

// FillField applies one mapping and reports what happened.
func (e *Executor) FillField(m models.FieldMapping) models.FillResult {
	result := models.FillResult{Field: m.Field, Value: m.Value, Target: m.Field.Selector}

	el, err := target(m.Field)
	if err == nil {
		result.Control = el
		if m.Field.QuestionBlock {
			result.Target = detector.FieldSelector(el)
		}
		err = apply(el, m.Field, m.Value)
	}

	switch {
	case err == nil:
		result.Success = true
	case IsSkip(err):
		result.Skipped = true
		result.Err, result.Error = err, err.Error()
	default:
		result.Err, result.Error = err, err.Error()
		e.logger.Debug("field fill failed", map[string]interface{}{
			"selector": m.Field.Selector,
			"kind":     m.Field.Kind,
			"error":    err.Error(),
		})
	}
	return result
}

// target returns the element to mutate. Question-block fields point at the
// block, so the first answer control inside it is used.
func target(f models.Field) (dom.Element, error) {
	if f.Element == nil {
		return nil, fmt.Errorf("%s: element is no longer attached", f.Selector)
	}
	if !f.QuestionBlock {
		return f.Element, nil
	}
	if f.Element.Matches(answerInputSelector) {
		return f.Element, nil
	}
	if el := f.Element.Query(answerInputSelector); el != nil {
		return el, nil
	}
	return nil, ErrAnswerInputMissing
}

func apply(el dom.Element, f models.Field, v models.Value) error {
	if _, ok := el.Attr("disabled"); ok {
		return ErrFieldDisabled
	}
	if _, ok := el.Attr("readonly"); ok {
		return ErrFieldReadOnly
	}
	if t, _ := el.Attr("type"); f.Kind == models.KindFile || strings.EqualFold(t, "file") {
		return ErrFileInput
	}
	if !matchesPattern(f.Attributes.Pattern, v) {
		return fmt.Errorf("%w: %q against %q", ErrPatternMismatch, v.String(), f.Attributes.Pattern)
	}

	switch f.Kind {
	case models.KindText, models.KindEmail, models.KindTel, models.KindTextarea, models.KindDate:
		if v.Kind != models.ValueString {
			return fmt.Errorf("%w: %s field given a %s", ErrValueMismatch, f.Kind, v.Kind)
		}
		el.SetValue(v.Str)
	case models.KindSelect:
		if v.Kind != models.ValueString {
			return fmt.Errorf("%w: %s field given a %s", ErrValueMismatch, f.Kind, v.Kind)
		}
		if err := selectSingle(el, v.Str); err != nil {
			return err
		}
	case models.KindMultiSelect:
		if v.Kind != models.ValueList {
			return ErrRequiresArray
		}
		if err := selectMany(el, v.List); err != nil {
			return err
		}
	case models.KindCheckbox, models.KindRadio:
		if v.Kind != models.ValueBool {
			return fmt.Errorf("%w: %s field given a %s", ErrValueMismatch, f.Kind, v.Kind)
		}
		el.SetChecked(v.Bool)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, f.Kind)
	}

	for _, ev := range notificationEvents {
		el.Dispatch(ev)
	}
	return nil
}

// matchesPattern tests the value against a declared pattern. Patterns that
// do not compile are ignored.
func matchesPattern(pattern string, v models.Value) bool {
	if pattern == "" {
		return true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return true
	}
	return re.MatchString(v.String())
}

func equalFold(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}

func optionMatches(o dom.Option, want string) bool {
	return equalFold(o.Value, want) || equalFold(o.Text, want)
}

func selectSingle(el dom.Element, want string) error {
	for _, o := range el.Options() {
		if optionMatches(o, want) {
			el.SelectOption(o.Index, true)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNoMatchingOption, want)
}

func selectMany(el dom.Element, wants []string) error {
	matched := 0
	for _, o := range el.Options() {
		for _, w := range wants {
			if optionMatches(o, w) {
				el.SelectOption(o.Index, true)
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return fmt.Errorf("%w: %v", ErrNoMatchingOption, wants)
	}
	return nil
}

// Verify re-reads the field and reports whether it now holds the value.
func (e *Executor) Verify(f models.Field, v models.Value) bool {
	el, err := target(f)
	if err != nil {
		return false
	}
	switch f.Kind {
	case models.KindSelect:
		for _, o := range el.Options() {
			if o.Selected {
				return optionMatches(o, v.String())
			}
		}
		return false
	case models.KindMultiSelect:
		if v.Kind != models.ValueList {
			return false
		}
		for _, w := range v.List {
			found := false
			for _, o := range el.Options() {
				if o.Selected && optionMatches(o, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case models.KindCheckbox, models.KindRadio:
		return v.Kind == models.ValueBool && el.Checked() == v.Bool
	}
	return el.Value() == v.String()
}
