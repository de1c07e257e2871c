package browser

import (
	"context"
	"errors"
	"strings"

	"formautofill/dom"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/utils"
)

var errMissingFromSnapshot = errors.New("element missing from snapshot")

// control is one element on the live page.
type control interface {
	Fill(value string) error
	SelectValues(values []string) error
	SetChecked(checked bool) error
	// Finish fires the change and blur notifications after a fill.
	Finish() error
	Highlight(class string) error
}

// replay applies every successful result and returns the targets that
// failed. It stops early once ctx is done, leaving the rest unapplied.
func replay(ctx context.Context, doc *htmldom.Document, summary models.FillSummary, highlightClass string, locate func(string) control, logger *utils.Logger) map[string]error {
	failed := make(map[string]error)
	for _, r := range summary.Results {
		if !r.Success || r.Target == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			failed[r.Target] = err
			continue
		}
		el := doc.Query(r.Target)
		if el == nil {
			failed[r.Target] = errMissingFromSnapshot
			continue
		}
		c := locate(r.Target)
		if err := apply(c, el); err != nil {
			failed[r.Target] = err
			logger.Warn("replay failed", map[string]interface{}{"target": r.Target, "error": err.Error()})
			continue
		}
		if highlightClass != "" {
			if err := c.Highlight(highlightClass); err != nil {
				logger.Debug("highlight failed", map[string]interface{}{"target": r.Target, "error": err.Error()})
			}
		}
	}
	return failed
}

// apply copies the snapshot state of el onto c.
func apply(c control, el dom.Element) error {
	switch el.TagName() {
	case "select":
		var values []string
		for _, o := range el.Options() {
			if o.Selected {
				values = append(values, o.Value)
			}
		}
		if err := c.SelectValues(values); err != nil {
			return err
		}
		return c.Finish()
	case "input":
		t, _ := el.Attr("type")
		if t = strings.ToLower(t); t == "checkbox" || t == "radio" {
			if err := c.SetChecked(el.Checked()); err != nil {
				return err
			}
			return c.Finish()
		}
	}
	if err := c.Fill(el.Value()); err != nil {
		return err
	}
	return c.Finish()
}
