// Package detector finds fillable surfaces on a page: explicit forms,
// widget question blocks and implicit clusters of inputs.
package detector

import (
	"strings"

	"formautofill/analyzer"
	"formautofill/dom"
	"formautofill/models"
	"formautofill/utils"
)

const (
	maxContextText  = 1000
	minImplicitSize = 2

	formFieldSelector = `input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="reset"]):not([type="image"]), select, textarea`

	candidateSelector = `input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="reset"]):not([type="image"]), ` +
		`textarea, select, [contenteditable="true"], [role="textbox"], [role="combobox"], [role="radiogroup"]`

	countSelector = `input:not([type="hidden"]), textarea, select, [contenteditable="true"], [role="textbox"]`

	questionBlockSelector = `[role="listitem"], [data-item-id], div[class*="question"], ` +
		`div[class*="freebirdFormviewerViewItems"], div[class*="field"], div[class*="item"]`

	questionLabelHint = `div[class*="title"], div[class*="label"], label`

	contextStripSelector = "input, select, textarea, button, script, style"
)

var questionTitleSelectors = []string{
	`div[class*="title"]`,
	`div[class*="label"]`,
	`div[class*="question"]`,
	`label`,
	`span[class*="text"]`,
	`div[role="heading"]`,
}

var containerClassHints = []string{"question", "item", "field", "form", "survey", "questionnaire"}

// Detector discovers containers on a document.
type Detector struct {
	logger *utils.Logger
}

// New creates a detector.
func New(logger *utils.Logger) *Detector {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &Detector{logger: logger.Named("detector")}
}

// Detect runs every strategy and concatenates the results.
// A surface found by more than one strategy is reported once per strategy.
func (d *Detector) Detect(doc dom.Document) []models.Container {
	var out []models.Container
	out = append(out, d.ExplicitForms(doc, doc.QueryAll("form"))...)
	out = append(out, d.QuestionBlocks(doc)...)
	out = append(out, d.ImplicitClusters(doc, doc.QueryAll(candidateSelector))...)

	d.logger.Debug("detection complete", map[string]interface{}{
		"url":        doc.URL(),
		"containers": len(out),
	})
	return out
}

// ExplicitForms turns each form element into a container.
func (d *Detector) ExplicitForms(doc dom.Document, forms []dom.Element) []models.Container {
	out := make([]models.Container, 0, len(forms))
	for _, form := range forms {
		var fields []models.Field
		for _, el := range form.QueryAll(formFieldSelector) {
			fields = append(fields, NewField(doc, el))
		}
		out = append(out, models.Container{
			Element:     form,
			Fields:      fields,
			Selector:    ContainerSelector(form),
			ContextText: ContextText(form),
			Source:      models.SourceExplicit,
		})
	}
	return out
}

// QuestionBlocks finds widget-library question blocks outside of forms.
// Blocks sharing a nearest main/form/body ancestor become one container.
func (d *Detector) QuestionBlocks(doc dom.Document) []models.Container {
	var blocks []dom.Element
	for _, el := range doc.QueryAll(questionBlockSelector) {
		if el.Closest("form") != nil {
			continue
		}
		if isQuestionBlock(el) {
			blocks = append(blocks, el)
		}
	}
	blocks = innermost(blocks)
	if len(blocks) == 0 {
		return nil
	}

	var order []dom.Element
	groups := make(map[dom.Element][]models.Field)
	for _, block := range blocks {
		anchor := block.Closest(`[role="main"], form, body`)
		if anchor == nil {
			anchor = doc.Body()
		}
		if anchor == nil {
			continue
		}
		if _, ok := groups[anchor]; !ok {
			order = append(order, anchor)
		}
		groups[anchor] = append(groups[anchor], questionField(block))
	}

	out := make([]models.Container, 0, len(order))
	for _, anchor := range order {
		out = append(out, models.Container{
			Element:     anchor,
			Fields:      groups[anchor],
			Selector:    ContainerSelector(anchor),
			ContextText: ContextText(anchor),
			Source:      models.SourceQuestionBlock,
		})
	}
	return out
}

func isQuestionBlock(el dom.Element) bool {
	if role, _ := el.Attr("role"); role == "listitem" {
		return true
	}
	if _, ok := el.Attr("data-item-id"); ok {
		return true
	}
	return el.Query(questionLabelHint) != nil
}

// innermost drops blocks that contain another block, so page wrappers whose
// class happens to match do not swallow the questions inside them.
func innermost(blocks []dom.Element) []dom.Element {
	out := blocks[:0:0]
	for i, outer := range blocks {
		nested := false
		for j, inner := range blocks {
			if i != j && outer != inner && outer.Contains(inner) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, outer)
		}
	}
	return out
}

func questionField(block dom.Element) models.Field {
	id, _ := block.Attr("id")
	return models.Field{
		Element:  block,
		Kind:     questionKind(block),
		Selector: ContainerSelector(block),
		Attributes: models.FieldAttributes{
			ID:       id,
			Label:    questionLabel(block),
			Required: questionRequired(block),
		},
		QuestionBlock: true,
	}
}

func questionLabel(block dom.Element) string {
	for _, sel := range questionTitleSelectors {
		if el := block.Query(sel); el != nil {
			if text := plainText(el.TextContent()); text != "" && len([]rune(text)) < maxAncestorLabel {
				return text
			}
		}
	}
	return plainText(block.TextWithout(`button, input, select, textarea, [role="button"]`))
}

func questionKind(block dom.Element) models.FieldKind {
	text := strings.ToLower(block.TextContent())
	class, _ := block.Attr("class")
	class = strings.ToLower(class)
	has := func(sel string) bool { return block.Query(sel) != nil }

	switch {
	case has(`[role="radio"], [role="radiogroup"], input[type="radio"]`),
		strings.Contains(class, "radio"), strings.Contains(text, "select one"):
		return models.KindRadio
	case has(`[role="checkbox"], input[type="checkbox"]`),
		strings.Contains(class, "checkbox"), strings.Contains(text, "select all that apply"):
		return models.KindCheckbox
	case has("textarea"), strings.Contains(class, "paragraph"),
		strings.Contains(class, "long"), strings.Contains(text, "long answer"):
		return models.KindTextarea
	case has("select"), strings.Contains(class, "dropdown"), strings.Contains(class, "select"):
		return models.KindSelect
	case strings.Contains(class, "email"), strings.Contains(text, "email"), has(`input[type="email"]`):
		return models.KindEmail
	case strings.Contains(class, "phone"), strings.Contains(class, "tel"),
		strings.Contains(text, "phone"), has(`input[type="tel"]`):
		return models.KindTel
	}
	return models.KindText
}

func questionRequired(block dom.Element) bool {
	if block.Query(`[aria-required="true"], [data-required="true"], [required]`) != nil {
		return true
	}
	text := block.TextContent()
	return strings.Contains(text, "*") || strings.Contains(strings.ToLower(text), "required")
}

// ImplicitClusters groups candidate inputs outside forms by their logical
// container and keeps groups of at least two fields.
func (d *Detector) ImplicitClusters(doc dom.Document, candidates []dom.Element) []models.Container {
	var order []dom.Element
	groups := make(map[dom.Element][]dom.Element)
	for _, el := range candidates {
		if el.Closest("form") != nil {
			continue
		}
		container := logicalContainer(el)
		if container == nil {
			continue
		}
		if _, ok := groups[container]; !ok {
			order = append(order, container)
		}
		groups[container] = append(groups[container], el)
	}

	var out []models.Container
	for _, container := range order {
		members := groups[container]
		if len(members) < minImplicitSize {
			continue
		}
		out = append(out, implicitContainer(doc, container, members))
	}
	return out
}

func implicitContainer(doc dom.Document, container dom.Element, members []dom.Element) models.Container {
	fields := make([]models.Field, 0, len(members))
	for _, el := range members {
		fields = append(fields, NewField(doc, el))
	}
	return models.Container{
		Element:     container,
		Fields:      fields,
		Selector:    ContainerSelector(container),
		ContextText: ContextText(container),
		Source:      models.SourceImplicit,
	}
}

// logicalContainer walks up from el looking for a field-grouping widget,
// falling back to the ancestor with the fewest nonzero inputs.
func logicalContainer(el dom.Element) dom.Element {
	for node := el.Parent(); node != nil && !isRoot(node); node = node.Parent() {
		if isGroupingWidget(node) {
			return node
		}
	}
	return nearestInputContainer(el)
}

func isRoot(el dom.Element) bool {
	tag := el.TagName()
	return tag == "body" || tag == "html"
}

func isGroupingWidget(node dom.Element) bool {
	switch role, _ := node.Attr("role"); role {
	case "group", "radiogroup", "combobox", "listitem", "form":
		return true
	}
	class, _ := node.Attr("class")
	class = strings.ToLower(class)
	for _, hint := range containerClassHints {
		if strings.Contains(class, hint) {
			return true
		}
	}
	for _, name := range node.AttrNames() {
		if strings.HasPrefix(name, "data-") || strings.HasPrefix(name, "jscontroller") || strings.HasPrefix(name, "jsname") {
			return true
		}
	}
	return false
}

func nearestInputContainer(el dom.Element) dom.Element {
	var best dom.Element
	minCount := -1
	for cur := el.Parent(); cur != nil && cur.TagName() != "html"; cur = cur.Parent() {
		count := 0
		for _, input := range cur.QueryAll(countSelector) {
			if input.Closest("form") == nil {
				count++
			}
		}
		if count > 0 && (minCount < 0 || count < minCount) {
			best, minCount = cur, count
		}
	}
	return best
}

// ContextText is the descriptive copy of a container with interactive and
// script content removed, whitespace collapsed, capped at 1000 characters.
func ContextText(el dom.Element) string {
	return analyzer.Truncate(plainText(el.TextWithout(contextStripSelector)), maxContextText)
}
