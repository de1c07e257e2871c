package detector

import (
	"fmt"
	"regexp"
	"strings"

	"formautofill/dom"
	"formautofill/models"
)

const (
	maxLabelAncestors = 3
	maxLabelSiblings  = 3
	maxAncestorLabel  = 300
	maxSiblingLabel   = 200

	labelStripSelector = "input, select, textarea, button, script, style"
)

var whitespace = regexp.MustCompile(`\s+`)

// plainText collapses runs of whitespace and trims.
func plainText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ClassifyKind maps an element to its semantic field kind.
func ClassifyKind(el dom.Element) models.FieldKind {
	if v, ok := el.Attr("contenteditable"); ok && !strings.EqualFold(v, "false") {
		return models.KindTextarea
	}
	switch role, _ := el.Attr("role"); role {
	case "textbox", "combobox":
		return models.KindText
	case "radiogroup":
		return models.KindRadio
	}

	switch el.TagName() {
	case "textarea":
		return models.KindTextarea
	case "select":
		if _, multiple := el.Attr("multiple"); multiple {
			return models.KindMultiSelect
		}
		return models.KindSelect
	case "input":
		t, _ := el.Attr("type")
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "email":
			return models.KindEmail
		case "tel":
			return models.KindTel
		case "checkbox":
			return models.KindCheckbox
		case "radio":
			return models.KindRadio
		case "date":
			return models.KindDate
		case "file":
			return models.KindFile
		case "hidden":
			return models.KindHidden
		default:
			return models.KindText
		}
	}
	return models.KindUnknown
}

// FindLabel recovers the human-readable label of a field, trying explicit
// associations before proximity. It returns "" when nothing is found.
func FindLabel(doc dom.Document, el dom.Element) string {
	if id, _ := el.Attr("id"); id != "" && doc != nil {
		for _, label := range doc.QueryAll("label[for]") {
			if f, _ := label.Attr("for"); f == id {
				if text := plainText(label.TextContent()); text != "" {
					return text
				}
				break
			}
		}
	}

	if label := el.Closest("label"); label != nil {
		if text := plainText(label.TextContent()); text != "" {
			return text
		}
	}

	if aria, _ := el.Attr("aria-label"); strings.TrimSpace(aria) != "" {
		return strings.TrimSpace(aria)
	}

	if ids, _ := el.Attr("aria-labelledby"); ids != "" && doc != nil {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if target := doc.ElementByID(id); target != nil {
				if text := plainText(target.TextContent()); text != "" {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}

	parent := el.Parent()
	for level := 0; parent != nil && level < maxLabelAncestors; level++ {
		text := plainText(parent.TextWithout(labelStripSelector))
		if n := len([]rune(text)); n > 0 && n < maxAncestorLabel {
			return text
		}
		parent = parent.Parent()
	}

	sibling := el.PreviousSibling()
	for checks := 0; sibling != nil && checks < maxLabelSiblings; checks++ {
		text := plainText(sibling.TextContent())
		if n := len([]rune(text)); n > 0 && n < maxSiblingLabel {
			return text
		}
		sibling = sibling.PreviousSibling()
	}

	return ""
}

// Attributes reads the metadata of a field element.
func Attributes(doc dom.Document, el dom.Element) models.FieldAttributes {
	get := func(name string) string {
		v, _ := el.Attr(name)
		return v
	}
	_, required := el.Attr("required")
	if strings.EqualFold(get("aria-required"), "true") {
		required = true
	}
	return models.FieldAttributes{
		Name:        get("name"),
		ID:          get("id"),
		Placeholder: get("placeholder"),
		Label:       FindLabel(doc, el),
		Type:        strings.ToLower(get("type")),
		Required:    required,
		Pattern:     get("pattern"),
	}
}

// NewField classifies el and captures everything needed to fill it later.
func NewField(doc dom.Document, el dom.Element) models.Field {
	return models.Field{
		Element:    el,
		Kind:       ClassifyKind(el),
		Selector:   FieldSelector(el),
		Attributes: Attributes(doc, el),
	}
}

// FieldSelector builds a selector that re-locates a field element.
func FieldSelector(el dom.Element) string {
	if id, _ := el.Attr("id"); id != "" {
		return "#" + cssEscape(id)
	}
	tag := el.TagName()
	if name, _ := el.Attr("name"); name != "" {
		sel := fmt.Sprintf(`%s[name="%s"]`, tag, quoteAttr(name))
		t, _ := el.Attr("type")
		if t = strings.ToLower(t); t == "radio" || t == "checkbox" {
			if v, ok := el.Attr("value"); ok {
				sel += fmt.Sprintf(`[value="%s"]`, quoteAttr(v))
			}
		}
		return sel
	}
	return StructuralSelector(el)
}

// ContainerSelector builds a selector for a container element.
func ContainerSelector(el dom.Element) string {
	if id, _ := el.Attr("id"); id != "" {
		return "#" + cssEscape(id)
	}
	if el.TagName() == "form" {
		if name, _ := el.Attr("name"); name != "" {
			return fmt.Sprintf(`form[name="%s"]`, quoteAttr(name))
		}
	}
	return StructuralSelector(el)
}

// StructuralSelector returns a child-combinator path of nth-of-type steps
// from the document root down to el.
func StructuralSelector(el dom.Element) string {
	var steps []string
	for cur := el; cur != nil; cur = cur.Parent() {
		tag := cur.TagName()
		if tag == "html" {
			break
		}
		if tag == "body" {
			steps = append(steps, "body")
			break
		}
		index := 1
		for sib := cur.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
			if sib.TagName() == tag {
				index++
			}
		}
		steps = append(steps, fmt.Sprintf("%s:nth-of-type(%d)", tag, index))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, " > ")
}

func quoteAttr(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// cssEscape escapes an identifier for use after '#'.
func cssEscape(id string) string {
	var b strings.Builder
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-' && i > 0, r > 0x7f:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				fmt.Fprintf(&b, `\%x `, r)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
