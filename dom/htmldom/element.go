package htmldom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"formautofill/dom"
)

// Element wraps one element node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

func (e *Element) TagName() string { return strings.ToLower(e.node.Data) }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) AttrNames() []string {
	out := make([]string, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out = append(out, a.Key)
	}
	return out
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttr(name string) {
	out := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Key != name {
			out = append(out, a)
		}
	}
	e.node.Attr = out
}

func (e *Element) Parent() dom.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *Element) PreviousSibling() dom.Element {
	for s := e.node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

func (e *Element) Children() []dom.Element {
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

func (e *Element) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

func (e *Element) QueryAll(selector string) []dom.Element {
	return e.doc.wrapSelection(e.selection().Find(selector))
}

func (e *Element) Query(selector string) dom.Element {
	found := e.selection().Find(selector)
	if found.Length() == 0 {
		return nil
	}
	return e.doc.wrap(found.Nodes[0])
}

func (e *Element) Closest(selector string) dom.Element {
	// goquery's Closest stops at the node the selection was rooted at,
	// so walk the real ancestor chain instead.
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if goquery.NewDocumentFromNode(n).Selection.Is(selector) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func (e *Element) Matches(selector string) bool {
	return e.selection().Is(selector)
}

func (e *Element) Contains(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	for n := o.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

func (e *Element) TextContent() string {
	return e.selection().Text()
}

func (e *Element) TextWithout(selector string) string {
	clone := cloneNode(e.node)
	goquery.NewDocumentFromNode(clone).Find(selector).Remove()
	return goquery.NewDocumentFromNode(clone).Text()
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}

func (e *Element) isContentEditable() bool {
	v, ok := e.Attr("contenteditable")
	return ok && !strings.EqualFold(v, "false")
}

func (e *Element) Value() string {
	switch e.TagName() {
	case "textarea":
		return e.TextContent()
	case "select":
		opts := e.Options()
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	case "input":
		v, _ := e.Attr("value")
		return v
	}
	if e.isContentEditable() {
		return e.TextContent()
	}
	v, _ := e.Attr("value")
	return v
}

func (e *Element) SetValue(v string) {
	switch {
	case e.TagName() == "textarea", e.TagName() != "input" && e.isContentEditable():
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	default:
		e.SetAttr("value", v)
	}
}

func (e *Element) Checked() bool {
	_, ok := e.Attr("checked")
	return ok
}

func (e *Element) SetChecked(v bool) {
	if !v {
		e.RemoveAttr("checked")
		return
	}
	if t, _ := e.Attr("type"); strings.EqualFold(t, "radio") {
		if name, ok := e.Attr("name"); ok && name != "" {
			scope := e.Closest("form")
			var group []dom.Element
			if scope != nil {
				group = scope.QueryAll(`input[type="radio"]`)
			} else {
				group = e.doc.QueryAll(`input[type="radio"]`)
			}
			for _, other := range group {
				if n, _ := other.Attr("name"); n == name && other != dom.Element(e) {
					other.RemoveAttr("checked")
				}
			}
		}
	}
	e.SetAttr("checked", "")
}

func (e *Element) optionNodes() []*html.Node {
	return e.selection().Find("option").Nodes
}

func (e *Element) Options() []dom.Option {
	nodes := e.optionNodes()
	out := make([]dom.Option, 0, len(nodes))
	for i, n := range nodes {
		opt := e.doc.wrap(n)
		text := strings.TrimSpace(opt.TextContent())
		value, ok := opt.Attr("value")
		if !ok {
			value = text
		}
		_, selected := opt.Attr("selected")
		out = append(out, dom.Option{Index: i, Value: value, Text: text, Selected: selected})
	}
	return out
}

func (e *Element) SelectOption(index int, selected bool) {
	nodes := e.optionNodes()
	if index < 0 || index >= len(nodes) {
		return
	}
	_, multiple := e.Attr("multiple")
	for i, n := range nodes {
		opt := e.doc.wrap(n)
		switch {
		case i == index && selected:
			opt.SetAttr("selected", "")
		case i == index:
			opt.RemoveAttr("selected")
		case selected && !multiple:
			opt.RemoveAttr("selected")
		}
	}
}

func (e *Element) classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) HasClass(name string) bool {
	for _, c := range e.classes() {
		if c == name {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(name string) {
	if e.HasClass(name) {
		return
	}
	e.SetAttr("class", strings.Join(append(e.classes(), name), " "))
}

func (e *Element) RemoveClass(name string) {
	if !e.HasClass(name) {
		return
	}
	var kept []string
	for _, c := range e.classes() {
		if c != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttr("class")
		return
	}
	e.SetAttr("class", strings.Join(kept, " "))
}

func (e *Element) Dispatch(event string) {
	e.doc.record(e, event)
}
