// Package dom defines the capabilities the detector, classifier and executor
// need from a page. Implementations may wrap a parsed document, a live
// browser page or a test double.
package dom

// Element is one node of a DOM-like tree.
type Element interface {
	TagName() string
	Attr(name string) (string, bool)
	AttrNames() []string
	SetAttr(name, value string)
	RemoveAttr(name string)

	Parent() Element
	PreviousSibling() Element
	Children() []Element

	// QueryAll returns descendants matching a CSS selector in document order.
	QueryAll(selector string) []Element
	Query(selector string) Element
	// Closest returns the nearest ancestor-or-self matching the selector.
	Closest(selector string) Element
	Matches(selector string) bool
	Contains(other Element) bool

	TextContent() string
	// TextWithout returns the text of a copy of the subtree with every
	// descendant matching the selector removed.
	TextWithout(selector string) string

	Value() string
	SetValue(v string)
	Checked() bool
	SetChecked(v bool)
	Options() []Option
	SelectOption(index int, selected bool)

	HasClass(name string) bool
	AddClass(name string)
	RemoveClass(name string)

	Dispatch(event string)
}

// Option is a snapshot of one select option.
type Option struct {
	Index    int
	Value    string
	Text     string
	Selected bool
}

// Document is the root of a page.
type Document interface {
	URL() string
	Body() Element
	QueryAll(selector string) []Element
	ElementByID(id string) Element
	// Observe registers a callback invoked once per batch of inserted nodes.
	Observe(fn func(added []Element)) Subscription
}

// Subscription cancels a registration made with Observe.
type Subscription interface {
	Cancel()
}
