// Package htmldom implements the dom capabilities over a parsed HTML tree.
// It backs fixtures, snapshots of live pages and the command-line tools.
package htmldom

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"formautofill/dom"
)

// Event is a notification dispatched on an element.
type Event struct {
	Target *Element
	Type   string
}

// Document is an in-memory page.
type Document struct {
	url  string
	root *html.Node

	mu        sync.Mutex
	nodes     map[*html.Node]*Element
	events    []Event
	observers map[int]func([]dom.Element)
	nextObs   int
}

// Parse builds a document from HTML source.
func Parse(url, src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		url:       url,
		root:      root,
		nodes:     make(map[*html.Node]*Element),
		observers: make(map[int]func([]dom.Element)),
	}, nil
}

// MustParse is Parse for fixtures that are known to be valid.
func MustParse(url, src string) *Document {
	d, err := Parse(url, src)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) URL() string { return d.url }

func (d *Document) Body() dom.Element {
	if el := d.find(d.root, func(n *html.Node) bool { return n.Data == "body" }); el != nil {
		return el
	}
	return nil
}

func (d *Document) QueryAll(selector string) []dom.Element {
	return d.wrapSelection(goquery.NewDocumentFromNode(d.root).Find(selector))
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) dom.Element {
	all := d.QueryAll(selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func (d *Document) ElementByID(id string) dom.Element {
	if id == "" {
		return nil
	}
	if el := d.find(d.root, func(n *html.Node) bool { return attr(n, "id") == id }); el != nil {
		return el
	}
	return nil
}

func (d *Document) Observe(fn func(added []dom.Element)) dom.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	return &subscription{doc: d, id: id}
}

type subscription struct {
	doc  *Document
	id   int
	once sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.doc.mu.Lock()
		delete(s.doc.observers, s.id)
		s.doc.mu.Unlock()
	})
}

// Insert parses an HTML fragment, appends it to parent and notifies
// observers once with the inserted top-level elements.
func (d *Document) Insert(parent dom.Element, fragment string) ([]dom.Element, error) {
	p, ok := parent.(*Element)
	if !ok || p == nil {
		return nil, fmt.Errorf("insert: parent is not an htmldom element")
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), p.node)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	var added []dom.Element
	for _, n := range nodes {
		p.node.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, d.wrap(n))
		}
	}
	d.notify(added)
	return added, nil
}

func (d *Document) notify(added []dom.Element) {
	if len(added) == 0 {
		return
	}
	d.mu.Lock()
	fns := make([]func([]dom.Element), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(added)
	}
}

// Events returns the notifications dispatched so far.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// EventTypes returns the event names dispatched on el, in order.
func (d *Document) EventTypes(el dom.Element) []string {
	var out []string
	for _, ev := range d.Events() {
		if dom.Element(ev.Target) == el {
			out = append(out, ev.Type)
		}
	}
	return out
}

// HTML renders the current state of the document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) record(el *Element, event string) {
	d.mu.Lock()
	d.events = append(d.events, Event{Target: el, Type: event})
	d.mu.Unlock()
}

// wrap returns the canonical Element for n so that handles compare equal.
func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.nodes[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.nodes[n] = el
	return el
}

func (d *Document) wrapSelection(sel *goquery.Selection) []dom.Element {
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		if n.Type == html.ElementNode {
			out = append(out, d.wrap(n))
		}
	}
	return out
}

func (d *Document) find(n *html.Node, pred func(*html.Node) bool) *Element {
	if n.Type == html.ElementNode && pred(n) {
		return d.wrap(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if el := d.find(c, pred); el != nil {
			return el
		}
	}
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
