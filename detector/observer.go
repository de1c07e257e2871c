package detector

import (
	"sync"

	"formautofill/dom"
	"formautofill/models"
)

// Observe watches doc for inserted subtrees and reports each new explicit
// form or implicit cluster once. Containers already on the page when
// observation starts count as reported. Question blocks are not re-scanned.
// The callback runs synchronously on the notifying goroutine.
func (d *Detector) Observe(doc dom.Document, fn func(models.Container)) dom.Subscription {
	var mu sync.Mutex
	reported := make(map[dom.Element]struct{})
	for _, c := range d.ExplicitForms(doc, doc.QueryAll("form")) {
		reported[c.Element] = struct{}{}
	}
	for _, c := range d.ImplicitClusters(doc, doc.QueryAll(candidateSelector)) {
		reported[c.Element] = struct{}{}
	}

	emit := func(c models.Container) {
		mu.Lock()
		if _, seen := reported[c.Element]; seen {
			mu.Unlock()
			return
		}
		reported[c.Element] = struct{}{}
		mu.Unlock()
		d.logger.Debug("container inserted", map[string]interface{}{
			"selector": c.Selector,
			"source":   c.Source,
			"fields":   len(c.Fields),
		})
		fn(c)
	}

	return doc.Observe(func(added []dom.Element) {
		for _, root := range added {
			var forms []dom.Element
			if root.TagName() == "form" {
				forms = append(forms, root)
			}
			forms = append(forms, root.QueryAll("form")...)
			for _, c := range d.ExplicitForms(doc, forms) {
				emit(c)
			}

			for _, c := range d.insertedClusters(doc, root) {
				emit(c)
			}
		}
	})
}

// insertedClusters resolves the logical containers of candidates inside root
// and clusters every candidate of those containers, not just the new ones.
func (d *Detector) insertedClusters(doc dom.Document, root dom.Element) []models.Container {
	var candidates []dom.Element
	if root.Matches(candidateSelector) {
		candidates = append(candidates, root)
	}
	candidates = append(candidates, root.QueryAll(candidateSelector)...)

	var order []dom.Element
	seen := make(map[dom.Element]struct{})
	for _, el := range candidates {
		if el.Closest("form") != nil {
			continue
		}
		container := logicalContainer(el)
		if container == nil {
			continue
		}
		if _, ok := seen[container]; ok {
			continue
		}
		seen[container] = struct{}{}
		order = append(order, container)
	}

	var out []models.Container
	for _, container := range order {
		out = append(out, d.ImplicitClusters(doc, container.QueryAll(candidateSelector))...)
	}
	return out
}
