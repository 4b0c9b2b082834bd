// Package match joins detections to catalog entries by name.
package match

import (
	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/detect"
)

// Group aggregates every detection in one image that matched the same
// catalog entry.
type Group struct {
	// Key is the lower-cased product name. Unique within one Match result.
	Key string `json:"key"`

	Price   float64 `json:"price"`
	InStock bool    `json:"in_stock"`

	// Boxes holds every matched box in detection order. Never empty.
	Boxes []detect.BBox `json:"boxes"`
}

// Match groups detections whose lower-cased class name equals a catalog
// entry name. Groups come back in order of first appearance. Detections
// with no catalog entry are dropped without a trace.
//
// Price and stock are copied out of the entry, so later catalog edits do
// not reach groups already built.
func Match(detections []detect.Detection, entries []catalog.Entry) []Group {
	lookup := make(map[string]catalog.Entry, len(entries))
	for _, e := range entries {
		lookup[catalog.Normalize(e.Name)] = e
	}

	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, d := range detections {
		key := catalog.Normalize(d.ClassName)
		entry, ok := lookup[key]
		if !ok {
			continue
		}

		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{
				Key:     key,
				Price:   entry.Price,
				InStock: entry.InStock,
			})
		}
		groups[i].Boxes = append(groups[i].Boxes, d.Box)
	}

	return groups
}

// Anchor returns the box with the largest area. Ties go to the earliest box.
func (g Group) Anchor() detect.BBox {
	var best detect.BBox
	bestArea := -1
	for _, b := range g.Boxes {
		if a := b.Area(); a > bestArea {
			best, bestArea = b, a
		}
	}
	return best
}
