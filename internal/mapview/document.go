package mapview

import (
	"strings"
	"sync"
)

// Resource is a script or stylesheet node inserted into a view document
type Resource struct {
	ID   string
	Href string
	Body []byte
}

// Document is the page model a view renders into: the anchors currently
// mounted and the external resources inserted so far.
//
// Each mount of an anchor gets a new generation, so a map bound to an
// earlier mount of the same id can be told apart from a live one.
type Document struct {
	mu      sync.RWMutex
	anchors map[string]uint64
	nextGen uint64
	scripts map[string]Resource
	styles  []Resource
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{
		anchors: make(map[string]uint64),
		scripts: make(map[string]Resource),
	}
}

// MountAnchor makes an anchor element present. Mounting an anchor that is
// already present keeps its generation.
func (d *Document) MountAnchor(id string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen, ok := d.anchors[id]; ok {
		return gen
	}
	d.nextGen++
	d.anchors[id] = d.nextGen
	return d.nextGen
}

// UnmountAnchor removes an anchor element
func (d *Document) UnmountAnchor(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.anchors, id)
}

// HasAnchor reports whether the anchor is mounted
func (d *Document) HasAnchor(id string) bool {
	_, ok := d.AnchorGeneration(id)
	return ok
}

// AnchorGeneration returns the mount generation of a present anchor
func (d *Document) AnchorGeneration(id string) (uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	gen, ok := d.anchors[id]
	return gen, ok
}

// HasScript reports whether a script with the given id was inserted
func (d *Document) HasScript(id string) bool {
	_, ok := d.Script(id)
	return ok
}

// Script returns an inserted script by id
func (d *Document) Script(id string) (Resource, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.scripts[id]
	return r, ok
}

// InsertScript adds a script node unless one with the same id exists.
// It reports whether the node was inserted.
func (d *Document) InsertScript(r Resource) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.scripts[r.ID]; ok {
		return false
	}
	d.scripts[r.ID] = r
	return true
}

// Stylesheet returns the first stylesheet whose href contains match
func (d *Document) Stylesheet(match string) (Resource, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.styles {
		if strings.Contains(r.Href, match) {
			return r, true
		}
	}
	return Resource{}, false
}

// HasStylesheet reports whether a stylesheet matching href was inserted
func (d *Document) HasStylesheet(match string) bool {
	_, ok := d.Stylesheet(match)
	return ok
}

// InsertStylesheet adds a stylesheet node unless one matching match exists
func (d *Document) InsertStylesheet(r Resource, match string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.styles {
		if strings.Contains(s.Href, match) {
			return false
		}
	}
	d.styles = append(d.styles, r)
	return true
}

// ResourceCount returns the number of script and stylesheet nodes
func (d *Document) ResourceCount() (scripts, styles int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.scripts), len(d.styles)
}
