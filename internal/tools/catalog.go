// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"sort"
)

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable, ordered set of tools. The zero value and a nil
// *Catalog are both valid empty catalogs.
//
// A Catalog is safe for concurrent use: nothing mutates it after NewCatalog.
type Catalog struct {
	specs []ToolSpec
	index map[string]int
}

// Source yields the catalog to use for a request. A *Catalog is its own
// Source; Watcher is a Source that swaps snapshots when the file changes.
type Source interface {
	Catalog() *Catalog
}

// NewCatalog validates specs and builds a catalog preserving their order.
func NewCatalog(specs ...ToolSpec) (*Catalog, error) {
	c := &Catalog{
		specs: make([]ToolSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
		}
		c.index[spec.Name] = len(c.specs)
		c.specs = append(c.specs, spec.clone())
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid input. Intended for
// static tool sets and tests.
func MustCatalog(specs ...ToolSpec) *Catalog {
	c, err := NewCatalog(specs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Catalog implements Source.
func (c *Catalog) Catalog() *Catalog {
	return c
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.specs)
}

// Specs returns a copy of the tools in declaration order.
func (c *Catalog) Specs() []ToolSpec {
	if c == nil {
		return nil
	}
	out := make([]ToolSpec, len(c.specs))
	for i, s := range c.specs {
		out[i] = s.clone()
	}
	return out
}

// Lookup returns the tool with the given name.
func (c *Catalog) Lookup(name string) (ToolSpec, bool) {
	if c == nil {
		return ToolSpec{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return ToolSpec{}, false
	}
	return c.specs[i].clone(), true
}

// Has reports whether a tool with the given name is in the catalog.
func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[name]
	return ok
}

// Names returns tool names in declaration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.specs))
	for i, s := range c.specs {
		names[i] = s.Name
	}
	return names
}

// OnDevice returns the subset of tools flagged as runnable on-device.
func (c *Catalog) OnDevice() *Catalog {
	return c.filter(func(s ToolSpec) bool { return s.OnDevice })
}

// Subset returns the tools whose names are listed, in catalog order.
// Unknown names are ignored.
func (c *Catalog) Subset(names ...string) *Catalog {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	return c.filter(func(s ToolSpec) bool { return want[s.Name] })
}

func (c *Catalog) filter(keep func(ToolSpec) bool) *Catalog {
	out := &Catalog{index: make(map[string]int)}
	if c == nil {
		return out
	}
	for _, s := range c.specs {
		if keep(s) {
			out.index[s.Name] = len(out.specs)
			out.specs = append(out.specs, s.clone())
		}
	}
	return out
}

// FilterCalls drops calls whose name is not in the catalog, keeping order.
func (c *Catalog) FilterCalls(calls []FunctionCall) []FunctionCall {
	out := make([]FunctionCall, 0, len(calls))
	for _, call := range calls {
		if c.Has(call.Name) {
			out = append(out, call)
		}
	}
	return out
}

// MarshalJSON encodes the catalog as a JSON array of wire-format tools.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, s := range c.Specs() {
		if i > 0 {
			stream.WriteMore()
		}
		writeTool(stream, s)
	}
	stream.WriteArrayEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalJSON decodes a JSON array of wire-format tools.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	specs, err := decodeToolArray(data)
	if err != nil {
		return err
	}
	built, err := NewCatalog(specs...)
	if err != nil {
		return err
	}
	*c = *built
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
