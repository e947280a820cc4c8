// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/fcrouter/internal/util"
)

// Format identifies a catalog document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q (want .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadFile reads and decodes a catalog file, choosing the format by extension.
func LoadFile(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document in the given format.
func Parse(data []byte, format Format) (*Catalog, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(data)
	case FormatYAML:
		return ParseYAML(data)
	case FormatTOML:
		return ParseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}

// ParseJSON decodes either {"tools": [...]} or a bare array of wire-format tools.
func ParseJSON(data []byte) (*Catalog, error) {
	doc := bytes.TrimSpace(data)
	if len(doc) > 0 && doc[0] == '[' {
		wrapped := make([]byte, 0, len(doc)+12)
		wrapped = append(wrapped, `{"tools":`...)
		wrapped = append(wrapped, doc...)
		wrapped = append(wrapped, '}')
		doc = wrapped
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var toolsRaw []byte
	iter := jsoniter.ParseBytes(json, doc)
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		if field == "tools" {
			toolsRaw = append([]byte(nil), iter.SkipAndReturnBytes()...)
		} else {
			iter.Skip()
		}
		return iter.Error == nil
	})
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", iter.Error)
	}

	specs, err := decodeToolArray(toolsRaw)
	if err != nil {
		return nil, err
	}
	return NewCatalog(specs...)
}

// ParseYAML decodes a YAML document in the wire layout. Mapping order in the
// YAML source is kept.
func ParseYAML(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode yaml catalog: %w", err)
	}

	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	if err := writeYAMLNode(stream, &root); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	return ParseJSON(append([]byte(nil), stream.Buffer()...))
}

// writeYAMLNode re-encodes a YAML node tree as JSON without losing key order.
func writeYAMLNode(stream *jsoniter.Stream, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			stream.WriteNil()
			return nil
		}
		return writeYAMLNode(stream, n.Content[0])
	case yaml.MappingNode:
		stream.WriteObjectStart()
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(n.Content[i].Value)
			if err := writeYAMLNode(stream, n.Content[i+1]); err != nil {
				return err
			}
		}
		stream.WriteObjectEnd()
	case yaml.SequenceNode:
		stream.WriteArrayStart()
		for i, child := range n.Content {
			if i > 0 {
				stream.WriteMore()
			}
			if err := writeYAMLNode(stream, child); err != nil {
				return err
			}
		}
		stream.WriteArrayEnd()
	case yaml.AliasNode:
		return writeYAMLNode(stream, n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("yaml line %d: %w", n.Line, err)
		}
		stream.WriteVal(v)
	default:
		return fmt.Errorf("yaml line %d: unsupported node kind %d", n.Line, n.Kind)
	}
	return nil
}

// tomlCatalog is the TOML layout:
//
//	[[tools]]
//	name = "set_alarm"
//	description = "Set an alarm for a specific time"
//	on_device = true
//
//	  [[tools.params]]
//	  name = "hour"
//	  type = "integer"
//	  required = true
type tomlCatalog struct {
	Tools []tomlTool `toml:"tools"`
}

type tomlTool struct {
	Name        string      `toml:"name"`
	Description string      `toml:"description"`
	OnDevice    bool        `toml:"on_device"`
	Params      []tomlParam `toml:"params"`
}

type tomlParam struct {
	Name        string `toml:"name"`
	Type        string `toml:"type"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
}

// ParseTOML decodes the [[tools]] / [[tools.params]] layout. The result is
// checked against the same schema as JSON documents.
func ParseTOML(data []byte) (*Catalog, error) {
	var doc tomlCatalog
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("decode toml catalog: %w", err)
	}

	specs := make([]ToolSpec, 0, len(doc.Tools))
	for _, t := range doc.Tools {
		spec := ToolSpec{Name: t.Name, Description: t.Description, OnDevice: t.OnDevice}
		for _, p := range t.Params {
			spec.Parameters.Params = append(spec.Parameters.Params, Param{
				Name:        p.Name,
				Type:        ParamType(strings.ToLower(p.Type)),
				Description: p.Description,
				Required:    p.Required,
			})
		}
		specs = append(specs, spec)
	}

	c, err := NewCatalog(specs...)
	if err != nil {
		return nil, err
	}
	wire, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(append(append([]byte(`{"tools":`), wire...), '}')); err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// SAVING
// =============================================================================

// WriteFile writes the catalog to path in the format implied by its extension.
// OnDevice flags are kept. The write is atomic.
func WriteFile(path string, c *Catalog) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		doc := tomlCatalog{}
		for _, s := range c.Specs() {
			t := tomlTool{Name: s.Name, Description: s.Description, OnDevice: s.OnDevice}
			for _, p := range s.Parameters.Params {
				t.Params = append(t.Params, tomlParam{
					Name: p.Name, Type: string(p.Type), Description: p.Description, Required: p.Required,
				})
			}
			doc.Tools = append(doc.Tools, t)
		}
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("encode toml catalog: %w", err)
		}
	case FormatJSON:
		stream := json.BorrowStream(&buf)
		stream.WriteObjectStart()
		stream.WriteObjectField("tools")
		stream.WriteArrayStart()
		for i, s := range c.Specs() {
			if i > 0 {
				stream.WriteMore()
			}
			writeDocumentTool(stream, s)
		}
		stream.WriteArrayEnd()
		stream.WriteObjectEnd()
		err := stream.Flush()
		json.ReturnStream(stream)
		if err != nil {
			return fmt.Errorf("encode json catalog: %w", err)
		}
		buf.WriteByte('\n')
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(yamlDocument(c)); err != nil {
			return fmt.Errorf("encode yaml catalog: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml catalog: %w", err)
		}
	default:
		return fmt.Errorf("writing %s catalogs is not supported", format)
	}

	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// writeDocumentTool writes the wire format plus the on_device flag.
func writeDocumentTool(stream *jsoniter.Stream, s ToolSpec) {
	stream.WriteObjectStart()
	stream.WriteObjectField("name")
	stream.WriteString(s.Name)
	stream.WriteMore()
	stream.WriteObjectField("description")
	stream.WriteString(s.Description)
	stream.WriteMore()
	stream.WriteObjectField("on_device")
	stream.WriteBool(s.OnDevice)
	stream.WriteMore()
	stream.WriteObjectField("parameters")
	writeParams(stream, s.Parameters)
	stream.WriteObjectEnd()
}

// yamlDocument builds the YAML node tree by hand; encoding a Go map would
// sort the parameter properties.
func yamlDocument(c *Catalog) *yaml.Node {
	tools := &yaml.Node{Kind: yaml.SequenceNode}
	for _, s := range c.Specs() {
		props := &yaml.Node{Kind: yaml.MappingNode}
		for _, p := range s.Parameters.Params {
			props.Content = append(props.Content, yamlString(p.Name), yamlMapping(
				"type", yamlString(string(p.Type)),
				"description", yamlString(p.Description),
			))
		}
		required := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, name := range s.Parameters.RequiredNames() {
			required.Content = append(required.Content, yamlString(name))
		}

		tools.Content = append(tools.Content, yamlMapping(
			"name", yamlString(s.Name),
			"description", yamlString(s.Description),
			"on_device", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(s.OnDevice)},
			"parameters", yamlMapping(
				"type", yamlString("object"),
				"properties", props,
				"required", required,
			),
		))
	}
	return yamlMapping("tools", tools)
}

// yamlMapping takes alternating keys and value nodes.
func yamlMapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, yamlString(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return n
}

func yamlString(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
