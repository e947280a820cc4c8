// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec used for tool documents. The streaming reader keeps object
// keys in document order, which encoding/json maps cannot.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// ENCODING
// =============================================================================

// MarshalJSON encodes the tool in the wire format:
//
//	{"name": ..., "description": ..., "parameters": {"type": "object",
//	 "properties": {...}, "required": [...]}}
//
// Properties are written in declaration order. OnDevice is not encoded.
func (t ToolSpec) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	writeTool(stream, t)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeTool(stream *jsoniter.Stream, t ToolSpec) {
	stream.WriteObjectStart()
	stream.WriteObjectField("name")
	stream.WriteString(t.Name)
	stream.WriteMore()
	stream.WriteObjectField("description")
	stream.WriteString(t.Description)
	stream.WriteMore()
	stream.WriteObjectField("parameters")
	writeParams(stream, t.Parameters)
	stream.WriteObjectEnd()
}

func writeParams(stream *jsoniter.Stream, s ParamSchema) {
	stream.WriteObjectStart()
	stream.WriteObjectField("type")
	stream.WriteString("object")
	stream.WriteMore()

	stream.WriteObjectField("properties")
	stream.WriteObjectStart()
	for i, p := range s.Params {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(p.Name)
		stream.WriteObjectStart()
		stream.WriteObjectField("type")
		stream.WriteString(string(p.Type))
		stream.WriteMore()
		stream.WriteObjectField("description")
		stream.WriteString(p.Description)
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
	stream.WriteMore()

	stream.WriteObjectField("required")
	stream.WriteArrayStart()
	for i, name := range s.RequiredNames() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteString(name)
	}
	stream.WriteArrayEnd()
	stream.WriteObjectEnd()
}

// =============================================================================
// DECODING
// =============================================================================

// UnmarshalJSON decodes the wire format, keeping property order. An optional
// "on_device" boolean is accepted for catalog documents. Parameter types are
// matched case-insensitively.
func (t *ToolSpec) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ParseBytes(json, data)
	spec, err := readTool(iter)
	if err != nil {
		return err
	}
	*t = spec
	return nil
}

func readTool(iter *jsoniter.Iterator) (ToolSpec, error) {
	var spec ToolSpec
	var required []string

	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		switch field {
		case "name":
			spec.Name = iter.ReadString()
		case "description":
			spec.Description = iter.ReadString()
		case "on_device":
			spec.OnDevice = iter.ReadBool()
		case "parameters":
			spec.Parameters, required = readParams(iter)
		default:
			iter.Skip()
		}
		return iter.Error == nil
	})
	if iter.Error != nil && iter.Error != io.EOF {
		return ToolSpec{}, fmt.Errorf("decode tool: %w", iter.Error)
	}

	for _, name := range required {
		found := false
		for i := range spec.Parameters.Params {
			if spec.Parameters.Params[i].Name == name {
				spec.Parameters.Params[i].Required = true
				found = true
				break
			}
		}
		if !found {
			return ToolSpec{}, fmt.Errorf("tool %s: %w: %s", spec.Name, ErrUnknownRequired, name)
		}
	}
	return spec, nil
}

// readParams reads the parameters object and returns the declared params plus
// the raw required list, which the caller resolves once all properties are known.
func readParams(iter *jsoniter.Iterator) (ParamSchema, []string) {
	var schema ParamSchema
	var required []string

	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		switch field {
		case "properties":
			iter.ReadObjectCB(func(iter *jsoniter.Iterator, name string) bool {
				p := Param{Name: name}
				iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
					switch key {
					case "type":
						p.Type = ParamType(strings.ToLower(iter.ReadString()))
					case "description":
						p.Description = iter.ReadString()
					default:
						iter.Skip()
					}
					return iter.Error == nil
				})
				schema.Params = append(schema.Params, p)
				return iter.Error == nil
			})
		case "required":
			iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
				required = append(required, iter.ReadString())
				return iter.Error == nil
			})
		default:
			iter.Skip()
		}
		return iter.Error == nil
	})
	return schema, required
}

// decodeToolArray decodes a JSON array of tools in order.
func decodeToolArray(data []byte) ([]ToolSpec, error) {
	iter := jsoniter.ParseBytes(json, data)
	var specs []ToolSpec
	var firstErr error

	iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		spec, err := readTool(iter)
		if err != nil {
			firstErr = err
			return false
		}
		specs = append(specs, spec)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, fmt.Errorf("decode tools: %w", iter.Error)
	}
	return specs, nil
}
