// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protoschema

import (
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"buf.build/go/protoschema/decl"
)

var scalarKinds = map[ProtoType]descriptorpb.FieldDescriptorProto_Type{
	Bool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	Bytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	Double:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	Float:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	Fixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	Fixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	Int32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	Int64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	Sfixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	Sfixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	Sint32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	Sint64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	String:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	Uint32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	Uint64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
}

// FileDescriptorSet encodes this schema as descriptor protos, in the form
// protoc would produce, such that it can be loaded with
// [google.golang.org/protobuf/reflect/protodesc].
//
// Map fields gain synthesized entry messages, and proto3 optional fields
// gain synthetic oneofs. Options set through extensions are not encoded.
func (s *Schema) FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	fds := new(descriptorpb.FileDescriptorSet)
	for _, f := range s.files {
		fds.File = append(fds.File, f.descriptor())
	}
	return fds
}

func (f *ProtoFile) descriptor() *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(f.path),
		Syntax:  proto.String(string(f.syntax)),
		Options: exportOptions(f.options, new(descriptorpb.FileOptions)),
	}
	if f.pkg != "" {
		fdp.Package = proto.String(f.pkg)
	}
	fdp.Dependency = append(fdp.Dependency, f.imports...)
	for _, p := range f.publicImports {
		fdp.PublicDependency = append(fdp.PublicDependency, int32(len(fdp.Dependency)))
		fdp.Dependency = append(fdp.Dependency, p)
	}

	for _, t := range f.types {
		switch t := t.(type) {
		case *MessageType:
			fdp.MessageType = append(fdp.MessageType, t.descriptor())
		case *EnumType:
			fdp.EnumType = append(fdp.EnumType, t.descriptor())
		}
	}
	for _, e := range f.extends {
		for _, field := range e.fields {
			fdp.Extension = append(fdp.Extension, field.descriptor())
		}
	}
	for _, svc := range f.services {
		fdp.Service = append(fdp.Service, svc.descriptor())
	}
	return fdp
}

func (m *MessageType) descriptor() *descriptorpb.DescriptorProto {
	dp := &descriptorpb.DescriptorProto{
		Name:    proto.String(m.typ.SimpleName()),
		Options: exportOptions(m.options, new(descriptorpb.MessageOptions)),
	}

	oneofIndex := make(map[*OneOf]int32, len(m.oneofs))
	for i, o := range m.oneofs {
		oneofIndex[o] = int32(i)
		dp.OneofDecl = append(dp.OneofDecl, &descriptorpb.OneofDescriptorProto{
			Name:    proto.String(o.name),
			Options: exportOptions(o.options, new(descriptorpb.OneofOptions)),
		})
	}

	var synthetic []*descriptorpb.FieldDescriptorProto
	for _, f := range m.fields {
		fdp := f.descriptor()
		switch {
		case f.oneof != nil:
			fdp.OneofIndex = proto.Int32(oneofIndex[f.oneof])
		case f.syntax == decl.Proto3 && f.label == decl.LabelOptional:
			fdp.Proto3Optional = proto.Bool(true)
			synthetic = append(synthetic, fdp)
		}
		if f.IsMap() {
			entry := f.mapEntry()
			fdp.TypeName = proto.String("." + m.typ.String() + "." + entry.GetName())
			dp.NestedType = append(dp.NestedType, entry)
		}
		dp.Field = append(dp.Field, fdp)
	}
	// Synthetic oneofs come after every declared oneof.
	for _, fdp := range synthetic {
		fdp.OneofIndex = proto.Int32(int32(len(dp.OneofDecl)))
		dp.OneofDecl = append(dp.OneofDecl, &descriptorpb.OneofDescriptorProto{
			Name: proto.String("_" + fdp.GetName()),
		})
	}

	for _, n := range m.nested {
		switch n := n.(type) {
		case *MessageType:
			dp.NestedType = append(dp.NestedType, n.descriptor())
		case *EnumType:
			dp.EnumType = append(dp.EnumType, n.descriptor())
		}
	}
	for _, e := range m.extends {
		for _, field := range e.fields {
			dp.Extension = append(dp.Extension, field.descriptor())
		}
	}

	for _, r := range m.extRanges {
		dp.ExtensionRange = append(dp.ExtensionRange, &descriptorpb.DescriptorProto_ExtensionRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End + 1),
		})
	}
	for _, r := range m.reserved.Ranges {
		dp.ReservedRange = append(dp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End + 1),
		})
	}
	dp.ReservedName = m.reserved.Names
	return dp
}

func (f *Field) descriptor() *descriptorpb.FieldDescriptorProto {
	fdp := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(f.name),
		Number:   proto.Int32(f.tag),
		JsonName: proto.String(f.JSONName()),
		Options:  exportOptions(f.options, new(descriptorpb.FieldOptions)),
	}

	switch f.label {
	case decl.LabelRequired:
		fdp.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	case decl.LabelRepeated:
		fdp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	default:
		fdp.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	}
	if f.IsMap() {
		fdp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	}

	switch elem := f.elem.(type) {
	case *EnumType:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		fdp.TypeName = proto.String("." + elem.typ.String())
	case *MessageType:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		if f.group {
			fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_GROUP.Enum()
		}
		fdp.TypeName = proto.String("." + elem.typ.String())
	default:
		fdp.Type = scalarKinds[f.typ].Enum()
	}
	if f.IsMap() {
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	}

	if f.extend != nil {
		fdp.Extendee = proto.String("." + f.declarer.String())
	}
	if f.hasDef {
		fdp.DefaultValue = proto.String(f.def)
	}
	return fdp
}

// mapEntry synthesizes the entry message of a map field.
func (f *Field) mapEntry() *descriptorpb.DescriptorProto {
	key := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String("key"),
		Number:   proto.Int32(1),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     scalarKinds[f.typ.KeyType()].Enum(),
		JsonName: proto.String("key"),
	}
	value := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String("value"),
		Number:   proto.Int32(2),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		JsonName: proto.String("value"),
	}
	switch elem := f.elem.(type) {
	case *EnumType:
		value.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		value.TypeName = proto.String("." + elem.typ.String())
	case *MessageType:
		value.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		value.TypeName = proto.String("." + elem.typ.String())
	default:
		value.Type = scalarKinds[f.typ.ValueType()].Enum()
	}

	return &descriptorpb.DescriptorProto{
		Name:    proto.String(mapEntryName(f.name)),
		Field:   []*descriptorpb.FieldDescriptorProto{key, value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

// mapEntryName returns the name protoc gives the entry message of a map
// field: the field's name in CamelCase, followed by "Entry".
func mapEntryName(field string) string {
	var buf strings.Builder
	upper := true
	for i := range len(field) {
		c := field[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			buf.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			buf.WriteByte(c)
			upper = false
		}
	}
	return buf.String() + "Entry"
}

func (e *EnumType) descriptor() *descriptorpb.EnumDescriptorProto {
	edp := &descriptorpb.EnumDescriptorProto{
		Name:    proto.String(e.typ.SimpleName()),
		Options: exportOptions(e.options, new(descriptorpb.EnumOptions)),
	}
	for _, c := range e.constants {
		edp.Value = append(edp.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:    proto.String(c.name),
			Number:  proto.Int32(c.number),
			Options: exportOptions(c.options, new(descriptorpb.EnumValueOptions)),
		})
	}
	for _, r := range e.reserved.Ranges {
		edp.ReservedRange = append(edp.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End),
		})
	}
	edp.ReservedName = e.reserved.Names
	return edp
}

func (s *Service) descriptor() *descriptorpb.ServiceDescriptorProto {
	sdp := &descriptorpb.ServiceDescriptorProto{
		Name:    proto.String(s.typ.SimpleName()),
		Options: exportOptions(s.options, new(descriptorpb.ServiceOptions)),
	}
	for _, r := range s.rpcs {
		md := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(r.name),
			InputType:  proto.String("." + r.request.String()),
			OutputType: proto.String("." + r.response.String()),
			Options:    exportOptions(r.options, new(descriptorpb.MethodOptions)),
		}
		if r.requestStreaming {
			md.ClientStreaming = proto.Bool(true)
		}
		if r.responseStreaming {
			md.ServerStreaming = proto.Bool(true)
		}
		sdp.Method = append(sdp.Method, md)
	}
	return sdp
}

// exportOptions copies the options that are not set through extensions into
// msg. It returns nil if there are none.
func exportOptions[M proto.Message](o *Options, msg M) M {
	var zero M
	if !setOptions(msg.ProtoReflect(), o.Entries()) {
		return zero
	}
	return msg
}

func setOptions(m protoreflect.Message, entries []OptionEntry) bool {
	set := false
	for _, e := range entries {
		if setOption(m, e.Path, e.Value) {
			set = true
		}
	}
	return set
}

func setOption(m protoreflect.Message, path []*Field, v any) bool {
	f := path[0]
	if f.IsExtension() {
		return false
	}
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(f.name))
	if fd == nil {
		return false
	}
	if len(path) > 1 {
		if fd.Message() == nil || fd.IsList() {
			return false
		}
		return setOption(m.Mutable(fd).Message(), path[1:], v)
	}

	if items, ok := v.([]any); ok && fd.IsList() {
		set := false
		for _, item := range items {
			if appendOption(m, fd, item) {
				set = true
			}
		}
		return set
	}
	if fd.IsList() {
		return appendOption(m, fd, v)
	}

	if entries, ok := v.([]OptionEntry); ok {
		if fd.Message() == nil {
			return false
		}
		return setOptions(m.Mutable(fd).Message(), entries)
	}
	pv, ok := reflectValue(v)
	if !ok {
		return false
	}
	m.Set(fd, pv)
	return true
}

func appendOption(m protoreflect.Message, fd protoreflect.FieldDescriptor, v any) bool {
	list := m.Mutable(fd).List()
	if entries, ok := v.([]OptionEntry); ok {
		if fd.Message() == nil {
			return false
		}
		elem := list.NewElement()
		setOptions(elem.Message(), entries)
		list.Append(elem)
		return true
	}
	pv, ok := reflectValue(v)
	if !ok {
		return false
	}
	list.Append(pv)
	return true
}

func reflectValue(v any) (protoreflect.Value, bool) {
	switch v := v.(type) {
	case *EnumConstant:
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(v.number)), true
	case bool, int32, int64, uint32, uint64, float32, float64, string, []byte:
		return protoreflect.ValueOf(v), true
	default:
		return protoreflect.Value{}, false
	}
}
