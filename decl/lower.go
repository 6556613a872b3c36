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

package decl

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Source-code-info path components, from descriptor.proto.
const (
	fileMessages   = 4
	fileEnums      = 5
	fileServices   = 6
	fileExtensions = 7

	messageFields     = 2
	messageNested     = 3
	messageEnums      = 4
	messageExtensions = 6
	messageOneOfs     = 8

	enumValues     = 2
	serviceMethods = 2
)

// scalarNames maps descriptor field types to their names in source.
var scalarNames = map[descriptorpb.FieldDescriptorProto_Type]string{
	descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:   "double",
	descriptorpb.FieldDescriptorProto_TYPE_FLOAT:    "float",
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    "int64",
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   "uint64",
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    "int32",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  "fixed64",
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  "fixed32",
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     "bool",
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   "string",
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    "bytes",
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   "uint32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: "sfixed32",
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: "sfixed64",
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   "sint32",
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   "sint64",
}

// FromDescriptor lowers a file descriptor proto into a [File].
//
// Both unlinked descriptors, as produced by a parser, and linked descriptors,
// as found in a registry, are accepted. Options may be either uninterpreted
// or already populated.
func FromDescriptor(fdp *descriptorpb.FileDescriptorProto) (*File, error) {
	l := &lowerer{
		fdp:  fdp,
		locs: make(map[string]*descriptorpb.SourceCodeInfo_Location),
	}
	for _, loc := range fdp.GetSourceCodeInfo().GetLocation() {
		key := pathKey(loc.GetPath())
		if _, ok := l.locs[key]; !ok {
			l.locs[key] = loc
		}
	}
	return l.file()
}

type lowerer struct {
	fdp    *descriptorpb.FileDescriptorProto
	syntax Syntax
	locs   map[string]*descriptorpb.SourceCodeInfo_Location
}

type path []int32

func (p path) with(elems ...int32) path {
	return append(append(path(nil), p...), elems...)
}

func pathKey(p []int32) string {
	var buf strings.Builder
	for i, n := range p {
		if i > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(strconv.Itoa(int(n)))
	}
	return buf.String()
}

func (l *lowerer) location(p path) Location {
	loc := Location{Path: l.fdp.GetName()}
	if sl := l.locs[pathKey(p)]; sl != nil && len(sl.GetSpan()) >= 3 {
		loc.Line = int(sl.GetSpan()[0]) + 1
		loc.Column = int(sl.GetSpan()[1]) + 1
	}
	return loc
}

func (l *lowerer) doc(p path) string {
	sl := l.locs[pathKey(p)]
	if sl == nil || sl.LeadingComments == nil {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(sl.GetLeadingComments(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (l *lowerer) file() (*File, error) {
	fdp := l.fdp
	switch fdp.GetSyntax() {
	case "", "proto2":
		l.syntax = Proto2
	case "proto3":
		l.syntax = Proto3
	default:
		return nil, fmt.Errorf("%s: unsupported syntax %q", fdp.GetName(), fdp.GetSyntax())
	}

	f := &File{
		Location: Location{Path: fdp.GetName()},
		Path:     fdp.GetName(),
		Package:  fdp.GetPackage(),
		Syntax:   l.syntax,
	}

	public := make(map[int32]bool)
	for _, i := range fdp.GetPublicDependency() {
		public[i] = true
	}
	for i, dep := range fdp.GetDependency() {
		if public[int32(i)] {
			f.PublicImports = append(f.PublicImports, dep)
		} else {
			f.Imports = append(f.Imports, dep)
		}
	}

	var err error
	for i, m := range fdp.GetMessageType() {
		msg, err := l.message(m, path{fileMessages, int32(i)})
		if err != nil {
			return nil, err
		}
		f.Types = append(f.Types, msg)
	}
	for i, e := range fdp.GetEnumType() {
		enum, err := l.enum(e, path{fileEnums, int32(i)})
		if err != nil {
			return nil, err
		}
		f.Types = append(f.Types, enum)
	}
	for i, s := range fdp.GetService() {
		svc, err := l.service(s, path{fileServices, int32(i)})
		if err != nil {
			return nil, err
		}
		f.Services = append(f.Services, svc)
	}
	if f.Extends, err = l.extends(fdp.GetExtension(), path{fileExtensions}); err != nil {
		return nil, err
	}
	if f.Options, err = lowerOptions(fdp.GetOptions()); err != nil {
		return nil, err
	}
	return f, nil
}

func (l *lowerer) message(m *descriptorpb.DescriptorProto, p path) (*Message, error) {
	msg := &Message{
		Location: l.location(p),
		Name:     m.GetName(),
		Doc:      l.doc(p),
	}

	// Map entries are folded into the field that uses them.
	entries := make(map[string]*descriptorpb.DescriptorProto)
	for _, nested := range m.GetNestedType() {
		if isMapEntry(nested) {
			entries[nested.GetName()] = nested
		}
	}

	// Oneofs synthesized for proto3 optional fields do not appear in source.
	synthetic := make(map[int32]bool)
	for _, fd := range m.GetField() {
		if fd.GetProto3Optional() && fd.OneofIndex != nil {
			synthetic[fd.GetOneofIndex()] = true
		}
	}

	oneofs := make(map[int32]*OneOf)
	for i, od := range m.GetOneofDecl() {
		if synthetic[int32(i)] {
			continue
		}
		op := p.with(messageOneOfs, int32(i))
		options, err := lowerOptions(od.GetOptions())
		if err != nil {
			return nil, err
		}
		oneof := &OneOf{
			Location: l.location(op),
			Name:     od.GetName(),
			Doc:      l.doc(op),
			Options:  options,
		}
		oneofs[int32(i)] = oneof
		msg.OneOfs = append(msg.OneOfs, oneof)
	}

	for i, fd := range m.GetField() {
		field, err := l.field(fd, p.with(messageFields, int32(i)), entries)
		if err != nil {
			return nil, err
		}

		if fd.OneofIndex != nil && !synthetic[fd.GetOneofIndex()] {
			oneof := oneofs[fd.GetOneofIndex()]
			if oneof == nil {
				return nil, fmt.Errorf("%v: field %q has invalid oneof index", field.Location, field.Name)
			}
			field.Label = LabelOptional
			oneof.Fields = append(oneof.Fields, field)
			continue
		}
		msg.Fields = append(msg.Fields, field)
	}

	for i, nested := range m.GetNestedType() {
		if isMapEntry(nested) {
			continue
		}
		n, err := l.message(nested, p.with(messageNested, int32(i)))
		if err != nil {
			return nil, err
		}
		msg.Nested = append(msg.Nested, n)
	}
	for i, e := range m.GetEnumType() {
		enum, err := l.enum(e, p.with(messageEnums, int32(i)))
		if err != nil {
			return nil, err
		}
		msg.Nested = append(msg.Nested, enum)
	}

	var err error
	if msg.Extends, err = l.extends(m.GetExtension(), p.with(messageExtensions)); err != nil {
		return nil, err
	}

	for _, r := range m.GetExtensionRange() {
		msg.ExtensionRanges = append(msg.ExtensionRanges, Range{r.GetStart(), r.GetEnd() - 1})
	}
	for _, r := range m.GetReservedRange() {
		msg.Reserved.Ranges = append(msg.Reserved.Ranges, Range{r.GetStart(), r.GetEnd() - 1})
	}
	msg.Reserved.Names = append(msg.Reserved.Names, m.GetReservedName()...)

	options, err := lowerOptions(m.GetOptions())
	if err != nil {
		return nil, err
	}
	msg.Options = options
	return msg, nil
}

func isMapEntry(m *descriptorpb.DescriptorProto) bool {
	if m.GetOptions().GetMapEntry() {
		return true
	}
	for _, u := range m.GetOptions().GetUninterpretedOption() {
		if len(u.GetName()) == 1 && u.GetName()[0].GetNamePart() == "map_entry" {
			return u.GetIdentifierValue() == "true"
		}
	}
	return false
}

func (l *lowerer) field(
	fd *descriptorpb.FieldDescriptorProto,
	p path,
	entries map[string]*descriptorpb.DescriptorProto,
) (*Field, error) {
	field := &Field{
		Location: l.location(p),
		Name:     fd.GetName(),
		Tag:      fd.GetNumber(),
		Doc:      l.doc(p),
	}
	// Linked descriptors always carry a JSON name; only keep it if it was
	// customized.
	if name := fd.GetJsonName(); fd.JsonName != nil && name != DefaultJSONName(field.Name) {
		field.JSONName = name
	}
	if fd.DefaultValue != nil {
		field.Default, field.HasDefault = fd.GetDefaultValue(), true
	}

	switch fd.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		field.Label = LabelRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		field.Label = LabelRepeated
	default:
		field.Label = LabelOptional
		if l.syntax == Proto3 && !fd.GetProto3Optional() {
			field.Label = LabelImplicit
		}
	}

	switch {
	case fd.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		field.Type = fd.GetTypeName()
		field.Group = true
	case fd.TypeName != nil:
		field.Type = fd.GetTypeName()
		if entry := mapEntryFor(field, entries); entry != nil {
			k, v := entry.GetField()[0], entry.GetField()[1]
			if k.GetNumber() != 1 {
				k, v = v, k
			}
			field.Type = fmt.Sprintf("map<%s, %s>", scalarOrName(k), scalarOrName(v))
		}
	default:
		name, ok := scalarNames[fd.GetType()]
		if !ok {
			return nil, fmt.Errorf("%v: field %q has no type", field.Location, field.Name)
		}
		field.Type = name
	}

	options, err := lowerOptions(fd.GetOptions())
	if err != nil {
		return nil, err
	}

	// default and json_name are pseudo-options, which are stored directly
	// on the field rather than in its options.
	for _, o := range options {
		switch o.Name {
		case "default":
			field.Default, field.HasDefault = fmt.Sprint(o.Value), true
		case "json_name":
			field.JSONName = fmt.Sprint(o.Value)
		default:
			field.Options = append(field.Options, o)
		}
	}
	return field, nil
}

// mapEntryFor returns the synthesized entry message for a map field.
func mapEntryFor(f *Field, entries map[string]*descriptorpb.DescriptorProto) *descriptorpb.DescriptorProto {
	if f.Label != LabelRepeated {
		return nil
	}
	name := f.Type
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	entry := entries[name]
	if entry == nil || len(entry.GetField()) != 2 {
		return nil
	}
	return entry
}

func scalarOrName(fd *descriptorpb.FieldDescriptorProto) string {
	if name, ok := scalarNames[fd.GetType()]; ok && fd.TypeName == nil {
		return name
	}
	return fd.GetTypeName()
}

func (l *lowerer) enum(e *descriptorpb.EnumDescriptorProto, p path) (*Enum, error) {
	enum := &Enum{
		Location: l.location(p),
		Name:     e.GetName(),
		Doc:      l.doc(p),
	}
	for i, v := range e.GetValue() {
		vp := p.with(enumValues, int32(i))
		options, err := lowerOptions(v.GetOptions())
		if err != nil {
			return nil, err
		}
		enum.Values = append(enum.Values, &EnumValue{
			Location: l.location(vp),
			Name:     v.GetName(),
			Number:   v.GetNumber(),
			Doc:      l.doc(vp),
			Options:  options,
		})
	}

	// Enum reserved ranges are inclusive, unlike message reserved ranges.
	for _, r := range e.GetReservedRange() {
		enum.Reserved.Ranges = append(enum.Reserved.Ranges, Range{r.GetStart(), r.GetEnd()})
	}
	enum.Reserved.Names = append(enum.Reserved.Names, e.GetReservedName()...)

	var err error
	enum.Options, err = lowerOptions(e.GetOptions())
	return enum, err
}

func (l *lowerer) service(s *descriptorpb.ServiceDescriptorProto, p path) (*Service, error) {
	svc := &Service{
		Location: l.location(p),
		Name:     s.GetName(),
		Doc:      l.doc(p),
	}
	for i, m := range s.GetMethod() {
		mp := p.with(serviceMethods, int32(i))
		options, err := lowerOptions(m.GetOptions())
		if err != nil {
			return nil, err
		}
		svc.Rpcs = append(svc.Rpcs, &Rpc{
			Location:          l.location(mp),
			Name:              m.GetName(),
			Doc:               l.doc(mp),
			RequestType:       m.GetInputType(),
			ResponseType:      m.GetOutputType(),
			RequestStreaming:  m.GetClientStreaming(),
			ResponseStreaming: m.GetServerStreaming(),
			Options:           options,
		})
	}

	var err error
	svc.Options, err = lowerOptions(s.GetOptions())
	return svc, err
}

// extends groups consecutive extension fields that share an extendee into
// extend blocks.
func (l *lowerer) extends(fields []*descriptorpb.FieldDescriptorProto, p path) ([]*Extend, error) {
	var out []*Extend
	for i, fd := range fields {
		fp := p.with(int32(i))
		field, err := l.field(fd, fp, nil)
		if err != nil {
			return nil, err
		}

		if len(out) == 0 || out[len(out)-1].Name != fd.GetExtendee() {
			out = append(out, &Extend{
				Location: field.Location,
				Name:     fd.GetExtendee(),
			})
		}
		ext := out[len(out)-1]
		ext.Fields = append(ext.Fields, field)
	}
	return out, nil
}

// optionsMessage is implemented by all of the *Options messages in
// descriptor.proto.
type optionsMessage interface {
	proto.Message
	GetUninterpretedOption() []*descriptorpb.UninterpretedOption
}

// lowerOptions converts both the populated fields and the uninterpreted
// options of an options message into [Option] values.
func lowerOptions(opts optionsMessage) ([]*Option, error) {
	if opts == nil || !opts.ProtoReflect().IsValid() {
		return nil, nil
	}

	var out []*Option
	var err error
	opts.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Name() == "uninterpreted_option" && !fd.IsExtension() {
			return true
		}
		if fd.Name() == "map_entry" && !fd.IsExtension() {
			return true
		}

		name := string(fd.Name())
		if fd.IsExtension() {
			name = "(" + string(fd.FullName()) + ")"
		}
		if fd.IsList() {
			// Repeated options are written as one assignment per element.
			list := v.List()
			for i := range list.Len() {
				out = append(out, reflectOption(name, fd, list.Get(i)))
			}
			return true
		}
		out = append(out, reflectOption(name, fd, v))
		return true
	})

	for _, u := range opts.GetUninterpretedOption() {
		var o *Option
		o, err = uninterpreted(u)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func reflectOption(name string, fd protoreflect.FieldDescriptor, v protoreflect.Value) *Option {
	o := &Option{Name: name}
	switch fd.Kind() {
	case protoreflect.BoolKind:
		o.Kind, o.Value = OptionBool, v.Bool()
	case protoreflect.StringKind:
		o.Kind, o.Value = OptionString, v.String()
	case protoreflect.BytesKind:
		o.Kind, o.Value = OptionString, string(v.Bytes())
	case protoreflect.EnumKind:
		o.Kind, o.Value = OptionIdentifier, strconv.Itoa(int(v.Enum()))
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			o.Value = string(ev.Name())
		}
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		o.Kind, o.Value = OptionNumber, formatFloat(v.Float())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		entries, _ := lowerOptions(messageOptions{v.Message().Interface()})
		o.Kind, o.Value = OptionMap, entries
	default:
		o.Kind, o.Value = OptionNumber, v.String()
	}
	return o
}

// messageOptions adapts an arbitrary message for use with lowerOptions.
type messageOptions struct{ proto.Message }

func (messageOptions) GetUninterpretedOption() []*descriptorpb.UninterpretedOption { return nil }

func uninterpreted(u *descriptorpb.UninterpretedOption) (*Option, error) {
	parts := make([]string, len(u.GetName()))
	for i, part := range u.GetName() {
		parts[i] = NamePart{Name: part.GetNamePart(), Extension: part.GetIsExtension()}.String()
	}
	o := &Option{Name: strings.Join(parts, ".")}

	switch {
	case u.IdentifierValue != nil:
		switch id := u.GetIdentifierValue(); id {
		case "true", "false":
			o.Kind, o.Value = OptionBool, id == "true"
		case "inf", "nan":
			o.Kind, o.Value = OptionNumber, id
		default:
			o.Kind, o.Value = OptionIdentifier, id
		}
	case u.PositiveIntValue != nil:
		o.Kind, o.Value = OptionNumber, strconv.FormatUint(u.GetPositiveIntValue(), 10)
	case u.NegativeIntValue != nil:
		o.Kind, o.Value = OptionNumber, strconv.FormatInt(u.GetNegativeIntValue(), 10)
	case u.DoubleValue != nil:
		o.Kind, o.Value = OptionNumber, formatFloat(u.GetDoubleValue())
	case u.StringValue != nil:
		o.Kind, o.Value = OptionString, string(u.GetStringValue())
	case u.AggregateValue != nil:
		entries, err := ParseAggregate(u.GetAggregateValue())
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", o.Name, err)
		}
		o.Kind, o.Value = OptionMap, entries
	default:
		return nil, fmt.Errorf("option %s has no value", o.Name)
	}
	return o, nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// DefaultJSONName returns the JSON name a field gets when none is declared:
// underscores are removed and the letter after each is capitalized.
func DefaultJSONName(name string) string {
	var buf strings.Builder
	upper := false
	for i := range len(name) {
		c := name[i]
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
	return buf.String()
}
