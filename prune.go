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
	"slices"

	"github.com/sirupsen/logrus"
)

// Prune returns a new schema that contains only the declarations selected by
// rules, and everything they transitively refer to.
//
// Reachability follows field types (including map values and oneof
// members), extension fields of kept messages, extensions referred to by
// options, and rpc request and response types. Excluded declarations are
// never kept, even if reachable. A type that is only kept because it
// encloses a kept nested type keeps no fields; see
// [MessageType.IsEnclosingOnly].
//
// schema is not modified.
func Prune(schema *Schema, rules *PruningRules, options ...PruneOption) (*Schema, error) {
	opts := pruneOptions{logger: discardLogger()}
	for _, o := range options {
		o.apply(&opts)
	}
	if rules == nil {
		rules = NewPruningRules()
	}

	mk := &marker{
		schema:   schema,
		rules:    rules,
		types:    make(map[ProtoType]keep),
		members:  make(map[string]bool),
		services: make(map[string]keep),
		exts:     make(map[*Field]bool),
	}
	mk.seed()
	mk.run()
	mk.markEnclosing()

	sw := &sweeper{
		marker: mk,
		log:    opts.logger,
		fields: make(map[*Field]*Field),
	}
	return sw.sweep()
}

// keep is how much of a type or service survives pruning.
type keep uint8

const (
	keepNone keep = iota
	keepShell
	keepPartial
	keepWhole
)

// marker computes the set of declarations to keep.
type marker struct {
	schema *Schema
	rules  *PruningRules

	types    map[ProtoType]keep
	members  map[string]bool
	services map[string]keep
	exts     map[*Field]bool

	queue []any
}

func (m *marker) seed() {
	for t := range m.schema.Types() {
		if m.rules.IsIncluded(t.ProtoType().String()) {
			m.markType(t.ProtoType())
		}
	}
	for _, f := range m.schema.files {
		for _, svc := range f.services {
			if m.rules.IsIncluded(svc.Name()) {
				m.markService(svc)
			}
		}
	}

	for _, p := range m.rules.Includes {
		owner, name, ok := cutMember(p)
		if !ok {
			continue
		}
		if t := m.schema.Type(owner); t != nil {
			m.markMember(t, name)
		} else if svc := m.schema.Service(owner); svc != nil {
			m.markRpc(svc, name)
		}
	}
}

func (m *marker) run() {
	for len(m.queue) > 0 {
		next := m.queue[len(m.queue)-1]
		m.queue = m.queue[:len(m.queue)-1]

		switch next := next.(type) {
		case *MessageType:
			m.markOptions(next.options)
			for _, f := range next.fields {
				if !m.rules.IsExcluded(f.Member()) {
					m.markField(f)
				}
			}
			for _, o := range next.oneofs {
				m.markOptions(o.options)
			}
			for _, ext := range m.schema.Extensions(next.typ) {
				m.markExtension(ext)
			}

		case *EnumType:
			m.markOptions(next.options)
			for _, c := range next.constants {
				if !m.rules.IsExcluded(c.Member()) {
					m.markOptions(c.options)
				}
			}

		case *Service:
			m.markOptions(next.options)
			for _, rpc := range next.rpcs {
				if !m.rules.IsExcluded(rpc.Member()) {
					m.markRpcTypes(rpc)
				}
			}
		}
	}
}

func (m *marker) markType(t ProtoType) {
	if !t.IsNamed() || m.types[t] == keepWhole || m.rules.IsExcluded(t.String()) {
		return
	}
	node := m.schema.TypeOf(t)
	if node == nil {
		return
	}
	m.types[t] = keepWhole
	m.queue = append(m.queue, node)
}

func (m *marker) markTypeRef(t ProtoType) {
	if t.IsMap() {
		t = t.ValueType()
	}
	m.markType(t)
}

func (m *marker) markField(f *Field) {
	m.markTypeRef(f.typ)
	m.markOptions(f.options)
}

// markMember keeps a single member of a type, without keeping the rest of
// it.
func (m *marker) markMember(t Type, name string) {
	id := t.ProtoType().Member(name)
	if m.rules.IsExcluded(id) || m.rules.IsExcluded(t.ProtoType().String()) {
		return
	}

	switch t := t.(type) {
	case *MessageType:
		f := t.Field(name)
		if f == nil {
			if ext := m.schema.Extension(name); ext != nil && ext.declarer == t.typ {
				m.markPartial(t)
				m.markExtension(ext)
			}
			return
		}
		m.members[id] = true
		m.markPartial(t)
		m.markField(f)
	case *EnumType:
		if t.Constant(name) == nil {
			return
		}
		m.members[id] = true
		m.markPartial(t)
	}
}

func (m *marker) markPartial(t Type) {
	if m.types[t.ProtoType()] < keepPartial {
		m.types[t.ProtoType()] = keepPartial
		m.markOptions(t.Options())
	}
}

func (m *marker) markService(svc *Service) {
	if m.services[svc.Name()] == keepWhole || m.rules.IsExcluded(svc.Name()) {
		return
	}
	m.services[svc.Name()] = keepWhole
	m.queue = append(m.queue, svc)
}

func (m *marker) markRpc(svc *Service, name string) {
	rpc := svc.Rpc(name)
	if rpc == nil || m.rules.IsExcluded(svc.Name()) || m.rules.IsExcluded(rpc.Member()) {
		return
	}
	m.members[rpc.Member()] = true
	if m.services[svc.Name()] < keepPartial {
		m.services[svc.Name()] = keepPartial
		m.markOptions(svc.options)
	}
	m.markRpcTypes(rpc)
}

func (m *marker) markRpcTypes(rpc *Rpc) {
	m.markType(rpc.request)
	m.markType(rpc.response)
	m.markOptions(rpc.options)
}

func (m *marker) extensionExcluded(f *Field) bool {
	return m.rules.IsExcluded(f.Member()) || m.rules.IsExcluded(f.QualifiedName())
}

func (m *marker) markExtension(f *Field) {
	if m.exts[f] || m.extensionExcluded(f) {
		return
	}
	m.exts[f] = true
	m.markField(f)
}

// markOptions keeps the extensions an option refers to, along with the
// options message they extend.
func (m *marker) markOptions(opts *Options) {
	opts.extensionFields(func(f *Field) {
		if m.exts[f] || m.extensionExcluded(f) {
			return
		}
		if d := m.schema.TypeOf(f.declarer); d != nil && m.types[f.declarer] < keepPartial {
			m.markPartial(d)
		}
		m.markExtension(f)
	})
}

// markEnclosing keeps the types that enclose kept nested types.
func (m *marker) markEnclosing() {
	for t := range m.schema.Types() {
		if m.types[t.ProtoType()] < keepPartial {
			continue
		}
		name := t.ProtoType().EnclosingTypeOrPackage()
		for name != "" {
			outer := m.schema.Type(name)
			if outer == nil {
				break
			}
			if m.types[outer.ProtoType()] == keepNone {
				m.types[outer.ProtoType()] = keepShell
			}
			name = outer.ProtoType().EnclosingTypeOrPackage()
		}
	}
}

// kept returns whether a reference to t survives pruning.
func (m *marker) kept(t ProtoType) bool {
	if t.IsMap() {
		t = t.ValueType()
	}
	return !t.IsNamed() || m.types[t] >= keepPartial
}

// sweeper builds the pruned schema from the marks.
type sweeper struct {
	*marker
	log logrus.FieldLogger

	// Old fields to their copies, for relinking options.
	fields map[*Field]*Field
	fixups []func()
}

func (s *sweeper) sweep() (*Schema, error) {
	var files []*ProtoFile
	for _, f := range s.schema.files {
		nf, err := s.sweepFile(f)
		if err != nil {
			return nil, err
		}
		if nf != nil {
			files = append(files, nf)
		}
	}

	keptPaths := make(map[string]bool, len(files))
	for _, f := range files {
		keptPaths[f.path] = true
	}
	for _, f := range files {
		pruned := func(path string) bool { return !keptPaths[path] }
		f.imports = slices.DeleteFunc(slices.Clone(f.imports), pruned)
		f.publicImports = slices.DeleteFunc(slices.Clone(f.publicImports), pruned)
	}

	out := newSchema(files)
	out.indexExtensions()
	for _, fix := range s.fixups {
		fix()
	}
	for old, nf := range s.fields {
		if old.elem != nil {
			nf.elem = out.TypeOf(old.elem.ProtoType())
		}
	}
	return out, nil
}

func (s *sweeper) sweepFile(f *ProtoFile) (*ProtoFile, error) {
	nf := &ProtoFile{
		loc:           f.loc,
		path:          f.path,
		pkg:           f.pkg,
		syntax:        f.syntax,
		imports:       f.imports,
		publicImports: f.publicImports,
	}
	nf.options = s.cloneOptions(f.options)

	for _, t := range f.types {
		nt, err := s.sweepType(nf, t)
		if err != nil {
			return nil, err
		}
		if nt != nil {
			nf.types = append(nf.types, nt)
		}
	}
	for _, e := range f.extends {
		ne, err := s.sweepExtend(nf, e)
		if err != nil {
			return nil, err
		}
		if ne != nil {
			nf.extends = append(nf.extends, ne)
		}
	}
	for _, svc := range f.services {
		ns, err := s.sweepService(nf, svc)
		if err != nil {
			return nil, err
		}
		if ns != nil {
			nf.services = append(nf.services, ns)
		}
	}

	if len(nf.types) == 0 && len(nf.extends) == 0 && len(nf.services) == 0 {
		s.log.WithField("file", f.path).Debug("pruned file")
		return nil, nil
	}
	return nf, nil
}

// keepMember returns whether a member of a kept type survives.
func (s *sweeper) keepMember(k keep, id string) bool {
	switch k {
	case keepWhole:
		return !s.rules.IsExcluded(id)
	case keepPartial:
		return s.members[id]
	default:
		return false
	}
}

// checkRef applies the inconsistency policy to a reference from member to
// t. It returns false if the member must be dropped.
func (s *sweeper) checkRef(member string, t ProtoType) (bool, error) {
	if s.kept(t) {
		return true, nil
	}
	if t.IsMap() {
		t = t.ValueType()
	}
	if s.rules.Policy == FailOnInconsistency {
		return false, &PruneInconsistencyError{Member: member, Type: t}
	}
	s.log.WithFields(logrus.Fields{"member": member, "type": t}).Debug("dropped member referring to pruned type")
	return false, nil
}

func (s *sweeper) sweepType(nf *ProtoFile, t Type) (Type, error) {
	k := s.types[t.ProtoType()]
	if k == keepNone {
		s.log.WithField("type", t.ProtoType()).Debug("pruned type")
		return nil, nil
	}

	switch t := t.(type) {
	case *MessageType:
		nm := &MessageType{
			typ:           t.typ,
			file:          nf,
			loc:           t.loc,
			doc:           t.doc,
			extRanges:     t.extRanges,
			reserved:      t.reserved,
			options:       s.cloneOptions(t.options),
			enclosingOnly: k == keepShell,
		}

		oneofs := make(map[*OneOf]*OneOf)
		for _, f := range t.fields {
			if !s.keepMember(k, f.Member()) {
				continue
			}
			ok, err := s.checkRef(f.Member(), f.typ)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			nfield := s.cloneField(f)
			nfield.parent = nm
			if f.oneof != nil {
				o := oneofs[f.oneof]
				if o == nil {
					o = &OneOf{
						parent:  nm,
						loc:     f.oneof.loc,
						name:    f.oneof.name,
						doc:     f.oneof.doc,
						options: s.cloneOptions(f.oneof.options),
					}
					oneofs[f.oneof] = o
					nm.oneofs = append(nm.oneofs, o)
				}
				nfield.oneof = o
				o.fields = append(o.fields, nfield)
			}
			nm.fields = append(nm.fields, nfield)
		}
		nm.index()

		for _, n := range t.nested {
			nn, err := s.sweepType(nf, n)
			if err != nil {
				return nil, err
			}
			if nn != nil {
				nm.nested = append(nm.nested, nn)
			}
		}
		for _, e := range t.extends {
			ne, err := s.sweepExtend(nf, e)
			if err != nil {
				return nil, err
			}
			if ne != nil {
				nm.extends = append(nm.extends, ne)
			}
		}
		return nm, nil

	case *EnumType:
		ne := &EnumType{
			typ:        t.typ,
			file:       nf,
			loc:        t.loc,
			doc:        t.doc,
			reserved:   t.reserved,
			options:    s.cloneOptions(t.options),
			allowAlias: t.allowAlias,
		}
		for _, c := range t.constants {
			if !s.keepMember(k, c.Member()) {
				continue
			}
			nc := *c
			nc.enum = ne
			nc.options = s.cloneOptions(c.options)
			ne.constants = append(ne.constants, &nc)
		}
		return ne, nil
	}
	return nil, nil
}

func (s *sweeper) sweepExtend(nf *ProtoFile, e *Extend) (*Extend, error) {
	if !s.kept(e.typ) {
		return nil, nil
	}
	ne := &Extend{
		file:     nf,
		loc:      e.loc,
		doc:      e.doc,
		declName: e.declName,
		scope:    e.scope,
		typ:      e.typ,
	}
	for _, f := range e.fields {
		if !s.exts[f] {
			continue
		}
		ok, err := s.checkRef(f.Member(), f.typ)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		nfield := s.cloneField(f)
		nfield.extend = ne
		ne.fields = append(ne.fields, nfield)
	}
	if len(ne.fields) == 0 {
		return nil, nil
	}
	return ne, nil
}

func (s *sweeper) sweepService(nf *ProtoFile, svc *Service) (*Service, error) {
	k := s.services[svc.Name()]
	if k == keepNone {
		s.log.WithField("service", svc.Name()).Debug("pruned service")
		return nil, nil
	}

	ns := &Service{
		typ:     svc.typ,
		file:    nf,
		loc:     svc.loc,
		doc:     svc.doc,
		options: s.cloneOptions(svc.options),
	}
	for _, rpc := range svc.rpcs {
		if !s.keepMember(k, rpc.Member()) {
			continue
		}
		keepReq, err := s.checkRef(rpc.Member(), rpc.request)
		if err != nil {
			return nil, err
		}
		keepResp, err := s.checkRef(rpc.Member(), rpc.response)
		if err != nil {
			return nil, err
		}
		if !keepReq || !keepResp {
			continue
		}

		nr := *rpc
		nr.service = ns
		nr.options = s.cloneOptions(rpc.options)
		ns.rpcs = append(ns.rpcs, &nr)
	}
	return ns, nil
}

func (s *sweeper) cloneField(f *Field) *Field {
	nf := *f
	nf.oneof = nil
	nf.elem = nil
	nf.options = s.cloneOptions(f.options)
	s.fields[f] = &nf
	return &nf
}

// cloneOptions copies options. Fields named by entries are relinked to the
// pruned schema's copies once every node exists.
func (s *sweeper) cloneOptions(o *Options) *Options {
	if o == nil {
		return nil
	}
	no := &Options{elements: o.elements}
	s.fixups = append(s.fixups, func() {
		no.entries = s.relinkEntries(o.entries)
	})
	return no
}

func (s *sweeper) relinkEntries(entries []OptionEntry) []OptionEntry {
	if entries == nil {
		return nil
	}
	out := make([]OptionEntry, len(entries))
	for i, e := range entries {
		path := make([]*Field, len(e.Path))
		for j, f := range e.Path {
			if nf := s.fields[f]; nf != nil {
				path[j] = nf
			} else {
				path[j] = f
			}
		}
		out[i] = OptionEntry{Path: path, Value: s.relinkValue(e.Value)}
	}
	return out
}

func (s *sweeper) relinkValue(v any) any {
	switch v := v.(type) {
	case []OptionEntry:
		return s.relinkEntries(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.relinkValue(item)
		}
		return out
	default:
		return v
	}
}
