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
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"buf.build/go/protoschema/decl"
	"buf.build/go/protoschema/internal/debug"
)

// Link links a set of files into a [Schema].
//
// Files imported by files but not present in files are fetched from the
// [Loader] set with [WithLoader], then from the well-known types compiled
// into this binary. Every type reference is resolved, tags and names are
// validated, and options are resolved against descriptor.proto.
//
// Linking fails with the first error encountered, which is a [*LinkError]
// naming the location of the problem. No partially-linked schema is ever
// returned.
func Link(files []*decl.File, options ...LinkOption) (*Schema, error) {
	l := &linker{
		opts:    newLinkOptions(options),
		files:   make(map[string]*decl.File),
		names:   make(map[string]decl.Location),
		types:   make(map[ProtoType]Type),
		visible: make(map[string]map[string]bool),
	}
	l.log = l.opts.logger

	for _, f := range files {
		if err := l.add(f); err != nil {
			return nil, err
		}
	}
	if err := l.loadImports(); err != nil {
		return nil, err
	}
	return l.link()
}

// Load loads the given paths with the [Loader] set with [WithLoader], and
// then links them as if by [Link].
func Load(paths []string, options ...LinkOption) (*Schema, error) {
	opts := newLinkOptions(options)
	if opts.loader == nil {
		return nil, errors.New("protoschema: Load requires WithLoader")
	}

	files := make([]*decl.File, 0, len(paths))
	for _, path := range paths {
		f, err := opts.loader.Load(path)
		if err != nil {
			return nil, err
		}
		if f.Path == "" {
			cp := *f
			cp.Path = path
			f = &cp
		}
		files = append(files, f)
	}
	return Link(files, options...)
}

// linker is the state for a single call to [Link].
type linker struct {
	opts linkOptions
	log  logrus.FieldLogger

	files map[string]*decl.File
	order []string

	schema *Schema
	pfiles map[string]*ProtoFile
	// Every fully-qualified name declared so far, and where.
	names map[string]decl.Location
	types map[ProtoType]Type

	// Per-file set of paths whose declarations are visible to it.
	visible map[string]map[string]bool
}

func (l *linker) add(f *decl.File) error {
	if prev, ok := l.files[f.Path]; ok {
		return linkErrorf(f.Location, "file %q is already defined at %v", f.Path, prev.Location)
	}
	switch f.Syntax {
	case decl.Proto2, decl.Proto3:
	case "":
		cp := *f
		cp.Syntax = decl.Proto2
		f = &cp
	default:
		return linkErrorf(f.Location, "unsupported syntax %q", f.Syntax)
	}

	l.files[f.Path] = f
	l.order = append(l.order, f.Path)
	return nil
}

// loadImports loads the transitive closure of imports, in breadth-first
// order.
func (l *linker) loadImports() error {
	for i := 0; i < len(l.order); i++ {
		f := l.files[l.order[i]]
		for _, imp := range slices.Concat(f.Imports, f.PublicImports) {
			if _, ok := l.files[imp]; ok {
				continue
			}

			l.log.WithFields(logrus.Fields{"file": f.Path, "import": imp}).Debug("loading import")
			loaded, err := l.load(imp)
			if err != nil {
				return &LinkError{Location: f.Location, Err: err}
			}
			if err := l.add(loaded); err != nil {
				return err
			}
		}
	}

	if _, ok := l.files[descriptorProto]; !ok {
		loaded, err := l.load(descriptorProto)
		if err != nil {
			return &LinkError{Location: decl.Location{Path: descriptorProto}, Err: err}
		}
		return l.add(loaded)
	}
	return nil
}

func (l *linker) load(path string) (*decl.File, error) {
	var err error
	if l.opts.loader != nil {
		var f *decl.File
		f, err = l.opts.loader.Load(path)
		switch {
		case err == nil && f.Path != path:
			cp := *f
			cp.Path = path
			return &cp, nil
		case err == nil:
			return f, nil
		case !errors.Is(err, ErrFileNotFound):
			return nil, err
		}
	}

	if l.opts.wellKnown || path == descriptorProto {
		if f, wkErr := WellKnownLoader().Load(path); wkErr == nil {
			return f, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, &FileNotFoundError{Path: path}
}

func (l *linker) link() (*Schema, error) {
	l.pfiles = make(map[string]*ProtoFile, len(l.order))
	files := make([]*ProtoFile, 0, len(l.order))
	for _, path := range l.order {
		pf, err := l.buildFile(l.files[path])
		if err != nil {
			return nil, err
		}
		l.pfiles[path] = pf
		files = append(files, pf)
	}
	l.schema = newSchema(files)

	steps := []struct {
		name string
		run  func() error
	}{
		{"validate", l.validateDeclarations},
		{"resolve", l.resolve},
		{"extensions", l.validateExtensions},
		{"options", l.resolveAllOptions},
	}
	for _, step := range steps {
		debug.Log("link", "%s", step.name)
		if err := step.run(); err != nil {
			return nil, err
		}
	}

	l.log.WithField("files", len(files)).Debug("linked schema")
	return l.schema, nil
}

// declare records a fully-qualified name, failing if it is taken.
func (l *linker) declare(name string, loc decl.Location) error {
	if prev, ok := l.names[name]; ok {
		return linkErrorf(loc, "%s is already defined at %v", name, prev)
	}
	l.names[name] = loc
	return nil
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (l *linker) buildFile(df *decl.File) (*ProtoFile, error) {
	l.log.WithField("file", df.Path).Debug("building file")
	loc := df.Location
	if loc.Path == "" {
		loc.Path = df.Path
	}
	pf := &ProtoFile{
		loc:           loc,
		path:          df.Path,
		pkg:           df.Package,
		syntax:        df.Syntax,
		imports:       df.Imports,
		publicImports: df.PublicImports,
		options:       &Options{elements: df.Options},
	}

	for _, dt := range df.Types {
		t, err := l.buildType(pf, dt, df.Package)
		if err != nil {
			return nil, err
		}
		pf.types = append(pf.types, t)
	}
	for _, de := range df.Extends {
		ext, err := l.buildExtend(pf, de, df.Package)
		if err != nil {
			return nil, err
		}
		pf.extends = append(pf.extends, ext)
	}
	for _, ds := range df.Services {
		svc, err := l.buildService(pf, ds)
		if err != nil {
			return nil, err
		}
		pf.services = append(pf.services, svc)
	}
	return pf, nil
}

func (l *linker) buildType(pf *ProtoFile, dt decl.Type, scope string) (Type, error) {
	full := qualify(scope, dt.TypeName())
	if err := l.declare(full, dt.TypeLocation()); err != nil {
		return nil, err
	}

	switch dt := dt.(type) {
	case *decl.Message:
		m := &MessageType{
			typ:       NamedType(full),
			file:      pf,
			loc:       dt.Location,
			doc:       dt.Doc,
			extRanges: dt.ExtensionRanges,
			reserved:  dt.Reserved,
			options:   &Options{elements: dt.Options},
		}
		l.types[m.typ] = m

		for _, df := range dt.Fields {
			m.fields = append(m.fields, l.newField(pf, df, m, nil, full))
		}
		for _, do := range dt.OneOfs {
			o := &OneOf{
				parent:  m,
				loc:     do.Location,
				name:    do.Name,
				doc:     do.Doc,
				options: &Options{elements: do.Options},
			}
			for _, df := range do.Fields {
				f := l.newField(pf, df, m, nil, full)
				f.oneof = o
				o.fields = append(o.fields, f)
				m.fields = append(m.fields, f)
			}
			m.oneofs = append(m.oneofs, o)
		}
		m.index()

		for _, dn := range dt.Nested {
			n, err := l.buildType(pf, dn, full)
			if err != nil {
				return nil, err
			}
			m.nested = append(m.nested, n)
		}
		for _, de := range dt.Extends {
			ext, err := l.buildExtend(pf, de, full)
			if err != nil {
				return nil, err
			}
			m.extends = append(m.extends, ext)
		}
		return m, nil

	case *decl.Enum:
		e := &EnumType{
			typ:      NamedType(full),
			file:     pf,
			loc:      dt.Location,
			doc:      dt.Doc,
			reserved: dt.Reserved,
			options:  &Options{elements: dt.Options},
		}
		if o := decl.FindOption(dt.Options, "allow_alias"); o != nil {
			e.allowAlias = o.Value == true
		}
		for _, dv := range dt.Values {
			e.constants = append(e.constants, &EnumConstant{
				enum:    e,
				loc:     dv.Location,
				name:    dv.Name,
				number:  dv.Number,
				doc:     dv.Doc,
				options: &Options{elements: dv.Options},
			})
		}
		l.types[e.typ] = e
		return e, nil

	default:
		return nil, fmt.Errorf("protoschema: unknown declaration type %T", dt)
	}
}

func (l *linker) newField(pf *ProtoFile, df *decl.Field, parent *MessageType, ext *Extend, scope string) *Field {
	f := &Field{
		parent:   parent,
		extend:   ext,
		scope:    scope,
		syntax:   pf.syntax,
		loc:      df.Location,
		doc:      df.Doc,
		name:     df.Name,
		tag:      df.Tag,
		label:    df.Label,
		declType: df.Type,
		group:    df.Group,
		def:      df.Default,
		hasDef:   df.HasDefault,
		jsonName: df.JSONName,
		options:  &Options{elements: df.Options},
	}
	if f.loc.Path == "" {
		f.loc.Path = pf.path
	}
	if parent != nil {
		f.declarer = parent.typ
	}
	return f
}

func (l *linker) buildExtend(pf *ProtoFile, de *decl.Extend, scope string) (*Extend, error) {
	ext := &Extend{
		file:     pf,
		loc:      de.Location,
		doc:      de.Doc,
		declName: de.Name,
		scope:    scope,
	}
	for _, df := range de.Fields {
		f := l.newField(pf, df, nil, ext, scope)
		if err := l.declare(f.QualifiedName(), f.loc); err != nil {
			return nil, err
		}
		ext.fields = append(ext.fields, f)
	}
	return ext, nil
}

func (l *linker) buildService(pf *ProtoFile, ds *decl.Service) (*Service, error) {
	full := qualify(pf.pkg, ds.Name)
	if err := l.declare(full, ds.Location); err != nil {
		return nil, err
	}

	svc := &Service{
		typ:     NamedType(full),
		file:    pf,
		loc:     ds.Location,
		doc:     ds.Doc,
		options: &Options{elements: ds.Options},
	}
	for _, dr := range ds.Rpcs {
		svc.rpcs = append(svc.rpcs, &Rpc{
			service:           svc,
			loc:               dr.Location,
			doc:               dr.Doc,
			name:              dr.Name,
			declRequest:       dr.RequestType,
			declResponse:      dr.ResponseType,
			requestStreaming:  dr.RequestStreaming,
			responseStreaming: dr.ResponseStreaming,
			options:           &Options{elements: dr.Options},
		})
	}
	return svc, nil
}

// file returns the file a field is declared in.
func (f *Field) file() *ProtoFile {
	if f.extend != nil {
		return f.extend.file
	}
	return f.parent.file
}
