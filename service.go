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
	"buf.build/go/protoschema/decl"
)

// Extend is a linked extend block.
type Extend struct {
	file     *ProtoFile
	loc      decl.Location
	doc      string
	declName string
	scope    string
	typ      ProtoType
	fields   []*Field
}

// Type returns the extended type.
func (e *Extend) Type() ProtoType { return e.typ }

// DeclaredType returns the extended type's name, as written.
func (e *Extend) DeclaredType() string { return e.declName }

// Fields returns the extension fields declared in this block.
func (e *Extend) Fields() []*Field { return e.fields }

func (e *Extend) Doc() string             { return e.doc }
func (e *Extend) Location() decl.Location { return e.loc }
func (e *Extend) File() *ProtoFile        { return e.file }

// Service is a linked service declaration. Services are purely descriptive.
type Service struct {
	typ     ProtoType
	file    *ProtoFile
	loc     decl.Location
	doc     string
	rpcs    []*Rpc
	options *Options
}

// Name returns this service's fully-qualified name.
func (s *Service) Name() string { return s.typ.String() }

// ProtoType returns this service's name as a type identity.
func (s *Service) ProtoType() ProtoType { return s.typ }

// Rpcs returns this service's methods in declaration order.
func (s *Service) Rpcs() []*Rpc { return s.rpcs }

// Rpc returns the method with the given name, or nil.
func (s *Service) Rpc(name string) *Rpc {
	for _, r := range s.rpcs {
		if r.name == name {
			return r
		}
	}
	return nil
}

func (s *Service) Doc() string             { return s.doc }
func (s *Service) Location() decl.Location { return s.loc }
func (s *Service) Options() *Options       { return s.options }
func (s *Service) File() *ProtoFile        { return s.file }
func (s *Service) String() string          { return s.typ.String() }

// Rpc is a single method of a [Service].
type Rpc struct {
	service *Service
	loc     decl.Location
	doc     string
	name    string

	declRequest, declResponse string
	request, response         ProtoType

	requestStreaming, responseStreaming bool

	options *Options
}

func (r *Rpc) Name() string            { return r.name }
func (r *Rpc) Doc() string             { return r.doc }
func (r *Rpc) Location() decl.Location { return r.loc }
func (r *Rpc) Options() *Options       { return r.options }
func (r *Rpc) Service() *Service       { return r.service }

// RequestType returns the resolved request message type.
func (r *Rpc) RequestType() ProtoType { return r.request }

// ResponseType returns the resolved response message type.
func (r *Rpc) ResponseType() ProtoType { return r.response }

// RequestStreaming returns whether the client streams requests.
func (r *Rpc) RequestStreaming() bool { return r.requestStreaming }

// ResponseStreaming returns whether the server streams responses.
func (r *Rpc) ResponseStreaming() bool { return r.responseStreaming }

// Member returns this rpc's member identifier, such as "foo.Service#Call".
func (r *Rpc) Member() string { return r.service.typ.Member(r.name) }
