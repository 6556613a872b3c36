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

// Package protoschema is a Protobuf schema toolkit: it links .proto files
// into a fully-resolved schema graph, prunes that graph down to the
// declarations a program needs, and encodes and decodes messages against
// it without any generated code.
//
// # Linking
//
// Files are parsed into declarations with [decl.Parse], or lowered from
// descriptors with [decl.FromDescriptor], and then linked with [Link].
// [Load] combines both steps by fetching files through a [Loader], such as
// one created with [NewFSLoader]. Linking resolves every type name with
// protoc's scoping rules, validates tags and names, and resolves options
// against google/protobuf/descriptor.proto, which is always available.
//
// # Pruning
//
// [Prune] reduces a [Schema] to the declarations reachable from a set of
// roots, described by [PruningRules]. Rules may be built in code or loaded
// from YAML with [ParsePruningRules].
//
// # Encoding
//
// An [Adapter] compiles a message type of a schema into field tables. The
// resulting [Message] values can be read and written field by field, and
// marshaled to and from the wire format. Unknown fields round-trip exactly.
//
// # Support Status
//
// The following are not supported:
//
//   - Editions syntax. Files must be proto2 or proto3.
//   - The JSON and text formats.
//   - Services beyond their declarations; there is no RPC runtime.
package protoschema
