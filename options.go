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
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// The below are not interfaces so that callers cannot implement them; each
// wraps a function that configures an unexported options struct.

// LinkOption is a configuration setting for [Link] and [Load].
type LinkOption struct{ apply func(*linkOptions) }

type linkOptions struct {
	loader    Loader
	logger    logrus.FieldLogger
	wellKnown bool
}

func newLinkOptions(options []LinkOption) linkOptions {
	opts := linkOptions{logger: discardLogger(), wellKnown: true}
	for _, o := range options {
		o.apply(&opts)
	}
	return opts
}

// WithLoader sets the loader used to fetch files that are imported but were
// not passed to [Link] directly.
func WithLoader(loader Loader) LinkOption {
	return LinkOption{func(o *linkOptions) { o.loader = loader }}
}

// WithLogger sets a logger that receives debug-level entries as files are
// loaded and linked. By default, nothing is logged.
func WithLogger(logger logrus.FieldLogger) LinkOption {
	return LinkOption{func(o *linkOptions) { o.logger = logger }}
}

// WithoutWellKnownTypes disables the fallback that supplies
// google/protobuf/*.proto imports from the files compiled into this binary.
//
// google/protobuf/descriptor.proto is always available, because options are
// resolved against it.
func WithoutWellKnownTypes() LinkOption {
	return LinkOption{func(o *linkOptions) { o.wellKnown = false }}
}

// PruneOption is a configuration setting for [Prune].
type PruneOption struct{ apply func(*pruneOptions) }

type pruneOptions struct {
	logger logrus.FieldLogger
}

// WithPruneLogger sets a logger that receives debug-level entries for each
// declaration that pruning removes.
func WithPruneLogger(logger logrus.FieldLogger) PruneOption {
	return PruneOption{func(o *pruneOptions) { o.logger = logger }}
}

// UnmarshalOption is a configuration setting for [Message.Unmarshal].
type UnmarshalOption struct{ apply func(*unmarshalOptions) }

type unmarshalOptions struct {
	maxDepth         int
	discardUnknown   bool
	allowPartial     bool
	allowInvalidUTF8 bool
}

// WithMaxDepth sets the maximum recursion depth for the parser. The default
// is 100.
//
// Setting a large value enables potential DoS vectors.
func WithMaxDepth(depth int) UnmarshalOption {
	return UnmarshalOption{func(o *unmarshalOptions) { o.maxDepth = min(depth, math.MaxInt32) }}
}

// WithDiscardUnknown sets whether unknown fields should be discarded while
// parsing. Analogous to [proto.UnmarshalOptions].
//
// Setting this option will break round-tripping.
func WithDiscardUnknown(discard bool) UnmarshalOption {
	return UnmarshalOption{func(o *unmarshalOptions) { o.discardUnknown = discard }}
}

// WithAllowPartial sets whether a message that is missing required fields may
// be unmarshaled without error.
func WithAllowPartial(allow bool) UnmarshalOption {
	return UnmarshalOption{func(o *unmarshalOptions) { o.allowPartial = allow }}
}

// WithAllowInvalidUTF8 sets whether UTF-8 is validated when parsing string
// fields originating from proto3 files.
func WithAllowInvalidUTF8(allow bool) UnmarshalOption {
	return UnmarshalOption{func(o *unmarshalOptions) { o.allowInvalidUTF8 = allow }}
}

// MarshalOption is a configuration setting for [Message.Marshal].
type MarshalOption struct{ apply func(*marshalOptions) }

type marshalOptions struct {
	allowPartial bool
}

// WithAllowPartialMarshal sets whether a message that is missing required
// fields may be marshaled without error.
func WithAllowPartialMarshal(allow bool) MarshalOption {
	return MarshalOption{func(o *marshalOptions) { o.allowPartial = allow }}
}

// AdapterOption is a configuration setting for [NewAdapter].
type AdapterOption struct{ apply func(*adapterOptions) }

type adapterOptions struct {
	logger logrus.FieldLogger
}

// WithAdapterLogger sets a logger that receives a debug-level entry for each
// message type an adapter compiles.
func WithAdapterLogger(logger logrus.FieldLogger) AdapterOption {
	return AdapterOption{func(o *adapterOptions) { o.logger = logger }}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
