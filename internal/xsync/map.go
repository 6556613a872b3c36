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

// Package xsync contains typed wrappers over the sync package.
package xsync

import (
	"sync"
	"sync/atomic"
)

// Map is a strongly-typed wrapper over sync.Map.
//
// Map is tuned for read-mostly, write-once keys, such as an interning table.
type Map[K comparable, V any] struct {
	impl sync.Map
	len  atomic.Int64
}

// Load forwards to [sync.Map.Load].
func (m *Map[K, V]) Load(k K) (V, bool) {
	v, ok := m.impl.Load(k)
	if !ok {
		var z V
		return z, ok
	}

	return v.(V), ok //nolint:errcheck
}

// LoadOrStore loads a value if its present, or constructs it with make and
// inserts it.
//
// There is a possibility that make is called, but the return value is not
// inserted. When two goroutines race to insert the same key, both observe the
// value that won.
func (m *Map[K, V]) LoadOrStore(k K, make func() V) (actual V, loaded bool) {
	v, ok := m.Load(k)
	if ok {
		return v, true
	}
	w, ok := m.impl.LoadOrStore(k, make())
	if !ok {
		m.len.Add(1)
	}
	return w.(V), ok //nolint:errcheck
}

// Len returns the number of values that have been inserted.
func (m *Map[K, V]) Len() int {
	return int(m.len.Load())
}
