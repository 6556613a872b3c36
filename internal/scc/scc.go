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

// Package scc computes the strongly connected components of a directed graph.
//
// Components are found with an iterative form of Tarjan's algorithm, so that
// deeply nested message graphs cannot exhaust the goroutine stack.
package scc

import (
	"iter"
	"maps"
	"slices"

	"buf.build/go/protoschema/internal/debug"
)

// Graph exposes the outgoing edges of each node of a directed graph.
type Graph[Node any] func(Node) iter.Seq[Node]

// DAG is the graph of strongly connected components of some directed graph.
type DAG[Node comparable] struct {
	of         map[Node]int
	components []Component[Node]
}

// Component is a strongly connected component: every member is reachable
// from every other member.
type Component[Node comparable] struct {
	dag     *DAG[Node]
	index   int
	members []Node
	deps    []int
}

// Sort computes the components reachable from root.
func Sort[Node comparable](root Node, graph Graph[Node]) *DAG[Node] {
	return SortAll(func(yield func(Node) bool) { yield(root) }, graph)
}

// SortAll computes the components reachable from any of roots.
func SortAll[Node comparable](roots iter.Seq[Node], graph Graph[Node]) *DAG[Node] {
	w := &walker[Node]{
		graph: graph,
		dag:   &DAG[Node]{of: make(map[Node]int)},
		nodes: make(map[Node]*node[Node]),
	}
	for root := range roots {
		if w.nodes[root] == nil {
			w.walk(root)
		}
	}
	return w.dag
}

// ForNode returns the component containing n, or nil if n was not reached.
func (d *DAG[Node]) ForNode(n Node) *Component[Node] {
	i, ok := d.of[n]
	if !ok {
		return nil
	}
	return &d.components[i]
}

// Topological yields every component after all of the components it
// depends on.
func (d *DAG[Node]) Topological() iter.Seq[*Component[Node]] {
	return func(yield func(*Component[Node]) bool) {
		for i := range d.components {
			if !yield(&d.components[i]) {
				return
			}
		}
	}
}

// Members returns the nodes in this component.
func (c *Component[Node]) Members() []Node { return c.members }

// Index returns this component's position in [DAG.Topological] order.
func (c *Component[Node]) Index() int { return c.index }

// Deps yields the components that members of this one have edges into,
// excluding this component.
func (c *Component[Node]) Deps() iter.Seq[*Component[Node]] {
	return func(yield func(*Component[Node]) bool) {
		for _, i := range c.deps {
			if !yield(&c.dag.components[i]) {
				return
			}
		}
	}
}

type node[Node any] struct {
	index, low int
	onStack    bool
	edges      []Node
	next       int
}

type walker[Node comparable] struct {
	graph Graph[Node]
	dag   *DAG[Node]
	nodes map[Node]*node[Node]

	counter int
	stack   []Node // Tarjan's component stack.
	path    []Node // The DFS path, in place of recursion.
}

func (w *walker[Node]) visit(n Node) {
	w.nodes[n] = &node[Node]{
		index:   w.counter,
		low:     w.counter,
		onStack: true,
		edges:   slices.Collect(w.graph(n)),
	}
	w.counter++
	w.stack = append(w.stack, n)
	w.path = append(w.path, n)
}

func (w *walker[Node]) walk(root Node) {
	w.visit(root)
	for len(w.path) > 0 {
		top := w.path[len(w.path)-1]
		cur := w.nodes[top]

		if cur.next < len(cur.edges) {
			dep := cur.edges[cur.next]
			cur.next++
			switch d := w.nodes[dep]; {
			case d == nil:
				w.visit(dep)
			case d.onStack:
				cur.low = min(cur.low, d.index)
			}
			continue
		}

		w.path = w.path[:len(w.path)-1]
		if len(w.path) > 0 {
			parent := w.nodes[w.path[len(w.path)-1]]
			parent.low = min(parent.low, cur.low)
		}
		if cur.low == cur.index {
			w.emit(top)
		}
	}
}

// emit pops the component rooted at root off the stack.
func (w *walker[Node]) emit(root Node) {
	i := len(w.stack) - 1
	for w.stack[i] != root {
		i--
	}
	c := Component[Node]{
		dag:     w.dag,
		index:   len(w.dag.components),
		members: slices.Clone(w.stack[i:]),
	}
	w.stack = w.stack[:i]

	for _, n := range c.members {
		w.nodes[n].onStack = false
		w.dag.of[n] = c.index
	}
	deps := make(map[int]struct{})
	for _, n := range c.members {
		for _, e := range w.nodes[n].edges {
			if j := w.dag.of[e]; j != c.index {
				deps[j] = struct{}{}
			}
		}
	}
	c.deps = slices.Sorted(maps.Keys(deps))
	debug.Log("scc", "%d: %v -> %v", c.index, c.members, c.deps)

	w.dag.components = append(w.dag.components, c)
}
