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
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// InconsistencyPolicy is what [Prune] does when a kept field or rpc refers
// to a type that an exclude rule removed.
type InconsistencyPolicy int

const (
	// DropField removes the offending field or rpc. This is the default.
	DropField InconsistencyPolicy = iota
	// FailOnInconsistency makes [Prune] return a [*PruneInconsistencyError].
	FailOnInconsistency
)

var policyNames = map[InconsistencyPolicy]string{
	DropField:           "drop_field",
	FailOnInconsistency: "fail",
}

// String implements [fmt.Stringer].
func (p InconsistencyPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("InconsistencyPolicy(%d)", int(p))
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (p *InconsistencyPolicy) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	for policy, n := range policyNames {
		if n == name {
			*p = policy
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown inconsistency policy %q", node.Line, name)
}

// MarshalYAML implements [yaml.Marshaler].
func (p InconsistencyPolicy) MarshalYAML() (any, error) {
	return p.String(), nil
}

// PruningRules selects the declarations [Prune] keeps.
//
// Rules are patterns over identifiers. Types and services are identified by
// their fully-qualified name, such as "pkg.Type". Members are identified as
// "pkg.Type#field", "pkg.Enum#CONSTANT", or "pkg.Service#Rpc"; extension
// fields as "extended.Type#qualified.extension_name".
//
// A pattern is one of:
//   - An identifier, which also matches the members and nested types of the
//     type it names.
//   - A package wildcard, such as "pkg.*", which matches everything under
//     pkg, including subpackages.
//   - "*", which matches everything.
type PruningRules struct {
	Includes []string            `yaml:"includes"`
	Excludes []string            `yaml:"excludes"`
	Policy   InconsistencyPolicy `yaml:"on_inconsistency"`
}

// NewPruningRules returns an empty set of rules, which keeps everything.
func NewPruningRules() *PruningRules {
	return new(PruningRules)
}

// ParsePruningRules parses rules from YAML, such as
//
//	includes: [weather.Forecast]
//	excludes: ["weather.Forecast#debug_info"]
//	on_inconsistency: fail
func ParsePruningRules(data []byte) (*PruningRules, error) {
	rules := NewPruningRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("protoschema: invalid pruning rules: %w", err)
	}
	for _, p := range slices.Concat(rules.Includes, rules.Excludes) {
		if err := validatePattern(p); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// Include adds patterns for declarations to keep. If no include patterns
// are added, every declaration is a root.
func (r *PruningRules) Include(patterns ...string) *PruningRules {
	r.Includes = append(r.Includes, patterns...)
	return r
}

// Exclude adds patterns for declarations to remove, even if they are
// reachable from a root.
func (r *PruningRules) Exclude(patterns ...string) *PruningRules {
	r.Excludes = append(r.Excludes, patterns...)
	return r
}

// OnInconsistency sets the policy for kept fields that refer to excluded
// types.
func (r *PruningRules) OnInconsistency(policy InconsistencyPolicy) *PruningRules {
	r.Policy = policy
	return r
}

// IsIncluded returns whether id matches an include pattern. Every
// identifier is included if there are no include patterns.
func (r *PruningRules) IsIncluded(id string) bool {
	return len(r.Includes) == 0 || matchesAny(r.Includes, id)
}

// IsExcluded returns whether id matches an exclude pattern.
func (r *PruningRules) IsExcluded(id string) bool {
	return matchesAny(r.Excludes, id)
}

func matchesAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if matchPattern(p, id) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, id string) bool {
	switch {
	case pattern == "*" || pattern == id:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(id, pattern[:len(pattern)-1])
	case strings.Contains(pattern, "#"):
		return false
	default:
		return strings.HasPrefix(id, pattern+".") || strings.HasPrefix(id, pattern+"#")
	}
}

func validatePattern(p string) error {
	if p == "" || strings.Count(p, "#") > 1 || strings.HasPrefix(p, "#") || strings.HasSuffix(p, "#") {
		return fmt.Errorf("protoschema: invalid pruning pattern %q", p)
	}
	return nil
}
