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

package protoschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"buf.build/go/protoschema"
)

func TestParsePruningRules(t *testing.T) {
	t.Parallel()

	rules, err := protoschema.ParsePruningRules([]byte(`
includes:
  - weather.Forecast
  - weather.Service#Get
excludes: ["weather.Forecast#debug_info"]
on_inconsistency: fail
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"weather.Forecast", "weather.Service#Get"}, rules.Includes)
	assert.Equal(t, []string{"weather.Forecast#debug_info"}, rules.Excludes)
	assert.Equal(t, protoschema.FailOnInconsistency, rules.Policy)

	rules, err = protoschema.ParsePruningRules([]byte("includes: [a.B]"))
	require.NoError(t, err)
	assert.Equal(t, protoschema.DropField, rules.Policy)

	_, err = protoschema.ParsePruningRules([]byte("on_inconsistency: explode"))
	assert.ErrorContains(t, err, `unknown inconsistency policy "explode"`)

	for _, bad := range []string{"#x", "a.B#", "a.B#c#d"} {
		_, err = protoschema.ParsePruningRules([]byte("excludes: [\"" + bad + "\"]"))
		assert.ErrorContains(t, err, "invalid pruning pattern", bad)
	}
}

func TestPruningRulesYAML(t *testing.T) {
	t.Parallel()

	rules := protoschema.NewPruningRules().
		Include("a.B").
		OnInconsistency(protoschema.FailOnInconsistency)
	out, err := yaml.Marshal(rules)
	require.NoError(t, err)
	assert.Contains(t, string(out), "on_inconsistency: fail")

	back, err := protoschema.ParsePruningRules(out)
	require.NoError(t, err)
	assert.Equal(t, rules.Includes, back.Includes)
	assert.Equal(t, rules.Policy, back.Policy)

	assert.Equal(t, "drop_field", protoschema.DropField.String())
	assert.Equal(t, "InconsistencyPolicy(7)", protoschema.InconsistencyPolicy(7).String())
}

func TestPruningRulesMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern, id string
		match       bool
	}{
		{"*", "a.B", true},
		{"*", "a.B#c", true},
		{"a.B", "a.B", true},
		{"a.B", "a.B#c", true},
		{"a.B", "a.B.C", true},
		{"a.B", "a.BC", false},
		{"a.B", "a.A", false},
		{"a.*", "a.B", true},
		{"a.*", "a.b.C#d", true},
		{"a.*", "ab.C", false},
		{"a.B#c", "a.B#c", true},
		{"a.B#c", "a.B#cd", false},
		{"a.B#c", "a.B", false},
	}

	for _, tt := range tests {
		rules := protoschema.NewPruningRules().Include(tt.pattern).Exclude(tt.pattern)
		assert.Equal(t, tt.match, rules.IsIncluded(tt.id), "%s ~ %s", tt.pattern, tt.id)
		assert.Equal(t, tt.match, rules.IsExcluded(tt.id), "%s ~ %s", tt.pattern, tt.id)
	}

	empty := protoschema.NewPruningRules()
	assert.True(t, empty.IsIncluded("anything.At#all"))
	assert.False(t, empty.IsExcluded("anything.At#all"))
}
