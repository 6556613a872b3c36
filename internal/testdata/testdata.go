package testdata

import (
	"bytes"
	"embed"
	"encoding/hex"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"gopkg.in/yaml.v3"

	"buf.build/go/protoschema"
	"buf.build/go/protoschema/internal/prototest"
)

//go:embed *
var testdata embed.FS

// Harness is a generalization of [testing.TB] that also includes the
// [testing.T.Run] method. It must be generic because the signature of this
// function varies across [testing.T] and [testing.B].
type Harness[T any] interface {
	testing.TB
	Run(string, func(T)) bool
}

// TestCase is a test case from the test data corpus.
type TestCase struct {
	Name string `yaml:"-"`

	// Files are the .proto sources the test's schema is linked from, keyed
	// by import path.
	Files    map[string]string `yaml:"files"`
	TypeName string            `yaml:"type"`

	Schema *protoschema.Schema `yaml:"-"`
	Type   struct {
		// Reference is the type as understood by the reference
		// implementation, built from the schema's exported descriptors.
		Reference protoreflect.MessageType
		Adapter   *protoschema.Adapter
	} `yaml:"-"`

	// If set, run this test as a benchmark.
	Benchmark bool `yaml:"benchmark"`

	// Three ways to encode the test: hex, textproto, and protoscope
	Hex        []string `yaml:"hex"`
	TextProto  []string `yaml:"textproto"`
	Protoscope []string `yaml:"protoscope"`

	Specimens [][]byte `yaml:"-"`
}

// RunAll runs all of the test cases against the given harness.
func RunAll[T Harness[T]](t T, f func(T, *TestCase)) {
	t.Helper()

	err := fs.WalkDir(testdata, ".", func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err, "loading test %q", path)

		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		t.Run(path, func(t T) {
			if t, ok := any(t).(*testing.T); ok {
				t.Parallel()
			}

			data, err := fs.ReadFile(testdata, path)
			require.NoError(t, err, "loading test %q", path)

			test := parseTestCase(t, path, data)
			if test != nil {
				f(t, test)
			}
		})

		return nil
	})
	require.NoError(t, err)
}

// Run executes a single test case.
//
// Each specimen is decoded by both the reference implementation and a
// [protoschema.Adapter]; the results must agree, and re-encoding the
// adapter's message must produce an equal message.
func (test *TestCase) Run(t *testing.T, verbose bool) {
	t.Helper()

	run := func(t *testing.T, specimen []byte) {
		t.Helper()

		m1 := test.Type.Reference.New().Interface()
		err1 := proto.Unmarshal(specimen, m1)

		m2 := test.Type.Adapter.New()
		err2 := m2.Unmarshal(specimen)

		if verbose {
			t.Logf("theirs: %v, ours: %v", err1, err2)
		}

		if err1 != nil {
			require.Error(t, err2, "reference error: %v", err1)
			return
		}
		require.NoError(t, err2)
		prototest.Equal(t, m1, m2)

		data, err := m2.Marshal()
		require.NoError(t, err)
		m3 := test.Type.Reference.New().Interface()
		require.NoError(t, proto.Unmarshal(data, m3))
		require.True(t, proto.Equal(m1, m3), "re-encoded message differs: `%x`", data)

		if verbose {
			t.Logf("theirs: %v", prototext.Format(m1))
			t.Logf("ours: %v", m2)
		}
	}

	if len(test.Specimens) == 1 {
		run(t, test.Specimens[0])
		return
	}

	for _, specimen := range test.Specimens {
		t.Run("", func(t *testing.T) {
			t.Parallel()
			run(t, specimen)
		})
	}
}

// Bench benchmarks decoding every specimen of a test case.
func (test *TestCase) Bench(b *testing.B) {
	b.Helper()

	for _, specimen := range test.Specimens {
		b.Run("", func(b *testing.B) {
			m := test.Type.Adapter.New()
			b.SetBytes(int64(len(specimen)))
			b.ReportAllocs()
			for range b.N {
				_ = m.Unmarshal(specimen)
			}
		})
	}
}

// parseTestCase parses a single test case from the given data.
//
// This will call t.FailNow() if testing fails.
func parseTestCase(t testing.TB, path string, file []byte) *TestCase {
	t.Helper()

	require.True(t, bytes.HasSuffix(file, []byte("\n")), "missing trailing newline in %q", path)

	test := new(TestCase)
	dec := yaml.NewDecoder(bytes.NewReader(file))
	dec.KnownFields(true)
	err := dec.Decode(&test)
	require.NoError(t, err, "loading test %q", path)

	_, isBench := t.(*testing.B)
	if isBench && !test.Benchmark {
		t.SkipNow()
	}

	test.Name = path
	roots := slices.Sorted(maps.Keys(test.Files))
	test.Schema, err = protoschema.Load(roots,
		protoschema.WithLoader(protoschema.NewSourceLoader(test.Files)))
	require.NoError(t, err, "linking test %q", path)

	test.Type.Adapter, err = protoschema.NewAdapter(test.Schema, test.TypeName)
	require.NoError(t, err, "compiling test %q", path)

	test.Type.Reference = reference(t, test.Schema, test.TypeName)

	for _, raw := range test.Hex {
		r := strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "")
		b, err := hex.DecodeString(r.Replace(raw))
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	for _, raw := range test.TextProto {
		m := test.Type.Reference.New().Interface()
		err = prototext.Unmarshal([]byte(raw), m)
		require.NoError(t, err, "loading test %q", path)

		b, err := proto.Marshal(m)
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	for _, raw := range test.Protoscope {
		s := protoscope.NewScanner(raw)
		b, err := s.Exec()
		require.NoError(t, err, "loading test %q", path)

		test.Specimens = append(test.Specimens, b)
	}

	return test
}

// reference builds a dynamic message type from the schema's exported
// descriptors. Files that are compiled into this binary are taken from the
// global registry instead, so that only the test's own files are checked.
func reference(t testing.TB, schema *protoschema.Schema, typeName string) protoreflect.MessageType {
	t.Helper()

	set := new(descriptorpb.FileDescriptorSet)
	for _, fdp := range schema.FileDescriptorSet().GetFile() {
		if fd, err := protoregistry.GlobalFiles.FindFileByPath(fdp.GetName()); err == nil {
			fdp = protodesc.ToFileDescriptorProto(fd)
		}
		set.File = append(set.File, fdp)
	}

	files, err := protodesc.NewFiles(set)
	require.NoError(t, err, "building descriptors for %s", typeName)

	d, err := files.FindDescriptorByName(protoreflect.FullName(typeName))
	require.NoError(t, err, "finding %s", typeName)
	md, ok := d.(protoreflect.MessageDescriptor)
	require.True(t, ok, "%s is not a message", typeName)

	return dynamicpb.NewMessageType(md)
}
