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

package decl

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/desc/protoparse/ast"
)

// aggregateFile is the name of the scratch file message literals are parsed
// from.
const aggregateFile = "aggregate.proto"

// ParseAggregate parses the body of a message literal option value, such as
// the text between the braces of
//
//	option (my_option) = { a: 1, b { c: "x" } d: [1, 2] };
//
// Keys written as [foo.bar] name extensions and are returned as (foo.bar).
// Numbers are normalized to their decimal form.
func ParseAggregate(text string) ([]*Option, error) {
	src := "syntax = \"proto2\";\noption (aggregate) = {\n" + text + "\n};\n"
	parser := protoparse.Parser{
		Accessor: protoparse.FileAccessor(func(string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(src)), nil
		}),
	}

	files, err := parser.ParseToAST(aggregateFile)
	if err != nil {
		return nil, fmt.Errorf("message literal: %w", err)
	}

	var lit *ast.MessageLiteralNode
	for _, d := range files[0].Decls {
		opt, ok := d.(*ast.OptionNode)
		if !ok {
			continue
		}
		if lit != nil {
			return nil, errors.New("message literal: unbalanced braces")
		}
		if lit, ok = opt.Val.(*ast.MessageLiteralNode); !ok {
			return nil, errors.New("message literal: not a message")
		}
	}
	if lit == nil {
		return nil, errors.New("message literal: no value")
	}
	return aggregateFields(lit.Elements)
}

func aggregateFields(fields []*ast.MessageFieldNode) ([]*Option, error) {
	var out []*Option
	for _, f := range fields {
		opt, err := aggregateValue(f.Val)
		if err != nil {
			return nil, err
		}
		opt.Name = string(f.Name.Name.AsIdentifier())
		if f.Name.Open != nil {
			opt.Name = "(" + strings.Trim(f.Name.Value(), "[]") + ")"
		}
		out = append(out, opt)
	}
	return out, nil
}

func aggregateValue(n ast.ValueNode) (*Option, error) {
	switch v := n.Value().(type) {
	case string:
		return &Option{Kind: OptionString, Value: v}, nil
	case ast.Identifier:
		switch v {
		case "true", "True", "t":
			return &Option{Kind: OptionBool, Value: true}, nil
		case "false", "False", "f":
			return &Option{Kind: OptionBool, Value: false}, nil
		case "inf", "infinity", "nan":
			return &Option{Kind: OptionNumber, Value: string(v)}, nil
		}
		return &Option{Kind: OptionIdentifier, Value: string(v)}, nil
	case uint64:
		return &Option{Kind: OptionNumber, Value: strconv.FormatUint(v, 10)}, nil
	case int64:
		return &Option{Kind: OptionNumber, Value: strconv.FormatInt(v, 10)}, nil
	case float64:
		return &Option{Kind: OptionNumber, Value: formatFloat(v)}, nil
	case []ast.ValueNode:
		items := make([]*Option, 0, len(v))
		for _, item := range v {
			opt, err := aggregateValue(item)
			if err != nil {
				return nil, err
			}
			items = append(items, opt)
		}
		return &Option{Kind: OptionList, Value: items}, nil
	case []*ast.MessageFieldNode:
		entries, err := aggregateFields(v)
		if err != nil {
			return nil, err
		}
		return &Option{Kind: OptionMap, Value: entries}, nil
	default:
		return nil, fmt.Errorf("message literal: unsupported value %T", v)
	}
}
