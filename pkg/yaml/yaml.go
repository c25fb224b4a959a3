// Package yaml wraps yaml.v3 with in place editing of config files.
package yaml

import (
	"bytes"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoPath = errors.New("yaml: path not exist")

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Patch sets key under the path of parent keys without touching the rest
// of the document. A nil value removes the key.
func Patch(src []byte, key string, value any, path ...string) ([]byte, error) {
	parent, err := findParent(src, path...)
	if err != nil {
		return nil, err
	}

	var dst []byte

	if parent != nil {
		dst, err = replace(src, key, value, parent)
	} else {
		dst, err = appendKey(src, key, value, path...)
	}
	if err != nil {
		return nil, err
	}

	// result must stay a valid document
	if err = yaml.Unmarshal(dst, map[string]any{}); err != nil {
		return nil, err
	}

	return dst, nil
}

func findParent(src []byte, path ...string) (*yaml.Node, error) {
	if len(src) == 0 {
		return nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, err
	}

	if root.Content == nil {
		return nil, nil
	}

	parent := root.Content[0] // document node
	for _, name := range path {
		if parent == nil {
			break
		}
		_, parent = findChild(parent, name)
	}
	return parent, nil
}

func findChild(node *yaml.Node, name string) (key, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

func lastLine(node *yaml.Node) int {
	for node.Content != nil {
		node = node.Content[len(node.Content)-1]
	}
	return node.Line
}

func replace(src []byte, key string, value any, parent *yaml.Node) ([]byte, error) {
	put, err := Encode(map[string]any{key: value}, 2)
	if err != nil {
		return nil, err
	}

	var i0, i1 int

	if nodeKey, nodeValue := findChild(parent, key); nodeKey != nil {
		put = indent(put, nodeKey.Column-1)
		i0 = lineOffset(src, nodeKey.Line)
		i1 = lineOffset(src, lastLine(nodeValue)+1)
	} else {
		column := parent.Column
		if parent.Content != nil {
			column = parent.Content[0].Column
		}
		put = indent(put, column-1)
		i0 = lineOffset(src, lastLine(parent)+1)
		i1 = i0
	}

	if i0 < 0 {
		// no new line on the end of file
		i0, i1 = len(src), len(src)
		if value != nil {
			src = append(src, '\n')
			i0, i1 = i0+1, i1+1
		}
	} else if i1 < 0 {
		i1 = len(src)
	}

	dst := make([]byte, 0, len(src)+len(put))
	dst = append(dst, src[:i0]...)
	if value != nil {
		dst = append(dst, put...)
	}
	return append(dst, src[i1:]...), nil
}

func appendKey(src []byte, key string, value any, path ...string) ([]byte, error) {
	if len(path) > 1 || value == nil {
		return nil, ErrNoPath
	}

	var v any = map[string]any{key: value}
	if len(path) == 1 {
		v = map[string]any{path[0]: v}
	}

	put, err := Encode(v, 2)
	if err != nil {
		return nil, err
	}

	dst := make([]byte, 0, len(src)+len(put)+1)
	dst = append(dst, src...)
	if l := len(src); l > 0 && src[l-1] != '\n' {
		dst = append(dst, '\n')
	}
	return append(dst, put...), nil
}

func indent(src []byte, n int) []byte {
	if n <= 0 {
		return src
	}

	pre := strings.Repeat(" ", n)

	var dst []byte
	for _, line := range bytes.SplitAfter(src, []byte{'\n'}) {
		if len(line) > 0 {
			dst = append(dst, pre...)
			dst = append(dst, line...)
		}
	}
	return dst
}

// lineOffset returns the byte offset of a 1-based line or -1
func lineOffset(b []byte, line int) (offset int) {
	for l := 1; l < line; l++ {
		i := bytes.IndexByte(b[offset:], '\n') + 1
		if i == 0 {
			return -1
		}
		offset += i
	}
	return offset
}
