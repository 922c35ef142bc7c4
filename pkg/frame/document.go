package frame

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element is a lightweight XML element node. The protocol's documents are
// small attribute bags, so a generic tree is cheaper than schema structs
// at this layer; typed decoding happens in the model package.
type Element struct {
	Name     string
	Attr     map[string]string
	Children []*Element
}

// GetAttr returns the named attribute value, or "" if absent.
func (e *Element) GetAttr(name string) string {
	return e.Attr[name]
}

// HasAttr reports whether the named attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr[name]
	return ok
}

// Document is one complete server message reconstructed from the wire:
// a synthetic root element whose children are the top-level elements of
// the framed payload. Several concatenated server messages can end up in
// one Document; callers iterate Root.Children.
type Document struct {
	Root *Element
}

// parseDocument parses a reconstructed XML string into an element tree.
func parseDocument(s string) (*Document, error) {
	dec := xml.NewDecoder(strings.NewReader(s))

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Name: t.Name.Local,
				Attr: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				el.Attr[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse document: multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse document: unbalanced end tag %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		}
		// ProcInst, CharData and Comment tokens carry no structure here.
	}

	if root == nil {
		return nil, fmt.Errorf("parse document: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("parse document: unclosed element %q", stack[len(stack)-1].Name)
	}
	return &Document{Root: root}, nil
}
