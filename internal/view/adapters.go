// Package view holds the server-rendered diagnostics pages.
package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"maragu.dev/gomponents"
)

// nodeComponent lets a gomponents node be rendered wherever a
// templ.Component is expected.
type nodeComponent struct {
	node gomponents.Node
}

func (n nodeComponent) Render(_ context.Context, w io.Writer) error {
	return n.node.Render(w)
}

// Component wraps node as a templ.Component.
func Component(node gomponents.Node) templ.Component {
	return nodeComponent{node: node}
}
