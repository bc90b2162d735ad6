// Package rendering lets echo handlers render templ components and
// gomponents nodes through c.Render.
package rendering

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// gomponentNode is satisfied by gomponents.Node.
type gomponentNode interface {
	Render(w io.Writer) error
}

// Renderer implements echo.Renderer. The component travels in the data
// argument; the template name is ignored.
type Renderer struct{}

var _ echo.Renderer = Renderer{}

// Render implements echo.Renderer.
func (Renderer) Render(w io.Writer, _ string, data any, c echo.Context) error {
	if c.Response().Header().Get(echo.HeaderContentType) == "" {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	}
	return render(c.Request().Context(), data, w)
}

func render(ctx context.Context, component any, w io.Writer) error {
	switch c := component.(type) {
	case templ.Component:
		return c.Render(ctx, w)
	case gomponentNode:
		return c.Render(w)
	default:
		return fmt.Errorf("unsupported component type %T", component)
	}
}
