// Package site renders the public HTML leaderboard page.
package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

//go:embed static/leaderboard.html
var staticFS embed.FS

// Error constants.
var (
	ErrTemplate = errors.New("leaderboard template invalid")
	ErrRender   = errors.New("leaderboard render failed")
)

// Renderer executes the embedded leaderboard template.
type Renderer struct {
	tmpl *template.Template
}

type page struct {
	types.Leaderboard
	FastestTime string
}

// NewRenderer parses the embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("leaderboard.html").Funcs(template.FuncMap{
		"rank":  func(i int) int { return i + 1 },
		"ticks": model.FormatTicks,
	}).ParseFS(staticFS, "static/leaderboard.html")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// MustRenderer is NewRenderer for package initialization; the template is
// embedded, so a parse failure is a build defect.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes the page for lb. Output is buffered so a template failure
// never leaves a half-written page.
func (r *Renderer) Render(w io.Writer, lb types.Leaderboard) error {
	fastest := model.FormatTicks(0)
	if lb.Stats.FastestTimeTicks != nil {
		fastest = model.FormatTicks(*lb.Stats.FastestTimeTicks)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page{Leaderboard: lb, FastestTime: fastest}); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	return nil
}
