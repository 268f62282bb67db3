package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
)

// Renderer turns pipeline results into terminal output
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
}

// NewRenderer creates a renderer with the given terminal width
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{
		glamour: r,
		width:   width,
	}
}

// RenderMarkdown renders markdown text to styled terminal output
func (r *Renderer) RenderMarkdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// RenderReply renders the reply body and a one-line footer
func (r *Renderer) RenderReply(res *usecase.ProcessMessageResult, elapsed time.Duration) string {
	return r.RenderMarkdown(res.Response) + "\n" + r.RenderFooter(res, elapsed)
}

// RenderFooter summarises how a reply was produced
func (r *Renderer) RenderFooter(res *usecase.ProcessMessageResult, elapsed time.Duration) string {
	dim := lipgloss.NewStyle().Foreground(colorGray)
	parts := []string{
		string(res.Language),
		string(res.Intent),
		string(res.Source),
	}
	if res.KnowledgeUsed > 0 {
		parts = append(parts, fmt.Sprintf("%d kb", res.KnowledgeUsed))
	}
	parts = append(parts, fmtDur(elapsed))

	footer := dim.Render("  " + strings.Join(parts, " · "))
	if res.Degraded {
		footer += " " + lipgloss.NewStyle().Foreground(colorYellow).Render("degraded")
	}
	return footer
}

func fmtDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
