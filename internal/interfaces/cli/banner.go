package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
)

var logoLines = []string{
	" ███████ ██ ████████ ███████ ██████   ██████  ████████",
	" ██      ██    ██    ██      ██   ██ ██    ██    ██   ",
	" ███████ ██    ██    █████   ██████  ██    ██    ██   ",
	"      ██ ██    ██    ██      ██   ██ ██    ██    ██   ",
	" ███████ ██    ██    ███████ ██████   ██████     ██   ",
}

// Gradient colors top→bottom
var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo carries the facts shown in the welcome banner
type BannerInfo struct {
	Version   string
	Business  string
	Model     string
	Providers []string
	SessionID string
}

// RenderBanner returns the styled welcome banner
func RenderBanner(info BannerInfo, width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)
	greenStyle := lipgloss.NewStyle().Foreground(colorGreen)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)

	var logo string
	if width >= 56 {
		for i, line := range logoLines {
			c := logoGradient[i%len(logoGradient)]
			logo += lipgloss.NewStyle().Foreground(c).Bold(true).Render(line) + "\n"
		}
	} else {
		logo = lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(" ◇  S I T E B O T") + "\n"
	}

	ver := versionStyle.Render("  " + info.Version)

	model := "canned replies only"
	if len(info.Providers) > 0 {
		model = fmt.Sprintf("%s via %s", info.Model, strings.Join(info.Providers, ", "))
	}

	lines := []string{
		fmt.Sprintf("  %s %s", labelStyle.Render("Business"), valueStyle.Render(info.Business)),
		fmt.Sprintf("  %s %s", labelStyle.Render("Model   "), greenStyle.Render(model)),
		fmt.Sprintf("  %s %s", labelStyle.Render("Session "), valueStyle.Render(info.SessionID)),
		fmt.Sprintf("  %s %s/%s", labelStyle.Render("Env     "), labelStyle.Render(runtime.GOOS), labelStyle.Render(runtime.GOARCH)),
	}

	tips := tipStyle.Render("  Enter 发送 · /help 命令 · Ctrl+C 退出")

	return fmt.Sprintf("\n%s%s\n\n%s\n\n%s\n", logo, ver, strings.Join(lines, "\n"), tips)
}
