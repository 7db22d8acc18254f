// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/common-nighthawk/go-figure"
	"golang.org/x/term"

	"crest.dev/metrics"
	"crest.dev/router"
)

var methodColors = map[router.Method]string{
	router.MethodGet:     "10",
	router.MethodPost:    "12",
	router.MethodPut:     "11",
	router.MethodDelete:  "9",
	router.MethodPatch:   "13",
	router.MethodHead:    "14",
	router.MethodOptions: "7",
}

// colorWriter downsamples ANSI colors to what w supports. Production
// output never carries colors.
func (a *App) colorWriter(w io.Writer) *colorprofile.Writer {
	cpw := colorprofile.NewWriter(w, os.Environ())
	if a.settings.Server.Environment == EnvironmentProduction {
		cpw.Profile = colorprofile.NoTTY
	}
	return cpw
}

func (a *App) printStartupBanner(out io.Writer, addr, protocol string) {
	w := a.colorWriter(out)
	s := a.settings

	gradient := []string{"10", "11"}
	if s.Server.Environment == EnvironmentDevelopment {
		gradient = []string{"12", "14", "10", "11"}
	}
	var art strings.Builder
	for _, line := range figure.NewFigure(s.Server.Name, "", false).Slicify() {
		if strings.TrimSpace(line) != "" {
			for i, ch := range line {
				art.WriteString(lipgloss.NewStyle().
					Foreground(lipgloss.Color(gradient[i%len(gradient)])).
					Bold(true).
					Render(string(ch)))
			}
		}
		art.WriteString("\n")
	}

	category := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(14).PaddingLeft(2)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	disabled := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	provider := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	display := addr
	if strings.HasPrefix(display, ":") {
		display = "0.0.0.0" + display
	}
	display = "http://" + display

	line := func(b *strings.Builder, name, v string, color string) {
		fmt.Fprintf(b, "%s  %s\n", label.Render(name+":"), value.Foreground(lipgloss.Color(color)).Render(v))
	}

	var b strings.Builder
	b.WriteString(category.Render("Service") + "\n")
	line(&b, "Version", s.Server.Version, "14")
	line(&b, "Environment", s.Server.Environment, "11")
	line(&b, "Address", display, "10")
	line(&b, "Protocol", protocol, "15")

	b.WriteString("\n" + category.Render("Observability") + "\n")
	if a.metrics != nil {
		target := s.Metrics.Endpoint
		if a.metrics.Provider() == metrics.PrometheusProvider {
			target = display + s.Metrics.Path
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", label.Render("Metrics:"),
			value.Foreground(lipgloss.Color("13")).Render(target),
			provider.Render(fmt.Sprintf("[%s]", a.metrics.Provider())))
	} else {
		fmt.Fprintf(&b, "%s  %s\n", label.Render("Metrics:"), disabled.Render("Disabled"))
	}
	if a.tracing != nil {
		fmt.Fprintf(&b, "%s  %s  %s\n", label.Render("Tracing:"),
			value.Foreground(lipgloss.Color("12")).Render("Enabled"),
			provider.Render(fmt.Sprintf("[%s]", a.tracing.Provider())))
	} else {
		fmt.Fprintf(&b, "%s  %s\n", label.Render("Tracing:"), disabled.Render("Disabled"))
	}
	if a.health != nil {
		line(&b, "Health", display+a.health.livenessPath(), "10")
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprint(w, art.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprint(w, b.String())

	if s.Server.Environment == EnvironmentDevelopment && len(a.router.Rules()) > 0 {
		_, _ = fmt.Fprintln(w)
		a.renderRoutesTable(w, out, 80)
	}
	_, _ = fmt.Fprintln(w)
}

// PrintRoutes writes the rule table to w: method, template, name, kind and
// middleware of every rule in registration order.
//
//	╭─────────┬─────────────────┬──────────┬─────────┬────────────╮
//	│ Methods │ Template        │ Name     │ Kind    │ Middleware │
//	├─────────┼─────────────────┼──────────┼─────────┼────────────┤
//	│ GET     │ /orders/<int>   │ order    │ dynamic │ auth       │
//	╰─────────┴─────────────────┴──────────┴─────────┴────────────╯
func (a *App) PrintRoutes(w io.Writer) {
	if len(a.router.Rules()) == 0 {
		_, _ = fmt.Fprintln(w, "No routes registered")
		return
	}
	a.renderRoutesTable(a.colorWriter(w), w, 120)
}

// renderRoutesTable writes the table to w, fitting it to the terminal
// behind raw when there is one.
func (a *App) renderRoutesTable(w, raw io.Writer, width int) {
	useColors := a.settings.Server.Environment == EnvironmentDevelopment

	rules := a.router.Rules()
	rows := make([][]string, 0, len(rules))
	minWidth := 2 + 4 + 10
	for _, rule := range rules {
		methods := make([]string, 0, rule.Methods().Len())
		for _, m := range rule.Methods().Slice() {
			name := m.String()
			if color, ok := methodColors[m]; ok && useColors {
				name = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(name)
			}
			methods = append(methods, name)
		}
		name := rule.Name()
		if name == "" {
			name = "-"
		}
		mw := strings.Join(rule.Middleware(), ", ")
		if mw == "" {
			mw = "-"
		}
		tmpl := rule.Template().String()
		minWidth = max(minWidth, 2+4+10+len(rule.Methods().String())+len(tmpl)+len(name)+len(rule.Kind().String())+len(mw))
		rows = append(rows, []string{strings.Join(methods, ", "), tmpl, name, rule.Kind().String(), mw})
	}

	tableWidth := max(minWidth, width)
	if f, ok := raw.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			tableWidth = min(tableWidth, tw)
		}
	}
	tableWidth = max(60, tableWidth)

	border := lipgloss.NewStyle()
	if useColors {
		border = border.Foreground(lipgloss.Color("240"))
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow && useColors {
				style = style.Bold(true).Foreground(lipgloss.Color("230"))
			}
			return style
		}).
		Headers("Methods", "Template", "Name", "Kind", "Middleware").
		Rows(rows...).
		Width(tableWidth)

	_, _ = fmt.Fprintln(w, t.Render())
}
