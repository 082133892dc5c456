package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/prompting-recipe/users"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printOK(out io.Writer, msg string) {
	fmt.Fprintln(out, okStyle.Render("✓ ")+msg)
}

func printSignedIn(out io.Writer, p *users.Profile) {
	printOK(out, "Signed in as "+titleStyle.Render(p.DisplayName()))
}

func printProfile(out io.Writer, p *users.Profile) {
	rows := [][2]string{
		{"Name", p.Name},
		{"Login ID", p.LoginID},
		{"Email", p.Email},
		{"Provider", string(p.Provider)},
		{"ID", string(p.ID)},
	}
	fmt.Fprintln(out, titleStyle.Render(p.DisplayName()))
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintln(out, labelStyle.Render(row[0])+row[1])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, titleStyle.Render("recipe")+dimStyle.Render(" "+version))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: recipe <command> [arguments]")
	fmt.Fprintln(out)

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for _, name := range names {
		fmt.Fprintf(out, "  %s  %s\n", name+strings.Repeat(" ", width-len(name)), dimStyle.Render(commands[name].usage))
	}
}
