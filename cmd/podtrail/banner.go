package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig, backendName, sinkName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	row := func(mark, label, value string) string {
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("podtrail")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Sources"), "")
	lines = append(lines, row(check, "Namespace", cyan.Render(cfg.Namespace)))
	if cfg.explicit() {
		lines = append(lines, row(check, "Container", cyan.Render(cfg.PodName+"/"+cfg.ContainerName)))
	} else {
		lines = append(lines, row(check, "Selector", cyan.Render(cfg.Selector)))
	}
	lines = append(lines, row(check, "Backend", dim.Render(backendName)))
	lines = append(lines, row(check, "Since", dim.Render(cfg.SinceTime)))
	lines = append(lines, row(check, "Interval", dim.Render(cfg.PollInterval.String())))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Delivery"), "")
	lines = append(lines, row(check, "Sink", dim.Render(sinkName)))
	if cfg.CheckpointPath != "" {
		lines = append(lines, row(check, "Checkpoints", dim.Render(cfg.CheckpointPath)))
	} else {
		lines = append(lines, row(dot, "Checkpoints", dim.Render("disabled")))
	}
	if cfg.APIEnabled {
		lines = append(lines, row(check, "Status API", cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, row(dot, "Status API", dim.Render("disabled")))
	}
	lines = append(lines, "")

	if cfg.ConfigPath != "" {
		lines = append(lines, row(check, "Config File", dim.Render(cfg.ConfigPath)))
	} else {
		lines = append(lines, row(dot, "Config File", dim.Render("environment only")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
}
