package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"github.com/muesli/reflow/wordwrap"
)

const wrapWidth = 72

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s <catalog.toml|catalog.json>... | --defaults\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, path := range files {
		var (
			c   *story.Catalog
			err error
		)
		if path == "--defaults" {
			c, err = engine.DefaultCatalog()
			path = "built-in catalog"
		} else {
			c, err = loadCatalog(path)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("%s: %v", path, err)))
			failed = true
			continue
		}
		if !report(os.Stdout, path, c) {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}

func loadCatalog(path string) (*story.Catalog, error) {
	format, err := story.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return story.ParseCatalog(data, format)
}

// report prints every event in the catalog and its problems; it returns false
// if any were found.
func report(w io.Writer, name string, c *story.Catalog) bool {
	problems := c.Validate()

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d events)", name, len(c.Events))))
	for i, d := range c.Events {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("events[%d]", i)
		}
		if err, bad := problems[label]; bad {
			fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("✗"), label)
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "      %s\n", errorStyle.Render(line))
			}
		} else {
			fmt.Fprintf(w, "  %s %s %s\n", okStyle.Render("✓"), label,
				dimStyle.Render(fmt.Sprintf("[%s, priority %d]", d.EventType, d.Priority)))
		}
		if d.Triggers.IsEmpty() {
			fmt.Fprintf(w, "      %s\n", dimStyle.Render("no triggers, fires on every eligible scan"))
		}
		if d.Description != "" {
			for _, line := range strings.Split(wordwrap.String(d.Description, wrapWidth), "\n") {
				fmt.Fprintf(w, "      %s\n", dimStyle.Render(line))
			}
		}
	}

	// Duplicate-name problems are keyed name#N and not tied to a single entry.
	var extra []string
	for key, err := range problems {
		if strings.Contains(key, "#") {
			extra = append(extra, fmt.Sprintf("%s: %v", key, err))
		}
	}
	sort.Strings(extra)
	for _, e := range extra {
		fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("✗"), errorStyle.Render(e))
	}

	if len(problems) == 0 {
		fmt.Fprintln(w, okStyle.Render("Catalog is valid!"))
		return true
	}
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d problem(s) found", len(problems))))
	return false
}
