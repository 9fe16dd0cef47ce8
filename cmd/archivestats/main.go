package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brensch/ringworld/store"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Bold(true)
)

type globList []string

func (g *globList) String() string     { return strings.Join(*g, ",") }
func (g *globList) Set(v string) error { *g = append(*g, v); return nil }

func main() {
	var globs globList
	flag.Var(&globs, "glob", "Parquet glob to include (repeatable)")
	timeout := flag.Duration("timeout", time.Minute, "Query timeout")
	flag.Parse()
	if len(globs) == 0 {
		globs = append(globs, "data/selfplay/*.parquet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := store.OpenArchiveDB(globs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open archive: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	sum, err := store.Summarize(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sources, err := store.GamesBySource(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	row := func(label string, value any) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value)))
	}
	fmt.Println(headerStyle.Render("ringworld archive: " + globs.String()))
	row("games", sum.Games)
	row("moves", sum.Moves)
	row("red wins", sum.RedWins)
	row("blue wins", sum.BlueWins)
	row("draws", sum.Draws)
	row("avg plies", fmt.Sprintf("%.1f", sum.AvgPlies))
	row("max plies", sum.MaxPlies)

	if len(sources) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("by source"))
		for _, sc := range sources {
			row(sc.Source, sc.Games)
		}
	}
}
