package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/healthapp/reviews/services/review/internal/domain"
)

// UI writes colored, human-oriented output.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// NewUI returns a UI on stdout and stderr.
func NewUI() *UI {
	return &UI{Out: os.Stdout, ErrOut: os.Stderr}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	starColor     = color.New(color.FgHiYellow).SprintFunc()
	dim           = color.New(color.Faint).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	cyan          = color.New(color.FgHiCyan).SprintFunc()
)

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Table creates a borderless left-aligned table.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Stars renders a 1..5 rating as filled and empty stars.
func Stars(n int) string {
	n = max(0, min(n, 5))
	return starColor(strings.Repeat("★", n)) + dim(strings.Repeat("☆", 5-n))
}

// Distribution prints one bar per star, five first.
func (u *UI) Distribution(d domain.RatingDistribution) {
	fmt.Fprintf(u.Out, "%s  %.1f average from %d reviews\n", Stars(int(d.Mean+0.5)), d.Mean, d.Total)
	for stars := 5; stars >= 1; stars-- {
		pct := d.Percent(stars)
		bar := strings.Repeat("█", int(pct/5))
		fmt.Fprintf(u.Out, "  %d %-20s %3.0f%% (%d)\n", stars, starColor(bar), pct, d.Count(stars))
	}
}

func voteLabel(v domain.VoteType) string {
	switch v {
	case domain.VoteHelpful:
		return green("helpful")
	case domain.VoteNotHelpful:
		return red("not helpful")
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
