// Package console is the terminal Operator used by `ssd sweep`.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/table"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 120

const menu = `Commands:
  <numbers>  delete those copies (e.g. "1 3" or "1,3")
  c          keep all copies
  o <#>      open a copy for inspection
  s          skip this file
  q          quit and sync the ledger`

type line struct {
	text string
	err  error
}

// Console reads commands line by line from in and writes to out.
type Console struct {
	in    io.Reader
	out   io.Writer
	width int

	once  sync.Once
	lines chan line
}

var _ sweep.Operator = (*Console)(nil)

func New(in io.Reader, out io.Writer, width int) *Console {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Console{in: in, out: out, width: width, lines: make(chan line)}
}

// readLoop feeds lines to ReadCommand and Confirm so they can give up when
// ctx is cancelled while the terminal read stays blocked.
func (c *Console) readLoop() {
	r := bufio.NewReader(c.in)
	for {
		s, err := r.ReadString('\n')
		if s != "" {
			c.lines <- line{text: strings.TrimRight(s, "\r\n")}
		}
		if err != nil {
			c.lines <- line{err: err}
			return
		}
	}
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	c.once.Do(func() { go c.readLoop() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-c.lines:
		if l.err != nil {
			// Keep reporting the terminal error to later callers.
			go func() { c.lines <- l }()
		}
		return l.text, l.err
	}
}

// Present prints the numbered locations of the file under review.
func (c *Console) Present(r *sweep.Review) {
	fmt.Fprintf(c.out, "\nFile %d of %d\n", r.Index, r.Total)
	fmt.Fprintf(c.out, "File ID: %d (%s)\n", r.FileID, r.Filename)
	fmt.Fprintln(c.out, RenderTable(r.Entries, c.width))
}

// RenderTable lays out review entries as a table of at most width columns.
func RenderTable(entries []sweep.ReviewEntry, width int) string {
	const numW, sizeW, notesW = 4, 10, 12
	pathW := width - numW - sizeW - notesW - 8
	if pathW < 20 {
		pathW = 20
	}

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		note := "duplicate"
		if e.Current {
			note = "current loc"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(e.Number),
			e.LocalPath,
			FormatSize(e.Location.Size),
			note,
		})
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: numW},
			{Title: "File Path", Width: pathW},
			{Title: "Size", Width: sizeW},
			{Title: "Notes", Width: notesW},
		}),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+3),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.UnsetBold().UnsetForeground()
	t.SetStyles(styles)
	return t.View()
}

// ReadCommand prints the command menu and reads one line.
func (c *Console) ReadCommand(ctx context.Context) (string, error) {
	fmt.Fprintf(c.out, "\n%s\n\nYour choice: ", menu)
	return c.readLine(ctx)
}

// Confirm accepts only y or yes; an empty answer is no.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(c.out, "\n%s\n\nConfirm deletion? (yes/no) [no]: ", prompt)
	answer, err := c.readLine(ctx)
	if err != nil && answer == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (c *Console) Info(msg string)  { fmt.Fprintln(c.out, msg) }
func (c *Console) Warn(msg string)  { fmt.Fprintln(c.out, "warning: "+msg) }
func (c *Console) Error(msg string) { fmt.Fprintln(c.out, "error: "+msg) }

// FormatSize renders a byte count the way the review table shows it.
func FormatSize(n int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%d B", n)
	case n < mb:
		return fmt.Sprintf("%.0f KB", float64(n)/kb)
	case n < gb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
}
