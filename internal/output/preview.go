package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Preview prints the header and the first n rows of table to w
func Preview(w io.Writer, table Table, n int) error {
	if n <= 0 || len(table.Header) == 0 {
		return nil
	}
	if n > len(table.Rows) {
		n = len(table.Rows)
	}

	bold := color.New(color.Bold, color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range table.Header {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, bold(h))
	}
	fmt.Fprintln(tw)

	for _, row := range table.Rows[:n] {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if rest := len(table.Rows) - n; rest > 0 {
		_, err := fmt.Fprintln(w, dim(fmt.Sprintf("... %d more row(s)", rest)))
		return err
	}
	return nil
}
