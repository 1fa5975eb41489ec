package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText prints v for terminal output.
func WriteText(w io.Writer, v View) error {
	if v.IsAdvisory() {
		_, err := fmt.Fprintf(w, "%s\n\n[%s]\n", v.Advisory, v.ResetLabel)
		return err
	}

	if _, err := fmt.Fprintf(w, "%s\n%s\n", v.Heading, strings.Repeat("=", len(v.Heading))); err != nil {
		return err
	}
	for _, card := range v.Cards {
		if _, err := fmt.Fprintf(w, "\n%s\n", card.Title); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range card.Fields {
			fmt.Fprintf(tw, "  %s\t%s\n", f.Label, f.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n[%s]\n", v.ResetLabel)
	return err
}
