// File: cmd/mdssboot/docs.go
// Brief: `mdssboot docs` — render the bundled quickstart guide.

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/mdssboot/internal/bootstrap"
)

func newDocsCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Show the quickstart guide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := bootstrap.Quickstart()
			if raw || !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprint(os.Stdout, doc)
				return nil
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(80),
			)
			if err != nil {
				fmt.Fprint(os.Stdout, doc)
				return nil
			}
			out, err := renderer.Render(doc)
			if err != nil {
				fmt.Fprint(os.Stdout, doc)
				return nil
			}
			fmt.Fprint(os.Stdout, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw markdown without terminal styling")
	return cmd
}
