package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/northbeck/papertrade/internal/app"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies",
	Run: func(cmd *cobra.Command, args []string) {
		reg := app.BuiltinStrategies()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION\tMIN CANDLES\t")
		fmt.Fprintln(w, "----\t-----------\t-----------\t")

		for _, name := range reg.Names() {
			s, _ := reg.Get(name)
			fmt.Fprintf(w, "%s\t%s\t%d\t\n", s.Name(), s.Description(), s.MinCandles())
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
