package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/visage/internal/types"
	"github.com/spf13/cobra"
)

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "List the named colors accepted by apply",
	Run: func(cmd *cobra.Command, args []string) {
		printPalette(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(paletteCmd)
}

func printPalette(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tHEX\tRGB")
	fmt.Fprintln(w, "----\t---\t---")
	for _, name := range types.PaletteNames() {
		c := types.Palette[name]
		fmt.Fprintf(w, "%s\t%s\t%d,%d,%d\n", name, c.Hex(), c.R, c.G, c.B)
	}
	w.Flush()
}
