package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/visage/internal/store"
	"github.com/andresmejia3/visage/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the photos in the landmark cache",
	Run: func(cmd *cobra.Command, args []string) {
		if err := requireDB(); err != nil {
			utils.Die("Cannot list cached photos", err, nil)
		}
		records, err := DB.ListImages(cmd.Context())
		if err != nil {
			utils.Die("Failed to list cached photos", err, nil)
		}
		printImages(os.Stdout, records)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printImages(out io.Writer, records []store.ImageRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No photos found in the landmark cache.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH\tFACE\tINDEXED")
	fmt.Fprintln(w, "--\t----\t----\t-------")

	for _, r := range records {
		face := "no"
		if r.HasFace {
			face = "yes"
		}
		id := r.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, r.Path, face, r.IndexedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
