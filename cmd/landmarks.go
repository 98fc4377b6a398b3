package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/makeup"
	"github.com/andresmejia3/visage/internal/store"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
	"github.com/spf13/cobra"
)

var landmarksJSON bool

var landmarksCmd = &cobra.Command{
	Use:   "landmarks [photo]",
	Short: "Check a photo for a face and print its 68 landmarks",
	Long: `Runs the landmark detector on a photo. With --json the points are printed
in the landmark file format accepted by "apply --landmarks".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		found, err := runLandmarks(cmd.Context(), args[0], landmarksJSON, os.Stdout)
		if err != nil {
			utils.Die(genericFailure, err, nil)
		}
		if !found {
			os.Exit(2)
		}
	},
}

func init() {
	landmarksCmd.Flags().BoolVar(&landmarksJSON, "json", false, "Print the landmarks as a landmark file")
	rootCmd.AddCommand(landmarksCmd)
}

func runLandmarks(ctx context.Context, path string, asJSON bool, out io.Writer) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	src, closer, err := workerSource(workerCfg)(0)
	if err != nil {
		return false, fmt.Errorf("worker startup failed: %w", err)
	}
	defer closer.Close()

	return detect(ctx, src, path, data, asJSON, out)
}

// detect reports what source sees in one photo. found is false when the
// photo has no face.
func detect(ctx context.Context, src makeup.LandmarkSource, path string, data []byte, asJSON bool, out io.Writer) (bool, error) {
	if DB != nil {
		src = store.NewCachedSource(DB, src).ForPath(path)
	}

	set, err := src.Landmarks(ctx, data)
	switch {
	case errors.Is(err, makeup.ErrNoFaceDetected):
		if asJSON {
			b, _ := landmarks.Encode(nil)
			fmt.Fprintln(out, string(b))
		} else {
			fmt.Fprintf(os.Stderr, "🙈 No face detected in %s\n", path)
		}
		return false, nil
	case err != nil:
		return false, err
	}

	if asJSON {
		b, err := landmarks.Encode(&set)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, string(b))
		return true, nil
	}

	fmt.Fprintf(os.Stderr, "🙂 Face found in %s\n", path)
	printLandmarks(out, &set)
	return true, nil
}

func printLandmarks(out io.Writer, set *types.LandmarkSet) {
	region := func(i int) string {
		switch {
		case i < landmarks.Jaw.End:
			return "jaw"
		case i < landmarks.LeftBrow.End:
			return "brow"
		case i < landmarks.Nose.End:
			return "nose"
		case i < landmarks.LeftEye.End:
			return "eye"
		default:
			return "mouth"
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tREGION\tX\tY")
	fmt.Fprintln(w, "-\t------\t-\t-")
	for i, p := range set {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i, region(i), p.X, p.Y)
	}
	w.Flush()
}
