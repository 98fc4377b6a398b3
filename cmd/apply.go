package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/makeup"
	"github.com/andresmejia3/visage/internal/store"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
	"github.com/andresmejia3/visage/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// genericFailure is all a user sees about a failed photo without --verbose.
const genericFailure = "could not process this photo"

// Options holds the configuration of the apply command.
type Options struct {
	Lipstick      string
	Liner         string
	Blush         string
	Eyeshadow     string
	OutputDir     string
	LandmarksPath string
	NumEngines    int
}

var applyOpts Options

var applyCmd = &cobra.Command{
	Use:   "apply [photos or directories...]",
	Short: "Apply makeup effects to face photos",
	Long: `Applies the requested effects in canonical order (lipstick, liner, blush,
eyeshadow). Every applied effect writes output_<effect>_color_<r>_<g>_<b>.jpg
into <out>/<photo name>/. Colors are palette names, r,g,b or #rrggbb.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runApply(cmd.Context(), args, applyOpts); err != nil {
			utils.Die("Apply failed", err, nil)
		}
	},
}

func init() {
	f := applyCmd.Flags()
	f.StringVar(&applyOpts.Lipstick, "lipstick", "", "Lipstick color")
	f.StringVar(&applyOpts.Liner, "liner", "", "Eyeliner color (--liner alone uses black)")
	f.StringVar(&applyOpts.Blush, "blush", "", "Blush color")
	f.StringVar(&applyOpts.Eyeshadow, "eyeshadow", "", "Eyeshadow color")
	f.StringVarP(&applyOpts.OutputDir, "out", "o", "output", "Output directory")
	f.StringVarP(&applyOpts.LandmarksPath, "landmarks", "l", "", "Landmark JSON file to use instead of the detector")
	f.IntVarP(&applyOpts.NumEngines, "engines", "e", 1, "Number of parallel detector workers")
	f.Lookup("liner").NoOptDefVal = "black"

	rootCmd.AddCommand(applyCmd)
}

// buildConfigs turns the color flags into effect configs in canonical order.
func buildConfigs(opts Options) ([]types.EffectConfig, error) {
	flags := map[types.Effect]string{
		types.EffectLipstick:  opts.Lipstick,
		types.EffectLiner:     opts.Liner,
		types.EffectBlush:     opts.Blush,
		types.EffectEyeshadow: opts.Eyeshadow,
	}

	var configs []types.EffectConfig
	requested := false
	for _, e := range types.CanonicalOrder {
		cfg := types.EffectConfig{Effect: e}
		if v := flags[e]; v != "" {
			c, err := types.ParseColor(v)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", e, err)
			}
			cfg.Color = &c
			cfg.Enabled = true
			requested = true
		}
		configs = append(configs, cfg)
	}
	if !requested {
		return nil, fmt.Errorf("no effect requested (use --lipstick, --liner, --blush or --eyeshadow)")
	}
	return configs, nil
}

// outputDirs gives every photo its own directory under root, named after
// the file. Photos sharing a name get a numeric suffix.
func outputDirs(root string, paths []string) []string {
	used := make(map[string]int)
	dirs := make([]string, len(paths))
	for i, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		name := stem
		if n := used[stem]; n > 0 {
			name = fmt.Sprintf("%s_%d", stem, n+1)
		}
		used[stem]++
		dirs[i] = filepath.Join(root, name)
	}
	return dirs
}

// sourceFactory creates the landmark source owned by one engine.
type sourceFactory func(engineID int) (makeup.LandmarkSource, io.Closer, error)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func fixtureSource(fx landmarks.Fixture) sourceFactory {
	return func(int) (makeup.LandmarkSource, io.Closer, error) {
		return fx, nopCloser{}, nil
	}
}

func workerSource(cfg worker.Config) sourceFactory {
	return func(id int) (makeup.LandmarkSource, io.Closer, error) {
		e := &engineWorker{id: id, cfg: cfg}
		if err := e.start(); err != nil {
			return nil, nil, err
		}
		return e, e, nil
	}
}

// engineWorker owns one detector process and replaces it when it hangs or
// crashes, so one bad photo does not fail the rest of the batch.
type engineWorker struct {
	id  int
	cfg worker.Config
	w   *worker.PythonWorker
}

func (e *engineWorker) start() error {
	w, err := worker.NewPythonWorker(e.id, e.cfg)
	if err != nil {
		return err
	}
	e.w = w
	return nil
}

func (e *engineWorker) Landmarks(ctx context.Context, data []byte) (types.LandmarkSet, error) {
	if e.w == nil {
		if err := e.start(); err != nil {
			return types.LandmarkSet{}, err
		}
	}
	set, err := e.w.Landmarks(ctx, data)
	if workerLost(err) || ctx.Err() != nil {
		e.w.Close()
		if verbose {
			utils.ShowError(fmt.Sprintf("Worker %d lost, restarting", e.id), err, e.w.Cmd)
		}
		e.w = nil
	}
	return set, err
}

func (e *engineWorker) Close() error {
	if e.w != nil {
		e.w.Close()
	}
	return nil
}

func workerLost(err error) bool {
	return errors.Is(err, worker.ErrTimeout) ||
		errors.Is(err, worker.ErrWorkerDead) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// outcome is the result of one photo.
type outcome struct {
	Path    string
	Reports []makeup.Report
	Err     error
}

func runApply(ctx context.Context, args []string, opts Options) error {
	configs, err := buildConfigs(opts)
	if err != nil {
		return err
	}
	paths, err := utils.ListImages(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", strings.Join(args, ", "))
	}

	factory := workerSource(workerCfg)
	if opts.LandmarksPath != "" {
		fx, err := landmarks.LoadFixture(opts.LandmarksPath)
		if err != nil {
			return err
		}
		factory = fixtureSource(fx)
		opts.NumEngines = 1
	}
	if opts.NumEngines > len(paths) {
		opts.NumEngines = len(paths)
	}

	fmt.Fprintf(os.Stderr, "💄 Applying %s to %d photo(s)\n", describe(configs), len(paths))
	if opts.LandmarksPath == "" {
		fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Worker Engines...\n", max(1, opts.NumEngines))
	}
	if DB != nil {
		fmt.Fprintln(os.Stderr, "🗄️  Landmark cache enabled")
	}

	outcomes, err := applyPhotos(ctx, paths, configs, opts, factory)
	if err != nil {
		return err
	}
	return summarize(os.Stderr, outcomes)
}

// applyPhotos runs the batch on an engine pool. Every engine owns one
// landmark source; each photo is processed entirely by one engine.
func applyPhotos(ctx context.Context, paths []string, configs []types.EffectConfig, opts Options, factory sourceFactory) ([]outcome, error) {
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	dirs := outputDirs(opts.OutputDir, paths)
	outcomes := make([]outcome, len(paths))

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("💄 Visage"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	tasks := make(chan types.ImageTask, opts.NumEngines)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(tasks)
		for i, p := range paths {
			select {
			case tasks <- types.ImageTask{Index: i, Path: p}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < opts.NumEngines; i++ {
		id := i
		g.Go(func() error {
			src, closer, err := factory(id)
			if err != nil {
				return fmt.Errorf("worker %d startup failed: %w", id, err)
			}
			defer closer.Close()

			for task := range tasks {
				var source makeup.LandmarkSource = src
				if DB != nil {
					source = store.NewCachedSource(DB, src).ForPath(task.Path)
				}
				f := makeup.New(source, makeup.Config{OutputDir: dirs[task.Index]})

				res, err := f.Process(gctx, task.Path, configs)
				o := outcome{Path: task.Path, Err: err}
				if res != nil {
					o.Reports = res.Reports
				}
				outcomes[task.Index] = o
				bar.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	bar.Finish()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func describe(configs []types.EffectConfig) string {
	var parts []string
	for _, cfg := range configs {
		if cfg.Enabled {
			parts = append(parts, fmt.Sprintf("%s %s", cfg.Effect, cfg.Color.Hex()))
		}
	}
	return strings.Join(parts, ", ")
}

// summarize prints one block per photo and fails if any photo failed.
func summarize(w io.Writer, outcomes []outcome) error {
	failed := 0
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "📊 VISAGE SUMMARY\n")
	fmt.Fprintf(w, "---------------------------------------------------------\n")

	for _, o := range outcomes {
		if o.Err != nil && len(o.Reports) == 0 {
			failed++
			fmt.Fprintf(w, "\n❌ %s: %s\n", o.Path, genericFailure)
			if verbose {
				fmt.Fprintf(w, "   %v\n", o.Err)
			}
			continue
		}

		if o.Err != nil {
			failed++
			fmt.Fprintf(w, "\n⚠️  %s\n", o.Path)
		} else {
			fmt.Fprintf(w, "\n✅ %s\n", o.Path)
		}
		for _, r := range o.Reports {
			switch {
			case r.Output != "":
				fmt.Fprintf(w, "   %-10s -> %s\n", r.Effect, r.Output)
			case r.Skipped && r.Err != nil:
				fmt.Fprintf(w, "   %-10s skipped\n", r.Effect)
			case r.Err != nil:
				fmt.Fprintf(w, "   %-10s %s\n", r.Effect, genericFailure)
			}
			if verbose && r.Err != nil {
				fmt.Fprintf(w, "              %v\n", r.Err)
			}
		}
	}
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")

	if failed > 0 {
		return fmt.Errorf("%d of %d photo(s) could not be fully processed", failed, len(outcomes))
	}
	return nil
}
