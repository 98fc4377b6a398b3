package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresmejia3/visage/internal/makeup"
	"github.com/andresmejia3/visage/internal/store"
	"github.com/andresmejia3/visage/internal/worker"
	"github.com/spf13/cobra"
)

var (
	// DB is the optional landmark cache shared by subcommands. It stays nil
	// unless --db or POSTGRES_HOST is given.
	DB *store.Store
	// dbURL is the connection string
	dbURL string

	verbose       bool
	workerCfg     worker.Config
	workerTimeout time.Duration
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "visage",
	Short:   "Landmark-driven virtual makeup for face photos",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)
		workerCfg.ReadTimeout = workerTimeout

		url := databaseURL(dbURL, os.Getenv)
		if url == "" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		var err error
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

// databaseURL resolves the cache connection string: the flag wins, then the
// POSTGRES_* environment. An empty result means no cache.
func databaseURL(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	makeup.SetLogger(logger)
}

// requireDB is used by the commands that only make sense with a cache.
func requireDB() error {
	if DB == nil {
		return fmt.Errorf("no database configured (use --db or POSTGRES_HOST)")
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbURL, "db", "", "PostgreSQL connection string for the landmark cache (default: from POSTGRES_* env, else no cache)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging and full error details")
	pf.StringVar(&workerCfg.Predictor, "predictor", os.Getenv("VISAGE_PREDICTOR"), "Path to the dlib 68-point shape predictor (env VISAGE_PREDICTOR)")
	pf.StringVar(&workerCfg.Python, "python", "python3", "Python interpreter for the landmark worker")
	pf.StringVar(&workerCfg.Script, "worker-script", "python/landmarks.py", "Landmark worker script")
	pf.DurationVar(&workerTimeout, "worker-timeout", 30*time.Second, "Kill a landmark worker that does not answer in time")
}
