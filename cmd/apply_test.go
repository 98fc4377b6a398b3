package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/makeup"
	"github.com/andresmejia3/visage/internal/store"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func diff(t *testing.T, want, got any, opts ...cmp.Option) {
	t.Helper()
	if d := cmp.Diff(want, got, opts...); d != "" {
		t.Error(d)
	}
}

var faceBox = image.Rect(50, 50, 450, 450)

func writePhoto(t *testing.T, dir, name string) string {
	t.Helper()
	img := imaging.New(500, 500, color.NRGBA{R: 210, G: 160, B: 140, A: 255})
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func templateFixture() landmarks.Fixture {
	set := landmarks.Template(faceBox)
	return landmarks.Fixture{Set: &set}
}

func TestBuildConfigs(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    map[types.Effect]types.Color
		wantErr bool
	}{
		{
			name: "Lipstick by name",
			opts: Options{Lipstick: "red"},
			want: map[types.Effect]types.Color{types.EffectLipstick: {R: 255}},
		},
		{
			name: "Every effect",
			opts: Options{Lipstick: "#8a0e22", Liner: "black", Blush: "162,59,108", Eyeshadow: "indigo"},
			want: map[types.Effect]types.Color{
				types.EffectLipstick:  {R: 138, G: 14, B: 34},
				types.EffectLiner:     {},
				types.EffectBlush:     {R: 162, G: 59, B: 108},
				types.EffectEyeshadow: {R: 75, B: 130},
			},
		},
		{name: "Nothing requested", opts: Options{}, wantErr: true},
		{name: "Bad color", opts: Options{Blush: "mauve-ish"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs, err := buildConfigs(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildConfigs() error = %v", err)
			}

			var order []types.Effect
			got := map[types.Effect]types.Color{}
			for _, cfg := range configs {
				order = append(order, cfg.Effect)
				if cfg.Enabled {
					got[cfg.Effect] = *cfg.Color
				}
			}
			diff(t, types.CanonicalOrder, order)
			diff(t, tt.want, got)
		})
	}
}

func TestOutputDirs(t *testing.T) {
	got := outputDirs("out", []string{"a/face.jpg", "b/face.png", "c/other.webp", "d/face.jpeg"})
	want := []string{
		filepath.Join("out", "face"),
		filepath.Join("out", "face_2"),
		filepath.Join("out", "other"),
		filepath.Join("out", "face_3"),
	}
	diff(t, want, got)
}

func TestDatabaseURL(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	tests := []struct {
		name string
		flag string
		env  map[string]string
		want string
	}{
		{name: "Flag wins", flag: "postgres://x/y", env: map[string]string{"POSTGRES_HOST": "db"}, want: "postgres://x/y"},
		{name: "No cache", env: map[string]string{}, want: ""},
		{
			name: "Environment",
			env:  map[string]string{"POSTGRES_HOST": "db", "POSTGRES_USER": "u", "POSTGRES_PASSWORD": "p", "POSTGRES_DB": "visage"},
			want: "postgres://u:p@db:5432/visage",
		},
		{
			name: "Custom port",
			env:  map[string]string{"POSTGRES_HOST": "db", "POSTGRES_PORT": "6543"},
			want: "postgres://:@db:6543/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := databaseURL(tt.flag, env(tt.env)); got != tt.want {
				t.Errorf("databaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyPhotos(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	paths := []string{writePhoto(t, in, "alice.png"), writePhoto(t, in, "bob.jpg")}
	configs, err := buildConfigs(Options{Lipstick: "red", Blush: "blush-purple"})
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := applyPhotos(context.Background(), paths, configs,
		Options{OutputDir: out, NumEngines: 2}, fixtureSource(templateFixture()))
	if err != nil {
		t.Fatalf("applyPhotos() error = %v", err)
	}

	for i, stem := range []string{"alice", "bob"} {
		if outcomes[i].Err != nil {
			t.Errorf("%s: %v", stem, outcomes[i].Err)
		}
		for _, name := range []string{"output_lipstick_color_255_0_0.jpg", "output_blush_color_162_59_108.jpg"} {
			if _, err := os.Stat(filepath.Join(out, stem, name)); err != nil {
				t.Errorf("missing output: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := summarize(&buf, outcomes); err != nil {
		t.Errorf("summarize() error = %v", err)
	}
	if !strings.Contains(buf.String(), "✅") {
		t.Errorf("summary missing success marker:\n%s", buf.String())
	}
}

func TestApplyPhotosNoFace(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	paths := []string{writePhoto(t, in, "wall.png")}
	configs, _ := buildConfigs(Options{Lipstick: "red"})

	outcomes, err := applyPhotos(context.Background(), paths, configs,
		Options{OutputDir: out}, fixtureSource(landmarks.Fixture{}))
	if err != nil {
		t.Fatalf("applyPhotos() error = %v", err)
	}
	if !errors.Is(outcomes[0].Err, makeup.ErrNoFaceDetected) {
		t.Errorf("error = %v, want ErrNoFaceDetected", outcomes[0].Err)
	}
	if _, err := os.Stat(filepath.Join(out, "wall")); !os.IsNotExist(err) {
		t.Errorf("expected no output directory, stat error = %v", err)
	}

	var buf bytes.Buffer
	if err := summarize(&buf, outcomes); err == nil {
		t.Error("expected summarize to report the failure")
	}
	if !strings.Contains(buf.String(), genericFailure) || strings.Contains(buf.String(), "no face") {
		t.Errorf("summary should only show the generic message:\n%s", buf.String())
	}
}

func TestSummarizeVerbose(t *testing.T) {
	verbose = true
	defer func() { verbose = false }()

	var buf bytes.Buffer
	summarize(&buf, []outcome{{Path: "x.jpg", Err: fmt.Errorf("%w: read failed", makeup.ErrIO)}})
	if !strings.Contains(buf.String(), "read failed") {
		t.Errorf("verbose summary missing details:\n%s", buf.String())
	}
}

func TestDetect(t *testing.T) {
	fx := templateFixture()

	var buf bytes.Buffer
	found, err := detect(context.Background(), fx, "face.png", nil, true, &buf)
	if err != nil || !found {
		t.Fatalf("detect() = %v, %v", found, err)
	}
	parsed, err := landmarks.ParseFixture(buf.Bytes())
	if err != nil {
		t.Fatalf("output is not a landmark file: %v", err)
	}
	diff(t, fx.Set, parsed.Set)

	buf.Reset()
	found, err = detect(context.Background(), landmarks.Fixture{}, "wall.png", nil, true, &buf)
	if err != nil || found {
		t.Fatalf("detect(no face) = %v, %v", found, err)
	}
	if !strings.Contains(buf.String(), "null") {
		t.Errorf("expected a null landmark file, got %s", buf.String())
	}

	buf.Reset()
	if _, err := detect(context.Background(), fx, "face.png", nil, false, &buf); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != types.NumLandmarks+2 {
		t.Errorf("table has %d lines, want %d", lines, types.NumLandmarks+2)
	}
}

func TestPrintPalette(t *testing.T) {
	var buf bytes.Buffer
	printPalette(&buf)
	for _, want := range []string{"red", "#ff0000", "blush-purple", "162,59,108"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("palette output missing %q", want)
		}
	}
}

type countingSource struct {
	fx    landmarks.Fixture
	calls atomic.Int32
}

func (c *countingSource) Landmarks(ctx context.Context, data []byte) (types.LandmarkSet, error) {
	c.calls.Add(1)
	return c.fx.Landmarks(ctx, data)
}

// TestApplyWithCache runs the batch twice against a real Postgres cache and
// verifies the detector is only asked once per photo.
func TestApplyWithCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("visage_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	DB, err = store.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer func() {
		DB.Close(ctx)
		DB = nil
	}()

	in := t.TempDir()
	path := writePhoto(t, in, "carol.png")
	configs, _ := buildConfigs(Options{Lipstick: "pink"})
	src := &countingSource{fx: templateFixture()}
	factory := func(int) (makeup.LandmarkSource, io.Closer, error) { return src, nopCloser{}, nil }

	for run := 0; run < 2; run++ {
		outcomes, err := applyPhotos(ctx, []string{path}, configs, Options{OutputDir: t.TempDir()}, factory)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if outcomes[0].Err != nil {
			t.Fatalf("run %d: %v", run, outcomes[0].Err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("detector called %d times, want 1", n)
	}

	records, err := DB.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(records) != 1 || records[0].Path != path || !records[0].HasFace {
		t.Errorf("unexpected cache contents: %+v", records)
	}

	var buf bytes.Buffer
	printImages(&buf, records)
	if !strings.Contains(buf.String(), "carol.png") {
		t.Errorf("list output missing photo:\n%s", buf.String())
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
