package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/offaxis/internal/api"
	"github.com/banshee-data/offaxis/internal/config"
	"github.com/banshee-data/offaxis/internal/db"
	"github.com/banshee-data/offaxis/internal/offaxis"
	"github.com/banshee-data/offaxis/internal/report"
	"github.com/banshee-data/offaxis/internal/rig"
	"github.com/banshee-data/offaxis/internal/scene"
	"github.com/banshee-data/offaxis/internal/security"
	"github.com/banshee-data/offaxis/internal/units"
)

const defaultDBPath = "offaxis.db"

// pairFlags are shared by the commands that work on a single pair.
type pairFlags struct {
	rigPath    *string
	camera     *string
	rect       *string
	configPath *string
}

func addPairFlags(fs *flag.FlagSet) pairFlags {
	return pairFlags{
		rigPath:    fs.String("rig", "", "Rig file (.json, required)"),
		camera:     fs.String("camera", "", "Camera name (required)"),
		rect:       fs.String("rect", "", "Rectangle name (required)"),
		configPath: fs.String("config", "", "Solver tuning config (.json)"),
	}
}

func (pf pairFlags) validate() error {
	if *pf.rigPath == "" || *pf.camera == "" || *pf.rect == "" {
		return errors.New("--rig, --camera and --rect are required")
	}
	return nil
}

// load reads the rig and tuning config named by pf.
func (pf pairFlags) load() (*scene.Memory, []scene.Pair, *config.TuningConfig, error) {
	if err := pf.validate(); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.LoadOrDefault(*pf.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	m, pairs, err := scene.LoadFile(*pf.rigPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, pairs, cfg, nil
}

// checkOutputs rejects output paths outside the working and temp directories.
func checkOutputs(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := security.ValidateOutputPath(p); err != nil {
			return err
		}
	}
	return nil
}

func openDB(path string) (*db.DB, error) {
	if path == "" {
		return nil, nil
	}
	return db.NewDB(path)
}

func runSolve(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	pf := addPairFlags(fs)
	outPath := fs.String("out", "", "Write the updated rig to this file")
	dbPath := fs.String("db", "", "Record the solve in this database")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	fs.Parse(args)

	if err := checkOutputs(*outPath); err != nil {
		return err
	}
	m, pairs, cfg, err := pf.load()
	if err != nil {
		return err
	}

	start := time.Now()
	in, res, solveErr := scene.Solve(m, *pf.camera, *pf.rect, cfg.SolverOptions())
	elapsed := time.Since(start)

	database, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		run := &db.SolveRun{Source: "cli/solve", PairCount: 1, ElapsedNs: elapsed.Nanoseconds()}
		if solveErr != nil {
			run.FailedCount = 1
		}
		row := db.NewSolveResult(*pf.camera, *pf.rect, res, solveErr)
		if err := database.RecordRun(run, []*db.SolveResult{row}); err != nil {
			return err
		}
		log.Printf("recorded run %s", run.RunID)
	}

	if solveErr != nil {
		return solveErr
	}
	if err := scene.Apply(m, *pf.camera, res); err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(out, in, res)
	}

	if *outPath != "" {
		if err := scene.SaveFile(*outPath, m, pairs); err != nil {
			return err
		}
		log.Printf("wrote %s", *outPath)
	}
	return nil
}

// printResult writes a human-readable summary of one solve.
func printResult(w io.Writer, in offaxis.Inputs, res offaxis.SolverResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	loc := res.Transform.Translation()
	fmt.Fprintf(tw, "location\t%.6g %.6g %.6g\n", loc.X, loc.Y, loc.Z)
	for i, axis := range []string{"right", "up", "back"} {
		c := res.Transform.Column(i)
		fmt.Fprintf(tw, "%s\t%.6f %.6f %.6f\n", axis, c.X, c.Y, c.Z)
	}
	if res.Lens != nil {
		fmt.Fprintf(tw, "lens\t%.6g\n", *res.Lens)
		hfov := units.ConvertAngle(units.FieldOfView(*res.Lens, in.Camera.SensorWidth), units.Degrees)
		vfov := units.ConvertAngle(units.FieldOfView(*res.Lens, in.Camera.SensorHeight), units.Degrees)
		fmt.Fprintf(tw, "fov\t%.3f x %.3f deg\n", hfov, vfov)
	} else {
		fmt.Fprintf(tw, "lens\t(orthographic)\n")
	}
	fmt.Fprintf(tw, "shift\t%.6g %.6g\n", res.ShiftX, res.ShiftY)
	b := res.Bounds
	fmt.Fprintf(tw, "bounds\tl=%.6g r=%.6g b=%.6g t=%.6g\n", b.Left, b.Right, b.Bottom, b.Top)
	tw.Flush()
}

func runRig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rig", flag.ExitOnError)
	rigPath := fs.String("rig", "", "Rig file (.json, required)")
	configPath := fs.String("config", "", "Solver tuning config (.json)")
	outPath := fs.String("out", "", "Write the updated rig to this file")
	dbPath := fs.String("db", "", "Record the run in this database")
	chartPath := fs.String("chart", "", "Write an HTML shift chart to this file")
	fs.Parse(args)

	if *rigPath == "" {
		return errors.New("--rig is required")
	}
	if err := checkOutputs(*outPath, *chartPath); err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	m, pairs, err := scene.LoadFile(*rigPath)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("%s has no pairs", *rigPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	results := rig.SolveWithTimeout(ctx, m, pairs, cfg)
	elapsed := time.Since(start)

	if _, err := rig.Apply(m, results); err != nil {
		return err
	}
	printRigResults(out, results)

	database, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		run, rows := db.NewRun("cli/rig", results, elapsed)
		if err := database.RecordRun(run, rows); err != nil {
			return err
		}
		log.Printf("recorded run %s", run.RunID)
	}

	if *chartPath != "" {
		if err := writeChart(*chartPath, filepath.Base(*rigPath), results); err != nil {
			return err
		}
		log.Printf("wrote %s", *chartPath)
	}

	if *outPath != "" {
		if err := scene.SaveFile(*outPath, m, pairs); err != nil {
			return err
		}
		log.Printf("wrote %s", *outPath)
	}

	if _, failed := rig.Summary(results); failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(results))
	}
	return nil
}

func printRigResults(w io.Writer, results []rig.PairResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tLENS\tSHIFT_X\tSHIFT_Y\tSTATUS")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", r.Pair, r.Err)
			continue
		}
		lens := "ortho"
		if r.Result.Lens != nil {
			lens = fmt.Sprintf("%.4f", *r.Result.Lens)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\tok\n", r.Pair, lens, r.Result.ShiftX, r.Result.ShiftY)
	}
	tw.Flush()
}

func writeChart(path, title string, results []rig.PairResult) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	return report.ShiftChart(f, title, report.RigRows(results))
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	pf := addPairFlags(fs)
	maxErr := fs.Float64("max-error", 1e-6, "Fail when the corner error exceeds this (frame units)")
	fs.Parse(args)

	m, _, cfg, err := pf.load()
	if err != nil {
		return err
	}
	opts := cfg.SolverOptions()
	in, res, err := scene.Solve(m, *pf.camera, *pf.rect, opts)
	if err != nil {
		return err
	}
	worst, err := offaxis.Verify(in, res, opts)
	if err != nil {
		return err
	}

	// Frame units are fractions of the image; scale to pixels for reading.
	px := worst * float64(max(in.Resolution.X, in.Resolution.Y))
	fmt.Fprintf(out, "%s->%s: max corner error %.3g (%.3g px)\n", *pf.camera, *pf.rect, worst, px)
	if worst > *maxErr {
		return fmt.Errorf("corner error %.3g exceeds %.3g", worst, *maxErr)
	}
	return nil
}

func runPlot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	pf := addPairFlags(fs)
	outPath := fs.String("out", "", "PNG file to write (default <camera>-<rect>.png)")
	fs.Parse(args)

	m, _, cfg, err := pf.load()
	if err != nil {
		return err
	}
	if *outPath == "" {
		*outPath = security.SanitizeFilename(*pf.camera+"-"+*pf.rect) + ".png"
	}
	if err := checkOutputs(*outPath); err != nil {
		return err
	}
	in, res, err := scene.Solve(m, *pf.camera, *pf.rect, cfg.SolverOptions())
	if err != nil {
		return err
	}
	if err := report.PlotFrustum(*outPath, in, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", *outPath)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", ":8080", "Listen address")
	dbPath := fs.String("db", "", "Record solves in this database (disabled when empty)")
	configPath := fs.String("config", "", "Solver tuning config (.json)")
	fs.Parse(args)

	if *listen == "" {
		return errors.New("listen address is required")
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	database, err := openDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if database != nil {
		defer database.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(api.NewServer(database, cfg).ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
