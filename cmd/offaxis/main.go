package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/offaxis/internal/db"
	"github.com/banshee-data/offaxis/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "solve":
		err = runSolve(args, os.Stdout)
	case "rig":
		err = runRig(args, os.Stdout)
	case "verify":
		err = runVerify(args, os.Stdout)
	case "plot":
		err = runPlot(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		dbPath := fs.String("db", defaultDBPath, "Path to the solve-run database")
		fs.Parse(args)
		db.RunMigrateCommand(fs.Args(), *dbPath)
	case "version":
		fmt.Printf("offaxis version %s\n", version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`offaxis - Off-axis camera solver for projection screens and LED walls

Usage: offaxis <command> [options]

Commands:
  solve      Aim one camera at one rectangle and print the result
  rig        Solve every camera/rectangle pair in a rig file
  verify     Solve one pair and report the corner reprojection error
  plot       Solve one pair and draw the frustum as a PNG
  serve      Run the HTTP API
  migrate    Manage the solve-run database schema
  version    Show offaxis version
  help       Show this help message

Common Flags:
  --rig <file>         Rig file (.json) with render settings, cameras, rectangles and pairs
  --camera <name>      Camera to solve (solve, verify, plot)
  --rect <name>        Rectangle to frame (solve, verify, plot)
  --config <file>      Solver tuning config (.json); omitted fields use defaults
  --db <file>          Record the solve in this SQLite database

Examples:
  # Solve one pair and write the updated rig back
  offaxis solve --rig stage.json --camera Cam --rect Wall --out stage.json

  # Solve a whole CAVE rig, record it and chart the shifts
  offaxis rig --rig cave.json --db runs.db --chart cave.html

  # Serve the API with persistence
  offaxis serve --listen :8080 --db runs.db

  # Show migration status
  offaxis migrate --db runs.db status`)
}
