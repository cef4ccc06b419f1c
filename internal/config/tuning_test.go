package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/offaxis/internal/offaxis"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.OrthogonalityTolerance == nil || *cfg.OrthogonalityTolerance != 1e-7 {
		t.Errorf("Expected OrthogonalityTolerance 1e-7, got %v", cfg.OrthogonalityTolerance)
	}
	if cfg.RejectBehindPlane == nil || *cfg.RejectBehindPlane != true {
		t.Errorf("Expected RejectBehindPlane true, got %v", cfg.RejectBehindPlane)
	}
	if cfg.RigTimeout == nil || *cfg.RigTimeout != "30s" {
		t.Errorf("Expected RigTimeout '30s', got %v", cfg.RigTimeout)
	}

	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	if cfg.GetRigTimeout() != 30*time.Second {
		t.Errorf("GetRigTimeout() = %v, want 30s", cfg.GetRigTimeout())
	}
}

func TestEmptyTuningConfig_MatchesSolverDefaults(t *testing.T) {
	got := EmptyTuningConfig().SolverOptions()
	want := offaxis.DefaultOptions()
	if got != want {
		t.Errorf("SolverOptions() = %+v, want %+v", got, want)
	}
	if DefaultTuningConfig().SolverOptions() != want {
		t.Errorf("DefaultTuningConfig().SolverOptions() differs from solver defaults")
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "aspect_tolerance": 1e-5,
  "pixel_aspect_y": 2,
  "reject_behind_plane": false,
  "workers": 8,
  "rig_timeout": "5s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	opts := cfg.SolverOptions()
	if opts.AspectTolerance != 1e-5 {
		t.Errorf("AspectTolerance = %g, want 1e-5", opts.AspectTolerance)
	}
	if opts.OrthogonalityTolerance != 1e-7 {
		t.Errorf("OrthogonalityTolerance = %g, want default 1e-7", opts.OrthogonalityTolerance)
	}
	if opts.PixelAspectX != 1 || opts.PixelAspectY != 2 {
		t.Errorf("PixelAspect = %g:%g, want 1:2", opts.PixelAspectX, opts.PixelAspectY)
	}
	if opts.RejectBehindPlane {
		t.Error("RejectBehindPlane should be false")
	}
	if cfg.GetWorkers() != 8 {
		t.Errorf("GetWorkers() = %d, want 8", cfg.GetWorkers())
	}
	if cfg.GetRigTimeout() != 5*time.Second {
		t.Errorf("GetRigTimeout() = %v, want 5s", cfg.GetRigTimeout())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"wrong extension", write("config.yaml", `{}`)},
		{"missing file", filepath.Join(tmpDir, "nope.json")},
		{"bad json", write("bad.json", `{"workers":`)},
		{"negative tolerance", write("tol.json", `{"aspect_tolerance": -1}`)},
		{"zero pixel aspect", write("asp.json", `{"pixel_aspect_x": 0}`)},
		{"zero workers", write("workers.json", `{"workers": 0}`)},
		{"bad duration", write("dur.json", `{"rig_timeout": "soon"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTuningConfig(tt.path); err == nil {
				t.Errorf("expected error for %s", tt.path)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\") error: %v", err)
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
}

func TestDefaultsFile(t *testing.T) {
	cfg, err := LoadTuningConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("failed to load %s: %v", DefaultConfigPath, err)
	}
	if cfg.SolverOptions() != offaxis.DefaultOptions() {
		t.Errorf("defaults file disagrees with solver defaults: %+v", cfg.SolverOptions())
	}
}
