package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/soundwave/internal/shared"
	tu "github.com/desertthunder/soundwave/internal/testing"
	"github.com/urfave/cli/v3"
)

func testRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "library.db")
	config.Library.Dir = filepath.Join(dir, "library")

	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(output),
		Output: output,
	}), output
}

func testApp(r *Runner) *cli.Command {
	return &cli.Command{Name: "soundwave", Commands: r.register()}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "config.toml" {
				t.Error("expected configPath to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register includes every command group", func(t *testing.T) {
		r, _ := testRunner(t)
		commands := r.register()

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "search", "library", "play"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestWriteHelpers(t *testing.T) {
	t.Run("writeJSON compact", func(t *testing.T) {
		r, output := testRunner(t)
		if err := r.writeJSON(map[string]string{"key": "value"}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if output.String() != "{\"key\":\"value\"}\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("writeJSON pretty", func(t *testing.T) {
		r, output := testRunner(t)
		if err := r.writeJSON(map[string]string{"key": "value"}, true); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if !strings.Contains(output.String(), "  \"key\": \"value\"") {
			t.Errorf("expected indented output, got %q", output.String())
		}
	})

	t.Run("writeJSON marshal failure", func(t *testing.T) {
		r, _ := testRunner(t)
		if err := r.writeJSON(make(chan int), false); err == nil {
			t.Error("expected marshal error for channel value")
		}
	})

	t.Run("writeJSON write failure", func(t *testing.T) {
		r, _ := testRunner(t)
		r.output = &tu.FWriter{}
		if err := r.writeJSON("data", false); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("writeJSON newline failure", func(t *testing.T) {
		r, _ := testRunner(t)
		limited := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
		r.output = &limited
		if err := r.writeJSON("data", false); err == nil {
			t.Error("expected error writing trailing newline")
		}
	})

	t.Run("writePlain formats args", func(t *testing.T) {
		r, output := testRunner(t)
		if err := r.writePlain("count: %d\n", 3); err != nil {
			t.Fatalf("writePlain failed: %v", err)
		}
		if output.String() != "count: 3\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("writePlain write failure", func(t *testing.T) {
		r, _ := testRunner(t)
		r.output = &tu.FWriter{}
		if err := r.writePlain("text"); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestSetupConfig(t *testing.T) {
	t.Run("writes starter config", func(t *testing.T) {
		r, _ := testRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		err := testApp(r).Run(context.Background(), []string{"soundwave", "setup", "config", "--path", path})
		if err != nil {
			t.Fatalf("setup config failed: %v", err)
		}

		tu.AssertFileExists(t, path)
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "[spotify]") {
			t.Error("expected spotify section in starter config")
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		r, _ := testRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
			t.Fatal(err)
		}

		err := testApp(r).Run(context.Background(), []string{"soundwave", "setup", "config", "--path", path})
		if err == nil {
			t.Error("expected error for existing config file")
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "library.db")
	configPath := filepath.Join(dir, "config.toml")

	configBody := "[database]\npath = \"" + dbPath + "\"\nmax_open_conns = 2\nmax_idle_conns = 1\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatal(err)
	}

	r, _ := testRunner(t)
	err := testApp(r).Run(context.Background(), []string{"soundwave", "setup", "database", "--config", configPath})
	if err != nil {
		t.Fatalf("setup database failed: %v", err)
	}

	tu.AssertFileExists(t, dbPath)
}

func TestLibraryList(t *testing.T) {
	r, output := testRunner(t)

	err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "list"})
	if err != nil {
		t.Fatalf("library list failed: %v", err)
	}

	if !strings.Contains(output.String(), "Library (0 tracks)") {
		t.Errorf("expected empty library listing, got %q", output.String())
	}
}

func TestLibraryPlaylists(t *testing.T) {
	r, output := testRunner(t)

	err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "playlists"})
	if err != nil {
		t.Fatalf("library playlists failed: %v", err)
	}

	listing := output.String()
	if !strings.Contains(listing, "Playlists (2)") {
		t.Errorf("expected the two seeded playlists, got %q", listing)
	}
	if !strings.Contains(listing, "My Music (my-music)") {
		t.Errorf("expected default playlist entry, got %q", listing)
	}
}

func TestLibraryCreate(t *testing.T) {
	r, output := testRunner(t)

	err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "create", "Road Trip Mix"})
	if err != nil {
		t.Fatalf("library create failed: %v", err)
	}

	if !strings.Contains(output.String(), "ID: road-trip-mix") {
		t.Errorf("expected created playlist ID, got %q", output.String())
	}

	output.Reset()
	err = testApp(r).Run(context.Background(), []string{"soundwave", "library", "playlists"})
	if err != nil {
		t.Fatalf("library playlists failed: %v", err)
	}
	if !strings.Contains(output.String(), "Road Trip Mix (road-trip-mix)") {
		t.Errorf("created playlist should show in the listing, got %q", output.String())
	}
}

func TestArgumentValidation(t *testing.T) {
	t.Run("search requires a query", func(t *testing.T) {
		r, _ := testRunner(t)
		err := testApp(r).Run(context.Background(), []string{"soundwave", "search"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("library add requires a path", func(t *testing.T) {
		r, _ := testRunner(t)
		err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "add"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("library create requires a name", func(t *testing.T) {
		r, _ := testRunner(t)
		err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "create"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("library remove requires an id", func(t *testing.T) {
		r, _ := testRunner(t)
		err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "remove"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("library export rejects unknown format", func(t *testing.T) {
		r, _ := testRunner(t)
		err := testApp(r).Run(context.Background(), []string{"soundwave", "library", "export", "--format", "xml"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
