package language

import (
	"errors"
	"reflect"
	"testing"
)

func TestSupportedOrder(t *testing.T) {
	r := Default()

	want := []string{"python", "javascript", "java", "cpp", "c", "go", "rust", "php", "ruby"}
	if got := r.Supported(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Supported() = %v, want %v", got, want)
	}

	// Callers must not be able to mutate the registry through the slice.
	got := r.Supported()
	got[0] = "cobol"
	if r.Supported()[0] != "python" {
		t.Error("Supported() returned shared backing array")
	}
}

func TestResolve(t *testing.T) {
	r := Default()

	tests := []struct {
		id      string
		command string
		ext     string
	}{
		{"python", "python3", "py"},
		{"PYTHON", "python3", "py"},
		{"JavaScript", "node", "js"},
		{"java", "java", "java"},
		{"cpp", "g++", "cpp"},
		{"c", "gcc", "c"},
		{"go", "go", "go"},
		{"Rust", "rustc", "rs"},
		{"php", "php", "php"},
		{"ruby", "ruby", "rb"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			cfg, err := r.Resolve(tt.id)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.id, err)
			}
			if cfg.Command != tt.command {
				t.Errorf("command = %q, want %q", cfg.Command, tt.command)
			}
			if cfg.Extension != tt.ext {
				t.Errorf("extension = %q, want %q", cfg.Extension, tt.ext)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	r := Default()

	for _, id := range []string{"cobol", "", "py", "pythonn", "c++", " python ", "ruby\n"} {
		_, err := r.Resolve(id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestSteps(t *testing.T) {
	r := Default()

	tests := []struct {
		id   string
		want [][]string
	}{
		{"python", [][]string{{"python3", "/tmp/a.py"}}},
		{"go", [][]string{{"go", "run", "/tmp/a.py"}}},
		{"cpp", [][]string{{"g++", "/tmp/a.py", "-o", "/tmp/a.bin"}, {"/tmp/a.bin"}}},
		{"rust", [][]string{{"rustc", "/tmp/a.py", "-o", "/tmp/a.bin"}, {"/tmp/a.bin"}}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			cfg, _ := r.Resolve(tt.id)
			steps := cfg.Steps("/tmp/a.py", "/tmp/a.bin")
			if len(steps) != len(tt.want) {
				t.Fatalf("got %d steps, want %d", len(steps), len(tt.want))
			}
			for i, s := range steps {
				if !reflect.DeepEqual(s.Argv(), tt.want[i]) {
					t.Errorf("step %d = %v, want %v", i, s.Argv(), tt.want[i])
				}
			}
			if cfg.Compiled && steps[0].Phase != PhaseCompile {
				t.Errorf("first phase = %q, want compile", steps[0].Phase)
			}
			if steps[len(steps)-1].Phase != PhaseRun {
				t.Errorf("last phase = %q, want run", steps[len(steps)-1].Phase)
			}
		})
	}
}

func TestCommandLine(t *testing.T) {
	cfg, _ := Default().Resolve("c")
	got := cfg.CommandLine("main.c", "main")
	if want := "gcc main.c -o main && main"; got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}

	if args := cfg.Args("main.c", "main"); !reflect.DeepEqual(args, []string{"main.c", "-o", "main"}) {
		t.Errorf("Args() = %v", args)
	}
}

func TestOverrides(t *testing.T) {
	r, err := NewRegistry(map[string]string{"Python": "/opt/python/bin/python3"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cfg, _ := r.Resolve("python")
	if cfg.Command != "/opt/python/bin/python3" {
		t.Errorf("command = %q", cfg.Command)
	}
	if len(r.Supported()) != 9 {
		t.Errorf("overrides must not change the id set")
	}

	if _, err := NewRegistry(map[string]string{"cobol": "cobc"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown override error = %v, want ErrNotFound", err)
	}
	if _, err := NewRegistry(map[string]string{"ruby": " "}); err == nil {
		t.Error("expected error for empty override")
	}
}

func TestByExtension(t *testing.T) {
	r := Default()

	cfg, err := r.ByExtension(".RS")
	if err != nil {
		t.Fatalf("ByExtension: %v", err)
	}
	if cfg.ID != "rust" {
		t.Errorf("id = %q, want rust", cfg.ID)
	}

	if _, err := r.ByExtension("cob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
