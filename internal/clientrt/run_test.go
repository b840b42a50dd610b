package clientrt

import (
	"reflect"
	"testing"

	"github.com/stanley-fork/unport/internal/detect"
	"github.com/stanley-fork/unport/internal/projectconfig"
)

func TestInjectPortCliFlag(t *testing.T) {
	got := injectPort([]string{"npm", "run", "dev"}, 4000,
		detect.PortStrategy{Kind: detect.CliFlag, Name: "--port"})
	want := []string{"npm", "run", "dev", "--port", "4000"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestInjectPortColonSuffixAppendsOneToken(t *testing.T) {
	got := injectPort([]string{"python", "manage.py", "runserver"}, 4001,
		detect.PortStrategy{Kind: detect.CliFlag, Name: "0.0.0.0:"})
	want := []string{"python", "manage.py", "runserver", "0.0.0.0:4001"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestInjectPortEnvVarLeavesArgvAlone(t *testing.T) {
	argv := []string{"npm", "run", "dev"}
	got := injectPort(argv, 4000, detect.PortStrategy{Kind: detect.EnvVar, Name: "PORT"})
	if !reflect.DeepEqual(got, argv) {
		t.Fatalf("got %v, want %v", got, argv)
	}
}

func TestEffectiveStrategyPrecedence(t *testing.T) {
	detected := detect.Detection{
		PortStrategy: detect.PortStrategy{Kind: detect.EnvVar, Name: "PORT"},
	}

	tests := []struct {
		name string
		cfg  projectconfig.Config
		want detect.PortStrategy
	}{
		{
			name: "portArg wins over portEnv and detection",
			cfg:  projectconfig.Config{PortArg: "--port", PortEnv: "MY_PORT"},
			want: detect.PortStrategy{Kind: detect.CliFlag, Name: "--port"},
		},
		{
			name: "portEnv wins over detection",
			cfg:  projectconfig.Config{PortEnv: "MY_PORT"},
			want: detect.PortStrategy{Kind: detect.EnvVar, Name: "MY_PORT"},
		},
		{
			name: "detection is the fallback",
			cfg:  projectconfig.Config{},
			want: detect.PortStrategy{Kind: detect.EnvVar, Name: "PORT"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveStrategy(&tt.cfg, detected)
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpawnInjectsEnvPort(t *testing.T) {
	cmd, err := spawn("sh -c exit", 4321, detect.PortStrategy{Kind: detect.EnvVar, Name: "PORT"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer cmd.Wait()

	found := false
	for _, kv := range cmd.Env {
		if kv == "PORT=4321" {
			found = true
		}
	}
	if !found {
		t.Fatal("child environment is missing PORT=4321")
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	if _, err := spawn("", 4000, detect.PortStrategy{}); err == nil {
		t.Fatal("expected error for empty start command")
	}
}
