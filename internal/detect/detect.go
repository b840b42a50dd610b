// Package detect infers which web framework a project directory is using,
// so unport can pick a sensible start command and port-injection strategy
// when the project has no unport.json override.
package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// PortStrategyKind distinguishes how the detected framework expects to
// receive its listen port.
type PortStrategyKind int

const (
	// EnvVar means the port is passed via an environment variable.
	EnvVar PortStrategyKind = iota
	// CliFlag means the port is passed as a command-line argument.
	CliFlag
)

// PortStrategy names the environment variable or CLI flag used to inject
// the assigned port into a spawned process.
type PortStrategy struct {
	Kind PortStrategyKind
	Name string // env var name, or CLI flag (e.g. "--port", "0.0.0.0:")
}

// Detection is the result of inspecting a project directory.
type Detection struct {
	Framework    string
	StartCommand string
	PortStrategy PortStrategy
}

type packageJSON struct {
	Scripts         map[string]string      `json:"scripts"`
	Dependencies    map[string]interface{} `json:"dependencies"`
	DevDependencies map[string]interface{} `json:"devDependencies"`
}

// Detect inspects dir and returns the best-guess framework detection.
// Detection never fails outright: an unrecognized project falls back to a
// generic "Unknown" detection rather than an error, since the start
// command is advisory and can always be overridden by unport.json.
func Detect(dir string) (Detection, error) {
	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		return detectNode(data)
	}

	if fileExists(filepath.Join(dir, "Gemfile")) {
		return Detection{
			Framework:    "Rails",
			StartCommand: "rails server",
			PortStrategy: PortStrategy{Kind: CliFlag, Name: "-p"},
		}, nil
	}

	if fileExists(filepath.Join(dir, "manage.py")) {
		return Detection{
			Framework:    "Django",
			StartCommand: "python manage.py runserver",
			// Django's runserver takes "bind:port" as a single positional
			// argument; the trailing colon tells the spawner to append
			// the port directly rather than as a separate argument.
			PortStrategy: PortStrategy{Kind: CliFlag, Name: "0.0.0.0:"},
		}, nil
	}

	if fileExists(filepath.Join(dir, "go.mod")) {
		return Detection{
			Framework:    "Go",
			StartCommand: "go run .",
			PortStrategy: PortStrategy{Kind: EnvVar, Name: "PORT"},
		}, nil
	}

	return Detection{
		Framework:    "Unknown",
		StartCommand: "npm run dev",
		PortStrategy: PortStrategy{Kind: EnvVar, Name: "PORT"},
	}, nil
}

func detectNode(data []byte) (Detection, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		// A malformed package.json still gets a generic Node.js fallback
		// instead of failing the whole detection.
		return Detection{
			Framework:    "Node.js",
			StartCommand: "npm run dev",
			PortStrategy: PortStrategy{Kind: EnvVar, Name: "PORT"},
		}, nil
	}

	deps := mergeDeps(pkg.Dependencies, pkg.DevDependencies)
	devScript := pkg.Scripts["dev"]

	envPort := PortStrategy{Kind: EnvVar, Name: "PORT"}

	switch {
	case has(deps, "next"):
		return Detection{Framework: "Next.js", StartCommand: "npm run dev", PortStrategy: envPort}, nil
	case has(deps, "vite") || strings.Contains(devScript, "vite"):
		return Detection{
			Framework:    "Vite",
			StartCommand: "npm run dev --",
			PortStrategy: PortStrategy{Kind: CliFlag, Name: "--port"},
		}, nil
	case has(deps, "react-scripts"):
		return Detection{Framework: "Create React App", StartCommand: "npm start", PortStrategy: envPort}, nil
	case has(deps, "@remix-run/dev"):
		return Detection{Framework: "Remix", StartCommand: "npm run dev", PortStrategy: envPort}, nil
	case has(deps, "nuxt"):
		return Detection{Framework: "Nuxt", StartCommand: "npm run dev", PortStrategy: envPort}, nil
	case has(deps, "@nestjs/core"):
		return Detection{Framework: "NestJS", StartCommand: "npm run start:dev", PortStrategy: envPort}, nil
	case has(deps, "fastify"):
		return Detection{Framework: "Fastify", StartCommand: "npm run dev", PortStrategy: envPort}, nil
	case has(deps, "express"):
		return Detection{Framework: "Express", StartCommand: "npm run dev", PortStrategy: envPort}, nil
	}

	startCmd := "npm run dev"
	if _, ok := pkg.Scripts["dev"]; !ok {
		if _, ok := pkg.Scripts["start"]; ok {
			startCmd = "npm start"
		}
	}

	return Detection{Framework: "Node.js", StartCommand: startCmd, PortStrategy: envPort}, nil
}

func mergeDeps(a, b map[string]interface{}) map[string]interface{} {
	all := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		all[k] = v
	}
	for k, v := range b {
		all[k] = v
	}
	return all
}

func has(m map[string]interface{}, key string) bool {
	_, ok := m[key]
	return ok
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
