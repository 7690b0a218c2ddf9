// Command dwc2sim drives the DWC2 host channel engine against a simulated
// controller and device.
//
// Usage:
//
//	dwc2sim init [--format=yaml|toml] [--output=FILE]
//	dwc2sim run [--metrics-listen=ADDR] [--linger] SCENARIO
//
// A scenario file describes the controller, the device attached to it, and
// the transfers to run once the device is enumerated. Global flags may also
// be set from a YAML, TOML, or JSON file given with --config.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/ardnew/dwc2hcd/pkg"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentCLI

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dwc2sim"),
		kong.Description("Run USB transfers through the DWC2 host channel engine on a simulated controller."),
		kong.UsageOnError(),
		configLoader(findUserConfig(os.Args[1:])),
	)

	cli.Log.Apply(os.Stderr)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// configLoader returns the kong option that loads flag values from path,
// choosing the decoder by extension.
func configLoader(path string) kong.Option {
	if path == "" {
		return kong.Configuration(kong.JSON)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return kong.Configuration(kongyaml.Loader, path)
	case ".toml":
		return kong.Configuration(kongtoml.Loader, path)
	default:
		return kong.Configuration(kong.JSON, path)
	}
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("DWC2SIM_CONFIG")
}
