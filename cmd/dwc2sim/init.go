package main

import (
	"os"
	"path/filepath"

	"github.com/efficientgo/core/errors"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/ardnew/dwc2hcd/pkg"
)

// InitCmd scaffolds a scenario file.
type InitCmd struct {
	Format string `help:"Output format." enum:"yaml,toml" default:"yaml"`
	Output string `help:"Destination file (defaults to scenario.<format> in the current directory)." type:"path"`
	Force  bool   `help:"Overwrite the destination if it exists."`
}

// Run is called by kong when the init command is executed.
func (c *InitCmd) Run() error {
	dest := c.Output
	if dest == "" {
		dest = "scenario." + c.Format
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.Newf("%s exists; use --force to overwrite", dest)
		}
	}

	data, err := marshalScenario(SampleScenario(), c.Format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", dest)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", dest)
	}
	pkg.LogInfo(component, "scenario written", "path", dest)
	return nil
}

func marshalScenario(sc *Scenario, format string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(sc)
	case "toml":
		data, err = toml.Marshal(*sc)
	default:
		return nil, errors.Newf("unsupported format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encode scenario as %s", format)
	}
	return data, nil
}
