// Package config resolves which batch adapter serves the current host. The
// mapping lives in a small YAML table so clusters can be added without code
// changes; adapter implementations themselves are compiled in and found via
// the batch registry.
package config

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

// Hosts maps a hostname to the name of a registered batch adapter.
type Hosts map[string]string

// LoadHosts reads a hosts table:
//
//	tarkil.cesnet.cz: pbs
//	login1.cluster:   slurm
func LoadHosts(path string) (Hosts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading hosts table %s", path)
	}
	var h Hosts
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "parsing hosts table %s", path)
	}
	return h, nil
}

// Resolve returns the adapter name for hostname, falling back to a "default"
// entry if present.
func (h Hosts) Resolve(hostname string) (string, error) {
	if name, ok := h[hostname]; ok {
		return name, nil
	}
	if name, ok := h["default"]; ok {
		return name, nil
	}
	return "", errors.Errorf("no batch adapter configured for host %q", hostname)
}
