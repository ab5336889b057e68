// Package cases defines the boundary shape of one test case and a minimal
// manifest loader. The full test-configuration language lives outside this
// tool; a manifest is just named command pipelines.
package cases

import (
	"os"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

// Case is one independent test case: a clean step, the simulation run
// itself, and comparisons against reference output. Every step is an argv
// vector; empty steps are skipped.
type Case struct {
	Name    string
	WorkDir string
	Clean   [][]string
	Run     [][]string
	Compare [][]string

	// Resource hints rendered into batch job scripts.
	Procs       int
	TimeLimit   string
	MemoryLimit string
}

type manifest struct {
	Cases []manifestCase `yaml:"cases"`
}

type manifestCase struct {
	Name        string   `yaml:"name"`
	WorkDir     string   `yaml:"workdir"`
	Clean       []string `yaml:"clean"`
	Run         []string `yaml:"run"`
	Compare     []string `yaml:"compare"`
	Procs       int      `yaml:"procs"`
	TimeLimit   string   `yaml:"time_limit"`
	MemoryLimit string   `yaml:"memory_limit"`
}

// Load reads a case manifest. Command strings are shell-split, not shell
// interpreted.
func Load(path string) ([]*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}

	cs := make([]*Case, 0, len(m.Cases))
	for _, mc := range m.Cases {
		if mc.Name == "" {
			return nil, errors.Errorf("manifest %s: case without a name", path)
		}
		c := &Case{
			Name:        mc.Name,
			WorkDir:     mc.WorkDir,
			Procs:       mc.Procs,
			TimeLimit:   mc.TimeLimit,
			MemoryLimit: mc.MemoryLimit,
		}
		if c.Procs < 1 {
			c.Procs = 1
		}
		for _, group := range []struct {
			cmds []string
			dst  *[][]string
		}{
			{mc.Clean, &c.Clean},
			{mc.Run, &c.Run},
			{mc.Compare, &c.Compare},
		} {
			for _, cmd := range group.cmds {
				argv, err := shlex.Split(cmd)
				if err != nil {
					return nil, errors.Wrapf(err, "case %s: splitting %q", mc.Name, cmd)
				}
				if len(argv) == 0 {
					continue
				}
				*group.dst = append(*group.dst, argv)
			}
		}
		if len(c.Run) == 0 {
			return nil, errors.Errorf("case %s: no run command", mc.Name)
		}
		cs = append(cs, c)
	}
	return cs, nil
}
