package build

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"esocc/common"
	"esocc/report"

	"github.com/pelletier/go-toml"
)

// Enumeration of output kinds.
const (
	OutputAsm = "asm"
	OutputObj = "obj"
	OutputBin = "bin"
)

// Profile is a build profile.  Profiles are read from an optional
// `esocc.toml`; command-line flags override the values it sets.
type Profile struct {
	// One of the enumerated output kinds.
	Output string `toml:"output"`

	OutputPath string `toml:"output-path"`

	// The path to a target description.  The built-in description is used
	// when this is empty.
	TargetPath string `toml:"target"`

	LogLevel string `toml:"log-level"`

	Peephole bool `toml:"peephole"`
	Verify   bool `toml:"verify"`

	// The maximum number of functions compiled concurrently.
	Workers int `toml:"workers"`

	// The load address of flat binaries.
	Base int64 `toml:"base-address"`

	// Whether to write the IR and its LLVM export next to the output.
	EmitIR   bool `toml:"emit-ir"`
	EmitLLVM bool `toml:"emit-llvm"`

	// Objects linked into every program.
	LinkObjects []string `toml:"link-objects"`
}

// DefaultProfile returns the profile used when no profile file exists.
func DefaultProfile() *Profile {
	return &Profile{
		Output:     OutputBin,
		OutputPath: common.DefaultOutputName + common.BinaryFileExt,
		LogLevel:   "verbose",
		Peephole:   true,
		Verify:     true,
		Workers:    runtime.NumCPU(),
	}
}

// LoadProfile loads a profile file over the defaults.  A missing file yields
// the default profile.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}

		return nil, fmt.Errorf("loading build profile: %w", err)
	}

	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing build profile %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("build profile %s: %w", path, err)
	}

	return p, nil
}

// Validate checks the values of the profile.
func (p *Profile) Validate() error {
	switch p.Output {
	case OutputAsm, OutputObj, OutputBin:
	default:
		return fmt.Errorf("unknown output kind `%s`", p.Output)
	}

	if _, ok := report.LogLevelNames[p.LogLevel]; !ok {
		return fmt.Errorf("unknown log level `%s`", p.LogLevel)
	}

	if p.Workers < 1 {
		p.Workers = 1
	}

	if p.Base < 0 {
		return fmt.Errorf("negative base address %d", p.Base)
	}

	return nil
}
