// Package config handles objbridge.toml bridge configuration.
package config

import (
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/wippyai/objbridge/errors"
)

// Arena backings.
const (
	ArenaHeap = "heap"
	ArenaWasm = "wasm"
)

// LevelOff disables logging.
const LevelOff = "off"

// Config configures a bridge.
type Config struct {
	// Arena selects the linear memory holding instance headers and storage.
	Arena string `toml:"arena" json:"arena" validate:"oneof=heap wasm" jsonschema:"enum=heap,enum=wasm,default=heap,description=Linear memory backing"`

	// ArenaSize is the heap arena capacity in bytes.
	ArenaSize uint32 `toml:"arena_size" json:"arena_size" validate:"min=64" jsonschema:"minimum=64,default=1048576,description=Heap arena capacity in bytes"`

	// WasmPages is the wazero arena capacity in 64 KiB pages.
	WasmPages uint32 `toml:"wasm_pages" json:"wasm_pages" validate:"min=1,max=1024" jsonschema:"minimum=1,maximum=1024,default=16,description=Wasm arena capacity in 64 KiB pages"`

	// InlineStorage lets pointer-free values live in instance storage. When
	// false every holder value is allocated on the Go heap.
	InlineStorage bool `toml:"inline_storage" json:"inline_storage" jsonschema:"default=true"`

	LogLevel  string `toml:"log_level" json:"log_level" validate:"oneof=debug info warn error off" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=off,default=off"`
	LogFormat string `toml:"log_format" json:"log_format" validate:"oneof=console json" jsonschema:"enum=console,enum=json,default=console"`
}

var validate = validator.New()

// Default returns the configuration used when none is given.
func Default() Config {
	return Config{
		Arena:         ArenaHeap,
		ArenaSize:     1 << 20,
		WasmPages:     16,
		InlineStorage: true,
		LogLevel:      LevelOff,
		LogFormat:     "console",
	}
}

// Load reads and validates a TOML file. Keys missing from the file keep
// their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Detail("cannot read config").
			Cause(err).
			Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
			e.Path = []string{path}
		}
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes and validates TOML data over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse error")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown key %q", undecoded[0].String()).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "config validation failed")
	}
	return nil
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&Config{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "failed to marshal schema")
	}
	return out, nil
}
