/*
Package config implements a parser for decoder configuration represented in
the TOML format: https://github.com/toml-lang/toml.

Please refer to the TOML repos for an in-depth description of the syntax.

Each pipeline stage and each outer surface of the decoder is configured
by a TOML table of key:value pairs.  Every table and parameter is optional;
omitted parameters take their default values.

	# debug enables debug level logging of lock and framing diagnostics.
	debug = false

	[input]

	# path names the bitstream capture to decode.  "-" reads standard input.
	path = "capture.bin"

	# format specifies the capture format.
	# Currently supported values are "unpacked" (one bit per byte),
	# "packed" (eight bits per byte, most significant first) and
	# "mlt3" (little endian float32 line samples).
	format = "unpacked"

	# threshold is the slicing threshold applied to mlt3 samples.
	threshold = 0.33

	# batch_size is the number of bits read from the input at once.
	batch_size = 8192

	[descrambler]

	# search_window is the number of bits each candidate descrambler
	# state is tested against while searching for lock.
	search_window = 50

	# idle_run is the run of descrambled ones recognised as idle.
	# It may not exceed search_window.
	idle_run = 40

	# max_idle_no_idle is the number of bits which may pass outside a
	# frame without an idle run before lock is dropped.
	max_idle_no_idle = 100

	# max_in_frame_no_idle is the corresponding limit inside a frame.
	max_in_frame_no_idle = 20000

	# check_interval is how often, in bits, the lock is checked.
	check_interval = 50

	[framer]

	# stall_timeout is the number of bits after a start delimiter
	# within which the end delimiter must be seen.
	stall_timeout = 30000

	[dissector]

	# preview_bytes caps the transport payload preview.
	preview_bytes = 64

	[output]

	# log enables a summary log line per frame.
	log = true

	# json, if set, names a file receiving one JSON record per frame.
	# "-" writes to standard output.
	json = "frames.json"

	# pcap, if set, names a pcap file receiving the recovered frames.
	pcap = "frames.pcap"

	# inject_interface, if set, names a network interface the recovered
	# frames are transmitted on.
	inject_interface = "veth0"

	# inject_strip_fcs drops the frame check sequence from injected frames.
	inject_strip_fcs = true

	[metrics]

	# listen, if set, serves the expvar counters over HTTP at /debug/vars.
	listen = "127.0.0.1:9120"

	# prefix names the published counters.
	prefix = "ethphy"

	[inspector]

	# enabled serves the most recently recovered frames as JSON at
	# /frames on the [metrics] listen address, which must be set.
	# POST /clear discards them.
	enabled = true

	# size is the number of frames retained, newest first.
	size = 500
*/
package config

import (
	"fmt"

	"github.com/katalix/go-ethphy/bitstream"
	"github.com/katalix/go-ethphy/linecode"
	"github.com/katalix/go-ethphy/phy"
	"github.com/pelletier/go-toml"
)

// Config contains the decoder configuration.
type Config struct {
	// The entire tree as a map as parsed from the TOML representation.
	Map map[string]interface{}
	// Debug enables debug logging.
	Debug bool
	// Pipeline configures the decoding stages.
	Pipeline  phy.Config
	Input     InputConfig
	Output    OutputConfig
	Metrics   MetricsConfig
	Inspector InspectorConfig
}

// InputConfig describes the bitstream source.
type InputConfig struct {
	Path      string
	Format    bitstream.Format
	Threshold float32
}

// OutputConfig selects the event handlers receiving frames.
type OutputConfig struct {
	Log             bool
	JSONPath        string
	PcapPath        string
	InjectInterface string
	InjectStripFCS  bool
}

// MetricsConfig controls publication of the pipeline counters.
type MetricsConfig struct {
	Listen string
	Prefix string
}

// InspectorConfig controls the live frame inspector.
type InspectorConfig struct {
	Enabled bool
	Size    int
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Map:      map[string]interface{}{},
		Pipeline: phy.DefaultConfig(),
		Input: InputConfig{
			Path:      "-",
			Format:    bitstream.FormatUnpacked,
			Threshold: linecode.DefaultThreshold,
		},
		Output: OutputConfig{
			Log: true,
		},
		Metrics: MetricsConfig{
			Prefix: "ethphy",
		},
		Inspector: InspectorConfig{
			Size: phy.DefaultInspectorSize,
		},
	}
}

func toBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("supplied value could not be parsed as a bool")
}

// go-toml's ToMap function represents numbers as either uint64 or int64.
// So when we are converting numbers, we need to figure out which one it
// has picked and range check to ensure that the number from the config
// is positive and fits within an int.
func toPositiveInt(v interface{}) (int, error) {
	const maxInt = int64(^uint32(0) >> 1)
	if b, ok := v.(int64); ok {
		if b < 1 || b > maxInt {
			return 0, fmt.Errorf("value %d out of range", b)
		}
		return int(b), nil
	} else if b, ok := v.(uint64); ok {
		if b < 1 || b > uint64(maxInt) {
			return 0, fmt.Errorf("value %d out of range", b)
		}
		return int(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toNonNegativeInt(v interface{}) (int, error) {
	if b, ok := v.(int64); ok && b == 0 {
		return 0, nil
	} else if b, ok := v.(uint64); ok && b == 0 {
		return 0, nil
	}
	return toPositiveInt(v)
}

func toFloat32(v interface{}) (float32, error) {
	switch f := v.(type) {
	case float64:
		return float32(f), nil
	case int64:
		return float32(f), nil
	case uint64:
		return float32(f), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toFormat(v interface{}) (bitstream.Format, error) {
	s, err := toString(v)
	if err != nil {
		return 0, err
	}
	return bitstream.ParseFormat(s)
}

func toTable(name string, v interface{}) (map[string]interface{}, error) {
	t, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%v must be a table, e.g. '[%v]'", name, name)
	}
	return t, nil
}

func (cfg *Config) loadInput(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "path":
			cfg.Input.Path, err = toString(v)
		case "format":
			cfg.Input.Format, err = toFormat(v)
		case "threshold":
			cfg.Input.Threshold, err = toFloat32(v)
		case "batch_size":
			cfg.Pipeline.BatchSize, err = toPositiveInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	if _, err := linecode.NewSlicer3(cfg.Input.Threshold); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) loadDescrambler(t map[string]interface{}) error {
	dc := &cfg.Pipeline.Descrambler
	for k, v := range t {
		var err error
		switch k {
		case "search_window":
			dc.SearchWindow, err = toPositiveInt(v)
		case "idle_run":
			dc.IdleRun, err = toPositiveInt(v)
		case "max_idle_no_idle":
			dc.MaxIdleNoIdle, err = toPositiveInt(v)
		case "max_in_frame_no_idle":
			dc.MaxInFrameNoIdle, err = toPositiveInt(v)
		case "check_interval":
			dc.CheckInterval, err = toPositiveInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return dc.Validate()
}

func (cfg *Config) loadFramer(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "stall_timeout":
			cfg.Pipeline.Framer.StallTimeout, err = toPositiveInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return cfg.Pipeline.Framer.Validate()
}

func (cfg *Config) loadDissector(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "preview_bytes":
			cfg.Pipeline.Dissector.PreviewBytes, err = toNonNegativeInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return cfg.Pipeline.Dissector.Validate()
}

func (cfg *Config) loadOutput(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "log":
			cfg.Output.Log, err = toBool(v)
		case "json":
			cfg.Output.JSONPath, err = toString(v)
		case "pcap":
			cfg.Output.PcapPath, err = toString(v)
		case "inject_interface":
			cfg.Output.InjectInterface, err = toString(v)
		case "inject_strip_fcs":
			cfg.Output.InjectStripFCS, err = toBool(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func (cfg *Config) loadMetrics(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "listen":
			cfg.Metrics.Listen, err = toString(v)
		case "prefix":
			cfg.Metrics.Prefix, err = toString(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	if cfg.Metrics.Prefix == "" {
		return fmt.Errorf("prefix may not be empty")
	}
	return nil
}

func (cfg *Config) loadInspector(t map[string]interface{}) error {
	for k, v := range t {
		var err error
		switch k {
		case "enabled":
			cfg.Inspector.Enabled, err = toBool(v)
		case "size":
			cfg.Inspector.Size, err = toPositiveInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := Default()
	cfg.Map = tree.ToMap()

	loaders := map[string]func(map[string]interface{}) error{
		"input":       cfg.loadInput,
		"descrambler": cfg.loadDescrambler,
		"framer":      cfg.loadFramer,
		"dissector":   cfg.loadDissector,
		"output":      cfg.loadOutput,
		"metrics":     cfg.loadMetrics,
		"inspector":   cfg.loadInspector,
	}

	for k, v := range cfg.Map {
		if k == "debug" {
			b, err := toBool(v)
			if err != nil {
				return nil, fmt.Errorf("failed to process %v: %v", k, err)
			}
			cfg.Debug = b
			continue
		}
		load, ok := loaders[k]
		if !ok {
			return nil, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		t, err := toTable(k, v)
		if err != nil {
			return nil, err
		}
		if err := load(t); err != nil {
			return nil, fmt.Errorf("%v: %v", k, err)
		}
	}
	if cfg.Inspector.Enabled && cfg.Metrics.Listen == "" {
		return nil, fmt.Errorf("inspector: requires a metrics listen address")
	}
	return cfg, nil
}

// LoadFile loads configuration from the specified file.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from the specified string.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}
