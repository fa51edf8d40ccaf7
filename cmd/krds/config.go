package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/krds"
	"github.com/rawbytedev/krds/pkg/export"
)

// Config is the CLI configuration. It may come from a YAML or JSONC file;
// flags given on the command line take precedence.
type Config struct {
	Format   string `yaml:"format" json:"format"`
	Times    string `yaml:"times" json:"times"`
	Compress string `yaml:"compress" json:"compress"`
	MaxDepth int    `yaml:"max_depth" json:"max_depth"`
	Layout   string `yaml:"layout" json:"layout"`
	Verify   bool   `yaml:"verify" json:"verify"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	Jobs     int    `yaml:"jobs" json:"jobs"`
	Stdout   bool   `yaml:"stdout" json:"stdout"`
}

func defaultConfig() Config {
	return Config{
		Format:   "json",
		Times:    "iso",
		Compress: "none",
		MaxDepth: krds.DefaultMaxDepth,
		Layout:   "auto",
		LogLevel: "info",
		Jobs:     4,
	}
}

// loadConfig reads a config file. .yaml and .yml files are YAML; anything
// else is JSON with comments and trailing commas allowed.
func loadConfig(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(into); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(into); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

func addFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVarP(&c.Format, "format", "f", c.Format, "output format: json, yaml or cbor")
	fs.StringVar(&c.Times, "times", c.Times, "timestamp rendering: iso or raw")
	fs.StringVar(&c.Compress, "compress", c.Compress, "output compression: none, zstd or lz4")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "maximum container nesting")
	fs.StringVar(&c.Layout, "layout", c.Layout, "input layout: auto, reference or kindle")
	fs.BoolVar(&c.Verify, "verify", c.Verify, "re-encode each document and compare BLAKE3 digests")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.IntVarP(&c.Jobs, "jobs", "j", c.Jobs, "files processed concurrently")
	fs.BoolVar(&c.Stdout, "stdout", c.Stdout, "write output to standard output instead of files")
}

// overlay copies into dst every field whose flag was set on the command
// line.
func overlay(fs *pflag.FlagSet, dst *Config, flags Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("format", func() { dst.Format = flags.Format })
	set("times", func() { dst.Times = flags.Times })
	set("compress", func() { dst.Compress = flags.Compress })
	set("max-depth", func() { dst.MaxDepth = flags.MaxDepth })
	set("layout", func() { dst.Layout = flags.Layout })
	set("verify", func() { dst.Verify = flags.Verify })
	set("log-level", func() { dst.LogLevel = flags.LogLevel })
	set("jobs", func() { dst.Jobs = flags.Jobs })
	set("stdout", func() { dst.Stdout = flags.Stdout })
}

// settings is a validated Config.
type settings struct {
	format   export.Format
	times    export.TimeFormat
	compress export.Compression
	layout   krds.Layout
	level    slog.Level
	maxDepth int
	jobs     int
	verify   bool
	toStdout bool
}

func (c Config) settings() (settings, error) {
	var (
		s   = settings{maxDepth: c.MaxDepth, jobs: c.Jobs, verify: c.Verify, toStdout: c.Stdout}
		err error
	)
	if s.format, err = export.ParseFormat(c.Format); err != nil {
		return s, err
	}
	if s.times, err = export.ParseTimeFormat(c.Times); err != nil {
		return s, err
	}
	if s.compress, err = export.ParseCompression(c.Compress); err != nil {
		return s, err
	}
	if s.layout, err = krds.ParseLayout(c.Layout); err != nil {
		return s, err
	}
	if err = s.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return s, fmt.Errorf("log level: %w", err)
	}
	if s.jobs < 1 {
		s.jobs = 1
	}
	return s, nil
}
