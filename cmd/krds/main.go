// Command krds converts reader data store files (.yjr, .yjf, .azw3r, .azw3f,
// .mbp1, .mbs) to JSON, YAML or CBOR.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/pflag"

	"github.com/rawbytedev/krds"
	"github.com/rawbytedev/krds/pkg/export"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg := defaultConfig()
	flags := cfg
	var configPath string

	fs := pflag.NewFlagSet("krds", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	addFlags(fs, &flags)
	fs.StringVarP(&configPath, "config", "c", "", "YAML or JSONC config file")
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, fs)
			return nil
		}
		return err
	}
	if help, _ := fs.GetBool("help"); help {
		printHelp(stderr, fs)
		return nil
	}

	if configPath != "" {
		if err := loadConfig(configPath, &cfg); err != nil {
			return err
		}
	}
	overlay(fs, &cfg, flags)
	s, err := cfg.settings()
	if err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		printHelp(stderr, fs)
		return errors.New("no input files")
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: s.level}))
	p := &processor{
		settings: s,
		codec:    krds.NewCodec(krds.Options{Layout: s.layout, MaxDepth: s.maxDepth, Logger: logger}),
		log:      logger,
		stdout:   stdout,
	}
	return p.all(paths)
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `krds converts reader data store files to JSON, YAML or CBOR.

Each input is written next to itself with the format's extension added
(book.yjr becomes book.yjr.json) unless --stdout is given.

Usage:
  krds [flags] <path>...

Flags:
%s`, fs.FlagUsages())
}

type processor struct {
	settings
	codec  *krds.Codec
	log    *slog.Logger
	stdout io.Writer
}

// all converts every path, at most jobs at a time, and joins the errors in
// input order. Output for stdout is written in input order once every
// conversion has finished.
func (p *processor) all(paths []string) error {
	errs := make([]error, len(paths))
	outs := make([][]byte, len(paths))
	sem := make(chan struct{}, p.jobs)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := p.one(path)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
				return
			}
			outs[i] = out
		}()
	}
	wg.Wait()
	for _, out := range outs {
		if out == nil {
			continue
		}
		if _, err := p.stdout.Write(out); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
	return errors.Join(errs...)
}

// one converts a single file. With --stdout the rendered output is returned
// instead of written.
func (p *processor) one(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := p.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	p.log.Debug("decoded", "path", path, "layout", doc.Layout, "entries", len(doc.Entries))
	if p.verify {
		if err := p.check(path, data, doc); err != nil {
			return nil, err
		}
	}
	tree, err := export.Tree(doc, export.Options{Times: p.times, Logger: p.log.With("path", path)})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	wc, err := export.Compress(&buf, p.compress)
	if err != nil {
		return nil, err
	}
	if err := export.Write(wc, p.format, tree); err != nil {
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}

	if p.toStdout {
		return buf.Bytes(), nil
	}
	out := path + p.format.Ext() + p.compress.Ext()
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	p.log.Info("converted", "path", path, "output", out)
	return nil, nil
}

// check re-encodes doc and compares its digest with the input's.
func (p *processor) check(path string, data []byte, doc *krds.Document) error {
	enc, err := p.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	want, got := krds.Digest(data), krds.Digest(enc)
	if want != got {
		return fmt.Errorf("re-encoded document differs: blake3 %s, want %s", hex.EncodeToString(got[:]), hex.EncodeToString(want[:]))
	}
	p.log.Info("verified", "path", path, "blake3", hex.EncodeToString(want[:]))
	return nil
}
