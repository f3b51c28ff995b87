// Command doofc is the doof bytecode toolchain: it inspects, verifies,
// and converts compiled bytecode artifacts.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/dis"
)

const usageText = `doofc - doof bytecode tool

Usage:
  doofc [flags] dis <file>          disassemble an artifact
  doofc [flags] info <file>         show artifact metadata
  doofc [flags] verify <file>       lint an artifact
  doofc [flags] convert <in> <out>  convert between .json and .dbc

Flags:
  -config path   TOML config file (default ~/.doofc.toml when present)
  -no-color      disable colored output
  -v             verbose logging
`

// fileConfig is the optional TOML configuration.
type fileConfig struct {
	NoColor  bool   `toml:"no_color"`
	LogLevel string `toml:"log_level"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("doofc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { fmt.Fprint(stderr, usageText) }
	configPath := flags.String("config", "", "TOML config file")
	noColor := flags.Bool("no-color", false, "disable colored output")
	verbose := flags.Bool("v", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configPath, stderr)
	log := newLogger(stderr, *verbose, cfg.LogLevel)

	if *noColor || cfg.NoColor || !stdoutIsTerminal() {
		color.NoColor = true
	}

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return 2
	}
	cmd, rest := rest[0], rest[1:]

	var err error
	switch cmd {
	case "dis":
		err = cmdDis(rest, stdout, log)
	case "info":
		err = cmdInfo(rest, stdout, log)
	case "verify":
		err = cmdVerify(rest, stdout, log)
	case "convert":
		err = cmdConvert(rest, log)
	default:
		fmt.Fprintf(stderr, "doofc: unknown command %q\n", cmd)
		flags.Usage()
		return 2
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		fmt.Fprintf(stderr, "doofc: %v\n", err)
		return 1
	}
	return 0
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func loadConfig(path string, stderr io.Writer) fileConfig {
	var cfg fileConfig
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg
		}
		path = filepath.Join(home, ".doofc.toml")
		if _, err := os.Stat(path); err != nil {
			return cfg
		}
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		fmt.Fprintf(stderr, "doofc: ignoring config %s: %v\n", path, err)
	}
	return cfg
}

func newLogger(stderr io.Writer, verbose bool, level string) zerolog.Logger {
	lvl := zerolog.WarnLevel
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: stderr}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// loadDocument reads a bytecode artifact in either container format,
// sniffing JSON by its leading brace.
func loadDocument(path string) (*bytecode.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		return bytecode.Unmarshal(data)
	}
	return bytecode.DecodeCBOR(data)
}

func saveDocument(doc *bytecode.Document, path string) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = bytecode.Marshal(doc)
	} else {
		data, err = bytecode.EncodeCBOR(doc)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func oneFileArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one file argument")
	}
	return args[0], nil
}

func cmdDis(args []string, stdout io.Writer, log zerolog.Logger) error {
	path, err := oneFileArg(args)
	if err != nil {
		return err
	}
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	log.Debug().Str("file", path).Int("instructions", len(doc.Instructions)).Msg("loaded artifact")
	return dis.Print(doc, stdout)
}

func cmdInfo(args []string, stdout io.Writer, log zerolog.Logger) error {
	path, err := oneFileArg(args)
	if err != nil {
		return err
	}
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	log.Debug().Str("file", path).Msg("loaded artifact")
	fmt.Fprintf(stdout, "source file:      %s\n", doc.Metadata.SourceFile)
	fmt.Fprintf(stdout, "generated at:     %s\n", doc.Metadata.GeneratedAt)
	fmt.Fprintf(stdout, "compiler version: %s\n", doc.Metadata.CompilerVersion)
	if doc.Metadata.BuildID != "" {
		fmt.Fprintf(stdout, "build id:         %s\n", doc.Metadata.BuildID)
	}
	fmt.Fprintf(stdout, "format version:   %d\n", doc.Version)
	fmt.Fprintf(stdout, "instructions:     %d\n", len(doc.Instructions))
	fmt.Fprintf(stdout, "constants:        %d\n", len(doc.Constants))
	fmt.Fprintf(stdout, "functions:        %d\n", len(doc.Functions))
	fmt.Fprintf(stdout, "classes:          %d\n", len(doc.Classes))
	fmt.Fprintf(stdout, "globals:          %d\n", doc.GlobalCount)
	return nil
}

func cmdVerify(args []string, stdout io.Writer, log zerolog.Logger) error {
	path, err := oneFileArg(args)
	if err != nil {
		return err
	}
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	if err := bytecode.Verify(doc); err != nil {
		return err
	}
	log.Debug().Str("file", path).Msg("verified")
	fmt.Fprintln(stdout, "ok")
	return nil
}

func cmdConvert(args []string, log zerolog.Logger) error {
	if len(args) != 2 {
		return fmt.Errorf("expected input and output file arguments")
	}
	doc, err := loadDocument(args[0])
	if err != nil {
		return err
	}
	if err := saveDocument(doc, args[1]); err != nil {
		return err
	}
	log.Debug().Str("from", args[0]).Str("to", args[1]).Msg("converted artifact")
	return nil
}
