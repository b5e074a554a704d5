package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the settings parsed from command-line arguments.
type Config struct {
	Path     string // path to the MIDI file to load
	Ram      bool   // load the whole file into memory instead of streaming it from disk
	TPS      uint   // output ticks per second for the resampled clock
	LogLevel string // debug, info, warn, error
	Dump     bool   // dump the packed IntVector4 buffer to stdout instead of a stats summary
	ShowHelp bool
}

const defaultTPS = 1000

// ParseArgs parses command-line arguments into a Config.
func ParseArgs(args []string) (*Config, error) {
	reordered := reorderArgs(args)

	fs := flag.NewFlagSet("cakegen", flag.ContinueOnError)

	config := &Config{}

	var tps int
	fs.IntVar(&tps, "tps", 0, "output ticks per second (default 1000)")
	fs.BoolVar(&config.Ram, "ram", false, "load the whole MIDI file into memory")
	fs.BoolVar(&config.Ram, "r", false, "load the whole MIDI file into memory (short form)")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (short form)")
	fs.BoolVar(&config.Dump, "dump", false, "dump the packed buffer instead of printing stats")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help (short form)")

	if err := fs.Parse(reordered); err != nil {
		return nil, err
	}

	if tps == 0 {
		if tpsEnv := os.Getenv("CAKE_TPS"); tpsEnv != "" {
			if t, err := strconv.Atoi(tpsEnv); err == nil && t > 0 {
				tps = t
			}
		}
	}
	if tps == 0 {
		tps = defaultTPS
	}
	if tps < 0 {
		return nil, fmt.Errorf("tps must be positive, got %d", tps)
	}
	config.TPS = uint(tps)

	if !config.Ram {
		if ramEnv := os.Getenv("CAKE_RAM"); ramEnv != "" {
			config.Ram = ramEnv == "1" || strings.ToLower(ramEnv) == "true"
		}
	}

	if config.LogLevel == "info" {
		if levelEnv := os.Getenv("CAKE_LOG_LEVEL"); levelEnv != "" {
			config.LogLevel = strings.ToLower(levelEnv)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() > 0 {
		config.Path = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs moves flags before positional arguments so that flag.FlagSet,
// which stops parsing at the first positional argument, sees them all.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--ram" && arg != "-r" && arg != "--dump" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp prints usage information to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `cakegen - MIDI-to-Cake pipeline CLI

Usage:
  cakegen [options] <midi-file>

Arguments:
  midi-file                   path to a Standard MIDI File (format 0 or 1)

Options:
  --tps <n>                   output ticks per second (default 1000)
  -r, --ram                    load the whole file into memory instead of streaming it
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  --dump                      dump the packed buffer instead of a stats summary
  -h, --help                  show this help

Environment Variables:
  CAKE_TPS=<n>                 output ticks per second
  CAKE_RAM=1                   load the whole file into memory
  CAKE_LOG_LEVEL=<level>       log level

Examples:
  cakegen song.mid                   parse at the default 1000 ticks/sec and print stats
  cakegen --tps 480 --ram song.mid   stream the full file into memory at 480 ticks/sec
  cakegen --dump song.mid            print every packed node
`)
}
