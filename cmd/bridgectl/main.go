package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/daemon"
	"github.com/danmuck/bridgectl/internal/logging"
	"github.com/danmuck/bridgectl/internal/regmap"
)

const defaultConfigPath = "/etc/bridgectl/config.toml"

func main() {
	configPath := flag.String("config", "", "config path (default "+defaultConfigPath+" when present)")
	flag.Usage = usage
	flag.Parse()

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: bridgectl [-config path] [run]
       bridgectl [-config path] peek <register>
       bridgectl [-config path] poke <register> <value>

registers: type addr data valid done status
`)
	flag.PrintDefaults()
}

func run(configPath string, args []string) error {
	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "run":
		logger := logging.New("bridgectl", logging.ProfileRuntime)
		return daemon.NewServiceWithConfig(cfg, logger).Run()
	case "peek":
		if len(args) != 1 {
			return errors.New("peek: expected <register>")
		}
		return peek(cfg, args[0])
	case "poke":
		if len(args) != 2 {
			return errors.New("poke: expected <register> <value>")
		}
		return poke(cfg, args[0], args[1])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func resolveConfig(path string) (daemon.ServiceConfig, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return daemon.DefaultServiceConfig(), nil
		}
		path = defaultConfigPath
	}
	return loadServiceConfig(path)
}

func openForDiagnostics(cfg daemon.ServiceConfig) (*bridge.DevMem, error) {
	if cfg.Simulate {
		return nil, errors.New("peek/poke need a mapped window; simulate mode has none")
	}
	return bridge.Open(cfg.Window)
}

func peek(cfg daemon.ServiceConfig, name string) error {
	off, err := regmap.Lookup(name)
	if err != nil {
		return err
	}
	win, err := openForDiagnostics(cfg)
	if err != nil {
		return err
	}
	defer win.Close()

	v := win.ReadRegister(off)
	fmt.Printf("%s@0x%02X = 0x%08X (%d)\n", regmap.Name(off), uint32(off), v, v)
	return nil
}

func poke(cfg daemon.ServiceConfig, name, raw string) error {
	off, err := regmap.Lookup(name)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return fmt.Errorf("poke: parse value %q: %w", raw, err)
	}
	win, err := openForDiagnostics(cfg)
	if err != nil {
		return err
	}
	defer win.Close()

	win.WriteRegister(off, uint32(v))
	fmt.Printf("%s@0x%02X <- 0x%08X\n", regmap.Name(off), uint32(off), uint32(v))
	return nil
}
