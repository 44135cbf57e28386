package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"dali/pkg/app"
	"dali/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "DALI bus transceiver for the Raspberry Pi",
		Version: app.VERSION,
		Description: "Send and receive Manchester encoded DALI frames on two gpio lines" +
			"\n and publish the received frames to mqtt and a web service.",
		UsageText: "dali [--config <file>] [--log error|debug|trace] [command]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the transceiver and use the configuration file dali.yaml" +
			"\n\t\tdali --config /opt/womat/dali.yaml" +
			"\n\tsend a broadcast off command" +
			"\n\t\tdali send --address 0xff --data 0x00",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Value: "standard", Usage: "`LEVEL` defines the log level (fatal|info|warning|error|debug|trace)"},
		},
		Action: func(ctx *cli.Context) error {
			return run(cfg, serve)
		},
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "send one forward frame and exit",
				UsageText: "dali send --address <byte> --data <byte>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true, Usage: "`BYTE` address byte (decimal, 0x hex, 0b binary or 0 octal)"},
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Required: true, Usage: "`BYTE` data byte (decimal, 0x hex, 0b binary or 0 octal)"},
				},
				Action: func(ctx *cli.Context) error {
					address, err := parseByte(ctx.String("address"))
					if err != nil {
						return fmt.Errorf("invalid address: %w", err)
					}
					data, err := parseByte(ctx.String("data"))
					if err != nil {
						return fmt.Errorf("invalid data: %w", err)
					}

					return run(cfg, func(a *app.App) error {
						return a.Send(address, data)
					})
				},
			},
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}

// run loads the configuration, creates the app and calls fn with it.
func run(cfg *config.Config, fn func(*app.App) error) error {
	if err := cfg.LoadConfig(); err != nil {
		return err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}()

	a, err := app.New(cfg)
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	if err != nil {
		return err
	}

	return fn(a)
}

// serve runs the app until an exit signal is received.
func serve(a *app.App) error {
	debug.InfoLog.Printf("starting app %s", app.Version())
	if err := a.Run(); err != nil {
		return err
	}

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// wait for am os.Interrupt signal (CTRL C)
	sig := <-quit
	debug.InfoLog.Printf("Got %s signal. Aborting...", sig)

	return nil
}

// parseByte parses s as unsigned 8 bit value, the base is implied by the prefix.
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}
