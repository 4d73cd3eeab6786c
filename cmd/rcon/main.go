// Rcon — CLI entry point.
//
// This tool opens a remote-console session against a server, either
// executing one command passed as arguments or running an interactive
// console loop. Connection parameters come from flags or a TOML config
// file (flags win).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Zereker/rcon"
)

var version = "dev"

var (
	flagHost     string
	flagPort     int
	flagPassword string
	flagConfig   string
	flagTimeout  time.Duration
	flagDebug    bool
)

func main() {
	root := &cobra.Command{
		Use:     "rcon [command ...]",
		Short:   "Remote console client",
		Long:    "Connects to a remote-console server, authenticates, and executes commands.\nWith arguments it runs one command and exits; without, it opens an interactive console.",
		Version: version,

		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().StringVarP(&flagHost, "host", "H", "", "server host")
	root.Flags().IntVarP(&flagPort, "port", "p", 0, fmt.Sprintf("server port (default %d)", rcon.DefaultPort))
	root.Flags().StringVarP(&flagPassword, "password", "P", "", "server password")
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "TOML config file")
	root.Flags().DurationVarP(&flagTimeout, "timeout", "t", 10*time.Second, "dial and per-command timeout")
	root.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	cfg.merge(flagHost, flagPort, flagPassword)
	if err = cfg.validate(); err != nil {
		return err
	}

	pterm.Info.Printfln("rcon v%s — connecting to %s", version, cfg.addr())

	client, err := rcon.Dial(cfg.addr(), cfg.Password,
		rcon.DialTimeoutOption(flagTimeout),
		rcon.OnCloseOption(func(err error) {
			if err != nil {
				pterm.Warning.Printfln("connection lost: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) > 0 {
		return execOnce(ctx, client, strings.Join(args, " "))
	}
	return console(ctx, client)
}

func execOnce(ctx context.Context, client *rcon.Client, command string) error {
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	reply, err := client.Exec(ctx, command)
	if err != nil {
		return err
	}
	if reply != "" {
		fmt.Println(reply)
	}
	return nil
}

func console(ctx context.Context, client *rcon.Client) error {
	pterm.Info.Println(`interactive console — type "exit" to quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		pterm.FgCyan.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		execCtx, cancel := context.WithTimeout(ctx, flagTimeout)
		reply, err := client.Exec(execCtx, line)
		cancel()
		if err != nil {
			if errors.Is(err, rcon.ErrConnectionClosed) {
				return err
			}
			pterm.Error.Printfln("%v", err)
			continue
		}
		if reply != "" {
			fmt.Println(reply)
		}
	}
}
