package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jwiseman/r4/internal/buildinfo"
	"github.com/jwiseman/r4/internal/config"
	"github.com/jwiseman/r4/internal/grep"
	"github.com/jwiseman/r4/internal/log"
	"github.com/jwiseman/r4/internal/p4"
	"github.com/jwiseman/r4/internal/status"
	appCli "github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func rootCommand() *appCli.Command {
	return &appCli.Command{
		Name:            "r4",
		Usage:           "A p4 wrapper with extra subcommands",
		Version:         buildinfo.Version(),
		HideHelpCommand: true, // the help subcommand forwards to p4 help

		Flags: globalFlags(),

		Commands: []*appCli.Command{
			grepCommand(),
			statusCommand(),
			helpCommand(),
			versionCommand(),
		},
	}
}

// globalFlags returns the flags shared by every r4 subcommand.
func globalFlags() []appCli.Flag {
	return []appCli.Flag{
		&appCli.StringFlag{
			Name:  "config-file",
			Usage: "Path to configuration file",
		},
		&appCli.StringFlag{
			Name:  "debug-log",
			Usage: "Path to debug log file",
		},
		&appCli.StringFlag{
			Name:  "p4-bin",
			Usage: "Override the p4 binary to wrap",
		},
		&appCli.StringFlag{
			Name:  "color",
			Usage: "Colorize output: auto, always or never",
		},
	}
}

// loadSetup loads configuration, applies global flag overrides, sets up
// debug logging and verifies the p4 binary is reachable.
func loadSetup(cmd *appCli.Command) (*config.AppConfig, *p4.Service, error) {
	cfg, err := config.LoadConfig(cmd.String("config-file"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "r4: error loading config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	if bin := cmd.String("p4-bin"); bin != "" {
		cfg.P4Bin = bin
	}
	if color := cmd.String("color"); color != "" {
		cfg.Color = config.NormalizeColor(color)
	}

	debugLog := cmd.String("debug-log")
	if debugLog == "" {
		debugLog = cfg.DebugLog
	}
	if debugLog != "" {
		if expanded, err := config.ExpandPath(debugLog); err == nil {
			debugLog = expanded
		}
		if err := log.SetFile(debugLog); err != nil {
			fmt.Fprintf(os.Stderr, "r4: error opening debug log file %q: %v\n", debugLog, err)
		}
	} else {
		// No debug log configured, discard any buffered messages.
		_ = log.SetFile("")
	}

	svc := p4.NewService(cfg.P4Bin, cfg.MaxConcurrentFetch)
	if err := svc.Check(); err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func colorEnabled(mode string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// grepCommand returns the grep subcommand definition.
func grepCommand() *appCli.Command {
	return &appCli.Command{
		Name:        "grep",
		Usage:       "Search across revisions of files for lines matching a pattern",
		ArgsUsage:   "<pattern> <file[revSpec]>...",
		Description: grepLongDescription,
		Action:      handleGrepAction,
		Flags: []appCli.Flag{
			&appCli.BoolFlag{
				Name:    "ignore-case",
				Aliases: []string{"i"},
				Usage:   "Ignore case distinctions when matching",
			},
			&appCli.BoolFlag{
				Name:    "files-with-matches",
				Aliases: []string{"l"},
				Usage:   "Print only file names with the matching revision ranges",
			},
			&appCli.BoolFlag{
				Name:    "invert-match",
				Aliases: []string{"v"},
				Usage:   "Select non-matching lines",
			},
		},
	}
}

func handleGrepAction(ctx context.Context, cmd *appCli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: r4 grep [-i] [-l] [-v] <pattern> <file[revSpec]>...")
	}

	cfg, svc, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	engine := grep.NewEngine(svc, grep.Options{
		IgnoreCase:       cmd.Bool("ignore-case"),
		InvertMatch:      cmd.Bool("invert-match"),
		FilesWithMatches: cmd.Bool("files-with-matches"),
		MaxParallel:      cfg.MaxConcurrentFetch,
	}, os.Stdout, os.Stderr)

	return engine.Run(ctx, args[0], args[1:])
}

// statusCommand returns the status subcommand definition.
func statusCommand() *appCli.Command {
	return &appCli.Command{
		Name:        "status",
		Usage:       "Print the status of working copy files and directories",
		ArgsUsage:   "[path ...]",
		Description: statusLongDescription,
		Action:      handleStatusAction,
		Flags: []appCli.Flag{
			&appCli.BoolFlag{
				Name:  "no-ignore",
				Usage: "Show ignored files with an I prefix instead of hiding them",
			},
			&appCli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Re-run the listing whenever the working copy changes",
			},
		},
	}
}

func handleStatusAction(ctx context.Context, cmd *appCli.Command) error {
	cfg, svc, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	lister := status.NewLister(svc, status.NewIgnores(cfg.IgnoreFile), status.Options{
		NoIgnore: cmd.Bool("no-ignore"),
		Color:    colorEnabled(cfg.Color),
	}, os.Stdout)

	paths := cmd.Args().Slice()
	if err := lister.Run(ctx, paths); err != nil {
		return err
	}
	if !cmd.Bool("watch") {
		return nil
	}

	roots := paths
	if len(roots) == 0 {
		roots = []string{"."}
	}
	watcher := status.NewWatcher(time.Duration(cfg.StatusWatchDebounce)*time.Millisecond, log.Printf)
	if err := watcher.Start(roots); err != nil {
		return err
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Events():
			if !watcher.ShouldRefresh(time.Now()) {
				continue
			}
			fmt.Fprintln(os.Stdout)
			if err := lister.Run(ctx, paths); err != nil {
				return err
			}
		}
	}
}

// versionCommand returns the version subcommand definition.
func versionCommand() *appCli.Command {
	return &appCli.Command{
		Name:  "version",
		Usage: "Print r4 version information",
		Action: func(_ context.Context, _ *appCli.Command) error {
			buildinfo.Enrich()
			fmt.Printf("r4 version %s\ncommit: %s\nbuilt at: %s\nbuilt by: %s\n",
				buildinfo.Version(), buildinfo.Commit(), buildinfo.Date(), buildinfo.BuiltBy())
			return nil
		},
	}
}
