package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/wssync/internal"
	pkgconfig "github.com/starford/wssync/pkg/config"
)

var version = "dev"

// loadConfig layers defaults, the optional YAML file and explicitly set
// flags, then validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cmd.IsSet("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("src") {
		cfg.Sync.Source = cmd.String("src")
	}
	if cmd.IsSet("target") {
		cfg.Sync.Target = cmd.String("target")
	}
	if cmd.IsSet("docs") {
		cfg.Sync.Docs = cmd.String("docs")
	}
	if cmd.IsSet("exclude") {
		cfg.Sync.Exclude = cmd.StringSlice("exclude")
	}
	if cmd.IsSet("dry-run") {
		cfg.Sync.DryRun = cmd.Bool("dry-run")
	}
	if cmd.IsSet("lock") {
		cfg.Sync.Lock = cmd.Bool("lock")
	}
	if cmd.IsSet("prefix") {
		prefix := cmd.String("prefix")
		cfg.Catalogue.Prefix = &prefix
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}

	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func watch(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Watch(ctx, opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Serve(ctx, cmd.Bool("watch"), opts...)
}

func history(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ShowHistory(ctx, os.Stdout, int(cmd.Int("limit")), cmd.Bool("json"), opts...)
}

func show(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ShowCatalogue(ctx, os.Stdout, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "src",
			Aliases: []string{"s"},
			Usage:   "Source root holding one directory per workspace",
			Sources: cli.EnvVars("WSSYNC_SRC"),
		},
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "Target root receiving the mirrored workspaces and the catalogue",
			Sources: cli.EnvVars("WSSYNC_TARGET"),
		},
		&cli.StringFlag{
			Name:    "prefix",
			Aliases: []string{"p"},
			Usage:   "Path prefix for doc and image links in the catalogue",
		},
		&cli.StringFlag{
			Name:    "docs",
			Aliases: []string{"d"},
			Usage:   "Sub-directory of each workspace to mirror instead of the whole workspace",
		},
		&cli.StringSliceFlag{
			Name:    "exclude",
			Aliases: []string{"x"},
			Usage:   "Glob of source paths to skip (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report what would be copied without writing anything",
		},
		&cli.BoolFlag{
			Name:  "lock",
			Usage: "Hold an exclusive lock file in the target during the run",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "wssync",
		Usage:   "Mirror workspace directories and rebuild their JSON catalogue",
		Version: version,
		Action:  run,
		Flags:   syncFlags(),
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Sync, then sync again whenever the source tree changes",
				Action: watch,
			},
			{
				Name:   "serve",
				Usage:  "Serve the catalogue, run history, events and metrics over HTTP",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also watch the source tree and sync on change",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP port",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Print recent runs from the history database",
				Action: history,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to print",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print runs as JSON",
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Print the current catalogue",
				Action: show,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
