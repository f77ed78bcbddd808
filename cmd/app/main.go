package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/bharathvani/internal"
	"github.com/starford/bharathvani/internal/stats"
	pkgconfig "github.com/starford/bharathvani/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// stderrLogger keeps stdout free for the MCP transport and terminal output.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
}

func runUserAdd(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.Args().Get(0))
	if username == "" {
		return errors.New("usage: bharathvani user add <username> --password <secret>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.AddUser(ctx, username, cmd.String("password"),
		internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg))); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("registered %s\n", username)
	return nil
}

func runStats(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rep, err := internal.CorpusStats(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	printReport(rep)
	return nil
}

func printReport(rep *stats.Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Println("BharathVani corpus")
	green.Print("  ▶ ")
	fmt.Printf("Entries:     %d\n", rep.Summary.Entries)
	green.Print("  ▶ ")
	fmt.Printf("Categories:  %d\n", rep.Summary.Categories)
	green.Print("  ▶ ")
	fmt.Printf("Locations:   %d\n", rep.Summary.Locations)
	green.Print("  ▶ ")
	fmt.Printf("Media files: %d\n", rep.Summary.MediaFiles)

	section := func(title string, counts []stats.Count) {
		fmt.Println()
		cyan.Println(title)
		if len(counts) == 0 {
			gray.Println("  (none)")
			return
		}
		for _, c := range counts {
			fmt.Printf("  %-24s ", c.Key)
			green.Printf("%d\n", c.Count)
		}
	}
	section("By category", rep.ByCategory)
	section("By date", rep.ByDate)
	section("Contributors", rep.Contributors)
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (.yaml or .toml)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "bharathvani",
		Usage:  "Crowd-sourced Indian cultural heritage corpus with media uploads and a REST API",
		Action: run,
		Flags:  []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Flags:  []cli.Flag{configFlag()},
				Action: run,
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only corpus tools over MCP stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: runMCP,
			},
			{
				Name:  "user",
				Usage: "Manage contributor credentials",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Register a contributor",
						ArgsUsage: "<username>",
						Flags: []cli.Flag{
							configFlag(),
							&cli.StringFlag{
								Name:     "password",
								Aliases:  []string{"p"},
								Usage:    "Secret for the new user",
								Required: true,
								Sources:  cli.EnvVars("BHARATHVANI_PASSWORD"),
							},
						},
						Action: runUserAdd,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print corpus statistics",
				Flags:  []cli.Flag{configFlag()},
				Action: runStats,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
