package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/tictactoe-brain/internal"
	"github.com/rocketscienceinc/tictactoe-brain/internal/config"
)

var (
	configPath string
	epochs     int
	nestedX    string
	nestedO    string

	rootCmd = &cobra.Command{
		Use:           "tictactoe-brain",
		Short:         "Self-play trained tic-tac-toe engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Train both credit tables by self-play and save them",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf := initConfig()
			return app.RunTraining(initLogger(conf), conf, epochs)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive games against the trained bot over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf := initConfig()
			return app.RunServer(initLogger(conf), conf)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Import nested JSON brain files into the configured brain storage",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf := initConfig()
			return app.RunMigrate(initLogger(conf), conf, nestedX, nestedO)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to the config file")
	trainCmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "matches to play, overrides training.epochs")

	migrateCmd.Flags().StringVarP(&nestedX, "x", "x", "brain1.json", "nested table of the X agent")
	migrateCmd.Flags().StringVarP(&nestedO, "o", "o", "brain2.json", "nested table of the O agent")

	rootCmd.AddCommand(trainCmd, serveCmd, migrateCmd)
}

// main - is the entry point of the application. It initializes the configuration, logger, and runs the application.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

// initialize config.
func initConfig() *config.Config {
	path := configPath
	if !filepath.IsAbs(path) {
		baseDir, err := os.Getwd()
		if err != nil {
			panic(fmt.Errorf("failed to get current directory: %w", err))
		}
		path = filepath.Join(baseDir, path)
	}

	return config.MustLoad(path)
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
