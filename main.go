package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shandysiswandi/scriptscan/internal/app"
	"github.com/spf13/cobra"
)

var Version = "0.0.1"

func main() {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "scriptscan",
		Short:        "Static analysis of uploaded PowerShell scripts over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", app.DefaultConfigPath(), "Path to the config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(Version)
		},
	})

	return cmd
}

func serve(configPath string) error {
	application := app.New(configPath) // Initialize the application
	wait := application.Start()        // Start the application and wait for the termination signal
	<-wait                             // Wait for the application to receive a termination signal

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application.Stop(ctx) // Stop the application gracefully
	return nil
}
