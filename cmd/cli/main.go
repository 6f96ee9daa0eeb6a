package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/kernel"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand
type app struct {
	open   func(ctx context.Context) (*kernel.Kernel, error)
	out    io.Writer
	output string // "text" or "json"
	k      *kernel.Kernel
}

func (a *app) kernel(ctx context.Context) (*kernel.Kernel, error) {
	if a.k != nil {
		return a.k, nil
	}
	k, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	a.k = k
	return k, nil
}

func (a *app) close() {
	if a.k == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.k.Cleanup(ctx)
	a.k = nil
}

// print writes v as indented JSON, or calls text for the text format
func (a *app) print(v interface{}, text func(w io.Writer)) error {
	if a.output == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.out)
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gunwadex",
		Short: "GunwaDex operator CLI",
		Long: `Operator tooling for a GunwaDex deployment. Commands talk to the
database configured in .env directly; no API token is needed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.output != "text" && a.output != "json" {
				return fmt.Errorf("--output must be text or json")
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.output, "output", "text", "Output format: text or json")

	rootCmd.AddCommand(newUsersCmd(a))
	rootCmd.AddCommand(newContactCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	return rootCmd
}

func openKernel(ctx context.Context) (*kernel.Kernel, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize("warn", "-"); err != nil {
		return nil, err
	}
	return kernel.Bootstrap(ctx, cfg)
}

func main() {
	a := &app{open: openKernel, out: os.Stdout}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
