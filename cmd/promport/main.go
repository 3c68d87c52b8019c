// Package main is the entry point for promport.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang/v2"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "promport.yaml"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "promport",
	Short: "Hot-reloadable Prometheus text-format metrics exporter",
	Long: `promport serves a Prometheus text-format scrape endpoint backed by a
double-buffered snapshot store. The listen address, metrics path, and
collection interval reload live from the config file, without restarting
the process or losing published metrics.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/promport/"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
