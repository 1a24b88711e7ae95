// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Corphon/CampaignStudio/internal/app"
	"github.com/Corphon/CampaignStudio/internal/config"
)

var (
	configFile string
	verbose    bool

	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "campaign-studio",
	Short: "Campaign Studio - turn a campaign brief into marketing content",
	Long: `Campaign Studio repurposes a campaign brief into an ebook outline, social posts,
a nurture email flow and an SDR sequence.

Run "campaign-studio serve" for the HTTP and WebSocket API, or use the
generate, preview, export and copy commands from a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
				return err
			}
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			loaded.LogLevel = "debug"
		}
		cfg = loaded
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the campaign API over HTTP and WebSocket",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, generateCmd, previewCmd, exportCmd, copyCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(cfg); err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	a, err := app.New(config.GetCurrentConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Campaign Studio")+" listening on :"+a.Config.Port)
	return a.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
