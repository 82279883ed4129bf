package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coldvault/coldvault/internal/client"
	"github.com/coldvault/coldvault/internal/config"
	"github.com/coldvault/coldvault/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "coldvault",
	Short: "Encrypted backups to cold archival storage",
	Long: `Coldvault encrypts large files locally and uploads them to cold
archival cloud storage in resumable multipart sessions. Interrupted
uploads survive crashes and can be resumed without re-encrypting or
re-sending completed parts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if vaultClient != nil {
			_ = vaultClient.Close()
		}
	},
}

var (
	configPath  string
	vaultName   string
	jsonOutput  bool
	verboseMode bool

	cfg         *config.Config
	logger      *events.Logger
	vaultClient *client.Client
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path")
	rootCmd.PersistentFlags().StringVar(&vaultName, "vault", "",
		"Vault name (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false,
		"Enable debug logging")
}

// setup loads config and wires the client before any command runs.
func setup() error {
	loader := config.NewLoader(configPath)

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if vaultName != "" {
		cfg.Vault.Name = vaultName
	}
	if verboseMode {
		cfg.Log.Level = "debug"
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	vaultClient, err = client.New(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

// Output helpers

func printSuccess(format string, args ...interface{}) {
	color.Green(format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red(format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow(format, args...)
}

func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}

	return string(password), nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
