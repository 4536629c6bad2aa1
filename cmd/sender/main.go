// Command sender runs lead broadcasts from the terminal.
package main

import (
	"fmt"
	"os"

	"whatsapp-sender/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sender",
	Short: "Send an approved WhatsApp template to a list of leads",
	Long: `sender normalizes Singapore phone numbers, lists the approved message
templates of a WhatsApp Business account and sends one template to every
number of a CSV file, one request at a time.

Credentials come from WHATSAPP_TOKEN, PHONE_NUMBER_ID and WABA_ID, or from the
credentials file (CREDENTIALS_FILE, default config.txt).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			cfg = config.LoadConfig()
		}

		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(normalizeCmd, templatesCmd, credentialsCmd, sendCmd)
	credentialsCmd.AddCommand(credentialsShowCmd, credentialsSaveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
