// Package cmd implements the pharmalnet command line.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pharmalnet/dti/config"
	"github.com/pharmalnet/dti/pkg/log"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pharmalnet",
	Short: "drug-target interaction training and inference",
	Long: `pharmalnet trains regression models that predict drug-target binding affinity from
compound SMILES and protein sequences, packages them as portable archives and serves
training and inference over HTTP.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		// Initialize logger.
		if err := log.Setup(cfg.Log.Level, cfg.Log.Console); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.GetLoggerWithName("cmd").Error("Command failed", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "the path of configuration file with yaml extension name")
	rootCmd.AddCommand(serveCmd, trainCmd, predictCmd, versionCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
