// Package cli wires the anamnesis commands: investigate, feedback,
// memory and config.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	mock    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "anamnesis",
	Short: "Anamnesis - self-improving root cause analysis for support tickets",
	Long: `Anamnesis investigates production support tickets and proposes a root
cause analysis grounded in what it has seen before.

Every investigation consults a semantic memory of past cases, weighs
analyst-verified knowledge above raw AI output, and registers its own
findings so the next similar ticket starts from something known.
Analyst feedback continuously adjusts how much each memory is trusted.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Anamnesis.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("anamnesis v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.anamnesis/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&mock, "mock", false, "run with canned ticket and AI data (no credentials needed)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("mock", rootCmd.PersistentFlags().Lookup("mock"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.anamnesis")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match ANAMNESIS_*
	viper.SetEnvPrefix("ANAMNESIS")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
