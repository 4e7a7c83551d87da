// Package cmd wires the CLI: the serve command runs the API server, the
// seed command generates a deterministic demo dataset.
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"veriseal/authenticity-api/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "authenticity-api",
	Short: "Product authenticity verification and anomaly scoring service",
	Long: `authenticity-api verifies scanned products (QR payload plus optional
packaging image) against the registered catalog, scores user scanning
behavior for anomalies, and monitors model performance for drift.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.authenticity-api.yaml)")
	rootCmd.PersistentFlags().String("loglevel", "info",
		"log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("loglevel"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".authenticity-api" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".authenticity-api")
	}

	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		logging.Log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}

	logging.SetLevel(viper.GetString("log.level"))
}
