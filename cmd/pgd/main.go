// Command pgd fits linear regressions with gradient descent
// distributed over simulated workers.
package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unixpickle/dist-gd/config"
	"github.com/unixpickle/essentials"
)

var rootCmd = &cobra.Command{
	Use:   "pgd",
	Short: "Distributed gradient descent for linear regression",
	Long: `pgd fits a linear regression by gradient descent. The training data is
split between a number of workers which run on a simulated network and
report partial sums to a single coordinator every round.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./pgd.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file (default is stderr)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pgd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// PGD_NETWORK_RATE sets network.rate, and so on.
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PGD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine.
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		essentials.Die(err)
	}
}
