package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/nettools/internal/util"
)

var cfg *util.Config

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "nettools",
	Short: "Home network monitoring agent",
	Long: `NetTools watches your home network:
- Discovers devices via arp-scan, nmap or the ARP cache
- Tracks them over time and alerts on newcomers via Telegram
- Runs periodic internet speed tests
- Offers ping, traceroute and DNS lookups through a JSON API`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	cfg, err = util.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel, cfg.LogFile)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nettools version 1.0.0")
	},
}
