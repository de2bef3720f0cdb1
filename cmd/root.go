package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dbKV/cmd/health"
	"github.com/ValentinKolb/dbKV/cmd/kv"
	"github.com/ValentinKolb/dbKV/cmd/serve"
	"github.com/ValentinKolb/dbKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbkv",
		Short: "durable key-value store on a relational database",
		Long: fmt.Sprintf(`dbKV (v%s)

A durable key-value store written in Go. Keys and values are kept in a
fixed set of tables of a relational database reached through a registered
driver (sqlite, postgres).`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbKV v%s\n", Version)
		},
	}
)

func init() {
	// load .env files and environment variables
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(health.HealthCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
