package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dLDAP/cmd/server"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dldap",
		Short: "directory server client runtime",
		Long: fmt.Sprintf(`dLDAP (v%s)

A directory server client runtime written in Go, providing
load-balanced connection establishment with failover across
a set of directory servers.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLDAP",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLDAP v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(server.ServerCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
