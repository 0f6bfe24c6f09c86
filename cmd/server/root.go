package server

import (
	"time"

	"github.com/ValentinKolb/dLDAP/cmd/util"
	"github.com/ValentinKolb/dLDAP/ldap/common"
	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/serverset"
	"github.com/spf13/cobra"
)

var (
	clientConfig *common.ClientConfig
	clientSet    *serverset.ServerSet

	// ServerCommands represents the server command group
	ServerCommands = &cobra.Command{
		Use:               "server",
		Short:             "Inspect and exercise directory servers",
		PersistentPreRunE: setupServerSet,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the server command
	util.SetupClientFlags(ServerCommands)

	// Add subcommands
	ServerCommands.AddCommand(healthCmd)
	ServerCommands.AddCommand(perfCmd)
}

// setupServerSet builds the server set shared by all subcommands
func setupServerSet(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration
	clientConfig = util.GetClientConfig()
	common.InitLoggers(*clientConfig)

	targets, err := clientConfig.Targets()
	if err != nil {
		return err
	}

	opts := []serverset.Option{
		serverset.WithConnectionOptions(
			conn.WithTimeout(time.Duration(clientConfig.TimeoutSecond) * time.Second),
		),
	}
	if auth := util.GetAuthenticator(clientConfig); auth != nil {
		opts = append(opts, serverset.WithAuthenticator(auth))
	}

	clientSet, err = serverset.NewFewestConnections(
		util.GetConnector(clientConfig),
		targets,
		opts...,
	)
	return err
}
