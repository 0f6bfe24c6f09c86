package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dLDAP/cmd/util"
	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/transport"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of every configured directory server",
	Long: util.WrapString("Opens a connection to each configured server in turn, " +
		"authenticates if credentials are configured, and runs a Who Am I " +
		"health check. Reports the result per server."),
	RunE: runHealth,
}

func runHealth(_ *cobra.Command, _ []string) error {
	targets, err := clientConfig.Targets()
	if err != nil {
		return err
	}

	auth := util.GetAuthenticator(clientConfig)
	connector := util.GetConnector(clientConfig)
	timeout := time.Duration(clientConfig.TimeoutSecond) * time.Second

	healthy := 0
	for _, t := range targets {
		start := time.Now()
		err := checkTarget(connector, t, auth, timeout)
		elapsed := time.Since(start).Round(time.Millisecond)

		if err != nil {
			fmt.Printf("%-30s unhealthy (%v): %v\n", t, elapsed, err)
			continue
		}
		fmt.Printf("%-30s healthy (%v)\n", t, elapsed)
		healthy++
	}

	fmt.Printf("\n%d/%d servers healthy\n", healthy, len(targets))
	if healthy == 0 {
		return fmt.Errorf("no healthy servers")
	}
	return nil
}

// checkTarget runs the full connection pipeline against a single server
func checkTarget(connector transport.Connector, t conn.Target, auth conn.Authenticator, timeout time.Duration) error {
	c := conn.New(connector, t, conn.WithTimeout(timeout))
	defer c.Close()

	if err := c.Open(); err != nil {
		return err
	}
	if auth != nil {
		if err := c.Authenticate(auth); err != nil {
			return err
		}
	}
	if err := c.CheckHealth(conn.WhoAmIHealthCheck{}); err != nil {
		return err
	}
	return c.MarkReady()
}
