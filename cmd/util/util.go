package util

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dLDAP/ldap/common"
	"github.com/ValentinKolb/dLDAP/ldap/conn"
	"github.com/ValentinKolb/dLDAP/ldap/transport"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds common directory client flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoints"
	cmd.PersistentFlags().String(key, "localhost:389", WrapString("The directory servers to connect to, as a comma-separated list of host:port pairs"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds for establishing a connection"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 30, WrapString("The timeout in seconds for operations on an open connection"))

	key = "bind-dn"
	cmd.PersistentFlags().String(key, "", WrapString("The DN to authenticate as; connections stay anonymous if empty"))

	key = "bind-password"
	cmd.PersistentFlags().String(key, "", WrapString("The password to authenticate with"))

	key = "pool-size"
	cmd.PersistentFlags().Int(key, 10, WrapString("The number of connections held by the connection pool"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("The log level (debug, info, warning, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dldap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoints:            strings.Split(viper.GetString("endpoints"), ","),
		ConnectTimeoutSecond: viper.GetInt("connect-timeout"),
		TimeoutSecond:        viper.GetInt("timeout"),
		BindDN:               viper.GetString("bind-dn"),
		BindPassword:         viper.GetString("bind-password"),
		PoolSize:             viper.GetInt("pool-size"),
		LogLevel:             viper.GetString("log-level"),
	}
}

// GetConnector creates the transport connector based on configuration
func GetConnector(config *common.ClientConfig) transport.Connector {
	return transport.NewTCPConnector(time.Duration(config.ConnectTimeoutSecond) * time.Second)
}

// GetAuthenticator creates the authenticator based on configuration, or
// returns nil if connections should stay anonymous
func GetAuthenticator(config *common.ClientConfig) conn.Authenticator {
	if config.BindDN == "" {
		return nil
	}
	return &conn.SimpleBind{DN: config.BindDN, Password: config.BindPassword}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
