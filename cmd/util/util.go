package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/serializer"
	"github.com/ValentinKolb/dbKV/rpc/transport"
	"github.com/ValentinKolb/dbKV/rpc/transport/http"
	"github.com/ValentinKolb/dbKV/rpc/transport/tcp"
	"github.com/ValentinKolb/dbKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
	// EnvPrefix is the prefix of all environment variables (e.g. DBKV_DB_DRIVER)
	EnvPrefix = "dbkv"
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

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables to viper
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// SetupDBFlags adds the database connection flags to a command
func SetupDBFlags(cmd *cobra.Command) {
	key := "db-enabled"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether the database store is enabled"))

	key = "db-driver"
	cmd.PersistentFlags().String(key, "sqlite", WrapString("Dialect of the registered driver to use (sqlite, sqlite3, postgres)"))

	key = "db-url"
	cmd.PersistentFlags().String(key, "dbkv.db", WrapString("Connection string passed to the driver unchanged (e.g. a file path for sqlite or postgres://host/db for postgres)"))

	key = "db-username"
	cmd.PersistentFlags().String(key, "", WrapString("Database user (optional)"))

	key = "db-password"
	cmd.PersistentFlags().String(key, "", WrapString("Database password (optional, prefer the DBKV_DB_PASSWORD environment variable)"))

	key = "db-column-type-key"
	cmd.PersistentFlags().String(key, "", WrapString("Overrides the dialect default type of the key column"))

	key = "db-column-type-value"
	cmd.PersistentFlags().String(key, "", WrapString("Overrides the dialect default type of the value column"))

	key = "db-trace"
	cmd.PersistentFlags().Bool(key, false, WrapString("Log every store operation at debug level"))

	key = "instance-id"
	cmd.PersistentFlags().String(key, "", WrapString("Identity of this instance used for the heartbeat key (default: random uuid)"))
}

// GetDBConfig reads the database configuration from viper
func GetDBConfig() db.Config {
	return db.Config{
		Enabled:          viper.GetBool("db-enabled"),
		Driver:           viper.GetString("db-driver"),
		ConnectionString: viper.GetString("db-url"),
		Username:         viper.GetString("db-username"),
		Password:         viper.GetString("db-password"),
		ColumnTypeKey:    viper.GetString("db-column-type-key"),
		ColumnTypeValue:  viper.GetString("db-column-type-value"),
		TraceLogging:     viper.GetBool("db-trace"),
		InstanceID:       viper.GetString("instance-id"),
	}
}

// GetTable reads and validates the --table flag
func GetTable() (db.Table, error) {
	return db.ParseTable(viper.GetString("table"))
}

// --------------------------------------------------------------------------
// RPC client
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dbKV server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	endpoints := make([]string, 0)
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              endpoints,
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}
