package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dbKV/cmd/util"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/lib/stats"
	"github.com/ValentinKolb/dbKV/lib/store/sqlstore"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/server"
	"github.com/ValentinKolb/dbKV/rpc/transport"
	"github.com/ValentinKolb/dbKV/rpc/transport/http"
	"github.com/ValentinKolb/dbKV/rpc/transport/tcp"
	"github.com/ValentinKolb/dbKV/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal
const shutdownTimeout = 10 * time.Second

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dbKV server",
		Long:    `Start the dbKV server with the specified configuration. The server hosts a SQL backed key-value store and exposes it over the selected transport. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBKV_<flag> (e.g. DBKV_DB_DRIVER=postgres)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupDBFlags(ServeCmd)

	key := "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write timeout of a request in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dbkv.sock, ...)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of requests handled concurrently per connection (ignored for http)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Size of the per request read buffer in KB (ignored for http)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "log-format"
	ServeCmd.PersistentFlags().String(key, "text", cmdUtil.WrapString("Format of the log output (text, json)"))

	key = "metrics-prefix"
	ServeCmd.PersistentFlags().String(key, "dbkv", cmdUtil.WrapString("Prefix of all metric names exported at /metrics (http only)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.LogFormat = viper.GetString("log-format")
	serveCmdConfig.MetricsPrefix = viper.GetString("metrics-prefix")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
	}
	serveCmdConfig.DB = cmdUtil.GetDBConfig()

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("an endpoint is required")
	}
	if serveCmdConfig.TimeoutSecond <= 0 {
		return fmt.Errorf("invalid timeout %d (must be > 0)", serveCmdConfig.TimeoutSecond)
	}

	if err := logging.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	return logging.SetLogFormat(serveCmdConfig.LogFormat)
}

// newServerTransport creates the server transport selected by the transport flag
func newServerTransport(conf *common.ServerConfig, metrics *stats.Manager) (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		opts := []http.ServerOption{http.WithMetrics(metrics.WritePrometheus)}
		if conf.LogLevel == "debug" {
			opts = append(opts, http.WithRequestLogging())
		}
		return http.NewHttpServerTransport(opts...), nil
	case "tcp":
		return tcp.NewTCPServerTransport(conf.Transport.BufferSize, conf.Transport.WorkersPerConn), nil
	case "unix":
		return unix.NewUnixServerTransport(conf.Transport.BufferSize, conf.Transport.WorkersPerConn), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// run starts the dbKV server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	metrics := stats.NewManager(serveCmdConfig.MetricsPrefix)
	defer metrics.Stop()

	t, err := newServerTransport(serveCmdConfig, metrics)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		sqlstore.NewSQLStore(serveCmdConfig.DB, metrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- serv.Serve() }()

	select {
	case err := <-errCh:
		// the listener failed before any signal arrived
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, serv.Shutdown(shutdownCtx))
	case <-ctx.Done():
	}

	server.Logger.Infof("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := serv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	reads, writes := metrics.Totals()
	server.Logger.Infof("served %d reads and %d writes (%s)", reads, writes, metrics.Rates())
	return <-errCh
}
