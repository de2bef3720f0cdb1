package health

import (
	"fmt"

	"github.com/ValentinKolb/dbKV/cmd/util"
	dbhealth "github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/lib/store/sqlstore"
	"github.com/ValentinKolb/dbKV/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// HealthCmd runs a single health check and prints its records
var HealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the configured database",
	Long: `Runs one health check and prints the resulting records. By default the check runs locally against the database configured with the --db-* flags. With --remote the check is executed by a running dbKV server.
The command fails if any record has status WARN.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return util.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	util.SetupDBFlags(HealthCmd)
	util.SetupRPCClientFlags(HealthCmd)

	HealthCmd.Flags().Bool("remote", false, util.WrapString("Ask a running dbKV server instead of connecting to the database directly"))
	HealthCmd.Flags().String("log-level", "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// openStore returns the store the check runs against
func openStore() (store.IStore, error) {
	if !viper.GetBool("remote") {
		return sqlstore.NewSQLStore(util.GetDBConfig(), nil), nil
	}

	s, err := util.GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := util.GetTransport()
	if err != nil {
		return nil, err
	}
	return client.NewRPCStore(*util.GetClientConfig(), t, s)
}

func run(_ *cobra.Command, _ []string) error {
	if err := logging.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	records := s.HealthCheck()
	if len(records) == 0 {
		fmt.Println("store is disabled, no health records")
		return nil
	}
	for _, r := range records {
		fmt.Println(r.String())
	}

	if local, ok := s.(*sqlstore.Store); ok {
		if info, err := local.GetDBInfo(); err == nil {
			fmt.Println(info.String())
		}
	}

	if worst := dbhealth.Worst(records); worst == dbhealth.StatusWarn {
		return fmt.Errorf("health check reported %s", worst)
	}
	return nil
}
