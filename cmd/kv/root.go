package kv

import (
	"github.com/ValentinKolb/dbKV/cmd/util"
	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore
	table    db.Table

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().String("table", string(db.TablePwmMeta), util.WrapString("Logical table to operate on (PWM_META, PWM_RESPONSES, PWM_OTP, PWM_TOKENS, PWM_INTRUDER, PWM_AUDIT)"))

	// Add subcommands
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(sizeCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if table, err = util.GetTable(); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the KV store client
	rpcStore, err = client.NewRPCStore(
		*config,
		t,
		s,
	)

	return err
}

// closeKVClient releases the transport of the RPC store client
func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcStore != nil {
		rpcStore.Close()
	}
	return nil
}
