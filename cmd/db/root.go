package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/orbitapi/cmd/util"
	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/client"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

var Logger = logger.GetLogger(common.LoggerCLI)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	orbitClient *client.Client

	// DBCommands represents the database command group
	DBCommands = &cobra.Command{
		Use:                "db",
		Short:              "Perform database operations on the gateway",
		Long: util.WrapString("Perform database operations on the gateway. " +
			"Each command opens the databases it needs and unloads them again when it finishes."),
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Add common connection flags to the db command
	util.SetupClientFlags(DBCommands)

	key := "type"
	DBCommands.PersistentFlags().String(key, "", util.WrapString("Type of the database (keyvalue, feed, eventlog, docstore, counter), required with --create"))
	key = "create"
	DBCommands.PersistentFlags().Bool(key, false, util.WrapString("Create the database if it does not exist"))
	key = "index-by"
	DBCommands.PersistentFlags().String(key, "", util.WrapString("Field used as key of a docstore (default _id)"))
	key = "local-only"
	DBCommands.PersistentFlags().Bool(key, false, util.WrapString("Do not fetch the database from peers"))

	// Add subcommands
	DBCommands.AddCommand(listCmd)
	DBCommands.AddCommand(searchesCmd)
	DBCommands.AddCommand(openCmd)
	DBCommands.AddCommand(infoCmd)
	DBCommands.AddCommand(unloadCmd)
	DBCommands.AddCommand(allCmd)
	DBCommands.AddCommand(getCmd)
	DBCommands.AddCommand(putCmd)
	DBCommands.AddCommand(addCmd)
	DBCommands.AddCommand(removeCmd)
	DBCommands.AddCommand(iteratorCmd)
	DBCommands.AddCommand(queryCmd)
	DBCommands.AddCommand(incCmd)
	DBCommands.AddCommand(valueCmd)
	DBCommands.AddCommand(peersCmd)
	DBCommands.AddCommand(eventsCmd)
	DBCommands.AddCommand(perfTestCmd)
}

// setupClient initializes logging and the gateway client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	orbitClient, err = client.New(config, util.GetTransport(), s)
	return err
}

// closeClient releases all handles and subscriptions of the client
func closeClient(cmd *cobra.Command, _ []string) error {
	if orbitClient == nil {
		return nil
	}
	return orbitClient.Close(cmd.Context())
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// openOptions builds the open options from the flags
func openOptions() (store.OpenOptions, error) {
	opts := store.OpenOptions{
		Create:    viper.GetBool("create"),
		LocalOnly: viper.GetBool("local-only"),
		IndexBy:   viper.GetString("index-by"),
	}
	if name := viper.GetString("type"); name != "" {
		t, err := store.ParseDBType(name)
		if err != nil {
			return opts, err
		}
		opts.Type = t
	}
	if opts.Create && opts.Type == "" {
		return opts, fmt.Errorf("--create requires --type")
	}
	return opts, nil
}

// openDB opens the database name with the options given on the command line
func openDB(ctx context.Context, name string) (client.DB, error) {
	opts, err := openOptions()
	if err != nil {
		return nil, err
	}
	return orbitClient.OpenDatabase(ctx, name, opts)
}

// unsupported is returned when the opened database lacks a capability
func unsupported(db client.DB, c store.Capability) error {
	return store.Require(db.Type(), c)
}

// parseValue interprets s as JSON, falling back to the plain string
func parseValue(s string) any {
	var v any
	if json.Valid([]byte(s)) && json.UnmarshalFromString(s, &v) == nil {
		return v
	}
	return s
}

// printJSON writes v as indented JSON to stdout
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

func splitNames(args []string) []string {
	var names []string
	for _, arg := range args {
		for _, name := range strings.Split(arg, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
