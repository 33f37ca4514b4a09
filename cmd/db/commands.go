package db

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/orbitapi/cmd/util"
	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/client"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the databases the gateway has open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbs, err := orbitClient.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(dbs)
		},
	}
	searchesCmd = &cobra.Command{
		Use:   "searches",
		Short: "Lists the running peer searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			searches, err := orbitClient.Searches(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(searches)
		},
	}
	openCmd = &cobra.Command{
		Use:   "open [db]",
		Short: "Opens (or creates) a database and waits until it is ready",
		Long: util.WrapString("Opens (or creates) a database and waits until it is ready. " +
			"Every db command closes its client when it finishes, which unloads all databases it opened, " +
			"so the database is unloaded again right after it was reported as ready. " +
			"Use it to create a database or to check that it can be loaded."),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := db.AwaitReady(cmd.Context()); err != nil {
				return err
			}
			return printJSON(map[string]any{
				"name":         db.Name(),
				"address":      db.Address(),
				"type":         db.Type(),
				"capabilities": db.Capabilities().List(),
				"ready":        db.Ready(),
			})
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [db]",
		Short: "Prints the descriptor of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := db.Info(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
	unloadCmd = &cobra.Command{
		Use:   "unload [db]",
		Short: "Closes a database on the gateway",
		Long: util.WrapString("Opens the database and closes it on the gateway. " +
			"Every db command already unloads the databases it opened when it finishes, " +
			"so this only differs from other commands in that it reports the result of the unload call."),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := db.Unload(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("unloaded successfully")
			return nil
		},
	}
	allCmd = &cobra.Command{
		Use:   "all [db]",
		Short: "Prints all entries of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			all, err := db.All(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(all)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [db] [key|hash]",
		Short: "Gets a value (keyvalue), an entry (feed, eventlog) or documents (docstore)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}

			var result any
			switch d := db.(type) {
			case *client.KeyValueDB:
				result, err = d.Get(ctx, args[1])
			case *client.FeedDB:
				result, err = d.Get(ctx, args[1])
			case *client.EventLogDB:
				result, err = d.Get(ctx, args[1])
			case *client.DocStoreDB:
				result, err = d.Get(ctx, args[1])
			default:
				return unsupported(db, store.CapGet)
			}
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [db] [key] [value] | put [db] [document]",
		Short: "Sets the value for a key (keyvalue) or stores a JSON document (docstore)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}

			var result any
			switch d := db.(type) {
			case *client.KeyValueDB:
				if len(args) != 3 {
					return fmt.Errorf("keyvalue put requires a key and a value")
				}
				result, err = d.Put(ctx, args[1], parseValue(args[2]))
			case *client.DocStoreDB:
				if len(args) != 2 {
					return fmt.Errorf("docstore put requires exactly one document")
				}
				result, err = d.Put(ctx, parseValue(args[1]))
			default:
				return unsupported(db, store.CapPut)
			}
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [db] [entry]",
		Short: "Appends an entry to a feed or eventlog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}

			var result any
			switch d := db.(type) {
			case *client.FeedDB:
				result, err = d.Add(ctx, parseValue(args[1]))
			case *client.EventLogDB:
				result, err = d.Add(ctx, parseValue(args[1]))
			default:
				return unsupported(db, store.CapAdd)
			}
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [db] [key|hash]",
		Short: "Removes a key (keyvalue, docstore) or an entry (feed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}

			var result any
			switch d := db.(type) {
			case *client.KeyValueDB:
				result, err = d.Remove(ctx, args[1])
			case *client.FeedDB:
				result, err = d.Remove(ctx, args[1])
			case *client.DocStoreDB:
				result, err = d.Remove(ctx, args[1])
			default:
				return unsupported(db, store.CapRemove)
			}
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	iteratorCmd = &cobra.Command{
		Use:   "iterator [db]",
		Short: "Lists entries of a feed or eventlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			limit, _ := flags.GetInt("limit")
			opts := store.IteratorOptions{Limit: &limit}
			opts.Gt, _ = flags.GetString("gt")
			opts.Gte, _ = flags.GetString("gte")
			opts.Lt, _ = flags.GetString("lt")
			opts.Lte, _ = flags.GetString("lte")
			opts.Reverse, _ = flags.GetBool("reverse")

			var entries []any
			switch d := db.(type) {
			case *client.FeedDB:
				entries, err = d.Iterator(ctx, opts)
			case *client.EventLogDB:
				entries, err = d.Iterator(ctx, opts)
			default:
				return unsupported(db, store.CapIterator)
			}
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [db] [property] [comparison] [value...]",
		Short: "Queries a docstore (comparisons: eq, ne, gt, gte, lt, lte, mod, range, all)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}
			docs, ok := db.(*client.DocStoreDB)
			if !ok {
				return unsupported(db, store.CapQuery)
			}

			q := store.Query{PropName: args[1], Comp: args[2], Values: []any{}}
			for _, v := range args[3:] {
				q.Values = append(q.Values, parseValue(v))
			}
			result, err := docs.Query(ctx, q)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	incCmd = &cobra.Command{
		Use:   "inc [db] [n]",
		Short: "Increments a counter (by 1 if n is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n := int64(1)
			if len(args) == 2 {
				var err error
				if n, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("n must be a number: %w", err)
				}
			}

			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}
			counter, ok := db.(*client.CounterDB)
			if !ok {
				return unsupported(db, store.CapInc)
			}
			result, err := counter.Inc(ctx, n)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	valueCmd = &cobra.Command{
		Use:   "value [db]",
		Short: "Prints the value of a counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}
			counter, ok := db.(*client.CounterDB)
			if !ok {
				return unsupported(db, store.CapValue)
			}
			value, err := counter.Value(ctx)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
	peersCmd = &cobra.Command{
		Use:   "peers [db]",
		Short: "Lists the peers of a database (--find starts a peer search)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, args[0])
			if err != nil {
				return err
			}
			if find, _ := cmd.Flags().GetBool("find"); find {
				result, err := db.FindPeers(ctx, nil)
				if err != nil {
					return err
				}
				return printJSON(result)
			}
			peers, err := db.GetPeers(ctx)
			if err != nil {
				return err
			}
			return printJSON(peers)
		},
	}
)

func init() {
	iteratorCmd.Flags().Int("limit", -1, "Number of entries (-1 for all)")
	iteratorCmd.Flags().String("gt", "", "Only entries after this hash")
	iteratorCmd.Flags().String("gte", "", "Only entries from this hash on")
	iteratorCmd.Flags().String("lt", "", "Only entries before this hash")
	iteratorCmd.Flags().String("lte", "", "Only entries up to this hash")
	iteratorCmd.Flags().Bool("reverse", false, "Newest entries first")

	peersCmd.Flags().Bool("find", false, "Start a peer search instead of listing peers")
}
