// Package cli implements the erpctl operations commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bakery-erp/internal/posting"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// SettingsSeeder stores the settings of a YAML seed document.
type SettingsSeeder interface {
	Seed(ctx context.Context, r io.Reader) (int, error)
}

// StockReader answers closing stock queries.
type StockReader interface {
	ClosingStock(ctx context.Context, itemID, locationID int64, date time.Time) (decimal.Decimal, error)
}

// TransactionRecoverer restores soft-deleted transactions.
type TransactionRecoverer interface {
	Recover(ctx context.Context, kind posting.Kind, id int64) (int64, error)
}

// JobRunner triggers and inspects background jobs.
type JobRunner interface {
	Trigger(ctx context.Context, name string) (string, error)
	InspectQueues(ctx context.Context) ([]QueueStats, error)
}

// SchemaMigrator applies pending schema migrations.
type SchemaMigrator interface {
	Migrate(ctx context.Context) ([]string, error)
}

// Services are the backends the commands operate on. Nil members make the
// commands that need them fail.
type Services struct {
	Settings     SettingsSeeder
	Stock        StockReader
	Transactions TransactionRecoverer
	Jobs         JobRunner
	Schema       SchemaMigrator
}

// Connector opens the backends; the returned func releases them.
type Connector func(ctx context.Context) (*Services, func(), error)

type options struct {
	connect Connector
	json    bool
	actorID int64
}

// NewRootCommand builds the erpctl command tree.
func NewRootCommand(connect Connector) *cobra.Command {
	opts := &options{connect: connect}
	root := &cobra.Command{
		Use:           "erpctl",
		Short:         "Operations tooling for the bakery ERP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON output")
	root.PersistentFlags().Int64Var(&opts.actorID, "actor", 0, "user id recorded on writes")

	root.AddCommand(newMigrateCommand(opts), newSettingsCommand(opts), newStockCommand(opts), newTxnCommand(opts), newJobsCommand(opts))
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, connect Connector, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(connect)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "erpctl:", err)
		return 1
	}
	return 0
}

func (o *options) services(cmd *cobra.Command) (*Services, func(), error) {
	svc, closeFn, err := o.connect(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return svc, closeFn, nil
}

func (o *options) actorContext(ctx context.Context) context.Context {
	return shared.ContextWithActor(ctx, shared.Actor{ID: o.actorID, Platform: "erpctl"})
}

func (o *options) print(cmd *cobra.Command, v any, text string) error {
	if o.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Schema == nil {
				return fmt.Errorf("schema backend not configured")
			}
			applied, err := svc.Schema.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			text := "schema up to date"
			if len(applied) > 0 {
				text = "applied " + strings.Join(applied, ", ")
			}
			return opts.print(cmd, map[string][]string{"applied": applied}, text)
		},
	}
}

func newSettingsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Manage application settings"}
	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Load settings from a YAML seed file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := io.Reader(cmd.InOrStdin())
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Settings == nil {
				return fmt.Errorf("settings backend not configured")
			}
			n, err := svc.Settings.Seed(cmd.Context(), in)
			if err != nil {
				return err
			}
			return opts.print(cmd, map[string]int{"seeded": n}, fmt.Sprintf("seeded %d settings", n))
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "-", "seed file, - for stdin")
	cmd.AddCommand(seed)
	return cmd
}

func newStockCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "stock", Short: "Query the stock ledger"}
	var itemID, locationID int64
	var date string
	closing := &cobra.Command{
		Use:   "closing",
		Short: "Print the closing stock of an item at a location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if itemID <= 0 || locationID <= 0 {
				return fmt.Errorf("--item and --location are required")
			}
			on := time.Now().UTC()
			if strings.TrimSpace(date) != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				on = parsed
			}
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Stock == nil {
				return fmt.Errorf("stock backend not configured")
			}
			qty, err := svc.Stock.ClosingStock(cmd.Context(), itemID, locationID, on)
			if err != nil {
				return err
			}
			out := struct {
				ItemID     int64           `json:"item_id"`
				LocationID int64           `json:"location_id"`
				Date       string          `json:"date"`
				Quantity   decimal.Decimal `json:"quantity"`
			}{itemID, locationID, on.Format(time.DateOnly), qty}
			return opts.print(cmd, out, fmt.Sprintf("item %d at location %d on %s: %s", itemID, locationID, out.Date, qty.String()))
		},
	}
	closing.Flags().Int64Var(&itemID, "item", 0, "item id")
	closing.Flags().Int64Var(&locationID, "location", 0, "location id")
	closing.Flags().StringVar(&date, "date", "", "as-of date (YYYY-MM-DD), default today")
	cmd.AddCommand(closing)
	return cmd
}

func newTxnCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "txn", Short: "Manage posted transactions"}
	var kind string
	var id int64
	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover a deleted transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := posting.ParseKind(kind)
			if err != nil {
				return err
			}
			if id <= 0 {
				return fmt.Errorf("--id is required")
			}
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Transactions == nil {
				return fmt.Errorf("transactions backend not configured")
			}
			recovered, err := svc.Transactions.Recover(opts.actorContext(cmd.Context()), k, id)
			if err != nil {
				return err
			}
			return opts.print(cmd, map[string]int64{"id": recovered}, fmt.Sprintf("recovered %s %d", k, recovered))
		},
	}
	recoverCmd.Flags().StringVar(&kind, "kind", "", "transaction kind")
	recoverCmd.Flags().Int64Var(&id, "id", 0, "transaction id")
	cmd.AddCommand(recoverCmd)
	return cmd
}

func newJobsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Trigger and inspect background jobs"}
	trigger := &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a scheduled job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Jobs == nil {
				return fmt.Errorf("jobs backend not configured")
			}
			taskID, err := svc.Jobs.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd, map[string]string{"task_id": taskID}, "enqueued "+taskID)
		},
	}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.services(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if svc.Jobs == nil {
				return fmt.Errorf("jobs backend not configured")
			}
			queues, err := svc.Jobs.InspectQueues(cmd.Context())
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(queues))
			for _, q := range queues {
				lines = append(lines, fmt.Sprintf("%-14s pending=%d active=%d scheduled=%d retry=%d archived=%d",
					q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Archived))
			}
			return opts.print(cmd, queues, strings.Join(lines, "\n"))
		},
	}
	cmd.AddCommand(trigger, stats)
	return cmd
}
