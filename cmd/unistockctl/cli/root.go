// Package cli implements the unistockctl admin commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/reconcile"
	"github.com/odyssey-erp/unistock/jobs"
)

// Reconciler runs inline stock reconciliation.
type Reconciler interface {
	RecomputeAll(ctx context.Context, filter reconcile.Filter) (reconcile.Report, error)
}

// Queue is the subset of JobsCLI the commands use.
type Queue interface {
	EnqueueReconcile(ctx context.Context, payload jobs.StockReconcilePayload) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// Runtime supplies lazily built dependencies so each command only connects
// to what it needs.
type Runtime struct {
	Logger        *slog.Logger
	DSN           string
	MigrationsDir string

	Migrate       func(dsn, dir string, logger *slog.Logger) (uint, error)
	NewReconciler func(ctx context.Context) (Reconciler, func(), error)
	NewQueue      func() (Queue, error)
	NewExecer     func(ctx context.Context) (Execer, func(), error)
}

// NewRootCommand assembles the command tree.
func NewRootCommand(rt Runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "unistockctl",
		Short:         "Administrative tasks for the unistock inventory service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(rt), newReconcileCommand(rt), newEnqueueCommand(rt), newQueueCommand(rt), newSeedCommand(rt))
	return root
}

func newMigrateCommand(rt Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.Migrate == nil {
				return errors.New("migrate: not configured")
			}
			dir, _ := cmd.Flags().GetString("dir")
			version, err := rt.Migrate(rt.DSN, dir, rt.Logger)
			if err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
	cmd.Flags().String("dir", rt.MigrationsDir, "Directory containing the migration files")
	return cmd
}

type scopeFlags struct {
	assetOnly      bool
	consumableOnly bool
	unit           int64
}

func (f *scopeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.assetOnly, "asset-only", false, "Only recompute asset-nature products")
	cmd.Flags().BoolVar(&f.consumableOnly, "consumable-only", false, "Only recompute consumable products")
	cmd.Flags().Int64Var(&f.unit, "unit", 0, "Restrict to one unit id (0 means every unit)")
	cmd.MarkFlagsMutuallyExclusive("asset-only", "consumable-only")
}

func (f scopeFlags) payload() jobs.StockReconcilePayload {
	var p jobs.StockReconcilePayload
	if f.unit > 0 {
		unit := f.unit
		p.UnitID = &unit
	}
	switch {
	case f.assetOnly:
		p.Nature = string(catalog.NatureAsset)
	case f.consumableOnly:
		p.Nature = string(catalog.NatureConsumable)
	}
	return p
}

func (f scopeFlags) filter() reconcile.Filter {
	p := f.payload()
	return reconcile.Filter{UnitID: p.UnitID, Nature: catalog.Nature(p.Nature)}
}

func newReconcileCommand(rt Runtime) *cobra.Command {
	var flags scopeFlags
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute cached stock quantities inline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.NewReconciler == nil {
				return errors.New("reconcile: not configured")
			}
			svc, closeFn, err := rt.NewReconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			report, err := svc.RecomputeAll(cmd.Context(), flags.filter())
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	flags.bind(cmd)
	return cmd
}

func printReport(w io.Writer, report reconcile.Report) {
	for _, r := range report.Results {
		fmt.Fprintf(w, "%s: %d -> %d\n", r.Code, r.Old, r.New)
	}
	fmt.Fprintln(w, report.String())
}

func newEnqueueCommand(rt Runtime) *cobra.Command {
	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue background jobs for the worker",
	}
	var flags scopeFlags
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Queue a stock reconciliation run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, err := openQueue(rt)
			if err != nil {
				return err
			}
			defer queue.Close()
			id, err := queue.EnqueueReconcile(cmd.Context(), flags.payload())
			if err != nil {
				return fmt.Errorf("enqueue reconcile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", id)
			return nil
		},
	}
	flags.bind(reconcileCmd)
	enqueue.AddCommand(reconcileCmd)
	return enqueue
}

func newQueueCommand(rt Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, err := openQueue(rt)
			if err != nil {
				return err
			}
			defer queue.Close()
			stats, err := queue.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		},
	}
}

func openQueue(rt Runtime) (Queue, error) {
	if rt.NewQueue == nil {
		return nil, errors.New("queue: not configured")
	}
	return rt.NewQueue()
}
