package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"event-marketplace/internal/status"

	"github.com/pocketbase/pocketbase"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ensureSchema applies pending migrations so operator commands work on a fresh data dir.
func ensureSchema(app *pocketbase.PocketBase) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		return app.RunAllMigrations()
	}
}

func registerCommands(app *pocketbase.PocketBase, e *engine) {
	app.RootCmd.AddCommand(
		distributeCommand(app, e),
		walletCommand(app, e),
		ticketsCommand(app, e),
	)
}

func distributeCommand(app *pocketbase.PocketBase, e *engine) *cobra.Command {
	root := &cobra.Command{
		Use:               "distribute",
		Short:             "Revenue distribution for finished events",
		PersistentPreRunE: ensureSchema(app),
	}

	root.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Distribute every eligible event once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := e.sweep.RunDistributionSweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "event <eventId>",
		Short: "Distribute a single event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.distribution.Distribute(cmd.Context(), args[0])
			if errors.Is(err, status.ErrAlreadyDistributed) && d != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "event already distributed")
				return printJSON(cmd.OutOrStdout(), d)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "show <eventId>",
		Short: "Show the distribution record of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.distribution.GetDistributionByEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List completed distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := e.distribution.ListCompletedDistributions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ds)
		},
	})

	return root
}

func walletCommand(app *pocketbase.PocketBase, e *engine) *cobra.Command {
	root := &cobra.Command{
		Use:               "wallet",
		Short:             "Inspect user wallets",
		PersistentPreRunE: ensureSchema(app),
	}

	var limit int
	history := &cobra.Command{
		Use:   "history <userId>",
		Short: "Print a wallet with its most recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := e.wallet.GetWalletWithHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "number of transactions, 0 for all")
	root.AddCommand(history)

	root.AddCommand(&cobra.Command{
		Use:   "verify <userId>",
		Short: "Replay the ledger and compare every balance snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.wallet.VerifyLedger(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger consistent")
			return nil
		},
	})

	return root
}

func ticketsCommand(app *pocketbase.PocketBase, e *engine) *cobra.Command {
	root := &cobra.Command{
		Use:               "tickets",
		Short:             "Ticket maintenance",
		PersistentPreRunE: ensureSchema(app),
	}

	root.AddCommand(&cobra.Command{
		Use:   "cancel <userId> <bookingId> <ticketUniqueId>",
		Short: "Cancel a ticket line and refund the buyer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := e.cancellation.CancelTicket(cmd.Context(), args[0], args[1], args[2])
			var inconsistent *status.InconsistentStateError
			if errors.As(err, &inconsistent) {
				fmt.Fprintf(cmd.ErrOrStderr(), "needs reconciliation: stage=%s refs=%v\n", inconsistent.Stage, inconsistent.Refs)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"refund_amount": res.RefundAmount.String(),
				"booking":       res.UpdatedBooking,
				"transaction":   res.Transaction,
			})
		},
	})

	return root
}
