package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boddenberg/zenith-finance-go/internal/aggregate"
	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/events"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

func newSeedCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add the test transactions to an account for the current month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				defer printNotifications(cmd.ErrOrStderr(), a)
				if err := selectAccount(a, accountID); err != nil {
					return err
				}
				n, err := a.coordinator.SeedTestData(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the first account)")
	return cmd
}

func newSummaryCommand() *cobra.Command {
	var (
		accountID string
		rangeName string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard figures of an account as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := aggregate.ParseRange(rangeName)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := selectAccount(a, accountID); err != nil {
					return err
				}
				d, err := a.coordinator.Dashboard(rng)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the first account)")
	cmd.Flags().StringVar(&rangeName, "range", "thisMonth", "today, thisMonth or all")
	return cmd
}

func newQuickLogCommand() *cobra.Command {
	var (
		accountID string
		date      string
	)

	cmd := &cobra.Command{
		Use:   "quicklog KIND AMOUNT [field=value ...]",
		Short: "Record a templated transaction",
		Long: "Record a templated transaction. Kinds: " + kindList() + ".\n" +
			"Example: zenith quicklog food 12.50 item=Pizza",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := service.ParseQuickLogKind(args[0])
			if err != nil {
				return err
			}
			fields, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			entry := service.QuickLogEntry{Kind: string(kind), Fields: fields, Amount: args[1], Date: date}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				defer printNotifications(cmd.ErrOrStderr(), a)
				if err := selectAccount(a, accountID); err != nil {
					return err
				}
				tx, err := a.coordinator.QuickLog(ctx, entry)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(tx)
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the first account)")
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD (defaults to today)")
	return cmd
}

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect ledger events on the message broker",
	}
	cmd.AddCommand(newEventsTailCommand())
	return cmd
}

func newEventsTailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print ledger events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.AMQPURL == "" {
				return fmt.Errorf("AMQP_URL is not set")
			}

			p, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = p.Tail(ctx, func(ev domain.LedgerEvent) {
				_ = enc.Encode(ev)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

// selectAccount makes id the active account. An empty id keeps the account
// chosen when the ledger loaded.
func selectAccount(a *app, id string) error {
	if id == "" {
		return nil
	}
	return a.coordinator.Session().SetActiveAccount(id)
}

func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		fields[k] = v
	}
	return fields, nil
}

func kindList() string {
	kinds := service.QuickLogKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func printNotifications(w io.Writer, a *app) {
	for _, n := range a.queue.List() {
		fmt.Fprintf(w, "[%s] %s\n", n.Severity, n.Message)
	}
}
