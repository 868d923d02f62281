package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/starbridge/internal/chain"
	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/repository"
	"github.com/josh-kwaku/starbridge/internal/service/payment"
)

// readOnlyService exposes the query side of the payment service. No oracle,
// executor or refunder is wired, so state-changing calls are not available.
func readOnlyService(cmd *cobra.Command) (*payment.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := payment.NewService(repository.NewPaymentRepository(repository.NewDB(db)), nil, nil, nil, nil, nil)
	return svc, func() { db.Close() }, nil
}

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Inspect payments",
	}
	cmd.AddCommand(paymentsGetCmd(), paymentsListCmd(), paymentsFailedCmd(), paymentsEventsCmd())
	return cmd
}

func paymentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [payment-id]",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %w", err)
			}
			svc, done, err := readOnlyService(cmd)
			if err != nil {
				return err
			}
			defer done()

			p, err := svc.GetPayment(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(p)
			}

			var explorerURL string
			if p.SettlementTxRef != nil {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				registry, err := chain.NewRegistry(cfg.Chain)
				if err != nil {
					return err
				}
				explorerURL = registry.ExplorerTxURL(p.Chain, *p.SettlementTxRef)
			}
			writePaymentDetail(os.Stdout, p, explorerURL)
			return nil
		},
	}
}

func paymentsListCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list [buyer-id]",
		Short: "List a buyer's payments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid buyer id: %w", err)
			}
			svc, done, err := readOnlyService(cmd)
			if err != nil {
				return err
			}
			defer done()

			result, err := svc.ListBuyerPayments(cmd.Context(), buyerID, page)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			if err := writePaymentTable(os.Stdout, result.Payments); err != nil {
				return err
			}
			fmt.Printf("page %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, 1-based")
	return cmd
}

func paymentsFailedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List failed payments awaiting reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := readOnlyService(cmd)
			if err != nil {
				return err
			}
			defer done()

			payments, err := svc.ListFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(payments)
			}
			return writePaymentTable(os.Stdout, payments)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum results")
	return cmd
}

func paymentsEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [payment-id]",
		Short: "Show a payment's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %w", err)
			}
			svc, done, err := readOnlyService(cmd)
			if err != nil {
				return err
			}
			defer done()

			events, err := svc.PaymentEvents(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(events)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tEVENT\tACTOR\tPAYLOAD")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, e.Actor, string(e.Payload))
			}
			return tw.Flush()
		},
	}
}

func writePaymentTable(w io.Writer, payments []domain.Payment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBUYER\tSTATUS\tCREDITS\tAMOUNT\tASSET\tCREATED")
	for _, p := range payments {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s/%s\t%s\n",
			p.ID, p.BuyerID, p.Status, p.Credits, p.Amount, p.Chain, p.Token,
			p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writePaymentDetail(w io.Writer, p *domain.Payment, explorerURL string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "Buyer\t%d\n", p.BuyerID)
	fmt.Fprintf(tw, "Status\t%s\n", p.Status)
	fmt.Fprintf(tw, "Destination\t%s\n", p.Destination)
	fmt.Fprintf(tw, "Asset\t%s on %s\n", p.Token, p.Chain)
	fmt.Fprintf(tw, "Credits\t%d\n", p.Credits)
	fmt.Fprintf(tw, "Amount\t%s (gross %s, fees %s)\n", p.Amount, p.GrossAmount, p.FeeAmount)
	fmt.Fprintf(tw, "Charge\t%s\n", orDash(p.ChargeRef))
	fmt.Fprintf(tw, "Tx\t%s\n", orDash(p.SettlementTxRef))
	if explorerURL != "" {
		fmt.Fprintf(tw, "Explorer\t%s\n", explorerURL)
	}
	fmt.Fprintf(tw, "Failure\t%s\n", orDash(p.FailureReason))
	fmt.Fprintf(tw, "Created\t%s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	if p.RefundRequestedAt != nil {
		fmt.Fprintf(tw, "Refund requested\t%s\n", p.RefundRequestedAt.Format("2006-01-02 15:04:05"))
	}
	if p.CompletedAt != nil {
		fmt.Fprintf(tw, "Completed\t%s\n", p.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
