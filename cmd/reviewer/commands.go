package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"regflow/internal/audit"
	docmodels "regflow/internal/document/models"
	docstore "regflow/internal/document/store"
	"regflow/internal/platform/config"
	"regflow/internal/platform/logger"
	"regflow/internal/platform/postgres"
	"regflow/internal/review"
	pstrings "regflow/pkg/platform/strings"
)

const commandTimeout = 30 * time.Second

// reviewer bundles the service with whatever must be released afterwards.
type reviewer struct {
	svc     *review.Service
	release func()
}

func openReviewer(cmd *cobra.Command) (*reviewer, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Log.Level, "text")

	dsn, _ := cmd.Flags().GetString("database-url")
	if dsn == "" {
		dsn = cfg.Postgres.URL
	}
	if dsn == "" {
		return nil, errors.New("no database configured: set DATABASE_URL or --database-url")
	}

	db, err := postgres.Open(cmd.Context(), dsn)
	if err != nil {
		return nil, err
	}
	release := []func(){func() { db.Close() }}
	opts := []review.Option{review.WithLogger(log)}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Warn("audit disabled", "error", err)
		} else {
			release = append(release, sink.Close)
			opts = append(opts, review.WithAuditPublisher(audit.NewPublisher(sink, audit.WithLogger(log))))
		}
	}

	return &reviewer{
		svc:     review.NewService(docstore.NewPostgres(db), opts...),
		release: func() {
			for i := len(release) - 1; i >= 0; i-- {
				release[i]()
			}
		},
	}, nil
}

func withReviewer(fn func(ctx context.Context, cmd *cobra.Command, args []string, r *reviewer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		cmd.SetContext(ctx)

		r, err := openReviewer(cmd)
		if err != nil {
			return err
		}
		defer r.release()
		return fn(ctx, cmd, args, r)
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests awaiting review",
		Args:  cobra.NoArgs,
		RunE: withReviewer(func(ctx context.Context, cmd *cobra.Command, _ []string, r *reviewer) error {
			raw, _ := cmd.Flags().GetStringSlice("status")
			var statuses []docmodels.Status
			for _, s := range pstrings.DedupeAndTrimLower(raw) {
				statuses = append(statuses, docmodels.Status(s))
			}
			recs, err := r.svc.List(ctx, statuses...)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			return writeTable(cmd.OutOrStdout(), recs)
		}),
	}
	cmd.Flags().StringSliceP("status", "s", nil, "Statuses to include (default pending)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [document-id]",
		Short: "Show one request in full",
		Args:  cobra.ExactArgs(1),
		RunE: withReviewer(func(ctx context.Context, cmd *cobra.Command, args []string, r *reviewer) error {
			rec, err := r.svc.Get(ctx, docmodels.ID(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		}),
	}
}

func decideCmd(use, short string) *cobra.Command {
	status := docmodels.StatusApproved
	if use == "reject" {
		status = docmodels.StatusRejected
	}
	cmd := &cobra.Command{
		Use:   use + " [document-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withReviewer(func(ctx context.Context, cmd *cobra.Command, args []string, r *reviewer) error {
			notes, _ := cmd.Flags().GetString("notes")
			by, _ := cmd.Flags().GetString("by")
			rec, err := r.svc.Decide(ctx, docmodels.ID(args[0]), review.Decision{
				Status:     status,
				Notes:      notes,
				ReviewedBy: by,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s by %s\n", rec.ID, rec.Status, rec.ReviewedBy)
			return nil
		}),
	}
	cmd.Flags().StringP("notes", "n", "", "Review notes shown to the applicant")
	cmd.Flags().String("by", os.Getenv("USER"), "Reviewer identity")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, recs []*docmodels.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No requests.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBROKER\tREQUEST TYPE\tINVESTORS\tSUBMITTED")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID,
			rec.Status,
			rec.Registration.BrokerID,
			rec.Registration.RequestTypeID,
			rec.Registration.InvestorCount(),
			rec.CreatedAt.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}
