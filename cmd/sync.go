package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/notetaker/internal/calsync"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
)

type syncOptions struct {
	userID      uint
	createBots  bool
	leadMinutes int
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize calendar events once",
		Long: `Fetch upcoming events from every active calendar account and store them.

Without --user every user is synchronized. The result is printed as JSON.

Examples:
  # Sync all users
  notetaker sync

  # Sync one user and send agents to eligible meetings
  notetaker sync --user 42 --create-bots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, logging.FormatText)
			a, err := newApp(ctx, cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if opts.userID == 0 {
				job := queue.NewJob(queue.KindSyncCalendar)
				job.CreateBots = opts.createBots
				job.LeadMinutes = opts.leadMinutes
				result, err := a.dispatcher.Run(ctx, job)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			lead := opts.leadMinutes
			if lead <= 0 {
				if lead, err = a.store.LeadMinutes(ctx, opts.userID, cfg.DefaultLeadMinutes); err != nil {
					return err
				}
			}
			result, err := a.syncer.Sync(ctx, opts.userID, calsync.Options{
				CreateBots:  opts.createBots,
				LeadMinutes: lead,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().UintVar(&opts.userID, "user", 0, "Only sync this user")
	cmd.Flags().BoolVar(&opts.createBots, "create-bots", false, "Create recording agents for eligible events")
	cmd.Flags().IntVar(&opts.leadMinutes, "lead-minutes", 0, "Minutes before the start an agent joins (default: the user's setting)")

	return cmd
}
