package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
)

type sweepOptions struct {
	userID      uint
	eventID     uint
	leadMinutes int
	createBots  bool
}

func newSweepCmd() *cobra.Command {
	var opts sweepOptions

	cmd := &cobra.Command{
		Use:   "sweep <joins|completions|sync|create_agent>",
		Short: "Run a single sweep in the foreground",
		Long: `Run one sweep immediately without the queue and print its result as JSON.

  joins        send due agents into their meetings
  completions  store transcripts and attendees of finished meetings
  sync         synchronize calendars
  create_agent create an agent for the event given with --event

Failed sweeps are not retried.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"joins", "completions", "sync", string(queue.KindCreateAgent)},
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := sweepJob(args[0], opts)
			if err != nil {
				return err
			}

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

			result, err := a.dispatcher.Run(ctx, job)
			if result != nil {
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().UintVar(&opts.userID, "user", 0, "Only sweep this user")
	cmd.Flags().UintVar(&opts.eventID, "event", 0, "Event for create_agent")
	cmd.Flags().IntVar(&opts.leadMinutes, "lead-minutes", 0, "Override the join lead time")
	cmd.Flags().BoolVar(&opts.createBots, "create-bots", true, "Create agents during a sync sweep")

	return cmd
}

// sweepJob builds the job for a sweep name and its flags.
func sweepJob(name string, opts sweepOptions) (queue.Job, error) {
	kind, err := queue.ParseKind(name)
	if err != nil {
		return queue.Job{}, err
	}
	if kind == queue.KindCreateAgent && opts.eventID == 0 {
		return queue.Job{}, errors.New("create_agent requires --event")
	}
	job := queue.NewJob(kind)
	job.UserID = opts.userID
	job.EventID = opts.eventID
	job.LeadMinutes = opts.leadMinutes
	job.CreateBots = kind == queue.KindSyncCalendar && opts.createBots
	return job, nil
}
