package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/amaumene/torboxarr/internal/api"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "torboxarr",
		Short: "TorBox download manager with library organization and episode tracking",
		Long: `torboxarr mirrors your TorBox torrents, fetches finished ones through aria2,
organizes them into your media library and keeps tracked shows moving episode by episode.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	serve := RunServeCommand()
	rootCmd.RunE = serve.RunE
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(RunOrganizeCommand())
	rootCmd.AddCommand(RunEvaluateCommand())
	rootCmd.AddCommand(RunShowCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// RunServeCommand starts the scheduler, the queue folder watcher and the HTTP server
func RunServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	a.logger.Info("Starting torboxarr")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.checkServices(ctx)

	sched := scheduler.NewScheduler(a.sync, a.queue, a.fetch, a.arr, a.cfg.ArrRecheckHours, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	go func() {
		if err := a.queue.Watch(ctx); err != nil {
			a.logger.WithError(err).Error("Queue folder watcher stopped")
		}
	}()

	server := api.NewServer(a.cfg, a.db, api.Deps{
		Syncer:      a.sync,
		Shows:       a.arr,
		Reevaluator: sched,
		Organizer:   a.organizer,
		Downloads:   a.downloads,
		Remover:     a.cleanup,
		Recorder:    a.recorder,
	}, a.logger)

	a.logger.Info("torboxarr is running")
	if err := server.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("torboxarr stopped")
	return nil
}

// RunOrganizeCommand organizes one download immediately
func RunOrganizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "organize <download-id>",
		Short: "Run organization for one download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid download id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.organizer.Run(cmd.Context(), id); err != nil {
				return err
			}
			item, err := a.db.GetDownload(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", item.Name, item.LocalStatus)
			return nil
		},
	}
}

// RunEvaluateCommand runs one evaluation of a tracked show
func RunEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <show-id>",
		Short: "Search for the next episode of a tracked show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid show id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.arr.Evaluate(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
}

// RunShowCommand groups tracked show management
func RunShowCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "show",
		Short: "Manage tracked shows",
	}
	command.AddCommand(runShowAddCommand())
	return command
}

func runShowAddCommand() *cobra.Command {
	var (
		show     models.TrackedShow
		category string
	)

	command := &cobra.Command{
		Use:   "add",
		Short: "Start tracking a show",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if category != "" {
				c, err := a.db.GetCategoryByName(category)
				if err != nil {
					return fmt.Errorf("unknown category %q", category)
				}
				show.CategoryID = c.ID
			}
			if err := a.arr.AddShow(&show); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s as show %d from S%02dE%02d\n",
				show.ExternalID, show.ID, show.RequestedSeason, show.RequestedEpisode)
			return nil
		},
	}

	command.Flags().StringVar(&show.ExternalID, "imdb", "", "IMDb id of the show, e.g. tt0944947")
	command.Flags().StringVar(&show.Title, "title", "", "display title")
	command.Flags().IntVar(&show.RequestedSeason, "season", 1, "first season to fetch")
	command.Flags().IntVar(&show.RequestedEpisode, "episode", 1, "first episode to fetch")
	command.Flags().StringVar(&show.Quality, "quality", "", "comma-separated preferred qualities, e.g. 2160p,1080p")
	command.Flags().StringVar(&show.Encoder, "encoder", "", "comma-separated preferred encoders")
	command.Flags().StringVar(&show.IncludeWords, "include", "", "comma-separated words to prefer")
	command.Flags().StringVar(&show.ExcludeWords, "exclude", "", "comma-separated words to reject")
	command.Flags().StringVar(&category, "category", "", "category name (default Movie Series)")
	_ = command.MarkFlagRequired("imdb")

	return command
}
