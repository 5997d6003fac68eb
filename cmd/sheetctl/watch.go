package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sheetport/internal/importer"
	"sheetport/internal/importer/watch"
)

var (
	watchOpts     = importer.DefaultOptions()
	watchDebounce = watch.DefaultDebounce
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Import sheet files as they are dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, shutdown, err := startApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		actor, err := cliActor()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		w := watch.New(args[0], func(ctx context.Context, path string) error {
			return importFile(ctx, a.Importer, actor, path, watchOpts, out, false)
		},
			watch.WithDebounce(watchDebounce),
			watch.WithLogger(a.Logger),
		)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watchDebounce, "Quiet period before a changed file is imported")
	addOptionFlags(watchCmd.Flags(), &watchOpts)
}
