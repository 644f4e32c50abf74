package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// corpusTool is the slice of the application the batch commands drive.
type corpusTool interface {
	IngestDirectory(ctx context.Context, dir string) (ingested, failed int, err error)
	Rebuild(ctx context.Context) error
	Clear(ctx context.Context) error
}

type openFunc func(ctx context.Context) (corpusTool, func(), error)

func newRootCmd(open openFunc, defaultDir string) *cobra.Command {
	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Batch maintenance for the document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDirCmd(open, defaultDir), newRebuildCmd(open), newClearCmd(open))
	return root
}

func newDirCmd(open openFunc, defaultDir string) *cobra.Command {
	var (
		noRebuild bool
		strict    bool
	)
	cmd := &cobra.Command{
		Use:   "dir [path]",
		Short: "Ingest every supported file in a directory",
		Long: `Ingests every supported file directly under the directory that is not
already ready, then publishes a rebuild event so running replicas reload
their lexical index. The directory defaults to DOCUMENTS_PATH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := defaultDir
			if len(args) == 1 {
				dir = args[0]
			}
			return withTool(cmd, open, func(ctx context.Context, tool corpusTool) error {
				ingested, failed, err := tool.IngestDirectory(ctx, dir)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", dir, err)
				}
				cmd.Printf("Ingested %d documents from %s (%d failed).\n", ingested, dir, failed)

				if !noRebuild {
					if err := tool.Rebuild(ctx); err != nil {
						return fmt.Errorf("rebuild: %w", err)
					}
				}
				if strict && failed > 0 {
					return fmt.Errorf("%d documents failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noRebuild, "no-rebuild", false, "skip publishing the rebuild event")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any document fails")
	return cmd
}

func newRebuildCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Tell every replica to reload its index from the chunk store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTool(cmd, open, func(ctx context.Context, tool corpusTool) error {
				if err := tool.Rebuild(ctx); err != nil {
					return fmt.Errorf("rebuild: %w", err)
				}
				cmd.Println("Rebuild published.")
				return nil
			})
		},
	}
}

func newClearCmd(open openFunc) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every document, chunk and embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the corpus without --yes")
			}
			return withTool(cmd, open, func(ctx context.Context, tool corpusTool) error {
				if err := tool.Clear(ctx); err != nil {
					return fmt.Errorf("clear: %w", err)
				}
				cmd.Println("Corpus cleared.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func withTool(cmd *cobra.Command, open openFunc, fn func(context.Context, corpusTool) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tool, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer closeFn()
	return fn(ctx, tool)
}
