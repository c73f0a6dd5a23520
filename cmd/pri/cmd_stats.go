package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
)

var statsDetailed bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report memory store health and per-namespace record counts",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsDetailed, "detailed", false, "list every namespace with its own record count")
}

func runStats(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	health, err := a.Store.Health(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("store: %s\n", health.State)
	fmt.Printf("memories: %d\n", health.MemoryCount)
	fmt.Printf("vector index entries: %d\n", health.VectorCount)

	if !statsDetailed {
		return nil
	}

	namespaces, err := a.Store.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	fmt.Printf("namespaces: %d\n", len(namespaces))
	for _, ns := range namespaces {
		count, err := a.Store.Count(ctx, ns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: error counting (%v)\n", ns, err)
			continue
		}
		fmt.Printf("  %-30s %d\n", ns, count)
	}

	return nil
}
