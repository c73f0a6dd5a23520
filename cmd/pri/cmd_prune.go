package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/prune"
)

var (
	pruneStrategy   string
	pruneDryRun     bool
	pruneNamespace  string
	pruneAggressive bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Reclaim space in the memory store by age, quality, or redundancy",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().StringVar(&pruneStrategy, "strategy", string(prune.StrategyHybrid), "age_based | quality_based | redundancy_based | hybrid")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "compute and print the pruning plan without applying it")
	pruneCmd.Flags().StringVar(&pruneNamespace, "namespace", "", "limit pruning to this namespace (default: every namespace currently stored)")
	pruneCmd.Flags().BoolVar(&pruneAggressive, "aggressive", false, "halve the quality thresholds before pruning")
}

func runPrune(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	strategy := prune.Strategy(pruneStrategy)
	pruner := a.Pruner
	if pruneAggressive {
		cfg := a.Config.Memory
		pruner = prune.New(a.Store.GetDB(), prune.Config{
			MaxAge:                 cfg.MaxAge,
			QualityThreshold:       cfg.QualityThreshold / 2,
			ProtectedQualityFloor:  cfg.ProtectedQualityFloor / 2,
			ConsolidationThreshold: cfg.ConsolidationThreshold,
		})
	}

	ctx := context.Background()
	namespaces := []string{pruneNamespace}
	if pruneNamespace == "" {
		namespaces, err = a.Store.ListNamespaces(ctx)
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}

	for _, ns := range namespaces {
		if pruneDryRun {
			r, err := pruner.Plan(ctx, ns, strategy)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", ns, err)
				continue
			}
			fmt.Printf("[dry-run] %-30s before=%d after=%d removed=%d consolidated=%d\n",
				ns, r.Before, r.After, r.Removed, r.Consolidated)
			continue
		}

		r, err := pruner.Prune(ctx, ns, strategy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", ns, err)
			continue
		}
		fmt.Printf("%-30s before=%d after=%d removed=%d consolidated=%d\n",
			ns, r.Before, r.After, r.Removed, r.Consolidated)
	}

	return nil
}
