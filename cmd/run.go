package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/generator"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/llm"
	"github.com/abhisek/quotagen/internal/orchestrator"
	"github.com/abhisek/quotagen/internal/pipeline"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/report"
	"github.com/abhisek/quotagen/internal/store"
	"github.com/abhisek/quotagen/internal/validation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit, optionally prune, and fill every quota cell of a product",
	RunE:  runPipeline,
}

func init() {
	addSelectionFlags(runCmd)
	runCmd.Flags().Bool("no-fill", false, "Audit only; do not generate questions")
	runCmd.Flags().Bool("prune", false, "Prune surplus in each section before filling it")
	runCmd.Flags().String("policy", "", "Prune policy: newest or oldest (default from config)")
	runCmd.Flags().Bool("dry-run", false, "Plan pruning without deleting anything")
	runCmd.Flags().String("report-file", "", "Also write the JSON run report to this file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sel := readSelection(cmd)
	noFill, _ := cmd.Flags().GetBool("no-fill")
	doPrune, _ := cmd.Flags().GetBool("prune")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reportFile, _ := cmd.Flags().GetString("report-file")

	policyName, _ := cmd.Flags().GetString("policy")
	if policyName == "" {
		policyName = appConfig.Prune.Policy
	}
	policy, err := pruner.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID := uuid.NewString()
	stats := report.NewStats(runID, sel.product, sel.mode)
	meter := &llm.Meter{}

	var (
		orch  *orchestrator.Orchestrator
		model string
	)
	if !noFill {
		orch, model, err = buildOrchestrator(ctx, st, stats, meter)
		if err != nil {
			return err
		}
	}

	pr := pruner.New(catalog, st.Questions(), st.EventRepo(),
		pruner.WithDryRun(dryRun || appConfig.Prune.DryRun),
		pruner.WithRunID(runID))

	runner := pipeline.NewRunner(catalog, inventory.NewAccountant(st.Questions()), orch, pr, appConfig.Pipeline.Concurrency)
	runErr := runner.Run(ctx, pipeline.Options{
		RunID:    runID,
		Product:  sel.product,
		TestMode: sel.mode,
		Sections: sel.sections,
		Fill:     !noFill,
		Prune:    doPrune,
		Policy:   policy,
	}, stats)

	stats.SetUsage(model, meter.Snapshot())
	stats.Finish()
	rep := report.Summarize(stats)

	if err := report.Render(cmd.OutOrStdout(), rep); err != nil {
		zap.L().Warn("Failed to render run report", zap.Error(err))
	}

	sinks := report.MultiSink{report.NewStoreSink(st.EventRepo())}
	if reportFile != "" {
		sinks = append(sinks, report.FileSink{Path: reportFile})
	}
	report.Publish(context.WithoutCancel(ctx), rep, sinks)

	if errors.Is(runErr, context.Canceled) {
		zap.L().Warn("Run interrupted; partial results kept", zap.String("run_id", runID))
	}
	return runErr
}

// buildOrchestrator wires generation and verification providers that share
// one meter, so the report's call count covers both.
func buildOrchestrator(ctx context.Context, st *store.Store, stats *report.Stats, meter *llm.Meter) (*orchestrator.Orchestrator, string, error) {
	events := st.EventRepo()

	genProvider, err := llm.NewProvider(ctx, appConfig.GeneratorLLM(), events, meter)
	if err != nil {
		return nil, "", fmt.Errorf("generation provider: %w", err)
	}
	verProvider, err := llm.NewProvider(ctx, appConfig.VerifierLLM(), events, meter)
	if err != nil {
		return nil, "", fmt.Errorf("verification provider: %w", err)
	}

	genCfg := generator.DefaultConfig()
	genCfg.MaxTokens = appConfig.LLM.MaxTokens
	genCfg.Temperature = appConfig.LLM.Temperature
	genCfg.MaxExclusions = appConfig.Diversity.MaxExclusions

	validator := newValidator(verProvider)

	orch := orchestrator.New(generator.New(genProvider, genCfg), validator, st.Questions(), stats, orchestrator.Config{
		MaxAttempts:   appConfig.Pipeline.MaxAttempts,
		RetryDelay:    appConfig.Pipeline.RetryDelay(),
		MaxRetryDelay: appConfig.Pipeline.MaxRetryDelay(),
	})

	zap.L().Info("Providers ready",
		zap.String("generator", genProvider.ModelID()),
		zap.String("verifier", verProvider.ModelID()))

	return orch, genProvider.ModelID(), nil
}

// newValidator builds the artifact scan, answer verification and
// duplicate check sequence from configuration.
func newValidator(verifier llm.Provider) *validation.Pipeline {
	return validation.New(
		validation.NewArtifactScanner(artifactMarkers(appConfig.Artifacts.Markers)),
		validation.NewAnswerVerifier(validation.NewLLMOracle(verifier, appConfig.Verifier.MaxTokens, appConfig.Verifier.Temperature)),
		validation.NewDuplicateChecker(diversity.NewGuard(appConfig.Diversity.SimilarityThreshold, appConfig.Diversity.ReadingThreshold)),
	)
}
