package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/prompt"
	"github.com/courseforge/courseforge/internal/quality"
)

var generateFlags struct {
	title      string
	context    string
	duration   string
	difficulty string
	strategy   string
	budget     float64
	maxTokens  int64
	noStream   bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a course curriculum from the command line",
	Long:  "Runs one generation through the model selection and fallback machinery and writes the markdown to stdout. Nothing is persisted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateFlags.title == "" {
			return eris.New("--title is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if len(env.Clients) == 0 {
			return eris.New("no provider keys configured; set COURSEFORGE_OPENAI_KEY or COURSEFORGE_ANTHROPIC_KEY")
		}

		input := model.CourseInput{
			Title:           generateFlags.title,
			Context:         generateFlags.context,
			Duration:        generateFlags.duration,
			DifficultyLevel: generateFlags.difficulty,
		}

		builder := prompt.New(prompt.VariantAdvanced)
		maxTokens := generateFlags.maxTokens
		if maxTokens <= 0 {
			maxTokens = 8000
		}

		sel := llm.SelectRequest{
			Strategy:        generateFlags.strategy,
			EstimatedTokens: maxTokens,
			BudgetUSD:       generateFlags.budget,
		}
		req := llm.Request{
			System:      builder.System(),
			Prompt:      builder.Course(input),
			MaxTokens:   maxTokens,
			Temperature: 0.7,
		}

		executor := llm.NewExecutor(env.Scorer, env.Clients)

		var result *llm.Result
		if generateFlags.noStream {
			result, err = executor.Complete(cmd.Context(), sel, req)
			if err != nil {
				return err
			}
			fmt.Println(result.Content)
		} else {
			result, err = executor.Stream(cmd.Context(), sel, req, func(chunk string) error {
				_, werr := os.Stdout.WriteString(chunk)
				return werr
			})
			if err != nil {
				return err
			}
			fmt.Println()
		}

		report := quality.NewValidator().Validate(result.Content)
		zap.L().Info("generation finished",
			zap.String("model", result.Model.Key()),
			zap.Int64("input_tokens", result.Usage.InputTokens),
			zap.Int64("output_tokens", result.Usage.OutputTokens),
			zap.Float64("cost_usd", result.CostUSD),
			zap.Float64("quality_score", report.Score),
			zap.Bool("quality_passed", report.Passed),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateFlags.title, "title", "", "course title (required)")
	generateCmd.Flags().StringVar(&generateFlags.context, "context", "", "learner context")
	generateCmd.Flags().StringVar(&generateFlags.duration, "duration", "", "course duration, e.g. \"6 weeks\"")
	generateCmd.Flags().StringVar(&generateFlags.difficulty, "difficulty", "", "difficulty level")
	generateCmd.Flags().StringVar(&generateFlags.strategy, "strategy", "balanced", "cost strategy: budget, balanced, premium")
	generateCmd.Flags().Float64Var(&generateFlags.budget, "budget", 0, "soft budget in USD for this generation")
	generateCmd.Flags().Int64Var(&generateFlags.maxTokens, "max-tokens", 0, "output token cap (default per model)")
	generateCmd.Flags().BoolVar(&generateFlags.noStream, "no-stream", false, "wait for the full result instead of streaming")
	rootCmd.AddCommand(generateCmd)
}
