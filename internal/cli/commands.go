package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/debug"
	"github.com/dyike/tradecortex/internal/reflection"
	"github.com/dyike/tradecortex/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// session carries what PersistentPreRunE resolves to every subcommand.
type session struct {
	cfg        *config.Config
	configPath string
	mgr        *config.Manager
	logger     *zap.Logger
	app        *app
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "tradecortex",
		Short: "TradeCortex - multi-agent trading deliberation",
		Long: `TradeCortex runs a committee of LLM agents over an asset: analysts write reports,
researchers debate, a trader proposes and a risk committee decides LONG, SHORT or NEUTRAL.
Realized outcomes are fed back as per-role lessons that later deliberations recall.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.app != nil {
				if err := s.app.Close(); err != nil {
					s.logger.Warn("close", zap.Error(err))
				}
			}
			if s.logger != nil {
				_ = s.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (JSON)")

	rootCmd.AddCommand(
		newAnalyzeCmd(s),
		newBatchCmd(s),
		newReflectCmd(s),
		newLearningCmd(s),
		newRunsCmd(s),
		newConfigCmd(s),
		newVersionCmd(),
	)
	return rootCmd
}

func (s *session) init(cmd *cobra.Command) error {
	debugMode, _ := cmd.Flags().GetBool("debug")
	path, _ := cmd.Flags().GetString("config")

	logger, err := newLogger(debugMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	s.logger = logger

	if path != "" {
		mgr, err := config.NewManager(
			config.WithConfigPath(path),
			config.WithInitialConfig(config.DefaultConfig()),
			config.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		s.cfg = &cfg
		s.configPath = mgr.Path()
		s.mgr = mgr
	} else {
		s.cfg = config.DefaultConfig()
	}
	if debugMode {
		s.cfg.Debug = true
	}
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := debug.NewEinoDebugger(s.cfg, logger).Initialize(cmd.Context()); err != nil {
		logger.Warn("eino debug server unavailable", zap.Error(err))
	}
	s.app = newApp(s.cfg, logger)
	return nil
}

// manager returns the --config manager, or one over the default config path.
func (s *session) manager() (*config.Manager, error) {
	if s.mgr != nil {
		return s.mgr, nil
	}
	mgr, err := config.NewManager(config.WithInitialConfig(s.cfg), config.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.mgr = mgr
	return mgr, nil
}

func newAnalyzeCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [SYMBOL]",
		Short: "Run one deliberation for a symbol",
		Long: `Run the full deliberation pipeline for one asset and trade date.
Without a symbol the command prompts for one.
Example: tradecortex analyze AAPL --date=2024-03-15`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			var symbol string
			if len(args) == 1 {
				symbol = args[0]
			} else {
				var err error
				if symbol, err = PromptForSymbol(); err != nil {
					return interrupted(err)
				}
				if date == "" {
					if date, err = PromptForAnalysisDate(); err != nil {
						return interrupted(err)
					}
				}
			}
			if date == "" {
				date = time.Now().Format(consts.DateLayout)
			}

			ctx := cmd.Context()
			orch, err := s.app.orchestrator(ctx)
			if err != nil {
				return err
			}
			run, err := orch.NewRun(symbol, date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🚀 Starting %s deliberation for %s on %s\n", run.AssetClass, run.Symbol, run.Date)
			state, err := orch.Run(ctx, run)
			if err != nil {
				return fmt.Errorf("deliberation %s: %w", run.Status, err)
			}
			renderDecision(out, state, run.LogPath)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Trade date in YYYY-MM-DD format (today if not provided)")
	return cmd
}

func newBatchCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Deliberate several symbols concurrently",
		Long: `Run one independent deliberation per symbol. A failing symbol does not stop the others.
Example: tradecortex batch --tickers AAPL,MSFT,BTC-USD-PERP --date 2024-03-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tickers, _ := cmd.Flags().GetString("tickers")
			file, _ := cmd.Flags().GetString("file")
			date, _ := cmd.Flags().GetString("date")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			if date == "" {
				date = time.Now().Format(consts.DateLayout)
			}
			if concurrency <= 0 {
				concurrency = s.cfg.BatchConcurrency
			}
			symbols, err := ParseSymbols(tickers, file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			orch, err := s.app.orchestrator(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bm := NewBatchManager(orchestratorRunner{orch: orch}, concurrency, s.logger)
			bm.OnProgress(func(symbol string, status BatchStatus) {
				fmt.Fprintf(out, "%-14s %s\n", symbol, status)
			})
			fmt.Fprintf(out, "🚀 Deliberating %d symbols on %s (concurrency %d)\n", len(symbols), date, concurrency)
			results := bm.Run(ctx, symbols, date)
			renderBatchSummary(out, results)
			return ctx.Err()
		},
	}
	cmd.Flags().String("tickers", "", "Comma separated symbols")
	cmd.Flags().String("file", "", "File with one symbol per line")
	cmd.Flags().String("date", "", "Trade date in YYYY-MM-DD format (today if not provided)")
	cmd.Flags().Int("concurrency", 0, "Deliberations run at once (config batch_concurrency if 0)")
	return cmd
}

func newReflectCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Learn from realized outcomes",
		Long: `Turn realized outcomes into per-role lessons.

  auto         fetch recent fills and learn from each newly closed trade
  manual       learn from one decision log with a user supplied pnl
  interactive  pick an unlearned decision log and enter its outcome`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			listLogs, _ := cmd.Flags().GetBool("list-logs")
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if listLogs {
				grouped, err := s.app.records().DecisionLogs()
				if err != nil {
					return err
				}
				renderDecisionLogs(out, grouped, 10)
				return nil
			}

			switch mode {
			case "auto":
				engine, err := s.app.reflectionEngine(ctx)
				if err != nil {
					return err
				}
				sum, err := engine.RunAuto(ctx)
				if sum != nil {
					renderAutoSummary(out, sum)
				}
				return err
			case "manual":
				path, _ := cmd.Flags().GetString("decision-log")
				pnl, _ := cmd.Flags().GetFloat64("pnl")
				notes, _ := cmd.Flags().GetString("notes")
				if path == "" || !cmd.Flags().Changed("pnl") {
					return errors.New("manual mode requires --decision-log and --pnl")
				}
				engine, err := s.app.reflectionEngine(ctx)
				if err != nil {
					return err
				}
				res, err := engine.LearnManual(ctx, reflection.ManualRequest{DecisionLogPath: path, PnL: pnl, Notes: notes})
				if err != nil {
					return fmt.Errorf("manual learning failed: %w", err)
				}
				renderManualResult(out, res)
				return nil
			case "interactive":
				return learnInteractive(ctx, out, s.app)
			default:
				return fmt.Errorf("unknown mode %q (auto, manual, interactive)", mode)
			}
		},
	}
	cmd.Flags().String("mode", "auto", "auto, manual or interactive")
	cmd.Flags().String("decision-log", "", "Decision log to learn from (manual mode)")
	cmd.Flags().Float64("pnl", 0, "Realized pnl of the decision (manual mode)")
	cmd.Flags().String("notes", "", "Free-form notes passed to the reflector")
	cmd.Flags().Bool("list-logs", false, "List decision logs grouped by market and exit")
	return cmd
}

func newLearningCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Browse and manage learning records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List learning records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := s.app.records().List()
			if err != nil {
				return err
			}
			renderRecords(cmd.OutOrStdout(), recs)
			return nil
		},
	})

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List decision logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			unlearned, _ := cmd.Flags().GetBool("unlearned")
			records := s.app.records()
			logs, err := records.ListDecisionLogs()
			if err != nil {
				return err
			}
			if unlearned {
				if logs, err = records.FilterUnlearned(logs); err != nil {
					return err
				}
			}
			renderLogList(cmd.OutOrStdout(), logs)
			return nil
		},
	}
	logsCmd.Flags().Bool("unlearned", false, "Only logs without a successful learning record")
	cmd.AddCommand(logsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "search QUERY",
		Short: "Search decision logs by market, date or decision id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := s.app.records().Search(args[0])
			if err != nil {
				return err
			}
			renderLogList(cmd.OutOrStdout(), logs)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "detail PATH",
		Short: "Show a decision log and the learning records made from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := models.LoadDecisionLog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderDecision(out, state, args[0])
			recs, err := s.app.records().List()
			if err != nil {
				return err
			}
			var related []models.LearningRecord
			for _, r := range recs {
				if r.DecisionLogPath == args[0] || (state.DecisionID != "" && r.DecisionID == state.DecisionID) {
					related = append(related, r)
				}
			}
			renderRecords(out, related)
			return nil
		},
	})

	deleteCmd := &cobra.Command{
		Use:   "delete PATH",
		Short: "Delete a decision log with its learning records and memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				ok, err := Confirm(fmt.Sprintf("Delete %s and everything learned from it?", args[0]), false)
				if err != nil || !ok {
					return interrupted(err)
				}
			}
			ctx := cmd.Context()
			mem, err := s.app.memoryStore(ctx)
			if err != nil {
				return err
			}
			res, err := s.app.records().DeleteDecision(ctx, args[0], mem)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %d learning records, %d memories removed\n",
				completedStyle.Render("Deleted"), res.DecisionID, res.RecordsRemoved, res.MemoriesRemoved)
			for _, e := range res.Errors {
				fmt.Fprintln(out, errorStyle.Render("  "+e))
			}
			return nil
		},
	}
	deleteCmd.Flags().Bool("yes", false, "Skip confirmation")
	cmd.AddCommand(deleteCmd)
	return cmd
}

func newRunsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the deliberation run ledger",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			ledger, err := s.app.runLedger(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := ledger.ListRuns(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	listCmd.Flags().String("status", "", "Only runs in this status (running, completed, failed, cancelled)")
	listCmd.Flags().Int("limit", 20, "Maximum runs to show")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run and its stage outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ledger, err := s.app.runLedger(ctx)
			if err != nil {
				return err
			}
			run, err := ledger.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			out := cmd.OutOrStdout()
			renderRuns(out, []models.RunRecord{*run})
			stages, err := ledger.ListStages(ctx, run.ID)
			if err != nil {
				return err
			}
			for _, st := range stages {
				fmt.Fprintf(out, "\n%s\n%s\n", titleStyle.Render(fmt.Sprintf("%02d %s", st.Seq, st.Stage)), truncate(st.Content, 400))
			}
			return nil
		},
	})
	return cmd
}

func newConfigCmd(s *session) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := *s.cfg
			for _, f := range []*string{&masked.LLMAPIKey, &masked.DeepSeekAPIKey, &masked.EmbeddingAPIKey,
				&masked.LongportAppSecret, &masked.LongportAccessToken, &masked.ParadexJWT} {
				*f = maskSecret(*f)
			}
			data, err := json.MarshalIndent(masked, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Run: func(cmd *cobra.Command, args []string) {
			if s.configPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(defaults and environment, no file)")
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.configPath)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting in the configuration file",
		Long: `Change one setting by its json key, e.g.
  tradecortex config set max_debate_rounds 2
  tradecortex config set call_timeout 90s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := s.manager()
			if err != nil {
				return err
			}
			if err := mgr.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", completedStyle.Render("updated"), args[0], mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Report edits to the configuration file until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := s.manager()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			err = mgr.Watch(ctx, func(old, cur config.Config) {
				for _, key := range config.Changed(old, cur) {
					fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), key)
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "watching %s (Ctrl-C to stop)\n", mgr.Path())
			<-ctx.Done()
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			// Validate already ran in PersistentPreRunE
			fmt.Fprintln(out, completedStyle.Render("✅ configuration values are valid"))
			checks := []struct {
				name string
				ok   bool
			}{
				{"LLM API key", s.cfg.LLMAPIKey != "" || s.cfg.DeepSeekAPIKey != ""},
				{"Embedding API key", s.cfg.EmbeddingAPIKey != ""},
				{"Longport credentials", s.cfg.LongportAppKey != "" && s.cfg.LongportAccessToken != ""},
				{"Paradex JWT", s.cfg.ParadexJWT != ""},
			}
			for _, c := range checks {
				mark := completedStyle.Render("✅")
				if !c.ok {
					mark = pendingStyle.Render("⚠️ ")
				}
				fmt.Fprintf(out, "%s %s\n", mark, c.name)
			}
			return nil
		},
	})
	return configCmd
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", 4) + v[len(v)-4:]
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TradeCortex %s\n", Version)
		},
	}
}
