package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Axinion/DynamicActive-Task/internal/config"
	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/grading"
	"github.com/Axinion/DynamicActive-Task/internal/handler"
	appI18n "github.com/Axinion/DynamicActive-Task/internal/i18n"
	"github.com/Axinion/DynamicActive-Task/internal/insights"
	"github.com/Axinion/DynamicActive-Task/internal/mastery"
	"github.com/Axinion/DynamicActive-Task/internal/model"
	"github.com/Axinion/DynamicActive-Task/internal/recommend"
	"github.com/Axinion/DynamicActive-Task/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "k12lms",
		Short:        "Learning analytics for K-12 classes",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), scoreCmd(), misconceptionsCmd(), masteryCmd(), recommendCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `k12lms --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	config.AddDatabaseFlags(f)
	config.AddServerFlags(f)
	config.AddAnalyticsFlags(f)
	config.AddLoggingFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dataset.json>...",
		Short: "Import classes, coursework and lessons from JSON datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	config.AddDatabaseFlags(f)
	config.AddLoggingFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a class gradebook as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	config.AddDatabaseFlags(f)
	config.AddLoggingFlags(f)
	f.Int64("class-id", 0, "Class to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("class-id")
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one short answer against a model answer",
		RunE:  runScore,
	}
	f := cmd.Flags()
	config.AddAnalyticsFlags(f)
	config.AddLoggingFlags(f)
	f.String("answer", "", "Student answer (required)")
	f.String("model-answer", "", "Model answer (required)")
	f.StringSliceP("keyword", "k", nil, "Rubric keyword (repeatable); without any the answer is left for manual grading")
	_ = cmd.MarkFlagRequired("answer")
	_ = cmd.MarkFlagRequired("model-answer")
	return cmd
}

func misconceptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "misconceptions",
		Short: "Cluster a class's wrong answers",
		RunE:  runMisconceptions,
	}
	f := cmd.Flags()
	addQueryFlags(f, false)
	_ = cmd.MarkFlagRequired("class-id")
	f.String("period", string(insights.PeriodWeek), "Analysis window (week, month)")
	return cmd
}

func masteryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mastery",
		Short: "Show skill mastery for a student, or the class summary without --student-id",
		RunE:  runMastery,
	}
	addQueryFlags(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("class-id")
	return cmd
}

func recommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend lessons for a student",
		RunE:  runRecommend,
	}
	f := cmd.Flags()
	addQueryFlags(f, true)
	f.IntP("top", "k", 3, "Number of lessons to recommend")
	_ = cmd.MarkFlagRequired("class-id")
	_ = cmd.MarkFlagRequired("student-id")
	return cmd
}

// addQueryFlags registers the flags shared by the analytics commands.
func addQueryFlags(f *pflag.FlagSet, withStudent bool) {
	config.AddDatabaseFlags(f)
	config.AddAnalyticsFlags(f)
	config.AddLoggingFlags(f)
	f.Int64("class-id", 0, "Class to analyze (required)")
	if withStudent {
		f.Int64("student-id", 0, "Student to analyze")
	}
}

// setupLogging installs the default slog handler.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// loadConfig reads the command's settings and sets up logging and messages.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.NewViper(cmd.Flags()))
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.DBDriver, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newEmbedding(cfg *config.Config) (*embedding.Service, error) {
	factory, err := embedding.NewFactory(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	svc, err := embedding.NewService(factory, cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	return svc, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	emb, err := newEmbedding(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := emb.Shutdown(); err != nil {
			slog.Warn("embedding shutdown", "error", err)
		}
	}()
	// A model that fails to load leaves the service degraded, not down.
	if err := emb.Init(ctx); err != nil {
		slog.Warn("embedding model unavailable, serving degraded results",
			"provider", cfg.Embedding.Provider, "error", err)
	} else {
		slog.Info("embedding model ready", "provider", cfg.Embedding.Provider, "model", cfg.Embedding.Model)
	}

	h := handler.New(db, emb, insights.WithPassThreshold(cfg.PassThreshold))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(cfg.Lang))
	h.Routes(r)

	srv := &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", cfg.Addr,
		"db_driver", cfg.DBDriver,
		"embedding_provider", cfg.Embedding.Provider,
		"lang", cfg.Lang,
		"pass_threshold", cfg.PassThreshold,
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range args {
		if err := importDataset(ctx, db, path); err != nil {
			return err
		}
	}
	return nil
}

// importDataset loads one dataset file. A file is imported once; re-running
// with the same content is a no-op and changed content is refused so IDs
// already handed out stay stable.
func importDataset(ctx context.Context, db *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	key := "import:" + path
	hash := sha256sum(data)
	storedHash, err := db.GetMetadata(ctx, key)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("dataset unchanged, skipping", "path", path)
		return nil
	}
	if storedHash != "" {
		slog.Warn("dataset changed since last import, skipping to avoid duplicating records", "path", path)
		return nil
	}

	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	stats, err := db.ImportDataset(ctx, ds)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if err := db.SetMetadata(ctx, key, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported dataset", "path", path,
		"users", stats.Users, "classes", stats.Classes, "questions", stats.Questions,
		"lessons", stats.Lessons, "submissions", stats.Submissions, "responses", stats.Responses)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	classID, _ := cmd.Flags().GetInt64("class-id")
	export, err := db.ExportGradebook(ctx, classID)
	if err != nil {
		return fmt.Errorf("export gradebook: %w", err)
	}
	output, _ := cmd.Flags().GetString("output")
	return writeOutput(output, export)
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	emb, err := newEmbedding(cfg)
	if err != nil {
		return err
	}
	defer emb.Shutdown()

	f := cmd.Flags()
	answer, _ := f.GetString("answer")
	modelAnswer, _ := f.GetString("model-answer")
	var keywords []string
	if f.Changed("keyword") {
		keywords, _ = f.GetStringSlice("keyword")
	}
	if !grading.ShortAnswerConfigured(modelAnswer, keywords) {
		return writeOutput("-", grading.NotConfigured(cmd.Context()))
	}

	res := grading.NewScorer(emb).Score(cmd.Context(), answer, modelAnswer, keywords)
	return writeOutput("-", res)
}

func runMisconceptions(cmd *cobra.Command, _ []string) error {
	return withAnalytics(cmd, func(ctx context.Context, a *analytics) (any, error) {
		period, _ := cmd.Flags().GetString("period")
		return a.insights.ClusterMisconceptions(ctx, a.classID, period)
	})
}

func runMastery(cmd *cobra.Command, _ []string) error {
	return withAnalytics(cmd, func(ctx context.Context, a *analytics) (any, error) {
		if a.studentID == 0 {
			return a.mastery.ClassSummary(ctx, a.classID)
		}
		return a.mastery.SkillMastery(ctx, a.classID, a.studentID)
	})
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	return withAnalytics(cmd, func(ctx context.Context, a *analytics) (any, error) {
		k, _ := cmd.Flags().GetInt("top")
		return a.ranker.Recommend(ctx, a.studentID, a.classID, k)
	})
}

type analytics struct {
	classID   int64
	studentID int64
	insights  *insights.Engine
	mastery   *mastery.Aggregator
	ranker    *recommend.Ranker
}

// withAnalytics opens the store and embedding service for one query and
// prints its result as JSON.
func withAnalytics(cmd *cobra.Command, run func(context.Context, *analytics) (any, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	emb, err := newEmbedding(cfg)
	if err != nil {
		return err
	}
	defer emb.Shutdown()

	agg := mastery.NewAggregator(db)
	a := &analytics{
		insights: insights.NewEngine(db, emb, insights.WithPassThreshold(cfg.PassThreshold)),
		mastery:  agg,
		ranker:   recommend.NewRanker(agg, db, emb),
	}
	a.classID, _ = cmd.Flags().GetInt64("class-id")
	if cmd.Flags().Lookup("student-id") != nil {
		a.studentID, _ = cmd.Flags().GetInt64("student-id")
	}

	res, err := run(ctx, a)
	if err != nil {
		return err
	}
	return writeOutput("-", res)
}

func writeOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
