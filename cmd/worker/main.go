package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"biblestudy/internal/adapter/repo"
	"biblestudy/internal/domain"
	"biblestudy/internal/infra"
	"biblestudy/internal/providers/genai"
	"biblestudy/internal/providers/scripture"
	"biblestudy/internal/sqlinline"
	"biblestudy/internal/study"
	"biblestudy/internal/workflow"
)

const (
	staleRequeueSeconds = 15 * 60
	housekeepingEvery   = 5 * time.Minute
)

var errNoRequestAvailable = errors.New("no request available")

type requestWorker struct {
	ctx      context.Context
	runner   *infra.SQLRunner
	requests domain.GenerationRequestRepository
	pipeline *study.Runner
	logger   infra.Logger
	poll     time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := infra.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: schema bootstrap failed")
	}

	runner := infra.NewSQLRunner(pool, logger)

	requests := repo.NewGenerationRequestRepository(pool)
	steps := repo.NewWorkflowStepRepository(pool)
	days := repo.NewGeneratedDayRepository(pool)
	verseCache := repo.NewVerseValidationRepository(pool)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}

	scriptureClient := scripture.NewHTTPClient(scripture.HTTPOptions{
		BaseURL:    cfg.BibleAPIBaseURL,
		HTTPClient: httpClient,
	})
	validator := scripture.NewValidator(verseCache, scriptureClient, cfg.VerseCacheTTL, logger)

	machine := workflow.NewMachine(requests, steps, logger)
	pipeline := study.NewRunner(machine, geminiClient, validator, days, logger, study.Options{
		SkipTheologyReview: cfg.SkipTheologyReview,
		PromptAttempts:     cfg.StepPromptAttempts,
		DefaultTranslation: cfg.DefaultTranslation,
	})

	worker := &requestWorker{
		ctx:      ctx,
		runner:   runner,
		requests: requests,
		pipeline: pipeline,
		logger:   logger,
		poll:     cfg.WorkerPollInterval,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *requestWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	lastHousekeeping := time.Now()
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		if time.Since(lastHousekeeping) >= housekeepingEvery {
			w.housekeeping()
			lastHousekeeping = time.Now()
		}

		id, err := w.claimRequest()
		if err != nil {
			if errors.Is(err, errNoRequestAvailable) {
				time.Sleep(w.poll)
				continue
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim request")
			time.Sleep(w.poll)
			continue
		}

		w.handleRequest(id)
	}
}

// claimRequest moves the oldest pending request to processing and returns its
// id. Concurrent workers never claim the same row.
func (w *requestWorker) claimRequest() (string, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QWorkerClaimRequest)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", errNoRequestAvailable
		}
		return "", err
	}
	return id, nil
}

func (w *requestWorker) handleRequest(id string) {
	w.logger.Info().Str("request_id", id).Msg("worker: picked request")
	req, err := w.requests.GetByID(w.ctx, id)
	if err != nil {
		w.logger.Error().Err(err).Str("request_id", id).Msg("worker: failed to load claimed request")
		return
	}
	if err := w.pipeline.Run(w.ctx, req); err != nil {
		w.logger.Error().Err(err).Str("request_id", id).Msg("worker: pipeline error")
	}
}

// housekeeping requeues requests stranded by a crashed worker and prunes
// expired verse cache entries.
func (w *requestWorker) housekeeping() {
	if _, err := w.runner.Exec(w.ctx, sqlinline.QWorkerRequeueStale, staleRequeueSeconds); err != nil {
		w.logger.Warn().Err(err).Msg("worker: requeue stale requests failed")
	}
	if _, err := w.runner.Exec(w.ctx, sqlinline.QWorkerPruneVerseCache); err != nil {
		w.logger.Warn().Err(err).Msg("worker: prune verse cache failed")
	}
}
