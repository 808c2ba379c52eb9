// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"image-enhance-client/internal/config"
	"image-enhance-client/internal/domain/model"
	gw "image-enhance-client/internal/infra/api"
	"image-enhance-client/internal/infra/auth"
	"image-enhance-client/internal/infra/logging"
	"image-enhance-client/internal/infra/metrics"
	"image-enhance-client/internal/infra/web"
	"image-enhance-client/internal/usecase"

	"github.com/rs/zerolog"
)

const version = "0.3.0"

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	shootID := flag.String("shoot", "", "shoot id to upload into and watch")
	prompt := flag.String("prompt", "", "enhancement prompt for submitted jobs")
	tier := flag.String("tier", "", "optional enhancement tier")
	watchJob := flag.String("watch-job", "", "watch a single job id instead of uploading")
	direct := flag.Bool("direct", false, "upload via presigned direct transfer")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Core services ----
	tokens := auth.NewFileTokenStore(cfg.Auth.TokenFile, logger)
	gateway := gw.NewGateway(cfg.API.BaseURL, cfg.API.Timeout, tokens, logger)
	registry := usecase.NewOperationRegistry(logger)
	pipeline := usecase.NewUploadPipeline(
		gateway,
		cfg.Upload.MaxFileBytes,
		cfg.Upload.AllowedTypes,
		cfg.Upload.ProgressStep,
		cfg.Upload.Workers,
		logger,
	)

	// ---- Admin surface ----
	if cfg.Admin.Port > 0 {
		adminSrv := web.NewServer(cfg.Admin.Port, registry, version, logger)
		go func() {
			if err := adminSrv.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("admin server failed")
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = adminSrv.Shutdown(shutCtx)
		}()
	}

	switch {
	case *watchJob != "":
		watchSingleJob(ctx, cfg, gateway, logger, *watchJob)
	case *shootID != "":
		runEnhancement(ctx, cfg, gateway, pipeline, registry, logger, *shootID, *prompt, *tier, *direct, flag.Args())
	default:
		log.Fatal("nothing to do: pass -shoot with files, or -watch-job")
	}
}

func watchSingleJob(ctx context.Context, cfg *config.Config, gateway *gw.Gateway, logger *zerolog.Logger, jobID string) {
	ctx = logging.WithJobID(ctx, jobID)
	jobLog := logging.With(ctx, logger)

	done := make(chan struct{})
	watcher := usecase.NewJobWatcher(jobID, cfg.Watch.JobInterval, gateway, usecase.JobEvents{
		OnChange: func(job *model.Job) {
			jobLog.Info().Str("status", string(job.Status)).Msg("job status changed")
		},
		OnComplete: func(job *model.Job) {
			jobLog.Info().Str("result_ref", job.ResultRef).Msg("job succeeded")
			close(done)
		},
		OnFailed: func(job *model.Job) {
			jobLog.Error().Str("error", job.ErrorMessage).Msg("job failed")
			close(done)
		},
	}, jobLog)

	watcher.Start(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	watcher.Stop()
}

func runEnhancement(
	ctx context.Context,
	cfg *config.Config,
	gateway *gw.Gateway,
	pipeline *usecase.UploadPipeline,
	registry *usecase.OperationRegistry,
	logger *zerolog.Logger,
	shootID, prompt, tier string,
	direct bool,
	paths []string,
) {
	if len(paths) == 0 {
		log.Fatal("no files given")
	}
	ctx = logging.WithShootID(ctx, shootID)
	logger = logging.With(ctx, logger)

	files := make([]usecase.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := uploadFileFromPath(p)
		if err != nil {
			log.Fatalf("stat %s: %v", p, err)
		}
		files = append(files, f)
	}

	// ---- Upload ----
	var tasks []model.UploadTask
	err := registry.Do("upload-batch", func() error {
		var err error
		if direct {
			tasks = make([]model.UploadTask, 0, len(files))
			for _, f := range files {
				task, derr := pipeline.DirectTransfer(ctx, shootID, f, nil)
				if derr != nil {
					logger.Warn().Str("file", f.Name).Err(derr).Msg("direct transfer failed")
				}
				tasks = append(tasks, *task)
			}
			return nil
		}
		tasks, err = pipeline.UploadBatch(ctx, shootID, files, func(i int, t model.UploadTask) {
			logger.Debug().Str("file", t.FileRef).Int("progress", t.Progress).Str("state", string(t.State)).Msg("upload progress")
		})
		return err
	})
	if err != nil {
		log.Fatalf("upload batch: %v", err)
	}

	// ---- Submit jobs for uploaded assets ----
	submitted := 0
	for _, t := range tasks {
		if t.State != model.UploadStateCompleted {
			logger.Warn().Str("file", t.FileRef).Str("error", t.Error).Msg("skipping job submission for failed upload")
			continue
		}
		assetID := t.ResultID
		err := registry.Do("submit-enhancement", func() error {
			job, err := gw.WithRetry(ctx, cfg.API.MaxRetries, cfg.API.RetryBaseDelay, func(ctx context.Context) (*model.Job, error) {
				return gateway.SubmitJob(ctx, assetID, prompt, tier)
			})
			if err != nil {
				return err
			}
			logger.Info().Str("job_id", job.ID).Str("asset_id", assetID).Msg("enhancement job submitted")
			submitted++
			return nil
		})
		if err != nil {
			logger.Error().Str("asset_id", assetID).Err(err).Msg("job submission failed")
		}
	}
	if submitted == 0 {
		logger.Warn().Msg("no jobs submitted; exiting")
		return
	}

	// ---- Watch the shoot until every job settles ----
	watcher := usecase.NewShootWatcher(shootID, cfg.Watch.ShootInterval, gateway, usecase.JobEvents{
		OnChange: func(job *model.Job) {
			logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("job status changed")
		},
		OnComplete: func(job *model.Job) {
			logger.Info().Str("job_id", job.ID).Str("result_ref", job.ResultRef).Msg("job succeeded")
		},
		OnFailed: func(job *model.Job) {
			logger.Error().Str("job_id", job.ID).Str("error", job.ErrorMessage).Msg("job failed")
		},
	}, logger)
	watcher.Start(ctx)
	defer watcher.Stop()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !watcher.Running() {
				logger.Info().Msg("all jobs settled")
				return
			}
		}
	}
}

func uploadFileFromPath(path string) (usecase.UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return usecase.UploadFile{}, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return usecase.UploadFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
