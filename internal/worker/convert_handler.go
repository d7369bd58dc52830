package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"webpdf/internal/convert"
	"webpdf/internal/errcode"
	"webpdf/internal/jobs"
	"webpdf/internal/tasks"
)

type converter interface {
	Convert(ctx context.Context, req convert.Request) (*convert.Result, error)
}

type uploader interface {
	UploadPDF(ctx context.Context, objectName string, data []byte) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

type jobStore interface {
	MarkRunning(ctx context.Context, id string) (*jobs.Job, error)
	Complete(ctx context.Context, id string, out jobs.Output) (*jobs.Job, error)
	Fail(ctx context.Context, id string, code int, message string) (*jobs.Job, error)
}

// ConvertTaskHandler consumes pdf:convert tasks.
type ConvertTaskHandler struct {
	converter converter
	storage   uploader
	jobs      jobStore
	logger    *slog.Logger
}

func NewConvertTaskHandler(conv converter, storage uploader, store jobStore, logger *slog.Logger) *ConvertTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertTaskHandler{
		converter: conv,
		storage:   storage,
		jobs:      store,
		logger:    logger,
	}
}

// ProcessTask implements asynq.Handler.
func (h *ConvertTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.ConvertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("job_id", payload.JobID),
		slog.String("mode", payload.Mode),
	)
	log.Info("starting conversion task")

	if _, err := h.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			log.Warn("job expired or missing, skipping task")
			return nil
		}
		log.Warn("mark job running failed", slog.Any("error", err))
	}

	mode, err := jobs.ParseMode(payload.Mode)
	if err != nil {
		h.fail(ctx, log, payload.JobID, errcode.InvalidInput, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := h.converter.Convert(ctx, convert.Request{Kind: kindOf(mode), Input: payload.URL})
	if err != nil {
		status := convert.StatusOf(err)
		switch {
		case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
			h.fail(ctx, log, payload.JobID, errcode.InvalidInput, err.Error())
			return fmt.Errorf("convert: %v: %w", err, asynq.SkipRetry)
		case isFinalAsynqAttempt(ctx):
			code := errcode.SystemError
			if status == http.StatusServiceUnavailable {
				code = errcode.RenderUnavailable
			}
			h.fail(ctx, log, payload.JobID, code, err.Error())
		}
		log.Error("conversion failed", slog.Int("status", status), slog.Any("error", err))
		return fmt.Errorf("convert: %w", err)
	}

	defer func() {
		if retErr != nil && isFinalAsynqAttempt(ctx) {
			h.fail(ctx, log, payload.JobID, errcode.SystemError, retErr.Error())
		}
	}()

	objectName := fmt.Sprintf("jobs/%s/%s", payload.JobID, result.Filename)
	if _, err := h.storage.UploadPDF(ctx, objectName, result.PDF); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	out := jobs.Output{
		ObjectKey: objectName,
		Filename:  result.Filename,
		Pages:     result.Pages,
		Clipped:   result.Clipped,
	}
	job, err := h.jobs.Complete(ctx, payload.JobID, out)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		log.Warn("job expired before completion, removing artifact")
		if err := h.storage.DeleteObject(ctx, objectName); err != nil {
			log.Error("remove orphaned artifact failed", slog.Any("error", err))
		}
		return nil
	case err != nil && job != nil:
		// State is saved; only the notification was lost.
		log.Warn("publish completion notification failed", slog.Any("error", err))
	case err != nil:
		log.Error("complete job failed", slog.Any("error", err))
		return err
	}

	log.Info("conversion task completed",
		slog.String("object", objectName),
		slog.Int("pages", result.Pages),
		slog.Bool("clipped", result.Clipped),
	)
	return nil
}

func (h *ConvertTaskHandler) fail(ctx context.Context, log *slog.Logger, id string, code int, message string) {
	if _, err := h.jobs.Fail(ctx, id, code, message); err != nil {
		log.Error("mark job failed failed", slog.Any("error", err))
	}
}

func kindOf(mode jobs.Mode) convert.Kind {
	switch mode {
	case jobs.ModePaginated:
		return convert.KindURLPaginated
	case jobs.ModeSingle:
		return convert.KindURL
	default:
		return convert.KindURLA4
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
