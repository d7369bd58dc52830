package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"webpdf/internal/api/middleware"
	"webpdf/internal/convert"
	"webpdf/internal/errcode"
	"webpdf/internal/jobs"
	"webpdf/internal/tasks"
)

const jobQuotaWindow = time.Minute

type jobStore interface {
	Create(ctx context.Context, mode jobs.Mode, url, correlationID string) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	Fail(ctx context.Context, id string, code int, message string) (*jobs.Job, error)
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type artifactStore interface {
	PresignedDownloadURL(ctx context.Context, objectKey, filename string, ttl time.Duration) (string, error)
	OpenObject(ctx context.Context, objectKey string) (io.ReadCloser, int64, error)
}

// JobOptions configures queueing and downloads.
type JobOptions struct {
	Queue        string
	MaxRetry     int
	PresignTTL   time.Duration
	SubmitPerMin int
}

// JobHandler queues asynchronous conversions and reports their state.
type JobHandler struct {
	store   jobStore
	queue   taskEnqueuer
	storage artifactStore
	counter redisRateCounter
	opts    JobOptions
}

func NewJobHandler(store jobStore, queue taskEnqueuer, storage artifactStore, counter redisRateCounter, opts JobOptions) *JobHandler {
	if opts.Queue == "" {
		opts.Queue = "pdf"
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &JobHandler{
		store:   store,
		queue:   queue,
		storage: storage,
		counter: counter,
		opts:    opts,
	}
}

type createJobRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

type jobResponse struct {
	*jobs.Job
	DownloadURL string `json:"download_url,omitempty"`
}

// Create validates the request, stores a queued job and enqueues its task.
func (h *JobHandler) Create(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	var req createJobRequest
	if !bindJSON(c, &req) {
		return
	}
	target, err := convert.ValidateURL(req.URL)
	if err != nil {
		ConversionError(c, err)
		return
	}
	mode, err := jobs.ParseMode(req.Mode)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	if h.counter != nil && h.opts.SubmitPerMin > 0 {
		count, err := incrWithTTL(ctx, h.counter, jobQuotaKey(c.ClientIP()), jobQuotaWindow)
		if err != nil {
			log.Warn("job quota check failed", slog.Any("error", err))
		} else if count > int64(h.opts.SubmitPerMin) {
			c.Header("Retry-After", strconv.Itoa(int(jobQuotaWindow.Seconds())))
			Error(c, http.StatusTooManyRequests, "too many jobs submitted, try again later")
			return
		}
	}

	correlationID := middleware.GetCorrelationID(c)
	job, err := h.store.Create(ctx, mode, target, correlationID)
	if err != nil {
		log.Error("create job failed", slog.Any("error", err))
		Internal(c, "could not create job")
		return
	}
	log = log.With(slog.String("job_id", job.ID))

	task, err := tasks.NewConvertTask(job.ID, target, string(mode), correlationID)
	if err != nil {
		log.Error("build convert task failed", slog.Any("error", err))
		Internal(c, "could not create job")
		return
	}
	opts := []asynq.Option{asynq.Queue(h.opts.Queue), asynq.TaskID(job.ID)}
	if h.opts.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(h.opts.MaxRetry))
	}
	if _, err := h.queue.EnqueueContext(ctx, task, opts...); err != nil {
		log.Error("enqueue convert task failed", slog.Any("error", err))
		if _, ferr := h.store.Fail(ctx, job.ID, errcode.SystemError, "could not queue job"); ferr != nil {
			log.Error("mark job failed failed", slog.Any("error", ferr))
		}
		Unavailable(c, "job queue is not available")
		return
	}

	log.Info("conversion job queued", slog.String("mode", string(mode)))
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// Get returns the job state; completed jobs carry a presigned download URL.
func (h *JobHandler) Get(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	resp := jobResponse{Job: job}
	if job.Status == jobs.StatusCompleted && job.ObjectKey != "" {
		url, err := h.storage.PresignedDownloadURL(c.Request.Context(), job.ObjectKey, job.Filename, h.opts.PresignTTL)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("presign job artifact failed", slog.Any("error", err))
		} else {
			resp.DownloadURL = url
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Download streams the finished PDF through the API.
func (h *JobHandler) Download(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted || job.ObjectKey == "" {
		Conflict(c, fmt.Sprintf("job is %s", job.Status))
		return
	}

	body, size, err := h.storage.OpenObject(c.Request.Context(), job.ObjectKey)
	if err != nil {
		middleware.LoggerFromContext(c).Error("open job artifact failed", slog.Any("error", err))
		Internal(c, "could not read job result")
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, size, "application/pdf", body, map[string]string{
		"Content-Disposition": "attachment; filename=" + job.Filename,
		"X-Page-Count":        strconv.Itoa(job.Pages),
	})
}

func (h *JobHandler) lookup(c *gin.Context) (*jobs.Job, bool) {
	job, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		NotFound(c, "job not found")
		return nil, false
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("load job failed", slog.Any("error", err))
		Internal(c, "could not load job")
		return nil, false
	}
	return job, true
}
