// Package jobs tracks asynchronous conversions in Redis and publishes their
// state changes over Redis pub/sub.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"webpdf/internal/errcode"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further updates will follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode selects the conversion a job runs.
type Mode string

const (
	ModeA4        Mode = "a4"
	ModePaginated Mode = "paginated"
	ModeSingle    Mode = "single"
)

// ParseMode accepts a4, paginated or single; empty means a4.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeA4:
		return ModeA4, nil
	case ModePaginated:
		return ModePaginated, nil
	case ModeSingle:
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("unknown job mode %q", s)
	}
}

// Job is the persisted state of one asynchronous conversion.
type Job struct {
	ID            string    `json:"id"`
	Mode          Mode      `json:"mode"`
	URL           string    `json:"url"`
	Status        Status    `json:"status"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ObjectKey     string    `json:"object_key,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	Pages         int       `json:"pages,omitempty"`
	Clipped       bool      `json:"clipped,omitempty"`
	ErrorCode     int       `json:"error_code"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notification is published on NotifyChannel(job id) after every state change.
type Notification struct {
	JobID         string `json:"job_id"`
	Status        Status `json:"status"`
	CorrelationID string `json:"correlation_id"`
	Pages         int    `json:"pages,omitempty"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Output describes a finished conversion.
type Output struct {
	ObjectKey string
	Filename  string
	Pages     int
	Clipped   bool
}

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Store persists jobs as JSON with a TTL.
type Store struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client redisClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func jobKey(id string) string {
	return "webpdf:job:" + id
}

// NotifyChannel is the pub/sub channel for job id.
func NotifyChannel(id string) string {
	return "webpdf:job_notify:" + id
}

// Create stores a new queued job.
func (s *Store) Create(ctx context.Context, mode Mode, url, correlationID string) (*Job, error) {
	now := s.now().UTC()
	job := &Job{
		ID:            uuid.NewString(),
		Mode:          mode,
		URL:           url,
		Status:        StatusQueued,
		CorrelationID: correlationID,
		ErrorCode:     errcode.OK,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *Store) MarkRunning(ctx context.Context, id string) (*Job, error) {
	return s.update(ctx, id, func(job *Job) {
		job.Status = StatusRunning
	})
}

// Complete records out and marks the job completed. Clipped output carries
// errcode.ContentClipped as a warning.
func (s *Store) Complete(ctx context.Context, id string, out Output) (*Job, error) {
	return s.update(ctx, id, func(job *Job) {
		job.Status = StatusCompleted
		job.ObjectKey = out.ObjectKey
		job.Filename = out.Filename
		job.Pages = out.Pages
		job.Clipped = out.Clipped
		job.ErrorCode = errcode.OK
		job.ErrorMessage = ""
		if out.Clipped {
			job.ErrorCode = errcode.ContentClipped
			job.ErrorMessage = "content exceeded the maximum height and was clipped"
		}
	})
}

func (s *Store) Fail(ctx context.Context, id string, code int, message string) (*Job, error) {
	return s.update(ctx, id, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorCode = code
		job.ErrorMessage = strings.TrimSpace(message)
	})
}

func (s *Store) update(ctx context.Context, id string, mutate func(*Job)) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(job)
	job.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

func (s *Store) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, job *Job) error {
	data, err := json.Marshal(Notification{
		JobID:         job.ID,
		Status:        job.Status,
		CorrelationID: job.CorrelationID,
		Pages:         job.Pages,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
	})
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(job.ID)
	if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
