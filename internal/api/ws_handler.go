package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"webpdf/internal/api/middleware"
	"webpdf/internal/jobs"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

type notifySubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// subscription is the part of *redis.PubSub the stream needs.
type subscription interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type jobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
}

// WsHandler streams job notifications from Redis pub/sub to a websocket.
type WsHandler struct {
	subscribe      func(ctx context.Context, channel string) subscription
	jobs           jobReader
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

func NewWsHandler(redisClient notifySubscriber, store jobReader, allowedOrigins []string) *WsHandler {
	return newWsHandler(func(ctx context.Context, channel string) subscription {
		return redisClient.Subscribe(ctx, channel)
	}, store, allowedOrigins)
}

func newWsHandler(subscribe func(ctx context.Context, channel string) subscription, store jobReader, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		subscribe:      subscribe,
		jobs:           store,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// Watch sends the current job state, then every notification until the job
// reaches a terminal state or the client goes away.
func (h *WsHandler) Watch(c *gin.Context) {
	id := c.Param("id")
	log := middleware.LoggerFromContext(c).With(slog.String("job_id", id))

	if _, err := h.jobs.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			NotFound(c, "job not found")
			return
		}
		log.Error("load job failed", slog.Any("error", err))
		Internal(c, "could not load job")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, id, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

// readLoop discards client frames; it exists to notice disconnects.
func readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	id string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := jobs.NotifyChannel(id)
	pubsub := h.subscribe(ctx, channel)
	defer pubsub.Close()

	// Subscribe before reading the snapshot so no transition is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		errCh <- fmt.Errorf("subscribe %q: %w", channel, err)
		cancel()
		return
	}
	log.Debug("subscribed to redis channel", slog.String("channel", channel))

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, "job unavailable")
		errCh <- fmt.Errorf("load job: %w", err)
		cancel()
		return
	}
	snapshot, err := json.Marshal(jobs.Notification{
		JobID:         job.ID,
		Status:        job.Status,
		CorrelationID: job.CorrelationID,
		Pages:         job.Pages,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
	})
	if err != nil {
		errCh <- fmt.Errorf("marshal snapshot: %w", err)
		cancel()
		return
	}
	if done := h.forward(conn, snapshot, job.Status, errCh, cancel); done {
		return
	}

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}
			var n jobs.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Warn("skip malformed notification", slog.Any("error", err))
				continue
			}
			if done := h.forward(conn, []byte(msg.Payload), n.Status, errCh, cancel); done {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}

// forward writes payload and closes the socket once status is terminal.
// It reports whether the stream is finished.
func (h *WsHandler) forward(conn *websocket.Conn, payload []byte, status jobs.Status, errCh chan<- error, cancel context.CancelFunc) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		errCh <- fmt.Errorf("write message: %w", err)
		cancel()
		return true
	}
	if status.Terminal() {
		writeClose(conn, websocket.CloseNormalClosure, string(status))
		errCh <- nil
		cancel()
		return true
	}
	return false
}
