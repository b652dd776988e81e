package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"teach-quiz-service/internal/domain"
)

// CloseQuizNotFound is the close code sent when the monitored quiz does not exist.
const CloseQuizNotFound = 4004

// WSConfig tunes monitor connections. Zero values fall back to defaults.
type WSConfig struct {
	WriteWait time.Duration
	PongWait  time.Duration
	// StatsPerSecond limits on-demand "stats" requests per connection.
	StatsPerSecond float64
	AllowAnyOrigin bool
}

func (c WSConfig) withDefaults() WSConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.StatsPerSecond <= 0 {
		c.StatsPerSecond = 2
	}
	return c
}

type WSHandler struct {
	monitor  MonitorService
	cfg      WSConfig
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewWSHandler(monitor MonitorService, cfg WSConfig, log logrus.FieldLogger) *WSHandler {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if cfg.AllowAnyOrigin {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{monitor: monitor, cfg: cfg, upgrader: upgrader, log: log}
}

type pongMessage struct {
	Event string `json:"event"`
}

// ServeMonitor streams monitor events for one quiz. Text frames "ping" and
// "stats" from the client are answered with a pong and a quiz_stats event.
func (h *WSHandler) ServeMonitor(c echo.Context) error {
	quizID := c.Param("id")
	log := h.log.WithField("quiz_id", quizID)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	sub, err := h.monitor.Subscribe(ctx, quizID)
	if err != nil {
		code, reason := websocket.CloseInternalServerErr, "internal error"
		if errors.Is(err, domain.ErrNotFound) {
			code, reason = CloseQuizNotFound, "Quiz not found"
		} else {
			log.WithError(err).Error("monitor subscribe failed")
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(h.cfg.WriteWait))
		return nil
	}
	defer sub.Close()

	replies := make(chan interface{}, 8)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		defer conn.Close()
		ping := time.NewTicker(h.cfg.PongWait * 9 / 10)
		defer ping.Stop()

		write := func(v interface{}) error {
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			return conn.WriteJSON(v)
		}
		for {
			var err error
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				err = write(ev)
			case msg := <-replies:
				err = write(msg)
			case <-ping.C:
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait))
			case <-done:
				return
			}
			if err != nil {
				log.WithError(err).Debug("ws write failed")
				sub.Close()
				return
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.cfg.StatsPerSecond), 1)
	reply := func(v interface{}) {
		select {
		case replies <- v:
		case <-writerDone:
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		switch strings.TrimSpace(string(data)) {
		case "ping":
			reply(pongMessage{Event: "pong"})
		case "stats":
			if !limiter.Allow() {
				log.Debug("stats request rate limited")
				continue
			}
			ev, err := h.monitor.CurrentStats(ctx, quizID)
			if err != nil {
				log.WithError(err).Warn("stats request failed")
				continue
			}
			reply(ev)
		}
	}

	close(done)
	sub.Close()
	<-writerDone
	return nil
}
