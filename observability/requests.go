package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumaworks/slotline/idgen"
)

// RequestLogger is chi middleware recording one http_request_logs row per
// request. Inserts run on a bounded buffer; overflow drops the row rather
// than applying backpressure to the request path.
type RequestLogger struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan requestLog
	stop  chan struct{}
	done  chan struct{}
}

type requestLog struct {
	method, path, ip, agent string
	status                  int
	durationMs              int64
	createdAt               int64
}

// NewRequestLogger starts the background writer. Call Close on shutdown.
func NewRequestLogger(db *sql.DB) *RequestLogger {
	rl := &RequestLogger{
		db:    db,
		newID: idgen.Prefixed("hrl_", idgen.Default),
		ch:    make(chan requestLog, 256),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go rl.writeLoop()
	return rl
}

// Middleware wraps next with request logging.
func (rl *RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		entry := requestLog{
			method:     r.Method,
			path:       r.URL.Path,
			ip:         r.RemoteAddr,
			agent:      r.UserAgent(),
			status:     sw.status,
			durationMs: time.Since(start).Milliseconds(),
			createdAt:  time.Now().Unix(),
		}
		select {
		case rl.ch <- entry:
		default:
		}
	})
}

// Close drains the buffer and stops the writer.
func (rl *RequestLogger) Close() error {
	close(rl.stop)
	<-rl.done
	return nil
}

func (rl *RequestLogger) writeLoop() {
	defer close(rl.done)
	insert := func(e requestLog) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := rl.db.ExecContext(ctx, `
			INSERT INTO http_request_logs
			(log_id, method, path, status_code, duration_ms, ip_address, user_agent, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			rl.newID(), e.method, e.path, e.status, e.durationMs, e.ip, e.agent, e.createdAt)
		if err != nil {
			slog.Error("observability: request log failed", "error", err)
		}
	}
	for {
		select {
		case e := <-rl.ch:
			insert(e)
		case <-rl.stop:
			for {
				select {
				case e := <-rl.ch:
					insert(e)
				default:
					return
				}
			}
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
