// Package http exposes the chat webhook. The transport is deliberately
// thin: it extracts the sender and message text from the Twilio-style
// form POST, hands them to the interpreter, and wraps the reply in TwiML.
package http

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"sync"
	"time"

	"kasbot/internal/log"
)

// MessageHandler interprets one inbound chat message and returns the
// reply text. It never fails; faults come back as reply text.
type MessageHandler interface {
	HandleMessage(ctx context.Context, owner, text string) string
}

type Server struct {
	http.Server
	handler     MessageHandler
	logger      *log.Logger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

func NewServer(addr string, handler MessageHandler, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler:     handler,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("POST /webhook", s.withLogging(s.withRateLimit(s.handleWebhook)))
	mux.HandleFunc("GET /health", s.handleHealth)

	return s
}

// Shutdown stops the rate limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// twiml is the minimal messaging response Twilio expects.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, xml.Header)
	// Marshal cannot fail for a string field; ignore the error.
	body, _ := xml.Marshal(twiml{Message: text})
	w.Write(body)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTwiML(w, http.StatusBadRequest, "Error: could not parse request body.")
		return
	}

	owner := r.PostFormValue("From")
	text := r.PostFormValue("Body")
	if owner == "" || text == "" {
		writeTwiML(w, http.StatusBadRequest, "Error: Missing 'From' or 'Body' parameters in message.")
		return
	}

	reply := s.handler.HandleMessage(r.Context(), owner, text)
	writeTwiML(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.logger.InfoContext(r.Context(), "Request handled",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := r.PostFormValue("From")
		if client == "" {
			client = r.RemoteAddr
		}
		if !s.rateLimiter.allow(client) {
			writeTwiML(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next(w, r)
	}
}
