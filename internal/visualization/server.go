package visualization

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/competence/internal/mastery"
)

// SnapshotFunc returns the vector to render. It is called once per request.
type SnapshotFunc func() *mastery.Vector

// Server serves the live mastery graph of one learner over HTTP:
// "/" as HTML, "/graph.json" and "/graph.dot".
type Server struct {
	name       string
	snapshot   SnapshotFunc
	httpServer *http.Server
	mu         sync.Mutex
	addr       string
}

// NewServer creates a graph server for the named domain.
func NewServer(name string, snapshot SnapshotFunc) *Server {
	return &Server{name: name, snapshot: snapshot}
}

// Addr returns the address the server is listening on, or "" before it
// has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle(FormatHTML, "text/html; charset=utf-8"))
	mux.HandleFunc("/graph.json", s.handle(FormatJSON, "application/json"))
	mux.HandleFunc("/graph.dot", s.handle(FormatDOT, "text/vnd.graphviz; charset=utf-8"))
	return mux
}

// ListenAndServe listens on addr ("localhost:0" picks a free port) and
// blocks until ctx is cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handle(format Format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if format == FormatHTML && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		body, err := Render(s.name, s.snapshot(), format)
		if err != nil {
			http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}
}
