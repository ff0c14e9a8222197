package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/maxkimambo/assetpipe/internal/logger"
)

const (
	// ReloadPath is the WebSocket endpoint browsers connect to
	ReloadPath = "/__livereload"
	// ScriptPath serves the client script injected into HTML pages
	ScriptPath = "/__livereload.js"
)

const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + ReloadPath + `");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "css") {
        var links = document.querySelectorAll('link[rel="stylesheet"]');
        for (var i = 0; i < links.length; i++) {
          var href = links[i].href.replace(/[?&]livereload=\d+/, "");
          links[i].href = href + (href.indexOf("?") < 0 ? "?" : "&") + "livereload=" + Date.now();
        }
        return;
      }
      location.reload();
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`

var scriptTag = []byte(`<script src="` + ScriptPath + `"></script>`)

// Config holds the dev server settings
type Config struct {
	// Dir is the directory served at /
	Dir  string
	Port int
}

// Server serves the output tree with live reload
type Server struct {
	config     Config
	hub        *Hub
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server that broadcasts through hub
func New(config Config, hub *Hub) *Server {
	return &Server{
		config: config,
		hub:    hub,
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ReloadPath, s.hub)
	mux.HandleFunc(ScriptPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		fmt.Fprint(w, clientScript)
	})
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/", s.staticHandler())
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger.Op.WithFields(map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"path":        r.URL.Path,
	}).Debug("Health check endpoint hit")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// staticHandler serves files from Dir, injecting the reload script into
// HTML pages
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.config.Dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		if !strings.HasSuffix(name, ".html") && !strings.HasSuffix(name, ".htm") {
			files.ServeHTTP(w, r)
			return
		}

		full := filepath.Join(s.config.Dir, filepath.FromSlash(name))
		data, err := os.ReadFile(full)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(InjectScript(data))
	})
}

// InjectScript adds the reload script before </body>, or at the end when
// the page has no body tag
func InjectScript(page []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte(nil), page...), scriptTag...)
	}
	out := make([]byte, 0, len(page)+len(scriptTag))
	out = append(out, page[:idx]...)
	out = append(out, scriptTag...)
	return append(out, page[idx:]...)
}

// Start listens on the configured port and serves in the background. Port
// 0 picks a free port; Addr reports it.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Op.WithFields(map[string]interface{}{"error": err.Error()}).Error("Dev server failed unexpectedly")
		}
	}()

	logger.User.Startingf("Serving %s at http://localhost:%d", s.config.Dir, s.Port())
	return nil
}

// Port returns the port the server listens on, once started
func (s *Server) Port() int {
	if s.listener == nil {
		return s.config.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}

// Shutdown disconnects reload clients and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("dev server shutdown failed: %w", err)
	}
	logger.Op.Debug("Dev server shut down gracefully")
	return nil
}
