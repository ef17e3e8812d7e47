// Command grouppool-server runs a demo grouppool.Pool behind an HTTP
// admin API: current stats, live resize, graceful stop, a Prometheus
// scrape endpoint, and a WebSocket stream of admission events. It is
// laid out the way NoiseFS's announce-webui commands structure a
// gorilla/mux + gorilla/websocket admin surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
	"github.com/shadowmoose/grouppool/pkg/grouppool/goexec"
	"github.com/shadowmoose/grouppool/pkg/grouppool/logging"
	"github.com/shadowmoose/grouppool/pkg/grouppool/metrics"
	"github.com/shadowmoose/grouppool/pkg/grouppool/tagconfig"
)

var (
	addr       = flag.String("addr", ":8088", "address to listen on")
	tagsConfig = flag.String("tags", "", "path to a YAML tag-capacity config to load and watch")
	logLevel   = flag.String("log-level", "info", "debug, info, warn, or error")
)

// apiResponse is the envelope every JSON endpoint returns.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// eventHub fans admission events out to connected WebSocket clients.
type eventHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]chan []byte
	log      *logging.Logger
}

func newEventHub(log *logging.Logger) *eventHub {
	return &eventHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]chan []byte),
		log:      log,
	}
}

type wsEvent struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

func (h *eventHub) broadcast(ev wsEvent) {
	payload, _ := json.Marshal(ev)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *eventHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for payload := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Admitted/Refused/Released implement grouppool.Observer by
// rebroadcasting each event to connected admin clients.
func (h *eventHub) Admitted(tag grouppool.Tag, borrowed bool) {
	evType := "admitted"
	if borrowed {
		evType = "admitted_borrowed"
	}
	h.broadcast(wsEvent{Type: evType, Tag: tag.String()})
}

func (h *eventHub) Refused(tag grouppool.Tag) {
	h.broadcast(wsEvent{Type: "refused", Tag: tag.String()})
}

func (h *eventHub) Released(tag grouppool.Tag, borrowed bool) {
	h.broadcast(wsEvent{Type: "released", Tag: tag.String()})
}

type adminServer struct {
	pool *grouppool.Pool
	log  *logging.Logger
}

func (s *adminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: s.pool.Stats()})
}

type adjustRequest struct {
	Tag             string `json:"tag"`
	Size            int    `json:"size"`
	UseGenericSlots bool   `json:"useGenericSlots"`
}

func (s *adminServer) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}

	report, err := s.pool.Adjust(grouppool.Tag(req.Tag), req.Size, req.UseGenericSlots)
	if err != nil {
		writeJSON(w, http.StatusConflict, apiResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: report})
}

func (s *adminServer) handleStop(w http.ResponseWriter, r *http.Request) {
	drain := r.URL.Query().Get("drain") != "false"
	if err := s.pool.Stop(drain); err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *adminServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.pool.Join(ctx); err != nil {
		writeJSON(w, http.StatusGatewayTimeout, apiResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func main() {
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		level = logging.InfoLevel
	}
	log := logging.NewLogger(logging.Config{Level: level, Format: logging.JSONFormat, Component: "grouppool-server"})
	defer log.Sync()

	hub := newEventHub(log)

	executor := goexec.New(goexec.Config{
		Breaker: goexec.NewBreaker(goexec.DefaultBreakerConfig("grouppool-server")),
	})

	pool := grouppool.New(grouppool.Config{
		Reserved: map[grouppool.Tag]int{grouppool.Generic: 4},
		Executor: executor,
		Observer: hub,
	})

	recorder := metrics.NewRecorder(pool, "grouppool", "server")
	prometheus.MustRegister(recorder)

	if *tagsConfig != "" {
		doc, err := tagconfig.Load(*tagsConfig)
		if err != nil {
			log.Errorf("failed to load tag config %s: %v", *tagsConfig, err)
		} else if err := tagconfig.Apply(pool, doc); err != nil {
			log.Errorf("failed to apply tag config: %v", err)
		}

		watcher, err := tagconfig.NewWatcher(*tagsConfig, pool, func(err error) {
			log.Warnf("tag config reload failed: %v", err)
		})
		if err != nil {
			log.Errorf("failed to watch tag config: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	server := &adminServer{pool: pool, log: log}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", server.handleStats).Methods("GET")
	api.HandleFunc("/adjust", server.handleAdjust).Methods("POST")
	api.HandleFunc("/stop", server.handleStop).Methods("POST")
	api.HandleFunc("/join", server.handleJoin).Methods("POST")
	api.HandleFunc("/events", hub.handleWS)
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: *addr, Handler: router}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(sigCtx)
	group.Go(func() error {
		log.Infof("grouppool-server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Infof("shutting down: draining in-flight tasks")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http shutdown: %v", err)
		}
		if err := pool.Stop(true); err != nil {
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Errorf("server exited: %v", err)
	}
}
