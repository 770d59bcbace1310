package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeAPI is the part of the node exposed over HTTP.
type NodeAPI interface {
	sharedobs.ReadinessChecker
	Snapshot() domain.Snapshot
	RenderSelfMessage() (string, error)
	TriggerCalibration()
	ResetCalibration(addr uint16) error
}

// Server exposes health, readiness, metrics and node state endpoints.
type Server struct {
	httpServer *http.Server
	node       NodeAPI
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// node routes.
func NewServer(addr string, node NodeAPI, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		node:   node,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(node))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /nodes", s.handleNodes)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /calibrate", s.handleCalibrate)
	mux.HandleFunc("POST /nodes/{address}/reset", s.handleReset)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type selfView struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Proximity   int     `json:"proximity"`
	Light       int     `json:"light"`
}

type neighborView struct {
	Address  string  `json:"address"`
	Distance float64 `json:"distance"`
}

type nodeView struct {
	Address            string         `json:"address"`
	Name               string         `json:"name"`
	Calibrated         bool           `json:"calibrated"`
	CalibrationStep    int            `json:"calibration_step"`
	RSSIDistanceFactor float64        `json:"rssi_distance_factor"`
	LastRSSI           int            `json:"last_rssi"`
	EstimatedDistance  float64        `json:"estimated_distance"`
	Temperature        float64        `json:"temperature"`
	Humidity           int            `json:"humidity"`
	Hops               uint8          `json:"hops"`
	HeartbeatCount     int            `json:"heartbeat_count"`
	ContactCount       int            `json:"contact_count"`
	Neighbors          []neighborView `json:"neighbors"`
	LastSeen           time.Time      `json:"last_seen"`
}

type nodesResponse struct {
	Self               selfView   `json:"self"`
	AverageTemperature float64    `json:"average_temperature"`
	Capacity           int        `json:"capacity"`
	Nodes              []nodeView `json:"nodes"`
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	snap := s.node.Snapshot()
	resp := nodesResponse{
		Self: selfView{
			Name:        snap.Self.Name,
			Address:     domain.FormatAddress(snap.Self.Address),
			Temperature: snap.Self.Temperature,
			Humidity:    snap.Self.Humidity,
			Proximity:   snap.Self.Proximity,
			Light:       snap.Self.Light,
		},
		AverageTemperature: snap.AverageTemperature,
		Capacity:           snap.Capacity,
		Nodes:              make([]nodeView, 0, len(snap.Nodes)),
	}
	for _, n := range snap.Nodes {
		v := nodeView{
			Address:            domain.FormatAddress(n.Address),
			Name:               n.Name,
			Calibrated:         n.Calibrated,
			CalibrationStep:    n.CalibrationStep,
			RSSIDistanceFactor: n.RSSIDistanceFactor,
			LastRSSI:           n.LastRSSI,
			EstimatedDistance:  n.EstimatedDistance,
			Temperature:        n.Temperature,
			Humidity:           n.Humidity,
			Hops:               n.Hops,
			HeartbeatCount:     n.HeartbeatCount,
			ContactCount:       n.ContactCount,
			Neighbors:          []neighborView{},
			LastSeen:           n.LastSeen,
		}
		if n.NeighborDigest != "" {
			// Best effort: entries that parse are shown.
			neighbors, _ := domain.ParseNeighborDigest(n.NeighborDigest)
			for _, nb := range neighbors {
				v.Neighbors = append(v.Neighbors, neighborView{Address: domain.FormatAddress(nb.Address), Distance: nb.Distance})
			}
		}
		resp.Nodes = append(resp.Nodes, v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	msg, err := s.node.RenderSelfMessage()
	switch {
	case errors.Is(err, domain.ErrMessageTruncated):
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "size": len(msg), "truncated": true})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "size": len(msg), "truncated": false})
	}
}

func (s *Server) handleCalibrate(w http.ResponseWriter, _ *http.Request) {
	s.node.TriggerCalibration()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "calibration requested"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.node.ResetCalibration(addr)
	switch {
	case errors.Is(err, domain.ErrUnknownNode):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "address": domain.FormatAddress(addr)})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
