// Command peersim publishes calibration and heartbeat frames for synthetic
// peers to the mesh topic so a node can be exercised without boards.
//
// Usage:
//
//	go run ./cmd/peersim \
//	  -brokers localhost:9092 \
//	  -topic mesh-frames \
//	  -peers 3 -rounds 10 -interval 2s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "github.com/couchcryptid/mesh-distance-service/internal/adapter/kafka"
	"github.com/couchcryptid/mesh-distance-service/internal/config"
	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	"github.com/couchcryptid/mesh-distance-service/internal/observability"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// calibrationProximity sits inside the calibration window and within the
// vicinity of a board held at 250.
const calibrationProximity = 248

type peer struct {
	addr        uint16
	name        string
	rssi        int
	temperature float64
	humidity    int
	distance    float64
}

func main() {
	if err := run(); err != nil {
		slog.Error("peersim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
	topic := flag.String("topic", "mesh-frames", "mesh topic")
	peers := flag.Int("peers", 3, "number of synthetic peers")
	baseAddr := flag.String("base-addr", "0100", "hex address of the first peer")
	rounds := flag.Int("rounds", 10, "heartbeat rounds after calibration (0 runs until interrupted)")
	interval := flag.Duration("interval", 2*time.Second, "delay between heartbeat rounds")
	seed := flag.Uint64("seed", 1, "random seed for telemetry jitter")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *peers <= 0 || *peers > domain.MaxNodes {
		return fmt.Errorf("-peers must be between 1 and %d", domain.MaxNodes)
	}
	base, err := domain.ParseAddress(*baseAddr)
	if err != nil {
		return fmt.Errorf("invalid -base-addr: %w", err)
	}

	logger := observability.NewLogger(*logLevel, "text")
	cfg := &config.Config{
		KafkaBrokers: sharedcfg.ParseBrokers(*brokers),
		MeshTopic:    *topic,
	}
	writer := kafkaadapter.NewWriter(cfg, logger)
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	sim := make([]peer, *peers)
	for i := range sim {
		sim[i] = peer{
			addr:        base + uint16(i),
			name:        fmt.Sprintf("peer%d", i),
			rssi:        -40 - 3*i,
			temperature: 19 + rng.Float64()*6,
			humidity:    35 + rng.IntN(20),
			distance:    0.5 + float64(i),
		}
	}

	for _, p := range sim {
		if err := calibrate(ctx, writer, p); err != nil {
			return err
		}
		logger.Info("peer calibrated", "address", domain.FormatAddress(p.addr), "name", p.name, "rssi", p.rssi)
	}

	for round := 1; *rounds == 0 || round <= *rounds; round++ {
		for i := range sim {
			drift(rng, &sim[i])
			if err := heartbeat(ctx, writer, sim[i], sim); err != nil {
				return err
			}
		}
		logger.Info("heartbeat round published", "round", round, "peers", len(sim))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*interval):
		}
	}
	return nil
}

func calibrate(ctx context.Context, w *kafkaadapter.Writer, p peer) error {
	for i := 0; i < domain.CalibrationSteps; i++ {
		err := w.SendAs(ctx, p.addr, p.rssi, domain.Outbound{
			Destination: domain.BroadcastAddress,
			Opcode:      domain.OpCalibration,
			TTL:         domain.DefaultTTL,
			Payload:     domain.EncodeCalibration(calibrationProximity, p.name),
		})
		if err != nil {
			return fmt.Errorf("calibrate %s: %w", p.name, err)
		}
	}
	return nil
}

func heartbeat(ctx context.Context, w *kafkaadapter.Writer, p peer, all []peer) error {
	neighbors := make([]domain.NodeRecord, 0, len(all)-1)
	for _, o := range all {
		if o.addr != p.addr {
			neighbors = append(neighbors, domain.NodeRecord{Address: o.addr, EstimatedDistance: o.distance})
		}
	}
	text, err := domain.RenderSelfMessage(domain.SelfState{
		Name:        p.name,
		Address:     p.addr,
		Temperature: p.temperature,
		Humidity:    p.humidity,
	}, neighbors)
	if err != nil && text == "" {
		return fmt.Errorf("render %s: %w", p.name, err)
	}

	// The peer moves away from the node as its RSSI falls.
	rssi := p.rssi - int(p.distance*4)
	err = w.SendAs(ctx, p.addr, rssi, domain.Outbound{
		Destination: domain.BroadcastAddress,
		Opcode:      domain.OpHeartbeat,
		TTL:         domain.DefaultTTL,
		Payload:     domain.EncodeHeartbeat(domain.DefaultTTL, text),
	})
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", p.name, err)
	}
	return nil
}

func drift(rng *rand.Rand, p *peer) {
	p.temperature += rng.Float64() - 0.5
	p.distance += rng.Float64() * 0.3
}
