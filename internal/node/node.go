package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	"github.com/couchcryptid/mesh-distance-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// VicinityDelta is the largest proximity difference between the two boards
// of a calibration gesture. Both boards measure each other, so their readings
// should nearly agree.
const VicinityDelta = 10

const sensorCount = 4

// Transport delivers and accepts mesh frames.
type Transport interface {
	Receive(ctx context.Context) (domain.Inbound, error)
	Send(ctx context.Context, out domain.Outbound) error
}

// Sensors reads the local board sensors. Values are polled, not pushed.
type Sensors interface {
	ReadTemperature(ctx context.Context) (float64, error)
	ReadHumidity(ctx context.Context) (float64, error)
	ReadProximity(ctx context.Context) (int, error)
	ReadLight(ctx context.Context) (int, error)
}

// Display presents feedback to the operator.
type Display interface {
	Show(text string)
	Blink()
}

// Options tunes the node loop. Zero values select defaults.
type Options struct {
	PublishInterval time.Duration
	SensorInterval  time.Duration
	TTL             uint8
	Clock           clockwork.Clock
}

// Node owns the estimator and dispatches frames, publish ticks, sensor polls
// and calibration triggers one at a time.
type Node struct {
	est       *domain.Estimator
	transport Transport
	sensors   Sensors
	display   Display
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	publishInterval time.Duration
	sensorInterval  time.Duration
	ttl             uint8

	triggers chan struct{}
	ready    atomic.Bool
}

// New creates a Node around an estimator and its collaborators.
func New(est *domain.Estimator, t Transport, s Sensors, d Display, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Node {
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = 5 * time.Second
	}
	if opts.SensorInterval <= 0 {
		opts.SensorInterval = time.Second
	}
	if opts.TTL == 0 {
		opts.TTL = domain.DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Node{
		est:             est,
		transport:       t,
		sensors:         s,
		display:         d,
		logger:          logger,
		metrics:         metrics,
		clock:           opts.Clock,
		publishInterval: opts.PublishInterval,
		sensorInterval:  opts.SensorInterval,
		ttl:             opts.TTL,
		triggers:        make(chan struct{}, 1),
	}
}

// CheckReadiness returns nil once the node has read its sensors or received
// a frame.
func (n *Node) CheckReadiness(_ context.Context) error {
	if !n.ready.Load() {
		return errors.New("node has not read sensors or received frames yet")
	}
	return nil
}

// TriggerCalibration asks the loop to broadcast a calibration frame. Presses
// made while one is pending are coalesced.
func (n *Node) TriggerCalibration() {
	select {
	case n.triggers <- struct{}{}:
	default:
	}
}

// Snapshot returns the current engine state.
func (n *Node) Snapshot() domain.Snapshot {
	return n.est.Snapshot()
}

// RenderSelfMessage returns the heartbeat text the next publish would send.
func (n *Node) RenderSelfMessage() (string, error) {
	return n.est.RenderSelfMessage()
}

// ResetCalibration clears the calibration of a peer so the gesture can be
// repeated.
func (n *Node) ResetCalibration(addr uint16) error {
	if err := n.est.ResetCalibration(addr); err != nil {
		return err
	}
	n.metrics.EstimatedDistance.DeleteLabelValues(domain.FormatAddress(addr))
	n.updateGauges()
	n.logger.Info("calibration reset", "address", domain.FormatAddress(addr))
	return nil
}

// Run executes the node loop until the context is cancelled.
func (n *Node) Run(ctx context.Context) error {
	self := n.est.Self()
	n.logger.Info("node started",
		"address", domain.FormatAddress(self.Address),
		"name", self.Name,
		"publish_interval", n.publishInterval,
		"sensor_interval", n.sensorInterval,
	)
	n.metrics.NodeRunning.Set(1)
	defer n.metrics.NodeRunning.Set(0)

	ctx, cancel := context.WithCancel(ctx)
	frames := make(chan domain.Inbound)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.receiveLoop(ctx, frames)
	}()
	defer func() {
		cancel()
		<-done
	}()

	publish := n.clock.NewTicker(n.publishInterval)
	defer publish.Stop()
	poll := n.clock.NewTicker(n.sensorInterval)
	defer poll.Stop()

	_ = n.PollSensors(ctx)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("node stopping", "reason", ctx.Err())
			return nil
		case in := <-frames:
			n.HandleFrame(ctx, in)
		case <-publish.Chan():
			_ = n.Publish(ctx)
		case <-poll.Chan():
			_ = n.PollSensors(ctx)
		case <-n.triggers:
			_ = n.SendCalibration(ctx)
		}
	}
}

// receiveLoop forwards inbound frames to the owning loop, backing off on
// transport errors.
func (n *Node) receiveLoop(ctx context.Context, out chan<- domain.Inbound) {
	backoff := initialBackoff
	for {
		in, err := n.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Error("receive frame failed", "error", err)
			n.metrics.TransportErrors.WithLabelValues("receive").Inc()
			if !sleepWithContext(ctx, n.clock, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}

// HandleFrame dispatches one inbound frame.
func (n *Node) HandleFrame(ctx context.Context, in domain.Inbound) {
	n.ready.Store(true)
	n.metrics.FramesReceived.WithLabelValues(in.Opcode.String()).Inc()

	self := n.est.Self()
	if in.Destination != self.Address && in.Destination != domain.BroadcastAddress {
		n.logger.Debug("frame for another node dropped",
			"sender", domain.FormatAddress(in.Sender),
			"destination", domain.FormatAddress(in.Destination),
		)
		return
	}
	if in.Sender == self.Address {
		n.logger.Debug("ignoring frame from self", "opcode", in.Opcode.String())
		return
	}

	switch in.Opcode {
	case domain.OpCalibration:
		n.handleCalibration(ctx, self, in)
	case domain.OpHeartbeat:
		n.handleHeartbeat(in)
	case domain.OpBadUser:
		n.handleBadUser(in)
	default:
		n.logger.Warn("unsupported opcode, skipping frame",
			"sender", domain.FormatAddress(in.Sender),
			"opcode", in.Opcode.String(),
		)
		return
	}
	n.updateGauges()
}

func (n *Node) handleCalibration(ctx context.Context, self domain.SelfState, in domain.Inbound) {
	p, err := domain.DecodeCalibration(in.Payload)
	if err != nil {
		n.logger.Warn("invalid calibration frame, skipping", "sender", domain.FormatAddress(in.Sender), "error", err)
		n.metrics.CalibrationSamples.WithLabelValues("invalid_frame").Inc()
		return
	}
	addr := domain.FormatAddress(in.Sender)
	n.logger.Info("calibration received",
		"address", addr,
		"name", p.Name,
		"rssi", in.RSSI,
		"proximity", p.Proximity,
	)
	defer n.display.Show(p.Name)

	if !inVicinity(int(p.Proximity), self.Proximity) {
		n.logger.Info("peer not in calibration vicinity",
			"address", addr,
			"peer_proximity", p.Proximity,
			"own_proximity", self.Proximity,
		)
		n.metrics.CalibrationSamples.WithLabelValues("out_of_vicinity").Inc()
		return
	}

	res, err := n.est.SubmitCalibrationSample(in.Sender, p.Name, int(p.Proximity), in.RSSI)
	if err != nil {
		n.logger.Warn("calibration sample dropped", "address", addr, "error", err)
		if errors.Is(err, domain.ErrRegistryFull) {
			n.metrics.RegistryFull.Inc()
		}
		return
	}
	n.metrics.CalibrationSamples.WithLabelValues(res.String()).Inc()

	switch res {
	case domain.Accepted:
		// Answer so the peer collects its sample of us too.
		_ = n.SendCalibration(ctx)
	case domain.FirstCalibration:
		n.logger.Info("peer calibrated", "address", addr, "name", p.Name)
		_ = n.SendCalibration(ctx)
		n.display.Blink()
	case domain.Repeat:
		n.logger.Info("peer recalibrated", "address", addr, "name", p.Name)
		n.display.Blink()
	default:
		n.logger.Debug("calibration sample not stored", "address", addr, "result", res.String())
	}
}

func (n *Node) handleHeartbeat(in domain.Inbound) {
	addr := domain.FormatAddress(in.Sender)
	hb, err := domain.DecodeHeartbeat(in.Payload, in.TTL)
	if err != nil {
		n.logger.Warn("invalid heartbeat frame, skipping", "sender", addr, "error", err)
		n.metrics.Heartbeats.WithLabelValues("invalid_frame").Inc()
		return
	}
	n.logger.Debug("heartbeat received", "address", addr, "rssi", in.RSSI, "hops", hb.Hops, "message", hb.Text)

	applied, err := n.est.ApplyHeartbeat(in.Sender, in.RSSI, hb.Hops, hb.Text)
	if !applied {
		n.logger.Debug("heartbeat from unknown peer ignored", "address", addr)
		n.metrics.Heartbeats.WithLabelValues("unknown_peer").Inc()
		return
	}
	if err != nil {
		n.logger.Warn("heartbeat partially applied", "address", addr, "error", err)
		n.metrics.Heartbeats.WithLabelValues("malformed").Inc()
		return
	}
	n.metrics.Heartbeats.WithLabelValues("applied").Inc()
}

func (n *Node) handleBadUser(in domain.Inbound) {
	name := domain.DecodeBadUser(in.Payload)
	n.logger.Info("bad user reported", "address", domain.FormatAddress(in.Sender), "name", name)
	n.display.Show(name + " is misbehaving!")
	n.display.Blink()
}

// Publish renders the local status and broadcasts it as a heartbeat.
func (n *Node) Publish(ctx context.Context) error {
	msg, err := n.est.RenderSelfMessage()
	switch {
	case errors.Is(err, domain.ErrMessageTruncated):
		n.logger.Warn("status message truncated", "error", err)
		n.metrics.MessageTruncated.Inc()
	case err != nil:
		n.logger.Error("render status message failed", "error", err)
		return err
	}

	n.metrics.MessageSize.Observe(float64(len(msg)))
	n.logger.Debug("publishing heartbeat", "message", msg, "size", len(msg))
	return n.send(ctx, domain.Outbound{
		Destination: domain.BroadcastAddress,
		Opcode:      domain.OpHeartbeat,
		TTL:         n.ttl,
		Payload:     domain.EncodeHeartbeat(n.ttl, msg),
	})
}

// SendCalibration broadcasts the local proximity and name when the board is
// held inside the calibration window.
func (n *Node) SendCalibration(ctx context.Context) error {
	self := n.est.Self()
	if !domain.IsValidCalibrationWindow(self.Proximity) {
		n.logger.Info("bad proximity for calibration",
			"proximity", self.Proximity,
			"min", domain.CalibrationWindowMin,
			"max", domain.CalibrationWindowMax,
		)
		n.display.Show(fmt.Sprintf("! prox=%d ! (%d<p<%d)", self.Proximity, domain.CalibrationWindowMin, domain.CalibrationWindowMax))
		return fmt.Errorf("send calibration: %w", domain.ErrInvalidCalibrationWindow)
	}

	err := n.send(ctx, domain.Outbound{
		Destination: domain.BroadcastAddress,
		Opcode:      domain.OpCalibration,
		TTL:         n.ttl,
		Payload:     domain.EncodeCalibration(int32(self.Proximity), self.Name),
	})
	if err != nil {
		n.display.Show("Sending failed!")
		return err
	}
	n.display.Show("Sending calibration")
	return nil
}

// PollSensors refreshes the local telemetry. A failed reading keeps the
// previous value.
func (n *Node) PollSensors(ctx context.Context) error {
	var errs []error

	temp, err := n.sensors.ReadTemperature(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("temperature: %w", err))
	}
	hum, herr := n.sensors.ReadHumidity(ctx)
	if herr != nil {
		errs = append(errs, fmt.Errorf("humidity: %w", herr))
	}
	prox, perr := n.sensors.ReadProximity(ctx)
	if perr != nil {
		errs = append(errs, fmt.Errorf("proximity: %w", perr))
	}
	light, lerr := n.sensors.ReadLight(ctx)
	if lerr != nil {
		errs = append(errs, fmt.Errorf("light: %w", lerr))
	}

	n.est.UpdateSelf(func(s *domain.SelfState) {
		if err == nil {
			s.Temperature = temp
		}
		if herr == nil {
			s.Humidity = int(hum)
		}
		if perr == nil {
			s.Proximity = prox
		}
		if lerr == nil {
			s.Light = light
		}
	})

	if len(errs) == sensorCount {
		joined := errors.Join(errs...)
		n.logger.Warn("sensor poll failed", "error", joined)
		return joined
	}
	n.ready.Store(true)
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		n.logger.Warn("sensor poll partially failed", "error", joined)
		return joined
	}
	return nil
}

func (n *Node) send(ctx context.Context, out domain.Outbound) error {
	if err := n.transport.Send(ctx, out); err != nil {
		n.logger.Error("send frame failed", "opcode", out.Opcode.String(), "error", err)
		n.metrics.TransportErrors.WithLabelValues("send").Inc()
		return fmt.Errorf("send %s: %w", out.Opcode, err)
	}
	n.metrics.FramesSent.WithLabelValues(out.Opcode.String()).Inc()
	return nil
}

func (n *Node) updateGauges() {
	snap := n.est.Snapshot()
	calibrated := 0
	for _, rec := range snap.Nodes {
		if !rec.Calibrated {
			continue
		}
		calibrated++
		n.metrics.EstimatedDistance.WithLabelValues(domain.FormatAddress(rec.Address)).Set(rec.EstimatedDistance)
	}
	n.metrics.KnownNodes.Set(float64(len(snap.Nodes)))
	n.metrics.CalibratedNodes.Set(float64(calibrated))
	n.metrics.AverageTemperature.Set(snap.AverageTemperature)
}

func inVicinity(peer, own int) bool {
	d := peer - own
	if d < 0 {
		d = -d
	}
	return d < VicinityDelta
}
