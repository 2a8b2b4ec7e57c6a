// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package shimwifi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rina.dev/core/internal/clock"
	"rina.dev/core/internal/errors"
	"rina.dev/core/internal/logging"
	"rina.dev/core/internal/metrics"
)

// enrollment is the in-flight EnrollToDAF request, live for the duration of
// one attempt between EnrollmentStarted and either Enrolled or a timeout. id
// correlates every log line and supplicant request this attempt produces.
type enrollment struct {
	id    string
	dif   string
	bssid string
	done  chan enrollResult
	stop  chan struct{} // closed to cancel the armed timeout goroutine
}

type enrollResult struct {
	neighbor Neighbor
	err      error
}

// STA is the shim-Wi-Fi station: a pure state machine executed under its
// own lock, driven by direct calls (AssignToDIF, EnrollToDAF) and by
// asynchronous supplicant events consumed from a single mailbox goroutine.
type STA struct {
	mu    sync.Mutex
	state State

	channel SupplicantChannel
	clock   clock.Clock

	scanInterval      time.Duration
	enrollmentTimeout time.Duration

	pending   *enrollment
	neighbors map[string]Neighbor

	onMediaReport func(ScanResult)
	onDisconnect  func()

	logger  *logging.Logger
	metrics *metrics.ShimWifi

	scanStop chan struct{}
	evLoopWG sync.WaitGroup
}

// Options configures a new STA.
type Options struct {
	Channel           SupplicantChannel
	ScanInterval      time.Duration
	EnrollmentTimeout time.Duration
	Clock             clock.Clock
	Logger            *logging.Logger
	Metrics           *metrics.ShimWifi
	OnMediaReport     func(ScanResult)
	OnDisconnect      func()
}

// New creates an STA in the Disconnected state.
func New(opts Options) *STA {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 30 * time.Second
	}
	if opts.EnrollmentTimeout <= 0 {
		opts.EnrollmentTimeout = 15 * time.Second
	}
	return &STA{
		state:             Disconnected,
		channel:           opts.Channel,
		clock:             opts.Clock,
		scanInterval:      opts.ScanInterval,
		enrollmentTimeout: opts.EnrollmentTimeout,
		neighbors:         make(map[string]Neighbor),
		onMediaReport:     opts.OnMediaReport,
		onDisconnect:      opts.OnDisconnect,
		logger:            opts.Logger.With("component", "shimwifi"),
		metrics:           opts.Metrics,
	}
}

// State returns the station's current state.
func (s *STA) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AssignToDIF launches the supplicant for iface, opens the control and
// monitor channels, disables every configured network, and schedules
// periodic scanning.
func (s *STA) AssignToDIF(ctx context.Context, iface string) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return errors.New(errors.KindPrecondition, "AssignToDIF is only valid while disconnected")
	}
	s.mu.Unlock()

	if err := s.channel.Open(ctx, iface); err != nil {
		return errors.Wrap(err, errors.KindProvider, "open supplicant control channel")
	}
	if err := s.channel.DisableNetwork(ctx, "all"); err != nil {
		return errors.Wrap(err, errors.KindProvider, "disable all networks")
	}

	s.evLoopWG.Add(1)
	go s.eventLoop()

	s.startScanLoop()

	s.logger.Info("assigned to DIF", "iface", iface)
	return nil
}

// EnrollToDAF requests enrollment into the DAF named dif via the access
// point bssid, blocking until the SM reaches Enrolled or the enrollment
// timeout fires.
func (s *STA) EnrollToDAF(ctx context.Context, dif, bssid string) (Neighbor, error) {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return Neighbor{}, errors.New(errors.KindPrecondition, "enrollment already in progress or not disconnected")
	}

	e := &enrollment{id: uuid.NewString(), dif: dif, bssid: bssid, done: make(chan enrollResult, 1), stop: make(chan struct{})}
	s.pending = e
	s.state = EnrollmentStarted
	s.mu.Unlock()

	s.logger.Info("enrollment started", "enrollment_id", e.id, "dif", dif, "bssid", bssid)

	s.armTimeout(e)

	if err := s.channel.SelectNetwork(ctx, dif+":"+bssid); err != nil {
		s.mu.Lock()
		s.pending = nil
		s.state = Disconnected
		s.mu.Unlock()
		close(e.stop)
		s.countEnrollment("failure")
		return Neighbor{}, errors.Wrap(err, errors.KindProvider, "select_network")
	}

	select {
	case res := <-e.done:
		if res.err != nil {
			// onTimeout is the only sender of an error result.
			s.countEnrollment("timeout")
			return Neighbor{}, res.err
		}
		s.countEnrollment("success")
		return res.neighbor, nil
	case <-ctx.Done():
		s.countEnrollment("failure")
		return Neighbor{}, ctx.Err()
	}
}

func (s *STA) armTimeout(e *enrollment) {
	timeoutCh := s.clock.After(s.enrollmentTimeout)
	go func() {
		select {
		case <-timeoutCh:
			s.onTimeout(e)
		case <-e.stop:
		}
	}()
}

func (s *STA) onTimeout(e *enrollment) {
	s.mu.Lock()
	if s.pending != e {
		s.mu.Unlock()
		return // superseded or already resolved
	}
	s.pending = nil
	s.state = Disconnected
	s.mu.Unlock()

	_ = s.channel.Disconnect(context.Background())
	s.logger.Warn("enrollment timed out", "enrollment_id", e.id)
	e.done <- enrollResult{err: errors.New(errors.KindInterrupted, "enrollment timed out")}
}

// eventLoop is the supplicant monitor-channel mailbox consumer.
func (s *STA) eventLoop() {
	defer s.evLoopWG.Done()
	for ev := range s.channel.Events() {
		s.handleEvent(ev)
	}
}

func (s *STA) handleEvent(ev Event) {
	switch ev.Kind {
	case EvTryingAssociate:
		s.transition(EnrollmentStarted, TryingToAssociate)
	case EvAssociated:
		s.transition(TryingToAssociate, Associated)
	case EvKeyNegotiated:
		s.transition(Associated, KeyNegotiationCompleted)
	case EvConnected:
		s.onConnected()
	case EvDisconnected:
		s.onSupplicantDisconnected()
	case EvScanResultsReady:
		for _, r := range ev.Results {
			if s.onMediaReport != nil {
				s.onMediaReport(r)
			}
		}
	}
}

// transition moves the state machine from "from" to "to" iff it is
// currently in "from"; other states silently ignore the event (e.g. a
// stray SupplicantAssociated after a timeout already reset to Disconnected).
func (s *STA) transition(from, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
	}
}

func (s *STA) onConnected() {
	s.mu.Lock()
	e := s.pending
	if e == nil || s.state != KeyNegotiationCompleted {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.state = Enrolled
	neighbor := Neighbor{DIF: e.dif, BSSID: e.bssid}
	s.neighbors[e.bssid] = neighbor
	s.mu.Unlock()

	s.logger.Info("enrollment succeeded", "enrollment_id", e.id, "bssid", e.bssid)
	close(e.stop)
	e.done <- enrollResult{neighbor: neighbor}
}

func (s *STA) onSupplicantDisconnected() {
	s.mu.Lock()
	if s.state != Enrolled {
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	s.mu.Unlock()

	if s.onDisconnect != nil {
		s.onDisconnect()
	}
}

func (s *STA) startScanLoop() {
	s.scanStop = make(chan struct{})
	ticker := s.clock.NewTicker(s.scanInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.scanStop:
				return
			case <-ticker.C():
				s.scanTick()
			}
		}
	}()
}

func (s *STA) scanTick() {
	ctx := context.Background()
	if err := s.channel.Scan(ctx); err != nil {
		s.logger.Warn("scan request failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ScansTotal.Inc()
	}
	results, err := s.channel.ScanResults(ctx)
	if err != nil {
		s.logger.Warn("scan results fetch failed", "error", err)
		return
	}
	for _, r := range results {
		if s.onMediaReport != nil {
			s.onMediaReport(r)
		}
	}
}

func (s *STA) countEnrollment(result string) {
	if s.metrics != nil {
		s.metrics.EnrollmentsTotal.WithLabelValues(result).Inc()
	}
}

// Close stops the scan loop and the event-loop goroutine and closes the
// underlying channel.
func (s *STA) Close() error {
	if s.scanStop != nil {
		close(s.scanStop)
	}
	err := s.channel.Close()
	s.evLoopWG.Wait()
	return err
}
