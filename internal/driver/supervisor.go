package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgehub/core/internal/logging"
)

// Status is the transient snapshot §3's "Driver runtime record" keeps.
type Status struct {
	SensorID          int64
	Running           bool
	Connected         bool
	State             State
	LastRaw           float64
	LastSeenTs        int64
	ConsecutiveErrors int
}

// Supervisor runs one driver instance's independent poll/event loop. It
// owns retry/timeout/status bookkeeping so protocol drivers only contain
// I/O, per the design note that the base supervisor is composed, not
// inherited. Grounded on poller.SerialBusPoller's ticker+select loop,
// generalized to one instance per sensor and to both poll-cadence and
// event-driven delivery modes (§4.1/§4.2).
type Supervisor struct {
	sensorID     int64
	drv          Driver
	pollInterval time.Duration
	timeout      time.Duration
	retryCount   int
	eventDriven  bool

	mu        sync.Mutex
	valueCbs  []ValueCallback
	statusCbs []StatusCallback
	errorCbs  []ErrorCallback

	stateMu sync.RWMutex
	state   State
	st      Status

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(sensorID int64, drv Driver, pollInterval, timeout time.Duration, retryCount int, eventDriven bool) *Supervisor {
	return &Supervisor{
		sensorID:     sensorID,
		drv:          drv,
		pollInterval: pollInterval,
		timeout:      timeout,
		retryCount:   retryCount,
		eventDriven:  eventDriven,
		state:        StateStopped,
		st:           Status{SensorID: sensorID, State: StateStopped},
	}
}

// OnValue/OnStatus/OnError register callbacks; must be called before Start.
func (s *Supervisor) OnValue(cb ValueCallback)   { s.valueCbs = append(s.valueCbs, cb) }
func (s *Supervisor) OnStatus(cb StatusCallback) { s.statusCbs = append(s.statusCbs, cb) }
func (s *Supervisor) OnError(cb ErrorCallback)   { s.errorCbs = append(s.errorCbs, cb) }

func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	if s.eventDriven {
		go s.runEventDriven(runCtx)
	} else {
		go s.run(runCtx)
	}
}

// Stop signals cancellation, waits up to 5s for the loop to exit, then
// disconnects — matching §5's per-driver shutdown budget.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		logging.Warn("driver stop timed out waiting for poll loop", "sensor_id", s.sensorID)
	}
	s.drv.Disconnect()
	s.setState(StateOffline, nil)
	s.setConnected(false)
}

// Restart is stop; pause 500ms; start, per §4.1.
func (s *Supervisor) Restart(ctx context.Context) {
	s.Stop()
	time.Sleep(500 * time.Millisecond)
	s.Start(ctx)
}

func (s *Supervisor) Write(ctx context.Context, value float64) error {
	return s.drv.Write(ctx, value)
}

func (s *Supervisor) GetStatus() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	st := s.st
	st.Running = s.cancel != nil
	return st
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	s.setState(StateConnecting, nil)
	if err := s.connect(ctx); err != nil {
		s.setState(StateError, err)
	} else {
		s.setConnected(true)
		s.setState(StateOnline, nil)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// runEventDriven only maintains connection health; the protocol driver's
// own background task delivers values directly via DeliverValue.
func (s *Supervisor) runEventDriven(ctx context.Context) {
	defer close(s.done)

	s.setState(StateConnecting, nil)
	if err := s.connect(ctx); err != nil {
		s.setState(StateError, err)
	} else {
		s.setConnected(true)
		s.setState(StateOnline, nil)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.isConnected() {
				if err := s.connect(ctx); err != nil {
					continue
				}
				s.setConnected(true)
				s.setState(StateOnline, nil)
			}
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.drv.Connect(connectCtx)
}

func (s *Supervisor) pollOnce(ctx context.Context) {
	if !s.isConnected() {
		if err := s.connect(ctx); err != nil {
			return // stay OFFLINE/ERROR, retried next tick
		}
		s.setConnected(true)
	}

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.drv.Read(readCtx)
	if err != nil {
		if readCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", ErrReadTimeout, err)
		}
		s.onReadError(err)
		return
	}
	s.onReadSuccess(raw)
}

func (s *Supervisor) onReadSuccess(raw float64) {
	s.stateMu.Lock()
	s.st.ConsecutiveErrors = 0
	s.st.LastRaw = raw
	s.st.LastSeenTs = time.Now().UnixMilli()
	wasOnline := s.state == StateOnline
	s.state = StateOnline
	s.stateMu.Unlock()

	if !wasOnline {
		s.emitStatus(StatusEvent{SensorID: s.sensorID, State: StateOnline})
	}
	s.emitValue(ValueEvent{SensorID: s.sensorID, Raw: raw, Ts: time.Now().UnixMilli()})
}

// DeliverValue lets event-driven drivers push a value outside the poll
// cadence (§4.1's "bypassing the poll cadence").
func (s *Supervisor) DeliverValue(raw float64) {
	s.onReadSuccess(raw)
}

// DeliverError lets event-driven drivers report a failed receive using
// the same retry-threshold/OFFLINE bookkeeping as the poll loop.
func (s *Supervisor) DeliverError(err error) {
	s.onReadError(err)
}

func (s *Supervisor) onReadError(err error) {
	s.stateMu.Lock()
	s.st.ConsecutiveErrors++
	tripped := s.st.ConsecutiveErrors >= s.retryCount
	s.stateMu.Unlock()

	s.emitError(ErrorEvent{SensorID: s.sensorID, Err: err})

	if tripped {
		s.setConnected(false)
		s.setState(StateOffline, err)
	}
}

func (s *Supervisor) setState(st State, err error) {
	s.stateMu.Lock()
	s.state = st
	s.st.State = st
	s.stateMu.Unlock()
	s.emitStatus(StatusEvent{SensorID: s.sensorID, State: st, Err: err})
}

func (s *Supervisor) setConnected(v bool) {
	s.stateMu.Lock()
	s.st.Connected = v
	s.stateMu.Unlock()
}

func (s *Supervisor) isConnected() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.st.Connected
}

// emit* fire callbacks in registration order; a panicking callback is
// recovered, logged, and skipped for that tick — it must not halt the
// driver's loop (§4.1).
func (s *Supervisor) emitValue(ev ValueEvent) {
	for _, cb := range s.valueCbs {
		s.safeCall(func() { cb(ev) })
	}
}

func (s *Supervisor) emitStatus(ev StatusEvent) {
	for _, cb := range s.statusCbs {
		s.safeCall(func() { cb(ev) })
	}
}

func (s *Supervisor) emitError(ev ErrorEvent) {
	for _, cb := range s.errorCbs {
		s.safeCall(func() { cb(ev) })
	}
}

func (s *Supervisor) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("driver callback panicked", "sensor_id", s.sensorID, "panic", r)
		}
	}()
	f()
}
