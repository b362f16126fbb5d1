package transceiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/command"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transport"
)

// MinVersion is the oldest gateway firmware that speaks the MAX! protocol
// this package relies on.
const MinVersion = 153

// DefaultIdleWait is the pause between polls when the port had no line.
const DefaultIdleWait = 20 * time.Millisecond

// Config holds the transceiver configuration
type Config struct {
	Port           string // serial port name, used in errors and logs
	Address        string // RF address of the gateway
	VirtualAddress string // RF address of the virtual wall thermostat (optional)
	Scheduler      command.Scheduler
	IdleWait       time.Duration
}

// Dispatcher receives decoded messages that no command consumed. Dispatch
// runs on the Run goroutine and may call the transceiver's send methods.
type Dispatcher interface {
	Dispatch(msg moritz.Incoming)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(msg moritz.Incoming)

// Dispatch calls f(msg).
func (f DispatcherFunc) Dispatch(msg moritz.Incoming) { f(msg) }

// Status is the state of the gateway link.
type Status struct {
	Online  bool
	Version int
}

// StatusListener is implemented by dispatchers that follow the link state.
type StatusListener interface {
	GatewayStatus(s Status)
}

// Peer is one side of a link between two devices.
type Peer struct {
	Address string
	Type    moritz.DeviceType
}

// Transceiver owns the connection to one CUL gateway.
//
// Connect installs the port and starts the version handshake. Run reads
// lines until the context ends or the link fails. Outgoing messages are
// queued as send commands, with message ids from the gateway's own counter.
type Transceiver struct {
	cfg Config
	ids moritz.IDCounter

	mu          sync.Mutex
	dispatchers []Dispatcher
	port        io.ReadWriteCloser
	reader      *transport.LineReader
	writer      *lineWriter
	queue       *command.Queue
	fatal       chan error

	status  chan Status
	online  atomic.Bool
	version atomic.Int32
}

// New creates a transceiver. The addresses are validated and normalized to
// upper case.
func New(cfg Config) (*Transceiver, error) {
	if !IsDeviceAddress(cfg.Address) {
		return nil, fmt.Errorf("%w: gateway address %q", ErrInvalidAddress, cfg.Address)
	}
	if cfg.VirtualAddress != "" && !IsDeviceAddress(cfg.VirtualAddress) {
		return nil, fmt.Errorf("%w: virtual thermostat address %q", ErrInvalidAddress, cfg.VirtualAddress)
	}
	cfg.Address = strings.ToUpper(cfg.Address)
	cfg.VirtualAddress = strings.ToUpper(cfg.VirtualAddress)
	if cfg.Scheduler == nil {
		cfg.Scheduler = command.SystemScheduler{}
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = DefaultIdleWait
	}

	return &Transceiver{
		cfg:    cfg,
		status: make(chan Status, 8),
	}, nil
}

// AddDispatcher registers d for decoded messages.
func (t *Transceiver) AddDispatcher(d Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatchers = append(t.dispatchers, d)
}

// Address returns the gateway's RF address.
func (t *Transceiver) Address() string {
	return t.cfg.Address
}

// Online reports whether the handshake succeeded on the current port.
func (t *Transceiver) Online() bool {
	return t.online.Load()
}

// Version returns the firmware version of the last handshake, or 0.
func (t *Transceiver) Version() int {
	return int(t.version.Load())
}

// Connect starts using port and queues the version handshake.
func (t *Transceiver) Connect(port io.ReadWriteCloser) error {
	t.mu.Lock()
	if t.port != nil {
		t.mu.Unlock()
		return errors.New("transceiver already connected")
	}

	logging.Info("Connecting to gateway", zap.String("port", t.cfg.Port))

	fatal := make(chan error, 1)
	t.port = port
	t.fatal = fatal
	t.reader = transport.NewLineReader(port)
	t.writer = newLineWriter(port, func(err error) {
		logging.Error("Write to gateway failed", zap.String("port", t.cfg.Port), zap.Error(err))
		report(fatal, &LinkError{Kind: KindWrite, Port: t.cfg.Port, Err: err})
	})
	t.queue = command.NewQueue(t.writer, t.cfg.Scheduler)
	queue := t.queue
	handler := &handshake{t: t, w: t.writer, fatal: fatal}
	t.mu.Unlock()

	queue.Enqueue(command.NewVersionCommand(handler))
	return nil
}

// Run reads and dispatches lines until ctx is done or the link fails. Link
// failures are returned as *LinkError.
func (t *Transceiver) Run(ctx context.Context) error {
	t.mu.Lock()
	reader, queue, fatal := t.reader, t.queue, t.fatal
	t.mu.Unlock()
	if reader == nil {
		return ErrNotConnected
	}

	defer func() {
		if t.online.Swap(false) {
			t.notifyStatus(Status{Online: false, Version: t.Version()})
		}
	}()

	idle := time.NewTimer(t.cfg.IdleWait)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-fatal:
			return err
		case s := <-t.status:
			t.notifyStatus(s)
			continue
		default:
		}

		line, ok, err := reader.ReadLine()
		if err != nil {
			logging.Error("Read from gateway failed", zap.String("port", t.cfg.Port), zap.Error(err))
			return &LinkError{Kind: KindStream, Port: t.cfg.Port, Err: err}
		}
		if ok {
			t.receive(queue, line)
			continue
		}

		idle.Reset(t.cfg.IdleWait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-fatal:
			return err
		case s := <-t.status:
			t.notifyStatus(s)
		case <-idle.C:
		}
	}
}

// Close drops every queued command and closes the port.
func (t *Transceiver) Close() error {
	t.mu.Lock()
	port, queue, writer := t.port, t.queue, t.writer
	t.port, t.queue, t.writer, t.reader = nil, nil, nil, nil
	t.mu.Unlock()

	t.online.Store(false)
	if queue != nil {
		queue.Clear()
	}
	if writer != nil {
		writer.Close()
	}
	if port == nil {
		return nil
	}
	logging.Info("Disconnecting from gateway", zap.String("port", t.cfg.Port))
	return port.Close()
}

// QueueInfo describes the command queue for diagnostics.
func (t *Transceiver) QueueInfo() string {
	t.mu.Lock()
	queue := t.queue
	t.mu.Unlock()
	if queue == nil {
		return "not connected"
	}
	return queue.String()
}

// Send queues msg. The channel receives the outcome of the send command:
// nil once acknowledged, command.ErrSendExhausted or command.ErrCancelled.
func (t *Transceiver) Send(msg moritz.Outgoing) (<-chan error, error) {
	t.mu.Lock()
	queue := t.queue
	t.mu.Unlock()
	if queue == nil {
		return nil, ErrNotConnected
	}

	result := make(chan error, 1)
	queue.Enqueue(command.NewSendCommand(msg, func(err error) {
		result <- err
	}))
	return result, nil
}

// SendTemperatureAndMode sets mode and desired temperature of a thermostat.
func (t *Transceiver) SendTemperatureAndMode(addr string, mode moritz.ThermostatMode, temp float64) (<-chan error, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	logging.Debug("Setting temperature",
		zap.String("address", addr),
		zap.Stringer("mode", mode),
		zap.Float64("temperature", temp),
	)
	return t.Send(moritz.NewSetTemperature(t.ids.Next(), t.cfg.Address, addr, mode, temp))
}

// SendTimeInformation sends the current time to a device.
func (t *Transceiver) SendTimeInformation(addr string) (<-chan error, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	logging.Debug("Sending time information", zap.String("address", addr))
	return t.Send(moritz.NewTimeInformation(t.ids.Next(), t.cfg.Address, addr, time.Time{}))
}

// SendPairPong answers a pair ping.
func (t *Transceiver) SendPairPong(addr string) (<-chan error, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	logging.Debug("Sending pair pong", zap.String("address", addr))
	return t.Send(moritz.NewPairPong(t.ids.Next(), t.cfg.Address, addr))
}

// SendWallThermostatControl sends desired and measured temperature to a
// thermostat as the virtual wall thermostat.
func (t *Transceiver) SendWallThermostatControl(addr string, desired, measured float64) (<-chan error, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	if t.cfg.VirtualAddress == "" {
		return nil, ErrNoVirtualAddress
	}
	logging.Debug("Sending wall thermostat control",
		zap.String("address", addr),
		zap.Float64("desired", desired),
		zap.Float64("measured", measured),
	)
	return t.Send(moritz.NewWallThermostatControl(t.ids.Next(), t.cfg.VirtualAddress, addr, desired, measured))
}

// SendLinkage links (or unlinks) two devices. Only heating thermostats
// keep link partners, so a message goes to each peer that is one.
func (t *Transceiver) SendLinkage(link bool, a, b Peer) ([]<-chan error, error) {
	if err := checkAddress(a.Address); err != nil {
		return nil, err
	}
	if err := checkAddress(b.Address); err != nil {
		return nil, err
	}

	var results []<-chan error
	for _, pair := range [][2]Peer{{a, b}, {b, a}} {
		target, partner := pair[0], pair[1]
		if !target.Type.IsHeatingThermostat() {
			continue
		}
		msg := moritz.NewLinkPartner(t.ids.Next(), link, t.cfg.Address, target.Address, partner.Address, partner.Type)
		result, err := t.Send(msg)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (t *Transceiver) receive(queue *command.Queue, line string) {
	logging.LogLine(logging.DirectionIn, line)

	if queue.Receive(line) {
		return
	}

	msg, err := moritz.Decode(line)
	if err != nil {
		logging.Debug("Unhandled line",
			zap.String("line", line),
			zap.Error(err),
			zap.Stringer("queue", queue),
		)
		return
	}
	logging.LogMessage(logging.DirectionIn, msg)

	t.mu.Lock()
	dispatchers := append([]Dispatcher(nil), t.dispatchers...)
	t.mu.Unlock()
	for _, d := range dispatchers {
		d.Dispatch(msg)
	}
}

func (t *Transceiver) notifyStatus(s Status) {
	t.mu.Lock()
	dispatchers := append([]Dispatcher(nil), t.dispatchers...)
	t.mu.Unlock()
	for _, d := range dispatchers {
		if l, ok := d.(StatusListener); ok {
			l.GatewayStatus(s)
		}
	}
}

// report hands a fatal error to Run. Only the first one is kept.
func report(fatal chan<- error, err error) {
	select {
	case fatal <- err:
	default:
	}
}

// handshake receives the version handshake outcome under the queue lock. It
// holds the connection's writer and fatal channel so it never needs t.mu.
type handshake struct {
	t     *Transceiver
	w     *lineWriter
	fatal chan<- error
}

func (h *handshake) Version(version int) {
	t := h.t
	t.version.Store(int32(version))
	if version < MinVersion {
		logging.Error("Unsupported gateway firmware",
			zap.String("port", t.cfg.Port),
			zap.Int("version", version),
		)
		report(h.fatal, &LinkError{
			Kind: KindFirmware,
			Port: t.cfg.Port,
			Err:  fmt.Errorf("%w: %d", ErrUnsupportedFirmware, version),
		})
		return
	}

	logging.Info("Gateway online", zap.String("port", t.cfg.Port), zap.Int("version", version))

	h.w.Send("X21") // report RSSI
	h.w.Send("Zr")  // MAX! receive mode
	h.w.Send("Za" + t.cfg.Address)
	if t.cfg.VirtualAddress != "" {
		h.w.Send("Zw" + t.cfg.VirtualAddress)
	}

	t.online.Store(true)
	select {
	case t.status <- Status{Online: true, Version: version}:
	default:
	}
}

func (h *handshake) HandshakeFailed(err error) {
	logging.Error("Gateway handshake failed", zap.String("port", h.t.cfg.Port), zap.Error(err))
	report(h.fatal, &LinkError{Kind: KindHandshake, Port: h.t.cfg.Port, Err: err})
}
