package broker

import (
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientFactory opens a transport from options. Tests swap it for a fake.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

const errBuffer = 16

// Manager owns the one connection shared by every publisher and consumer built
// on it. It is the only component allowed to open the transport; reconnects are
// left to paho's own retry policy.
type Manager struct {
	cfg     Config
	factory ClientFactory
	logger  *slog.Logger

	// hookMu serializes state changes with their hooks. Order: hookMu, then mu.
	hookMu sync.Mutex

	mu           sync.Mutex
	client       mqtt.Client
	state        State
	opens        int
	stateHooks   []func(State)
	errorHooks   []func(error)
	connectHooks []func(mqtt.Client)
	done         chan struct{}

	errs chan error
}

// Option customizes a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.factory = f
		}
	}
}

// WithStateHook registers fn to be called after every state change.
func WithStateHook(fn func(State)) Option {
	return func(m *Manager) { m.stateHooks = append(m.stateHooks, fn) }
}

// WithErrorHook registers fn to be called for every connection error.
func WithErrorHook(fn func(error)) Option {
	return func(m *Manager) { m.errorHooks = append(m.errorHooks, fn) }
}

// WithConnectHook is the construction time form of OnConnect.
func WithConnectHook(fn func(mqtt.Client)) Option {
	return func(m *Manager) { m.connectHooks = append(m.connectHooks, fn) }
}

// NewManager prepares a manager. Nothing is dialed until GetConnection.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg.withDefaults(),
		factory: mqtt.NewClient,
		logger:  slog.Default(),
		state:   StateUninitialized,
		done:    make(chan struct{}),
		errs:    make(chan error, errBuffer),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetConnection returns the shared client, opening it on first use. It does not
// wait for the handshake: writes issued before the link is up are queued by the
// transport and flushed once connected. Returns nil after Close.
func (m *Manager) GetConnection() mqtt.Client {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	if m.client != nil {
		c := m.client
		m.mu.Unlock()
		return c
	}
	m.mu.Unlock()

	m.hookMu.Lock()
	m.mu.Lock()
	if m.state == StateClosed || m.client != nil {
		c := m.client
		closed := m.state == StateClosed
		m.mu.Unlock()
		m.hookMu.Unlock()
		if closed {
			return nil
		}
		return c
	}
	c := m.factory(m.clientOptions())
	m.client = c
	m.opens++
	m.state = StateConnecting
	m.mu.Unlock()

	m.logger.Info("opening broker connection",
		"broker", m.cfg.BrokerURL(), "client_id", m.cfg.ClientID)
	m.runStateHooks(StateConnecting)
	m.hookMu.Unlock()

	go m.watchConnect(c.Connect())
	return c
}

func (m *Manager) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.BrokerURL())
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password)
	opts.SetClientID(m.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(m.cfg.KeepAlive)

	// retry iniziale e riconnessione delegati a paho, intervallo fisso
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(m.cfg.ReconnectInterval)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(m.cfg.ReconnectInterval)
	opts.SetConnectTimeout(m.cfg.ConnectTimeout)

	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onConnectionLost)
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		m.logger.Info("reconnecting to broker", "broker", m.cfg.BrokerURL())
		m.transition(StateReconnecting)
	})
	return opts
}

// watchConnect surfaces an initial handshake that takes longer than
// ConnectTimeout. The attempt keeps running inside the transport.
func (m *Manager) watchConnect(token mqtt.Token) {
	for {
		timer := time.NewTimer(m.cfg.ConnectTimeout)
		select {
		case <-token.Done():
			timer.Stop()
			if err := token.Error(); err != nil {
				m.reportError(&ConnectionError{Op: "connect", Err: err})
				m.transition(StateReconnecting)
			}
			return
		case <-m.done:
			timer.Stop()
			return
		case <-timer.C:
			m.reportError(&ConnectionError{Op: "connect", Err: ErrConnectTimeout})
			m.transition(StateReconnecting)
		}
	}
}

func (m *Manager) onConnect(c mqtt.Client) {
	m.logger.Info("connected to broker", "broker", m.cfg.BrokerURL())
	m.transition(StateConnected)

	m.mu.Lock()
	hooks := append([]func(mqtt.Client){}, m.connectHooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h(c)
	}
}

func (m *Manager) onConnectionLost(_ mqtt.Client, err error) {
	m.reportError(&ConnectionError{Op: "connection lost", Err: err})
	m.transition(StateReconnecting)
}

// OnConnect registers fn to run after every successful (re)connect. If the
// connection is already up fn is not called retroactively.
func (m *Manager) OnConnect(fn func(mqtt.Client)) {
	m.mu.Lock()
	m.connectHooks = append(m.connectHooks, fn)
	m.mu.Unlock()
}

func (m *Manager) transition(next State) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	m.mu.Lock()
	if m.state == StateClosed || m.state == next {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = next
	m.mu.Unlock()

	m.logger.Debug("broker state change", "from", prev.String(), "to", next.String())
	m.runStateHooks(next)
}

// runStateHooks is called with hookMu held, so hooks see changes in order.
// A hook must not call back into GetConnection or Close.
func (m *Manager) runStateHooks(s State) {
	for _, h := range m.stateHooks {
		h(s)
	}
}

func (m *Manager) reportError(err error) {
	m.logger.Warn("broker connection error", "error", err)
	for _, h := range m.errorHooks {
		h(err)
	}
	for {
		select {
		case m.errs <- err:
			return
		default:
		}
		// buffer pieno: scarta il più vecchio
		select {
		case <-m.errs:
		default:
		}
	}
}

// Errors is the side channel for connection errors. Reading it is optional.
func (m *Manager) Errors() <-chan error { return m.errs }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Opens returns how many transports were opened. It never exceeds one.
func (m *Manager) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Close disconnects and moves to the terminal Closed state.
func (m *Manager) Close() {
	m.hookMu.Lock()
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		m.hookMu.Unlock()
		return
	}
	m.state = StateClosed
	c := m.client
	close(m.done)
	m.mu.Unlock()
	m.runStateHooks(StateClosed)
	m.hookMu.Unlock()

	if c != nil {
		c.Disconnect(250)
		m.logger.Info("broker connection closed")
	}
}
