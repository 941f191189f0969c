// Package brokertest provides an in-memory stand-in for the paho MQTT client,
// so connection handling and publish confirmation can be tested without a broker.
package brokertest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is a manually completed mqtt.Token.
type Token struct {
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func NewToken() *Token { return &Token{done: make(chan struct{})} }

// CompletedToken returns a token that is already done with err.
func CompletedToken(err error) *Token {
	t := NewToken()
	t.Complete(err)
	return t
}

// Complete finishes the token. Later calls are ignored.
func (t *Token) Complete(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

func (t *Token) Wait() bool {
	<-t.done
	return true
}

func (t *Token) WaitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

func (t *Token) Done() <-chan struct{} { return t.done }

func (t *Token) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Published is one recorded publish call.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
	Token    *Token
}

// Mode decides how the fake broker answers publishes.
type Mode int

const (
	// AckWhenConnected acknowledges at once while connected and holds the
	// publish until the next connect otherwise (paho's store behaviour).
	AckWhenConnected Mode = iota
	// RejectAll completes every publish with PublishErr.
	RejectAll
	// NeverAck leaves tokens pending.
	NeverAck
)

var ErrBrokerRejected = errors.New("brokertest: publish rejected")

// Client implements mqtt.Client in memory.
type Client struct {
	Options *mqtt.ClientOptions

	mu            sync.Mutex
	connected     bool
	mode          Mode
	publishErr    error
	connectToken  *Token
	published     []Published
	pending       []*Token
	subscriptions map[string]mqtt.MessageHandler
	subscribes    int
	subscribeErrs []error
	disconnects   int

	connects atomic.Int32
}

var _ mqtt.Client = (*Client)(nil)

// NewClient matches broker.ClientFactory.
func NewClient(opts *mqtt.ClientOptions) *Client {
	return &Client{
		Options:       opts,
		connectToken:  NewToken(),
		subscriptions: make(map[string]mqtt.MessageHandler),
		publishErr:    ErrBrokerRejected,
	}
}

// SetMode changes the publish behaviour; err is used by RejectAll.
func (c *Client) SetMode(m Mode, err error) {
	c.mu.Lock()
	c.mode = m
	if err != nil {
		c.publishErr = err
	}
	c.mu.Unlock()
}

// FailSubscribes makes the next len(errs) subscribe calls fail in order.
func (c *Client) FailSubscribes(errs ...error) {
	c.mu.Lock()
	c.subscribeErrs = append(c.subscribeErrs, errs...)
	c.mu.Unlock()
}

// SimulateConnect completes the handshake, flushes held publishes and runs
// the OnConnect handler.
func (c *Client) SimulateConnect() {
	c.mu.Lock()
	c.connected = true
	pending := c.pending
	c.pending = nil
	token := c.connectToken
	c.mu.Unlock()

	token.Complete(nil)
	for _, t := range pending {
		t.Complete(nil)
	}
	if c.Options != nil && c.Options.OnConnect != nil {
		c.Options.OnConnect(c)
	}
}

// SimulateConnectFailure completes the connect token with err.
func (c *Client) SimulateConnectFailure(err error) {
	c.connectToken.Complete(err)
}

// SimulateConnectionLost drops the link and runs the loss and reconnecting handlers.
func (c *Client) SimulateConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if c.Options != nil && c.Options.OnConnectionLost != nil {
		c.Options.OnConnectionLost(c, err)
	}
	if c.Options != nil && c.Options.OnReconnecting != nil {
		c.Options.OnReconnecting(c, c.Options)
	}
}

// Deliver pushes a message to the handler subscribed on topic.
func (c *Client) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h, ok := c.subscriptions[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(c, &Message{TopicName: topic, Body: payload, QoSLevel: 1})
	return true
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[topic]
	return ok
}

func (c *Client) SubscribeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

func (c *Client) ConnectCalls() int { return int(c.connects.Load()) }

func (c *Client) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// mqtt.Client

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Connect() mqtt.Token {
	c.connects.Add(1)
	return c.connectToken
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	}

	t := NewToken()
	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: body, Token: t})
	switch c.mode {
	case RejectAll:
		t.Complete(c.publishErr)
	case NeverAck:
	default:
		if c.connected {
			t.Complete(nil)
		} else {
			c.pending = append(c.pending, t)
		}
	}
	c.mu.Unlock()
	return t
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	if len(c.subscribeErrs) > 0 {
		err := c.subscribeErrs[0]
		c.subscribeErrs = c.subscribeErrs[1:]
		return CompletedToken(err)
	}
	c.subscriptions[topic] = callback
	return CompletedToken(nil)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return CompletedToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscriptions, t)
	}
	return CompletedToken(nil)
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.subscriptions[topic] = callback
	c.mu.Unlock()
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

// Message implements mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoSLevel  byte
	Dup       bool
	ID        uint16
}

var _ mqtt.Message = (*Message)(nil)

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoSLevel }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return m.ID }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

// Factory records every client it creates, for singleton assertions.
type Factory struct {
	mu      sync.Mutex
	clients []*Client
	delay   time.Duration
}

// NewFactory returns a factory; delay slows each open to widen race windows.
func NewFactory(delay time.Duration) *Factory { return &Factory{delay: delay} }

func (f *Factory) New(opts *mqtt.ClientOptions) mqtt.Client {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	c := NewClient(opts)
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c
}

func (f *Factory) Clients() []*Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Client(nil), f.clients...)
}

// Last returns the most recently created client, or nil.
func (f *Factory) Last() *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}
