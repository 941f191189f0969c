// Package broker wraps the MQTT transport used to ship fire alerts: one shared,
// lazily opened connection per Manager, a confirmed (QoS 1) publisher and a
// consumer that re-subscribes after every reconnect.
package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultReconnectInterval = 5 * time.Second
	DefaultConnectTimeout    = 8 * time.Second
	DefaultKeepAlive         = 30 * time.Second
	DefaultPublishTimeout    = 10 * time.Second

	// QoS livelli MQTT
	AtMostOnce  byte = 0
	AtLeastOnce byte = 1
)

var (
	ErrConnectTimeout = errors.New("broker: connect attempt timed out")
	ErrAckTimeout     = errors.New("broker: publish not acknowledged in time")
	ErrClosed         = errors.New("broker: connection manager closed")
)

// Config describes how to reach the broker. Credentials are always injected,
// never compiled in.
type Config struct {
	// URL is used verbatim when set (tcp://, ssl://, ws://, wss://).
	URL string
	// ClusterID builds a HiveMQ Cloud websocket URL when URL is empty.
	ClusterID string
	Username  string
	Password  string
	ClientID  string

	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	KeepAlive         time.Duration
}

// BrokerURL returns the address handed to the transport.
func (c Config) BrokerURL() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return fmt.Sprintf("wss://%s.s1.eu.hivemq.cloud:8884/mqtt", strings.TrimSpace(c.ClusterID))
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.ClientID == "" {
		c.ClientID = fmt.Sprintf("firelinx-%d", time.Now().UnixNano())
	}
	return c
}

// State is the lifecycle of the shared connection.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ConnectionError is a transport level failure. It is reported on the
// Manager's error channel and never returned to publishers.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("broker %s: %v", e.Op, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError is returned when a single publish is rejected or not acknowledged.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %q failed: %v", e.Topic, e.Err)
}
func (e *PublishError) Unwrap() error { return e.Err }
