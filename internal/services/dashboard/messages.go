package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/model"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

// AlertReceivedMsg carries one decoded alert into the program loop.
type AlertReceivedMsg struct {
	Topic      string
	Alert      model.AlertMessage
	ReceivedAt time.Time
}

// BrokerStateMsg reports a connection state change.
type BrokerStateMsg broker.State

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards listener alerts to a running program. It implements
// listener.Sink.
type Sink struct {
	sender Sender
	clock  clockwork.Clock
}

func NewSink(s Sender, clock clockwork.Clock) *Sink {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sink{sender: s, clock: clock}
}

func (s *Sink) HandleAlert(topic string, msg model.AlertMessage) {
	s.sender.Send(AlertReceivedMsg{Topic: topic, Alert: msg, ReceivedAt: s.clock.Now()})
}

// StateHook returns a broker state hook that feeds the program.
func (s *Sink) StateHook() func(broker.State) {
	return func(st broker.State) { s.sender.Send(BrokerStateMsg(st)) }
}
