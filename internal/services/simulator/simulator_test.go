package simulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/firelinx/internal/alert"
	"github.com/LeonardoBeccarini/firelinx/internal/model"
)

var simNow = time.Date(2025, time.April, 3, 9, 5, 7, 0, time.Local)

var milan = Area{Center: model.Coordinates{Lat: 45.4642, Lng: 9.19}, RadiusKm: 20}

func TestGenerator_ProducesValidReports(t *testing.T) {
	g := NewGenerator(milan, 42, clockwork.NewFakeClockAt(simNow))
	for i := 0; i < 200; i++ {
		r := g.Next()
		require.NoError(t, r.Validate())
		assert.Equal(t, StationID, r.StnID)
		assert.False(t, r.Verified)
		assert.Equal(t, "03/04/2025", r.Date)
		assert.Equal(t, "09:05:07", r.Time)
		assert.Contains(t, r.Latitude, "'N")
		assert.Contains(t, r.Longitude, "'E")
		assert.Len(t, r.UserID, 5)
	}
}

func TestGenerator_SameSeedSameSequence(t *testing.T) {
	clock := clockwork.NewFakeClockAt(simNow)
	a := NewGenerator(milan, 7, clock)
	b := NewGenerator(milan, 7, clock)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestGenerator_PointsStayInArea(t *testing.T) {
	g := NewGenerator(milan, 1, nil)
	for i := 0; i < 500; i++ {
		c := g.point()
		dLat := (c.Lat - milan.Center.Lat) * kmPerDegree
		assert.LessOrEqual(t, dLat, milan.RadiusKm+1e-6)
		assert.GreaterOrEqual(t, dLat, -milan.RadiusKm-1e-6)
	}
}

func TestGenerator_ZeroRadius(t *testing.T) {
	g := NewGenerator(Area{Center: model.Coordinates{Lat: 22.5767, Lng: -88.2067}}, 1, clockwork.NewFakeClockAt(simNow))
	r := g.Next()
	assert.Equal(t, "22°34.6020'N", r.Latitude)
	assert.Equal(t, "88°12.4020'W", r.Longitude)
}

func TestWrapLng(t *testing.T) {
	assert.InDelta(t, -179.0, wrapLng(181), 1e-9)
	assert.InDelta(t, 179.0, wrapLng(-181), 1e-9)
	assert.InDelta(t, 10.0, wrapLng(10), 1e-9)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, r model.FireReport) (model.AlertMessage, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(model.AlertMessage), args.Error(1)
}

func TestSimulator_PublishesUntilLimit(t *testing.T) {
	clock := clockwork.NewFakeClockAt(simNow)
	calls := make(chan struct{}, 3)
	signal := func(mock.Arguments) { calls <- struct{}{} }

	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).
		Return(model.AlertMessage{}, errors.New("boom")).Run(signal).Once()
	pub.On("Publish", mock.Anything, mock.Anything).
		Return(alert.Encode(model.FireReport{FireType: "A", FireIntensity: "1"}), nil).Run(signal)

	s := New(NewGenerator(milan, 3, clock), pub, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan int, 1)
	go func() { done <- s.Start(context.Background(), time.Second, 3) }()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d not published", i+1)
		}
	}

	select {
	case sent := <-done:
		assert.Equal(t, 2, sent)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop at the limit")
	}
	pub.AssertNumberOfCalls(t, "Publish", 3)
}

func TestSimulator_StopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(simNow)
	s := New(NewGenerator(milan, 3, clock), new(mockPublisher), clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.Start(ctx, time.Second, 0))
}
