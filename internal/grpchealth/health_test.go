package grpchealth

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSetBrokerState(t *testing.T) {
	s := New(quietLogger())
	ctx := context.Background()

	st, err := s.Check(ctx, Service)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	s.SetBrokerState(broker.StateConnected)
	st, _ = s.Check(ctx, Service)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	s.SetBrokerState(broker.StateReconnecting)
	st, _ = s.Check(ctx, Service)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)
}

func TestCheck_UnknownService(t *testing.T) {
	s := New(quietLogger())
	_, err := s.Check(context.Background(), "nope")
	assert.Error(t, err)
}

func TestServe_OverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := New(quietLogger())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	s.SetBrokerState(broker.StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
