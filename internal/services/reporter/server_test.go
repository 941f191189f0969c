package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/firelinx/internal/alert"
	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/internal/remote"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, r entities.FireReport) (messages.AlertMessage, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(messages.AlertMessage), args.Error(1)
}

type mockRemote struct{ mock.Mock }

func (m *mockRemote) TriggerSOS(ctx context.Context) (*remote.Response, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*remote.Response)
	return resp, args.Error(1)
}

func (m *mockRemote) Recognize(ctx context.Context) (remote.Identity, *remote.Response, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(1).(*remote.Response)
	return args.Get(0).(remote.Identity), resp, args.Error(2)
}

type stateStub broker.State

func (s stateStub) State() broker.State { return broker.State(s) }

var fixedNow = time.Date(2025, time.April, 3, 9, 5, 7, 0, time.Local)

func newTestServer(pub AlertPublisher, rem RemoteServices, sos bool) *Server {
	return NewServer(":0", Deps{
		Publisher:   pub,
		Remote:      rem,
		Broker:      stateStub(broker.StateConnected),
		Clock:       clockwork.NewFakeClockAt(fixedNow),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		MapboxToken: "pk.test-token",
		SOSEnabled:  sos,
	})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDefaults(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	rec := do(t, srv, http.MethodGet, "/api/reports/defaults", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "A", body["fireType"])
	assert.Equal(t, "1", body["fireIntensity"])
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "W/D", body["stnID"])
	assert.Equal(t, "03/04/2025", body["date"])
	assert.Equal(t, "09:05:07", body["time"])
}

func TestMapConfig(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	rec := do(t, srv, http.MethodGet, "/api/map-config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pk.test-token", decodeBody(t, rec)["mapboxToken"])
}

func TestReport_PublishesLocatedReport(t *testing.T) {
	pub := new(mockPublisher)
	want := entities.FireReport{
		FireType:      entities.FireTypeC,
		FireIntensity: entities.Intensity2,
		Verified:      false,
		User:          "Ada",
		UserID:        "42",
		StnID:         "W/D",
		Latitude:      "22°34.6020'N",
		Longitude:     "88°12.4020'W",
		Date:          "03/04/2025",
		Time:          "09:05:07",
	}
	pub.On("Publish", mock.Anything, want).Return(alert.Encode(want), nil).Once()

	srv := newTestServer(pub, nil, false)
	rec := do(t, srv, http.MethodPost, "/api/reports",
		`{"fireType":"c","fireIntensity":"2","verified":false,"user":" Ada ","userID":"42","location":{"lat":22.5767,"lng":-88.2067}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pub.AssertExpectations(t)

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, alert.Encode(want), resp.Alert)
	assert.Nil(t, resp.SOS)
	assert.Contains(t, rec.Body.String(), "°", "degree sign is not escaped")
}

func TestReport_MissingLocation(t *testing.T) {
	pub := new(mockPublisher)
	srv := newTestServer(pub, nil, false)

	for _, body := range []string{`{"fireType":"A"}`, `{"location":{"lat":1}}`} {
		rec := do(t, srv, http.MethodPost, "/api/reports", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "location required", decodeBody(t, rec)["error"])
	}
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReport_BadInput(t *testing.T) {
	pub := new(mockPublisher)
	srv := newTestServer(pub, nil, false)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad type", `{"fireType":"Z","location":{"lat":1,"lng":2}}`},
		{"bad intensity", `{"fireIntensity":"7","location":{"lat":1,"lng":2}}`},
		{"lat out of range", `{"location":{"lat":91,"lng":2}}`},
		{"lng out of range", `{"location":{"lat":1,"lng":-181}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReport_PublishFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).
		Return(messages.AlertMessage{}, &alert.PublishFailed{Cause: broker.ErrAckTimeout})
	rem := new(mockRemote)

	srv := newTestServer(pub, rem, true)
	rec := do(t, srv, http.MethodPost, "/api/reports", `{"location":{"lat":1,"lng":2}}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not acknowledged")
	rem.AssertNotCalled(t, "TriggerSOS", mock.Anything)
}

func TestReport_TriggersSOSAfterPublish(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(messages.AlertMessage{Command: "fire_alert"}, nil)
	rem := new(mockRemote)
	rem.On("TriggerSOS", mock.Anything).Return(&remote.Response{Status: "success", Message: "SOS sent"}, nil).Once()

	srv := newTestServer(pub, rem, true)
	rec := do(t, srv, http.MethodPost, "/api/reports", `{"location":{"lat":1,"lng":2}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.SOS)
	assert.Equal(t, "sent", resp.SOS.Status)
	rem.AssertExpectations(t)
}

func TestReport_SOSFailureDoesNotFailReport(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(messages.AlertMessage{Command: "fire_alert"}, nil)
	rem := new(mockRemote)
	rem.On("TriggerSOS", mock.Anything).Return(nil, errors.New("connection refused"))

	srv := newTestServer(pub, rem, true)
	rec := do(t, srv, http.MethodPost, "/api/reports", `{"location":{"lat":1,"lng":2}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.SOS)
	assert.Equal(t, "failed", resp.SOS.Status)
}

func TestSOS(t *testing.T) {
	rem := new(mockRemote)
	rem.On("TriggerSOS", mock.Anything).Return(&remote.Response{Status: "success", Message: "ok"}, nil).Once()
	rem.On("TriggerSOS", mock.Anything).Return(nil, pkgerrors.Wrap(remote.ErrBreakerOpen, "sos")).Once()
	rem.On("TriggerSOS", mock.Anything).Return(nil, &remote.RemoteError{Endpoint: "sos", StatusCode: 500}).Once()

	srv := newTestServer(new(mockPublisher), rem, false)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/sos", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/sos", "").Code)
	assert.Equal(t, http.StatusBadGateway, do(t, srv, http.MethodPost, "/api/sos", "").Code)
}

func TestRecognize(t *testing.T) {
	rem := new(mockRemote)
	rem.On("Recognize", mock.Anything).
		Return(remote.Identity{Name: "Ada", ID: "42"}, &remote.Response{Status: "success", Message: "done"}, nil)

	srv := newTestServer(new(mockPublisher), rem, false)
	rec := do(t, srv, http.MethodPost, "/api/recognize", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Ada", body["user"])
	assert.Equal(t, "42", body["userID"])
}

func TestRemoteNotConfigured(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/sos", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/recognize", "").Code)
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv.deps.Broker = stateStub(broker.StateReconnecting)
	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "reconnecting", decodeBody(t, rec)["broker"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(new(mockPublisher), nil, false)
	rec := do(t, srv, http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeBody(t, rec)["error"])

	rec = do(t, srv, http.MethodPost, "/api/map-config", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
