package telegram

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

type stateStub broker.State

func (s stateStub) State() broker.State { return broker.State(s) }

const testToken = "123:abc"

func newTestWebhook(pub AlertPublisher, st broker.State) (*Server, *recordingReplier) {
	b, rep, _ := newTestBot(pub, nil)
	return NewServer(":0", testToken, b, stateStub(st), slog.New(slog.NewTextHandler(io.Discard, nil))), rep
}

func post(srv http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(messages.AlertMessage{}, nil).Once()
	srv, rep := newTestWebhook(pub, broker.StateConnected)

	rec := post(srv, "/webhook/"+testToken,
		`{"update_id":1,"message":{"message_id":5,"from":{"id":987654321,"first_name":"Grace"},"chat":{"id":99},"text":"/fire D 2 -33.8688 151.2093"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	pub.AssertExpectations(t)
	assert.Equal(t, int64(99), rep.last(t).chatID)
}

func TestWebhook_WrongToken(t *testing.T) {
	pub := new(mockPublisher)
	srv, _ := newTestWebhook(pub, broker.StateConnected)

	rec := post(srv, "/webhook/guess", `{"update_id":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestWebhook_InvalidBody(t *testing.T) {
	srv, _ := newTestWebhook(new(mockPublisher), broker.StateConnected)
	rec := post(srv, "/webhook/"+testToken, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	srv, _ := newTestWebhook(new(mockPublisher), broker.StateConnected)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pong!", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestWebhook(new(mockPublisher), broker.StateConnecting)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connecting")
}
