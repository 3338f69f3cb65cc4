package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carebridge/realtime-service/internal/auth"
	"github.com/carebridge/realtime-service/internal/chat"
	"github.com/carebridge/realtime-service/internal/models"
	"github.com/carebridge/realtime-service/internal/repository"
)

type stubGateway struct {
	sendErr    error
	statusErr  error
	checkErr   error
	online     bool
	onlineErr  error
	history    []*models.Message
	historyErr error
}

func (s *stubGateway) Send(ctx context.Context, m *models.Message) (*models.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	stored := *m
	stored.ID = "m1"
	stored.Status = models.StatusSent
	return &stored, nil
}

func (s *stubGateway) MarkDelivered(ctx context.Context, ids []string) error { return s.statusErr }
func (s *stubGateway) MarkRead(ctx context.Context, ids []string) error      { return s.statusErr }

func (s *stubGateway) History(ctx context.Context, doctorID, patientID string, limit int64, before time.Time) ([]*models.Message, error) {
	return s.history, s.historyErr
}

func (s *stubGateway) PresenceStatus(ctx context.Context, userID string) (bool, error) {
	return s.online, s.checkErr
}

func (s *stubGateway) OnlineUsers() ([]string, error) {
	if s.onlineErr != nil {
		return nil, s.onlineErr
	}
	return []string{"u1"}, nil
}

const testSecret = "test-secret"

func testToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "u1",
		Role:   models.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))

	req.NoError(err)
	req.Equal(200, resp.StatusCode)
}

func TestSendMessage_RequiresAuth(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("POST", "/api/v1/messages", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(401, resp.StatusCode)
}

func TestSendMessage_EligibilityDeniedMapsTo403(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{sendErr: chat.ErrEligibilityDenied}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	body := `{"doctorId":"d1","patientId":"p1","senderRole":"PATIENT","text":"hi"}`
	r := httptest.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(403, resp.StatusCode)
}

func TestSendMessage_Created(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	body := `{"doctorId":"d1","patientId":"p1","senderRole":"PATIENT","text":"hi"}`
	r := httptest.NewRequest("POST", "/api/v1/messages", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(201, resp.StatusCode)
	var got models.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&got))
	req.Equal("m1", got.ID)
	req.Equal(models.StatusSent, got.Status)
}

func TestMarkDelivered_EmptyIDsMapTo400(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{statusErr: chat.ErrNoMessageIDs}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("POST", "/api/v1/messages/delivered", strings.NewReader(`{"messageIds":[]}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(400, resp.StatusCode)
}

func TestMarkRead_AllInvalidIDsMapTo400(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{statusErr: repository.ErrNoValidIDs}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("POST", "/api/v1/messages/read", strings.NewReader(`{"messageIds":["junk"]}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(400, resp.StatusCode)
}

func TestCheckStatus_NotInitializedMapsTo503(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{checkErr: chat.ErrNotInitialized}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("GET", "/api/v1/presence/u1", nil)
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(503, resp.StatusCode)
}

func TestCheckStatus_OfflineUser(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{online: false}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("GET", "/api/v1/presence/u1", nil)
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(200, resp.StatusCode)
	var got map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&got))
	req.Equal("u1", got["userId"])
	req.Equal(false, got["isOnline"])
}

func TestThreadHistory_InvalidBefore(t *testing.T) {
	req := require.New(t)
	app := New(&stubGateway{}, auth.NewValidator(testSecret), zap.NewNop().Sugar(), func(*fiberws.Conn) {})

	r := httptest.NewRequest("GET", "/api/v1/threads/d1/p1/messages?before=yesterday", nil)
	r.Header.Set("Authorization", "Bearer "+testToken(t))
	resp, err := app.Test(r)

	req.NoError(err)
	req.Equal(400, resp.StatusCode)
}
