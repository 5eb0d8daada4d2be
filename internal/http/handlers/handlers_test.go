package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/middleware"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// withUser authenticates every request as a contractor.
func withUser(r *gin.Engine, userID uuid.UUID) {
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextRoleKey, "contractor")
		c.Next()
	})
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAgreementHandler_Unauthorized(t *testing.T) {
	r := newRouter()
	handler := &AgreementHandler{}
	r.GET("/agreements/:id", handler.Get)
	r.POST("/agreements/:id/sign", handler.Sign)

	id := uuid.NewString()
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/agreements/"+id, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/agreements/"+id+"/sign", `{"typed_name":"Ann"}`).Code)
}

func TestAgreementHandler_InvalidID(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &AgreementHandler{}
	r.GET("/agreements/:id", handler.Get)

	w := do(r, http.MethodGet, "/agreements/invalid-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Must be a valid UUID")
}

func TestAgreementHandler_Sign_RequiresTypedName(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &AgreementHandler{}
	r.POST("/agreements/:id/sign", handler.Sign)

	w := do(r, http.MethodPost, "/agreements/"+uuid.NewString()+"/sign", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMagicLinkHandler_InvalidToken(t *testing.T) {
	r := newRouter()
	handler := &MagicLinkHandler{}
	r.GET("/magic/agreements/:token", handler.Get)
	r.POST("/magic/agreements/:token/invoices/:id/approve", handler.ApproveInvoice)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/magic/agreements/not-a-token", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/magic/agreements/"+uuid.NewString()+"/invoices/x/approve", "").Code)
}

func TestInvoiceHandler_Unauthorized(t *testing.T) {
	r := newRouter()
	handler := &InvoiceHandler{}
	r.POST("/invoices/:id/approve", handler.Approve)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/invoices/"+uuid.NewString()+"/approve", "").Code)
}

func TestInvoiceHandler_List_BadFilter(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &InvoiceHandler{}
	r.GET("/invoices", handler.List)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/invoices?agreement_id=abc", "").Code)
}

func TestDisputeHandler_InvalidID(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &DisputeHandler{}
	r.GET("/disputes/:id", handler.GetDispute)
	r.POST("/disputes/:id/pay-fee", handler.PayFee)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/disputes/invalid-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/disputes/invalid-uuid/pay-fee", "").Code)
}

func TestMilestoneHandler_Calendar_BadDate(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &MilestoneHandler{now: time.Now}
	r.GET("/calendar", handler.Calendar)

	w := do(r, http.MethodGet, "/calendar?from=May+1st", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "from")
}

func TestNotificationHandler_Unauthorized(t *testing.T) {
	r := newRouter()
	handler := &NotificationHandler{}
	r.GET("/notifications", handler.ListNotifications)
	r.POST("/notifications/:id/read", handler.MarkAsRead)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/notifications/"+uuid.NewString()+"/read", "").Code)
}

func TestConversationHandler_SendMessage_InvalidID(t *testing.T) {
	r := newRouter()
	withUser(r, uuid.New())
	handler := &ConversationHandler{}
	r.POST("/conversations/:conversationId/messages", handler.SendMessage)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/conversations/invalid-uuid/messages", `{"text":"hi"}`).Code)
}

type fakeParser struct{}

func (fakeParser) ParseAccess(token string) (uuid.UUID, string, error) {
	return uuid.Nil, "", errors.New("bad token")
}

func TestWSHandler_RequiresToken(t *testing.T) {
	r := newRouter()
	handler := NewWSHandler(nil, fakeParser{}, nil, nil)
	r.GET("/ws", handler.Notifications)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/ws", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/ws?token=forged", "").Code)
}

type fakeProcessor struct {
	status    string
	err       error
	payload   []byte
	signature string
}

func (f *fakeProcessor) Handle(ctx context.Context, payload []byte, signature string) (string, error) {
	f.payload, f.signature = payload, signature
	return f.status, f.err
}

func TestWebhookHandler_AlwaysAnswersOK(t *testing.T) {
	cases := []struct {
		name   string
		proc   *fakeProcessor
		status string
	}{
		{"processed", &fakeProcessor{status: models.WebhookStatusProcessed}, models.WebhookStatusProcessed},
		{"bad signature", &fakeProcessor{err: errors.New("signature mismatch")}, "rejected"},
		{"handler failed", &fakeProcessor{status: models.WebhookStatusFailed, err: errors.New("db down")}, models.WebhookStatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter()
			r.POST("/stripe/webhook/", NewWebhookHandler(tc.proc).Stripe)

			req := httptest.NewRequest(http.MethodPost, "/stripe/webhook/", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body["status"])
			assert.Equal(t, `{"id":"evt_1"}`, string(tc.proc.payload))
			assert.Equal(t, "t=1,v1=abc", tc.proc.signature)
		})
	}
}

type fakeAdmin struct {
	limit    int
	events   []models.WebhookEvent
	released int
	err      error
}

func (f *fakeAdmin) ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	f.limit = limit
	return f.events, f.err
}

func (f *fakeAdmin) ReleaseDue(ctx context.Context) (int, error) {
	return f.released, f.err
}

func TestAdminHandler_FailedWebhooks(t *testing.T) {
	fake := &fakeAdmin{events: []models.WebhookEvent{{StripeEventID: "evt_9", Status: models.WebhookStatusFailed}}}
	r := newRouter()
	handler := NewAdminHandler(fake, fake)
	r.GET("/admin/webhooks/failed", handler.FailedWebhooks)

	w := do(r, http.MethodGet, "/admin/webhooks/failed?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, fake.limit)
	assert.Contains(t, w.Body.String(), "evt_9")

	do(r, http.MethodGet, "/admin/webhooks/failed?limit=9000", "")
	assert.Equal(t, 50, fake.limit)
}

func TestAdminHandler_RunReleaseSweep(t *testing.T) {
	fake := &fakeAdmin{released: 3}
	r := newRouter()
	handler := NewAdminHandler(fake, fake)
	r.POST("/admin/invoices/release-due", handler.RunReleaseSweep)

	w := do(r, http.MethodPost, "/admin/invoices/release-due", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"released":3}`, w.Body.String())

	fake.err = apperror.Upstream(errors.New("stripe unavailable"))
	w = do(r, http.MethodPost, "/admin/invoices/release-due", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	fixed := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

	r := newRouter()
	healthy := &HealthHandler{db: fakePinger{}, now: func() time.Time { return fixed }}
	r.GET("/health", healthy.Health)
	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, fixed.Equal(body.Timestamp))

	r = newRouter()
	down := NewHealthHandler(fakePinger{err: errors.New("connection refused")})
	r.GET("/health", down.Health)
	w = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy: connection refused")
}
