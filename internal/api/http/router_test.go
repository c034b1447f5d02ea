package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/pediamatch/intake-service/internal/api/http/handlers"
	"github.com/pediamatch/intake-service/internal/auth"
	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/config"
	"github.com/pediamatch/intake-service/internal/events"
	"github.com/pediamatch/intake-service/internal/gateway/gatewaytest"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/observability"
	"github.com/pediamatch/intake-service/internal/persistence"
	"github.com/pediamatch/intake-service/internal/repository"
	"github.com/pediamatch/intake-service/internal/repository/repositorytest"
	"github.com/pediamatch/intake-service/internal/service"
)

const aliceJSON = `{"firstName":"Alice","lastName":"Martin","email":"claire@example.com","phoneNumber":"5145550123","postalCode":"H3X 2T8","selectedClinic":4}`

type testServer struct {
	app     *fiber.App
	sms     *gatewaytest.RecordingSMS
	metrics *observability.Metrics
	repo    repository.PatientRepository
	logs    *observer.ObservedLogs
}

type serverOption func(*serverOptions)

type serverOptions struct {
	wrapRepo func(repository.PatientRepository) repository.PatientRepository
}

func withRepo(wrap func(repository.PatientRepository) repository.PatientRepository) serverOption {
	return func(o *serverOptions) { o.wrapRepo = wrap }
}

func newTestServer(t *testing.T, rate config.RateLimitConfig, opts ...serverOption) *testServer {
	t.Helper()
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	metrics := observability.NewMetrics()

	dir, err := clinic.New([]clinic.Info{{ID: 4, Name: "Bloom Clinic", Email: "bloom@example.com", Address: "1 Bloom St"}})
	require.NoError(t, err)

	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:            "test-secret",
		OperatorUsername:     "operator",
		OperatorPasswordHash: hash,
	}, logger)

	sms := &gatewaytest.RecordingSMS{}
	composer := notify.NewComposer("Dr.Donlan")
	dispatcher := events.NewInMemoryDispatcher()
	notify.NewCreationNotifier(dir, composer, sms, "+15550001111", logger, metrics).Register(dispatcher)

	store := repository.NewMemoryPatientRepository()
	repo := store
	if o.wrapRepo != nil {
		repo = o.wrapRepo(store)
	}
	srv := miniredis.RunT(t)
	rdb := &persistence.Redis{Client: redis.NewClient(&redis.Options{Addr: srv.Addr()})}
	t.Cleanup(rdb.Close)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("intake", "test", nil, rdb),
		Patients:       handlers.NewPatientsHandler(service.NewPatientService(repo, dispatcher, logger), logger),
		SMS:            handlers.NewSmsWebhookHandler(service.NewSmsReplyService(repo, dispatcher, composer, logger), logger),
		Clinics:        handlers.NewClinicsHandler(dir),
		Auth:           handlers.NewAuthHandler(authService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		PublicLimiter:  PublicRateLimit(rate),
		SMSLimiter:     SmsWebhookRateLimit(rate),
	})
	return &testServer{app: app, sms: sms, metrics: metrics, repo: store, logs: logs}
}

func (s *testServer) do(t *testing.T, method, target, contentType, body string, header ...string) (int, string, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, string(raw), decoded
}

func TestCreatePatient(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})

	status, _, body := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, aliceJSON)
	require.Equal(t, fiber.StatusCreated, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, false, data["consultationScheduled"])
	assert.Equal(t, "UNSCHEDULED", data["consultationState"])
	assert.Equal(t, true, body["notification"].(map[string]any)["delivered"])
	require.Len(t, s.sms.Calls(), 1)
}

func TestCreatePatient_Form(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})
	form := url.Values{
		"firstName":      {"Bruno"},
		"lastName":       {"Roy"},
		"email":          {"roy@example.com"},
		"phoneNumber":    {"5145550199"},
		"postalCode":     {"H2X 1Y4"},
		"selectedClinic": {"4"},
	}

	status, _, body := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationForm, form.Encode())
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Bruno", body["data"].(map[string]any)["firstName"])
}

func TestCreatePatient_ValidationEnvelope(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})

	status, _, body := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, `{"firstName":"Alice"}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "selectedClinic")
	assert.Empty(t, s.sms.Calls())
}

func TestCreatePatient_NotificationFailureStillCreated(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})
	s.sms.Err = assert.AnError

	status, _, body := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, aliceJSON)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, false, body["notification"].(map[string]any)["delivered"])
	assert.Equal(t, int64(1), s.metrics.Snapshot().Notifications["sms|failed"])
}

func TestSmsWebhook(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})
	status, _, _ := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, aliceJSON)
	require.Equal(t, fiber.StatusCreated, status)

	reply := func(text string) string {
		form := url.Values{"From": {"+15550001111"}, "Body": {text}}
		req := httptest.NewRequest(fiber.MethodPost, "/sms/webhook", strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "application/xml")
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(raw)
	}

	out := reply("Appointment scheduled for, Patient Name: Alice")
	assert.Contains(t, out, "<Response><Message>")
	assert.Contains(t, out, "Updated consultation status for Alice Martin.")
	assert.Len(t, s.sms.Calls(), 2)

	out = reply("Appointment scheduled for, Patient Name: Zed")
	assert.Contains(t, out, "No patient found with name: Zed.")

	out = reply("what?")
	assert.Contains(t, out, "Sorry, we could not understand that message.")
	assert.Len(t, s.sms.Calls(), 2)
}

func TestOperatorRoutes(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})
	status, _, _ := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, aliceJSON)
	require.Equal(t, fiber.StatusCreated, status)

	status, _, body := s.do(t, fiber.MethodGet, "/patients", "", "")
	require.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	status, _, _ = s.do(t, fiber.MethodPost, "/auth/operator/login", fiber.MIMEApplicationJSON, `{"username":"operator","password":"nope"}`)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _, body = s.do(t, fiber.MethodPost, "/auth/operator/login", fiber.MIMEApplicationJSON, `{"username":"operator","password":"s3cret"}`)
	require.Equal(t, fiber.StatusOK, status)
	token := body["data"].(map[string]any)["token"].(string)
	bearer := []string{fiber.HeaderAuthorization, "Bearer " + token}

	status, _, body = s.do(t, fiber.MethodGet, "/patients", "", "", bearer...)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, _, body = s.do(t, fiber.MethodGet, "/patients/1", "", "", bearer...)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Alice", body["data"].(map[string]any)["firstName"])

	reads := s.logs.FilterMessage("patient read").All()
	require.Len(t, reads, 1)
	assert.Equal(t, "operator", reads[0].ContextMap()["operator"])
	assert.Equal(t, int64(1), reads[0].ContextMap()["patient_id"])

	status, _, body = s.do(t, fiber.MethodGet, "/patients/99", "", "", bearer...)
	require.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 100})

	status, _, body := s.do(t, fiber.MethodGet, "/clinics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	clinics := body["data"].([]any)
	require.Len(t, clinics, 1)
	assert.Equal(t, "Bloom Clinic", clinics[0].(map[string]any)["name"])

	status, _, body = s.do(t, fiber.MethodGet, "/health/ready", "", "")
	require.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "memory", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])

	status, _, body = s.do(t, fiber.MethodGet, "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "requests")

	status, _, body = s.do(t, fiber.MethodGet, "/nowhere", "", "")
	require.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func postReply(t *testing.T, app *fiber.App, from, text string) (int, string, string) {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {text}}
	req := httptest.NewRequest(fiber.MethodPost, "/sms/webhook", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get(fiber.HeaderContentType), string(raw)
}

func TestSmsWebhook_StoreFailureAnswersApology(t *testing.T) {
	storeErr := errors.New("connection reset")
	s := newTestServer(t, config.RateLimitConfig{Max: 100}, withRepo(func(r repository.PatientRepository) repository.PatientRepository {
		return &repositorytest.FailingPatients{PatientRepository: r, UpdateErr: storeErr}
	}))
	status, _, _ := s.do(t, fiber.MethodPost, "/patients", fiber.MIMEApplicationJSON, aliceJSON)
	require.Equal(t, fiber.StatusCreated, status)

	status, contentType, out := postReply(t, s.app, "+15550001111", "Appointment scheduled for, Patient Name: Alice")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, contentType, "application/xml")
	assert.Contains(t, out, "<Response><Message>"+handlers.ReplyFailedMessage+"</Message></Response>")

	stored, err := s.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, stored.ConsultationScheduled)
	assert.Len(t, s.sms.Calls(), 1)
}

func TestPublicRateLimit(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 2, WindowSeconds: 60})

	for i := 0; i < 2; i++ {
		status, _, _ := s.do(t, fiber.MethodPost, "/auth/operator/login", fiber.MIMEApplicationJSON, `{"username":"operator","password":"nope"}`)
		require.Equal(t, fiber.StatusUnauthorized, status)
	}
	status, _, body := s.do(t, fiber.MethodPost, "/auth/operator/login", fiber.MIMEApplicationJSON, `{"username":"operator","password":"nope"}`)
	require.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", body["error"].(map[string]any)["code"])

	status, _, _ = postReply(t, s.app, "+15550001111", "hi")
	assert.Equal(t, fiber.StatusOK, status, "webhook has its own limiter")
}

func TestSmsWebhookRateLimit_AnswersTwiMLPerSender(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Max: 2, WindowSeconds: 60})

	for i := 0; i < 2; i++ {
		status, _, out := postReply(t, s.app, "+15550001111", "hi")
		require.Equal(t, fiber.StatusOK, status)
		assert.Contains(t, out, "Sorry, we could not understand that message.")
	}

	status, contentType, out := postReply(t, s.app, "+15550001111", "hi")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, contentType, "application/xml")
	assert.Contains(t, out, handlers.ReplyLimitedMessage)

	status, _, out = postReply(t, s.app, "+15550002222", "hi")
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, out, handlers.ReplyLimitedMessage)
}
