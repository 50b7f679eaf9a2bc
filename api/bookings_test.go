package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tolkbridge/tolka/api"
	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/config"
	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository/mock"
)

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, *models.Job, []booking.NotificationIntent) {}
func (noopNotifier) Broadcast(context.Context, *models.Job, int64)                       {}

var bookingTestNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func newBookingRouter(t *testing.T) (http.Handler, *mock.Mocks, *config.Config) {
	t.Helper()

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.JWTSecret = "testsecret"

	m := mock.NewMocks()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(m.Repository(), noopNotifier{}, cfg.Booking, booking.FixedClock{T: bookingTestNow}, logger)

	return api.SetupRoutes(cfg, "test", "now", m.Repository(), svc), m, cfg
}

func authedRequest(t *testing.T, secret, method, path string, userID int64, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}))
	return req
}

func seedBookingCustomer(t *testing.T, m *mock.Mocks) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := m.Users.CreateUser(ctx, &models.User{
		Role: models.RoleCustomer, Active: true, Email: "kund@example.com", Name: "Kund",
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := m.Users.UpsertCustomerProfile(ctx, &models.CustomerProfile{UserID: id}); err != nil {
		t.Fatalf("seed customer profile: %v", err)
	}
	return id
}

func TestBookingRoutesRequireAuth(t *testing.T) {
	router, _, _ := newBookingRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", bytes.NewBufferString("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Result().StatusCode)
	}
}

func TestCreateBookingNormalizesLegacyFlags(t *testing.T) {
	router, m, cfg := newBookingRouter(t)
	customerID := seedBookingCustomer(t, m)

	req := authedRequest(t, cfg.JWTSecret, http.MethodPost, "/v1/bookings", customerID, map[string]any{
		"from_language_id":       1,
		"immediate":              "no",
		"due_date":               "09/05/2026",
		"due_time":               "14:00",
		"customer_phone_type":    "yes",
		"customer_physical_type": "no",
		"duration":               60,
		"job_for":                []string{"normal"},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Result().StatusCode, w.Body.String())
	}
	var res booking.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Status != "success" || res.Job == nil {
		t.Fatalf("expected success with job, got %s", w.Body.String())
	}
	if !res.Job.CustomerPhoneType || res.Job.CustomerPhysicalType {
		t.Errorf("yes/no flags not normalized: phone=%v physical=%v",
			res.Job.CustomerPhoneType, res.Job.CustomerPhysicalType)
	}
	if res.Job.Immediate {
		t.Errorf("expected scheduled booking")
	}
}

func TestCreateBookingValidationFieldName(t *testing.T) {
	router, m, cfg := newBookingRouter(t)
	customerID := seedBookingCustomer(t, m)

	// Phone choice absent entirely
	req := authedRequest(t, cfg.JWTSecret, http.MethodPost, "/v1/bookings", customerID, map[string]any{
		"from_language_id": 1,
		"immediate":        "no",
		"due_date":         "09/05/2026",
		"due_time":         "14:00",
		"duration":         60,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var res booking.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Status != "fail" || res.FieldName != "customer_phone_type" {
		t.Fatalf("expected customer_phone_type failure, got %s", w.Body.String())
	}
}

func TestCancelMissingBookingIs404(t *testing.T) {
	router, m, cfg := newBookingRouter(t)
	customerID := seedBookingCustomer(t, m)

	req := authedRequest(t, cfg.JWTSecret, http.MethodPost, "/v1/bookings/999/cancel", customerID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", w.Result().StatusCode)
	}
}

func TestAcceptBookingViaRouter(t *testing.T) {
	router, m, cfg := newBookingRouter(t)
	customerID := seedBookingCustomer(t, m)
	ctx := context.Background()

	trID, err := m.Users.CreateUser(ctx, &models.User{
		Role: models.RoleTranslator, Active: true, Email: "tolk@example.com", Name: "Tolk",
	})
	if err != nil {
		t.Fatalf("seed translator: %v", err)
	}
	if err := m.Users.UpsertTranslatorProfile(ctx, &models.TranslatorProfile{
		UserID:             trID,
		TranslatorType:     models.TranslatorProfessional,
		Gender:             models.GenderFemale,
		CertificationLevel: models.LevelCertified,
		Languages:          []int64{1},
	}); err != nil {
		t.Fatalf("seed translator profile: %v", err)
	}

	jobID, err := m.Jobs.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 1, Due: bookingTestNow.Add(48 * time.Hour),
		Duration: 30, Status: models.StatusPending, Gender: models.GenderFemale,
		Certified: models.CertifiedYes, JobType: models.JobTypePaid,
		WillExpireAt: bookingTestNow.Add(24 * time.Hour), CreatedAt: bookingTestNow,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := authedRequest(t, cfg.JWTSecret, http.MethodPost, "/v1/bookings/accept", trID, map[string]any{"job_id": jobID})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Result().StatusCode, w.Body.String())
	}
	var res booking.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Status != "success" {
		t.Fatalf("expected accept to succeed, got %s", w.Body.String())
	}

	job, err := m.Jobs.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != models.StatusAssigned {
		t.Errorf("expected assigned status, got %s", job.Status)
	}
}

func TestUpdateBookingRejectsUnknownStatus(t *testing.T) {
	router, m, cfg := newBookingRouter(t)
	customerID := seedBookingCustomer(t, m)
	ctx := context.Background()

	jobID, err := m.Jobs.CreateJob(ctx, &models.Job{
		CustomerID: customerID, FromLanguageID: 1, Due: bookingTestNow.Add(48 * time.Hour),
		Duration: 30, Status: models.StatusPending, Gender: models.GenderFemale,
		Certified: models.CertifiedNormal, JobType: models.JobTypePaid,
		WillExpireAt: bookingTestNow.Add(24 * time.Hour), CreatedAt: bookingTestNow,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	req := authedRequest(t, cfg.JWTSecret, http.MethodPut, "/v1/bookings/1", customerID, map[string]any{
		"status": "bogus",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status on job %d, got %d", jobID, w.Result().StatusCode)
	}
}
