package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://recruitment.kiuth.test"

// ── Fakes ──────────────────────────────────────────────

type memApps struct {
	mu   sync.Mutex
	rows []model.Application
}

func (m *memApps) CreateWithNotifications(_ context.Context, a *model.Application, _ []model.Notification) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if a.IdempotencyKey != nil && r.IdempotencyKey != nil && *a.IdempotencyKey == *r.IdempotencyKey {
			return nil, repository.ErrDuplicateIdempotencyKey
		}
	}
	row := *a
	row.ID = uuid.New()
	row.CreatedAt = time.Now()
	m.rows = append(m.rows, row)
	return &row, nil
}

func (m *memApps) find(match func(model.Application) bool) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if match(r) {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (m *memApps) FindByIdempotencyKey(_ context.Context, key string) (*model.Application, error) {
	return m.find(func(r model.Application) bool { return r.IdempotencyKey != nil && *r.IdempotencyKey == key })
}

func (m *memApps) FindByReference(_ context.Context, ref string) (*model.Application, error) {
	return m.find(func(r model.Application) bool { return strings.EqualFold(r.ReferenceNumber, strings.TrimSpace(ref)) })
}

func (m *memApps) FindLatestByEmail(_ context.Context, email string) (*model.Application, error) {
	return m.find(func(r model.Application) bool { return model.NormalizeEmail(r.Email) == model.NormalizeEmail(email) })
}

type staticJobs []model.Job

func (s staticJobs) List(context.Context, repository.JobFilter) ([]model.Job, error) {
	return s, nil
}

type recordingMailer struct {
	sent []service.MailMessage
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg service.MailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type cannedSMS struct {
	resp *service.SMSResponse
	got  []service.SMSMessage
}

func (c *cannedSMS) Send(_ context.Context, msg service.SMSMessage) (*service.SMSResponse, error) {
	c.got = append(c.got, msg)
	return c.resp, nil
}

type stubSlips struct{}

func (stubSlips) Render(_ context.Context, a *model.Application) ([]byte, error) {
	return []byte("%PDF-1.3 " + a.ReferenceNumber), nil
}

// ── Fixture ────────────────────────────────────────────

type fixture struct {
	router *gin.Engine
	apps   *memApps
	mail   *recordingMailer
	sms    *cannedSMS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	fx := &fixture{
		apps: &memApps{},
		mail: &recordingMailer{},
		sms: &cannedSMS{resp: &service.SMSResponse{
			StatusCode: http.StatusUnprocessableEntity, ContentType: "application/json",
			Body: []byte(`{"status":"error","message":"insufficient balance"}`),
		}},
	}

	uploads := service.NewUploadService(store, service.UploadConfig{
		MaxSize:              1 << 20,
		AllowedExtensions:    []string{"pdf", "jpg", "jpeg", "png"},
		AllowedMIMETypes:     []string{"application/pdf", "image/jpeg", "image/png"},
		PassportMaxDimension: 200,
		PublicBaseURL:        baseURL,
	})
	jobs := staticJobs{{ID: uuid.New(), Title: "Staff Nurse", Department: "Nursing Services", IsActive: true}}
	submissions := service.NewSubmissionService(fx.apps, jobs, store, service.SubmissionConfig{
		ReferencePrefix: "KIUTH", PublicBaseURL: baseURL, NotifyMaxAttempts: 6,
	})

	relay := NewRelayHandler(uploads, fx.mail, fx.sms)
	apps := NewApplicationHandler(submissions, service.NewStatusService(fx.apps), stubSlips{})

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(MethodNotAllowed)
	r.POST("/relay/upload", relay.Upload)
	r.POST("/relay/email", relay.Email)
	r.POST("/relay/sms", relay.SMS)
	r.OPTIONS("/relay/sms", relay.Options)
	r.POST("/applications", apps.Submit)
	r.POST("/applications/validate/:step", apps.Validate)
	r.GET("/status/:reference", apps.Status)
	r.GET("/status/:reference/slip", apps.Slip)
	r.GET("/uploads/*name", NewUploadsHandler(store).Serve)
	fx.router = r
	return fx
}

func (fx *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func (fx *fixture) postJSON(path string, body any, headers ...string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return fx.do(req)
}

func (fx *fixture) upload(t *testing.T, filename, kind string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if kind != "" {
		require.NoError(t, mw.WriteField("kind", kind))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/relay/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return fx.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

// ── Relay ──────────────────────────────────────────────

func TestUploadRelay(t *testing.T) {
	fx := newFixture(t)

	w := fx.upload(t, "setup.exe", "", []byte("MZ\x90\x00"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = fx.upload(t, "scan.png", "", tinyPNG(t))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	url := body["url"].(string)
	assert.True(t, strings.HasPrefix(url, baseURL+"/uploads/"))
	assert.True(t, strings.HasPrefix(body["path"].(string), "uploads/"))

	served := fx.do(httptest.NewRequest(http.MethodGet, strings.TrimPrefix(url, baseURL), nil))
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/png", served.Header().Get("Content-Type"))

	missing := fx.do(httptest.NewRequest(http.MethodGet, "/uploads/nope.png", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUploadRelayRequiresFile(t *testing.T) {
	fx := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/relay/upload", strings.NewReader(""))
	w := fx.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file received.", decode(t, w)["message"])
}

func TestEmailRelay(t *testing.T) {
	fx := newFixture(t)

	w := fx.postJSON("/relay/email", map[string]any{"to": "a@b.c", "subject": "Hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.postJSON("/relay/email", map[string]any{
		"to": "a@b.c", "subject": "Hi", "message": "<p>x</p>",
		"attachment": map[string]string{"name": "slip.pdf", "data": "not base64!"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.postJSON("/relay/email", map[string]any{
		"to": "a@b.c", "subject": "Hi", "message": "<p>x</p>",
		"attachment": map[string]string{"name": "slip.pdf", "data": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w)["status"])
	require.Len(t, fx.mail.sent, 1)
	assert.Equal(t, "slip.pdf", fx.mail.sent[0].Attachments[0].Name)
	assert.Equal(t, []byte("%PDF-1.4"), fx.mail.sent[0].Attachments[0].Data)

	fx.mail.err = errors.New("connection refused")
	w = fx.postJSON("/relay/email", map[string]any{"to": "a@b.c", "subject": "Hi", "message": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

func TestSMSRelayPassesUpstreamThrough(t *testing.T) {
	fx := newFixture(t)

	w := fx.postJSON("/relay/sms", map[string]any{"to": "08031234567"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fx.postJSON("/relay/sms", map[string]any{"to": "08031234567", "body": "hello"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"insufficient balance"}`, w.Body.String())
	require.Len(t, fx.sms.got, 1)
	assert.Equal(t, "hello", fx.sms.got[0].Body)
}

func TestRelayMethods(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodOptions, "/relay/sms", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(httptest.NewRequest(http.MethodGet, "/relay/sms", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

// ── Applications ───────────────────────────────────────

func completeForm(documentURL, passportURL string) map[string]any {
	return map[string]any{
		"full_name":          "Amina Yusuf",
		"email":              "amina@example.com",
		"phone":              "08031234567",
		"date_of_birth":      "1995-04-12",
		"state_of_origin":    "Kwara",
		"lga":                "Ilorin West",
		"nin_number":         "12345678901",
		"address":            "12 Unity Road, Ilorin",
		"passport_selected":  true,
		"position":           "Staff Nurse",
		"qualification":      "BNSc",
		"year_of_graduation": "2019",
		"institution":        "University of Ilorin",
		"document_selected":  true,
		"ndpr_consent":       true,
		"document_url":       documentURL,
		"passport_url":       passportURL,
	}
}

func TestSubmitThroughRelayAndLookup(t *testing.T) {
	fx := newFixture(t)

	doc := decode(t, fx.upload(t, "documents.png", "document", tinyPNG(t)))["url"].(string)
	photo := decode(t, fx.upload(t, "passport.png", "passport", tinyPNG(t)))["url"].(string)

	w := fx.postJSON("/applications", completeForm(doc, photo), "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	ref := body["reference_number"].(string)
	assert.Regexp(t, `^KIUTH-\d{4}-[0-9A-Z]{8}$`, ref)
	assert.Equal(t, false, body["duplicate"])

	// Same key: no second row
	w = fx.postJSON("/applications", completeForm(doc, photo), "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])
	assert.Len(t, fx.apps.rows, 1)

	w = fx.do(httptest.NewRequest(http.MethodGet, "/status/"+strings.ToLower(ref), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusPending, decode(t, w)["status"])

	w = fx.do(httptest.NewRequest(http.MethodGet, "/status/"+ref+"/slip", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "KIUTH_Slip_"+ref+".pdf")
}

func TestSubmitReportsFailingStep(t *testing.T) {
	fx := newFixture(t)

	form := completeForm(baseURL+"/uploads/x.pdf", baseURL+"/uploads/y.jpg")
	form["nin_number"] = "1234"
	w := fx.postJSON("/applications", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "NIN must be exactly 11 digits", body["error"])
	assert.EqualValues(t, 1, body["step"])

	// Gates pass but the files were never uploaded
	form["nin_number"] = "12345678901"
	w = fx.postJSON("/applications", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 4, decode(t, w)["step"])
	assert.Empty(t, fx.apps.rows)
}

func TestValidateStep(t *testing.T) {
	fx := newFixture(t)

	w := fx.postJSON("/applications/validate/2", map[string]any{"position": "Chief Surgeon"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please select a position", decode(t, w)["error"])

	w = fx.postJSON("/applications/validate/2", map[string]any{"position": "staff nurse"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.postJSON("/applications/validate/9", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusUnknownReference(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodGet, "/status/KIUTH-2025-ZZZZZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Application not found", decode(t, w)["error"])

	w = fx.do(httptest.NewRequest(http.MethodGet, "/status/KIUTH-2025-ZZZZZZZZ/slip", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
