package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Jwl06/civicledger360/analysis"
	"github.com/Jwl06/civicledger360/evidence"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/Jwl06/civicledger360/services"
	"github.com/Jwl06/civicledger360/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router     *gin.Engine
	store      *store.MemoryStore
	uploadsDir string
}

func newTestServer(t *testing.T, maxUpload int64, opts ...services.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	st := store.NewMemoryStore()
	dir := t.TempDir()
	local, err := evidence.NewLocalStorage(dir, "http://localhost:3001/uploads/")
	require.NoError(t, err)
	ev := evidence.NewService(local, maxUpload, log)

	h := New(Deps{
		Violations: services.NewViolationService(st, analysis.NewRandomClassifier(), log, append(opts, services.WithEvidence(ev))...),
		Vehicles:   services.NewVehicleService(st, log),
		Evidence:   ev,
		Logger:     log,
	})
	r := gin.New()
	h.RegisterRoutes(r)
	return &testServer{router: r, store: st, uploadsDir: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type listResponse struct {
	Violations []models.Violation `json:"violations"`
	Total      int                `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func report(reporter string) gin.H {
	return gin.H{
		"reporter":      reporter,
		"vehicleId":     1,
		"violationType": "SPEEDING",
		"description":   "overspeeding on highway",
		"evidenceUrl":   "ipfs://Qm123",
	}
}

func TestSubmitAndReviewFlow(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/violations", report("0xABC"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Violation](t, w)
	assert.Equal(t, models.ViolationPending, created.Status)
	assert.Equal(t, models.DefaultLocation, created.Location)
	require.NotNil(t, created.AIAnalysis)
	assert.GreaterOrEqual(t, created.AIAnalysis.Confidence, analysis.MinConfidence)
	assert.LessOrEqual(t, created.AIAnalysis.Confidence, analysis.MaxConfidence)

	path := "/api/violations/" + itoa(created.ID) + "/review"
	w = s.do(t, http.MethodPut, path, gin.H{"status": "approved", "reviewer": "0xOfficer", "fineAmount": 500})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reviewed := decode[models.Violation](t, w)
	assert.Equal(t, models.ViolationApproved, reviewed.Status)
	assert.Equal(t, "500", reviewed.FineAmount.String())
	require.NotNil(t, reviewed.Reviewer)
	assert.Equal(t, "0xOfficer", *reviewed.Reviewer)
	assert.NotNil(t, reviewed.ReviewTimestamp)

	w = s.do(t, http.MethodPut, path, gin.H{"status": "REJECTED", "reviewer": "0xOfficer"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// A finished record conflicts even when the rest of the body is incomplete.
	w = s.do(t, http.MethodPut, path, gin.H{"status": "REJECTED"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/violations/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ViolationApproved, decode[models.Violation](t, w).Status)
}

func TestRejectForcesZeroFine(t *testing.T) {
	s := newTestServer(t, 0)
	created := decode[models.Violation](t, s.do(t, http.MethodPost, "/api/violations", report("0xABC")))

	w := s.do(t, http.MethodPut, "/api/violations/"+itoa(created.ID)+"/review",
		gin.H{"status": "REJECTED", "reviewer": "0xOfficer", "fineAmount": 250, "reviewNotes": "plate unreadable"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Violation](t, w)
	assert.Equal(t, models.ViolationRejected, got.Status)
	assert.True(t, got.FineAmount.IsZero())
	assert.Equal(t, "plate unreadable", got.ReviewNotes)
}

func TestReviewErrors(t *testing.T) {
	s := newTestServer(t, 0)
	created := decode[models.Violation](t, s.do(t, http.MethodPost, "/api/violations", report("0xABC")))
	path := "/api/violations/" + itoa(created.ID) + "/review"

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		field  string
	}{
		{"unknown id", "/api/violations/999/review", gin.H{"status": "APPROVED", "reviewer": "0xO"}, http.StatusNotFound, ""},
		{"malformed id", "/api/violations/abc/review", gin.H{"status": "APPROVED", "reviewer": "0xO"}, http.StatusBadRequest, "id"},
		{"bad decision", path, gin.H{"status": "MAYBE", "reviewer": "0xO"}, http.StatusBadRequest, "status"},
		{"missing reviewer", path, gin.H{"status": "APPROVED"}, http.StatusBadRequest, "reviewer"},
		{"negative fine", path, gin.H{"status": "APPROVED", "reviewer": "0xO", "fineAmount": -5}, http.StatusBadRequest, "fineAmount"},
		{"chain not configured", path, gin.H{"status": "APPROVED", "reviewer": "0xO", "target": "both"}, http.StatusBadRequest, ""},
		{"unknown target", path, gin.H{"status": "APPROVED", "reviewer": "0xO", "target": "ledger"}, http.StatusBadRequest, "target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode[errorResponse](t, w).Field)
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/violations/"+itoa(created.ID), nil)
	assert.Equal(t, models.ViolationPending, decode[models.Violation](t, w).Status)
}

// chainRecords stands in for the contract: reviews run the same state machine.
type chainRecords struct {
	records map[int64]models.Violation
	calls   int
}

func (f *chainRecords) Review(_ context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	f.calls++
	v, ok := f.records[id]
	if !ok {
		return models.Violation{}, models.ErrNotFound
	}
	next, err := models.ApplyReview(v, in, time.Now())
	if err != nil {
		return models.Violation{}, err
	}
	f.records[id] = next
	return next, nil
}

func TestReviewChainOnlyRecord(t *testing.T) {
	chain := &chainRecords{records: map[int64]models.Violation{
		7: {ID: 7, Reporter: "0xA1", Status: models.ViolationPending, Source: models.SourceChain},
	}}
	s := newTestServer(t, 0, services.WithChain(chain))

	w := s.do(t, http.MethodPut, "/api/violations/7/review", gin.H{"status": "APPROVED", "reviewer": "0xO"})
	assert.Equal(t, http.StatusNotFound, w.Code, "default target is the backend")
	assert.Zero(t, chain.calls)

	w = s.do(t, http.MethodPut, "/api/violations/7/review",
		gin.H{"status": "APPROVED", "reviewer": "0xO", "fineAmount": 300, "target": "chain"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Violation](t, w)
	assert.Equal(t, models.ViolationApproved, got.Status)
	assert.Equal(t, models.SourceChain, got.Source)
	assert.Equal(t, "300", got.FineAmount.String())

	w = s.do(t, http.MethodPut, "/api/violations/7/review",
		gin.H{"status": "REJECTED", "reviewer": "0xO", "target": "CHAIN"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, chain.calls)
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t, 0)

	missingReporter := report("")
	unknownType := report("0xABC")
	unknownType["violationType"] = "JAYWALKING"
	noEvidence := report("0xABC")
	noEvidence["evidenceUrl"] = ""
	noEvidence["evidenceAttached"] = true
	missingOwned := report("0xABC")
	missingOwned["evidenceUrl"] = "http://localhost:3001/uploads/violation-missing.png"

	for name, body := range map[string]gin.H{
		"missing reporter":       missingReporter,
		"unknown type":           unknownType,
		"attached without url":   noEvidence,
		"owned evidence missing": missingOwned,
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/violations", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := s.do(t, http.MethodGet, "/api/violations", nil)
	assert.Equal(t, 0, decode[listResponse](t, w).Total)
}

func TestListFilters(t *testing.T) {
	s := newTestServer(t, 0)
	for _, reporter := range []string{"0xAAA", "0xBBB", "0xAAA"} {
		w := s.do(t, http.MethodPost, "/api/violations", report(reporter))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := s.do(t, http.MethodPut, "/api/violations/1/review", gin.H{"status": "APPROVED", "reviewer": "0xO", "fineAmount": 100})
	require.Equal(t, http.StatusOK, w.Code)

	all := decode[listResponse](t, s.do(t, http.MethodGet, "/api/violations", nil))
	require.Equal(t, 3, all.Total)
	assert.Equal(t, int64(3), all.Violations[0].ID)

	pending := decode[listResponse](t, s.do(t, http.MethodGet, "/api/violations/pending", nil))
	assert.Equal(t, 2, pending.Total)

	byReporter := decode[listResponse](t, s.do(t, http.MethodGet, "/api/violations/reporter/0xAAA", nil))
	assert.Equal(t, 2, byReporter.Total)

	approved := decode[listResponse](t, s.do(t, http.MethodGet, "/api/violations?status=approved", nil))
	require.Equal(t, 1, approved.Total)
	assert.Equal(t, int64(1), approved.Violations[0].ID)

	limited := decode[listResponse](t, s.do(t, http.MethodGet, "/api/violations?limit=1", nil))
	assert.Equal(t, 1, limited.Total)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/violations?status=lost", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/violations?limit=0", nil).Code)

	queue := decode[reconcile.Snapshot](t, s.do(t, http.MethodGet, "/api/review/queue", nil))
	assert.Len(t, queue.Violations, 2)

	stats := decode[models.Statistics](t, s.do(t, http.MethodGet, "/api/statistics", nil))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, "100", stats.TotalFines.String())
	assert.Equal(t, 3, stats.ByType[models.ViolationSpeeding])

	summary := decode[services.ReporterSummary](t, s.do(t, http.MethodGet, "/api/reporters/0xAAA/summary", nil))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, services.TokensPerApprovedReport, summary.TokensEarned)
}

func TestVehicles(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/vehicles", gin.H{
		"plateNumber":   "KA01AB1234",
		"chassisNumber": "CH123",
		"ownerName":     "Asha",
		"ownerAddress":  "0xOwner",
		"vehicleType":   "car",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vehicle := decode[models.Vehicle](t, w)
	assert.NotEmpty(t, vehicle.HashedPlateNumber)

	w = s.do(t, http.MethodGet, "/api/vehicles/"+itoa(vehicle.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/vehicles/42", nil).Code)

	w = s.do(t, http.MethodGet, "/api/vehicles?owner=0xOwner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = s.do(t, http.MethodPost, "/api/vehicles", gin.H{"plateNumber": "KA01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func upload(t *testing.T, s *testServer, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("evidence", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadEvidence(t *testing.T) {
	s := newTestServer(t, 0)

	w := upload(t, s, "scene.png", pngBytes(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	file := decode[evidence.File](t, w)
	assert.True(t, strings.HasPrefix(file.URL, "http://localhost:3001/uploads/violation-"))
	assert.Equal(t, "image/png", file.ContentType)
	assert.Equal(t, "scene.png", file.OriginalName)
	assert.NotEmpty(t, file.ThumbnailURL)

	_, err := os.Stat(filepath.Join(s.uploadsDir, file.Filename))
	require.NoError(t, err)

	withEvidence := report("0xABC")
	withEvidence["evidenceUrl"] = file.URL
	withEvidence["evidenceAttached"] = true
	w = s.do(t, http.MethodPost, "/api/violations", withEvidence)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, 1024)

	w := upload(t, s, "notes.txt", []byte("just some text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "evidence", decode[errorResponse](t, w).Field)

	w = upload(t, s, "huge.png", append(pngBytes(t), make([]byte, 2048)...))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries, err := os.ReadDir(s.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHealthAndFeedWithoutHub(t *testing.T) {
	s := newTestServer(t, 0)
	s.do(t, http.MethodPost, "/api/violations", report("0xABC"))

	w := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[map[string]interface{}](t, w)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["violations"])

	w = s.do(t, http.MethodGet, "/api/feed/stats", nil)
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/ws/violations", nil).Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
