package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/auth"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/cache"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

const testJWTSecret = "test-secret"

type stubEngine struct {
	calls   int
	outcome verify.Outcome
}

func (s *stubEngine) Verify(ctx context.Context, taskID string, req *verify.Request) verify.Outcome {
	s.calls++
	return s.outcome
}

type stubCache struct {
	values  map[string]string
	setKeys []string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value.(string)
	return nil
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", errNotFound{}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func newTestRouter(engine Engine, verdictCache *stubCache, middleware ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize

	var verdicts cache.Cache
	if verdictCache != nil {
		verdicts = verdictCache
	}
	server := NewServer(engine, verdicts, []preprocess.Spec{{}}, 512, zap.NewNop())
	server.RegisterRoutes(router, middleware...)
	return router
}

func buildMultipartBody(t *testing.T, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "upload.png")
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestVerifyReturnsVerdict(t *testing.T) {
	engine := &stubEngine{outcome: verify.Outcome{Text: "payload", Decoded: true}}
	router := newTestRouter(engine, nil)

	body, contentType := buildMultipartBody(t, []byte("image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	var payload struct {
		Scannable bool   `json:"scannable"`
		Text      string `json:"text"`
		Cached    bool   `json:"cached"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !payload.Scannable || payload.Text != "payload" || payload.Cached {
		t.Fatalf("unexpected verdict %+v", payload)
	}
	if engine.calls != 1 {
		t.Fatalf("expected 1 engine call, got %d", engine.calls)
	}
}

func TestVerifyRequiresImage(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/verify", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestVerifyServesCachedVerdict(t *testing.T) {
	engine := &stubEngine{outcome: verify.Outcome{Text: "fresh", Decoded: true}}
	verdictCache := &stubCache{}
	router := newTestRouter(engine, verdictCache)

	send := func() *httptest.ResponseRecorder {
		body, contentType := buildMultipartBody(t, []byte("same bytes"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	if resp := send(); resp.Code != http.StatusOK {
		t.Fatalf("expected first upload to succeed, got %d", resp.Code)
	}
	if len(verdictCache.setKeys) != 1 {
		t.Fatalf("expected verdict to be cached once, got %d writes", len(verdictCache.setKeys))
	}

	resp := send()
	if resp.Code != http.StatusOK {
		t.Fatalf("expected second upload to succeed, got %d", resp.Code)
	}
	var payload struct {
		Cached bool `json:"cached"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !payload.Cached {
		t.Fatal("expected cached verdict on identical upload")
	}
	if engine.calls != 1 {
		t.Fatalf("expected engine to be skipped on cache hit, got %d calls", engine.calls)
	}
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil, auth.JWTMiddleware(testJWTSecret, ""))

	body, contentType := buildMultipartBody(t, []byte("image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	engine := &stubEngine{outcome: verify.Outcome{}}
	router := newTestRouter(engine, nil, auth.JWTMiddleware(testJWTSecret, ""))

	body, contentType := buildMultipartBody(t, []byte("image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
}

func buildTestToken(t *testing.T) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "auditor",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
