package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/auth"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/config"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/credstore"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/password"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/token"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/users"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// memUserStore 内存用户存储，实现 auth.UserStore。
type memUserStore struct {
	byID map[string]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: make(map[string]*model.User)}
}

func (m *memUserStore) Create(ctx context.Context, user *model.User) error {
	email := users.NormalizeEmail(user.Email)
	for _, u := range m.byID {
		if u.Email == email {
			return users.ErrEmailTaken
		}
	}
	user.Email = email
	user.ID = uuid.NewString()
	m.byID[user.ID] = user
	return nil
}

func (m *memUserStore) FindByEmail(ctx context.Context, email string, withHash bool) (*model.User, error) {
	email = users.NormalizeEmail(email)
	for _, u := range m.byID {
		if u.Email == email {
			copied := *u
			if !withHash {
				copied.PasswordHash = ""
			}
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *u
	copied.PasswordHash = ""
	return &copied, nil
}

func (m *memUserStore) FindByVerificationToken(ctx context.Context, tok string) (*model.User, error) {
	for _, u := range m.byID {
		if u.EmailVerificationToken != "" && u.EmailVerificationToken == tok {
			copied := *u
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memUserStore) SetVerificationToken(ctx context.Context, id string) (string, error) {
	u, ok := m.byID[id]
	if !ok {
		return "", users.ErrNotFound
	}
	tok := fmt.Sprintf("verify-%s", id)
	exp := time.Now().Add(24 * time.Hour)
	u.EmailVerificationToken = tok
	u.EmailVerificationExpiresAt = &exp
	return tok, nil
}

func (m *memUserStore) MarkEmailVerified(ctx context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.IsEmailVerified = true
	u.EmailVerificationToken = ""
	u.EmailVerificationExpiresAt = nil
	return nil
}

func (m *memUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

type nopDispatcher struct{ sent int }

func (d *nopDispatcher) Send(ctx context.Context, eventType string, payload any) error {
	d.sent++
	return nil
}

type testEnv struct {
	server *Server
	store  *memUserStore
	mr     *miniredis.Miniredis
	codec  *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	metrics.InitMetrics()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cred, err := credstore.NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("credstore: %v", err)
	}

	cfg := &config.Config{
		App: config.AppConfig{FrontendURL: "http://localhost:3000"},
		Security: config.SecurityConfig{
			JWTSecret:        "test_secret",
			AccessExpiresIn:  "15m",
			RefreshExpiresIn: "7d",
		},
	}

	store := newMemUserStore()
	hasher := password.NewBcryptHasher(4)
	codec := token.NewCodec(cfg.Security.JWTSecret)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := auth.NewService(store, cred, hasher, codec, &nopDispatcher{}, cfg, logger)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		rdb:    rdb,
		router: newTestRouter(),
		auth:   sessions,
		users:  store,
		codec:  codec,
		cred:   cred,
		hasher: hasher,
	}
	s.registerRoutes()
	return &testEnv{server: s, store: store, mr: mr, codec: codec}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func decodePair(t *testing.T, w *httptest.ResponseRecorder) auth.TokenPair {
	t.Helper()
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode token pair: %v (%s)", err, w.Body.String())
	}
	return pair
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	// 注册
	w := env.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": "alice@x.com", "password": "Secret1!", "firstName": "Alice", "lastName": "Smith",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	// 未验证邮箱不能登录
	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "alice@x.com", "password": "Secret1!"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unverified login: expected 401, got %d", w.Code)
	}

	// 通过验证链接验证邮箱
	var verifyToken string
	for _, u := range env.store.byID {
		verifyToken = u.EmailVerificationToken
	}
	w = env.do(t, http.MethodGet, "/v1/auth/verify-email?token="+verifyToken, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify email: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// 登录
	w = env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "alice@x.com", "password": "Secret1!"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	pair := decodePair(t, w)
	if pair.ExpiresIn != 900 {
		t.Errorf("expected expiresIn 900, got %d", pair.ExpiresIn)
	}

	// 携带访问令牌读取当前用户
	w = env.do(t, http.MethodGet, "/v1/users/me", pair.AccessToken, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "alice@x.com") {
		t.Fatalf("me: expected 200 with email, got %d (%s)", w.Code, w.Body.String())
	}

	// 刷新：新刷新令牌与旧的不同
	w = env.do(t, http.MethodPost, "/v1/auth/refresh-token", "", gin.H{"refreshToken": pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	next := decodePair(t, w)
	if next.RefreshToken == pair.RefreshToken {
		t.Error("expected rotated refresh token to differ")
	}

	// 旧刷新令牌已被轮换，再次兑换 → 401
	w = env.do(t, http.MethodPost, "/v1/auth/refresh-token", "", gin.H{"refreshToken": pair.RefreshToken})
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "revoked") {
		t.Fatalf("rotated refresh: expected 401 revoked, got %d (%s)", w.Code, w.Body.String())
	}

	// 注销
	w = env.do(t, http.MethodPost, "/v1/auth/logout", next.AccessToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d (%s)", w.Code, w.Body.String())
	}

	// 注销后的访问令牌被黑名单拦截
	w = env.do(t, http.MethodGet, "/v1/users/me", next.AccessToken, nil)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "revoked") {
		t.Fatalf("blacklisted access: expected 401 revoked, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"invalid email", gin.H{"email": "not-an-email", "password": "Secret1!", "firstName": "A", "lastName": "B"}},
		{"too short", gin.H{"email": "a@x.com", "password": "Ab1", "firstName": "A", "lastName": "B"}},
		{"no digit", gin.H{"email": "a@x.com", "password": "Secretive", "firstName": "A", "lastName": "B"}},
		{"no uppercase", gin.H{"email": "a@x.com", "password": "secret123", "firstName": "A", "lastName": "B"}},
		{"missing first name", gin.H{"email": "a@x.com", "password": "Secret1!", "lastName": "B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/auth/signup", "", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestAdminRoute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := &model.User{Email: "s@x.com", PasswordHash: "x", Role: model.RoleStudent, IsActive: true, IsEmailVerified: true}
	admin := &model.User{Email: "a@x.com", PasswordHash: "x", Role: model.RoleAdmin, IsActive: true, IsEmailVerified: true}
	if err := env.store.Create(ctx, student); err != nil {
		t.Fatal(err)
	}
	if err := env.store.Create(ctx, admin); err != nil {
		t.Fatal(err)
	}

	sign := func(u *model.User) string {
		tok, err := env.codec.Sign(u.ID, u.Email, u.Role, 15*time.Minute)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}

	// 学生访问管理员路由 → 403
	w := env.do(t, http.MethodGet, "/v1/users/"+student.ID, sign(student), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("student on admin route: expected 403, got %d", w.Code)
	}

	// 管理员访问 → 200
	w = env.do(t, http.MethodGet, "/v1/users/"+student.ID, sign(admin), nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "s@x.com") {
		t.Errorf("admin lookup: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// 不存在的用户 → 404
	w = env.do(t, http.MethodGet, "/v1/users/no-such-id", sign(admin), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing user: expected 404, got %d", w.Code)
	}
}

func TestSignup_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	// signup 限流 3/min，第 4 个请求应被拒绝
	for i := 0; i < 3; i++ {
		body := gin.H{"email": fmt.Sprintf("u%d@x.com", i), "password": "Secret1!", "firstName": "A", "lastName": "B"}
		if w := env.do(t, http.MethodPost, "/v1/auth/signup", "", body); w.Code != http.StatusCreated {
			t.Fatalf("signup %d: expected 201, got %d (%s)", i, w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodPost, "/v1/auth/signup", "",
		gin.H{"email": "u9@x.com", "password": "Secret1!", "firstName": "A", "lastName": "B"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "retry_after") {
		t.Errorf("expected retry_after in body, got %s", w.Body.String())
	}
}

func TestHealthz_DegradedWhenRedisDown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 while healthy, got %d (%s)", w.Code, w.Body.String())
	}

	env.mr.Close()
	w = env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with redis down, got %d (%s)", w.Code, w.Body.String())
	}
}
