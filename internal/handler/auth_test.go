package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/middleware"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokens map[string]*auth.Token

func (t tokens) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := t[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("token expired")
}

type memUsers struct {
	mu      sync.Mutex
	byUID   map[string]*model.User
	creates int
}

func (m *memUsers) FindByFirebaseUID(_ context.Context, uid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byUID[uid], nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byUID {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Create(_ context.Context, uid, email, fullName string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	u := &model.User{ID: uuid.New(), FirebaseUID: uid, Email: email, FullName: fullName, CreatedAt: time.Now()}
	m.byUID[uid] = u
	return u, nil
}

func (m *memUsers) Update(_ context.Context, id uuid.UUID, fullName, phone string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byUID {
		if u.ID == id {
			u.FullName, u.Phone = fullName, phone
			return u, nil
		}
	}
	return nil, nil
}

func newAccountsRouter(users *memUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	am := middleware.NewAuthMiddlewareWithVerifier(tokens{
		"amina": {UID: "uid-amina", Claims: map[string]interface{}{"email": "amina@example.com", "email_verified": true}},
		"hr":    {UID: "uid-hr", Claims: map[string]interface{}{"email": "hr@kiuth.edu.ng", "email_verified": true, "admin": true}},
	}, nil)

	r := gin.New()
	group := r.Group("", am.Authenticate(), ResolveUser(users))
	group.POST("/auth/session", NewAuthHandler(users).Session)
	profile := NewProfileHandler(users)
	group.GET("/profile", profile.GetProfile)
	group.PUT("/profile", profile.UpdateProfile)
	return r
}

func authed(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionCreatesAccountOnce(t *testing.T) {
	users := &memUsers{byUID: map[string]*model.User{}}
	r := newAccountsRouter(users)

	w := authed(r, http.MethodPost, "/auth/session", "amina", `{"name":" Amina Yusuf "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["is_admin"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "amina@example.com", user["email"])
	assert.Equal(t, "Amina Yusuf", user["full_name"])
	assert.NotContains(t, user, "FirebaseUID")

	w = authed(r, http.MethodPost, "/auth/session", "amina", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, users.creates)

	w = authed(r, http.MethodPost, "/auth/session", "hr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["is_admin"])

	assert.Equal(t, http.StatusUnauthorized, authed(r, http.MethodPost, "/auth/session", "stale", "").Code)
}

func TestProfileReadAndUpdate(t *testing.T) {
	users := &memUsers{byUID: map[string]*model.User{}}
	r := newAccountsRouter(users)

	// No account yet
	assert.Equal(t, http.StatusUnauthorized, authed(r, http.MethodGet, "/profile", "amina", "").Code)

	require.Equal(t, http.StatusOK, authed(r, http.MethodPost, "/auth/session", "amina", `{"name":"Amina"}`).Code)

	w := authed(r, http.MethodPut, "/profile", "amina", `{"full_name":" Amina Yusuf ","phone":" 08031234567 "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Amina Yusuf", decode(t, w)["full_name"])

	w = authed(r, http.MethodGet, "/profile", "amina", "")
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)
	assert.Equal(t, "08031234567", profile["phone"])
	assert.Equal(t, "amina@example.com", profile["email"])

	assert.Equal(t, http.StatusBadRequest, authed(r, http.MethodPut, "/profile", "amina", `{"full_name":`).Code)
}
