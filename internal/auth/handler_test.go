package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpolls/backend/internal/models"
	"github.com/openpolls/backend/pkg/utils"
)

type fakeUsers struct {
	byEmail map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*models.User)}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	u := &models.User{ID: uuid.New(), Email: email, Password: passwordHash, FullName: fullName, Role: role}
	f.byEmail[email] = u
	return u, nil
}

func newAuthRouter(users Users) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(users, NewJWTService("test-secret", 24), zap.NewNop())
	r := gin.New()
	r.POST("/accounts/register/", h.Register)
	r.POST("/accounts/login/", h.Login)
	r.POST("/accounts/logout/", h.Logout)
	r.GET("/accounts/login/", h.LoginPage)
	return r
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeToken(t *testing.T, body []byte) TokenResponse {
	t.Helper()
	var envelope struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal token response: %v", err)
	}
	return envelope.Data
}

func TestRegisterCreatesVoterAndSetsCookie(t *testing.T) {
	users := newFakeUsers()
	router := newAuthRouter(users)

	rr := postJSON(router, "/accounts/register/", `{"email":"v@example.com","password":"hunter22","full_name":"V"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	resp := decodeToken(t, rr.Body.Bytes())
	if resp.Token == "" {
		t.Fatalf("expected a token")
	}
	if resp.User.Role != models.RoleVoter {
		t.Fatalf("role = %s, want voter", resp.User.Role)
	}
	cookieSet := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == TokenCookie && c.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Fatalf("token cookie not set")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	users := newFakeUsers()
	users.byEmail["v@example.com"] = &models.User{ID: uuid.New(), Email: "v@example.com"}
	router := newAuthRouter(users)

	rr := postJSON(router, "/accounts/register/", `{"email":"v@example.com","password":"hunter22","full_name":"V"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	router := newAuthRouter(newFakeUsers())
	rr := postJSON(router, "/accounts/register/", `{"email":"v@example.com","password":"hunter22","full_name":"V","role":"superuser"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestLoginChecksPassword(t *testing.T) {
	users := newFakeUsers()
	hash, err := utils.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users.byEmail["v@example.com"] = &models.User{ID: uuid.New(), Email: "v@example.com", Password: hash, Role: models.RoleVoter}
	router := newAuthRouter(users)

	rr := postJSON(router, "/accounts/login/", `{"email":"v@example.com","password":"hunter22"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if decodeToken(t, rr.Body.Bytes()).Token == "" {
		t.Fatalf("expected a token")
	}

	rr = postJSON(router, "/accounts/login/", `{"email":"v@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	router := newAuthRouter(newFakeUsers())
	rr := postJSON(router, "/accounts/login/", `{"email":"nobody@example.com","password":"hunter22"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router := newAuthRouter(newFakeUsers())
	rr := postJSON(router, "/accounts/logout/", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == TokenCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("token cookie not cleared")
	}
}

func TestLoginPageEchoesFlashedMessage(t *testing.T) {
	router := newAuthRouter(newFakeUsers())
	req := httptest.NewRequest(http.MethodGet, "/accounts/login/?message=Please+log+in+to+continue.", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var envelope struct {
		Data struct {
			LoginRequired bool   `json:"login_required"`
			Message       string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !envelope.Data.LoginRequired {
		t.Fatalf("login_required should be true")
	}
	if envelope.Data.Message != "Please log in to continue." {
		t.Fatalf("message = %q", envelope.Data.Message)
	}
}
