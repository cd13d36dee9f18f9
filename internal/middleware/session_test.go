package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type stubProfiles map[string]*models.User

func (s stubProfiles) Profile(_ context.Context, userID string) (*models.User, error) {
	user, ok := s[userID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrProfileMissing, "")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return user, nil
}

type envelope struct {
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func newGateRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := stubValidator{
		"teacher": {UserID: "t1", SchoolID: "s1", Role: models.RoleTeacher},
		"ghost":   {UserID: "ghost", SchoolID: "s1", Role: models.RoleStudent},
		"frozen":  {UserID: "f1", SchoolID: "s1", Role: models.RoleStudent},
		"stale":   {UserID: "t1", SchoolID: "s1", Role: models.RoleAdmin},
	}
	profiles := stubProfiles{
		"t1": {ID: "t1", SchoolID: "s1", Role: models.RoleTeacher, Active: true},
		"f1": {ID: "f1", SchoolID: "s1", Role: models.RoleStudent, Active: false},
	}
	r := gin.New()
	r.GET("/admin", JWT(tokens), SessionGate(profiles), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/classes", JWT(tokens), SessionGate(profiles), RequireRoles(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
		profile, ok := Profile(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, profile.ID)
	})
	return r
}

func perform(r *gin.Engine, path, token string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestSessionGateRedirectsToLogin(t *testing.T) {
	r := newGateRouter()
	cases := map[string]string{
		"no token":        "",
		"bad token":       "nope",
		"missing profile": "ghost",
		"inactive":        "frozen",
		"stale claims":    "stale",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec, body := perform(r, "/classes", token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, LoginPath, body.Meta["redirect"])
		})
	}
}

func TestRoleGateRedirectsHome(t *testing.T) {
	r := newGateRouter()

	rec, body := perform(r, "/admin", "teacher")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/teacher", body.Meta["redirect"])

	rec, _ = perform(r, "/classes", "teacher")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", rec.Body.String())
}

func TestJWTAcceptsQueryTokenOnlyForWebsocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", JWT(stubValidator{"teacher": {UserID: "t1"}}), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ws?token=teacher", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/ws?token=teacher", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
