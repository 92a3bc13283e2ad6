package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{header: "bearer   tok", want: "tok"},
		{header: "", wantErr: ErrMissingToken},
		{header: "Basic xyz", wantErr: ErrInvalidFormat},
		{header: "Bearer ", wantErr: ErrInvalidFormat},
	}

	for _, tt := range tests {
		got, err := ExtractBearerToken(tt.header)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestJWTProvider_RoundTrip(t *testing.T) {
	p := NewJWTProvider("secret")

	token, err := p.SignToken(models.Actor{UserID: "u-1", Name: "Ada", Role: models.RoleTeacher}, time.Hour)
	require.NoError(t, err)

	actor, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", actor.UserID)
	assert.Equal(t, models.RoleTeacher, actor.Role)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p := NewJWTProvider("secret")

	expired, err := p.SignToken(models.Actor{UserID: "u-1", Role: models.RoleStudent}, -time.Minute)
	require.NoError(t, err)
	_, err = p.Authenticate(context.Background(), expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other, err := NewJWTProvider("other").SignToken(models.Actor{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)
	_, err = p.Authenticate(context.Background(), other)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCasdoorRole(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, casdoorRole(true, "", nil))
	assert.Equal(t, models.RoleTeacher, casdoorRole(false, "student", []string{"Teacher"}))
	assert.Equal(t, models.RoleAdmin, casdoorRole(false, "", []string{"teacher", "ADMIN"}))
	assert.Equal(t, models.RoleStudent, casdoorRole(false, "", []string{"reviewer"}))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewJWTProvider("secret")

	router := gin.New()
	router.GET("/me", Middleware(p), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, actor)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := p.SignToken(models.Actor{UserID: "s-1", Role: models.RoleStudent}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"s-1"`)
}
