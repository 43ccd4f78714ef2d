package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func roleRequest(t *testing.T, role string, guard gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			c.Set("role", role)
		}
	}, guard, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireRecruiter(t *testing.T) {
	assert.Equal(t, http.StatusOK, roleRequest(t, "recruiter", RequireRecruiter()))
	assert.Equal(t, http.StatusOK, roleRequest(t, "admin", RequireRecruiter()))
	assert.Equal(t, http.StatusForbidden, roleRequest(t, "candidate", RequireRecruiter()))
	assert.Equal(t, http.StatusForbidden, roleRequest(t, "", RequireRecruiter()))
}

func TestRequireRoleIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, http.StatusOK, roleRequest(t, "Recruiter", RequireRole("recruiter")))
}
