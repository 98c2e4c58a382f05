package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

// serve runs req through r and returns the recorder.
func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newReq(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	return serve(r, newReq(http.MethodGet, path))
}

// errBody decodes the JSON error envelope.
func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return m
}

// withPrincipal is a stand-in for Authenticate.
func withPrincipal(uid string, staff bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid != "" {
			c.Set(userIDKey, uid)
			c.Set(staffKey, staff)
		}
		c.Next()
	}
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }
