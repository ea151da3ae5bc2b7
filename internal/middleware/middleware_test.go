package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.Nop()), CORSMiddleware(), Authenticate(HeaderIdentity{}))

	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerRiderID(c)})
	})
	r.POST("/riders/:id/go", RequireSelf("id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/orders/:id/accept", RequireRider(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/deliveries/:id/cancel", RequireRiderOrOperator(testOperatorKey), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerRiderID(c), "operator": IsOperator(c)})
	})
	r.POST("/payouts/:reference/complete", RequireOperator(testOperatorKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/closed", RequireOperator(""), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

const testOperatorKey = "ops-secret"

func serve(r http.Handler, method, path, rider string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if rider != "" {
		req.Header.Set(RiderIDHeader, rider)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSelf(t *testing.T) {
	r := newTestRouter()

	testCases := []struct {
		name   string
		rider  string
		status int
	}{
		{name: "anonymous", rider: "", status: http.StatusUnauthorized},
		{name: "other rider", rider: "rider-2", status: http.StatusForbidden},
		{name: "self", rider: "rider-1", status: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodPost, "/riders/rider-1/go", tc.rider)
			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRider(t *testing.T) {
	r := newTestRouter()

	require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/orders/o-1/accept", "").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/orders/o-1/accept", "rider-1").Code)
}

func TestRequireRiderOrOperator(t *testing.T) {
	r := newTestRouter()

	testCases := []struct {
		name     string
		rider    string
		key      string
		status   int
		response string
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "wrong key", key: "guess", status: http.StatusUnauthorized},
		{name: "rider", rider: "rider-1", status: http.StatusOK, response: `{"caller":"rider-1","operator":false}`},
		{name: "operator", key: testOperatorKey, status: http.StatusOK, response: `{"caller":"","operator":true}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/deliveries/d-1/cancel", nil)
			if tc.rider != "" {
				req.Header.Set(RiderIDHeader, tc.rider)
			}
			if tc.key != "" {
				req.Header.Set(OperatorKeyHeader, tc.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			if tc.response != "" {
				require.JSONEq(t, tc.response, w.Body.String())
			}
		})
	}
}

func TestRequireOperator(t *testing.T) {
	r := newTestRouter()

	send := func(path, key string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(RiderIDHeader, "rider-1")
		if key != "" {
			req.Header.Set(OperatorKeyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusUnauthorized, send("/payouts/p-1/complete", ""), "a rider is not an operator")
	require.Equal(t, http.StatusUnauthorized, send("/payouts/p-1/complete", "guess"))
	require.Equal(t, http.StatusOK, send("/payouts/p-1/complete", testOperatorKey))
	require.Equal(t, http.StatusUnauthorized, send("/closed", testOperatorKey), "an empty key admits nobody")
}

func TestAuthenticate_OptionalIdentity(t *testing.T) {
	r := newTestRouter()

	w := serve(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"caller":""}`, w.Body.String())

	w = serve(r, http.MethodGet, "/open", "rider-9")
	require.JSONEq(t, `{"caller":"rider-9"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newTestRouter()

	w := serve(r, http.MethodGet, "/open", "")
	require.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter()

	w := serve(r, http.MethodOptions, "/open", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
