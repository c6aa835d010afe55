package users

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	ua     string
	ctype  string
}

func setupBackend(t *testing.T, register func(r *gin.Engine)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen []recordedRequest
	r := gin.New()
	r.Use(func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		seen = append(seen, recordedRequest{
			method: c.Request.Method,
			path:   c.Request.URL.Path,
			query:  c.Request.URL.RawQuery,
			body:   string(body),
			ua:     c.GetHeader("User-Agent"),
			ctype:  c.GetHeader("Content-Type"),
		})
		c.Next()
	})
	register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestHTTPUserAPI_ListPaged_Success(t *testing.T) {
	srv, seen := setupBackend(t, func(r *gin.Engine) {
		r.GET("/api/User/paged", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"data":       []gin.H{{"id": 1, "name": "A", "email": "a@example.com"}},
				"totalPages": 3,
			})
		})
	})

	api := NewHTTPUserAPI(srv.URL+"/api/", WithUserAgent("console-test"))
	page, err := api.ListPaged(context.Background(), 2, 4)

	require.NoError(t, err)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, []User{{ID: 1, Name: "A", Email: "a@example.com"}}, page.Data)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	require.Equal(t, "/api/User/paged", req.path)
	require.Equal(t, "pageNumber=2&pageSize=4", req.query)
	require.Equal(t, "console-test", req.ua)
}

func TestHTTPUserAPI_ListPaged_NullData(t *testing.T) {
	srv, _ := setupBackend(t, func(r *gin.Engine) {
		r.GET("/api/User/paged", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"data": nil, "totalPages": 0})
		})
	})

	page, err := NewHTTPUserAPI(srv.URL+"/api").ListPaged(context.Background(), 1, 4)

	require.NoError(t, err)
	require.NotNil(t, page.Data)
	require.Empty(t, page.Data)
}

func TestHTTPUserAPI_ListPaged_ServerError(t *testing.T) {
	srv, _ := setupBackend(t, func(r *gin.Engine) {
		r.GET("/api/User/paged", func(c *gin.Context) {
			c.String(http.StatusInternalServerError, "boom")
		})
	})

	_, err := NewHTTPUserAPI(srv.URL+"/api").ListPaged(context.Background(), 1, 4)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, "boom", statusErr.Body)
	require.False(t, errors.Is(err, ErrUserNotFound))
}

func TestHTTPUserAPI_CreateUser_DecodesRecord(t *testing.T) {
	srv, seen := setupBackend(t, func(r *gin.Engine) {
		r.POST("/api/User", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"id": 9, "name": "Alice", "email": "a@example.com"})
		})
	})

	u, err := NewHTTPUserAPI(srv.URL+"/api").CreateUser(context.Background(), Input{Name: "Alice", Email: "a@example.com"})

	require.NoError(t, err)
	require.EqualValues(t, 9, u.ID)
	require.JSONEq(t, `{"name":"Alice","email":"a@example.com"}`, (*seen)[0].body)
	require.Contains(t, (*seen)[0].ctype, "application/json")
}

func TestHTTPUserAPI_CreateUser_EmptyBodyIsSuccess(t *testing.T) {
	srv, _ := setupBackend(t, func(r *gin.Engine) {
		r.POST("/api/User", func(c *gin.Context) { c.Status(http.StatusCreated) })
	})

	u, err := NewHTTPUserAPI(srv.URL+"/api").CreateUser(context.Background(), Input{Name: "A"})

	require.NoError(t, err)
	require.Zero(t, u.ID)
}

func TestHTTPUserAPI_UpdateUser(t *testing.T) {
	srv, seen := setupBackend(t, func(r *gin.Engine) {
		r.PUT("/api/User/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})

	err := NewHTTPUserAPI(srv.URL+"/api").UpdateUser(context.Background(), 7, Input{Name: "B", Email: "b@example.com"})

	require.NoError(t, err)
	require.Equal(t, "/api/User/7", (*seen)[0].path)
	require.JSONEq(t, `{"name":"B","email":"b@example.com"}`, (*seen)[0].body)
}

func TestHTTPUserAPI_DeleteUser_NotFound(t *testing.T) {
	srv, _ := setupBackend(t, func(r *gin.Engine) {
		r.DELETE("/api/User/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	})

	err := NewHTTPUserAPI(srv.URL+"/api").DeleteUser(context.Background(), 5)

	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHTTPUserAPI_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	err := NewHTTPUserAPI(base, WithTimeout(time.Second)).DeleteUser(context.Background(), 1)

	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}
