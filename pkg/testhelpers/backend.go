package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"userconsole/pkg/users"
)

const recordSeparator = 0x1e

var uniqueCounter int64

func nextSuffix() int64 {
	return atomic.AddInt64(&uniqueCounter, 1)
}

// Backend is an in-memory stand-in for the user REST API and its push hub.
// Writes made through REST are broadcast to hub clients when Echo is set.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     []users.User
	nextID    int64
	failures  map[string]int
	pagedHits int
	echo      bool
	hubs      map[string]*hubConn
	negotiate int

	// negotiate requests left to reject with 503
	negotiateFailures int
}

type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (h *hubConn) write(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return h.conn.WriteMessage(websocket.TextMessage, payload)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewBackend starts the fake backend; it is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	gin.SetMode(gin.TestMode)
	b := &Backend{
		nextID:   1,
		failures: make(map[string]int),
		echo:     true,
		hubs:     make(map[string]*hubConn),
	}

	r := gin.New()
	api := r.Group("/api/User")
	api.GET("/paged", b.listPaged)
	api.POST("", b.createUser)
	api.PUT("/:id", b.updateUser)
	api.DELETE("/:id", b.deleteUser)
	r.POST("/userhub/negotiate", b.negotiateHub)
	r.GET("/userhub", b.serveHub)

	b.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		b.DropHubClients()
		b.Server.Close()
	})
	return b
}

func (b *Backend) APIBaseURL() string { return b.Server.URL + "/api" }

func (b *Backend) HubURL() string { return b.Server.URL + "/userhub" }

// SetEcho controls whether REST writes are broadcast on the hub.
func (b *Backend) SetEcho(on bool) {
	b.mu.Lock()
	b.echo = on
	b.mu.Unlock()
}

// Seed inserts n users with generated names and returns them.
func (b *Backend) Seed(n int) []users.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]users.User, 0, n)
	for i := 0; i < n; i++ {
		suffix := nextSuffix()
		u := users.User{
			ID:    b.nextID,
			Name:  fmt.Sprintf("test-user-%d", suffix),
			Email: fmt.Sprintf("test-user-%d@example.com", suffix),
		}
		b.nextID++
		b.users = append(b.users, u)
		out = append(out, u)
	}
	return out
}

// Users returns a copy of the stored users in id order.
func (b *Backend) Users() []users.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]users.User(nil), b.users...)
}

// FailNext makes the next request with the given method answer status.
func (b *Backend) FailNext(method string, status int) {
	b.mu.Lock()
	b.failures[method] = status
	b.mu.Unlock()
}

// PagedHits counts GET /User/paged requests served.
func (b *Backend) PagedHits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pagedHits
}

// Negotiations counts negotiate requests served.
func (b *Backend) Negotiations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.negotiate
}

// FailNegotiations makes the next n negotiate requests answer 503.
func (b *Backend) FailNegotiations(n int) {
	b.mu.Lock()
	b.negotiateFailures = n
	b.mu.Unlock()
}

// HubClients reports how many hub connections completed the handshake.
func (b *Backend) HubClients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hubs)
}

// WaitForHubClients blocks until n hub clients are connected.
func (b *Backend) WaitForHubClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.HubClients() == n }, 3*time.Second, 10*time.Millisecond)
}

// DropHubClients closes every hub connection, simulating a network loss.
func (b *Backend) DropHubClients() {
	b.mu.Lock()
	conns := b.hubs
	b.hubs = make(map[string]*hubConn)
	b.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// Broadcast sends a hub invocation of target with args to every client.
func (b *Backend) Broadcast(target string, args ...any) {
	if args == nil {
		args = []any{}
	}
	payload, _ := json.Marshal(map[string]any{
		"type":      1,
		"target":    target,
		"arguments": args,
	})
	b.BroadcastRaw(append(payload, recordSeparator))
}

// BroadcastRaw writes payload verbatim to every hub client.
func (b *Backend) BroadcastRaw(payload []byte) {
	b.mu.Lock()
	conns := make([]*hubConn, 0, len(b.hubs))
	for _, c := range b.hubs {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		_ = c.write(payload)
	}
}

func (b *Backend) takeFailure(method string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.failures[method]
	if ok {
		delete(b.failures, method)
	}
	return status, ok
}

func (b *Backend) listPaged(c *gin.Context) {
	b.mu.Lock()
	b.pagedHits++
	b.mu.Unlock()

	if status, ok := b.takeFailure(http.MethodGet); ok {
		c.JSON(status, gin.H{"error": "injected failure"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	if err != nil || size <= 0 {
		size = 10
	}

	b.mu.Lock()
	total := len(b.users)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	data := append([]users.User{}, b.users[start:end]...)
	b.mu.Unlock()

	totalPages := (total + size - 1) / size
	c.JSON(http.StatusOK, gin.H{
		"data":         data,
		"totalPages":   totalPages,
		"pageNumber":   page,
		"pageSize":     size,
		"totalRecords": total,
	})
}

func (b *Backend) createUser(c *gin.Context) {
	if status, ok := b.takeFailure(http.MethodPost); ok {
		c.JSON(status, gin.H{"error": "injected failure"})
		return
	}
	var in users.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	b.mu.Lock()
	u := users.User{ID: b.nextID, Name: in.Name, Email: in.Email}
	b.nextID++
	b.users = append(b.users, u)
	echo := b.echo
	b.mu.Unlock()

	if echo {
		b.Broadcast("UserCreated", u)
	}
	c.JSON(http.StatusCreated, u)
}

func (b *Backend) updateUser(c *gin.Context) {
	if status, ok := b.takeFailure(http.MethodPut); ok {
		c.JSON(status, gin.H{"error": "injected failure"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var in users.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	b.mu.Lock()
	var (
		updated users.User
		found   bool
	)
	for i := range b.users {
		if b.users[i].ID == id {
			b.users[i].Name = in.Name
			b.users[i].Email = in.Email
			updated, found = b.users[i], true
			break
		}
	}
	echo := b.echo
	b.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if echo {
		b.Broadcast("UserUpdated", updated)
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) deleteUser(c *gin.Context) {
	if status, ok := b.takeFailure(http.MethodDelete); ok {
		c.JSON(status, gin.H{"error": "injected failure"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	b.mu.Lock()
	found := false
	for i := range b.users {
		if b.users[i].ID == id {
			b.users = append(b.users[:i], b.users[i+1:]...)
			found = true
			break
		}
	}
	echo := b.echo
	b.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if echo {
		b.Broadcast("UserDeleted", id)
	}
	c.Status(http.StatusNoContent)
}

func (b *Backend) negotiateHub(c *gin.Context) {
	b.mu.Lock()
	b.negotiate++
	failing := b.negotiateFailures > 0
	if failing {
		b.negotiateFailures--
	}
	b.mu.Unlock()
	if failing {
		c.String(http.StatusServiceUnavailable, "hub starting")
		return
	}

	token := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{
		"negotiateVersion": 1,
		"connectionId":     uuid.NewString(),
		"connectionToken":  token,
		"availableTransports": []gin.H{
			{"transport": "WebSockets", "transferFormats": []string{"Text", "Binary"}},
		},
	})
}

func (b *Backend) serveHub(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// The first record is the protocol handshake.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil || len(raw) == 0 || raw[len(raw)-1] != recordSeparator {
		conn.Close()
		return
	}
	var hs struct {
		Protocol string `json:"protocol"`
		Version  int    `json:"version"`
	}
	if err := json.Unmarshal(raw[:len(raw)-1], &hs); err != nil || hs.Protocol != "json" {
		_ = conn.WriteMessage(websocket.TextMessage, append([]byte(`{"error":"unsupported protocol"}`), recordSeparator))
		conn.Close()
		return
	}

	hc := &hubConn{conn: conn}
	if err := hc.write(append([]byte("{}"), recordSeparator)); err != nil {
		conn.Close()
		return
	}

	id := c.Query("id")
	if id == "" {
		id = uuid.NewString()
	}
	b.mu.Lock()
	b.hubs[id] = hc
	b.mu.Unlock()

	conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	if b.hubs[id] == hc {
		delete(b.hubs, id)
	}
	b.mu.Unlock()
	conn.Close()
}
