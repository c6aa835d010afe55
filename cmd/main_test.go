package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"userconsole/pkg/config"
	"userconsole/pkg/response"
	"userconsole/pkg/stream"
	"userconsole/pkg/testhelpers"
)

func testConfig(backend *testhelpers.Backend) config.Config {
	return config.Config{
		Port:               "0",
		APIBaseURL:         backend.APIBaseURL(),
		HubURL:             backend.HubURL(),
		PageSize:           4,
		HTTPTimeout:        2 * time.Second,
		PendingTTL:         5 * time.Second,
		ReconnectDelays:    []time.Duration{0, 20 * time.Millisecond},
		UserAgent:          "userconsole-test",
		CORSAllowedOrigins: []string{"*"},
	}
}

func getState(t *testing.T, srv *httptest.Server) map[string]any {
	t.Helper()
	res, err := http.Get(srv.URL + "/api/console/state")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp response.APIResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestApp_EndToEnd(t *testing.T) {
	backend := testhelpers.NewBackend(t)
	backend.Seed(5)

	a := newApp(testConfig(backend))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.listener.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	backend.WaitForHubClients(t, 1)
	require.NoError(t, a.controller.LoadPage(ctx, 1))

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	state := getState(t, srv)
	require.EqualValues(t, 1, state["page"])
	require.EqualValues(t, 2, state["total_pages"])
	require.Len(t, state["records"], 4)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/console"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var hello stream.Frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, stream.EventHello, hello.EventType)

	res, err := http.Post(srv.URL+"/api/console/users", "application/json",
		strings.NewReader(`{"name":"Zed","email":"zed@example.com"}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	// Six users at four per page: the new one lands on page 2.
	require.Eventually(t, func() bool {
		s := a.controller.Snapshot()
		return s.Page == 2 && len(s.Records) == 2 && a.controller.PendingWrites() == 0
	}, 3*time.Second, 10*time.Millisecond)
	require.Len(t, backend.Users(), 6)

	s := a.controller.Snapshot()
	count := 0
	for _, r := range s.Records {
		if r.Email == "zed@example.com" {
			count++
		}
	}
	require.Equal(t, 1, count)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame stream.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, stream.EventState, frame.EventType)
}

func TestApp_ResyncsAfterReconnect(t *testing.T) {
	backend := testhelpers.NewBackend(t)
	backend.Seed(2)

	a := newApp(testConfig(backend))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.listener.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	backend.WaitForHubClients(t, 1)
	require.NoError(t, a.controller.LoadPage(ctx, 1))
	hits := backend.PagedHits()

	// A write the console never hears about while the hub link is down.
	backend.SetEcho(false)
	backend.DropHubClients()
	backend.Seed(1)

	require.Eventually(t, func() bool {
		return backend.PagedHits() > hits && len(a.controller.Snapshot().Records) == 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRouter_ServesConsoleAndSwagger(t *testing.T) {
	backend := testhelpers.NewBackend(t)
	a := newApp(testConfig(backend))
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	require.Contains(t, doc["paths"], "/api/console/state")
}
