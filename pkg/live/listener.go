package live

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/philippseith/signalr"

	"userconsole/pkg/users"
)

const (
	defaultKeepAliveInterval = 15 * time.Second
	defaultServerTimeout     = 30 * time.Second
	negotiateTimeout         = 10 * time.Second
)

// DefaultReconnectDelays is the wait before each reconnect attempt; the
// last entry repeats for as long as the hub stays unreachable.
var DefaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// EventSink receives the record changes pushed by the hub.
type EventSink interface {
	RecordCreated(ctx context.Context, u users.User)
	RecordUpdated(ctx context.Context, u users.User)
	RecordDeleted(ctx context.Context, id int64)
}

type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Listener keeps a SignalR session to the user hub open and feeds the
// events it receives into an EventSink.
type Listener struct {
	hubURL string
	sink   EventSink
	// Optional: logger can be injected
	logger interface {
		Printf(string, ...interface{})
	}

	httpClient    *http.Client
	delays        []time.Duration
	pingInterval  time.Duration
	serverTimeout time.Duration

	onReconnect func(context.Context)
	onState     func(ConnState)

	state atomic.Int32
}

// NewListener creates a listener for the hub at hubURL (http or https).
func NewListener(hubURL string, sink EventSink) *Listener {
	return &Listener{
		hubURL: hubURL,
		sink:   sink,
		logger: log.New(log.Writer(), "[live] ", log.LstdFlags),
		// No client timeout: the same client may carry the websocket.
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: negotiateTimeout,
		}},
		delays:        DefaultReconnectDelays,
		pingInterval:  defaultKeepAliveInterval,
		serverTimeout: defaultServerTimeout,
	}
}

func (l *Listener) SetLogger(logger interface{ Printf(string, ...interface{}) }) {
	l.logger = logger
}

func (l *Listener) SetHTTPClient(c *http.Client) {
	l.httpClient = c
}

// SetReconnectDelays replaces the reconnect schedule. An empty schedule
// retries immediately.
func (l *Listener) SetReconnectDelays(delays []time.Duration) {
	l.delays = append([]time.Duration(nil), delays...)
}

// SetKeepAlive sets how often pings are sent and how long the hub may
// stay silent before the session is considered lost. A session shorter
// than pingInterval does not restart the reconnect schedule.
func (l *Listener) SetKeepAlive(pingInterval, serverTimeout time.Duration) {
	l.pingInterval = pingInterval
	l.serverTimeout = serverTimeout
}

// OnReconnect registers fn to run after every connect that followed a
// failed attempt or a lost session. Events sent while the link was down
// are lost, so fn should resync.
func (l *Listener) OnReconnect(fn func(context.Context)) {
	l.onReconnect = fn
}

func (l *Listener) OnStateChange(fn func(ConnState)) {
	l.onState = fn
}

func (l *Listener) State() ConnState {
	return ConnState(l.state.Load())
}

func (l *Listener) setState(s ConnState) {
	if ConnState(l.state.Swap(int32(s))) == s {
		return
	}
	if l.onState != nil {
		l.onState(s)
	}
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	schedule := newReconnectSchedule(l.delays, l.pingInterval)

	client, err := signalr.NewClient(ctx,
		signalr.WithConnector(l.connector(ctx, schedule)),
		signalr.WithReceiver(&hubReceiver{ctx: ctx, sink: l.sink, logger: l.logger}),
		// Pacing lives in the connector.
		signalr.WithBackoff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		signalr.KeepAliveInterval(l.pingInterval),
		signalr.TimeoutInterval(l.serverTimeout),
		signalr.Logger(kitLogger{logger: l.logger}, false),
	)
	if err != nil {
		return err
	}

	states := make(chan signalr.ClientState, 16)
	stopObserving := client.ObserveStateChanged(states)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.watch(ctx, states, schedule)
	}()

	l.setState(Connecting)
	client.Start()

	<-ctx.Done()
	wg.Wait()
	stopObserving()
	l.setState(Disconnected)
	return ctx.Err()
}

// connector returns the factory the client calls for every attempt. It
// waits out the schedule before negotiating.
func (l *Listener) connector(ctx context.Context, schedule *reconnectSchedule) func() (signalr.Connection, error) {
	return func() (signalr.Connection, error) {
		if d := schedule.next(); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := signalr.NewHTTPConnection(ctx, l.hubURL, signalr.WithHTTPClient(l.httpClient))
		if err != nil {
			l.logger.Printf("connection to %s failed: %v", l.hubURL, err)
			return nil, err
		}
		return conn, nil
	}
}

func (l *Listener) watch(ctx context.Context, states <-chan signalr.ClientState, schedule *reconnectSchedule) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			switch s {
			case signalr.ClientConnecting:
				l.setState(Connecting)
			case signalr.ClientClosed:
				l.logger.Printf("connection to %s lost", l.hubURL)
				l.setState(Connecting)
			case signalr.ClientConnected:
				l.setState(Connected)
				if !schedule.connected() {
					l.logger.Printf("connected to %s", l.hubURL)
					continue
				}
				l.logger.Printf("reconnected to %s", l.hubURL)
				if l.onReconnect != nil {
					l.onReconnect(ctx)
				}
			}
		}
	}
}
