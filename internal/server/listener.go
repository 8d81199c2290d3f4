package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/shared"
)

// ListenerOptions configures a [CallbackListener].
type ListenerOptions struct {
	Addr         string // host:port; port 0 picks a free port
	Path         string
	PollInterval time.Duration
	Logger       *log.Logger
}

// CallbackListener is a one-shot loopback HTTP server that waits for a single OAuth redirect.
//
// The socket is bound by [CallbackListener.Bind] before the browser is opened and released
// when [CallbackListener.Await] returns, whatever the outcome.
type CallbackListener struct {
	opts ListenerOptions

	mu     sync.Mutex
	ln     net.Listener
	srv    *http.Server
	closed bool
}

// NewCallbackListener creates an unbound listener.
func NewCallbackListener(opts ListenerOptions) *CallbackListener {
	if opts.Path == "" {
		opts.Path = "/callback"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &CallbackListener{opts: opts}
}

// Bind reserves the TCP socket.
func (l *CallbackListener) Bind() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", l.opts.Addr)
	if err != nil {
		return fmt.Errorf("%w: could not listen on %s, close the process holding the port: %v", shared.ErrCallback, l.opts.Addr, err)
	}
	l.ln = ln
	l.opts.Logger.Debug("callback listener bound", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before [CallbackListener.Bind].
func (l *CallbackListener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.opts.Addr
}

// RedirectURI is the URI registered with the provider for this listener.
func (l *CallbackListener) RedirectURI() string {
	return "http://" + l.Addr() + l.opts.Path
}

// Await serves the callback path until the first redirect arrives, then validates it against expectedState.
//
// Checks run in order: provider error, state mismatch, missing code. Each yields [shared.ErrCallback].
// Exceeding timeout additionally matches [shared.ErrTimeout]. The listener is closed on return.
func (l *CallbackListener) Await(ctx context.Context, expectedState string, timeout time.Duration) (string, error) {
	if err := l.Bind(); err != nil {
		return "", err
	}
	defer l.Close()

	handler := NewCallbackHandler(l.opts.Path, expectedState, l.opts.Logger)
	router := NewBasicRouter()
	router.Use(RequestLogger(l.opts.Logger))
	router.Handler(http.MethodGet, handler)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", fmt.Errorf("%w: listener already closed", shared.ErrCallback)
	}
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	l.srv = srv
	ln := l.ln
	l.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	var result CallbackResult
wait:
	for {
		select {
		case result = <-handler.Result():
			break wait
		case err := <-serveErr:
			return "", fmt.Errorf("%w: listener stopped: %v", shared.ErrCallback, err)
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", shared.ErrCallback, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return "", fmt.Errorf("%w: %w: no redirect received within %s", shared.ErrCallback, shared.ErrTimeout, timeout)
			}
		}
	}

	switch {
	case result.Error != "":
		return "", fmt.Errorf("%w: provider returned error: %s", shared.ErrCallback, result.Error)
	case result.State != expectedState:
		return "", fmt.Errorf("%w: state mismatch", shared.ErrCallback)
	case result.Code == "":
		return "", fmt.Errorf("%w: no authorization code received", shared.ErrCallback)
	}

	l.opts.Logger.Debug("authorization code received")
	return result.Code, nil
}

// Close releases the socket. Safe to call more than once.
func (l *CallbackListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.srv.Shutdown(ctx); err != nil {
			return l.srv.Close()
		}
		return nil
	}
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}
