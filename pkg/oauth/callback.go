package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const successPage = "<html><body><h1>WHOOP login complete.</h1><p>You can close this tab.</p></body></html>"

// CallbackOptions configure the loopback callback receiver.
type CallbackOptions struct {
	RedirectURI   string
	ExpectedState string
	Timeout       time.Duration // defaults to DefaultCallbackTimeout
}

type callbackResult struct {
	code string
	err  error
}

// CallbackServer receives the authorization redirect on a local port.
type CallbackServer struct {
	opts     CallbackOptions
	path     string
	listener net.Listener
	server   *http.Server
	results  chan callbackResult
}

// Listen binds the loopback address named by opts.RedirectURI. Only localhost
// and 127.0.0.1 are accepted.
func Listen(opts CallbackOptions) (*CallbackServer, error) {
	redirect, err := url.Parse(opts.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	host := redirect.Hostname()
	if host != "127.0.0.1" && host != "localhost" {
		return nil, errors.New("redirect uri host must be localhost or 127.0.0.1 for local callback login")
	}
	port := redirect.Port()
	if port == "" {
		port = "80"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallbackTimeout
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	cs := &CallbackServer{
		opts:     opts,
		path:     redirect.Path,
		listener: listener,
		results:  make(chan callbackResult, 1),
	}
	cs.server = &http.Server{
		Handler:           http.HandlerFunc(cs.handle),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := cs.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.deliver(callbackResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()

	return cs, nil
}

// Addr returns the bound address, useful when the redirect uri uses port 0.
func (cs *CallbackServer) Addr() string {
	return cs.listener.Addr().String()
}

// Wait blocks until the callback arrives, the timeout elapses or ctx is done,
// then shuts the server down.
func (cs *CallbackServer) Wait(ctx context.Context) (string, error) {
	defer cs.close()

	timer := time.NewTimer(cs.opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-cs.results:
		return res.code, res.err
	case <-timer.C:
		return "", fmt.Errorf("timed out waiting for oauth callback after %s", cs.opts.Timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (cs *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != cs.path {
		http.NotFound(w, r)
		return
	}

	code, err := codeFromQuery(r.URL.Query(), cs.opts.ExpectedState)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Warn().Str("component", "oauth").Err(err).Msg("OAuth callback rejected")
		cs.deliver(callbackResult{err: err})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(successPage))
	cs.deliver(callbackResult{code: code})
}

// deliver keeps only the first outcome.
func (cs *CallbackServer) deliver(res callbackResult) {
	select {
	case cs.results <- res:
	default:
	}
}

func (cs *CallbackServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.server.Shutdown(ctx)
}

// WaitForCode listens on the redirect uri and returns the authorization code
// from the first valid callback.
func WaitForCode(ctx context.Context, opts CallbackOptions) (string, error) {
	cs, err := Listen(opts)
	if err != nil {
		return "", err
	}
	return cs.Wait(ctx)
}

// ParseCallbackURL extracts the authorization code from a redirected URL the
// user pasted, for logins where the browser cannot reach the loopback address.
func ParseCallbackURL(callbackURL, redirectURI, expectedState string) (string, error) {
	got, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}
	want, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	if got.Scheme != want.Scheme || got.Host != want.Host || got.Path != want.Path {
		return "", errors.New("callback url does not match the configured redirect uri, copy the full redirected url")
	}
	return codeFromQuery(got.Query(), expectedState)
}

func codeFromQuery(q url.Values, expectedState string) (string, error) {
	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			return "", fmt.Errorf("authentication failed: %s (%s)", e, desc)
		}
		return "", fmt.Errorf("authentication failed: %s", e)
	}
	if q.Get("state") != expectedState {
		return "", errors.New("invalid oauth state in callback")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("missing authorization code in callback")
	}
	return code, nil
}
