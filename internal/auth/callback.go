package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCallbackPort is the loopback port registered with the authorization
// server as part of the redirect URI. It is an exclusively-owned resource for
// the duration of one flow attempt; a bind failure doubles as the mutual
// exclusion between concurrent attempts.
const DefaultCallbackPort = 8787

// CallbackTimeout bounds how long a flow waits for the browser redirect.
const CallbackTimeout = 5 * time.Minute

const callbackSuccessResponse = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html\r\n" +
	"Connection: close\r\n\r\n" +
	"<html><body><h1>Authentication successful!</h1>" +
	"<p>You can close this window and return to the terminal.</p>" +
	"</body></html>"

const callbackFailureResponse = "HTTP/1.1 400 Bad Request\r\n" +
	"Content-Type: text/html\r\n" +
	"Connection: close\r\n\r\n" +
	"<html><body><h1>Authentication failed</h1><p>%s</p></body></html>"

// CallbackResult contains the outcome of the OAuth callback. It holds either
// the authorization code and state for a successful authentication or the
// provider-reported error if the user denied access.
type CallbackResult struct {
	// Code is the authorization code received from the provider.
	Code string
	// State is the anti-forgery token echoed back by the provider.
	State string
	// Error is the provider error code, e.g. "access_denied", if the flow failed.
	Error string
	// ErrorDescription is the optional human-readable detail for Error.
	ErrorDescription string
}

// CallbackServer captures the redirect the browser performs after the user
// approves or denies access, without requiring any server-side component.
//
// It binds TCP on loopback, accepts connections on a dedicated goroutine
// (accept and read are inherently blocking, isolating them keeps the flow
// driver free to apply its own deadline) and reads only the HTTP request line
// of each connection. Requests that do not carry the recognized callback
// parameters, such as favicon probes, are ignored and the loop keeps waiting.
// At most one terminal result is ever produced; once one is found the server
// stops accepting.
type CallbackServer struct {
	port      int
	listener  net.Listener
	resultCh  chan *CallbackResult
	errCh     chan error
	closeOnce sync.Once
}

// NewCallbackServer creates a callback server for the given loopback port.
// Port 0 asks the kernel for an ephemeral port, which the tests use.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{
		port:     port,
		resultCh: make(chan *CallbackResult, 1),
		errCh:    make(chan error, 1),
	}
}

// Start binds the loopback port and begins accepting connections in the
// background. A bind failure is fatal to the flow: the redirect URI is fixed,
// so there is no fallback port to try.
//
// Returns:
//   - error: A FlowError of kind listener_bind_failed if the port is taken
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return newFlowError(KindListenerBind, fmt.Sprintf("failed to bind callback port %d", s.port), err)
	}
	s.listener = listener
	go s.acceptLoop()
	return nil
}

// Port returns the port the server is actually bound to.
func (s *CallbackServer) Port() int {
	if s.listener == nil {
		return s.port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close releases the listening socket. Safe to call multiple times; the
// accept loop exits on the next accept failure.
func (s *CallbackServer) Close() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Wait blocks until a terminal callback arrives, the timeout elapses, or ctx
// is cancelled. On timeout the listening socket is closed so the port is
// freed for a later attempt; the accept goroutine is abandoned and exits on
// its next accept.
//
// Parameters:
//   - ctx: The context bounding the wait
//   - timeout: The overall wait deadline, measured from this call
//
// Returns:
//   - *CallbackResult: The terminal callback outcome
//   - error: A FlowError of kind timeout, or the accept failure
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*CallbackResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errCh:
		s.Close()
		return nil, err
	case <-timer.C:
		s.Close()
		return nil, newFlowError(KindTimeout, "no authentication callback received", nil)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

// acceptLoop accepts connections until a terminal callback is seen or the
// listener is closed. The "already produced a result" flag is the loop break
// itself; no shared state is needed because only this goroutine decides.
func (s *CallbackServer) acceptLoop() {
	defer s.Close()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.errCh <- newFlowError(KindMalformedCallback, "failed to accept callback connection", err)
			return
		}

		result := s.handleConn(conn)
		if result == nil {
			// Stray request (favicon probe, scanner); keep waiting.
			continue
		}

		s.resultCh <- result
		return
	}
}

// handleConn reads the request line of one connection, answers it, and
// returns the terminal result it carries, or nil for non-terminal requests.
// Only the request line is parsed; the callback carries everything in the
// query string, so headers and body are irrelevant.
func (s *CallbackServer) handleConn(conn net.Conn) *CallbackResult {
	defer func() {
		_ = conn.Close()
	}()

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		log.Debugf("callback connection dropped before a request line was read: %v", err)
		return nil
	}

	query, ok := extractQuery(line)
	if !ok {
		return nil
	}
	params := parseQuery(query)

	if code, hasCode := params["code"]; hasCode {
		if state, hasState := params["state"]; hasState {
			_, _ = conn.Write([]byte(callbackSuccessResponse))
			return &CallbackResult{Code: code, State: state}
		}
	}

	if errCode, hasErr := params["error"]; hasErr {
		description := params["error_description"]
		shown := description
		if shown == "" {
			shown = errCode
		}
		_, _ = conn.Write([]byte(fmt.Sprintf(callbackFailureResponse, shown)))
		return &CallbackResult{Error: errCode, ErrorDescription: description}
	}

	return nil
}

// extractQuery pulls the query string out of an HTTP request line of the form
// "GET /callback?code=xxx&state=yyy HTTP/1.1".
func extractQuery(requestLine string) (string, bool) {
	fields := strings.Fields(requestLine)
	if len(fields) < 2 {
		return "", false
	}
	parts := strings.SplitN(fields[1], "?", 2)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// parseQuery splits a raw query string into key/value pairs. The first "="
// separates key from value; pairs without one are skipped.
func parseQuery(query string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		params[kv[0]] = urlDecode(kv[1])
	}
	return params
}

// urlDecode undoes form encoding in a callback parameter. Providers
// percent-encode error descriptions; anything undecodable is kept verbatim.
func urlDecode(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
