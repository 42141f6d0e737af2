// Package main provides a CI-friendly WebSocket smoke test for the warden strength meter.
//
// It validates:
//   - handshake + subprotocol selection
//   - evaluate -> report for a weak and a strong password
//   - bad JSON is answered with an error and the session survives
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "warden/shared/contracts/meter/v1"
)

const maxReadBytes = 1 << 16

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", envOr("WARDEN_SMOKE_URL", "ws://127.0.0.1:8080/v1/passwords/meter"), "WebSocket URL")
		origin  = flag.String("origin", envOr("WARDEN_SMOKE_ORIGIN", "http://localhost"), "Origin header to send (browser-like WS handshake)")
		weak    = flag.String("weak", "aaaaaaaa", "Password expected to fail the policy")
		strong  = flag.String("strong", "Correct-Horse-42", "Password expected to pass the policy")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	c := mustConnect(root, *wsURL, *origin, *timeout)
	defer closeWS(c.conn)

	rep := c.mustEvaluate(root, "weak-1", *weak, *timeout)
	if rep.Valid || len(rep.Violations) == 0 {
		fatalf("weak password accepted: %+v", rep)
	}
	if *verbose {
		fmt.Printf("weak: strength=%d violations=%v\n", rep.Strength, rep.Violations)
	}

	rep = c.mustEvaluate(root, "strong-1", *strong, *timeout)
	if !rep.Valid || len(rep.Violations) != 0 {
		fatalf("strong password rejected: %+v", rep)
	}
	if *verbose {
		fmt.Printf("strong: strength=%d score=%d\n", rep.Strength, rep.Estimate.Score)
	}

	mustWriteRaw(root, c.conn, []byte("{not json"), *timeout)
	errEnv := c.mustReadUntilType(root, v1.TypeError, *timeout)
	var ep v1.ErrorPayload
	if err := json.Unmarshal(errEnv.Payload, &ep); err != nil {
		fatalf("unmarshal error payload: %v", err)
	}
	if ep.Code != "bad_json" {
		fatalf("error code mismatch: got=%q want=%q", ep.Code, "bad_json")
	}

	_ = c.mustEvaluate(root, "after-error", *strong, *timeout)

	fmt.Println("PASS: meter smoke")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 16),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if env.V != v1.Version {
				select {
				case c.errCh <- fmt.Errorf("bad envelope version: %q", env.V):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustEvaluate(parent context.Context, id, password string, stepTimeout time.Duration) v1.ReportPayload {
	req := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeEvaluate,
		ID:      id,
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.EvaluatePayload{Password: password}),
	}
	b, err := json.Marshal(req)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	mustWriteRaw(parent, c.conn, b, stepTimeout)

	env := c.mustReadUntilType(parent, v1.TypeReport, stepTimeout)
	if env.ReplyTo != id {
		fatalf("report reply_to mismatch: got=%q want=%q", env.ReplyTo, id)
	}

	var rep v1.ReportPayload
	if err := json.Unmarshal(env.Payload, &rep); err != nil {
		fatalf("unmarshal report payload: %v", err)
	}
	if rep.Strength < 0 || rep.Strength > 100 {
		fatalf("strength out of range: %d", rep.Strength)
	}
	return rep
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q: %v", wantType, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q", wantType)
			}
			fatalf("connection error while waiting for %q: %v", wantType, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q", wantType)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type: got=%q want=%q", env.Type, wantType)
		}
	}
}

func mustWriteRaw(parent context.Context, conn *websocket.Conn, b []byte, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
