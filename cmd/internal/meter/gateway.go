// Package meter serves the live password strength meter over WebSocket.
//
// Each evaluate envelope is answered with a report built from the password
// engine. The gateway holds no per-user state and never persists or logs the
// candidate passwords it receives.
package meter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"warden/cmd/credential/ids"
	"warden/cmd/security/password"
	v1 "warden/shared/contracts/meter/v1"
)

// Gateway is the WebSocket entrypoint for the strength meter.
//
// It enforces origin policy, subprotocol selection, read limits, idle
// timeouts, heartbeats and a per-connection rate limit.
type Gateway struct {
	log    *slog.Logger
	engine *password.Engine
	cfg    Config
}

// NewGateway constructs a gateway. engine supplies the policy and MaxLength.
func NewGateway(log *slog.Logger, engine *password.Engine, cfg Config) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	if engine == nil {
		return nil, errors.New("meter: nil engine")
	}
	return &Gateway{log: log, engine: engine, cfg: cfg.withDefaults()}, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the meter loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("meter.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{v1.Subprotocol},

		// websocket.Accept only authorizes same-host origins by itself; derive
		// host patterns from the allowlist so both layers agree.
		OriginPatterns: g.cfg.Origins.HostPatterns(),

		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("meter.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("meter.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID, _ := ids.NewULID(time.Now().UTC())
	log := g.log.With("session_id", sessionID)
	log.Debug("meter.open")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, log, cancel)
	}()

	status, reason := g.readLoop(ctx, conn, log)
	cancel()
	_ = conn.Close(status, reason)

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	log.Debug("meter.close", "reason", reason)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, log *slog.Logger) (websocket.StatusCode, string) {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				return websocket.StatusNormalClosure, "peer closed"
			case readErrCtxDone:
				return websocket.StatusNormalClosure, "idle timeout"
			case readErrConnClosed:
				return websocket.StatusAbnormalClosure, "conn closed"
			case readErrBadJSON:
				if err := g.sendError(ctx, conn, "", "bad_json", "invalid JSON"); err != nil {
					return websocket.StatusAbnormalClosure, "write failed"
				}
				continue
			default:
				log.Info("meter.read.fail", "err", err)
				return websocket.StatusAbnormalClosure, "read failed"
			}
		}

		if ok, retry := rl.Allow(time.Now().UTC()); !ok {
			_ = g.sendError(ctx, conn, env.ID, "rate_limited", fmt.Sprintf("too many events, retry in %s", retry.Round(time.Millisecond)))
			return websocket.StatusPolicyViolation, "rate limited"
		}

		if err := env.Validate(); err != nil {
			if err := g.sendError(ctx, conn, env.ID, "bad_envelope", err.Error()); err != nil {
				return websocket.StatusAbnormalClosure, "write failed"
			}
			continue
		}

		if err := g.onEvaluate(ctx, conn, env); err != nil {
			log.Info("meter.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
			return websocket.StatusAbnormalClosure, "write failed"
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, log *slog.Logger, stop context.CancelFunc) {
	t := time.NewTicker(g.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				log.Info("meter.ping.fail", "failures", failures, "err", err)
				if failures >= wsMaxPingFailures {
					stop()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// ---- handlers ----

// onEvaluate answers one evaluate request. Payload problems are reported to
// the client; only write failures are returned.
func (g *Gateway) onEvaluate(ctx context.Context, conn *websocket.Conn, env v1.Envelope) error {
	var p v1.EvaluatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return g.sendError(ctx, conn, env.ID, "bad_payload", "invalid payload")
	}

	if maxLen := g.engine.Config().Policy.MaxLength; maxLen > 0 && utf8.RuneCountInString(p.Password) > maxLen {
		return g.sendError(ctx, conn, env.ID, "password_too_long", fmt.Sprintf("max=%d chars", maxLen))
	}

	report := g.engine.Validate(p.Password)
	est := password.EstimateStrength(p.Password, p.UserInputs...)

	violations := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		violations = append(violations, string(v))
	}

	payload, _ := json.Marshal(v1.ReportPayload{
		Valid:      report.Valid,
		Violations: violations,
		Strength:   report.Strength,
		Estimate: v1.EstimatePayload{
			Score:            est.Score,
			EntropyBits:      est.EntropyBits,
			CrackTimeDisplay: est.CrackTimeDisplay,
		},
	})
	return g.write(ctx, conn, newEnvelope(v1.TypeReport, env.ID, payload))
}

// ---- send helpers ----

func (g *Gateway) sendError(ctx context.Context, conn *websocket.Conn, replyTo, code, msg string) error {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	return g.write(ctx, conn, newEnvelope(v1.TypeError, replyTo, p))
}

func (g *Gateway) write(parent context.Context, conn *websocket.Conn, env v1.Envelope) error {
	ctx, cancel := context.WithTimeout(parent, g.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, env)
}

// ---- envelope IO ----

func newEnvelope(typ, replyTo string, payload json.RawMessage) v1.Envelope {
	now := time.Now().UTC()
	id, _ := ids.NewULID(now)
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		ReplyTo: replyTo,
		TS:      now,
		Payload: payload,
	}
}

var errBadJSON = errors.New("bad json")

// readEnvelope reads one frame and decodes it. Decoding is done here rather
// than via wsjson.Read, which closes the connection on malformed JSON.
func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return env, nil
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}
	if g.cfg.Origins.Empty() {
		return errors.New("origin not allowed (no allowlist)")
	}
	if !g.cfg.Origins.Allowed(origin) {
		return fmt.Errorf("origin not allowed: %s", origin)
	}
	return nil
}
