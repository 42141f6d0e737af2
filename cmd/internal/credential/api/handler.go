package credentialapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"warden/cmd/credential"
	"warden/cmd/security/password"
)

var errGateBusy = errors.New("hash gate busy")

// Handler wires HTTP credential endpoints to the credential service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     *credential.Service
	metrics *Metrics
	gate    *hashGate
}

// NewHandler constructs a credential API Handler. metrics may be nil.
func NewHandler(log *slog.Logger, svc *credential.Service, cfg Config, metrics *Metrics) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("credentialapi: nil service")
	}

	return &Handler{
		log:     log,
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
		gate:    newHashGate(cfg.HashMaxConcurrent, cfg.HashWaitTimeout, metrics),
	}, nil
}

// Register wires credential routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/v1/passwords/validate", h.handleValidate)
	mux.HandleFunc("/v1/credentials", h.handleEnroll)
	mux.HandleFunc("/v1/credentials/verify", h.handleVerify)
}

// ---- handlers ----

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req validateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if h.tooLong(req.Password) {
		writeError(w, http.StatusBadRequest, "password_too_long", "password exceeds maximum length")
		return
	}

	report, est := h.svc.Evaluate(req.Password, req.UserInputs...)
	h.metrics.observeReport(report)

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:      report.Valid,
		Violations: report.Violations,
		Strength:   report.Strength,
		Estimate:   est,
	})
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req enrollRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if h.tooLong(req.Password) {
		writeError(w, http.StatusBadRequest, "password_too_long", "password exceeds maximum length")
		return
	}

	// Policy rejections are cheap; answer them without taking a hashing slot.
	if report := h.svc.Engine().Validate(req.Password); !report.Valid {
		h.metrics.observeReport(report)
		writePolicyError(w, report)
		return
	}

	var cred credential.Credential
	err := h.gate.do(r.Context(), "enroll", func(ctx context.Context) error {
		var err error
		cred, err = h.svc.Enroll(ctx, req.Subject, req.Password)
		return err
	})
	if err != nil {
		if pe, ok := credential.AsPolicyError(err); ok {
			h.metrics.observeReport(pe.Report)
			writePolicyError(w, pe.Report)
			return
		}
		h.writeServiceError(w, "credential.enroll.fail", err)
		return
	}

	h.metrics.observeReport(password.Report{Valid: true})
	h.log.Info("credential.enroll.ok", "credential_id", cred.ID, "strength", cred.Strength)

	writeJSON(w, http.StatusCreated, enrollResponse{
		ID:        cred.ID,
		Subject:   cred.Subject,
		Strength:  cred.Strength,
		CreatedAt: cred.CreatedAt,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if h.tooLong(req.Password) {
		writeError(w, http.StatusBadRequest, "password_too_long", "password exceeds maximum length")
		return
	}

	var res credential.CheckResult
	err := h.gate.do(r.Context(), "verify", func(ctx context.Context) error {
		var err error
		res, err = h.svc.Check(ctx, req.Subject, req.Password)
		return err
	})
	if err != nil {
		h.writeServiceError(w, "credential.verify.fail", err)
		return
	}
	if res.RehashErr != nil {
		h.log.Warn("credential.rehash.fail", "err", res.RehashErr)
	} else if res.Rehashed {
		h.log.Info("credential.rehash.ok")
	}

	writeJSON(w, http.StatusOK, verifyResponse{Verified: res.Verified})
}

// ---- helpers ----

func (h *Handler) tooLong(pw string) bool {
	maxLen := h.svc.Engine().Config().Policy.MaxLength
	return maxLen > 0 && utf8.RuneCountInString(pw) > maxLen
}

func writePolicyError(w http.ResponseWriter, report password.Report) {
	writeJSON(w, http.StatusUnprocessableEntity, policyErrorResponse{
		Error:      apiError{Code: "password_policy", Message: "password does not satisfy policy"},
		Violations: report.Violations,
		Strength:   report.Strength,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, errGateBusy):
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
	case errors.Is(err, credential.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "password_too_long", "password exceeds maximum length")
	case credential.IsConflict(err):
		writeError(w, http.StatusConflict, "subject_taken", "subject already enrolled")
	case credential.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_subject", "subject is required (max 320 characters)")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
