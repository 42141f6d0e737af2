package credentialapi

import (
	"time"

	"warden/cmd/security/password"
)

type validateRequest struct {
	Password   string   `json:"password"`
	UserInputs []string `json:"user_inputs,omitempty"`
}

type validateResponse struct {
	Valid      bool                     `json:"valid"`
	Violations []password.ViolationKind `json:"violations"`
	Strength   int                      `json:"strength"`
	Estimate   password.Estimate        `json:"estimate"`
}

type enrollRequest struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

type enrollResponse struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Strength  int       `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}

// policyErrorResponse extends the standard error envelope with the rejected
// password's report.
type policyErrorResponse struct {
	Error      apiError                 `json:"error"`
	Violations []password.ViolationKind `json:"violations"`
	Strength   int                      `json:"strength"`
}

type verifyRequest struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}
