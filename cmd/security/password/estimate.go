package password

import (
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Estimate is an advisory, pattern-aware strength estimate. It never feeds
// into Report; the policy score stays the deterministic Strength formula.
type Estimate struct {
	Score            int     `json:"score"` // 0..4
	EntropyBits      float64 `json:"entropy_bits"`
	CrackTimeDisplay string  `json:"crack_time_display"`
}

// EstimateStrength runs zxcvbn over password. userInputs (username, email, ...)
// are penalized when they appear inside the password.
func EstimateStrength(password string, userInputs ...string) Estimate {
	res := zxcvbn.PasswordStrength(password, userInputs)
	return Estimate{
		Score:            res.Score,
		EntropyBits:      res.Entropy,
		CrackTimeDisplay: res.CrackTimeDisplay,
	}
}
