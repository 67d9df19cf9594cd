package dto

// BalanceQuery optionally asks whether a specific duration would fit.
type BalanceQuery struct {
	RequiredSeconds float64 `form:"required_seconds" binding:"omitempty,min=0"`
}

// BalanceResponse is the quota snapshot for one user. Allowed and
// MissingSeconds appear only when required_seconds was asked.
type BalanceResponse struct {
	UserID                int64   `json:"user_id"`
	FreeRemainingSeconds  float64 `json:"free_remaining_seconds"`
	BalanceSeconds        float64 `json:"balance_seconds"`
	TotalAvailableSeconds float64 `json:"total_available_seconds"`
	Allowed               *bool   `json:"allowed,omitempty"`
	MissingSeconds        float64 `json:"missing_seconds,omitempty"`
}
