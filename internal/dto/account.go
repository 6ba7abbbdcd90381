package dto

// AccountDecisionRequest names the account an admin approves or rejects.
type AccountDecisionRequest struct {
	UserID string `json:"userId"`
}
