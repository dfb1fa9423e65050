package model

// VerificationRequest is one identity challenge. Secret never leaves the
// service except through the companion NotificationRequest.
type VerificationRequest struct {
	ID         int64  `json:"id"`
	Reference  string `json:"reference"`
	Secret     string `json:"-"`
	Active     bool   `json:"active"`
	Ctime      int64  `json:"ctime"`
	ExpiresAt  int64  `json:"expires_at"`
	VerifiedAt int64  `json:"verified_at,omitempty"`
	EmployeeID int64  `json:"employee_id"`
}

// Usable reports whether the request may still be checked at now.
func (r *VerificationRequest) Usable(now int64) bool {
	return r.Active && now < r.ExpiresAt
}
