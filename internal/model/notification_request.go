package model

type NotificationRequest struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Ctime      int64  `json:"ctime"`
	ExpiresAt  int64  `json:"expires_at"`
	SentAt     int64  `json:"sent_at,omitempty"`
	EmployeeID int64  `json:"employee_id"`
}
