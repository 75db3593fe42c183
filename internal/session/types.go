package session

import "time"

// Session is one durable login record. Rows accumulate per user; the manager
// keeps at most one of them active.
type Session struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Token            string    `json:"-"`
	DeviceInfo       string    `json:"device_info"`
	LoginTime        time.Time `json:"login_time"`
	LastActivityTime time.Time `json:"last_activity_time"`
	IsActive         bool      `json:"is_active"`
}
