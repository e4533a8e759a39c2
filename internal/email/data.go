package email

import "time"

// KeyData renders activation and reset emails.
type KeyData struct {
	Site    string
	Name    string
	URL     string
	Expires time.Time
	Now     time.Time
}

type InviteData struct {
	Site    string
	Company string
	Inviter string
	URL     string
}

type ReminderData struct {
	Title       string
	Description string
	Start       time.Time
	Minutes     int
	URL         string
}

type BounceData struct {
	Subject string
	To      []string
	Reason  string
}

type OpsData struct {
	Site      string
	Model     string
	Action    string
	CompanyID string
	UserID    string
	TargetID  string
	Kwargs    string
	Error     string
	Stack     string
}
