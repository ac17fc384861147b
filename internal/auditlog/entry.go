package auditlog

import "time"

// Action identifies the authentication operation an entry records
type Action string

const (
	ActionRegister      Action = "register"
	ActionActivate      Action = "activate"
	ActionLogin         Action = "login"
	ActionLogout        Action = "logout"
	ActionRefresh       Action = "refresh"
	ActionRequestReset  Action = "request_reset"
	ActionResetPassword Action = "reset_password"
	ActionOther         Action = "other"
)

// Status is the outcome of the recorded operation
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// ValidAction reports whether a string names a known action
func ValidAction(a Action) bool {
	switch a {
	case ActionRegister, ActionActivate, ActionLogin, ActionLogout,
		ActionRefresh, ActionRequestReset, ActionResetPassword, ActionOther:
		return true
	}
	return false
}

// Entry is one immutable authentication event. Written once, never updated.
type Entry struct {
	UserID    int64     `json:"userId"`
	Action    Action    `json:"action"`
	Status    Status    `json:"status"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Details   string    `json:"details,omitempty"` // JSON-encoded context
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows query results. Zero values mean "no constraint".
type Filter struct {
	UserID int64
	Action Action
	Status Status
}

func (f Filter) matches(e Entry) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}
