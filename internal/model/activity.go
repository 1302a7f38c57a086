package model

// EventKind selects the Activity Log Sink tab and the required fields of an
// Event.
type EventKind string

const (
	EventSignup       EventKind = "signup"
	EventLogin        EventKind = "login"
	EventLoginInfo    EventKind = "loginInfo"
	EventChatQuestion EventKind = "chatQuestion"
)

// Event is one activity record before it is timestamped. The Activity Log
// Sink receives it as a row: login and loginInfo go to the Logins tab,
// chatQuestion to the chat tab, signup to Signups.
//
// Which fields are required depends on Kind:
//   - signup:       Email
//   - login:        Email, Name
//   - loginInfo:    Email
//   - chatQuestion: Email, Question
type Event struct {
	Kind         EventKind
	Email        string
	Name         string
	IPAddress    string
	Question     string
	Username     string
	Organization string
	Purpose      string
}
