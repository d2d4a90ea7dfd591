package models

// ActionKind is the transfer strategy a category applies once files are fetched locally
type ActionKind string

const (
	ActionNothing ActionKind = "Nothing"
	ActionCopy    ActionKind = "Copy"
	ActionMove    ActionKind = "Move"
)

// ParseActionKind maps a configured action name to an ActionKind, defaulting to Nothing
func ParseActionKind(s string) ActionKind {
	switch ActionKind(s) {
	case ActionCopy:
		return ActionCopy
	case ActionMove:
		return ActionMove
	default:
		return ActionNothing
	}
}

// Client identifies where a download lives
type Client string

const (
	ClientTorBox Client = "TorBox"
)

// LocalStatus is the operator-facing lifecycle label of a download
type LocalStatus string

const (
	StatusClientInit     LocalStatus = "Client: Init"
	StatusClientProgress LocalStatus = "Client: Progress"
	StatusClientDone     LocalStatus = "Client: Done"
	StatusLocalNew       LocalStatus = "Local: New"
	StatusLocalProgress  LocalStatus = "Local: Progress"
	StatusLocalDone      LocalStatus = "Local: Done"
	StatusLocalError     LocalStatus = "Local: Error"
	StatusFinishStarted  LocalStatus = "Finish: Started"
	StatusFinishProgress LocalStatus = "Finish: Progress"
	StatusFinishDone     LocalStatus = "Finish: Done"
	StatusFinishError    LocalStatus = "Finish: Error"
)

// LogLevel is the severity of an audit log entry
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)
