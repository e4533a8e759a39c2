package model

// Level is the severity attached to an operation result and the notification it produces.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Result is an expected outcome returned as a value: "already read", "delivery failed" and the like.
type Result struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	// Source is what the result is about; zero when the outcome has no subject.
	Source Ref `json:"source,omitempty"`
}

func Success(msg string) Result { return Result{Level: LevelSuccess, Message: msg} }
func Info(msg string) Result    { return Result{Level: LevelInfo, Message: msg} }
func Warning(msg string) Result { return Result{Level: LevelWarning, Message: msg} }
func Failure(msg string) Result { return Result{Level: LevelError, Message: msg} }

// About attaches the subject of the result.
func (r Result) About(ref Ref) Result {
	r.Source = ref
	return r
}

// OK reports a successful outcome.
func (r Result) OK() bool {
	return r.Level == LevelSuccess
}
