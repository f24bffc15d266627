package bridge

// Event is a runtime event raised by the native achievement engine.
// Each variant carries only the fields that variant needs; consumers
// switch on the concrete type.
type Event interface {
	event()
}

// ProgressSummary is the unlock count snapshot reported when a game loads.
type ProgressSummary struct {
	Unlocked       uint32
	Total          uint32
	UnlockedPoints uint32
	TotalPoints    uint32
}

// AchievementTriggered is raised when the engine unlocks an achievement.
// Reachieved marks encore-mode re-unlocks of achievements the user had
// already earned on the server.
type AchievementTriggered struct {
	ID          uint32
	Title       string
	Description string
	Points      uint32
	BadgeURL    string
	Reachieved  bool
}

// GameCompleted is raised when every core achievement has been unlocked.
type GameCompleted struct {
	Title string
}

// GameLoadSuccess is raised when the engine finishes loading a game.
type GameLoadSuccess struct {
	Title    string
	BadgeURL string
	Summary  ProgressSummary
}

// GameLoadFailed is raised when the engine could not load a game.
type GameLoadFailed struct {
	Reason string
}

// LoginSuccess is raised when an asynchronous login completes.
type LoginSuccess struct {
	Username string
}

// LoginFailed is raised when an asynchronous login fails.
type LoginFailed struct {
	Reason string
}

// ServerError is raised for a failed API call inside the engine. It is
// informational; the engine keeps running.
type ServerError struct {
	Message string
}

// Disconnected is raised when the engine loses server connectivity and
// starts queueing unlocks.
type Disconnected struct{}

// Reconnected is raised when connectivity returns and queued unlocks
// have been submitted.
type Reconnected struct{}

func (AchievementTriggered) event() {}
func (GameCompleted) event()        {}
func (GameLoadSuccess) event()      {}
func (GameLoadFailed) event()       {}
func (LoginSuccess) event()         {}
func (LoginFailed) event()          {}
func (ServerError) event()          {}
func (Disconnected) event()         {}
func (Reconnected) event()          {}
