package bridge

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	rcheevos "github.com/user-none/go-rcheevos"
)

// RcheevosEngine drives the rcheevos client library. It owns the client
// handle, translates its callback results and events into bridge events,
// and services its HTTP requests.
type RcheevosEngine struct {
	mu     sync.Mutex
	client *rcheevos.Client
	core   Core
	emit   func(Event)

	// earned tracks achievement IDs unlocked at load time or during this
	// session, to tag encore-mode re-unlocks.
	earned map[uint32]bool

	httpClient *http.Client
	userAgent  string
	appName    string
	appVersion string

	// SuppressHardcoreWarning drops the synthetic "Unknown Emulator"
	// warning achievement raised when the server does not recognize the
	// emulator for hardcore play.
	SuppressHardcoreWarning bool
}

// NewRcheevosEngine creates an engine for the given application identity.
// The name and version go into the User-Agent of every API request.
func NewRcheevosEngine(appName, appVersion string) *RcheevosEngine {
	return &RcheevosEngine{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		appName:    appName,
		appVersion: appVersion,
	}
}

// Init creates the rcheevos client with memory and server callbacks and
// installs the event handler.
func (e *RcheevosEngine) Init(core Core, emit func(Event)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return fmt.Errorf("rcheevos client already created")
	}

	e.core = core
	e.emit = emit
	e.earned = make(map[uint32]bool)

	e.client = rcheevos.NewClient(e.readMemory, e.serverCall)
	e.userAgent = fmt.Sprintf("%s/%s %s", e.appName, e.appVersion, e.client.GetUserAgentClause())
	e.client.SetEventHandler(e.handleEvent)

	return nil
}

// SetHardcoreEnabled toggles hardcore mode on the client.
func (e *RcheevosEngine) SetHardcoreEnabled(enabled bool) {
	if c := e.clientHandle(); c != nil {
		c.SetHardcoreEnabled(enabled)
	}
}

// SetEncoreEnabled toggles encore mode on the client.
func (e *RcheevosEngine) SetEncoreEnabled(enabled bool) {
	if c := e.clientHandle(); c != nil {
		c.SetEncoreModeEnabled(enabled)
	}
}

// SetSpectatorEnabled toggles spectator mode on the client.
func (e *RcheevosEngine) SetSpectatorEnabled(enabled bool) {
	if c := e.clientHandle(); c != nil {
		c.SetSpectatorModeEnabled(enabled)
	}
}

// BeginLogin starts a token login. The outcome is emitted as
// LoginSuccess or LoginFailed.
func (e *RcheevosEngine) BeginLogin(username, token string) {
	c := e.clientHandle()
	if c == nil {
		return
	}

	c.LoginWithToken(username, token, func(result int, errorMessage string) {
		if result != rcheevos.OK {
			e.send(LoginFailed{Reason: errorMessage})
			return
		}

		name := username
		if user := c.GetUser(); user != nil {
			name = user.Username
		}
		e.send(LoginSuccess{Username: name})
	})
}

// BeginLoadGame starts loading the game identified by hash. The outcome
// is emitted as GameLoadSuccess with an unlock summary, or GameLoadFailed.
func (e *RcheevosEngine) BeginLoadGame(hash string) {
	c := e.clientHandle()
	if c == nil {
		return
	}

	c.LoadGame(hash, func(result int, errorMessage string) {
		if result != rcheevos.OK {
			e.send(GameLoadFailed{Reason: errorMessage})
			return
		}
		e.send(e.loadSuccessEvent(c))
	})
}

// loadSuccessEvent snapshots the loaded game and its unlock counts.
func (e *RcheevosEngine) loadSuccessEvent(c *rcheevos.Client) GameLoadSuccess {
	ev := GameLoadSuccess{
		BadgeURL: c.GetGameImageURL(),
	}
	if game := c.GetGame(); game != nil {
		ev.Title = game.Title
	}

	list := c.CreateAchievementList(rcheevos.AchievementCategoryCore, rcheevos.AchievementListGroupingLockState)
	if list == nil {
		return ev
	}
	defer list.Destroy()

	e.mu.Lock()
	for _, ach := range list.GetAllAchievements() {
		// 0-point entries are warnings, not real achievements.
		if ach.Points == 0 {
			continue
		}
		ev.Summary.Total++
		ev.Summary.TotalPoints += ach.Points
		if ach.Unlocked != rcheevos.AchievementUnlockedNone {
			ev.Summary.Unlocked++
			ev.Summary.UnlockedPoints += ach.Points
			e.earned[ach.ID] = true
		}
	}
	e.mu.Unlock()

	return ev
}

// UnloadGame unloads the current game and clears per-session state.
// Spectator mode is switched off so it does not leak into the next
// session.
func (e *RcheevosEngine) UnloadGame() {
	e.mu.Lock()
	c := e.client
	e.earned = make(map[uint32]bool)
	e.mu.Unlock()

	if c != nil {
		c.UnloadGame()
		c.SetSpectatorModeEnabled(false)
	}
}

// DoFrame processes achievement conditions for the current frame.
func (e *RcheevosEngine) DoFrame() {
	if c := e.clientHandle(); c != nil {
		c.DoFrame()
	}
}

// Idle processes periodic client tasks while paused.
func (e *RcheevosEngine) Idle() {
	if c := e.clientHandle(); c != nil {
		c.Idle()
	}
}

// Destroy releases the client. A later Init creates a fresh one.
func (e *RcheevosEngine) Destroy() {
	e.mu.Lock()
	c := e.client
	e.client = nil
	e.core = nil
	e.earned = nil
	e.mu.Unlock()

	if c != nil {
		c.Destroy()
	}
}

func (e *RcheevosEngine) clientHandle() *rcheevos.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

func (e *RcheevosEngine) send(ev Event) {
	e.mu.Lock()
	emit := e.emit
	e.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
}

// readMemory is the memory callback for rcheevos. The core adapter maps
// flat addresses to internal memory regions.
func (e *RcheevosEngine) readMemory(address uint32, buffer []byte) uint32 {
	e.mu.Lock()
	core := e.core
	e.mu.Unlock()

	if core == nil {
		return 0
	}
	return core.ReadMemory(address, buffer)
}

// serverCall services the client's HTTP requests to the RetroAchievements
// API on a background goroutine.
func (e *RcheevosEngine) serverCall(request *rcheevos.ServerRequest) {
	go func() {
		var req *http.Request
		var err error

		if request.PostData != "" {
			req, err = http.NewRequest("POST", request.URL, strings.NewReader(request.PostData))
			if err == nil {
				req.Header.Set("Content-Type", request.ContentType)
			}
		} else {
			req, err = http.NewRequest("GET", request.URL, nil)
		}

		if err != nil {
			log.Printf("[Bridge] failed to create request: %v", err)
			request.Respond(nil, 0)
			return
		}

		req.Header.Set("User-Agent", e.userAgent)
		resp, err := e.httpClient.Do(req)
		if err != nil {
			log.Printf("[Bridge] HTTP error: %v", err)
			request.Respond(nil, 0)
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Printf("[Bridge] read error: %v", err)
			request.Respond(nil, resp.StatusCode)
			return
		}

		request.Respond(body, resp.StatusCode)
	}()
}

// handleEvent translates rcheevos events into bridge events.
func (e *RcheevosEngine) handleEvent(event *rcheevos.Event) {
	switch event.Type {
	case rcheevos.EventAchievementTriggered:
		if event.Achievement == nil {
			return
		}

		// Copy fields now; the event may become invalid after the handler
		// returns.
		ev := AchievementTriggered{
			ID:          event.Achievement.ID,
			Title:       event.Achievement.Title,
			Description: event.Achievement.Description,
			Points:      event.Achievement.Points,
		}

		isHardcoreWarning := strings.Contains(ev.Title, "Unknown Emulator") ||
			strings.Contains(ev.Description, "Hardcore unlocks cannot be earned")
		if isHardcoreWarning && e.SuppressHardcoreWarning {
			return
		}

		if c := e.clientHandle(); c != nil {
			ev.BadgeURL = c.GetAchievementImageURL(event.Achievement, rcheevos.AchievementStateUnlocked)
		}

		if !isHardcoreWarning {
			e.mu.Lock()
			ev.Reachieved = e.earned[ev.ID]
			if e.earned != nil {
				e.earned[ev.ID] = true
			}
			e.mu.Unlock()
		}

		e.send(ev)

	case rcheevos.EventGameCompleted:
		ev := GameCompleted{}
		if c := e.clientHandle(); c != nil {
			if game := c.GetGame(); game != nil {
				ev.Title = game.Title
			}
		}
		e.send(ev)

	case rcheevos.EventServerError:
		if event.ServerError != nil {
			e.send(ServerError{Message: event.ServerError.ErrorMessage})
		}

	case rcheevos.EventDisconnected:
		e.send(Disconnected{})

	case rcheevos.EventReconnected:
		e.send(Reconnected{})
	}
}
