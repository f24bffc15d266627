// Package rasession orchestrates RetroAchievements tracking for one
// running game at a time: it resolves the ROM against the backend,
// brings the native achievement engine up once the user is known, gates
// emulator control actions while hardcore mode is on, and tears
// everything down on exit so re-entering a game always starts clean.
package rasession

import (
	"log"
	"sync"

	"github.com/user-none/rasession/bridge"
	"github.com/user-none/rasession/notify"
	"github.com/user-none/rasession/policy"
	"github.com/user-none/rasession/resolver"
	"github.com/user-none/rasession/romfile"
	"github.com/user-none/rasession/storage"
)

// Settings carries the per-launch achievement options.
type Settings struct {
	Hardcore    bool
	Encore      bool
	Spectator   bool
	UnlockSound bool
	Username    string
	Token       string
}

// SettingsFromConfig builds launch settings from the stored
// RetroAchievements configuration.
func SettingsFromConfig(cfg *storage.RetroAchievementsConfig) Settings {
	return Settings{
		Hardcore:    cfg.Hardcore,
		Encore:      cfg.EncoreMode,
		Spectator:   cfg.SpectatorMode,
		UnlockSound: cfg.UnlockSound,
		Username:    cfg.Username,
		Token:       cfg.Token,
	}
}

// Runtime is the session lifecycle manager. It owns the phase machine
// Inactive -> Resolving -> Recognized -> Active -> Ending -> Inactive
// and is the only component that mutates the policy gate or the
// notification coordinator's session state.
type Runtime struct {
	resolver *resolver.Resolver
	bridge   *bridge.Bridge
	gate     *policy.Gate
	notify   *notify.Coordinator

	mu       sync.Mutex
	phase    Phase
	settings Settings
	core     bridge.Core
	sub      *bridge.Subscription
	subDone  chan struct{}
}

// New creates a runtime around its collaborators.
func New(res *resolver.Resolver, br *bridge.Bridge, gate *policy.Gate, coordinator *notify.Coordinator) *Runtime {
	return &Runtime{
		resolver: res,
		bridge:   br,
		gate:     gate,
		notify:   coordinator,
	}
}

// Phase returns the current lifecycle phase.
func (r *Runtime) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// CheckAction reports whether an emulator control action is currently
// blocked, returning the block reason or "" when allowed. Synchronous
// and cheap; called before every save/load/rewind/fast-forward.
func (r *Runtime) CheckAction(action policy.Action) string {
	return r.gate.CheckAction(action)
}

// ActiveSession returns the resolved session, or nil.
func (r *Runtime) ActiveSession() *resolver.GameSession {
	return r.resolver.ActiveSession()
}

// AchievementSet returns the resolved achievement set, or nil.
func (r *Runtime) AchievementSet() *resolver.AchievementSet {
	return r.resolver.AchievementSet()
}

// IsResolving reports whether ROM resolution is in flight.
func (r *Runtime) IsResolving() bool {
	return r.resolver.IsResolving()
}

// DoFrame drives the native engine's per-frame achievement evaluation.
// Called from the emulation loop; a no-op outside an active session.
func (r *Runtime) DoFrame() {
	r.bridge.DoFrame()
}

// Idle drives the native engine's periodic tasks while paused.
func (r *Runtime) Idle() {
	r.bridge.Idle()
}

// Launch starts a tracking session for the given ROM. Resolution runs
// in the background; gameplay is never blocked on it. Ignored if a
// session is already underway.
func (r *Runtime) Launch(identity *romfile.Identity, core bridge.Core, settings Settings) {
	r.mu.Lock()
	if r.phase != PhaseInactive {
		r.mu.Unlock()
		log.Printf("[Session] Launch ignored in phase %v", r.phase)
		return
	}
	r.phase = PhaseResolving
	r.settings = settings
	r.core = core
	r.mu.Unlock()

	r.notify.Reset()
	r.notify.SetUnlockSound(settings.UnlockSound)
	r.resolver.SetCredentials(settings.Username, settings.Token)
	r.resolver.Start(identity, r.onResolved)
}

// onResolved advances to Recognized and, when the ROM is known and the
// user authenticated, activates policy and the native bridge.
func (r *Runtime) onResolved(session *resolver.GameSession, set *resolver.AchievementSet) {
	r.mu.Lock()
	if r.phase != PhaseResolving {
		// Session ended while resolution was in flight.
		r.mu.Unlock()
		return
	}
	r.phase = PhaseRecognized
	settings, core := r.settings, r.core
	r.mu.Unlock()

	if !session.Recognized() {
		log.Printf("[Session] ROM not recognized, achievements disabled")
		r.notify.Notify(notify.Request{Title: "Game not recognized", Icon: notify.IconInfo, Accent: notify.AccentSilver})
		return
	}
	if settings.Username == "" || settings.Token == "" {
		log.Printf("[Session] not logged in, achievements disabled")
		r.notify.Notify(notify.Request{Title: "Not logged in", Icon: notify.IconInfo, Accent: notify.AccentSilver})
		return
	}

	// Slow-path summary; a no-op if the native load announces first.
	r.notify.ShowSummary(set)

	r.activate(session, settings, core)
}

// activate applies mode flags, brings the engine up, and starts the
// login-then-load sequence. Any failure leaves achievements off with
// gameplay untouched.
func (r *Runtime) activate(session *resolver.GameSession, settings Settings, core bridge.Core) {
	// Flags are pushed before Initialize so the engine starts in the
	// right mode; the gate below must agree with the hardcore flag.
	r.bridge.SetHardcoreEnabled(settings.Hardcore)
	r.bridge.SetEncoreEnabled(settings.Encore)
	r.bridge.SetSpectatorEnabled(settings.Spectator)

	if err := r.bridge.Initialize(core); err != nil {
		log.Printf("[Session] native engine init failed: %v", err)
		return
	}

	r.gate.Activate(settings.Hardcore)

	sub := r.bridge.Subscribe()
	done := make(chan struct{})

	r.mu.Lock()
	r.phase = PhaseActive
	r.sub = sub
	r.subDone = done
	r.mu.Unlock()

	go r.eventLoop(sub, done, session.RomHash)

	r.bridge.BeginLogin(settings.Username, settings.Token)
}

// eventLoop consumes the native event stream for the session. It
// enforces the login-then-load ordering and feeds every event to the
// notification coordinator. Exits when the subscription closes.
func (r *Runtime) eventLoop(sub *bridge.Subscription, done chan struct{}, romHash string) {
	defer close(done)

	for ev := range sub.C {
		switch e := ev.(type) {
		case bridge.LoginSuccess:
			// Load must not be issued before login succeeds.
			r.bridge.BeginLoadGame(romHash)

		case bridge.LoginFailed:
			// Auth failure disables achievements; the gate must not
			// stay armed for a session that is not being tracked.
			log.Printf("[Session] login failed: %s", e.Reason)
			r.gate.Deactivate()

		case bridge.GameLoadFailed:
			log.Printf("[Session] game load failed: %s", e.Reason)

		case bridge.AchievementTriggered:
			r.resolver.ApplyUnlock(e.ID, r.gate.Hardcore())
		}

		r.notify.HandleEvent(ev)
	}
}

// Exit ends the session. Every teardown step runs even if an earlier
// one panics, so a failure in one can never leave the gate stuck
// active or the resolver stuck resolving. Safe to call repeatedly and
// while resolution is still in flight.
func (r *Runtime) Exit() {
	r.mu.Lock()
	if r.phase == PhaseInactive {
		r.mu.Unlock()
		return
	}
	r.phase = PhaseEnding
	sub, done := r.sub, r.subDone
	r.sub = nil
	r.subDone = nil
	r.core = nil
	r.mu.Unlock()

	safely("policy deactivate", r.gate.Deactivate)
	if sub != nil {
		safely("unsubscribe", sub.Close)
	}
	safely("engine shutdown", r.bridge.Shutdown)
	safely("resolver end", r.resolver.End)
	safely("notification reset", r.notify.Reset)

	if done != nil {
		<-done
	}

	r.mu.Lock()
	r.phase = PhaseInactive
	r.mu.Unlock()
}

// SetHardcore changes hardcore mode for the active session, keeping
// the policy gate and the engine flag in lockstep.
func (r *Runtime) SetHardcore(enabled bool) {
	r.mu.Lock()
	r.settings.Hardcore = enabled
	active := r.phase == PhaseActive
	r.mu.Unlock()

	r.bridge.SetHardcoreEnabled(enabled)
	if active {
		r.gate.Activate(enabled)
	}
}

// safely runs one teardown step, logging instead of propagating a
// panic so the remaining steps still execute.
func safely(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Session] %s failed: %v", name, rec)
		}
	}()
	fn()
}
