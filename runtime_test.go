package rasession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/user-none/rasession/bridge"
	"github.com/user-none/rasession/notify"
	"github.com/user-none/rasession/policy"
	"github.com/user-none/rasession/raweb"
	"github.com/user-none/rasession/resolver"
	"github.com/user-none/rasession/romfile"
)

// fakeEngine answers login and load requests with scripted events, the
// way the native engine would.
type fakeEngine struct {
	mu           sync.Mutex
	emit         func(bridge.Event)
	loginFail    string // when set, BeginLogin emits LoginFailed
	loadSummary  bridge.ProgressSummary
	panicDestroy bool
	destroys     int
	hardcore     bool
}

func (f *fakeEngine) Init(core bridge.Core, emit func(bridge.Event)) error {
	f.mu.Lock()
	f.emit = emit
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) SetHardcoreEnabled(v bool) {
	f.mu.Lock()
	f.hardcore = v
	f.mu.Unlock()
}
func (f *fakeEngine) SetEncoreEnabled(bool)    {}
func (f *fakeEngine) SetSpectatorEnabled(bool) {}

func (f *fakeEngine) BeginLogin(username, token string) {
	f.mu.Lock()
	emit := f.emit
	fail := f.loginFail
	f.mu.Unlock()

	if fail != "" {
		emit(bridge.LoginFailed{Reason: fail})
		return
	}
	emit(bridge.LoginSuccess{Username: username})
}

func (f *fakeEngine) BeginLoadGame(hash string) {
	f.mu.Lock()
	emit := f.emit
	summary := f.loadSummary
	f.mu.Unlock()

	emit(bridge.GameLoadSuccess{Title: "Test Game", Summary: summary})
}

func (f *fakeEngine) UnloadGame() {}
func (f *fakeEngine) DoFrame()    {}
func (f *fakeEngine) Idle()       {}

func (f *fakeEngine) Destroy() {
	f.mu.Lock()
	f.destroys++
	doPanic := f.panicDestroy
	f.mu.Unlock()
	if doPanic {
		panic("engine destroy blew up")
	}
}

func (f *fakeEngine) raise(ev bridge.Event) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

type fakeCore struct{}

func (fakeCore) ReadMemory(addr uint32, buf []byte) uint32 { return 0 }

// fakeBackend serves canned identity data.
type fakeBackend struct {
	mu    sync.Mutex
	games map[string]uint32
	patch *raweb.PatchData
	block chan struct{}
}

func (f *fakeBackend) ResolveGameID(ctx context.Context, hash string) (uint32, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.games[hash], nil
}

func (f *fakeBackend) FetchPatch(ctx context.Context, username, token string, gameID uint32) (*raweb.PatchData, error) {
	return f.patch, nil
}

func (f *fakeBackend) FetchUnlocksBoth(ctx context.Context, username, token string, gameID uint32) (*raweb.Unlocks, *raweb.Unlocks, error) {
	return &raweb.Unlocks{IDs: []uint32{1, 2}}, &raweb.Unlocks{Hardcore: true}, nil
}

func (f *fakeBackend) GameBadgeURL(imageIcon string) string   { return "" }
func (f *fakeBackend) BadgeURL(badgeName string) string       { return "" }
func (f *fakeBackend) BadgeLockedURL(badgeName string) string { return "" }

func knownPatch() *raweb.PatchData {
	return &raweb.PatchData{
		ID:    14402,
		Title: "Test Game",
		Achievements: []raweb.PatchAchievement{
			{ID: 1, Title: "First", Points: 5, Flags: raweb.AchievementFlagsCore},
			{ID: 2, Title: "Second", Points: 10, Flags: raweb.AchievementFlagsCore},
			{ID: 3, Title: "Third", Points: 10, Flags: raweb.AchievementFlagsCore},
			{ID: 4, Title: "Fourth", Points: 5, Flags: raweb.AchievementFlagsCore},
			{ID: 5, Title: "Fifth", Points: 10, Flags: raweb.AchievementFlagsCore},
		},
	}
}

type harness struct {
	runtime *Runtime
	engine  *fakeEngine
	backend *fakeBackend
	gate    *policy.Gate
	coord   *notify.Coordinator
}

func newHarness(backend *fakeBackend, engine *fakeEngine) *harness {
	gate := policy.NewGate()
	coord := notify.NewCoordinator()
	br := bridge.New(engine)
	res := resolver.New(backend, nil)
	return &harness{
		runtime: New(res, br, gate, coord),
		engine:  engine,
		backend: backend,
		gate:    gate,
		coord:   coord,
	}
}

func identity(hash string) *romfile.Identity {
	return &romfile.Identity{Path: "/roms/game.gb", Name: "game.gb", Hash: hash, ConsoleID: 4}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestUnknownROMDisablesEverything(t *testing.T) {
	h := newHarness(&fakeBackend{games: map[string]uint32{}}, &fakeEngine{})

	h.runtime.Launch(identity("ABC123"), fakeCore{}, Settings{
		Hardcore: true, Username: "player1", Token: "tok",
	})

	waitFor(t, "resolution", func() bool { return h.runtime.Phase() == PhaseRecognized })

	session := h.runtime.ActiveSession()
	if session == nil || session.GameID != 0 {
		t.Fatalf("session = %+v, want GameID 0", session)
	}
	if reason := h.runtime.CheckAction(policy.ActionRewind); reason != "" {
		t.Errorf("CheckAction(rewind) = %q, want empty for unknown ROM", reason)
	}
	if h.coord.SummaryShown() {
		t.Error("no summary may be emitted for an unknown ROM")
	}

	h.runtime.Exit()
	if h.runtime.Phase() != PhaseInactive {
		t.Errorf("phase = %v, want Inactive", h.runtime.Phase())
	}
}

func TestKnownROMHardcoreSession(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{loadSummary: bridge.ProgressSummary{Unlocked: 2, Total: 5, UnlockedPoints: 15, TotalPoints: 40}}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{
		Hardcore: true, Username: "player1", Token: "tok",
	})

	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	reason := h.runtime.CheckAction(policy.ActionSaveState)
	if reason == "" {
		t.Error("CheckAction(saveState) should return a block reason in hardcore")
	}

	engine.mu.Lock()
	hardcorePushed := engine.hardcore
	engine.mu.Unlock()
	if !hardcorePushed {
		t.Error("hardcore flag must be pushed into the engine")
	}
	if !h.gate.Hardcore() {
		t.Error("gate must agree with the engine's hardcore flag")
	}

	h.gate.Deactivate()
	if reason := h.runtime.CheckAction(policy.ActionSaveState); reason != "" {
		t.Errorf("CheckAction after Deactivate = %q, want empty", reason)
	}
}

func TestSummaryShownExactlyOnce(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{loadSummary: bridge.ProgressSummary{Unlocked: 2, Total: 5}}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{Username: "player1", Token: "tok"})

	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })
	waitFor(t, "summary", func() bool { return h.coord.SummaryShown() })

	// Both the resolver set and GameLoadSuccess have arrived by now;
	// the slot must hold a single summary, not flip between two.
	req, ok := h.coord.Current()
	if !ok {
		t.Fatal("summary notification expected")
	}
	if req.Icon != notify.IconSummary {
		t.Errorf("Icon = %v, want IconSummary", req.Icon)
	}
}

func TestUnlockEventsNotifyAndUpdateSet(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{loadSummary: bridge.ProgressSummary{Unlocked: 0, Total: 5}}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{Username: "player1", Token: "tok"})
	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	engine.raise(bridge.AchievementTriggered{ID: 3, Title: "Third", Points: 10})

	waitFor(t, "unlock notification", func() bool {
		req, ok := h.coord.Current()
		return ok && req.Title == "Third"
	})
	waitFor(t, "set update", func() bool {
		set := h.runtime.AchievementSet()
		return set != nil && set.Achievements[2].Earned
	})
}

func TestLoginFailureReleasesGate(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{loginFail: "invalid token"}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{
		Hardcore: true, Username: "player1", Token: "bad",
	})

	waitFor(t, "gate release", func() bool { return !h.gate.Active() })

	if reason := h.runtime.CheckAction(policy.ActionSaveState); reason != "" {
		t.Errorf("CheckAction = %q, want empty after auth failure", reason)
	}
}

func TestExitTeardownSurvivesPanic(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{panicDestroy: true}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{
		Hardcore: true, Username: "player1", Token: "tok",
	})
	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	h.runtime.Exit()

	if h.gate.Active() {
		t.Error("gate must be released even when engine shutdown panics")
	}
	if h.runtime.ActiveSession() != nil {
		t.Error("resolver must be cleared even when engine shutdown panics")
	}
	if h.runtime.Phase() != PhaseInactive {
		t.Errorf("phase = %v, want Inactive", h.runtime.Phase())
	}
}

func TestExitIsIdempotent(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{Username: "player1", Token: "tok"})
	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	h.runtime.Exit()
	h.runtime.Exit()
	h.runtime.Exit()

	engine.mu.Lock()
	destroys := engine.destroys
	engine.mu.Unlock()
	if destroys != 1 {
		t.Errorf("engine destroyed %d times, want 1", destroys)
	}
}

func TestExitDuringResolution(t *testing.T) {
	block := make(chan struct{})
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch(), block: block}
	engine := &fakeEngine{}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{
		Hardcore: true, Username: "player1", Token: "tok",
	})

	// Exit before the backend answers; Ending must not wait for it.
	h.runtime.Exit()
	if h.runtime.Phase() != PhaseInactive {
		t.Fatalf("phase = %v, want Inactive", h.runtime.Phase())
	}

	close(block)
	time.Sleep(100 * time.Millisecond)

	// The late result is dropped; nothing activates.
	if h.gate.Active() {
		t.Error("late resolution must not activate the gate")
	}
	if h.runtime.ActiveSession() != nil {
		t.Error("late resolution must not install a session")
	}
}

func TestRelaunchAfterExitStartsClean(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{loadSummary: bridge.ProgressSummary{Unlocked: 2, Total: 5}}
	h := newHarness(backend, engine)

	settings := Settings{Hardcore: true, Username: "player1", Token: "tok"}

	h.runtime.Launch(identity("def456"), fakeCore{}, settings)
	waitFor(t, "first session", func() bool { return h.runtime.Phase() == PhaseActive })
	h.runtime.Exit()

	// Second launch must re-initialize from scratch: the summary fires
	// again and the gate re-arms.
	h.runtime.Launch(identity("def456"), fakeCore{}, settings)
	waitFor(t, "second session", func() bool { return h.runtime.Phase() == PhaseActive })
	waitFor(t, "second summary", func() bool { return h.coord.SummaryShown() })

	if reason := h.runtime.CheckAction(policy.ActionRewind); reason == "" {
		t.Error("hardcore gate should be active in the second session")
	}
}

func TestSetHardcoreKeepsGateAndEngineInSync(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{Username: "player1", Token: "tok"})
	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	if reason := h.runtime.CheckAction(policy.ActionRewind); reason != "" {
		t.Fatalf("softcore session should allow rewind, got %q", reason)
	}

	h.runtime.SetHardcore(true)

	engine.mu.Lock()
	hardcorePushed := engine.hardcore
	engine.mu.Unlock()
	if !hardcorePushed {
		t.Error("engine flag should follow SetHardcore")
	}
	if reason := h.runtime.CheckAction(policy.ActionRewind); reason == "" {
		t.Error("gate should block rewind after SetHardcore(true)")
	}

	h.runtime.SetHardcore(false)
	if reason := h.runtime.CheckAction(policy.ActionRewind); reason != "" {
		t.Errorf("gate should allow rewind after SetHardcore(false), got %q", reason)
	}
}

func TestLaunchWhileActiveIgnored(t *testing.T) {
	backend := &fakeBackend{games: map[string]uint32{"def456": 14402}, patch: knownPatch()}
	engine := &fakeEngine{}
	h := newHarness(backend, engine)

	h.runtime.Launch(identity("def456"), fakeCore{}, Settings{Username: "player1", Token: "tok"})
	waitFor(t, "active session", func() bool { return h.runtime.Phase() == PhaseActive })

	// A second launch while active must not disturb the session.
	h.runtime.Launch(identity("other"), fakeCore{}, Settings{})

	if h.runtime.Phase() != PhaseActive {
		t.Errorf("phase = %v, want Active", h.runtime.Phase())
	}
	if session := h.runtime.ActiveSession(); session == nil || session.RomHash != "def456" {
		t.Error("original session should be untouched")
	}
}
