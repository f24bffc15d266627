// Package bridge wraps the native achievement engine behind an explicit
// lifecycle. The engine must be initialized with a handle to the running
// emulation core and shut down on session exit; in between it raises
// events (login results, game load results, unlocks) that the bridge
// fans out to subscribers in emission order.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// State describes the bridge lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoggedOut
	StateLoggedIn
	StateGameLoaded
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateLoggedOut:
		return "LoggedOut"
	case StateLoggedIn:
		return "LoggedIn"
	case StateGameLoaded:
		return "GameLoaded"
	default:
		return "Unknown"
	}
}

// ErrAlreadyInitialized is returned by Initialize when the bridge has not
// been shut down since the previous Initialize. A stale engine left
// initialized across sessions keeps its "loaded" state and stops
// delivering events, so re-initialization fails fast instead.
var ErrAlreadyInitialized = errors.New("bridge already initialized")

// ErrNoCore is returned by Initialize when no emulation core is supplied.
var ErrNoCore = errors.New("no emulation core")

// subscriberBuffer matches the native layer's event ring. When a
// subscriber falls this far behind, the oldest undelivered event is
// dropped.
const subscriberBuffer = 64

// Subscription is one subscriber's view of the bridge event stream.
// Events arrive on C in the order the engine raised them.
type Subscription struct {
	C <-chan Event

	b  *Bridge
	ch chan Event
	id int
}

// Bridge owns the native achievement engine handle. All engine access
// goes through the bridge; no other component may call into the engine
// directly.
type Bridge struct {
	mu     sync.Mutex
	engine Engine
	state  State

	hardcore  bool
	encore    bool
	spectator bool

	subs    map[int]chan Event
	nextSub int

	// dispatchMu serializes event fan-out so every subscriber observes
	// the engine's emission order.
	dispatchMu sync.Mutex
}

// New creates a bridge around an engine. The bridge starts uninitialized;
// call Initialize with the emulation core before any login or load.
func New(engine Engine) *Bridge {
	return &Bridge{
		engine: engine,
		subs:   make(map[int]chan Event),
	}
}

// Initialize brings up the native engine against the given core.
// It fails if the core is nil or the bridge is already initialized;
// callers check IsInitialized or Shutdown first.
func (b *Bridge) Initialize(core Core) error {
	if core == nil {
		return ErrNoCore
	}

	b.mu.Lock()
	if b.state != StateUninitialized {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}
	b.mu.Unlock()

	if err := b.engine.Init(core, b.emit); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	b.mu.Lock()
	b.state = StateLoggedOut
	hardcore, encore, spectator := b.hardcore, b.encore, b.spectator
	b.mu.Unlock()

	// Apply flags recorded before initialization.
	b.engine.SetHardcoreEnabled(hardcore)
	b.engine.SetEncoreEnabled(encore)
	if spectator {
		b.engine.SetSpectatorEnabled(true)
	}

	return nil
}

// SetHardcoreEnabled sets hardcore mode. The flag is recorded even when
// the bridge is uninitialized and applied on the next Initialize.
func (b *Bridge) SetHardcoreEnabled(enabled bool) {
	b.mu.Lock()
	b.hardcore = enabled
	initialized := b.state != StateUninitialized
	b.mu.Unlock()

	if initialized {
		b.engine.SetHardcoreEnabled(enabled)
	}
}

// SetEncoreEnabled sets encore mode, which re-raises unlock events for
// achievements the user already earned.
func (b *Bridge) SetEncoreEnabled(enabled bool) {
	b.mu.Lock()
	b.encore = enabled
	initialized := b.state != StateUninitialized
	b.mu.Unlock()

	if initialized {
		b.engine.SetEncoreEnabled(enabled)
	}
}

// SetSpectatorEnabled sets spectator mode, which evaluates achievements
// without submitting unlocks to the server.
func (b *Bridge) SetSpectatorEnabled(enabled bool) {
	b.mu.Lock()
	b.spectator = enabled
	initialized := b.state != StateUninitialized
	b.mu.Unlock()

	if initialized {
		b.engine.SetSpectatorEnabled(enabled)
	}
}

// IsHardcoreEnabled reports the hardcore flag last pushed into the bridge.
func (b *Bridge) IsHardcoreEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hardcore
}

// BeginLogin starts an asynchronous login. The result arrives on the
// event stream as LoginSuccess or LoginFailed, never as a return value.
func (b *Bridge) BeginLogin(username, token string) {
	b.mu.Lock()
	initialized := b.state != StateUninitialized
	b.mu.Unlock()

	if !initialized {
		log.Printf("[Bridge] BeginLogin before Initialize, ignored")
		return
	}
	b.engine.BeginLogin(username, token)
}

// BeginLoadGame starts an asynchronous game load for the given ROM hash.
// Callers must have observed LoginSuccess first; loading while logged out
// fails inside the engine and surfaces as GameLoadFailed.
func (b *Bridge) BeginLoadGame(hash string) {
	b.mu.Lock()
	initialized := b.state != StateUninitialized
	b.mu.Unlock()

	if !initialized {
		log.Printf("[Bridge] BeginLoadGame before Initialize, ignored")
		return
	}
	b.engine.BeginLoadGame(hash)
}

// DoFrame processes achievement conditions for the current frame. It is
// a no-op until a game is loaded.
func (b *Bridge) DoFrame() {
	b.mu.Lock()
	loaded := b.state == StateGameLoaded
	b.mu.Unlock()

	if loaded {
		b.engine.DoFrame()
	}
}

// Idle processes periodic engine tasks while emulation is paused.
func (b *Bridge) Idle() {
	b.mu.Lock()
	loggedIn := b.state == StateLoggedIn || b.state == StateGameLoaded
	b.mu.Unlock()

	if loggedIn {
		b.engine.Idle()
	}
}

// Shutdown tears the engine down and returns the bridge to Uninitialized
// so a later Initialize starts clean. Safe to call on a bridge that was
// never initialized, and safe to call repeatedly.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	if b.state == StateUninitialized {
		b.mu.Unlock()
		log.Printf("[Bridge] Shutdown on uninitialized bridge, nothing to do")
		return
	}
	b.state = StateUninitialized
	b.mu.Unlock()

	b.engine.UnloadGame()
	b.engine.Destroy()
}

// IsInitialized reports whether Initialize has succeeded without a
// subsequent Shutdown.
func (b *Bridge) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != StateUninitialized
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe registers a new event stream consumer. Every subscriber
// receives every event; slow subscribers lose their oldest undelivered
// events once their buffer fills.
func (b *Bridge) Subscribe() *Subscription {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	return &Subscription{C: ch, b: b, ch: ch, id: id}
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	_, ok := s.b.subs[s.id]
	delete(s.b.subs, s.id)
	s.b.mu.Unlock()

	if !ok {
		return
	}

	// Wait out any in-flight dispatch before closing so emit never sends
	// on a closed channel.
	s.b.dispatchMu.Lock()
	close(s.ch)
	s.b.dispatchMu.Unlock()
}

// emit advances the lifecycle state and fans the event out to all
// subscribers. The engine calls this for every event it raises.
func (b *Bridge) emit(ev Event) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	b.mu.Lock()
	switch ev.(type) {
	case LoginSuccess:
		if b.state == StateLoggedOut {
			b.state = StateLoggedIn
		}
	case GameLoadSuccess:
		if b.state == StateLoggedIn {
			b.state = StateGameLoaded
		}
	}

	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	chans := make([]chan Event, len(ids))
	for i, id := range ids {
		chans[i] = b.subs[id]
	}
	b.mu.Unlock()

	for i, ch := range chans {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full. Drop its oldest event, matching the
			// native ring queue.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
			log.Printf("[Bridge] subscriber %d lagging, dropped oldest event", ids[i])
		}
	}
}
