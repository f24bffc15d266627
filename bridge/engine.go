package bridge

// Core provides memory access for the achievement condition evaluator.
// This matches the emulator frontend's core adapter, which maps flat
// addresses to internal memory regions.
type Core interface {
	ReadMemory(addr uint32, buf []byte) uint32
}

// Engine is the native achievement engine surface the bridge drives.
// Implementations own the underlying client handle; the bridge owns the
// lifecycle and is the only caller.
//
// Init installs the memory reader and an emit function the engine calls
// for every event it raises. Emit calls must happen in the order the
// engine raised the events. BeginLogin and BeginLoadGame are
// fire-and-forget; their outcomes arrive on the event stream.
type Engine interface {
	Init(core Core, emit func(Event)) error
	SetHardcoreEnabled(enabled bool)
	SetEncoreEnabled(enabled bool)
	SetSpectatorEnabled(enabled bool)
	BeginLogin(username, token string)
	BeginLoadGame(hash string)
	UnloadGame()
	DoFrame()
	Idle()
	Destroy()
}
