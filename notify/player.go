package notify

import (
	"bytes"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoInitOnce sync.Once
	otoCtx      *oto.Context
	otoInitErr  error
)

// ensureOtoContext initializes the oto audio context on first use.
// The chime is 48kHz stereo S16LE, matching the context format.
func ensureOtoContext() (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   48000,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-readyChan
	})
	return otoCtx, otoInitErr
}

// chimePlayer plays sound data through a one-shot oto player, separate
// from any game audio stream. Missing audio hardware is a warning, not
// an error.
type chimePlayer struct {
	mu     sync.Mutex
	player *oto.Player
}

// Play starts playback of 48kHz stereo S16LE data, cutting off any
// chime still playing.
func (p *chimePlayer) Play(data []byte) {
	if len(data) == 0 {
		return
	}

	ctx, err := ensureOtoContext()
	if err != nil {
		log.Printf("[Notify] audio not available: %v", err)
		return
	}

	p.mu.Lock()
	if p.player != nil {
		p.player.Close()
	}
	p.player = ctx.NewPlayer(bytes.NewReader(data))
	p.player.Play()
	p.mu.Unlock()
}

// Close releases the player.
func (p *chimePlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Close()
		p.player = nil
	}
}
