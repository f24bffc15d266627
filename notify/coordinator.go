// Package notify turns runtime events into user notifications. It owns
// a single display slot (most-recent-wins, no queueing) and reconciles
// the two independent sources that can announce a session's progress
// summary so the user sees it exactly once.
package notify

import (
	"fmt"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/user-none/rasession/bridge"
	"github.com/user-none/rasession/resolver"
)

// Icon selects the glyph a frontend draws beside the notification.
type Icon int

const (
	IconInfo Icon = iota
	IconAchievement
	IconEncore
	IconMastery
	IconSummary
)

// Accent colors per notification kind.
var (
	AccentGold   = color.RGBA{R: 0xFF, G: 0xD7, B: 0x00, A: 0xFF}
	AccentSilver = color.RGBA{R: 0xC0, G: 0xC0, B: 0xC8, A: 0xFF}
	AccentPurple = color.RGBA{R: 0x9B, G: 0x59, B: 0xB6, A: 0xFF}
	AccentBlue   = color.RGBA{R: 0x4A, G: 0x90, B: 0xD9, A: 0xFF}
)

const (
	durationDefault     = 3 * time.Second
	durationAchievement = 5 * time.Second
)

// Request describes one notification. The frontend draws it; this
// package only decides what to show and for how long.
type Request struct {
	Title    string
	Subtitle string
	ImageURL string
	Icon     Icon
	Accent   color.RGBA
	Duration time.Duration
}

// Coordinator schedules notifications. At most one request is live; a
// new request replaces the currently displayed one immediately.
type Coordinator struct {
	mu         sync.Mutex
	current    Request
	hasCurrent bool
	shownAt    time.Time

	// summaryShown suppresses the second of the two per-session summary
	// sources (resolver set load vs native game load). Reset only when a
	// session ends.
	summaryShown bool

	unlockSound bool
	chime       []byte
	player      *chimePlayer
}

// NewCoordinator creates a coordinator with the unlock chime prepared.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		chime:  unlockChime(),
		player: &chimePlayer{},
	}
}

// SetUnlockSound enables or disables the unlock chime.
func (c *Coordinator) SetUnlockSound(enabled bool) {
	c.mu.Lock()
	c.unlockSound = enabled
	c.mu.Unlock()
}

// Notify replaces the currently displayed notification. The previous
// one is discarded even if its duration has not elapsed.
func (c *Coordinator) Notify(req Request) {
	if req.Duration <= 0 {
		req.Duration = durationDefault
	}

	c.mu.Lock()
	c.current = req
	c.hasCurrent = true
	c.shownAt = time.Now()
	c.mu.Unlock()
}

// Current returns the live notification, or false when none is visible.
// Expiry is computed from the request's duration; there is no dismissal
// callback to miss.
func (c *Coordinator) Current() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasCurrent || time.Since(c.shownAt) >= c.current.Duration {
		return Request{}, false
	}
	return c.current, true
}

// Clear removes the current notification.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.hasCurrent = false
	c.mu.Unlock()
}

// Reset clears the display slot and re-arms the per-session summary.
// Called when a session ends or a new one starts.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.hasCurrent = false
	c.summaryShown = false
	c.mu.Unlock()
}

// SummaryShown reports whether this session's summary has been shown.
func (c *Coordinator) SummaryShown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryShown
}

// ShowSummary announces the session's unlock progress from the resolver
// path. A no-op if the native path already announced it, if the set is
// missing, or if it has no achievements.
func (c *Coordinator) ShowSummary(set *resolver.AchievementSet) {
	if set == nil || len(set.Achievements) == 0 {
		return
	}

	c.mu.Lock()
	if c.summaryShown {
		c.mu.Unlock()
		return
	}
	c.summaryShown = true
	c.mu.Unlock()

	c.Notify(Request{
		Title: set.Title,
		Subtitle: fmt.Sprintf("%d of %d achievements unlocked (%d of %d points)",
			set.EarnedCount(), len(set.Achievements), set.EarnedPoints, set.TotalPoints),
		ImageURL: set.BadgeURL,
		Icon:     IconSummary,
		Accent:   AccentBlue,
	})
}

// HandleEvent is the reconciliation entry point for the native event
// stream. Unlock and mastery events always notify; the game-load
// summary is folded into the same once-per-session gate as ShowSummary.
func (c *Coordinator) HandleEvent(ev bridge.Event) {
	switch e := ev.(type) {
	case bridge.AchievementTriggered:
		c.notifyUnlock(e)

	case bridge.GameCompleted:
		title := "Game Mastered!"
		if e.Title != "" {
			title = fmt.Sprintf("Mastered %s!", e.Title)
		}
		c.Notify(Request{
			Title:    title,
			Subtitle: "All achievements unlocked",
			Icon:     IconMastery,
			Accent:   AccentGold,
			Duration: durationAchievement,
		})

	case bridge.GameLoadSuccess:
		if e.Summary.Total == 0 {
			return
		}
		c.mu.Lock()
		if c.summaryShown {
			c.mu.Unlock()
			return
		}
		c.summaryShown = true
		c.mu.Unlock()

		c.Notify(Request{
			Title: e.Title,
			Subtitle: fmt.Sprintf("%d of %d achievements unlocked (%d of %d points)",
				e.Summary.Unlocked, e.Summary.Total, e.Summary.UnlockedPoints, e.Summary.TotalPoints),
			ImageURL: e.BadgeURL,
			Icon:     IconSummary,
			Accent:   AccentBlue,
		})

	case bridge.GameLoadFailed:
		log.Printf("[Notify] game load failed: %s", e.Reason)
		c.Notify(Request{Title: "Achievements unavailable", Subtitle: e.Reason, Icon: IconInfo, Accent: AccentSilver})

	case bridge.LoginSuccess:
		// Log only; a toast here would displace the session summary.
		log.Printf("[Notify] logged in as %s", e.Username)

	case bridge.LoginFailed:
		log.Printf("[Notify] login failed: %s", e.Reason)
		c.Notify(Request{Title: "Not logged in", Subtitle: e.Reason, Icon: IconInfo, Accent: AccentSilver})

	case bridge.ServerError:
		log.Printf("[Notify] server error: %s", e.Message)

	case bridge.Disconnected:
		log.Printf("[Notify] connection to server lost, unlocks queued")
		c.Notify(Request{Title: "Connection lost", Subtitle: "Unlocks will be submitted when reconnected", Icon: IconInfo, Accent: AccentSilver})

	case bridge.Reconnected:
		log.Printf("[Notify] reconnected, queued unlocks submitted")
		c.Notify(Request{Title: "Reconnected", Icon: IconInfo, Accent: AccentBlue})
	}
}

// notifyUnlock announces one achievement unlock. Never suppressed by
// the summary gate; encore re-unlocks get their own icon and accent.
func (c *Coordinator) notifyUnlock(e bridge.AchievementTriggered) {
	req := Request{
		Title:    e.Title,
		Subtitle: e.Description,
		ImageURL: e.BadgeURL,
		Icon:     IconAchievement,
		Accent:   AccentGold,
		Duration: durationAchievement,
	}
	if e.Reachieved {
		req.Icon = IconEncore
		req.Accent = AccentPurple
	}
	c.Notify(req)

	c.mu.Lock()
	playSound := c.unlockSound
	chime := c.chime
	player := c.player
	c.mu.Unlock()

	if playSound && len(chime) > 0 {
		player.Play(chime)
	}
}
