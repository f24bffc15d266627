package resolver

import (
	"time"

	"github.com/user-none/rasession/raweb"
)

// Kind classifies an achievement's role in its set.
type Kind int

const (
	KindNone Kind = iota
	KindProgression
	KindWinCondition
	KindMissable
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case KindProgression:
		return "progression"
	case KindWinCondition:
		return "win condition"
	case KindMissable:
		return "missable"
	default:
		return "none"
	}
}

// kindFromType maps the backend's achievement type string to a Kind.
func kindFromType(t string) Kind {
	switch t {
	case "progression":
		return KindProgression
	case "win_condition":
		return KindWinCondition
	case "missable":
		return KindMissable
	default:
		return KindNone
	}
}

// GameSession identifies the ROM/user pairing being tracked. A GameID
// of 0 means the ROM is not recognized by the backend; the session
// object still exists so resolution is not retried.
type GameSession struct {
	RomHash   string
	GameID    uint32
	Username  string
	AuthToken string
}

// Recognized reports whether the backend knows this ROM.
func (s *GameSession) Recognized() bool {
	return s != nil && s.GameID > 0
}

// Achievement is one achievement definition plus the user's unlock
// state. Mutated only by applying runtime events or a resolver refresh.
type Achievement struct {
	ID                 uint32
	Title              string
	Description        string
	Points             uint32
	BadgeURL           string
	BadgeLockedURL     string
	Kind               Kind
	Earned             bool
	EarnedHardcore     bool
	DateEarned         time.Time
	DateEarnedHardcore time.Time
	NumAwarded         uint32
	NumAwardedHardcore uint32
}

// AchievementSet holds the achievement definitions and unlock state for
// one game. Replaced wholesale when a new session resolves; read-only
// to consumers.
type AchievementSet struct {
	GameID               uint32
	Title                string
	BadgeURL             string
	Achievements         []Achievement
	TotalPoints          uint32
	EarnedPoints         uint32
	EarnedPointsHardcore uint32
}

// EarnedCount returns the number of achievements earned in any mode.
func (s *AchievementSet) EarnedCount() int {
	count := 0
	for i := range s.Achievements {
		if s.Achievements[i].Earned || s.Achievements[i].EarnedHardcore {
			count++
		}
	}
	return count
}

// ApplyUnlock marks an achievement earned after an unlock event and
// updates the earned point totals. Unknown IDs are ignored.
func (s *AchievementSet) ApplyUnlock(id uint32, hardcore bool) {
	for i := range s.Achievements {
		ach := &s.Achievements[i]
		if ach.ID != id {
			continue
		}
		now := time.Now()
		if !ach.Earned {
			ach.Earned = true
			ach.DateEarned = now
			s.EarnedPoints += ach.Points
		}
		if hardcore && !ach.EarnedHardcore {
			ach.EarnedHardcore = true
			ach.DateEarnedHardcore = now
			s.EarnedPointsHardcore += ach.Points
		}
		return
	}
}

// buildSet assembles an AchievementSet from backend patch data and the
// user's unlocks. Only core achievements count; 0-point entries are
// warnings, not real achievements.
func buildSet(patch *raweb.PatchData, softcore, hardcore *raweb.Unlocks, urls BadgeURLs) *AchievementSet {
	set := &AchievementSet{
		GameID:   patch.ID,
		Title:    patch.Title,
		BadgeURL: urls.GameBadgeURL(patch.ImageIcon),
	}

	earnedSoft := make(map[uint32]bool)
	if softcore != nil {
		for _, id := range softcore.IDs {
			earnedSoft[id] = true
		}
	}
	earnedHard := make(map[uint32]bool)
	if hardcore != nil {
		for _, id := range hardcore.IDs {
			earnedHard[id] = true
		}
	}

	for _, pa := range patch.Achievements {
		if pa.Flags != raweb.AchievementFlagsCore || pa.Points == 0 {
			continue
		}

		ach := Achievement{
			ID:                 pa.ID,
			Title:              pa.Title,
			Description:        pa.Description,
			Points:             pa.Points,
			BadgeURL:           urls.BadgeURL(pa.BadgeName),
			BadgeLockedURL:     urls.BadgeLockedURL(pa.BadgeName),
			Kind:               kindFromType(pa.Type),
			Earned:             earnedSoft[pa.ID] || earnedHard[pa.ID],
			EarnedHardcore:     earnedHard[pa.ID],
			NumAwarded:         pa.NumAwarded,
			NumAwardedHardcore: pa.NumAwardedHardcore,
		}

		set.TotalPoints += ach.Points
		if ach.Earned {
			set.EarnedPoints += ach.Points
		}
		if ach.EarnedHardcore {
			set.EarnedPointsHardcore += ach.Points
		}
		set.Achievements = append(set.Achievements, ach)
	}

	return set
}
