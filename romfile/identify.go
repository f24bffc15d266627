package romfile

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	rcheevos "github.com/user-none/go-rcheevos"
)

// RetroAchievements console IDs for the extensions this loader
// recognizes.
const (
	ConsoleMegaDrive    uint32 = 1
	ConsoleNintendo64   uint32 = 2
	ConsoleSNES         uint32 = 3
	ConsoleGameBoy      uint32 = 4
	ConsoleGBA          uint32 = 5
	ConsoleGBC          uint32 = 6
	ConsoleNES          uint32 = 7
	ConsolePCEngine     uint32 = 8
	ConsoleMasterSystem uint32 = 11
	ConsoleLynx         uint32 = 13
	ConsoleNeoGeoPocket uint32 = 14
	ConsoleGameGear     uint32 = 15
)

var consoleByExt = map[string]uint32{
	".md":  ConsoleMegaDrive,
	".gen": ConsoleMegaDrive,
	".n64": ConsoleNintendo64,
	".z64": ConsoleNintendo64,
	".v64": ConsoleNintendo64,
	".sfc": ConsoleSNES,
	".smc": ConsoleSNES,
	".gb":  ConsoleGameBoy,
	".gba": ConsoleGBA,
	".gbc": ConsoleGBC,
	".nes": ConsoleNES,
	".pce": ConsolePCEngine,
	".sms": ConsoleMasterSystem,
	".lnx": ConsoleLynx,
	".ngp": ConsoleNeoGeoPocket,
	".ngc": ConsoleNeoGeoPocket,
	".gg":  ConsoleGameGear,
}

// Identity fingerprints one ROM for backend lookup. Hash is the
// RetroAchievements hash for the detected console, independent of the
// file name on disk.
type Identity struct {
	Path      string
	Name      string
	Hash      string
	ConsoleID uint32
}

// ConsoleForExtension maps a ROM file extension (with leading dot) to
// its RetroAchievements console ID, or 0 when unrecognized.
func ConsoleForExtension(ext string) uint32 {
	return consoleByExt[strings.ToLower(ext)]
}

// Extensions returns the ROM extensions the identifier recognizes.
func Extensions() []string {
	exts := make([]string, 0, len(consoleByExt))
	for ext := range consoleByExt {
		exts = append(exts, ext)
	}
	return exts
}

// Consoles returns the console IDs the identifier recognizes, sorted
// ascending.
func Consoles() []uint32 {
	seen := make(map[uint32]bool)
	var ids []uint32
	for _, id := range consoleByExt {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MD5 returns the lowercase hex MD5 of data. For cartridge consoles
// (GB, GBC, GBA, SMS, Game Gear and the like) this is the same value
// the backend's hash library uses.
func MD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Hash computes the RetroAchievements hash for a ROM. Consoles with
// header-aware hashing (NES, SNES, Lynx, PC Engine) are handled by the
// rcheevos library; everything else reduces to the plain MD5.
func Hash(consoleID uint32, data []byte) string {
	if consoleID == 0 {
		return MD5(data)
	}
	if h := rcheevos.HashFromBuffer(consoleID, data); h != "" {
		return strings.ToLower(h)
	}
	return MD5(data)
}

// Identify loads the ROM at path, detects its console from the file
// extension, and computes its backend hash.
func Identify(path string) (*Identity, error) {
	file, err := Load(path, Extensions())
	if err != nil {
		return nil, fmt.Errorf("load rom: %w", err)
	}

	consoleID := ConsoleForExtension(filepath.Ext(file.Name))
	return &Identity{
		Path:      path,
		Name:      file.Name,
		Hash:      Hash(consoleID, file.Data),
		ConsoleID: consoleID,
	}, nil
}
