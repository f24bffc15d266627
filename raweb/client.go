// Package raweb is a minimal client for the RetroAchievements connect
// API (dorequest.php). It covers the calls the session runtime needs:
// login, ROM hash to game ID resolution, game patch data, per-user
// unlocks, and the console hash library.
package raweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL  = "https://retroachievements.org"
	defaultMediaURL = "https://media.retroachievements.org"
)

// Client talks to the RetroAchievements connect API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	mediaURL   string
	userAgent  string
}

// NewClient creates a client identifying itself as appName/appVersion.
func NewClient(appName, appVersion string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   defaultBaseURL,
		mediaURL:  defaultMediaURL,
		userAgent: fmt.Sprintf("%s/%s", appName, appVersion),
	}
}

// SetBaseURL points the client at a different server. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// LoginResult is the server's response to a successful login.
type LoginResult struct {
	Username      string `json:"User"`
	Token         string `json:"Token"`
	Score         uint32 `json:"Score"`
	SoftcoreScore uint32 `json:"SoftcoreScore"`
}

// PatchData is the game definition returned by the patch call.
type PatchData struct {
	ID           uint32             `json:"ID"`
	Title        string             `json:"Title"`
	ConsoleID    uint32             `json:"ConsoleID"`
	ImageIcon    string             `json:"ImageIcon"`
	Achievements []PatchAchievement `json:"Achievements"`
}

// PatchAchievement is one achievement definition in patch data.
// Flags 3 marks core achievements; everything else is unofficial.
type PatchAchievement struct {
	ID                 uint32 `json:"ID"`
	Title              string `json:"Title"`
	Description        string `json:"Description"`
	Points             uint32 `json:"Points"`
	BadgeName          string `json:"BadgeName"`
	Flags              uint32 `json:"Flags"`
	Type               string `json:"Type"`
	NumAwarded         uint32 `json:"NumAwarded"`
	NumAwardedHardcore uint32 `json:"NumAwardedHardcore"`
}

// AchievementFlagsCore marks an achievement promoted to the core set.
const AchievementFlagsCore = 3

// Unlocks is the set of achievement IDs the user has earned in one mode.
type Unlocks struct {
	IDs      []uint32
	Hardcore bool
}

// doRequest performs one dorequest.php call and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, params url.Values, out any) error {
	u := fmt.Sprintf("%s/dorequest.php?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", params.Get("r"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d", params.Get("r"), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return fmt.Errorf("request %s: read body: %w", params.Get("r"), err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("request %s: parse response: %w", params.Get("r"), err)
	}
	return nil
}

// Login authenticates with username and password and returns the connect
// token to store for future sessions.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	params := url.Values{}
	params.Set("r", "login2")
	params.Set("u", username)
	params.Set("p", password)
	return c.login(ctx, params)
}

// LoginWithToken authenticates with a stored connect token.
func (c *Client) LoginWithToken(ctx context.Context, username, token string) (*LoginResult, error) {
	params := url.Values{}
	params.Set("r", "login2")
	params.Set("u", username)
	params.Set("t", token)
	return c.login(ctx, params)
}

func (c *Client) login(ctx context.Context, params url.Values) (*LoginResult, error) {
	var resp struct {
		Success bool   `json:"Success"`
		Error   string `json:"Error"`
		LoginResult
	}
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("login failed: %s", resp.Error)
	}
	return &resp.LoginResult, nil
}

// ResolveGameID maps a ROM hash to a game ID. A hash the server does not
// know yields (0, nil); 0 is a terminal "not recognized" answer, not an
// error.
func (c *Client) ResolveGameID(ctx context.Context, hash string) (uint32, error) {
	params := url.Values{}
	params.Set("r", "gameid")
	params.Set("m", hash)

	var resp struct {
		Success bool   `json:"Success"`
		Error   string `json:"Error"`
		GameID  int64  `json:"GameID"`
	}
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("gameid lookup failed: %s", resp.Error)
	}
	if resp.GameID <= 0 {
		return 0, nil
	}
	return uint32(resp.GameID), nil
}

// FetchPatch retrieves the achievement definitions for a game.
func (c *Client) FetchPatch(ctx context.Context, username, token string, gameID uint32) (*PatchData, error) {
	params := url.Values{}
	params.Set("r", "patch")
	params.Set("u", username)
	params.Set("t", token)
	params.Set("g", strconv.FormatUint(uint64(gameID), 10))

	var resp struct {
		Success   bool      `json:"Success"`
		Error     string    `json:"Error"`
		PatchData PatchData `json:"PatchData"`
	}
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("patch fetch failed: %s", resp.Error)
	}
	return &resp.PatchData, nil
}

// FetchUnlocks retrieves the user's earned achievement IDs for a game in
// one mode (hardcore or softcore).
func (c *Client) FetchUnlocks(ctx context.Context, username, token string, gameID uint32, hardcore bool) (*Unlocks, error) {
	params := url.Values{}
	params.Set("r", "unlocks")
	params.Set("u", username)
	params.Set("t", token)
	params.Set("g", strconv.FormatUint(uint64(gameID), 10))
	if hardcore {
		params.Set("h", "1")
	} else {
		params.Set("h", "0")
	}

	var resp struct {
		Success     bool     `json:"Success"`
		Error       string   `json:"Error"`
		UserUnlocks []uint32 `json:"UserUnlocks"`
	}
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("unlocks fetch failed: %s", resp.Error)
	}
	return &Unlocks{IDs: resp.UserUnlocks, Hardcore: hardcore}, nil
}

// FetchUnlocksBoth retrieves softcore and hardcore unlocks concurrently.
func (c *Client) FetchUnlocksBoth(ctx context.Context, username, token string, gameID uint32) (softcore, hardcore *Unlocks, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		softcore, err = c.FetchUnlocks(ctx, username, token, gameID, false)
		return err
	})
	g.Go(func() error {
		var err error
		hardcore, err = c.FetchUnlocks(ctx, username, token, gameID, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return softcore, hardcore, nil
}

// FetchHashLibrary retrieves the full hash to game ID map for a console.
func (c *Client) FetchHashLibrary(ctx context.Context, consoleID uint32) (map[string]uint32, error) {
	params := url.Values{}
	params.Set("r", "hashlibrary")
	params.Set("c", strconv.FormatUint(uint64(consoleID), 10))

	var resp struct {
		Success bool              `json:"Success"`
		Error   string            `json:"Error"`
		MD5List map[string]uint32 `json:"MD5List"`
	}
	if err := c.doRequest(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("hash library fetch failed: %s", resp.Error)
	}
	return resp.MD5List, nil
}

// GameBadgeURL returns the full URL for a game's icon image path.
func (c *Client) GameBadgeURL(imageIcon string) string {
	if imageIcon == "" {
		return ""
	}
	return c.mediaURL + imageIcon
}

// BadgeURL returns the unlocked badge image URL for a badge name.
func (c *Client) BadgeURL(badgeName string) string {
	if badgeName == "" {
		return ""
	}
	return fmt.Sprintf("%s/Badge/%s.png", c.mediaURL, badgeName)
}

// BadgeLockedURL returns the locked (grayscale) badge image URL.
func (c *Client) BadgeLockedURL(badgeName string) string {
	if badgeName == "" {
		return ""
	}
	return fmt.Sprintf("%s/Badge/%s_lock.png", c.mediaURL, badgeName)
}
