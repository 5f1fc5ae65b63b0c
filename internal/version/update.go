package version

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	goversion "github.com/hashicorp/go-version"
)

// ErrNoUpdateURL is returned when no release endpoint is configured.
var ErrNoUpdateURL = errors.New("no update url configured")

// Checker asks a release endpoint whether a newer version was published.
type Checker struct {
	URL     string
	Current string
	client  *http.Client
}

// NewChecker returns a Checker for the running build. The url must serve the
// latest version as plain text.
func NewChecker(url string) *Checker {
	client := cleanhttp.DefaultClient()
	client.Timeout = 10 * time.Second
	return &Checker{
		URL:     url,
		Current: FromBuild().Version,
		client:  client,
	}
}

// IsUpdateAvailable reports whether the published version is newer than the
// running one, and which version that is.
func (c *Checker) IsUpdateAvailable(ctx context.Context) (bool, string, error) {
	if c.URL == "" {
		return false, "", ErrNoUpdateURL
	}
	currentVersion, err := goversion.NewVersion(c.Current)
	if err != nil {
		if c.Current == valueNotProvided {
			// unversioned builds never report updates
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to parse current application version: %w", err)
	}

	latestVersion, err := c.fetchLatest(ctx)
	if err != nil {
		return false, "", err
	}

	if latestVersion.GreaterThan(currentVersion) {
		return true, latestVersion.String(), nil
	}
	return false, "", nil
}

func (c *Checker) fetchLatest(ctx context.Context) (*goversion.Version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for latest version: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d on fetching latest version: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, fmt.Errorf("failed to read latest version: %w", err)
	}

	return goversion.NewVersion(strings.TrimSpace(string(body)))
}
