package out

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	trackerdto "focuslog/internal/modules/tracker/dto"
	apperrors "focuslog/internal/platform/errors"
)

// TrackerClient reads live state from a running tracker's HTTP API.
type TrackerClient struct {
	base string
	http *http.Client
}

func NewTrackerClient(addr string, timeout time.Duration) *TrackerClient {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &TrackerClient{base: base, http: &http.Client{Timeout: timeout}}
}

func (c *TrackerClient) Current(ctx context.Context) (trackerdto.CurrentOutput, error) {
	var out trackerdto.CurrentOutput
	if err := c.get(ctx, "/v1/current", nil, &out); err != nil {
		return trackerdto.CurrentOutput{}, err
	}
	return out, nil
}

func (c *TrackerClient) Summaries(ctx context.Context, family, day string) ([]trackerdto.SummaryOutput, error) {
	var body struct {
		Summaries []trackerdto.SummaryOutput `json:"summaries"`
	}
	q := url.Values{"family": {family}}
	if day != "" {
		q.Set("day", day)
	}
	if err := c.get(ctx, "/v1/summaries", q, &body); err != nil {
		return nil, err
	}
	return body.Summaries, nil
}

func (c *TrackerClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("query tracker at %s: %w: %v", c.base, apperrors.ErrTrackerUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("query tracker %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
