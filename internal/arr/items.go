package arr

import (
	"context"
	"net/http"
	"strconv"
)

// Item is a Sonarr series or Radarr movie.
type Item struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Path      string `json:"path"`
	Monitored bool   `json:"monitored"`
	// Runtime is in minutes as reported by the instance (0 when unknown).
	Runtime int   `json:"runtime"`
	TagIDs  []int `json:"tags"`
}

// SystemStatus is the subset of /system/status the CLI displays.
type SystemStatus struct {
	AppName      string `json:"appName"`
	InstanceName string `json:"instanceName"`
	Version      string `json:"version"`
	Branch       string `json:"branch"`
	OSName       string `json:"osName"`
	StartTime    string `json:"startTime"`
}

// SystemStatus reads the instance's status endpoint. It doubles as a
// connection test.
func (c *Client) SystemStatus(ctx context.Context) (SystemStatus, error) {
	var status SystemStatus
	if err := c.do(ctx, "system status", http.MethodGet, "system/status", nil, &status); err != nil {
		return SystemStatus{}, err
	}
	return status, nil
}

// GetItem fetches one series or movie. A missing id matches
// services.ErrNotFound.
func (c *Client) GetItem(ctx context.Context, id int) (Item, error) {
	var item Item
	path := c.kind.resource() + "/" + strconv.Itoa(id)
	if err := c.do(ctx, "get "+c.kind.resource(), http.MethodGet, path, nil, &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListItems returns every series or movie in the library.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := c.do(ctx, "list "+c.kind.resource(), http.MethodGet, c.kind.resource(), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
