// Package collabora integrates with the editing client's discovery
// document. The host fetches /hosting/discovery from the editor server to
// learn which URL opens the editor for a given file extension.
package collabora

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// discovery is the root element of the discovery XML.
type discovery struct {
	XMLName  xml.Name  `xml:"wopi-discovery"`
	NetZones []netZone `xml:"net-zone"`
}

type netZone struct {
	Name string `xml:"name,attr"`
	Apps []app  `xml:"app"`
}

type app struct {
	Name    string   `xml:"name,attr"`
	Actions []action `xml:"action"`
}

type action struct {
	Name   string `xml:"name,attr"`
	Ext    string `xml:"ext,attr"`
	URLSrc string `xml:"urlsrc,attr"`
}

// cacheTTL is how long a fetched discovery document stays valid.
const cacheTTL = 1 * time.Hour

// Client fetches and caches the editor server's discovery document.
type Client struct {
	serverURL string
	http      *http.Client

	mu         sync.Mutex
	byExt      map[string]string // ext -> edit action urlsrc
	fetched    time.Time
	refreshing bool
}

// NewClient creates a discovery client for the editor server at serverURL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// EditorURL returns the urlsrc of the edit action for a file extension
// (without leading dot). The discovery document is fetched lazily and
// re-fetched after the cache expires. The fetch happens outside the lock,
// and at most one caller refreshes an expired document while the others
// keep serving the stale one, so lookups never wait on the editor server.
func (c *Client) EditorURL(ctx context.Context, ext string) (string, error) {
	c.mu.Lock()
	byExt := c.byExt
	expired := byExt == nil || time.Since(c.fetched) > cacheTTL
	doFetch := expired && (!c.refreshing || byExt == nil)
	if doFetch {
		c.refreshing = true
	}
	c.mu.Unlock()

	if doFetch {
		fresh, err := c.fetch(ctx)

		c.mu.Lock()
		c.refreshing = false
		if err == nil {
			c.byExt = fresh
			c.fetched = time.Now()
		}
		// On error keep serving the stale document rather than failing
		// when the editor server is briefly unreachable.
		byExt = c.byExt
		c.mu.Unlock()

		if byExt == nil {
			return "", err
		}
	}

	url, ok := byExt[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok {
		return "", fmt.Errorf("collabora: no edit action for extension %q", ext)
	}
	return url, nil
}

func (c *Client) fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/hosting/discovery", nil)
	if err != nil {
		return nil, fmt.Errorf("collabora: build discovery request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collabora: fetch discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collabora: discovery endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("collabora: read discovery: %w", err)
	}

	var doc discovery
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("collabora: parse discovery: %w", err)
	}

	byExt := make(map[string]string)
	for _, zone := range doc.NetZones {
		for _, a := range zone.Apps {
			for _, act := range a.Actions {
				if act.Name != "edit" || act.Ext == "" {
					continue
				}
				byExt[strings.ToLower(act.Ext)] = act.URLSrc
			}
		}
	}
	if len(byExt) == 0 {
		return nil, fmt.Errorf("collabora: discovery document lists no edit actions")
	}
	return byExt, nil
}
