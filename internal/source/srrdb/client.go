// Package srrdb polls the srrdb release database for new Nintendo Switch
// releases and resolves their file listings.
package srrdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/dropwatch/internal/httpx"
	"github.com/JakeFAU/dropwatch/internal/release"
)

// Default endpoints.
const (
	DefaultScanURL    = "https://api.srrdb.com/v1/search/category:nsw/order:date-desc"
	DefaultDetailsURL = "https://api.srrdb.com/v1/details/{release}"
	DefaultFileURL    = "https://www.srrdb.com/download/file/{release}/{file}"
	DefaultAddURL     = "https://www.srrdb.com/download/temp/{release}/{id}/{file}"
)

// Endpoints holds URL templates; {release}, {file} and {id} are substituted.
type Endpoints struct {
	Scan    string `mapstructure:"scan"`
	Details string `mapstructure:"details"`
	File    string `mapstructure:"file"`
	Add     string `mapstructure:"add"`
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Scan == "" {
		e.Scan = DefaultScanURL
	}
	if e.Details == "" {
		e.Details = DefaultDetailsURL
	}
	if e.File == "" {
		e.File = DefaultFileURL
	}
	if e.Add == "" {
		e.Add = DefaultAddURL
	}
	return e
}

type scanResponse struct {
	Results []scanResult `json:"results"`
}

type scanResult struct {
	Release string   `json:"release"`
	HasNFO  flexBool `json:"hasNFO"`
}

type detailsResponse struct {
	Name          string        `json:"name"`
	Files         []fileEntry   `json:"files"`
	ArchivedFiles []fileEntry   `json:"archived-files"`
	Adds          []addendEntry `json:"adds"`
}

type fileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	CRC  string `json:"crc"`
}

type addendEntry struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

// flexBool accepts true/false as well as the "yes"/"no" strings srrdb uses.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flexBool: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flexString: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

// Client talks to the srrdb API. It implements release.Catalog.
type Client struct {
	http      *httpx.Client
	endpoints Endpoints
}

// NewClient builds a Client.
func NewClient(client *httpx.Client, endpoints Endpoints) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	return &Client{http: client, endpoints: endpoints.withDefaults()}, nil
}

// scan returns the newest releases, newest first.
func (c *Client) scan(ctx context.Context) ([]scanResult, error) {
	var resp scanResponse
	if err := c.http.GetJSON(ctx, c.endpoints.Scan, &resp); err != nil {
		return nil, fmt.Errorf("scan srrdb: %w", err)
	}
	return resp.Results, nil
}

// Details returns the file listing of a release.
func (c *Client) Details(ctx context.Context, name string) (release.Details, error) {
	u := expand(c.endpoints.Details, map[string]string{"release": url.PathEscape(name)})
	var resp detailsResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return release.Details{}, err
	}
	d := release.Details{Name: resp.Name}
	if d.Name == "" {
		d.Name = name
	}
	for _, f := range resp.Files {
		d.Files = append(d.Files, release.File{Name: f.Name, Size: f.Size, CRC: f.CRC})
	}
	for _, f := range resp.ArchivedFiles {
		d.ArchivedFiles = append(d.ArchivedFiles, release.File{Name: f.Name, Size: f.Size, CRC: f.CRC})
	}
	for _, a := range resp.Adds {
		d.Adds = append(d.Adds, release.Addendum{ID: string(a.ID), Name: a.Name})
	}
	return d, nil
}

// FileURL returns the download URL of a stored release file.
func (c *Client) FileURL(rel, file string) string {
	return expand(c.endpoints.File, map[string]string{
		"release": url.PathEscape(rel),
		"file":    escapePath(file),
	})
}

// AddendumURL returns the download URL of an addendum.
func (c *Client) AddendumURL(rel string, add release.Addendum) string {
	return expand(c.endpoints.Add, map[string]string{
		"release": url.PathEscape(rel),
		"id":      url.PathEscape(add.ID),
		"file":    escapePath(add.Name),
	})
}

// Fetch downloads a document.
func (c *Client) Fetch(ctx context.Context, u string) ([]byte, error) {
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func expand(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// escapePath escapes each segment of a relative file path.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var _ release.Catalog = (*Client)(nil)
