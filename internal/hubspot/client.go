// Package hubspot provides the CRM API client. Every request is routed
// through the shared scheduler so calls from any part of the tool share
// one FIFO, rate-adaptive pipeline.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/scheduler"
)

// batchLimit is the maximum inputs per batch endpoint call.
const batchLimit = 100

// defaultPageLimit is the page size used for list pagination.
const defaultPageLimit = 100

// Client defines the CRM operations the tool needs.
type Client interface {
	// ListPage fetches one page of records. after is the pagination
	// cursor from the previous page ("" for the first page).
	ListPage(ctx context.Context, objectType model.ObjectType, after string, properties []string) (*Page, error)
	// FetchAll walks the cursor until exhaustion and returns every record.
	FetchAll(ctx context.Context, objectType model.ObjectType, properties []string) ([]model.Record, error)
	// GetRecord fetches a single record by id.
	GetRecord(ctx context.Context, objectType model.ObjectType, id string, properties []string) (*model.Record, error)
	// Create creates one record and returns it with its assigned id.
	Create(ctx context.Context, objectType model.ObjectType, properties map[string]string) (*model.Record, error)
	// BatchUpdate applies partial updates, chunked to the batch limit.
	BatchUpdate(ctx context.Context, objectType model.ObjectType, patches []model.RecordPatch) error
	// BatchCreate creates records in bulk and returns them with ids.
	BatchCreate(ctx context.Context, objectType model.ObjectType, inputs []map[string]string) ([]model.Record, error)
	// Merge folds mergeID into primaryID. The merged record is absorbed
	// by the primary and ceases to exist upstream.
	Merge(ctx context.Context, objectType model.ObjectType, primaryID, mergeID string) error
	// Search returns records matching every filter, up to limit.
	Search(ctx context.Context, objectType model.ObjectType, filters []SearchFilter, properties []string, limit int) ([]model.Record, error)
	// ListProperties returns the property schema for an object type.
	ListProperties(ctx context.Context, objectType model.ObjectType) ([]Property, error)
	// Total returns the total record count for an object type.
	Total(ctx context.Context, objectType model.ObjectType) (int, error)
	// CountWithProperty returns how many records have the property set.
	CountWithProperty(ctx context.Context, objectType model.ObjectType, property string) (int, error)
}

// Page is one page of list results plus the cursor for the next one.
type Page struct {
	Records []model.Record
	After   string // "" when no further pages exist
}

// SearchFilter is one property filter for the search endpoint.
type SearchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
}

// Property describes one entry of the CRM property schema.
type Property struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	FieldType string `json:"fieldType"`
	GroupName string `json:"groupName"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageLimit overrides the list page size.
func WithPageLimit(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

type httpClient struct {
	token     string
	baseURL   string
	pageLimit int
	http      *http.Client
	sched     *scheduler.Scheduler
}

// NewClient creates a CRM client whose requests flow through sched.
func NewClient(token string, sched *scheduler.Scheduler, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		baseURL:   "https://api.hubapi.com",
		pageLimit: defaultPageLimit,
		sched:     sched,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ListPage(ctx context.Context, objectType model.ObjectType, after string, properties []string) (*Page, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(c.pageLimit))
	q.Set("archived", "false")
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	if after != "" {
		q.Set("after", after)
	}

	var out struct {
		Results []model.Record `json:"results"`
		Paging  *struct {
			Next struct {
				After string `json:"after"`
			} `json:"next"`
		} `json:"paging"`
	}
	path := fmt.Sprintf("/crm/v3/objects/%s?%s", objectType, q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	page := &Page{Records: out.Results}
	if out.Paging != nil {
		page.After = out.Paging.Next.After
	}
	return page, nil
}

func (c *httpClient) FetchAll(ctx context.Context, objectType model.ObjectType, properties []string) ([]model.Record, error) {
	var all []model.Record
	after := ""
	for {
		page, err := c.ListPage(ctx, objectType, after, properties)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.After == "" {
			return all, nil
		}
		after = page.After
	}
}

func (c *httpClient) GetRecord(ctx context.Context, objectType model.ObjectType, id string, properties []string) (*model.Record, error) {
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	path := fmt.Sprintf("/crm/v3/objects/%s/%s", objectType, id)
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var rec model.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *httpClient) Create(ctx context.Context, objectType model.ObjectType, properties map[string]string) (*model.Record, error) {
	body := map[string]any{"properties": properties}

	var rec model.Record
	path := fmt.Sprintf("/crm/v3/objects/%s", objectType)
	if err := c.do(ctx, http.MethodPost, path, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *httpClient) BatchUpdate(ctx context.Context, objectType model.ObjectType, patches []model.RecordPatch) error {
	path := fmt.Sprintf("/crm/v3/objects/%s/batch/update", objectType)
	for start := 0; start < len(patches); start += batchLimit {
		end := min(start+batchLimit, len(patches))

		inputs := make([]map[string]any, 0, end-start)
		for _, p := range patches[start:end] {
			inputs = append(inputs, map[string]any{
				"id":         p.ID,
				"properties": p.Properties,
			})
		}
		if err := c.do(ctx, http.MethodPost, path, map[string]any{"inputs": inputs}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *httpClient) BatchCreate(ctx context.Context, objectType model.ObjectType, inputs []map[string]string) ([]model.Record, error) {
	path := fmt.Sprintf("/crm/v3/objects/%s/batch/create", objectType)

	var created []model.Record
	for start := 0; start < len(inputs); start += batchLimit {
		end := min(start+batchLimit, len(inputs))

		batch := make([]map[string]any, 0, end-start)
		for _, props := range inputs[start:end] {
			batch = append(batch, map[string]any{"properties": props})
		}

		var out struct {
			Results []model.Record `json:"results"`
		}
		if err := c.do(ctx, http.MethodPost, path, map[string]any{"inputs": batch}, &out); err != nil {
			return created, err
		}
		created = append(created, out.Results...)
	}
	return created, nil
}

func (c *httpClient) Merge(ctx context.Context, objectType model.ObjectType, primaryID, mergeID string) error {
	path := fmt.Sprintf("/crm/v3/objects/%s/%s/merge", objectType, primaryID)
	body := map[string]any{"objectIdToMerge": mergeID}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *httpClient) Search(ctx context.Context, objectType model.ObjectType, filters []SearchFilter, properties []string, limit int) ([]model.Record, error) {
	body := map[string]any{"limit": limit}
	if len(filters) > 0 {
		body["filterGroups"] = []map[string]any{{"filters": filters}}
	}
	if len(properties) > 0 {
		body["properties"] = properties
	}

	var out struct {
		Results []model.Record `json:"results"`
	}
	path := fmt.Sprintf("/crm/v3/objects/%s/search", objectType)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *httpClient) ListProperties(ctx context.Context, objectType model.ObjectType) ([]Property, error) {
	var out struct {
		Results []Property `json:"results"`
	}
	path := fmt.Sprintf("/crm/v3/properties/%s", objectType)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *httpClient) Total(ctx context.Context, objectType model.ObjectType) (int, error) {
	return c.searchTotal(ctx, objectType, map[string]any{"limit": 1})
}

func (c *httpClient) CountWithProperty(ctx context.Context, objectType model.ObjectType, property string) (int, error) {
	return c.searchTotal(ctx, objectType, map[string]any{
		"limit": 1,
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": property,
				"operator":     "HAS_PROPERTY",
			}},
		}},
	})
}

func (c *httpClient) searchTotal(ctx context.Context, objectType model.ObjectType, body map[string]any) (int, error) {
	var out struct {
		Total int `json:"total"`
	}
	path := fmt.Sprintf("/crm/v3/objects/%s/search", objectType)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

// do submits one request to the scheduler and decodes a successful reply
// into out. Transient statuses are retried inside the scheduler; whatever
// non-2xx status comes back here is permanent and becomes an error.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrapf(err, "hubspot: marshal %s %s", method, path)
		}
	}

	resp, err := c.sched.Do(ctx, func(ctx context.Context) (*scheduler.Response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, eris.Wrapf(err, "hubspot: build %s %s", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "hubspot: %s %s", method, path)
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "hubspot: read %s %s", method, path)
		}
		return &scheduler.Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       raw,
		}, nil
	})
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("hubspot: %s %s: status %d: %s",
			method, path, resp.StatusCode, snippet(resp.Body))
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return eris.Wrapf(err, "hubspot: decode %s %s", method, path)
	}
	return nil
}

func snippet(b []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(b))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
