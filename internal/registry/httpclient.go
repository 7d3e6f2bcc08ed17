package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"linkreview/pkg/domain"
)

// HTTPClient talks to a remote registry over its JSON API. It implements
// Client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs a client for the registry rooted at baseURL. A nil
// httpClient falls back to http.DefaultClient.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// FetchDataSources implements Client.
func (c *HTTPClient) FetchDataSources(ctx context.Context) ([]domain.DataSource, error) {
	var payload struct {
		DataSources []domain.DataSource `json:"data_sources"`
	}
	if err := c.getJSON(ctx, "/api/v1/data-sources", nil, &payload); err != nil {
		return nil, err
	}
	return payload.DataSources, nil
}

// FetchPersons implements Client.
func (c *HTTPClient) FetchPersons(ctx context.Context, terms domain.SearchTerms) ([]domain.PersonSummary, error) {
	var payload struct {
		Persons    []domain.PersonSummary `json:"persons"`
		Pagination domain.Pagination      `json:"pagination"`
	}
	if err := c.getJSON(ctx, "/api/v1/persons", terms.Values(), &payload); err != nil {
		return nil, err
	}
	return payload.Persons, nil
}

// FetchPotentialMatches implements Client.
func (c *HTTPClient) FetchPotentialMatches(ctx context.Context, terms domain.SearchTerms) ([]domain.PotentialMatchSummary, error) {
	var payload struct {
		PotentialMatches []domain.PotentialMatchSummary `json:"potential_matches"`
		Pagination       domain.Pagination              `json:"pagination"`
	}
	if err := c.getJSON(ctx, "/api/v1/potential-matches", terms.Values(), &payload); err != nil {
		return nil, err
	}
	return payload.PotentialMatches, nil
}

// FetchPerson implements Client.
func (c *HTTPClient) FetchPerson(ctx context.Context, id string) (domain.Person, error) {
	var payload struct {
		Person domain.Person `json:"person"`
	}
	path := "/api/v1/persons/" + url.PathEscape(id)
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return domain.Person{}, err
	}
	return payload.Person, nil
}

// FetchPotentialMatch implements Client.
func (c *HTTPClient) FetchPotentialMatch(ctx context.Context, id string) (domain.PotentialMatch, error) {
	var payload struct {
		PotentialMatch domain.PotentialMatch `json:"potential_match"`
	}
	path := "/api/v1/potential-matches/" + url.PathEscape(id)
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return domain.PotentialMatch{}, err
	}
	return payload.PotentialMatch, nil
}

// MatchPersonRecords implements Client.
func (c *HTTPClient) MatchPersonRecords(ctx context.Context, matchID string, version int64, updates []domain.PersonUpdate) error {
	body, err := json.Marshal(domain.MatchUpdate{Version: version, PersonUpdates: updates})
	if err != nil {
		return fmt.Errorf("encode match update: %w", err)
	}
	path := "/api/v1/potential-matches/" + url.PathEscape(matchID) + "/match"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}
	return c.statusError(resp, "potential match", matchID)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, kindFromPath(path), lastPathSegment(path))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type errorEnvelope struct {
	Error    string `json:"error"`
	Expected int64  `json:"expected_version,omitempty"`
	Actual   int64  `json:"actual_version,omitempty"`
}

func (c *HTTPClient) statusError(resp *http.Response, kind, id string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return NotFoundError{Kind: kind, ID: id}
	case http.StatusConflict:
		return ConflictError{Kind: kind, ID: id, Expected: env.Expected, Actual: env.Actual}
	}
	msg := env.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("registry request failed: %s", msg)
}

func kindFromPath(path string) string {
	switch {
	case strings.Contains(path, "potential-matches"):
		return "potential match"
	case strings.Contains(path, "persons"):
		return "person"
	case strings.Contains(path, "data-sources"):
		return "data sources"
	}
	return "resource"
}

func lastPathSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}
