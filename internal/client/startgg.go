package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fgcrank/ingestion/internal/metrics"
	"fgcrank/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// TournamentSort is a server-side sort field accepted by the tournaments query
type TournamentSort string

const (
	SortStartAt                   TournamentSort = "startAt"
	SortEndAt                     TournamentSort = "endAt"
	SortEventRegistrationClosesAt TournamentSort = "eventRegistrationClosesAt"
	SortComputedUpdatedAt         TournamentSort = "computedUpdatedAt"
)

// ValidSort reports whether s is a sort field start.gg accepts
func ValidSort(s string) bool {
	switch TournamentSort(s) {
	case SortStartAt, SortEndAt, SortEventRegistrationClosesAt, SortComputedUpdatedAt:
		return true
	}
	return false
}

// TournamentFilter holds the search filters for the paginated tournaments
// query. Empty strings and nil values are sent as GraphQL nulls, which the
// API treats as "no filter".
type TournamentFilter struct {
	Country      string
	State        string
	VideogameIDs []string
	AfterDate    *int64
	BeforeDate   *int64
}

// PageInfo is the pagination envelope returned by start.gg connections
type PageInfo struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
}

// TournamentPage is one page of tournament search results
type TournamentPage struct {
	PageInfo PageInfo            `json:"pageInfo"`
	Nodes    []models.Tournament `json:"nodes"`
}

// PlayerAccount is the identity info returned for a single player lookup
type PlayerAccount struct {
	GamerTag      string
	Discriminator string
	HasUser       bool
}

// Client is the start.gg GraphQL API client
type Client struct {
	apiURL      string
	token       string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
	rateDelay   time.Duration
}

// NewClient creates a new start.gg client
func NewClient(apiURL, token string, timeout time.Duration, maxRetries int) *Client {
	// start.gg allows 80 requests/minute; cap concurrent requests well below
	rateLimiter := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		apiURL:      apiURL,
		token:       token,
		rateLimiter: rateLimiter,
		maxRetries:  maxRetries,
		retryDelay:  1 * time.Second,
		rateDelay:   30 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do executes a GraphQL query with retry logic and rate limiting, decoding
// the data payload into out. GraphQL-level errors are returned as Go errors
// and are never retried.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	// Rate limiting: acquire semaphore
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff; rate-limit responses back off harder
			base := c.retryDelay
			if lastStatus(lastErr) == http.StatusTooManyRequests {
				base = c.rateDelay
			}
			backoff := base * time.Duration(1<<uint(attempt-1))
			log.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying start.gg request after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		log.Debug().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("Making start.gg request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("start.gg request failed: %w", err)
			if attempt < c.maxRetries {
				continue
			}
			metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
			return lastErr
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			if attempt < c.maxRetries {
				continue
			}
			metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var envelope gqlEnvelope
			if err := json.Unmarshal(body, &envelope); err != nil {
				metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
				return fmt.Errorf("failed to decode response: %w", err)
			}
			if len(envelope.Errors) > 0 {
				msgs := make([]string, len(envelope.Errors))
				for i, e := range envelope.Errors {
					msgs[i] = e.Message
				}
				metrics.RecordAPICall(operation, "graphql_error", time.Since(start).Seconds())
				return fmt.Errorf("%s query failed: %s", operation, strings.Join(msgs, "; "))
			}
			if out != nil {
				if err := json.Unmarshal(envelope.Data, out); err != nil {
					metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
					return fmt.Errorf("failed to decode %s data: %w", operation, err)
				}
			}
			metrics.RecordAPICall(operation, "success", time.Since(start).Seconds())
			return nil

		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = &statusError{status: resp.StatusCode, body: string(body)}
			if attempt < c.maxRetries {
				log.Warn().
					Str("operation", operation).
					Int("status", resp.StatusCode).
					Int("attempt", attempt+1).
					Msg("Received retryable error from start.gg, will retry")
				continue
			}
			metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
			return lastErr

		case http.StatusUnauthorized, http.StatusForbidden:
			// Don't retry auth errors
			metrics.RecordAPICall(operation, "auth_error", time.Since(start).Seconds())
			return fmt.Errorf("start.gg authentication failed (status %d): %s", resp.StatusCode, string(body))

		default:
			metrics.RecordAPICall(operation, "error", time.Since(start).Seconds())
			return fmt.Errorf("start.gg returned status %d: %s", resp.StatusCode, string(body))
		}
	}

	return lastErr
}

// statusError carries an HTTP status through the retry loop so the backoff
// can distinguish rate limiting from server errors
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("start.gg returned retryable status %d: %s", e.status, e.body)
}

func lastStatus(err error) int {
	if se, ok := err.(*statusError); ok {
		return se.status
	}
	return 0
}

const tournamentsSearchQuery = `
query TournamentsQuery($country: String, $state: String, $id: [ID], $afterDate: Timestamp, $beforeDate: Timestamp, $perPage: Int, $page: Int, $sort: TournamentPaginationSort) {
  tournaments(
    query: {filter: {countryCode: $country, addrState: $state, videogameIds: $id, afterDate: $afterDate, beforeDate: $beforeDate}, sort: $sort, perPage: $perPage, page: $page}
  ) {
    pageInfo {
      total
      totalPages
      page
      perPage
    }
    nodes {
      name
      slug
      startAt
      endAt
      events {
        id
        videogame {
          id
          name
        }
      }
    }
  }
}`

// SearchTournaments fetches one page of tournaments matching the filter
func (c *Client) SearchTournaments(ctx context.Context, filter TournamentFilter, sort string, page, perPage int) (*TournamentPage, error) {
	variables := map[string]any{
		"country":    nullableString(filter.Country),
		"state":      nullableString(filter.State),
		"id":         nullableIDs(filter.VideogameIDs),
		"afterDate":  filter.AfterDate,
		"beforeDate": filter.BeforeDate,
		"perPage":    perPage,
		"page":       page,
		"sort":       sort,
	}

	var resp struct {
		Tournaments *TournamentPage `json:"tournaments"`
	}
	if err := c.do(ctx, "SearchTournaments", tournamentsSearchQuery, variables, &resp); err != nil {
		return nil, err
	}
	if resp.Tournaments == nil {
		return &TournamentPage{}, nil
	}
	return resp.Tournaments, nil
}

const tournamentEventsQuery = `
query TourneyQuery($slug: String) {
  tournament(slug: $slug) {
    id
    name
    events {
      id
      videogame {
        id
        name
      }
    }
  }
}`

// TournamentEvents fetches the event list for a tournament by slug
func (c *Client) TournamentEvents(ctx context.Context, slug string) ([]models.EventSummary, error) {
	var resp struct {
		Tournament *struct {
			ID     int64                 `json:"id"`
			Name   string                `json:"name"`
			Events []models.EventSummary `json:"events"`
		} `json:"tournament"`
	}
	if err := c.do(ctx, "TournamentEvents", tournamentEventsQuery, map[string]any{"slug": slug}, &resp); err != nil {
		return nil, err
	}
	if resp.Tournament == nil {
		return nil, fmt.Errorf("tournament not found: slug=%s", slug)
	}
	return resp.Tournament.Events, nil
}

// EventEntrants fetches entrants for multiple events in a single aliased
// query, the way the seeding pipeline batches its start.gg calls
func (c *Client) EventEntrants(ctx context.Context, eventIDs []int64, perPage int) ([]models.Event, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("query EventsQuery(")
	for i := range eventIDs {
		fmt.Fprintf(&b, "$id%d: ID!, ", i)
	}
	b.WriteString("$page: Int!, $perPage: Int!) {\n")
	for i := range eventIDs {
		fmt.Fprintf(&b, `E%d: event(id: $id%d) {
    id
    slug
    numEntrants
    startAt
    videogame { id name }
    entrants(query: {page: $page, perPage: $perPage}) {
      nodes {
        id
        participants { player { id gamerTag } }
      }
    }
  }
`, i, i)
	}
	b.WriteString("}")

	variables := map[string]any{"page": 0, "perPage": perPage}
	for i, id := range eventIDs {
		variables[fmt.Sprintf("id%d", i)] = id
	}

	data := map[string]*models.Event{}
	if err := c.do(ctx, "EventEntrants", b.String(), variables, &data); err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(eventIDs))
	for i := range eventIDs {
		ev := data[fmt.Sprintf("E%d", i)]
		if ev == nil {
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

// EntrantSets fetches recent sets for a batch of entrants via aliased
// paginatedSets queries. Returns a map of entrant ID to its sets.
func (c *Client) EntrantSets(ctx context.Context, entrantIDs []int64, perPage int) (map[int64][]models.Set, error) {
	if len(entrantIDs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("query EntrantsWithSets(")
	for i := range entrantIDs {
		fmt.Fprintf(&b, "$entrantId%d: ID!, ", i)
	}
	b.WriteString("$page: Int!, $perPage: Int!) {\n")
	for i := range entrantIDs {
		fmt.Fprintf(&b, `E%d: entrant(id: $entrantId%d) {
    paginatedSets(page: $page, perPage: $perPage) {
      nodes {
        id
        winnerId
        slots { entrant { id } }
      }
    }
  }
`, i, i)
	}
	b.WriteString("}")

	variables := map[string]any{"page": 0, "perPage": perPage}
	for i, id := range entrantIDs {
		variables[fmt.Sprintf("entrantId%d", i)] = id
	}

	type entrantSets struct {
		PaginatedSets struct {
			Nodes []models.Set `json:"nodes"`
		} `json:"paginatedSets"`
	}
	data := map[string]*entrantSets{}
	if err := c.do(ctx, "EntrantSets", b.String(), variables, &data); err != nil {
		return nil, err
	}

	sets := make(map[int64][]models.Set, len(entrantIDs))
	for i, id := range entrantIDs {
		es := data[fmt.Sprintf("E%d", i)]
		if es == nil {
			continue
		}
		sets[id] = es.PaginatedSets.Nodes
	}
	return sets, nil
}

// PlayerAccounts fetches gamer tags and user discriminators for a batch of
// players in a single aliased query
func (c *Client) PlayerAccounts(ctx context.Context, playerIDs []int64) (map[int64]PlayerAccount, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("query PlayerBatch(")
	for i := range playerIDs {
		fmt.Fprintf(&b, "$id%d: ID!, ", i)
	}
	b.WriteString(") {\n")
	for i := range playerIDs {
		fmt.Fprintf(&b, `P%d: player(id: $id%d) {
    id
    gamerTag
    user { discriminator }
  }
`, i, i)
	}
	b.WriteString("}")

	variables := map[string]any{}
	for i, id := range playerIDs {
		variables[fmt.Sprintf("id%d", i)] = id
	}

	type playerNode struct {
		ID       int64  `json:"id"`
		GamerTag string `json:"gamerTag"`
		User     *struct {
			Discriminator string `json:"discriminator"`
		} `json:"user"`
	}
	data := map[string]*playerNode{}
	if err := c.do(ctx, "PlayerAccounts", b.String(), variables, &data); err != nil {
		return nil, err
	}

	accounts := make(map[int64]PlayerAccount, len(playerIDs))
	for i, id := range playerIDs {
		p := data[fmt.Sprintf("P%d", i)]
		if p == nil {
			continue
		}
		acct := PlayerAccount{GamerTag: p.GamerTag}
		if p.User != nil {
			acct.HasUser = true
			acct.Discriminator = p.User.Discriminator
		}
		accounts[id] = acct
	}
	return accounts, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableIDs(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
