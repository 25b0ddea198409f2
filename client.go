package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type errorKind int

const (
	errAuthFailure errorKind = iota
	errBadRequest
	errNotFound
	errRateLimited
	errMalformedResponse
	errTransport
)

func (k errorKind) String() string {
	switch k {
	case errAuthFailure:
		return "auth_failure"
	case errBadRequest:
		return "bad_request"
	case errNotFound:
		return "not_found"
	case errRateLimited:
		return "rate_limited"
	case errMalformedResponse:
		return "malformed_response"
	default:
		return "transport"
	}
}

type fetchError struct {
	kind    errorKind
	message string
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func fetchErrf(kind errorKind, format string, args ...any) *fetchError {
	return &fetchError{kind: kind, message: fmt.Sprintf(format, args...)}
}

func errorKindOf(err error) errorKind {
	var fe *fetchError
	if errors.As(err, &fe) {
		return fe.kind
	}
	return errTransport
}

type Lesson struct {
	SlotNumber int    `json:"lesson_num"`
	Subject    string `json:"subject"`
	Teacher    string `json:"teacher,omitempty"`
	Classroom  string `json:"classroom,omitempty"`
}

// ScheduleSource is the one capability both schedule variants implement.
// An empty slice with a nil error means a free day.
type ScheduleSource interface {
	Fetch(ctx context.Context, groupID string, day int) ([]Lesson, error)
	Name() string
}

type apiSource struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
}

func newAPISource(baseURL string, httpClient *http.Client, tokens *TokenManager) *apiSource {
	return &apiSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

func (s *apiSource) Name() string { return "api" }

type scheduleResponse struct {
	Data *struct {
		Lessons []Lesson `json:"lessons"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Msg string `json:"msg"`
}

func (s *apiSource) Fetch(ctx context.Context, groupID string, day int) ([]Lesson, error) {
	if err := s.tokens.EnsureValid(ctx); err != nil {
		return nil, err
	}

	// Bounded retry: at most one refresh+retry cycle on a rejected access token.
	for attempt := 0; ; attempt++ {
		lessons, err := s.fetchOnce(ctx, groupID, day)
		if err == nil {
			return lessons, nil
		}
		if errorKindOf(err) != errAuthFailure || attempt > 0 {
			return nil, err
		}
		if rerr := s.tokens.Refresh(ctx); rerr != nil {
			return nil, fetchErrf(errAuthFailure, "refresh after 401 failed: %v", rerr)
		}
	}
}

func (s *apiSource) fetchOnce(ctx context.Context, groupID string, day int) ([]Lesson, error) {
	q := url.Values{}
	q.Set("group_id", groupID)
	q.Set("day_of_week", strconv.Itoa(day))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/get-schedule?"+q.Encode(), nil)
	if err != nil {
		return nil, fetchErrf(errTransport, "build request: %v", err)
	}
	rid := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+s.tokens.AccessToken())
	req.Header.Set("X-Request-ID", rid)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fetchErrf(errTransport, "schedule request failed: %v", err)
	}
	defer resp.Body.Close()

	log.Printf("schedule fetch: group=%s day=%d status=%d rid=%s", groupID, day, resp.StatusCode, rid)

	switch resp.StatusCode {
	case http.StatusOK:
		var body scheduleResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fetchErrf(errMalformedResponse, "decode schedule response: %v", err)
		}
		if body.Data == nil || body.Data.Lessons == nil {
			return nil, fetchErrf(errMalformedResponse, "response missing data.lessons")
		}
		return body.Data.Lessons, nil
	case http.StatusUnauthorized:
		return nil, fetchErrf(errAuthFailure, "access token rejected")
	case http.StatusBadRequest:
		return nil, fetchErrf(errBadRequest, "%s", readServerMessage(resp.Body))
	case http.StatusNotFound:
		return nil, fetchErrf(errNotFound, "schedule not found")
	case http.StatusTooManyRequests:
		return nil, fetchErrf(errRateLimited, "rate limit exceeded")
	default:
		return nil, fetchErrf(errTransport, "unexpected status: %d", resp.StatusCode)
	}
}

func readServerMessage(r io.Reader) string {
	var body apiErrorResponse
	if err := json.NewDecoder(r).Decode(&body); err == nil && strings.TrimSpace(body.Msg) != "" {
		return strings.TrimSpace(body.Msg)
	}
	return "bad request"
}
