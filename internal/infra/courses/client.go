// Package courses answers enrollment questions for the quiz service.
package courses

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"teach-quiz-service/internal/domain"
)

// Client asks the courses service whether a student is enrolled in a course.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
}

// NewClient builds a client. Transport errors and 5xx answers are retried up
// to retries times with exponential backoff.
func NewClient(baseURL string, timeout time.Duration, retries uint64) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retries: retries,
	}
}

type validateResponse struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// IsEnrolled calls GET {base}/courses/{course}/validate/{email}. 200 means
// enrolled, 404 means not enrolled; anything else is an error.
func (c *Client) IsEnrolled(ctx context.Context, courseID, email string) (domain.Student, bool, error) {
	endpoint := fmt.Sprintf("%s/courses/%s/validate/%s", c.baseURL, url.PathEscape(courseID), url.PathEscape(email))

	var (
		student  domain.Student
		enrolled bool
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.retries), ctx)
	err := backoff.Retry(func() error {
		var err error
		student, enrolled, err = c.validate(ctx, endpoint, email)
		return err
	}, policy)
	if err != nil {
		return domain.Student{}, false, err
	}
	return student, enrolled, nil
}

func (c *Client) validate(ctx context.Context, endpoint, email string) (domain.Student, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Student{}, false, backoff.Permanent(fmt.Errorf("build enrollment request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Student{}, false, fmt.Errorf("enrollment request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body validateResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && err != io.EOF {
			return domain.Student{}, false, backoff.Permanent(fmt.Errorf("decode enrollment response: %w", err))
		}
		return domain.Student{Email: email, FullName: body.FullName}, true, nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.Student{}, false, nil
	case resp.StatusCode >= 500:
		return domain.Student{}, false, fmt.Errorf("enrollment check: status %d", resp.StatusCode)
	default:
		return domain.Student{}, false, backoff.Permanent(fmt.Errorf("enrollment check: unexpected status %d", resp.StatusCode))
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}
