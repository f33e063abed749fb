package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPVerifier asks the external identity service to introspect a session
// token. The service owns sessions; we only trust its answer.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Subject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/sessions/verify", nil)
	if err != nil {
		return Subject{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return Subject{}, fmt.Errorf("identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Subject{}, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return Subject{}, fmt.Errorf("identity service: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Subject{}, fmt.Errorf("identity service: %w", err)
	}
	if body.UserID == "" {
		return Subject{}, ErrUnauthenticated
	}
	return Subject{ID: body.UserID, Role: body.Role}, nil
}

// StaticVerifier maps tokens to subjects directly. Used in tests and local
// development where no identity service is running.
type StaticVerifier map[string]Subject

func (v StaticVerifier) Verify(_ context.Context, token string) (Subject, error) {
	s, ok := v[token]
	if !ok {
		return Subject{}, ErrUnauthenticated
	}
	return s, nil
}
