package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/orthocare/orthocare/internal/patients"
	"github.com/orthocare/orthocare/internal/transcribe"
)

// apiClient talks to the orthocare REST API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) transcriber() *transcribe.Client {
	return transcribe.NewClient(c.base+"/api/v1/transcribe", transcribe.WithToken(c.token))
}

func (c *apiClient) signIn(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/api/v1/auth/signin", map[string]string{"email": email, "password": password}, &out); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	c.token = out.Token
	return nil
}

func (c *apiClient) createPatient(ctx context.Context, in patients.CreateInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/patients", in, &out); err != nil {
		return "", fmt.Errorf("create patient: %w", err)
	}
	return out.ID, nil
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		if len(e.Fields) > 0 {
			return fmt.Errorf("%s: %v", e.Error, e.Fields)
		}
		return fmt.Errorf("%s", e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
