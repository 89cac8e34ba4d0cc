package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// LoginRequest is the body of POST /auth/student/login.
type LoginRequest struct {
	NISN     string `json:"nisn"`
	Password string `json:"password"`
}

// Login exchanges student credentials for a bearer token. It is the only
// unauthenticated call.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/auth/student/login", LoginRequest{NISN: identifier, Password: password}, false)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", decodeHTTPError(status, body)
	}

	// Accept both {"token": ...} and the enveloped {"data": {"token": ...}}.
	var res struct {
		Token string `json:"token"`
		Data  struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	token := res.Token
	if token == "" {
		token = res.Data.Token
	}
	if token == "" {
		return "", fmt.Errorf("decode login response: missing token")
	}
	return token, nil
}
