package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GoogleProfile is the subset of the userinfo response the app uses.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

type GoogleClient struct {
	userInfoURL string
	httpClient  *http.Client
}

func NewGoogleClient(userInfoURL string) *GoogleClient {
	return &GoogleClient{
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetUserDataFromGoogle fetches the profile for accessToken. The raw body is returned
// alongside so it can be stored as provider data.
func (g *GoogleClient) GetUserDataFromGoogle(ctx context.Context, accessToken string) (*GoogleProfile, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	response, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("google userinfo returned %d", response.StatusCode)
	}

	profile := &GoogleProfile{}
	if err := json.Unmarshal(contents, profile); err != nil {
		return nil, nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, nil, fmt.Errorf("google profile is missing id or email")
	}
	return profile, contents, nil
}
