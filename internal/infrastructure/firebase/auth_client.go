package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"

	"shopdesk/internal/domain/entity"
)

const signInURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword?key="

type FirebaseAuthClient struct {
	client     *auth.Client
	apiKey     string
	httpClient *http.Client
}

func NewFirebaseAuthClient(client *auth.Client, apiKey string) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client:     client,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *FirebaseAuthClient) CreateUser(ctx context.Context, email, password, displayName string) (*entity.Identity, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	user, err := f.client.CreateUser(ctx, params)
	if err != nil {
		return nil, err
	}

	return &entity.Identity{ID: user.UID, Email: user.Email, DisplayName: user.DisplayName}, nil
}

func (f *FirebaseAuthClient) DeleteUser(ctx context.Context, uid string) error {
	return f.client.DeleteUser(ctx, uid)
}

// SignIn exchanges email and password for an ID token through the Identity Toolkit REST API.
func (f *FirebaseAuthClient) SignIn(ctx context.Context, email, password string) (*entity.Identity, string, error) {
	if f.apiKey == "" {
		return nil, "", fmt.Errorf("firebase api key is not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signInURL+f.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("sign in request failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		IDToken     string `json:"idToken"`
		Error       *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("decode sign in response: %v", err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != nil {
		msg := resp.Status
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, "", fmt.Errorf("sign in rejected: %s", msg)
	}

	return &entity.Identity{ID: result.LocalID, Email: result.Email, DisplayName: result.DisplayName}, result.IDToken, nil
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// SignOut revokes every refresh token of uid; tokens issued before now stop verifying.
func (f *FirebaseAuthClient) SignOut(ctx context.Context, uid string) error {
	return f.client.RevokeRefreshTokens(ctx, uid)
}
