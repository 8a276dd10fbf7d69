package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrProfilesUnavailable is returned when the profiles service could not be reached.
	ErrProfilesUnavailable = errors.New("profiles service unavailable")
	// ErrProfileNotFound is returned when no profile matches.
	ErrProfileNotFound = errors.New("profile not found")
)

// Profile is a user profile as served by the profiles service.
type Profile struct {
	ID         int64  `json:"id"`
	Name       string `json:"name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	Surname    string `json:"surname,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Group      string `json:"group,omitempty"`
	About      string `json:"about,omitempty"`
	Photo      string `json:"photo,omitempty"`
}

// Profiles looks up user profiles.
type Profiles interface {
	FindByCredentials(ctx context.Context, phone, passwordHash string) (Profile, error)
	Get(ctx context.Context, id int64) (Profile, error)
}

// HashPassword returns the hex SHA-256 digest the profiles service stores.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// ProfilesClient talks to the profiles REST service.
type ProfilesClient struct {
	base   string
	client *http.Client
}

// NewProfilesClient creates a client for the profiles collection at baseURL.
func NewProfilesClient(baseURL string, timeout time.Duration) (*ProfilesClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid profiles url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProfilesClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

type filter struct {
	Name string `json:"name"`
	Op   string `json:"op"`
	Val  string `json:"val"`
}

type query struct {
	Filters []filter `json:"filters"`
	Single  bool     `json:"single"`
}

// FindByCredentials returns the single profile with the given phone and password hash.
func (c *ProfilesClient) FindByCredentials(ctx context.Context, phone, passwordHash string) (Profile, error) {
	q, err := json.Marshal(query{
		Filters: []filter{
			{Name: "phone", Op: "==", Val: phone},
			{Name: "password_hash", Op: "==", Val: passwordHash},
		},
		Single: true,
	})
	if err != nil {
		return Profile{}, err
	}
	return c.get(ctx, c.base+"?"+url.Values{"q": {string(q)}}.Encode())
}

// Get returns the profile with the given id.
func (c *ProfilesClient) Get(ctx context.Context, id int64) (Profile, error) {
	return c.get(ctx, c.base+"/"+strconv.FormatInt(id, 10))
}

func (c *ProfilesClient) get(ctx context.Context, target string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfilesUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Profile{}, fmt.Errorf("%w (status %d)", ErrProfileNotFound, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}
