package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/easybody/auth-gateway/internal/domain"
)

// ID accepts both numeric and string identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// RegisterProfileRequest is the profile mirrored into the backend after sign-up.
type RegisterProfileRequest struct {
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	Email           string      `json:"email"`
	PhoneNumber     string      `json:"phoneNumber,omitempty"`
	Role            domain.Role `json:"role"`
	ProfileImageURL string      `json:"profileImageUrl,omitempty"`
}

// UserPayload is the backend's view of a user.
type UserPayload struct {
	ID          ID     `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        string `json:"role"`
}

// User converts the payload. Payloads without id or email are malformed.
func (p UserPayload) User() (*domain.User, error) {
	if p.ID == "" || strings.TrimSpace(p.Email) == "" {
		return nil, malformed(fmt.Errorf("user without id or email"))
	}
	role, ok := domain.ParseRole(p.Role)
	if !ok {
		role = domain.RoleClient
	}
	return &domain.User{
		ID:          string(p.ID),
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.PhoneNumber,
		Role:        role,
	}, nil
}

// RegisterProfile creates the backend profile for a freshly signed-in identity.
func (c *Client) RegisterProfile(ctx context.Context, token string, req RegisterProfileRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/register", nil, req, token, nil)
}

// Me returns the backend profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var payload UserPayload
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, nil, token, &payload); err != nil {
		return nil, err
	}
	return payload.User()
}

// NearbyParams is a radius search around a point. Type is "gym", "pt" or empty.
type NearbyParams struct {
	Lat    float64
	Lon    float64
	Radius float64
	Type   string
	Page   int
	Size   int
}

func (p NearbyParams) query() url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(p.Radius, 'f', -1, 64))
	if p.Type != "" {
		q.Set("type", p.Type)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", strconv.Itoa(p.Size))
	}
	return q
}

type Location struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Address          string  `json:"address"`
	City             string  `json:"city,omitempty"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
}

// NearbyResult is one gym or trainer. Type-specific fields are left empty for the other kind.
type NearbyResult struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Distance      float64  `json:"distance"`
	Location      Location `json:"location"`
	Description   string   `json:"description,omitempty"`
	LogoURL       string   `json:"logoUrl,omitempty"`
	PhoneNumber   string   `json:"phoneNumber,omitempty"`
	Email         string   `json:"email,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	HourlyRate    float64  `json:"hourlyRate,omitempty"`
	AverageRating float64  `json:"averageRating,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type SearchCriteria struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
	Type      string  `json:"type,omitempty"`
}

type NearbyResponse struct {
	Results        []NearbyResult `json:"results"`
	Pagination     Pagination     `json:"pagination"`
	SearchCriteria SearchCriteria `json:"searchCriteria"`
}

// SearchNearby runs the backend radius search.
func (c *Client) SearchNearby(ctx context.Context, token string, p NearbyParams) (*NearbyResponse, error) {
	var out NearbyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/search/nearby", p.query(), nil, token, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []NearbyResult{}
	}
	return &out, nil
}

// ForwardRequest is a pass-through call to any backend resource.
type ForwardRequest struct {
	Method      string
	Path        string
	RawQuery    string
	Body        []byte
	ContentType string
	Token       string
}

// ForwardResponse is the backend answer, status untouched.
type ForwardResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forward relays one request. Only transport failures are errors; any HTTP
// status is returned as is.
func (c *Client) Forward(ctx context.Context, fr ForwardRequest) (*ForwardResponse, error) {
	var body io.Reader
	if len(fr.Body) > 0 {
		body = bytes.NewReader(fr.Body)
	}
	query, err := url.ParseQuery(fr.RawQuery)
	if err != nil {
		query = nil
	}
	req, err := c.newRequest(ctx, fr.Method, fr.Path, query, body, fr.Token)
	if err != nil {
		return nil, err
	}
	if fr.ContentType != "" {
		req.Header.Set("Content-Type", fr.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return &ForwardResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}
