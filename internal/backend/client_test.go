package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/domain"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*config.BackendConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.BackendConfig{
		BaseURL:    srv.URL + "/api/v1",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		AuthMode:   config.BackendAuthBearer,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg, nil).WithBackoff(time.Millisecond)
}

func TestMeSendsBearerAndDecodesNumericID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":42,"email":"alice@example.com","firstName":"Alice","lastName":"Smith","role":"PT_USER"}`))
	})

	u, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, domain.RoleTrainer, u.Role)
}

func TestMeMalformedPayload(t *testing.T) {
	for name, body := range map[string]string{
		"missing email": `{"id":"1"}`,
		"missing id":    `{"email":"a@b.co"}`,
		"not json":      `<html>`,
		"empty":         ``,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Me(context.Background(), "tok")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Me(context.Background(), "expired")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.co","role":"ADMIN"}`))
	})

	u, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorSurfacesAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Me(context.Background(), "tok")
	assert.True(t, IsServerError(err))
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.RegisterProfile(context.Background(), "tok", RegisterProfileRequest{Email: "a@b.co"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegisterProfileBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "alice@example.com", got["email"])
		assert.Equal(t, "CLIENT_USER", got["role"])
		assert.NotContains(t, got, "password")
		w.WriteHeader(http.StatusCreated)
	})

	err := c.RegisterProfile(context.Background(), "tok", RegisterProfileRequest{
		FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Role: domain.RoleClient,
	})
	assert.NoError(t, err)
}

func TestBasicAuthMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "gateway", user)
		assert.Equal(t, "pw", pass)
		_, _ = w.Write([]byte(`{"id":"1","email":"a@b.co"}`))
	}, func(cfg *config.BackendConfig) {
		cfg.AuthMode = config.BackendAuthBasic
		cfg.BasicUser = "gateway"
		cfg.BasicPassword = "pw"
	})

	_, err := c.Me(context.Background(), "ignored")
	assert.NoError(t, err)
}

func TestTimeoutIsRetryableNetworkError(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}, func(cfg *config.BackendConfig) {
		cfg.Timeout = 50 * time.Millisecond
		cfg.MaxRetries = 0
	})

	err := c.RegisterProfile(context.Background(), "tok", RegisterProfileRequest{Email: "a@b.co"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestCancellationIsNotANetworkError(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Me(ctx, "tok")
	assert.True(t, apperrors.IsCancelled(err))
	assert.False(t, apperrors.IsCode(err, apperrors.CodeNetwork))
}

func TestSearchNearbyQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/search/nearby", r.URL.Path)
		assert.Equal(t, "40.7128", q.Get("lat"))
		assert.Equal(t, "-74.006", q.Get("lon"))
		assert.Equal(t, "5", q.Get("radius"))
		assert.Equal(t, "gym", q.Get("type"))
		assert.Equal(t, "", q.Get("page"))
		_, _ = w.Write([]byte(`{"results":[{"id":7,"name":"Iron Gym","type":"gym","distance":1.2,
			"location":{"latitude":40.71,"longitude":-74.0,"address":"1 Main St"}}],
			"pagination":{"page":0,"size":20,"total":1,"totalPages":1},
			"searchCriteria":{"latitude":40.7128,"longitude":-74.006,"radius":5,"type":"gym"}}`))
	})

	res, err := c.SearchNearby(context.Background(), "", NearbyParams{Lat: 40.7128, Lon: -74.006, Radius: 5, Type: "gym"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ID("7"), res.Results[0].ID)
	assert.Equal(t, "1 Main St", res.Results[0].Location.Address)
	assert.Equal(t, 1, res.Pagination.TotalPages)
}

func TestSearchNearbyEmptyResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination":{"page":0,"size":20,"total":0,"totalPages":0}}`))
	})
	res, err := c.SearchNearby(context.Background(), "", NearbyParams{Lat: 1, Lon: 2, Radius: 3})
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestForwardPassesStatusThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/gyms/3", r.URL.Path)
		assert.Equal(t, "page=2", r.URL.RawQuery)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"gym not found"}`))
	})

	resp, err := c.Forward(context.Background(), ForwardRequest{Method: http.MethodGet, Path: "/gyms/3", RawQuery: "page=2", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"message":"gym not found"}`, string(resp.Body))
}
