package api

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
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:    server.URL + "/",
		Email:      "ops@example.com",
		Password:   "secret",
		ClientType: "web",
		Timeout:    2 * time.Second,
	})
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"email": "ops@example.com", "password": "secret", "clientType": "web"}, body)

		w.Write([]byte(`{"data":{"token":"abc123"}}`))
	}))

	token, err := client.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestLogin_MissingToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))

	_, err := client.Login(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLogin_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))

	_, err := client.Login(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "bad credentials", statusErr.Body)
}

func TestListDevices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data":[
			{"id":"dev-1","name":"Meeting Room","latitude":"41.15","longitude":-8.61},
			{"id":42,"number":7,"latitude":null,"longitude":""},
			{"id":"dev-3","latitude":0}
		]}`))
	}))

	devices, err := client.ListDevices(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, FlexString("dev-1"), devices[0].ID)
	assert.Equal(t, "Meeting Room", devices[0].DisplayName())
	require.NotNil(t, devices[0].Latitude.Float())
	assert.InDelta(t, 41.15, *devices[0].Latitude.Float(), 1e-9)
	assert.InDelta(t, -8.61, *devices[0].Longitude.Float(), 1e-9)

	assert.Equal(t, FlexString("42"), devices[1].ID)
	assert.Equal(t, "Device 7", devices[1].DisplayName())
	assert.Nil(t, devices[1].Latitude.Float())
	assert.Nil(t, devices[1].Longitude.Float())

	assert.Equal(t, "Device dev-3", devices[2].DisplayName())
	assert.Nil(t, devices[2].Latitude.Float())
}

func TestListDevices_MissingData(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	devices, err := client.ListDevices(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestFetchReadings(t *testing.T) {
	from := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	to := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("WEST", 3600))

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data-classifications", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "dev-1", query.Get("deviceId"))
		assert.Equal(t, "true", query.Get("includeData"))
		assert.Equal(t, "2024-05-01T09:30:00.000Z", query.Get("dateFrom"))
		assert.Equal(t, "2024-05-01T09:00:00.000Z", query.Get("dateTo"))

		w.Write([]byte(`{"data":[
			{"createdAt":"2024-05-01T09:40:00.000Z","discomfortIndex":1.5,
			 "data":{"ccs811Eco2":812,"ics43434DbAvg":44.2,"si7021Temp":23.1,"si7021Humidity":41,"other":1}},
			{"createdAt":"2024-05-01T09:50:00.000Z","data":null}
		]}`))
	}))

	readings, err := client.FetchReadings(context.Background(), "tok", "dev-1", &from, to)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	first := readings[0]
	assert.True(t, first.CreatedAt.Equal(time.Date(2024, 5, 1, 9, 40, 0, 0, time.UTC)))
	assert.InDelta(t, 1.5, *first.DiscomfortIndex, 1e-9)
	assert.InDelta(t, 812, *first.Data.CO2Eq, 1e-9)
	assert.InDelta(t, 44.2, *first.Data.NoiseAvg, 1e-9)
	assert.InDelta(t, 23.1, *first.Data.AirTemp, 1e-9)
	assert.InDelta(t, 41, *first.Data.Humidity, 1e-9)

	second := readings[1]
	assert.Nil(t, second.DiscomfortIndex)
	assert.Nil(t, second.Data.CO2Eq)
}

func TestFetchReadings_OmitsDateFromWithoutWatermark(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["dateFrom"]
		assert.False(t, present)
		w.Write([]byte(`{"data":[]}`))
	}))

	readings, err := client.FetchReadings(context.Background(), "tok", "dev-1", nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	for i := 0; i < BREAKER_MAX_FAILURES; i++ {
		_, err := client.ListDevices(context.Background(), "tok")
		require.Error(t, err)
	}

	_, err := client.ListDevices(context.Background(), "tok")
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(BREAKER_MAX_FAILURES), calls.Load())
}

func TestCircuitBreakerIgnoresRequestFaults(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no such device", http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[{"createdAt":"yesterday"}]}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))

			for i := 0; i < 2*BREAKER_MAX_FAILURES; i++ {
				_, err := client.FetchReadings(context.Background(), "tok", "dev-1", nil, time.Now())
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrCircuitOpen)
				tt.check(t, err)
			}
			assert.Equal(t, int32(2*BREAKER_MAX_FAILURES), calls.Load())
		})
	}
}

func TestCircuitBreakerIgnoresCallerDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	for i := 0; i < BREAKER_MAX_FAILURES+1; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := client.FetchReadings(ctx, "tok", "slow", nil, time.Now())
		cancel()

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var s FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &s))
}
