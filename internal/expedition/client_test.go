package expedition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(t *testing.T, baseURL string, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithBackoffBase(time.Millisecond)}, opts...)
	c, err := NewClient(baseURL, "secret-token", opts...)
	require.NoError(t, err)
	return c
}

func TestShipmentCostSendsStringWeight(t *testing.T) {
	var body map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)

	jnt, ok := Lookup(VendorJNT)
	require.True(t, ok)
	_, err := c.ShipmentCost(context.Background(), jnt, "Jakarta Selatan", "Coblong", 1500)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "Jakarta Selatan", body["origin_name"])
	assert.Equal(t, "Coblong", body["destination_name"])
	assert.Equal(t, "1500", body["weight"], "gram courier keeps raw grams")

	lion, ok := Lookup(VendorLion)
	require.True(t, ok)
	_, err = c.ShipmentCost(context.Background(), lion, "Tebet, Jakarta Selatan", "Coblong, Bandung", 1500)
	require.NoError(t, err)
	assert.Equal(t, "1.5", body["weight"], "kilogram courier converts grams")
}

func TestDoRetriesTransientStatuses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"status":"success"}`))
		}
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)
	raw, err := c.do(context.Background(), http.MethodGet, "/ping", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(raw))
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoUnauthorizedIsTerminal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)
	_, err := c.do(context.Background(), http.MethodGet, "/ping", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), hits.Load(), "401 must not be retried")
}

func TestDoExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL, WithRetries(2))
	_, err := c.do(context.Background(), http.MethodGet, "/ping", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendStatus)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL, WithRetries(1), WithAttemptTimeout(20*time.Millisecond))
	_, err := c.do(context.Background(), http.MethodGet, "/slow", nil, nil)
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

func TestAvailableDiscountsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JNTEXPRESS", r.URL.Query().Get("vendor"))
		assert.Equal(t, "12000", r.URL.Query().Get("order_value"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"best_discount":null}}`))
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)
	best, err := c.AvailableDiscounts(context.Background(), "JNTEXPRESS", 12000)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestAvailableDiscountsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"best_discount":{
			"has_discount":true,"discount_type":"percentage","discount_value":10,
			"discount_amount":1200,"discounted_price":10800,"original_price":12000
		}}}`))
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)
	best, err := c.AvailableDiscounts(context.Background(), "JNTEXPRESS", 12000)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.True(t, best.HasDiscount)
	assert.Equal(t, int64(10800), best.DiscountedPrice)
	assert.Equal(t, float64(10), best.DiscountValue)
}

func TestPlacesDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/provinces/31/regencies", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":3171,"name":"Jakarta Selatan"},{"id":3172,"name":"Jakarta Timur"}]}`))
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL)
	places, err := c.Regencies(context.Background(), 31)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Jakarta Selatan", places[0].Name)
}
