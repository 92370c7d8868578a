package stripeclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"promptmarket/internal/application/payments"
	"promptmarket/internal/metrics"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const secret = "whsec_test_secret"

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return New(Options{
		SecretKey:      "sk_test_123",
		PublishableKey: "pk_test_123",
		WebhookSecret:  secret,
		Backends:       &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
}

func TestCreateIntent(t *testing.T) {
	var form url.Values
	var idem string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		idem = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret","status":"requires_payment_method","amount":999,"currency":"usd","metadata":{"purchase_id":"p1"}}`)
	})

	in, err := c.CreateIntent(context.Background(), payments.IntentParams{
		Amount:         999,
		Currency:       "USD",
		Metadata:       map[string]string{"purchase_id": "p1"},
		IdempotencyKey: "purchase-intent-p1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", in.ID)
	assert.Equal(t, "pi_123_secret", in.ClientSecret)
	assert.Equal(t, money.Cents(999), in.Amount)
	assert.Equal(t, "999", form.Get("amount"))
	assert.Equal(t, "usd", form.Get("currency"))
	assert.Equal(t, "p1", form.Get("metadata[purchase_id]"))
	assert.Equal(t, "purchase-intent-p1", idem)
}

func TestCancelIntent(t *testing.T) {
	var form url.Values
	var idem string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123/cancel", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		idem = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","status":"canceled","amount":999,"currency":"usd"}`)
	})

	before := latencySamples(t, "cancel_intent")
	require.NoError(t, c.CancelIntent(context.Background(), "pi_123"))
	assert.Equal(t, before+1, latencySamples(t, "cancel_intent"))
	assert.Equal(t, "abandoned", form.Get("cancellation_reason"))
	assert.Equal(t, "cancel-pi_123", idem)
}

func TestServerErrorsAreTemporary(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"try later"}}`)
	})
	_, err := c.Transfer(context.Background(), "acct_1", 2550, "usd", "payout-1")
	require.Error(t, err)
	assert.True(t, apperror.IsTemporary(err))
}

func TestCardErrorsAreNotTemporary(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such destination"}}`)
	})
	_, err := c.Transfer(context.Background(), "acct_missing", 2550, "usd", "payout-2")
	require.Error(t, err)
	assert.False(t, apperror.IsTemporary(err))
}

func sign(payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructEvent(t *testing.T) {
	c := New(Options{WebhookSecret: secret})
	payload := []byte(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_9","object":"payment_intent","status":"requires_payment_method","amount":500,"currency":"usd","metadata":{"purchase_id":"p9"},"last_payment_error":{"message":"Your card was declined."}}}}`)

	ev, err := c.ConstructEvent(payload, sign(payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payments.EventIntentFailed, ev.Type)
	require.NotNil(t, ev.Intent)
	assert.Equal(t, "pi_9", ev.Intent.ID)
	assert.Equal(t, "p9", ev.Intent.Metadata["purchase_id"])
	assert.Equal(t, "Your card was declined.", ev.Intent.FailureMessage)

	_, err = c.ConstructEvent(payload, "t=123,v1=invalid")
	assert.Error(t, err)

	_, err = c.ConstructEvent(payload, sign(payload, time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

// latencySamples counts gateway latency observations for op.
func latencySamples(t *testing.T, op string) uint64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(metrics.GatewayLatency))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "operation" && l.GetValue() == op {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}
