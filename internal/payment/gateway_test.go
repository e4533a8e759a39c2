package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewayCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "1999", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "tok_visa", r.PostForm.Get("source"))
		_, _ = w.Write([]byte(`{"id":"ch_1","amount":1999}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL+"/", "sk_test")
	receipt, err := g.Charge(context.Background(), Charge{
		Token: "tok_visa", Amount: decimal.RequireFromString("19.99"), Currency: "USD", Customer: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch_1", receipt.ChargeID)
	assert.True(t, receipt.Amount.Equal(decimal.RequireFromString("19.99")))
}

func TestHTTPGatewayDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test")
	for i := 0; i < 10; i++ {
		_, err := g.Charge(context.Background(), Charge{Token: "tok", Amount: decimal.NewFromInt(1), Currency: "usd"})
		var declined *DeclinedError
		require.ErrorAs(t, err, &declined)
		assert.Equal(t, "Your card was declined.", Reason(err))
	}
}

func TestHTTPGatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "sk_test")
	_, err := g.Charge(context.Background(), Charge{Token: "tok", Amount: decimal.NewFromInt(1), Currency: "usd"})
	require.Error(t, err)
	assert.Equal(t, "the payment processor is unavailable", Reason(err))
}
