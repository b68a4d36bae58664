package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimartpay/digipay-go/domain"
)

func newTestClient(t *testing.T, handler http.Handler, mode domain.AddressingMode) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Config{BaseURL: srv.URL}, mode, zerolog.Nop())
	return client, srv
}

func keyMode(key string) domain.AddressingMode {
	return domain.AddressingMode{Kind: domain.ModeMerchantKey, Value: key}
}

func TestMerchantMetadataSendsPublicKeyHeader(t *testing.T) {
	var gotKey string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-public-key")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"name": "Acme", "email": "pay@acme.io", "kycstatus": "verified"},
		})
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	mc, err := client.MerchantMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mk_1", gotKey)
	assert.Equal(t, "Acme", mc.Name)
	assert.True(t, mc.Verified())
}

func TestMerchantMetadataRequiresMerchantKeyMode(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), domain.AddressingMode{Kind: domain.ModeLinkSlug, Value: "s"})

	_, err := client.MerchantMetadata(context.Background())
	var capErr *domain.CapabilityError
	require.True(t, errors.As(err, &capErr))
}

func TestEnvelopeBareObjectTolerated(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Older backend revisions answered without the data wrapper.
		json.NewEncoder(w).Encode(map[string]any{"name": "Acme", "email": "pay@acme.io"})
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	mc, err := client.MerchantMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", mc.Name)
}

func TestErrorEnvelopeMessagePreferred(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "insufficient merchant balance"})
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	_, err := client.CreateIntent(context.Background(), IntentRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "PI",
	})
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.Status)
	assert.Equal(t, "insufficient merchant balance", gwErr.Error())
}

func TestErrorWithoutEnvelopeFallsBack(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	_, err := client.MerchantMetadata(context.Background())
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadGateway, gwErr.Status)
	assert.Contains(t, gwErr.Error(), "502")
}

func TestConvertIdentityShortCircuits(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	amount := decimal.RequireFromString("12.34")
	got, err := client.Convert(context.Background(), amount, "PI", "PI")
	require.NoError(t, err)
	assert.True(t, got.Equal(amount))
	assert.Zero(t, calls, "identity conversion must not issue a network call")
}

func TestConvertParsesConvertedAmount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/currency/convert", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("amount"))
		assert.Equal(t, "PI", r.URL.Query().Get("from"))
		assert.Equal(t, "USD", r.URL.Query().Get("to"))
		json.NewEncoder(w).Encode(map[string]any{"convertedAmount": "34.50"})
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	got, err := client.Convert(context.Background(), decimal.NewFromInt(10), "PI", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("34.50")))
}

func TestCreateIntentRoutesByMode(t *testing.T) {
	tests := []struct {
		name          string
		mode          domain.AddressingMode
		wantPath      string
		wantSelector  string
		wantSelectVal string
		wantKeyHeader string
	}{
		{"merchant key", keyMode("mk_1"), "/payment/inline-intent", "", "", "mk_1"},
		{"link slug", domain.AddressingMode{Kind: domain.ModeLinkSlug, Value: "sale"}, "/payment/link-intent", "linkSlug", "sale", ""},
		{"invoice", domain.AddressingMode{Kind: domain.ModeInvoice, Value: "inv_1"}, "/payment/invoice-intent", "invoiceRef", "inv_1", ""},
		{"transaction ref", domain.AddressingMode{Kind: domain.ModeTransactionRef, Value: "tx_1"}, "/payment/resume-intent", "transactionRef", "tx_1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotKey, gotIdem string
			var gotBody map[string]any
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("x-public-key")
				gotIdem = r.Header.Get("Idempotency-Key")
				json.NewDecoder(r.Body).Decode(&gotBody)
				json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
					"transactionref": "ref_1", "amount": "10", "currency": "PI", "status": "created",
				}})
			})
			client, _ := newTestClient(t, handler, tt.mode)

			tx, err := client.CreateIntent(context.Background(), IntentRequest{
				Amount:   decimal.NewFromInt(10),
				Currency: "PI",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantKeyHeader, gotKey)
			assert.NotEmpty(t, gotIdem)
			assert.Equal(t, "ref_1", tx.Reference)
			if tt.wantSelector != "" {
				assert.Equal(t, tt.wantSelectVal, gotBody[tt.wantSelector])
			} else {
				_, present := gotBody["linkSlug"]
				assert.False(t, present)
			}
		})
	}
}

func TestApproveAttachesKeyOnlyWhenAvailable(t *testing.T) {
	var gotKey string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-public-key")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"transactionref": "ref_1", "status": "approved", "amount": "10", "currency": "PI",
		}})
	})

	client, _ := newTestClient(t, handler, keyMode("mk_1"))
	tx, err := client.Approve(context.Background(), "ref_1", "pi_pay_1")
	require.NoError(t, err)
	assert.Equal(t, "mk_1", gotKey)
	assert.Equal(t, domain.StatusApproved, tx.Status)

	anon, _ := newTestClient(t, handler, domain.AddressingMode{Kind: domain.ModeLinkSlug, Value: "s"})
	_, err = anon.Approve(context.Background(), "ref_1", "pi_pay_1")
	require.NoError(t, err)
	assert.Empty(t, gotKey, "anonymous modes must not send a merchant key")
}

func TestCompleteSendsChainTxID(t *testing.T) {
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"transactionref": "ref_1", "status": "completed", "amount": "10", "currency": "PI", "txid": "chain_tx",
		}})
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	tx, err := client.Complete(context.Background(), "ref_1", "chain_tx")
	require.NoError(t, err)
	assert.Equal(t, "ref_1", gotBody["transactionRef"])
	assert.Equal(t, "chain_tx", gotBody["txid"])
	assert.Equal(t, domain.StatusCompleted, tx.Status)
}

func TestSignInAndOut(t *testing.T) {
	var paths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newTestClient(t, handler, keyMode("mk_1"))

	user := domain.AuthenticatedUser{UID: "u1", Username: "alice", AccessToken: "tok"}
	require.NoError(t, client.SignIn(context.Background(), user))
	require.NoError(t, client.SignOut(context.Background(), "u1"))
	assert.Equal(t, []string{"/customer/signin", "/customer/signout"}, paths)
}

func TestTransactionSnapshotModeGuard(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/tx_9", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"transactionref": "tx_9", "status": "completed", "amount": "5", "currency": "PI",
		}})
	})
	client, _ := newTestClient(t, handler, domain.AddressingMode{Kind: domain.ModeTransactionRef, Value: "tx_9"})

	tx, err := client.TransactionSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, tx.Status.Settled())

	other, _ := newTestClient(t, handler, keyMode("mk_1"))
	_, err = other.TransactionSnapshot(context.Background())
	var capErr *domain.CapabilityError
	require.True(t, errors.As(err, &capErr))
}
