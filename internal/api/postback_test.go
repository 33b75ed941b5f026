package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fastprodman/rewardrecon/internal/config"
	"github.com/fastprodman/rewardrecon/internal/services/reconcile"
	"github.com/fastprodman/rewardrecon/internal/signature"
	"github.com/fastprodman/rewardrecon/internal/store/memory"
	"github.com/fastprodman/rewardrecon/internal/vendors"
	"github.com/stretchr/testify/require"
)

const (
	cpxSecret   = "cpx-secret"
	adgemSecret = "adgem-secret"
	toroSecret  = "toro-secret"
)

func testOptions() Options {
	return Options{
		Vendors: config.VendorsConfig{
			OfferToroSecret: toroSecret,
			OfferToroAlgo:   signature.MD5,
			AdGemSecret:     adgemSecret,
			AdGemAlgo:       signature.HMACSHA256,
			CPXSecret:       cpxSecret,
			CPXAlgo:         signature.MD5,
		},
		Timeout: time.Second,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	st := memory.New()
	svc := reconcile.New(st, reconcile.WithRetryBackoff(0))

	srv := httptest.NewServer(NewRouter(svc, testOptions()))
	t.Cleanup(srv.Close)

	return srv, st
}

// signed fills the digest param of q the way the vendor would.
func signed(t *testing.T, a vendors.Adapter, q url.Values, digestParam, secret string) url.Values {
	t.Helper()

	q.Set(digestParam, "placeholder")

	pb, err := a.Parse(q)
	require.NoError(t, err)

	d, err := signature.Digest(a.DefaultAlgorithm(), pb.Fields, secret)
	require.NoError(t, err)

	q.Set(digestParam, d)

	return q
}

func cpxQuery(t *testing.T, txid, user, amount, status string) url.Values {
	t.Helper()

	return signed(t, vendors.CPX{}, url.Values{
		"trans_id":   {txid},
		"user_id":    {user},
		"amount_usd": {amount},
		"currency":   {"USD"},
		"timestamp":  {"1700000000"},
		"status":     {status},
	}, "hash", cpxSecret)
}

func get(t *testing.T, srv *httptest.Server, path string, q url.Values) (int, string) {
	t.Helper()

	u := srv.URL + path
	if q != nil {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, u, nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func balanceOf(t *testing.T, srv *httptest.Server, account string) int64 {
	t.Helper()

	code, body := get(t, srv, "/accounts/"+account+"/balance", nil)
	require.Equal(t, http.StatusOK, code, body)

	var resp struct {
		AccountID string `json:"accountId"`
		Balance   int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Equal(t, account, resp.AccountID)

	return resp.Balance
}

func TestPostback_CPX_Lifecycle(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	reward := cpxQuery(t, "tx-A", "u1", "2.50", "1")

	code, body := get(t, srv, "/postback/cpx", reward)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1", body)
	require.Equal(t, int64(250), balanceOf(t, srv, "u1"))

	// replay acks without crediting again
	code, body = get(t, srv, "/postback/cpx", reward)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1", body)
	require.Equal(t, int64(250), balanceOf(t, srv, "u1"))

	reversal := cpxQuery(t, "tx-A", "u1", "2.50", "2")

	code, _ = get(t, srv, "/postback/cpx", reversal)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(0), balanceOf(t, srv, "u1"))

	code, _ = get(t, srv, "/postback/cpx", reversal)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(0), balanceOf(t, srv, "u1"))

	code, body = get(t, srv, "/accounts/u1/audit", nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"accountId":"u1","balance":0,"ledgerSum":0,"consistent":true}`, body)
}

func TestPostback_BadSignature(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t)

	q := cpxQuery(t, "tx-1", "u1", "2.50", "1")
	q.Set("amount_usd", "25.00")

	code, body := get(t, srv, "/postback/cpx", q)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "0", body)
	require.Equal(t, 0, st.TransactionCount())

	code, _ = get(t, srv, "/accounts/u1/balance", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestPostback_Invalid(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t)

	code, body := get(t, srv, "/postback/cpx", url.Values{"user_id": {"u1"}})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "0", body)
	require.Equal(t, 0, st.TransactionCount())
}

func TestPostback_StorageUnavailable(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t)
	st.SetCommitHook(func(string) error { return errors.New("disk on fire") })

	code, body := get(t, srv, "/postback/cpx", cpxQuery(t, "tx-1", "u1", "1.00", "1"))
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "0", body)
}

func TestPostback_AdGemAndOfferToro(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	adgem := signed(t, vendors.AdGem{}, url.Values{
		"appid":          {"app"},
		"player_id":      {"u2"},
		"transaction_id": {"ag-1"},
		"payout":         {"0.125"},
	}, "verifier", adgemSecret)

	code, _ := get(t, srv, "/postback/adgem", adgem)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(12), balanceOf(t, srv, "u2"))

	toro := signed(t, vendors.OfferToro{}, url.Values{
		"id":      {"900"},
		"oid":     {"5"},
		"user_id": {"u2"},
		"amount":  {"1.00"},
	}, "sig", toroSecret)

	code, _ = get(t, srv, "/postback/offertoro", toro)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(112), balanceOf(t, srv, "u2"))

	toroReversal := signed(t, vendors.OfferToro{Reversal: true}, url.Values{
		"id":      {"900"},
		"user_id": {"u2"},
		"amount":  {"1.00"},
	}, "sig", toroSecret)

	code, _ = get(t, srv, "/postback/offertoro/chargeback", toroReversal)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(12), balanceOf(t, srv, "u2"))
}

func TestPostback_ReplayedURLCannotChangeOperation(t *testing.T) {
	t.Parallel()

	srv, st := newTestServer(t)

	adgem := signed(t, vendors.AdGem{}, url.Values{
		"appid":          {"app"},
		"player_id":      {"victim"},
		"transaction_id": {"ag-1"},
		"payout":         {"2.50"},
	}, "verifier", adgemSecret)

	code, _ := get(t, srv, "/postback/adgem", adgem)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(250), balanceOf(t, srv, "victim"))

	adgem.Set("status", "reversed")

	code, body := get(t, srv, "/postback/adgem", adgem)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "0", body)
	require.Equal(t, int64(250), balanceOf(t, srv, "victim"))

	toro := signed(t, vendors.OfferToro{}, url.Values{
		"id":      {"1"},
		"user_id": {"victim"},
		"amount":  {"2.50"},
	}, "sig", toroSecret)

	code, _ = get(t, srv, "/postback/offertoro", toro)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(500), balanceOf(t, srv, "victim"))

	// a fresh id on a captured URL does not mint another credit
	for _, id := range []string{"2", "3", "4"} {
		toro.Set("id", id)

		code, _ = get(t, srv, "/postback/offertoro", toro)
		require.Equal(t, http.StatusBadRequest, code)
	}

	// nor does the reward URL work as a reversal
	toro.Set("id", "1")

	code, _ = get(t, srv, "/postback/offertoro/chargeback", toro)
	require.Equal(t, http.StatusBadRequest, code)

	require.Equal(t, int64(500), balanceOf(t, srv, "victim"))
	require.Equal(t, 2, st.TransactionCount())
}

func TestRouter_VendorWithoutSecretNotRouted(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Vendors.CPXSecret = ""

	svc := reconcile.New(memory.New())
	srv := httptest.NewServer(NewRouter(svc, opts))
	t.Cleanup(srv.Close)

	code, _ := get(t, srv, "/postback/cpx", url.Values{"trans_id": {"x"}})
	require.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestListLedgerHandler(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	for _, txid := range []string{"l1", "l2", "l3"} {
		code, _ := get(t, srv, "/postback/cpx", cpxQuery(t, txid, "u3", "1.00", "1"))
		require.Equal(t, http.StatusOK, code)
	}

	code, body := get(t, srv, "/accounts/u3/ledger", url.Values{"vendor": {"cpx"}, "limit": {"2"}})
	require.Equal(t, http.StatusOK, code)

	var entries []ledgerEntryResponse
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "cpx", entries[0].SourceVendor)
	require.Equal(t, int64(100), entries[0].Amount)

	code, _ = get(t, srv, "/accounts/u3/ledger", url.Values{"since": {"yesterday"}})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, srv, "/accounts/u3/ledger", url.Values{"vendor": {"nope"}})
	require.Equal(t, http.StatusBadRequest, code)
}

type slowReconciler struct{ Reconciler }

func (slowReconciler) ApplyReward(ctx context.Context, _ reconcile.Request) (reconcile.Result, error) {
	<-ctx.Done()

	return reconcile.Result{}, errors.Join(reconcile.ErrStorageUnavailable, ctx.Err())
}

func TestPostback_TimeoutIsUnavailable(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Timeout = 10 * time.Millisecond

	srv := httptest.NewServer(NewRouter(slowReconciler{}, opts))
	t.Cleanup(srv.Close)

	code, body := get(t, srv, "/postback/cpx", cpxQuery(t, "slow", "u1", "1.00", "1"))
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "0", body)
}
