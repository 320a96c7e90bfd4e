package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kernel"
	"github.com/kaspax/txkernel/internal/kvstore"
	"github.com/kaspax/txkernel/internal/reconciler"
	"github.com/kaspax/txkernel/internal/rpc"
	"github.com/kaspax/txkernel/internal/store"
	"github.com/kaspax/txkernel/internal/telemetry"
	"github.com/kaspax/txkernel/internal/txbuilder"
)

const addrCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func validPayload(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = addrCharset[i%len(addrCharset)]
	}
	return string(b)
}

func addr(tag string) string {
	return "kaspa:" + tag + validPayload(20)
}

type fakeUtxoSource struct{ set *kaspa.UtxoSet }

func (f *fakeUtxoSource) GetOrSyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error) {
	return f.set, nil
}

func (f *fakeUtxoSource) SyncUTXOs(ctx context.Context, address string) (*kaspa.UtxoSet, error) {
	return f.set, nil
}

type fakeFeeRate struct{}

func (fakeFeeRate) FetchFeeEstimate(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions) float64 {
	return 1
}

type fakeSigner struct{}

func (fakeSigner) Sign(tx *kaspa.PendingTx) ([]byte, error) {
	return []byte(`{"signed":true}`), nil
}

type fakeBroadcaster struct{}

func (fakeBroadcaster) BroadcastTx(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, serializedTx json.RawMessage) (*rpc.BroadcastResult, error) {
	return &rpc.BroadcastResult{TxID: "deadbeef", Endpoint: "https://a"}, nil
}

type fakeCache struct{}

func (fakeCache) InvalidateCache(address string) {}

type fakeFetcher struct{ blockHash string }

func (f *fakeFetcher) FetchTransaction(ctx context.Context, network kaspa.Network, opts rpc.ResolveOptions, txid string) (*rpc.TransactionReceipt, error) {
	return &rpc.TransactionReceipt{TxID: txid, AcceptingBlockHash: &f.blockHash, Endpoint: "https://a"}, nil
}

type fakePool struct{}

func (fakePool) Resolve(network kaspa.Network, opts rpc.ResolveOptions) rpc.ResolvedPool {
	return rpc.ResolvedPool{Source: kaspa.BackendRemote, Reason: "test"}
}

func newTestDeps(t *testing.T) (*IntentDeps, *store.PendingTxStore) {
	t.Helper()
	from := addr("q")
	set := &kaspa.UtxoSet{
		OwnerAddress: from,
		UTXOs: []kaspa.UTXO{
			{Outpoint: kaspa.Outpoint{TxID: "tx1", OutputIndex: 0}, Amount: 10_000_000_000, ScriptClass: kaspa.ScriptClassStandard},
		},
	}
	clk := clock.NewFake(time.Unix(0, 0))
	kv := kvstore.NewMemoryStore()
	txStore := store.NewPendingTxStore(kv)
	builder := txbuilder.NewBuilder(&fakeUtxoSource{set: set}, fakeFeeRate{}, txStore, clk, rpc.ResolveOptions{}, "")
	emitter := telemetry.NewEmitter(kv, nil, clk)
	rec := reconciler.New(&fakeFetcher{blockHash: "0xabc"}, fakePool{}, clk)

	k := kernel.New(builder, fakeSigner{}, fakeBroadcaster{}, rec, txStore, fakeCache{}, emitter, clk)

	return &IntentDeps{Kernel: k, Store: txStore, Network: kaspa.Mainnet}, txStore
}

func withIDParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateIntent_HappyPath(t *testing.T) {
	deps, _ := newTestDeps(t)
	from := addr("q")
	to := addr("p")

	body := strings.NewReader(`{"fromAddress":"` + from + `","network":"Mainnet","recipients":[{"address":"` + to + `","amount":5000000000}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/intents", body)
	rr := httptest.NewRecorder()

	CreateIntent(deps)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestCreateIntent_RejectsMalformedBody(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := httptest.NewRequest(http.MethodPost, "/api/intents", strings.NewReader(`not json`))
	rr := httptest.NewRecorder()

	CreateIntent(deps)(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetIntent_NotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := httptest.NewRequest(http.MethodGet, "/api/intents/missing", nil)
	req = withIDParam(req, "missing")
	rr := httptest.NewRecorder()

	GetIntent(deps)(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGetIntent_ReturnsSavedTx(t *testing.T) {
	deps, txStore := newTestDeps(t)
	tx := &kaspa.PendingTx{ID: "tx-123", State: kaspa.StateConfirmed, FromAddress: addr("q")}
	if err := txStore.Save(tx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/intents/tx-123", nil)
	req = withIDParam(req, "tx-123")
	rr := httptest.NewRecorder()

	GetIntent(deps)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestListIntents_ReturnsAll(t *testing.T) {
	deps, txStore := newTestDeps(t)
	_ = txStore.Save(&kaspa.PendingTx{ID: "tx-1", State: kaspa.StateConfirmed})
	_ = txStore.Save(&kaspa.PendingTx{ID: "tx-2", State: kaspa.StateFailed})

	req := httptest.NewRequest(http.MethodGet, "/api/intents", nil)
	rr := httptest.NewRecorder()

	ListIntents(deps)(rr, req)

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 2 {
		t.Fatalf("Meta.Total = %+v, want 2", resp.Meta)
	}
}

func TestListIntents_FiltersByAgentJobID(t *testing.T) {
	deps, txStore := newTestDeps(t)
	job := "job-1"
	other := "job-2"
	_ = txStore.Save(&kaspa.PendingTx{ID: "tx-1", State: kaspa.StateConfirmed, AgentJobID: &job})
	_ = txStore.Save(&kaspa.PendingTx{ID: "tx-2", State: kaspa.StateFailed, AgentJobID: &job})
	_ = txStore.Save(&kaspa.PendingTx{ID: "tx-3", State: kaspa.StateConfirmed, AgentJobID: &other})

	req := httptest.NewRequest(http.MethodGet, "/api/intents?agentJobId="+job, nil)
	rr := httptest.NewRecorder()

	ListIntents(deps)(rr, req)

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 2 {
		t.Fatalf("Meta.Total = %+v, want 2", resp.Meta)
	}
	if resp.Meta.StateCounts["Confirmed"] != 1 || resp.Meta.StateCounts["Failed"] != 1 {
		t.Fatalf("unexpected state counts: %+v", resp.Meta.StateCounts)
	}
}

func TestRetryByAgentJobID_RequiresQueryParam(t *testing.T) {
	deps, _ := newTestDeps(t)
	req := httptest.NewRequest(http.MethodPost, "/api/intents/retry", nil)
	rr := httptest.NewRecorder()

	RetryByAgentJobID(deps)(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestRetryByAgentJobID_RetriesOnlyTransportClassMembers(t *testing.T) {
	deps, txStore := newTestDeps(t)
	from := addr("q")
	job := "job-1"
	_ = txStore.Save(&kaspa.PendingTx{
		ID: "tx-1", State: kaspa.StateFailed, FromAddress: from, Network: kaspa.Mainnet,
		FailureKind: "BroadcastFailed", AgentJobID: &job,
		Outputs: []kaspa.Output{{Address: addr("p"), Amount: 5_000_000_000}},
	})
	_ = txStore.Save(&kaspa.PendingTx{
		ID: "tx-2", State: kaspa.StateFailed, FromAddress: from, Network: kaspa.Mainnet,
		FailureKind: "SignFailed", AgentJobID: &job,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/intents/retry?agentJobId="+job, nil)
	rr := httptest.NewRecorder()

	RetryByAgentJobID(deps)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Fatalf("Meta.Total = %+v, want 1 (only the transport-class failure retried)", resp.Meta)
	}
	if resp.Meta.StateCounts["skipped"] != 1 {
		t.Fatalf("expected 1 skipped non-transport failure, got %+v", resp.Meta.StateCounts)
	}
}

func TestRetryIntent_RefusesNonFailed(t *testing.T) {
	deps, txStore := newTestDeps(t)
	tx := &kaspa.PendingTx{ID: "tx-1", State: kaspa.StateConfirmed, FromAddress: addr("q")}
	_ = txStore.Save(tx)

	req := httptest.NewRequest(http.MethodPost, "/api/intents/tx-1/retry", nil)
	req = withIDParam(req, "tx-1")
	rr := httptest.NewRecorder()

	RetryIntent(deps)(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestRetryIntent_RefusesNonTransportFailure(t *testing.T) {
	deps, txStore := newTestDeps(t)
	tx := &kaspa.PendingTx{ID: "tx-1", State: kaspa.StateFailed, FromAddress: addr("q"), FailureKind: "SignFailed"}
	_ = txStore.Save(tx)

	req := httptest.NewRequest(http.MethodPost, "/api/intents/tx-1/retry", nil)
	req = withIDParam(req, "tx-1")
	rr := httptest.NewRecorder()

	RetryIntent(deps)(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestRetryIntent_AllowsTransportClassFailure(t *testing.T) {
	deps, txStore := newTestDeps(t)
	from := addr("q")
	tx := &kaspa.PendingTx{
		ID: "tx-1", State: kaspa.StateFailed, FromAddress: from, Network: kaspa.Mainnet,
		FailureKind: "BroadcastFailed",
		Outputs:     []kaspa.Output{{Address: addr("p"), Amount: 5_000_000_000}},
	}
	_ = txStore.Save(tx)

	req := httptest.NewRequest(http.MethodPost, "/api/intents/tx-1/retry", nil)
	req = withIDParam(req, "tx-1")
	rr := httptest.NewRecorder()

	RetryIntent(deps)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCancelIntent_AllowsPreSigned(t *testing.T) {
	deps, txStore := newTestDeps(t)
	tx := &kaspa.PendingTx{ID: "tx-1", State: kaspa.StateDryRunOk, FromAddress: addr("q")}
	_ = txStore.Save(tx)

	req := httptest.NewRequest(http.MethodPost, "/api/intents/tx-1/cancel", nil)
	req = withIDParam(req, "tx-1")
	rr := httptest.NewRecorder()

	CancelIntent(deps)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}
