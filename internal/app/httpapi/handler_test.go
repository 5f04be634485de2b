package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/answerpool/service_layer/internal/app"
	"github.com/answerpool/service_layer/internal/custody"
	"github.com/answerpool/service_layer/pkg/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, *custody.Bank) {
	t.Helper()

	bank := custody.NewBank()
	for _, holder := range []string{"alice", "bob", "carol", "platform"} {
		bank.Deposit(holder, 10_000_000)
	}

	application, err := app.New(app.Stores{}, app.Dependencies{
		Ledger:        bank,
		Oracle:        bank,
		PlatformOwner: "platform",
	}, logger.NewDefault("httpapi-test"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv, bank
}

func doJSON(t *testing.T, method, url string, payload interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndGetQuestion(t *testing.T) {
	srv, bank := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "ipfs://question-1",
		"amount":      1_000_000,
		"owner":       "alice",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create question status = %d", resp.StatusCode)
	}
	var created struct {
		ID               uint64 `json:"id"`
		BountyAmount     uint64 `json:"bounty_amount"`
		SelectedAnswerID uint64 `json:"selected_answer_id"`
	}
	decodeBody(t, resp, &created)
	if created.ID != 1 {
		t.Fatalf("id = %d, want 1", created.ID)
	}
	if created.SelectedAnswerID != 0 {
		t.Fatalf("selected_answer_id = %d, want 0", created.SelectedAnswerID)
	}

	// The bounty moves into escrow on creation.
	if got := bank.Escrow(); got != 1_000_000 {
		t.Fatalf("escrow = %d, want 1000000", got)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/questions/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get question status = %d", resp.StatusCode)
	}
	var fetched struct {
		BountyAmount uint64 `json:"bounty_amount"`
	}
	decodeBody(t, resp, &fetched)
	if fetched.BountyAmount != 1_000_000 {
		t.Fatalf("bounty_amount = %d, want 1000000", fetched.BountyAmount)
	}
}

func TestSelectBestAnswerFlow(t *testing.T) {
	srv, bank := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "ipfs://question-1",
		"amount":      1_000_000,
		"owner":       "alice",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/answers", map[string]interface{}{
		"content_ref": "ipfs://answer-1",
		"provider":    "bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit answer status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	before, _ := bank.BalanceOf(context.Background(), "bob")

	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/select", map[string]interface{}{
		"answer_id": 1,
		"caller":    "alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select status = %d", resp.StatusCode)
	}
	var selected struct {
		SelectedAnswerID uint64 `json:"selected_answer_id"`
		Status           string `json:"status"`
	}
	decodeBody(t, resp, &selected)
	if selected.SelectedAnswerID != 1 {
		t.Fatalf("selected_answer_id = %d, want 1", selected.SelectedAnswerID)
	}

	after, _ := bank.BalanceOf(context.Background(), "bob")
	if after-before != 980_000 {
		t.Fatalf("provider received %d, want 980000", after-before)
	}

	// Second select conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/select", map[string]interface{}{
		"answer_id": 1,
		"caller":    "alice",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-select status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSelectByNonOwnerForbidden(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "q", "amount": 500_000, "owner": "alice",
	})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/answers", map[string]interface{}{
		"content_ref": "a", "provider": "bob",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/select", map[string]interface{}{
		"answer_id": 1, "caller": "carol",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestVoteAndTally(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "q", "amount": 500_000, "owner": "alice",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/votes", map[string]interface{}{
		"question_id":   1,
		"content_id":    1,
		"kind":          "question",
		"upvote":        true,
		"content_owner": "alice",
		"voter":         "bob",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vote status = %d", resp.StatusCode)
	}
	var tally struct {
		Upvotes   uint64 `json:"upvotes"`
		Downvotes uint64 `json:"downvotes"`
	}
	decodeBody(t, resp, &tally)
	if tally.Upvotes != 1 || tally.Downvotes != 0 {
		t.Fatalf("tally = %+v, want 1 up 0 down", tally)
	}

	// Duplicate vote conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/votes", map[string]interface{}{
		"question_id": 1, "content_id": 1, "kind": "question",
		"upvote": true, "content_owner": "alice", "voter": "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate vote status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// Self-vote is forbidden.
	resp = doJSON(t, http.MethodPost, srv.URL+"/votes", map[string]interface{}{
		"question_id": 1, "content_id": 1, "kind": "question",
		"upvote": true, "content_owner": "alice", "voter": "alice",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self vote status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/tallies?question_id=1&content_id=1&kind=question", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tally status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &tally)
	if tally.Upvotes != 1 {
		t.Fatalf("tally upvotes = %d, want 1", tally.Upvotes)
	}
}

func TestReputationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "q", "amount": 500_000, "owner": "alice",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/reputation/alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reputation status = %d", resp.StatusCode)
	}
	var rec struct {
		Identity string `json:"identity"`
		Score    uint64 `json:"score"`
	}
	decodeBody(t, resp, &rec)
	if rec.Identity != "alice" || rec.Score != 1 {
		t.Fatalf("record = %+v, want alice with score 1", rec)
	}
}

func TestTreasuryWithdraw(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/questions", map[string]interface{}{
		"content_ref": "q", "amount": 1_000_000, "owner": "alice",
	})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/answers", map[string]interface{}{
		"content_ref": "a", "provider": "bob",
	})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/questions/1/select", map[string]interface{}{
		"answer_id": 1, "caller": "alice",
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/treasury", nil)
	var balance map[string]uint64
	decodeBody(t, resp, &balance)
	if balance["balance"] != 20_000 {
		t.Fatalf("treasury balance = %d, want 20000", balance["balance"])
	}

	// Only the platform owner may drain the treasury.
	resp = doJSON(t, http.MethodPost, srv.URL+"/treasury/withdraw", map[string]string{"caller": "bob"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner withdraw status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/treasury/withdraw", map[string]string{"caller": "platform"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner withdraw status = %d", resp.StatusCode)
	}
	var withdrawn map[string]uint64
	decodeBody(t, resp, &withdrawn)
	if withdrawn["withdrawn"] != 20_000 {
		t.Fatalf("withdrawn = %d, want 20000", withdrawn["withdrawn"])
	}
}

func TestUnknownQuestionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/questions/99", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMalformedBodyRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/questions", bytes.NewBufferString(`{"unknown_field": true}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConfigEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/config", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var cfg map[string]interface{}
	decodeBody(t, resp, &cfg)
	if fmt.Sprintf("%v", cfg["fee_basis_points"]) != "200" {
		t.Fatalf("fee_basis_points = %v, want 200", cfg["fee_basis_points"])
	}
}
