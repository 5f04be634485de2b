package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/answerpool/service_layer/internal/app"
	"github.com/answerpool/service_layer/internal/app/domain/question"
	repdomain "github.com/answerpool/service_layer/internal/app/domain/reputation"
	answerssvc "github.com/answerpool/service_layer/internal/app/services/answers"
	questionssvc "github.com/answerpool/service_layer/internal/app/services/questions"
	reputationsvc "github.com/answerpool/service_layer/internal/app/services/reputation"
	treasurysvc "github.com/answerpool/service_layer/internal/app/services/treasury"
	"github.com/answerpool/service_layer/internal/app/storage"
	"github.com/answerpool/service_layer/internal/custody"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/questions", h.questions)
	mux.HandleFunc("/questions/", h.questionResources)
	mux.HandleFunc("/answers/", h.answerByID)
	mux.HandleFunc("/votes", h.votes)
	mux.HandleFunc("/tallies", h.tallies)
	mux.HandleFunc("/reputation/", h.reputationByIdentity)
	mux.HandleFunc("/treasury", h.treasury)
	mux.HandleFunc("/treasury/withdraw", h.treasuryWithdraw)
	mux.HandleFunc("/config", h.config)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// questionView reports the sentinel-compatible selected-answer field the
// read surface has always exposed: 0 open, answer id selected, all-ones
// sentinel withdrawn.
type questionView struct {
	question.Question
	SelectedAnswerID uint64 `json:"selected_answer_id"`
}

func viewOf(q question.Question) questionView {
	return questionView{Question: q, SelectedAnswerID: q.SelectedAnswer()}
}

func (h *handler) questions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ContentRef          string `json:"content_ref"`
			Amount              uint64 `json:"amount"`
			Pool                bool   `json:"pool"`
			PoolDurationSeconds uint64 `json:"pool_duration_seconds"`
			Owner               string `json:"owner"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		duration := time.Duration(payload.PoolDurationSeconds) * time.Second
		q, err := h.app.Questions.Create(r.Context(), payload.ContentRef, payload.Amount, duration, payload.Pool, payload.Owner)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(q))

	case http.MethodGet:
		listing, err := h.app.Questions.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, listing)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) questionResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/questions"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q, err := h.app.Questions.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(q))
		return
	}

	switch parts[1] {
	case "answers":
		h.questionAnswers(w, r, id)
	case "bounty":
		h.questionBounty(w, r, id)
	case "select":
		h.questionSelect(w, r, id)
	case "withdraw":
		h.questionWithdraw(w, r, id)
	case "pool":
		h.questionPool(w, r, id, parts[2:])
	case "expired":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		expired, err := h.app.Questions.PoolExpired(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"expired": expired})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) questionAnswers(w http.ResponseWriter, r *http.Request, id uint64) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			ContentRef string `json:"content_ref"`
			Provider   string `json:"provider"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ans, err := h.app.Answers.Submit(r.Context(), id, payload.ContentRef, payload.Provider)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ans)

	case http.MethodGet:
		answers, err := h.app.Answers.ListByQuestion(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, answers)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) questionBounty(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Extra  uint64 `json:"extra"`
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := h.app.Questions.IncreaseBounty(r.Context(), id, payload.Extra, payload.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(q))
}

func (h *handler) questionSelect(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		AnswerID uint64 `json:"answer_id"`
		Caller   string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := h.app.Questions.SelectBestAnswer(r.Context(), id, payload.AnswerID, payload.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(q))
}

func (h *handler) questionWithdraw(w http.ResponseWriter, r *http.Request, id uint64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := h.app.Questions.WithdrawBounty(r.Context(), id, payload.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(q))
}

func (h *handler) questionPool(w http.ResponseWriter, r *http.Request, id uint64, rest []string) {
	if r.Method != http.MethodPost || len(rest) == 0 {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch rest[0] {
	case "distribute":
		payouts, err := h.app.Questions.DistributePool(r.Context(), id, payload.Caller)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payouts)
	case "withdraw":
		q, err := h.app.Questions.WithdrawPool(r.Context(), id, payload.Caller)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(q))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) answerByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/answers"), "/")
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	detail, err := h.app.Questions.AnswerDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) votes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		QuestionID   uint64 `json:"question_id"`
		ContentID    uint64 `json:"content_id"`
		Kind         string `json:"kind"`
		Upvote       bool   `json:"upvote"`
		ContentOwner string `json:"content_owner"`
		Voter        string `json:"voter"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind := repdomain.ContentKind(payload.Kind)
	if kind != repdomain.KindQuestion && kind != repdomain.KindAnswer {
		writeError(w, http.StatusBadRequest, errors.New("kind must be question or answer"))
		return
	}

	tally, err := h.app.Reputation.CastVote(r.Context(), payload.QuestionID, payload.ContentID, kind, payload.Upvote, payload.ContentOwner, payload.Voter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

func (h *handler) tallies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	questionID, err := strconv.ParseUint(r.URL.Query().Get("question_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	contentID, err := strconv.ParseUint(r.URL.Query().Get("content_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind := repdomain.ContentKind(r.URL.Query().Get("kind"))
	if kind != repdomain.KindQuestion && kind != repdomain.KindAnswer {
		writeError(w, http.StatusBadRequest, errors.New("kind must be question or answer"))
		return
	}

	tally, err := h.app.Reputation.Tally(r.Context(), questionID, contentID, kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

func (h *handler) reputationByIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	identity := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reputation"), "/")
	if identity == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rec, err := h.app.Reputation.Reputation(r.Context(), identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) treasury(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, err := h.app.Treasury.Balance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (h *handler) treasuryWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := h.app.Treasury.Withdraw(r.Context(), payload.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"withdrawn": amount})
}

func (h *handler) config(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fee_basis_points":        question.FeeBasisPoints,
		"fee_denominator":         question.FeeDenominator,
		"max_pool_winners":        question.MaxPoolWinners,
		"min_pool_duration_secs":  int64(question.MinPoolDuration.Seconds()),
		"max_pool_duration_secs":  int64(question.MaxPoolDuration.Seconds()),
		"amount_decimals":         question.AmountDecimals,
		"min_eligibility_balance": reputationsvc.MinEligibilityBalance,
	})
}

// writeDomainError maps typed engine failures onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, questionssvc.ErrNotOwner),
		errors.Is(err, treasurysvc.ErrNotAuthorized),
		errors.Is(err, reputationsvc.ErrSelfVote),
		errors.Is(err, reputationsvc.ErrNotEligible):
		status = http.StatusForbidden
	case errors.Is(err, reputationsvc.ErrDuplicateVote),
		errors.Is(err, answerssvc.ErrAlreadyAnswered),
		errors.Is(err, answerssvc.ErrQuestionClosed),
		errors.Is(err, questionssvc.ErrAlreadySelected),
		errors.Is(err, questionssvc.ErrAlreadyDistributed),
		errors.Is(err, questionssvc.ErrNotExpired),
		errors.Is(err, questionssvc.ErrAnswersExist),
		errors.Is(err, questionssvc.ErrGoodAnswersExist):
		status = http.StatusConflict
	case errors.Is(err, custody.ErrTransferRejected):
		status = http.StatusBadGateway
	}
	writeError(w, status, err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
