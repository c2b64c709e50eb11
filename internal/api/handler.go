package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/punchamoorthee/ledgerops/internal/service"
)

type Handler struct {
	ledger   *service.LedgerService
	history  *service.HistoryService
	accounts *service.AccountService
	log      *slog.Logger
}

func NewHandler(ledger *service.LedgerService, history *service.HistoryService, accounts *service.AccountService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: ledger, history: history, accounts: accounts, log: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if msg, ok := decode(w, r, &body); !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	owner := uuid.Nil
	if body.OwnerID != "" {
		id, err := uuid.Parse(body.OwnerID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid owner id")
			return
		}
		owner = id
	}
	if caller, ok := callerFrom(r.Context()); ok {
		owner = caller
	}

	acc, err := h.accounts.Open(r.Context(), service.OpenAccountRequest{
		OwnerID:        owner,
		Currency:       body.Currency,
		InitialBalance: body.InitialBalance,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/accounts/"+acc.ID.String())
	respondJSON(w, http.StatusCreated, domain.NewAccountResponse(*acc))
}

// ListAccounts returns the caller's accounts. Without authentication the owner
// comes from the owner_id query parameter.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerFrom(r.Context())
	if !ok {
		id, err := uuid.Parse(r.URL.Query().Get("owner_id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "owner_id is required")
			return
		}
		owner = id
	}
	accounts, err := h.accounts.ListByOwner(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]domain.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, domain.NewAccountResponse(a))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.Get(r.Context(), id)
	if err == nil {
		err = authorize(r.Context(), acc)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.NewAccountResponse(*acc))
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body amountBody
	if msg, ok := decode(w, r, &body); !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.owns(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.ledger.Deposit(r.Context(), domain.DepositRequest{
		AccountID:      id,
		Amount:         body.Amount,
		IdempotencyKey: idempotencyKey(r),
	})
	h.respondResult(w, r, res, err)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body amountBody
	if msg, ok := decode(w, r, &body); !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.owns(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.ledger.Withdraw(r.Context(), domain.WithdrawRequest{
		AccountID:      id,
		Amount:         body.Amount,
		IdempotencyKey: idempotencyKey(r),
	})
	h.respondResult(w, r, res, err)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if msg, ok := decode(w, r, &body); !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	from, ferr := uuid.Parse(body.FromAccountID)
	to, terr := uuid.Parse(body.ToAccountID)
	if ferr != nil || terr != nil {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}
	req := domain.TransferRequest{
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         body.Amount,
		IdempotencyKey: idempotencyKey(r),
	}
	if body.ReferenceID != "" {
		ref, err := uuid.Parse(body.ReferenceID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid reference id")
			return
		}
		req.ReferenceID = &ref
	}
	if err := h.owns(r.Context(), req.FromAccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.ledger.Transfer(r.Context(), req)
	h.respondResult(w, r, res, err)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.owns(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	txs, err := h.history.List(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) PageTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.owns(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := h.history.Query(r.Context(), id, service.HistoryParams{
		Type: q.Get("type"),
		From: q.Get("from"),
		To:   q.Get("to"),
		Page: atoi(q.Get("page"), 0),
		Size: atoi(q.Get("size"), service.DefaultPageSize),
		Sort: q.Get("sort"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.owns(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	sum, err := h.history.Summarize(r.Context(), id, q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

// owns checks that the authenticated caller, if any, owns the account.
func (h *Handler) owns(ctx context.Context, id uuid.UUID) error {
	if _, ok := callerFrom(ctx); !ok {
		return nil
	}
	acc, err := h.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	return authorize(ctx, acc)
}

func authorize(ctx context.Context, acc *domain.Account) error {
	caller, ok := callerFrom(ctx)
	if !ok || caller == acc.OwnerID {
		return nil
	}
	return errForbidden
}

// idempotencyKey namespaces the client's key by the authenticated caller, so a key
// only ever replays results recorded for the same caller.
func idempotencyKey(r *http.Request) string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return ""
	}
	if caller, ok := callerFrom(r.Context()); ok {
		return caller.String() + ":" + key
	}
	return key
}

// respondResult writes the cached canonical payload so a replay is byte-identical to
// the first response. New mutations answer 201, replays 200.
func (h *Handler) respondResult(w http.ResponseWriter, r *http.Request, res *domain.Result, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(res.Payload)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, code, msg)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return uuid.Nil, false
	}
	return id, true
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
