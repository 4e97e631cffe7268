package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vaultcraft/backend/internal/audit"
	"github.com/vaultcraft/backend/internal/ledger"
	"github.com/vaultcraft/backend/internal/models"
)

// Engine is the ledger surface the HTTP layer depends on.
type Engine interface {
	Pay(ctx context.Context, senderID, recipientID string, amount int64) (int64, error)
	Deposit(ctx context.Context, accountID string, amount int64) (int64, error)
	Withdraw(ctx context.Context, accountID string, count, denomination int64) (*ledger.WithdrawResult, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	Top(ctx context.Context, n int) ([]models.TopEntry, error)
	History(ctx context.Context, accountID string, limit int) ([]models.TransactionRecord, error)
	ClaimDaily(ctx context.Context, accountID string) (*ledger.ClaimResult, error)
	MarkMobLimit(ctx context.Context, accountID string) error
	CheckMobLimit(ctx context.Context, accountID string) (bool, error)
}

type EconomyService struct {
	engine    Engine
	redis     *redis.Client
	validator *ValidationHelper
	audit     *audit.Logger
}

// PayRequest is the transfer payload. The sender is always the verified
// caller, never a request field.
type PayRequest struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

type DepositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type WithdrawRequest struct {
	Count        int64 `json:"count" validate:"required,gt=0"`
	Denomination int64 `json:"denomination" validate:"omitempty,gt=0"`
}

func NewEconomyService(engine Engine, redisClient *redis.Client) *EconomyService {
	return &EconomyService{
		engine:    engine,
		redis:     redisClient,
		validator: NewValidationHelper(),
		audit:     audit.NewLogger(),
	}
}

// Pay transfers funds to another account
// @Summary Pay another player
// @Tags economy
// @Accept json
// @Produce json
// @Router /economy/pay [post]
func (s *EconomyService) Pay(w http.ResponseWriter, r *http.Request) {
	senderID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PayRequest
	if !s.decode(w, r, &req) {
		return
	}

	newBalance, err := s.engine.Pay(r.Context(), senderID, req.RecipientID, req.Amount)
	if err != nil {
		log.Printf("[ECONOMY] Pay failed %s -> %s: %v", senderID, req.RecipientID, err)
		s.writeLedgerError(w, "pay", senderID, err)
		return
	}

	s.audit.LogOperation(models.ActionPay, senderID, req.RecipientID, req.Amount, newBalance)
	writeJSON(w, http.StatusOK, map[string]any{"newSenderBalance": newBalance})
}

// Deposit converts items into currency
// @Summary Deposit item value into the account
// @Tags economy
// @Accept json
// @Produce json
// @Router /economy/deposit [post]
func (s *EconomyService) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req DepositRequest
	if !s.decode(w, r, &req) {
		return
	}

	newBalance, err := s.engine.Deposit(r.Context(), accountID, req.Amount)
	if err != nil {
		log.Printf("[ECONOMY] Deposit failed for %s: %v", accountID, err)
		s.writeLedgerError(w, "deposit", accountID, err)
		return
	}

	s.audit.LogOperation(models.ActionDeposit, accountID, "", req.Amount, newBalance)
	writeJSON(w, http.StatusOK, map[string]any{"newBalance": newBalance})
}

// Withdraw converts currency back into bills
// @Summary Withdraw currency as bills
// @Tags economy
// @Accept json
// @Produce json
// @Router /economy/withdraw [post]
func (s *EconomyService) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req WithdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.engine.Withdraw(r.Context(), accountID, req.Count, req.Denomination)
	if err != nil {
		log.Printf("[ECONOMY] Withdraw failed for %s: %v", accountID, err)
		s.writeLedgerError(w, "withdraw", accountID, err)
		return
	}

	s.audit.LogOperation(models.ActionWithdraw, accountID, "", result.Withdrawn, result.NewBalance)
	writeJSON(w, http.StatusOK, result)
}

// GetBalance returns the caller's balance
// @Summary Get account balance
// @Tags economy
// @Produce json
// @Router /economy/balance [get]
func (s *EconomyService) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := s.engine.GetBalance(r.Context(), accountID)
	if err != nil {
		s.writeLedgerError(w, "balance", accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// Top returns the leaderboard
// @Summary Get top balances
// @Tags economy
// @Produce json
// @Router /economy/top [get]
func (s *EconomyService) Top(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}

	cacheKey := fmt.Sprintf("leaderboard:top:%d", n)
	if s.redis != nil {
		if cached, err := s.redis.Get(r.Context(), cacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	entries, err := s.engine.Top(r.Context(), n)
	if err != nil {
		s.writeLedgerError(w, "top", "", err)
		return
	}

	payload, err := json.Marshal(map[string]any{"top": entries})
	if err != nil {
		SendErrorResponse(w, "Failed to fetch leaderboard", http.StatusInternalServerError, nil)
		return
	}
	if s.redis != nil {
		if err := s.redis.Set(r.Context(), cacheKey, payload, 30*time.Second).Err(); err != nil {
			log.Printf("[ECONOMY] Leaderboard cache write failed: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// History returns the caller's recent transactions
// @Summary Get recent transactions
// @Tags economy
// @Produce json
// @Router /economy/transactions [get]
func (s *EconomyService) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := s.engine.History(r.Context(), accountID, limit)
	if err != nil {
		s.writeLedgerError(w, "history", accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// ClaimDaily claims the once-per-day reward
// @Summary Claim daily reward
// @Tags economy
// @Produce json
// @Router /economy/daily [post]
func (s *EconomyService) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := s.engine.ClaimDaily(r.Context(), accountID)
	if err != nil {
		log.Printf("[ECONOMY] Daily claim rejected for %s: %v", accountID, err)
		s.writeLedgerError(w, "daily", accountID, err)
		return
	}

	s.audit.LogOperation(models.ActionDaily, accountID, "", result.Reward, result.NewBalance)
	writeJSON(w, http.StatusOK, result)
}

// MarkMobLimit marks today's mob cap as reached
// @Summary Mark mob limit reached
// @Tags economy
// @Produce json
// @Router /economy/mob-limit [post]
func (s *EconomyService) MarkMobLimit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := s.engine.MarkMobLimit(r.Context(), accountID); err != nil {
		s.writeLedgerError(w, "mob-limit", accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "mob limit recorded"})
}

// CheckMobLimit reports whether today's mob cap is reached
// @Summary Check mob limit
// @Tags economy
// @Produce json
// @Router /economy/mob-limit [get]
func (s *EconomyService) CheckMobLimit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	reached, err := s.engine.CheckMobLimit(r.Context(), accountID)
	if err != nil {
		s.writeLedgerError(w, "mob-limit", accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"limitReached": reached})
}

// decode reads and validates a JSON request body in one place.
func (s *EconomyService) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := s.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// writeLedgerError maps the engine's error taxonomy onto HTTP statuses so
// callers can branch on kind, not message text.
func (s *EconomyService) writeLedgerError(w http.ResponseWriter, action, accountID string, err error) {
	le, ok := ledger.AsError(err)
	if !ok {
		s.audit.LogError(action, accountID, err)
		SendErrorResponse(w, "Failed to process request", http.StatusInternalServerError, nil)
		return
	}

	status := http.StatusInternalServerError
	switch le.Kind {
	case ledger.KindValidation:
		status = http.StatusBadRequest
	case ledger.KindNotFound:
		status = http.StatusNotFound
	case ledger.KindBusinessRule:
		status = http.StatusConflict
	case ledger.KindTransient:
		status = http.StatusServiceUnavailable
	}
	if le.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(le.RetryAfter.Seconds())))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]any{"error": le.Message, "code": string(le.Code)}
	if le.RetryAfter > 0 {
		resp["retryAfterSeconds"] = int(le.RetryAfter.Seconds())
	}
	json.NewEncoder(w).Encode(resp)
}

func accountFromContext(r *http.Request) (string, bool) {
	accountID, ok := r.Context().Value("accountID").(string)
	return accountID, ok && accountID != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
