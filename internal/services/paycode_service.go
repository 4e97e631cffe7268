package services

import (
	"bytes"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// PayCodeService issues scannable pay codes: a short-lived request stored in
// Redis plus a QR image the companion app renders. Scanning a code resolves
// the recipient and amount; the transfer itself still goes through the
// ledger's pay operation.
type PayCodeService struct {
	redis     *redis.Client
	validator *ValidationHelper
}

type PayCodeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func NewPayCodeService(redisClient *redis.Client) *PayCodeService {
	return &PayCodeService{
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Generate creates a pay code for the caller
// @Summary Generate a pay code
// @Tags economy
// @Accept json
// @Produce json
// @Router /economy/paycode [post]
func (s *PayCodeService) Generate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if s.redis == nil {
		SendErrorResponse(w, "Pay codes unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PayCodeRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payload := map[string]any{
		"recipientId": accountID,
		"amount":      req.Amount,
		"timestamp":   time.Now().Unix(),
		"nonce":       generateNonce(),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		SendErrorResponse(w, "Failed to generate pay code", http.StatusInternalServerError, nil)
		return
	}

	code := base64.URLEncoding.EncodeToString(jsonData)
	key := fmt.Sprintf("paycode:%s", code)
	if err := s.redis.Set(r.Context(), key, jsonData, 5*time.Minute).Err(); err != nil {
		log.Printf("[PAYCODE] Failed to store pay code for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to generate pay code", http.StatusInternalServerError, nil)
		return
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to generate pay code", http.StatusInternalServerError, nil)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to generate pay code", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":  code,
		"image": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// Resolve exchanges a scanned pay code for its recipient and amount
// @Summary Resolve a pay code
// @Tags economy
// @Accept json
// @Produce json
// @Router /economy/paycode/resolve [post]
func (s *PayCodeService) Resolve(w http.ResponseWriter, r *http.Request) {
	if _, ok := accountFromContext(r); !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if s.redis == nil {
		SendErrorResponse(w, "Pay codes unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	key := fmt.Sprintf("paycode:%s", req.Code)
	data, err := s.redis.Get(r.Context(), key).Bytes()
	if err == redis.Nil {
		SendErrorResponse(w, "Invalid or expired pay code", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to resolve pay code", http.StatusInternalServerError, nil)
		return
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		SendErrorResponse(w, "Failed to resolve pay code", http.StatusInternalServerError, nil)
		return
	}

	// One scan consumes the code.
	s.redis.Del(r.Context(), key)

	writeJSON(w, http.StatusOK, result)
}

func generateNonce() string {
	b := make([]byte, 16)
	cryptorand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
