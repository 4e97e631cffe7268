package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/vaultcraft/backend/internal/models"
)

// AccountUpserter creates the ledger account on first login and refreshes the
// display name on later logins.
type AccountUpserter interface {
	UpsertAccount(ctx context.Context, id, name string) error
}

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	accounts  AccountUpserter
	validator *validator.Validate
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=16"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"required,min=2,max=32"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"omitempty,min=2,max=32"` // optional in-game name refresh
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token  string        `json:"token"`
	Player models.Player `json:"player"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, accounts AccountUpserter) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		accounts:  accounts,
		validator: validator.New(),
	}
}

// Register handles player registration
// @Summary Register a new player
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	accountID := uuid.NewString()

	var playerID int
	err = s.db.QueryRow(
		"INSERT INTO players (username, password, display_name, account_id) VALUES ($1, $2, $3, $4) RETURNING id",
		strings.ToLower(req.Username), hashedPassword, req.DisplayName, accountID).Scan(&playerID)
	if err != nil {
		log.Printf("[AUTH] Player creation failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Username Already Exists", http.StatusConflict, nil)
		return
	}

	if err := s.accounts.UpsertAccount(r.Context(), accountID, req.DisplayName); err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(accountID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for player %d: %v", playerID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Registration successful for player %d (%s)", playerID, req.Username)
	writeJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		Player: models.Player{
			ID:          playerID,
			Username:    strings.ToLower(req.Username),
			DisplayName: req.DisplayName,
			AccountID:   accountID,
		},
	})
}

// Login handles player authentication. A successful login upserts the ledger
// account: created on first login, display name overwritten on every later
// one (last write wins).
// @Summary Login player
// @Tags auth
// @Accept json
// @Produce json
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var player models.Player
	var hashedPassword string
	err := s.db.QueryRow(
		"SELECT id, username, display_name, account_id, password FROM players WHERE username = $1",
		strings.ToLower(req.Username)).Scan(&player.ID, &player.Username, &player.DisplayName, &player.AccountID, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] Player not found: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for player: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	displayName := player.DisplayName
	if req.DisplayName != "" && req.DisplayName != player.DisplayName {
		displayName = req.DisplayName
		if _, err := s.db.Exec("UPDATE players SET display_name = $1 WHERE id = $2", displayName, player.ID); err != nil {
			log.Printf("[AUTH] Display name update failed for player %d: %v", player.ID, err)
		}
		player.DisplayName = displayName
	}

	if err := s.accounts.UpsertAccount(r.Context(), player.AccountID, displayName); err != nil {
		log.Printf("[AUTH] Account upsert failed for player %d: %v", player.ID, err)
		SendErrorResponse(w, "Failed to prepare account", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec("UPDATE players SET last_login = NOW() WHERE id = $1", player.ID); err != nil {
		log.Printf("[AUTH] Last login update failed for player %d: %v", player.ID, err)
	}

	token, err := generateJWT(player.AccountID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for player %d: %v", player.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for player %d", player.ID)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Player: player})
}

// Logout handles player logout
// @Summary Logout player
// @Tags auth
// @Produce json
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func generateJWT(accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"exp":        time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
