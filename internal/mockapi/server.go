// Package mockapi is an in-process fake of the VocalizeAI backend auth and
// user endpoints. It backs the api and session tests and the
// vzauth-mockapi command for local runs against the CLI.
package mockapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vocalizeai/vzauth/token"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Options configures a [Server].
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Logger   *zap.Logger
}

type user struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Role      token.Role
	Hash      string
	Verified  bool
	Code      string
	ResetCode string
}

// Server holds fake accounts in memory.
type Server struct {
	mu     sync.Mutex
	users  map[string]*user
	byID   map[int64]*user
	nextID int64

	issuer *token.Issuer
	codec  *token.Codec
	logger *zap.Logger

	refreshStatus int
	loginStatus   int
	profileStatus int
	refreshCalls  int
}

// New builds a fake backend signing HS256 tokens with opts.Secret.
func New(opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("mockapi secret required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	issuer, err := token.NewIssuer(token.IssuerConfig{
		TTL:           opts.TokenTTL,
		SigningMethod: token.MethodHS256,
		PrivateKey:    opts.Secret,
	})
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(token.VerifyConfig{SigningMethod: token.MethodHS256, Key: opts.Secret})
	if err != nil {
		return nil, err
	}

	return &Server{
		users:  make(map[string]*user),
		byID:   make(map[int64]*user),
		nextID: 1,
		issuer: issuer,
		codec:  codec,
		logger: opts.Logger,
	}, nil
}

// AddUser seeds an account and returns its id.
func (s *Server) AddUser(email, password string, role token.Role, verified bool) (string, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	if _, exists := s.users[email]; exists {
		return "", fmt.Errorf("user %s already exists", email)
	}
	u := &user{ID: s.nextID, Email: email, Role: role, Hash: hash, Verified: verified}
	s.nextID++
	s.users[email] = u
	s.byID[u.ID] = u
	return strconv.FormatInt(u.ID, 10), nil
}

// ConfirmationCode returns the pending registration code for email.
func (s *Server) ConfirmationCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[normalizeEmail(email)]; ok {
		return u.Code
	}
	return ""
}

// ResetCode returns the pending password-reset code for email.
func (s *Server) ResetCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[normalizeEmail(email)]; ok {
		return u.ResetCode
	}
	return ""
}

// FailRefresh makes /auth/refresh answer with status (0 restores normal
// behavior).
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	s.refreshStatus = status
	s.mu.Unlock()
}

// FailLogin makes /auth/login answer with status (0 restores normal behavior).
func (s *Server) FailLogin(status int) {
	s.mu.Lock()
	s.loginStatus = status
	s.mu.Unlock()
}

// FailProfile makes /users/:id answer with status (0 restores normal behavior).
func (s *Server) FailProfile(status int) {
	s.mu.Lock()
	s.profileStatus = status
	s.mu.Unlock()
}

// RefreshCalls counts /auth/refresh requests served.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// Issue mints a token for an existing user with an explicit expiry.
func (s *Server) Issue(userID string, role token.Role, expiresAt time.Time) (string, error) {
	return s.issuer.IssueAt(userID, role, expiresAt)
}

// Handler returns the gin router serving the fake endpoints.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.HEAD("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := r.Group("/auth")
	auth.POST("/login", s.handleLogin)
	auth.POST("/refresh", s.handleRefresh)
	auth.POST("/register", s.handleRegister)
	auth.POST("/resend-confirmation-code", s.handleResendCode)
	auth.POST("/confirm-registration", s.handleConfirmRegistration)
	auth.POST("/password-reset", s.handlePasswordReset)
	auth.POST("/confirm-password-reset", s.handleConfirmPasswordReset)

	r.GET("/users/:id", s.bearer(), s.handleGetUser)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("mockapi request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

const claimsKey = "vz_claims"

func (s *Server) bearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
			return
		}
		claims, err := s.codec.Decode(raw)
		if err != nil || claims.ExpiresAt <= time.Now().UnixMilli() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	raw := value[len(bearer):]
	return raw, raw != ""
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	forced := s.loginStatus
	u, ok := s.users[normalizeEmail(req.Email)]
	var hash string
	var verified bool
	if ok {
		hash, verified = u.Hash, u.Verified
	}
	s.mu.Unlock()

	if forced != 0 {
		c.JSON(forced, gin.H{"detail": http.StatusText(forced)})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Email ou senha inválidos"})
		return
	}
	if match, err := verifyPassword(req.Password, hash); err != nil || !match {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Email ou senha inválidos"})
		return
	}
	if !verified {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Conta não confirmada"})
		return
	}

	s.issueFor(c, u)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "access_token required"})
		return
	}

	s.mu.Lock()
	s.refreshCalls++
	forced := s.refreshStatus
	s.mu.Unlock()
	if forced != 0 {
		c.JSON(forced, gin.H{"detail": http.StatusText(forced)})
		return
	}

	claims, err := s.codec.Decode(req.AccessToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid subject"})
		return
	}

	s.mu.Lock()
	u, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "unknown user"})
		return
	}
	s.issueFor(c, u)
}

func (s *Server) issueFor(c *gin.Context, u *user) {
	raw, err := s.issuer.Issue(strconv.FormatInt(u.ID, 10), u.Role)
	if err != nil {
		s.logger.Error("mockapi token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": raw, "token_type": "bearer"})
}

func (s *Server) handleGetUser(c *gin.Context) {
	claims := c.MustGet(claimsKey).(token.Claims)

	s.mu.Lock()
	forced := s.profileStatus
	s.mu.Unlock()
	if forced != 0 {
		c.JSON(forced, gin.H{"detail": http.StatusText(forced)})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	if claims.UserID != c.Param("id") && !claims.Role.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"detail": "forbidden"})
		return
	}

	s.mu.Lock()
	u, ok := s.byID[id]
	var doc gin.H
	if ok {
		doc = gin.H{
			"id":      u.ID,
			"nome":    u.Name,
			"email":   u.Email,
			"celular": u.Phone,
			"role":    string(u.Role),
		}
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Name     string `json:"nome"`
		Email    string `json:"email"`
		Phone    string `json:"celular"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	if req.Name == "" || req.Phone == "" || req.Password == "" || !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid registration"})
		return
	}

	id, err := s.AddUser(req.Email, req.Password, token.RoleUser, false)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"detail": "Email já cadastrado"})
		return
	}

	code, err := newCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "code generation failed"})
		return
	}
	s.mu.Lock()
	u := s.users[normalizeEmail(req.Email)]
	u.Name = req.Name
	u.Phone = req.Phone
	u.Code = code
	s.mu.Unlock()

	s.logger.Info("mockapi registration code issued", zap.String("user_id", id), zap.String("code", code))
	c.JSON(http.StatusCreated, gin.H{"id": u.ID})
}

func (s *Server) handleResendCode(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		return
	}
	code, err := newCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "code generation failed"})
		return
	}

	s.mu.Lock()
	u, found := s.users[email]
	if found && !u.Verified {
		u.Code = code
	}
	s.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "code sent"})
}

func (s *Server) handleConfirmRegistration(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[normalizeEmail(req.Email)]
	valid := ok && u.Code != "" && u.Code == req.Code
	if valid {
		u.Verified = true
		u.Code = ""
	}
	s.mu.Unlock()

	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Código de confirmação inválido"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "confirmed"})
}

func (s *Server) handlePasswordReset(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		return
	}
	code, err := newCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "code generation failed"})
		return
	}

	s.mu.Lock()
	if u, found := s.users[email]; found {
		u.ResetCode = code
	}
	s.mu.Unlock()

	// Same answer for unknown addresses.
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists a code was sent"})
}

func (s *Server) handleConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "hash failed"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[normalizeEmail(req.Email)]
	valid := ok && u.ResetCode != "" && u.ResetCode == req.Code
	if valid {
		u.Hash = hash
		u.ResetCode = ""
	}
	s.mu.Unlock()

	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Código inválido"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func bindEmail(c *gin.Context) (string, bool) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "valid email required"})
		return "", false
	}
	return normalizeEmail(req.Email), true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
