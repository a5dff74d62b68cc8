package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/domain"
	"github.com/newshub-app/newshub/backend/internal/service/credential"
	"github.com/newshub-app/newshub/backend/internal/service/mailer"
	"github.com/newshub-app/newshub/backend/internal/service/session"
	"github.com/newshub-app/newshub/backend/internal/service/token"
	"github.com/newshub-app/newshub/backend/internal/transport/http/middleware"
	"github.com/newshub-app/newshub/backend/pkg/auth"
	"github.com/newshub-app/newshub/backend/pkg/httputil"
	"github.com/newshub-app/newshub/backend/pkg/useragent"
)

// AttemptRecorder writes login audit rows. Optional; nil disables auditing.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a *domain.LoginAttempt) error
}

// AuthHandler is the gateway exposed to the article, comment and bookmark
// services and the frontend. Everything they know about a request's identity
// comes through here.
type AuthHandler struct {
	Users    *credential.Service
	Sessions *session.Registry
	Tokens   *token.Service
	Codec    *auth.TokenCodec
	Mail     mailer.Mailer
	Attempts AttemptRecorder

	RequireVerifiedEmail bool
	AccessCookieMaxAge   int
	SecureCookies        bool

	logger *zap.Logger
}

func NewAuthHandler(
	users *credential.Service,
	sessions *session.Registry,
	tokens *token.Service,
	codec *auth.TokenCodec,
	mail mailer.Mailer,
	attempts AttemptRecorder,
	requireVerifiedEmail bool,
	accessCookieMaxAge int,
	secureCookies bool,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		Users:                users,
		Sessions:             sessions,
		Tokens:               tokens,
		Codec:                codec,
		Mail:                 mail,
		Attempts:             attempts,
		RequireVerifiedEmail: requireVerifiedEmail,
		AccessCookieMaxAge:   accessCookieMaxAge,
		SecureCookies:        secureCookies,
		logger:               logger,
	}
}

func fieldErrors(c *gin.Context, errs map[string][]string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": errs})
}

func serverError(c *gin.Context, logger *zap.Logger, action string, err error) {
	logger.Error(action+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "An error occurred. Please try again.",
	})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email           string `json:"email"`
		Name            string `json:"name"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input."})
		return
	}

	errs := map[string][]string{}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		errs["email"] = append(errs["email"], "Enter a valid email address.")
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		errs["name"] = append(errs["name"], "Name must be at least 2 characters long.")
	}
	if req.Password != req.PasswordConfirm {
		errs["password_confirm"] = append(errs["password_confirm"], "Passwords do not match.")
	}
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		fieldErrors(c, map[string][]string{"email": {"A user with this email already exists."}})
		return
	case errors.Is(err, domain.ErrWeakPassword):
		fieldErrors(c, map[string][]string{"password": {err.Error()}})
		return
	case err != nil:
		serverError(c, h.logger, "registration", err)
		return
	}

	h.issueVerification(c, user)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful! Please check your email to verify your account.",
		"user": gin.H{
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// issueVerification creates a verification token and hands it to the mailer.
// Mail failures are logged, not surfaced: the account exists either way and
// the user can ask for a resend.
func (h *AuthHandler) issueVerification(c *gin.Context, user *domain.User) {
	t, err := h.Tokens.Issue(c.Request.Context(), user.ID, domain.PurposeEmailVerification)
	if err != nil {
		h.logger.Error("failed to issue verification token", zap.Error(err))
		return
	}
	if err := h.Mail.SendVerificationEmail(c.Request.Context(), user, t.Token); err != nil {
		h.logger.Error("failed to send verification email", zap.Error(err))
	}
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		fieldErrors(c, map[string][]string{"token": {"Verification token is required."}})
		return
	}

	userID, err := h.Tokens.Consume(c.Request.Context(), req.Token, domain.PurposeEmailVerification)
	switch {
	case errors.Is(err, domain.ErrSingleUseAlreadyUsed):
		fieldErrors(c, map[string][]string{"token": {"This verification link has already been used."}})
		return
	case errors.Is(err, domain.ErrSingleUseExpired):
		fieldErrors(c, map[string][]string{"token": {"This verification link has expired. Please request a new one."}})
		return
	case errors.Is(err, domain.ErrSingleUseNotFound), errors.Is(err, domain.ErrPurposeMismatch):
		fieldErrors(c, map[string][]string{"token": {"Invalid verification token."}})
		return
	case err != nil:
		serverError(c, h.logger, "email verification", err)
		return
	}

	if err := h.Users.MarkVerified(c.Request.Context(), userID); err != nil {
		serverError(c, h.logger, "email verification", err)
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		serverError(c, h.logger, "email verification", err)
		return
	}
	if err := h.Mail.SendWelcomeEmail(c.Request.Context(), user); err != nil {
		h.logger.Error("failed to send welcome email", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email verified successfully! You can now log in.",
		"user": gin.H{
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// ResendVerification handles POST /api/auth/resend-verification. The response
// is identical whether or not the email exists.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		fieldErrors(c, map[string][]string{"email": {"Email is required."}})
		return
	}

	user, err := h.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		serverError(c, h.logger, "resend verification", err)
		return
	}
	if user != nil && !user.EmailVerified {
		h.issueVerification(c, user)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If an account exists with this email, a verification link has been sent.",
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password are required."})
		return
	}

	user, err := h.Users.VerifyPassword(c.Request.Context(), req.Email, req.Password)
	h.recordAttempt(c, req.Email, err == nil)

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid email or password."})
		return
	case err != nil:
		serverError(c, h.logger, "login", err)
		return
	}

	if h.RequireVerifiedEmail && !user.EmailVerified {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Please verify your email before logging in. Check your inbox for the verification link.",
		})
		return
	}

	deviceInfo := useragent.ExtractDeviceInfo(c.Request)
	ipAddress := useragent.ExtractIPAddress(c.Request)

	sess, err := h.Sessions.Create(c.Request.Context(), user.ID, deviceInfo, ipAddress)
	if err != nil {
		serverError(c, h.logger, "login", err)
		return
	}

	accessToken, err := h.Codec.GenerateAccessToken(user.ID)
	if err != nil {
		serverError(c, h.logger, "login", err)
		return
	}

	httputil.SetAccessCookie(c.Writer, accessToken, h.AccessCookieMaxAge, h.SecureCookies)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Login successful!",
		"user":          user.PublicUser(),
		"access_token":  accessToken,
		"refresh_token": sess.SessionID,
	})
}

func (h *AuthHandler) recordAttempt(c *gin.Context, email string, successful bool) {
	if h.Attempts == nil {
		return
	}
	attempt := &domain.LoginAttempt{
		Email:      credential.NormalizeEmail(email),
		IPAddress:  useragent.ExtractIPAddress(c.Request),
		UserAgent:  c.Request.UserAgent(),
		Successful: successful,
	}
	if err := h.Attempts.RecordAttempt(c.Request.Context(), attempt); err != nil {
		h.logger.Warn("failed to record login attempt", zap.Error(err))
	}
}

// Refresh handles POST /api/auth/token/refresh. The refresh credential is an
// opaque session ID validated against the registry, never a signed token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.refreshTokenFromRequest(c)
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "No refresh token provided."})
		return
	}

	sess, err := h.Sessions.Rotate(c.Request.Context(), refreshToken)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionReuseDetected):
		// Reuse detection is logged and metered inside the registry; the
		// external response stays the same generic 401 an ordinary
		// expired session would produce.
		httputil.ClearAccessCookie(c.Writer)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Session expired. Please log in again."})
		return
	case err != nil:
		serverError(c, h.logger, "token refresh", err)
		return
	}

	accessToken, err := h.Codec.GenerateAccessToken(sess.UserID)
	if err != nil {
		serverError(c, h.logger, "token refresh", err)
		return
	}

	httputil.SetAccessCookie(c.Writer, accessToken, h.AccessCookieMaxAge, h.SecureCookies)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": sess.SessionID,
	})
}

func (h *AuthHandler) refreshTokenFromRequest(c *gin.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := c.Request.Cookie("refresh_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// Logout handles POST /api/auth/logout. Idempotent: succeeds even if the
// session is already gone.
func (h *AuthHandler) Logout(c *gin.Context) {
	if refreshToken := h.refreshTokenFromRequest(c); refreshToken != "" {
		if err := h.Sessions.Revoke(c.Request.Context(), refreshToken); err != nil {
			serverError(c, h.logger, "logout", err)
			return
		}
	}

	httputil.ClearAccessCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully."})
}

// Check handles GET /api/auth/check. It never errors: any failure simply
// reports an unauthenticated state.
func (h *AuthHandler) Check(c *gin.Context) {
	unauthenticated := func() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
	}

	tokenString, err := httputil.GetAccessToken(c.Request)
	if err != nil {
		unauthenticated()
		return
	}
	claims, err := h.Codec.ValidateAccessToken(tokenString)
	if err != nil {
		unauthenticated()
		return
	}
	user, err := h.Users.GetByID(c.Request.Context(), claims.Subject())
	if err != nil {
		unauthenticated()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user": gin.H{
			"id":    user.ID.String(),
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// RequestPasswordReset handles POST /api/auth/password-reset. Response is
// uniform regardless of whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		fieldErrors(c, map[string][]string{"email": {"Email is required."}})
		return
	}

	user, err := h.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		serverError(c, h.logger, "password reset request", err)
		return
	}
	if user != nil {
		t, err := h.Tokens.Issue(c.Request.Context(), user.ID, domain.PurposePasswordReset)
		if err != nil {
			h.logger.Error("failed to issue reset token", zap.Error(err))
		} else if err := h.Mail.SendPasswordResetEmail(c.Request.Context(), user, t.Token); err != nil {
			h.logger.Error("failed to send reset email", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If an account exists with this email, you will receive a password reset link.",
	})
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm. On
// success every session of the user is revoked: the old password's sessions
// are no longer trustworthy.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		fieldErrors(c, map[string][]string{"token": {"Reset token is required."}})
		return
	}
	if req.Password != req.PasswordConfirm {
		fieldErrors(c, map[string][]string{"password_confirm": {"Passwords do not match."}})
		return
	}

	userID, err := h.Tokens.Consume(c.Request.Context(), req.Token, domain.PurposePasswordReset)
	switch {
	case errors.Is(err, domain.ErrSingleUseAlreadyUsed):
		fieldErrors(c, map[string][]string{"token": {"This reset link has already been used."}})
		return
	case errors.Is(err, domain.ErrSingleUseExpired):
		fieldErrors(c, map[string][]string{"token": {"This reset link has expired. Please request a new one."}})
		return
	case errors.Is(err, domain.ErrSingleUseNotFound), errors.Is(err, domain.ErrPurposeMismatch):
		fieldErrors(c, map[string][]string{"token": {"Invalid reset token."}})
		return
	case err != nil:
		serverError(c, h.logger, "password reset", err)
		return
	}

	if err := h.Users.SetPassword(c.Request.Context(), userID, req.Password); err != nil {
		if errors.Is(err, domain.ErrWeakPassword) {
			fieldErrors(c, map[string][]string{"password": {err.Error()}})
			return
		}
		serverError(c, h.logger, "password reset", err)
		return
	}

	if err := h.Sessions.RevokeAll(c.Request.Context(), userID); err != nil {
		serverError(c, h.logger, "password reset", err)
		return
	}

	if user, err := h.Users.GetByID(c.Request.Context(), userID); err == nil {
		if err := h.Mail.SendPasswordChangedEmail(c.Request.Context(), user); err != nil {
			h.logger.Error("failed to send password changed email", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password reset successfully! You can now log in with your new password.",
	})
}

// ChangePassword handles POST /api/auth/change-password (authenticated).
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required."})
		return
	}

	var req struct {
		CurrentPassword    string `json:"current_password"`
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input."})
		return
	}
	if req.NewPassword != req.NewPasswordConfirm {
		fieldErrors(c, map[string][]string{"new_password_confirm": {"Passwords do not match."}})
		return
	}

	err := h.Users.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		fieldErrors(c, map[string][]string{"current_password": {"Current password is incorrect."}})
		return
	case errors.Is(err, domain.ErrWeakPassword):
		fieldErrors(c, map[string][]string{"new_password": {err.Error()}})
		return
	case err != nil:
		serverError(c, h.logger, "change password", err)
		return
	}

	// Old-password sessions are no longer trustworthy.
	if err := h.Sessions.RevokeAll(c.Request.Context(), userID); err != nil {
		serverError(c, h.logger, "change password", err)
		return
	}

	if user, err := h.Users.GetByID(c.Request.Context(), userID); err == nil {
		if err := h.Mail.SendPasswordChangedEmail(c.Request.Context(), user); err != nil {
			h.logger.Error("failed to send password changed email", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully!"})
}

// Profile handles GET /api/auth/profile (authenticated).
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required."})
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		serverError(c, h.logger, "profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":             user.ID.String(),
			"email":          user.Email,
			"name":           user.Name,
			"email_verified": user.EmailVerified,
			"created_at":     user.CreatedAt,
		},
	})
}

// UpdateProfile handles PATCH /api/auth/profile (authenticated).
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required."})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input."})
		return
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		fieldErrors(c, map[string][]string{"name": {"Name must be at least 2 characters long."}})
		return
	}

	if err := h.Users.UpdateName(c.Request.Context(), userID, req.Name); err != nil {
		serverError(c, h.logger, "profile update", err)
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		serverError(c, h.logger, "profile update", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully!",
		"user":    user.PublicUser(),
	})
}

// SessionHistory handles GET /api/auth/sessions (authenticated).
func (h *AuthHandler) SessionHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required."})
		return
	}

	sessions, err := h.Sessions.History(c.Request.Context(), userID, 10)
	if err != nil {
		serverError(c, h.logger, "session history", err)
		return
	}

	now := time.Now()
	list := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, gin.H{
			"device_info": s.DeviceInfo,
			"ip_address":  s.IPAddress,
			"issued_at":   s.IssuedAt,
			"expires_at":  s.ExpiresAt,
			"active":      s.Active(now),
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": list})
}
