package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/identity/internal/middleware"
	"github.com/mx-space/identity/internal/modules/auth/autherrors"
	"github.com/mx-space/identity/internal/modules/auth/session"
	"github.com/mx-space/identity/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
	g.POST("/forgot-password", h.forgotPassword)
	g.POST("/reset-password", h.resetPassword)
	g.POST("/verify-email", h.verifyEmail)

	a := g.Group("", authMW)
	a.GET("/session", h.currentSession)
	a.GET("/sessions", h.listSessions)
	a.POST("/sessions/revoke-all", h.revokeAllSessions)
	a.POST("/verify-email/resend", h.resendVerification)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Register(c.Request.Context(), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, u.PublicView())
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Login(c.Request.Context(), &dto, deviceMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) refresh(c *gin.Context) {
	var dto RefreshDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Refresh(c.Request.Context(), dto.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) logout(c *gin.Context) {
	var dto LogoutDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Logout(c.Request.Context(), dto.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// forgotPassword always answers 200 with the same body; see
// Service.RequestPasswordReset for the enumeration defense.
func (h *Handler) forgotPassword(c *gin.Context) {
	var dto ForgotPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), dto.Email, dto.TenantID); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": msgResetRequested})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.CompletePasswordReset(c.Request.Context(), dto.Token, dto.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var dto VerifyEmailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.VerifyEmail(c.Request.Context(), dto.Token); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) resendVerification(c *gin.Context) {
	err := h.svc.RequestEmailVerification(c.Request.Context(),
		middleware.CurrentUserID(c), middleware.CurrentTenantID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) currentSession(c *gin.Context) {
	response.OK(c, gin.H{
		"user_id":   middleware.CurrentUserID(c),
		"tenant_id": middleware.CurrentTenantID(c),
		"role_id":   middleware.CurrentRoleID(c),
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	response.OK(c, out)
}

func (h *Handler) revokeAllSessions(c *gin.Context) {
	n, err := h.svc.RevokeAllSessions(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"revoked": n})
}

// fail maps tagged service errors onto the response envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	msg := autherrors.MessageOf(err)
	switch autherrors.KindOf(err) {
	case autherrors.KindUnauthorized:
		response.UnauthorizedMsg(c, msg)
	case autherrors.KindForbidden:
		response.ForbiddenMsg(c, msg)
	case autherrors.KindValidation:
		response.UnprocessableEntity(c, msg)
	case autherrors.KindNotFound:
		response.NotFoundMsg(c, msg)
	default:
		response.InternalError(c, err)
	}
}

func deviceMeta(c *gin.Context) session.DeviceMeta {
	ua := c.GetHeader("User-Agent")
	return session.DeviceMeta{
		IP:          c.ClientIP(),
		UA:          ua,
		DeviceClass: deviceClassFrom(ua),
	}
}

// deviceClassFrom is a coarse bucket for session listings, not a parser.
func deviceClassFrom(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case lower == "":
		return "unknown"
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "android") || strings.Contains(lower, "iphone"):
		return "mobile"
	case strings.Contains(lower, "curl") || strings.Contains(lower, "wget") || strings.Contains(lower, "go-http-client") || strings.Contains(lower, "python-requests"):
		return "cli"
	default:
		return "desktop"
	}
}
