package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/services"
	"github.com/Lyndoncatan/onlin-examination/internal/utils"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type ProfileHandler struct {
	BaseHandler
	profileService services.ProfileService
}

func NewProfileHandler(profileService services.ProfileService, logger utils.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler:    NewBaseHandler(logger),
		profileService: profileService,
	}
}

// EnsureProfile creates the caller's profile row on first login.
func (h *ProfileHandler) EnsureProfile(c *gin.Context) {
	h.LogRequest(c, "Ensuring profile")

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	req := &validator.ProfileCreateRequest{
		ID:       userID,
		FullName: c.GetString("user_name"),
		Email:    c.GetString("user_email"),
	}

	// The body may override display name/email from the token.
	var body struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		if body.FullName != "" {
			req.FullName = body.FullName
		}
		if body.Email != "" {
			req.Email = body.Email
		}
	}

	profile, err := h.profileService.EnsureProfile(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetMe returns the caller's own profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileService.GetByID(c.Request.Context(), userID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid id parameter"})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	id := c.Param("id")
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating profile", "profile_id", id)

	profile, err := h.profileService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateRole promotes or demotes a profile. Admin only.
func (h *ProfileHandler) UpdateRole(c *gin.Context) {
	id := c.Param("id")
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Changing role", "profile_id", id, "role", req.Role)

	if err := h.profileService.UpdateRole(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Role updated"})
}

func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := repositories.ProfileFilters{
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filters.Role = &r
	}
	if search := c.Query("search"); search != "" {
		filters.Search = &search
	}

	profiles, err := h.profileService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}
