// Account HTTP handlers.
//
//   - POST /auth/register          (create an account)
//   - POST /auth/login             (exchange credentials for a bearer token)
//   - GET  /me                     (own profile)
//   - PUT  /me                     (partial profile update)
//   - POST /me/image/upload-url    (presigned profile picture upload)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/services"
)

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username    string `json:"username"     binding:"required" example:"jdoe"`
	Email       string `json:"email"        binding:"required" example:"jane@example.com"`
	Password    string `json:"password"     binding:"required" example:"correct-horse-battery"`
	FirstName   string `json:"first_name"   example:"Jane"`
	LastName    string `json:"last_name"    example:"Doe"`
	PhoneNumber string `json:"phone_number" example:"5551234567"`
}

// LoginRequest is the JSON payload for signing in. Login is a username or
// an email address.
type LoginRequest struct {
	Login    string `json:"login"    binding:"required" example:"jdoe"`
	Password string `json:"password" binding:"required" example:"correct-horse-battery"`
}

// UpdateProfileRequest is a partial update: absent fields stay unchanged.
type UpdateProfileRequest struct {
	Email       *string `json:"email"        example:"jane@example.org"`
	FirstName   *string `json:"first_name"   example:"Jane"`
	LastName    *string `json:"last_name"    example:"Doe"`
	PhoneNumber *string `json:"phone_number" example:"5551234567"`
	Address     *string `json:"address"      example:"1 Main St"`
	Description *string `json:"description"  example:"Dog person"`
}

// ImageUploadRequest names the file about to be uploaded; its extension
// selects the content type.
type ImageUploadRequest struct {
	Filename string `json:"filename" binding:"required" example:"rex.jpg"`
}

// Register godoc
// @ID          register
// @Summary     Create an account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Username or email taken"
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username, email and password are required")
		return
	}
	u, err := h.users.Register(c.Request.Context(), services.Registration{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Returns a bearer token for the Authorization header.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.Session
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "login and password are required")
		return
	}
	s, err := h.users.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, s)
}

// GetMe godoc
// @ID          getMe
// @Summary     Current user's profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, err := h.users.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the current user's profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Email taken"
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /me [put]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), services.ProfileUpdate(req))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// MyImageUploadURL godoc
// @ID          myImageUploadURL
// @Summary     Presigned upload URL for the profile picture
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ImageUploadRequest  true  "File name"
// @Success     200   {object}  services.ImageUpload
// @Failure     422   {object}  handlers.ErrorResponse  "Unsupported image type"
// @Failure     503   {object}  handlers.ErrorResponse  "Object storage disabled"
// @Router      /me/image/upload-url [post]
func (h *Handlers) MyImageUploadURL(c *gin.Context) {
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "filename required")
		return
	}
	up, err := h.users.ImageUploadURL(c.Request.Context(), currentUser(c), req.Filename)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}
