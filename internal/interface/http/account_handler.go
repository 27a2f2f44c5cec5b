package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blanjamart/account-service/config"
	"github.com/blanjamart/account-service/internal/application"
	"github.com/blanjamart/account-service/pkg/helpers"
	"github.com/blanjamart/account-service/pkg/mailer"
	"github.com/blanjamart/account-service/pkg/response"
	"github.com/blanjamart/account-service/pkg/validation"
)

// AccountHandler translates HTTP requests into account service calls and
// maps typed failures back to status codes. It owns no business rules.
type AccountHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
	Pub    *helpers.RabbitPublisher
	Cfg    *config.Config
}

func NewAccountHandler(svc *application.Service, logger *logrus.Logger, pub *helpers.RabbitPublisher, cfg *config.Config) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger, Pub: pub, Cfg: cfg}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrNotFound),
		errors.Is(err, application.ErrEmailNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, application.ErrEmailTaken),
		errors.Is(err, application.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrStorage),
		errors.Is(err, application.ErrHashing),
		errors.Is(err, application.ErrAssetStore),
		errors.Is(err, application.ErrTokenIssue):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// fail writes the typed failure as a short stable message. Wrapped
// collaborator details stay in the logs, never in the payload.
func (h *AccountHandler) fail(c *gin.Context, err error) {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	response.Error[any](c, statusFor(err), msg, nil)
}

func imageFromForm(fh *multipart.FileHeader) (*application.ImageUpload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	img := &application.ImageUpload{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}
	return img, func() { _ = f.Close() }, nil
}

func (h *AccountHandler) enqueueEmail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Warn("failed to publish email job")
	}
}

// GetByID GET /api/users/:id
func (h *AccountHandler) GetByID(c *gin.Context) {
	u, err := h.Svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "get user success", nil)
}

// ListAll GET /api/users
func (h *AccountHandler) ListAll(c *gin.Context) {
	users, err := h.Svc.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, users, "get all user success", nil)
}

// Search GET /api/users/search/:username?page=&limit=
func (h *AccountHandler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	users, err := h.Svc.Search(c.Request.Context(), c.Param("username"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, users, "get user success", nil)
}

// FindByEmail GET /api/users/email/:email
func (h *AccountHandler) FindByEmail(c *gin.Context) {
	u, err := h.Svc.FindByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		response.Success[any](c, http.StatusOK, nil, "get email success", nil)
		return
	}
	response.Success(c, http.StatusOK, u, "get email success", nil)
}

type registerRequest struct {
	Username string `form:"username" json:"username" binding:"required,min=3,max=32"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,pwd"`
}

// Register POST /api/register (multipart; optional "photo" file)
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	in := application.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password}
	if fh, err := c.FormFile("photo"); err == nil && fh != nil {
		img, closeFn, oerr := imageFromForm(fh)
		if oerr != nil {
			response.Error[any](c, http.StatusBadRequest, "unreadable photo upload", nil)
			return
		}
		defer closeFn()
		in.Photo = img
	}

	u, err := h.Svc.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.enqueueEmail(c, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateWelcome,
		Data:     map[string]any{"Username": u.Username},
	})
	response.Success(c, http.StatusCreated, u, "register success", nil)
}

type loginRequest struct {
	// Email doubles as the identifier field: it accepts either the
	// account email or, as a fallback, the username.
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/login
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "login success", nil)
}

// balanceValue tolerates both a JSON string and a JSON number so the
// legacy form semantics ("" clears, "42" sets) keep working.
type balanceValue string

func (b *balanceValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*b = ""
		return nil
	}
	s = strings.Trim(s, `"`)
	*b = balanceValue(s)
	return nil
}

type updateProfileRequest struct {
	Username   *string       `json:"username"`
	Fullname   *string       `json:"fullname"`
	Email      *string       `json:"email" binding:"omitempty,email"`
	Phone      *string       `json:"phone"`
	City       *string       `json:"city"`
	Address    *string       `json:"address"`
	PostCode   *string       `json:"post_code"`
	CreditCard *string       `json:"credit_card"`
	Gender     *string       `json:"gender"`
	Level      *string       `json:"level"`
	Balance    *balanceValue `json:"balance"`
}

// UpdateProfile PUT /api/users/:id
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	in := application.UpdateProfileInput{
		Username:   req.Username,
		Fullname:   req.Fullname,
		Email:      req.Email,
		Phone:      req.Phone,
		City:       req.City,
		Address:    req.Address,
		PostCode:   req.PostCode,
		CreditCard: req.CreditCard,
		Gender:     req.Gender,
		Level:      req.Level,
		Balance:    (*string)(req.Balance),
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "update user success", nil)
}

// UpdatePhoto PUT /api/users/photo/:id (multipart; required "photo" file)
func (h *AccountHandler) UpdatePhoto(c *gin.Context) {
	fh, err := c.FormFile("photo")
	if err != nil || fh == nil {
		response.Error[any](c, http.StatusBadRequest, "photo file is required", nil)
		return
	}
	img, closeFn, err := imageFromForm(fh)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable photo upload", nil)
		return
	}
	defer closeFn()

	u, err := h.Svc.UpdatePhoto(c.Request.Context(), c.Param("id"), *img)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "update photo success", nil)
}

type resetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

// ResetPassword PUT /api/users/password
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	if err := h.Svc.ResetPassword(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, err)
		return
	}

	h.enqueueEmail(c, mailer.EmailJob{
		To:       req.Email,
		Template: mailer.TemplatePasswordChanged,
	})
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "update password success", nil)
}

// Delete DELETE /api/users/:id
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "delete user success", nil)
}
