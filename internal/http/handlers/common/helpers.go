package common

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/middleware"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	repocommon "github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// ErrUserNotFound is returned when the request carries no authenticated user.
var ErrUserNotFound = errors.New("user not found in context")

// CurrentUserID extracts the authenticated user ID from the Gin context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// CurrentUserRole extracts the authenticated user's role from the Gin context.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrUserNotFound
	}

	role, ok := raw.(string)
	if !ok {
		return "", ErrUserNotFound
	}

	return role, nil
}

// CurrentActor builds the service actor of an authenticated request. It
// answers 401 itself and reports false when there is none.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		RespondError(c, apperror.ErrUnauthorized)
		return service.Actor{}, false
	}
	role, _ := CurrentUserRole(c)
	return service.SessionActor(userID, role), true
}

// ParseUUIDParam parses a UUID path parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid "+paramName, map[string][]string{paramName: {"Must be a valid UUID"}})
	}
	return parsed, nil
}

// UUIDParam parses a UUID path parameter, answering 400 when it is malformed.
func UUIDParam(c *gin.Context, paramName string) (uuid.UUID, bool) {
	id, err := ParseUUIDParam(c, paramName)
	if err != nil {
		RespondError(c, err)
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the body into req, answering 400 on failure.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondError(c, apperror.Wrap(err, apperror.ErrCodeBadRequest, fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}

// BindOptionalJSON is BindJSON for endpoints whose body may be omitted.
func BindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return BindJSON(c, req)
}

// RespondError writes err as {"detail", "errors"} with the status of its code.
func RespondError(c *gin.Context, err error) {
	status, body := middleware.Render(err)
	if status >= http.StatusInternalServerError {
		logger.L().WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// RespondJSON sends a JSON response with the given status code and data.
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondDetail acknowledges an action with a short message.
func RespondDetail(c *gin.Context, statusCode int, detail string) {
	c.JSON(statusCode, dto.DetailResponse{Detail: detail})
}

// ParseIntQuery safely reads an integer query parameter with a fallback value.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination reads page and page_size, clamped to the allowed range.
func GetPagination(c *gin.Context) repocommon.PageRequest {
	return repocommon.PageRequest{
		Page:     ParseIntQuery(c, "page", 1),
		PageSize: ParseIntQuery(c, "page_size", repocommon.DefaultPageSize),
	}.Normalize()
}

// RespondPage sends rows in the list envelope with links relative to the
// current request.
func RespondPage[T any](c *gin.Context, items []T, total int, page repocommon.PageRequest) {
	page = page.Normalize()
	c.JSON(http.StatusOK, dto.NewPage(items, total, page.Page, page.PageSize, c.Request.URL))
}

// SendFile streams stored content. Inline PDFs open in the browser.
func SendFile(c *gin.Context, f *service.File, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, f.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

// FormFile opens the multipart file under field. The caller closes it.
func FormFile(c *gin.Context, field string) (service.Upload, multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		RespondError(c, apperror.Validation("file is required", map[string][]string{field: {"No file was submitted"}}))
		return service.Upload{}, nil, false
	}
	f, err := header.Open()
	if err != nil {
		RespondError(c, fmt.Errorf("open upload: %w", err))
		return service.Upload{}, nil, false
	}
	return service.Upload{Name: header.Filename, Reader: f}, f, true
}
