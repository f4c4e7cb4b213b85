package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oms-platform/inventory-service/pkg/errors"
)

var (
	productIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	safeStringPattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?@#$%&*()+=:;'"<>\/\[\]{}|\\~\x60]+$`)

	validateOnce sync.Once
)

// ValidProductID reports whether s is an acceptable product identifier:
// alphanumeric with dashes or underscores, up to 64 characters. Handlers use
// it for path parameters, the product_id binding tag covers request bodies.
func ValidProductID(s string) bool {
	return productIDPattern.MatchString(s)
}

// InitValidator registers the custom binding validators on gin's engine and
// switches field naming to JSON tags. Safe to call more than once.
func InitValidator() {
	validateOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("product_id", func(fl validator.FieldLevel) bool {
				return ValidProductID(fl.Field().String())
			})
			_ = v.RegisterValidation("safe_string", func(fl validator.FieldLevel) bool {
				return safeStringPattern.MatchString(fl.Field().String())
			})
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return fld.Name
	}
	return name
}

// BindAndValidate binds the JSON request body into obj, translating binding
// failures into contract validation errors.
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		return errors.ErrValidationWithFields("validation failed", formatFieldErrors(fieldErrors))
	}
	return errors.ErrBadRequest("invalid request body: " + err.Error())
}

func formatFieldErrors(fieldErrors validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(fieldErrors))
	for _, e := range fieldErrors {
		fields[e.Field()] = fieldErrorMessage(e)
	}
	return fields
}

func fieldErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "product_id":
		return "must be a valid product ID (alphanumeric with dashes or underscores)"
	case "safe_string":
		return "contains invalid characters"
	default:
		return "is invalid"
	}
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// InputSanitizer strips null bytes and surrounding whitespace from query
// parameters before handlers see them.
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = sanitize(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()

		c.Next()
	}
}

// ContentType rejects mutating requests whose body is not JSON. Requests
// without a body pass, some endpoints take none.
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if !strings.HasPrefix(contentType, "application/json") && c.Request.ContentLength > 0 {
				AbortWithAppError(c, errors.NewAppError(
					"INVALID_CONTENT_TYPE",
					"Content-Type must be application/json",
					http.StatusUnsupportedMediaType,
				))
				return
			}
		}
		c.Next()
	}
}
