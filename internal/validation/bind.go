package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/apperrors"
)

// BadRequestBody is the response for any unusable request body.
var BadRequestBody = gin.H{"message": "Bad request."}

// BindAndValidate binds JSON body into `out` and runs validation.
// On failure it writes a 400 response and returns a validation error for the
// handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, BadRequestBody)
		return apperrors.Validation("invalid request body", map[string]any{"error": err.Error()})
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, BadRequestBody)
		return apperrors.Validation("request validation failed", map[string]any{"fields": validationErrorsToMap(err)})
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
