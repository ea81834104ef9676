// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// newValidator returns the configured request validator. Struct-level
// validation checks what tags cannot: the timestamp must be RFC3339 and not
// absurdly far in the future (kiosks run with skewed clocks, so a small
// tolerance is allowed).
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(submitStructValidation, SubmitFeedbackRequest{})
	return v
}

const clockSkewTolerance = 24 * time.Hour

func submitStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(SubmitFeedbackRequest)

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		sl.ReportError(req.Timestamp, "timestamp", "Timestamp", "rfc3339", "")
		return
	}
	if ts.After(time.Now().Add(clockSkewTolerance)) {
		sl.ReportError(req.Timestamp, "timestamp", "Timestamp", "not_future", "")
	}
}

// bindAndValidate binds the JSON body into out and runs validation. On
// failure it writes a 400 response and returns an error for the handler to
// short-circuit.
func bindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request_body",
			"message": err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
