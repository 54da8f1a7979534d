package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/api/openapi"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
)

// MustOpenAPIValidator is OpenAPIValidator for router setup; it panics when
// the embedded document does not load.
func MustOpenAPIValidator() gin.HandlerFunc {
	mw, err := OpenAPIValidator()
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// OpenAPIValidator checks requests and responses of the routes mounted under
// openapi.BasePath against the embedded contract.
//
// Violations are reported through c.Error, so ErrorHandler must run before it
// in the chain: a bad request becomes INVALID_INPUT with the offending field
// and reason in params, a bad response becomes CONTRACT_VIOLATION.
// Responses of requests that already failed are left to ErrorHandler.
func OpenAPIValidator() (gin.HandlerFunc, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	return func(c *gin.Context) {
		req := contractRequest(c.Request)
		route, pathParams, err := router.FindRoute(req)
		if err != nil {
			logger.Warn("Route is not described by the API contract",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		}
		err = openapi3filter.ValidateRequest(c.Request.Context(), input)
		// Validation drains the body and leaves a replayable copy on req.
		c.Request.Body = req.Body
		if err != nil {
			_ = c.Error(requestViolation(err))
			c.Abort()
			return
		}

		rec := &responseRecorder{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = rec
		c.Next()
		c.Writer = rec.ResponseWriter

		if len(c.Errors) > 0 && rec.body.Len() == 0 {
			return
		}

		out := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: input,
			Status:                 rec.status,
			Header:                 rec.Header().Clone(),
		}
		if rec.body.Len() > 0 {
			out.SetBodyBytes(rec.body.Bytes())
		}
		if err := openapi3filter.ValidateResponse(c.Request.Context(), out); err != nil {
			_ = c.Error(apperrors.ErrContractViolation(err))
			return
		}

		c.Writer.WriteHeader(rec.status)
		if rec.body.Len() == 0 {
			return
		}
		if _, err := c.Writer.Write(rec.body.Bytes()); err != nil {
			logger.Warn("Failed to write response",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
	}, nil
}

// contractRequest returns a shallow copy of r addressed by its contract path,
// i.e. with openapi.BasePath removed.
func contractRequest(r *http.Request) *http.Request {
	u := *r.URL
	u.Path = strings.TrimPrefix(u.Path, openapi.BasePath)
	if u.Path == "" {
		u.Path = "/"
	}
	if u.RawPath != "" {
		u.RawPath = strings.TrimPrefix(u.RawPath, openapi.BasePath)
	}
	out := *r
	out.URL = &u
	return &out
}

func requestViolation(err error) *apperrors.AppError {
	params := map[string]interface{}{apperrors.ParamReason: err.Error()}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			params[apperrors.ParamField] = reqErr.Parameter.Name
		case reqErr.RequestBody != nil:
			params[apperrors.ParamField] = "body"
		}
	}
	return apperrors.ErrInvalidInputf("request does not match the API contract").WithParams(params)
}

// responseRecorder holds a handler's response until it has been validated.
type responseRecorder struct {
	gin.ResponseWriter
	body    bytes.Buffer
	status  int
	written bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
}

func (w *responseRecorder) WriteHeaderNow() {
	w.written = true
}

func (w *responseRecorder) Write(data []byte) (int, error) {
	w.written = true
	return w.body.Write(data)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *responseRecorder) Status() int {
	return w.status
}

func (w *responseRecorder) Size() int {
	if !w.written {
		return -1
	}
	return w.body.Len()
}

func (w *responseRecorder) Written() bool {
	return w.written
}
