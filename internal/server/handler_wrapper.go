// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/maruel/calnotes/internal/server/dto"
	"github.com/maruel/calnotes/internal/server/ratelimit"
	"github.com/maruel/calnotes/internal/server/reqctx"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 10 << 20

// Limits is the per-handler configuration shared by Wrap and WrapPlain.
type Limits struct {
	// MaxBodyBytes caps the request body; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// RateLimits is nil when rate limiting is disabled.
	RateLimits *ratelimit.Config
}

func (l *Limits) maxBody() int64 {
	if l == nil || l.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return l.MaxBodyBytes
}

func (l *Limits) rateLimits() *ratelimit.Config {
	if l == nil {
		return nil
	}
	return l.RateLimits
}

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*dto.Envelope[T], error)
// where In can be unmarshalled from JSON. The result is rendered as a
// dto.Response envelope with T as data.
// Path and query parameters can be extracted by tagging struct fields with
// `path:"name"` or `query:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type GetDayRequest struct {
//	    DateKey string `path:"dateKey"`
//	}
//
//	func (h *NotesHandler) GetDay(ctx context.Context, req *GetDayRequest) (*dto.Envelope[dto.DayResponse], error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, T any](fn func(context.Context, PtrIn) (*dto.Envelope[T], error), limits *Limits) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, input, w, ok := prepare[In, PtrIn](w, r, limits)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		writeEnvelope(ctx, w, output, err)
	})
}

// WrapPlain is Wrap for endpoints answering a bare JSON object instead of an
// envelope, like /health. Failures are still enveloped.
func WrapPlain[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), limits *Limits) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, input, w, ok := prepare[In, PtrIn](w, r, limits)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		if err != nil {
			writeHandlerError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, output)
	})
}

// prepare runs the steps common to every wrapped handler: rate limiting,
// body decoding, path parameters and validation. It returns false when a
// response was already written.
func prepare[In any, PtrIn interface {
	*In
	dto.Validatable
}](w http.ResponseWriter, r *http.Request, limits *Limits) (context.Context, PtrIn, http.ResponseWriter, bool) {
	ctx := addRequestMetadataToContext(r.Context(), r)
	var ok bool
	if tier := limits.rateLimits().Match(r.Method, r.URL.Path); tier != nil {
		w, ok = checkRateLimit(ctx, w, tier, reqctx.ClientIP(ctx))
		if !ok {
			return ctx, nil, w, false
		}
	}
	input := new(In)
	if !readAndDecodeBody(ctx, w, r, input, limits.maxBody()) {
		return ctx, nil, w, false
	}
	if apiErr := populateParams(r, input); apiErr != nil {
		slog.WarnContext(ctx, "Invalid parameter", "err", apiErr)
		writeErrorResponse(w, apiErr)
		return ctx, nil, w, false
	}
	if err := PtrIn(input).Validate(); err != nil {
		handleValidationError(ctx, w, err)
		return ctx, nil, w, false
	}
	return ctx, PtrIn(input), w, true
}

// addRequestMetadataToContext adds client IP and User-Agent to the context
// unless the middleware already did.
func addRequestMetadataToContext(ctx context.Context, r *http.Request) context.Context {
	if reqctx.ClientIP(ctx) == "" {
		ctx = reqctx.WithClientIP(ctx, reqctx.GetClientIP(r))
	}
	if reqctx.UserAgent(ctx) == "" {
		ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
	}
	return ctx
}

// checkRateLimit checks rate limit and wraps the response writer.
// Returns the wrapped writer and whether the request should proceed.
func checkRateLimit(ctx context.Context, w http.ResponseWriter, tier *ratelimit.Tier, identifier string) (http.ResponseWriter, bool) {
	result := tier.Limiter.Allow(ratelimit.BuildKey(identifier, tier.Name))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		slog.WarnContext(ctx, "Rate limited", "tier", tier.Name, "ip", identifier, "retryAfter", result.RetryAfter)
		writeRateLimitError(w, result)
		return w, false
	}
	return w, true
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		if maxBytesErr := checkMaxBytesError(err); maxBytesErr != nil {
			apiErr := dto.PayloadTooLarge(maxBytesErr.Limit)
			slog.WarnContext(ctx, "Request body too large", "limit", maxBytesErr.Limit)
			writeErrorResponse(w, apiErr)
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeErrorResponse(w, dto.BadRequest("Failed to read request body"))
		return false
	}
	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.ErrorContext(ctx, "Failed to decode request body", "err", err)
			writeErrorResponse(w, dto.BadRequest("Invalid request body"))
			return false
		}
	}
	return true
}

// checkMaxBytesError checks if an error is a MaxBytesError and returns it, or nil.
func checkMaxBytesError(err error) *http.MaxBytesError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return maxBytesErr
	}
	return nil
}

// populateParams extracts path and query parameters from the request and
// populates struct fields tagged with `path:"name"` or `query:"name"`.
// String and int fields are supported.
func populateParams(r *http.Request, input any) *dto.APIError {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return nil // Skip if not a pointer
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return nil // Skip if not a struct
	}
	typ := elem.Type()
	var query map[string][]string
	for i := range typ.NumField() {
		field := typ.Field(i)
		name, value := "", ""
		if tag := field.Tag.Get("path"); tag != "" {
			name, value = tag, r.PathValue(tag)
		} else if tag := field.Tag.Get("query"); tag != "" {
			if query == nil {
				query = r.URL.Query()
			}
			name = tag
			if v := query[tag]; len(v) > 0 {
				value = v[0]
			}
		}
		if value == "" {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(value)
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return dto.InvalidFormat(name, value)
			}
			elem.Field(i).SetInt(int64(n))
		}
	}
	return nil
}

// writeEnvelope writes a success envelope or a failure envelope.
func writeEnvelope[T any](ctx context.Context, w http.ResponseWriter, output *dto.Envelope[T], err error) {
	if err != nil {
		writeHandlerError(ctx, w, err)
		return
	}
	resp := dto.Response{Success: true}
	if output != nil {
		resp.Message = output.Message
		data, err := json.Marshal(output.Data)
		if err != nil {
			writeHandlerError(ctx, w, dto.InternalWithError("Failed to encode response", err))
			return
		}
		resp.Data = data
	}
	writeJSON(ctx, w, http.StatusOK, &resp)
}

// writeHandlerError logs err and writes it as a failure envelope. Errors that
// are not a dto.ErrorWithStatus become a 500.
func writeHandlerError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := asAPIError(err, dto.InternalWithError("Internal server error", err))
	slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", apiErr.StatusCode(), "code", apiErr.Code())
	writeErrorResponse(w, apiErr)
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := asAPIError(err, dto.BadRequest(err.Error()))
	slog.WarnContext(ctx, "Validation error", "err", err, "statusCode", apiErr.StatusCode(), "code", apiErr.Code())
	writeErrorResponse(w, apiErr)
}

// asAPIError returns err as a *dto.APIError, or fallback.
func asAPIError(err error, fallback *dto.APIError) *dto.APIError {
	var apiErr *dto.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		return dto.NewAPIError(ewsErr.StatusCode(), ewsErr.Code(), ewsErr.Error()).WithDetails(ewsErr.Details())
	}
	return fallback
}

// writeErrorResponse writes a failure envelope. The wrapped error of apiErr
// is not sent to the client.
func writeErrorResponse(w http.ResponseWriter, apiErr *dto.APIError) {
	resp := dto.Response{
		Message: apiErr.Message(),
		Code:    apiErr.Code(),
	}
	if d := apiErr.Details(); len(d) > 0 {
		resp.Details = d
	}
	writeJSON(context.Background(), w, apiErr.StatusCode(), &resp)
}

// writeRateLimitError writes a 429 rate limit error response.
func writeRateLimitError(w http.ResponseWriter, result ratelimit.Result) {
	writeErrorResponse(w, dto.RateLimitExceeded(ratelimit.RetryAfterSeconds(result)))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}
