package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
)

const maxBodyBytes = 1 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report json names instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// RecommendationRequest is the body of POST /api/longterm/long-buy-recommendations
type RecommendationRequest struct {
	Combination        *contracts.Combination `json:"combination"`
	LimitPerQuery      int                    `json:"limit_per_query" default:"30" validate:"min=1,max=500"`
	MinScore           *float64               `json:"min_score" default:"0.6" validate:"required,min=0"`
	TopRecommendations int                    `json:"top_recommendations" default:"20" validate:"min=1,max=200"`
}

// ToRequest converts to an engine request
func (r RecommendationRequest) ToRequest() recommend.Request {
	req := recommend.Request{
		LimitPerQuery:      r.LimitPerQuery,
		MinScore:           r.MinScore,
		TopRecommendations: r.TopRecommendations,
	}
	if r.Combination != nil {
		req.Combination = *r.Combination
	}
	return req
}

// TestCombinationRequest is the body of POST /api/longterm/test-combination
type TestCombinationRequest struct {
	FundamentalVersion string   `json:"fundamental_version" validate:"required"`
	MomentumVersion    string   `json:"momentum_version" validate:"required"`
	ValueVersion       string   `json:"value_version" validate:"required"`
	QualityVersion     string   `json:"quality_version" validate:"required"`
	LimitPerQuery      int      `json:"limit_per_query" default:"30" validate:"min=1,max=500"`
	MinScore           *float64 `json:"min_score" default:"0.6" validate:"required,min=0"`
}

// ToRequest converts to a tester request
func (r TestCombinationRequest) ToRequest() recommend.TestRequest {
	return recommend.TestRequest{
		Combination: contracts.Combination{
			Fundamental: r.FundamentalVersion,
			Momentum:    r.MomentumVersion,
			Value:       r.ValueVersion,
			Quality:     r.QualityVersion,
		},
		LimitPerQuery: r.LimitPerQuery,
		MinScore:      r.MinScore,
	}
}

// bindError is a request that could not be decoded or validated
type bindError struct {
	code    string
	message string
	fields  []FieldError
}

func (e *bindError) Error() string {
	return e.message
}

func (e *bindError) respond(w http.ResponseWriter) {
	respondError(w, http.StatusBadRequest, e.code, e.message, e.fields...)
}

// bindRequest decodes, applies defaults and validates. An empty body is allowed.
func bindRequest(r *http.Request, req interface{}) *bindError {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return &bindError{code: ErrCodeInvalidBody, message: fmt.Sprintf("invalid request body: %v", err)}
	}

	if err := defaults.Set(req); err != nil {
		return &bindError{code: ErrCodeInvalidBody, message: err.Error()}
	}

	if err := validate.StructCtx(r.Context(), req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &bindError{code: ErrCodeValidation, message: err.Error()}
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return &bindError{code: ErrCodeValidation, message: "request validation failed", fields: fields}
	}

	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
