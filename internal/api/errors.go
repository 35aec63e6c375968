package api

import (
	"errors"
	"net/http"

	"github.com/digkill/lumina/internal/identity"
	"github.com/digkill/lumina/internal/imagegen"
	"github.com/digkill/lumina/internal/repository"
	"github.com/digkill/lumina/internal/service"
)

// Error codes surfaced to clients verbatim.
const (
	CodeAuthFailed          = "AUTH_FAILED"
	CodeUserExists          = "USER_EXISTS"
	CodeUnauthorizedDomain  = "UNAUTHORIZED_DOMAIN"
	CodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	CodeProviderError       = "PROVIDER_ERROR"
	CodeNotAuthenticated    = "NOT_AUTHENTICATED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidState        = "INVALID_STATE"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeCheckoutDisabled    = "CHECKOUT_DISABLED"
	CodeNoImageReturned     = "NO_IMAGE_RETURNED"
	CodeGenerationFailed    = "GENERATION_FAILED"
	CodeInternal            = "INTERNAL"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: more specific sentinels come first.
var errorMappings = []errorMapping{
	{identity.ErrAuthFailed, http.StatusUnauthorized, CodeAuthFailed},
	{identity.ErrEmailInUse, http.StatusConflict, CodeUserExists},
	{identity.ErrUnauthorizedDomain, http.StatusForbidden, CodeUnauthorizedDomain},
	{identity.ErrProvider, http.StatusBadGateway, CodeProviderError},
	{ErrInvalidToken, http.StatusUnauthorized, CodeNotAuthenticated},
	{service.ErrNotAuthenticated, http.StatusUnauthorized, CodeNotAuthenticated},
	{identity.ErrInvalidVerification, http.StatusBadRequest, CodeInvalidToken},
	{service.ErrInsufficientCredits, http.StatusPaymentRequired, CodeInsufficientCredits},
	{service.ErrCheckoutDisabled, http.StatusForbidden, CodeCheckoutDisabled},
	{service.ErrConfirmUnsupported, http.StatusNotFound, CodeNotFound},
	{service.ErrPlanNotFound, http.StatusNotFound, CodeNotFound},
	{repository.ErrUserNotFound, http.StatusNotFound, CodeNotFound},
	{service.ErrFederatedDisabled, http.StatusNotFound, CodeNotFound},
	{service.ErrInvalidState, http.StatusBadRequest, CodeInvalidState},
	{service.ErrInvalidPlan, http.StatusBadRequest, CodeInvalidRequest},
	{service.ErrEmptyPrompt, http.StatusBadRequest, CodeInvalidRequest},
	{service.ErrInvalidAspectRatio, http.StatusBadRequest, CodeInvalidRequest},
	{imagegen.ErrInvalidBaseImage, http.StatusBadRequest, CodeInvalidRequest},
	{imagegen.ErrBaseImageUnsupported, http.StatusBadRequest, CodeInvalidRequest},
	{imagegen.ErrNoImageReturned, http.StatusBadGateway, CodeNoImageReturned},
	{service.ErrGenerationFailed, http.StatusBadGateway, CodeGenerationFailed},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}
