package server

import (
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/dasmlab/multiling/pkg/apperr"
)

// HTTPStatus maps an error to the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest, apperr.KindTranslation, apperr.KindLanguageDetection:
		return http.StatusBadRequest
	case apperr.KindCompletion:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps an error to the status code returned to gRPC callers.
func GRPCCode(err error) codes.Code {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest, apperr.KindTranslation, apperr.KindLanguageDetection:
		return codes.InvalidArgument
	case apperr.KindCompletion:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
