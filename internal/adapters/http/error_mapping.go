package httpadapter

import (
	"net/http"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrMedicationNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAdmissionRejected):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrToolArgumentMalformed),
		domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
