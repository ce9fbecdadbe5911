package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finance/internal/services"
	"finance/internal/storage"
)

// monthRefFromPath reads {year} and {month}. Only the integer syntax is
// checked here; the range of month is enforced by the store.
func monthRefFromPath(w http.ResponseWriter, r *http.Request) (services.MonthRef, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(r.PathValue("year")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return services.MonthRef{}, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.PathValue("month")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be an integer")
		return services.MonthRef{}, false
	}
	return services.MonthRef{Year: year, Month: month}, true
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrInvalidMonth):
		return http.StatusUnprocessableEntity, "month must be between 1 and 12"
	case errors.Is(err, storage.ErrUnknownUser):
		return http.StatusInternalServerError, "local user missing"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
