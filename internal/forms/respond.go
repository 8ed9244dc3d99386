package forms

import (
	"encoding/json"
	"net/http"

	"github.com/2beens/fitlog/pkg"

	log "github.com/sirupsen/logrus"
)

// FailedValidationResponse is the body returned for submissions that did not
// pass validation. Notices carry non-fatal diagnostics (e.g. form entries
// that were dropped during decoding) even on otherwise successful requests.
type FailedValidationResponse struct {
	Errors  Errors   `json:"errors"`
	Notices []string `json:"notices"`
}

func WriteFailedValidation(w http.ResponseWriter, errs Errors, notices []string) {
	if notices == nil {
		notices = []string{}
	}
	respBytes, err := json.Marshal(FailedValidationResponse{
		Errors:  errs,
		Notices: notices,
	})
	if err != nil {
		log.Errorf("marshal validation errors: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, http.StatusBadRequest)
}
