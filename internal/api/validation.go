package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/constants"
)

// decodeJSON strictly decodes a single JSON object. Field validation happens
// in the service layer.
func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperr.Validation("Request body too large").WithCode(constants.ErrCodePayloadTooLarge)
		}
		return apperr.Validation("Invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("Invalid JSON body")
	}

	return nil
}
