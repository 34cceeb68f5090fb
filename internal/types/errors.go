package types

// API error codes used across the REST surface
const (
	CodeBadRequest     = "SHIFT_400"
	CodeNotFound       = "SHIFT_404"
	CodeConflict       = "SHIFT_409"
	CodeInternal       = "SHIFT_500"
	CodeArchiveBad     = "ARCHIVE_400"
	CodeArchiveMissing = "ARCHIVE_404"
	CodeSettingsBad    = "SETTINGS_400"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
