package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// File errors (2000-2999)
	ErrFileNotFound      = 2000
	ErrFileConflict      = 2001
	ErrFileQuotaExceeded = 2002
	ErrFileIO            = 2003
	ErrFileInvalidPath   = 2004
	ErrFileEmptyUpload   = 2005

	// Folder errors (3000-3999)
	ErrFolderNotFound      = 3000
	ErrFolderAlreadyExists = 3001
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// File errors
	ErrFileNotFound:      {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileConflict:      {ErrFileConflict, http.StatusConflict, "Destination path already occupied"},
	ErrFileQuotaExceeded: {ErrFileQuotaExceeded, http.StatusBadRequest, "No space available"},
	ErrFileIO:            {ErrFileIO, http.StatusInternalServerError, "Storage operation failed"},
	ErrFileInvalidPath:   {ErrFileInvalidPath, http.StatusBadRequest, "Invalid path"},
	ErrFileEmptyUpload:   {ErrFileEmptyUpload, http.StatusBadRequest, "No files uploaded"},

	// Folder errors
	ErrFolderNotFound:      {ErrFolderNotFound, http.StatusNotFound, "Folder does not exist"},
	ErrFolderAlreadyExists: {ErrFolderAlreadyExists, http.StatusConflict, "Folder already exists"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
