// Package errors provides the standardized error shape that crosses the
// plugin-runtime boundary back to host-application code.
//
// Most runtime failures (rate limit, missing permission, unknown dispatch
// method) recover locally and never become an AppError — they return a
// neutral zero value and log a warning. AppError is reserved for the
// genuinely exceptional cases: manifest rejection, load failures (duplicate
// name, artifact fetch, module load, handoff timeout) and cross-plugin
// denial.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is a machine-readable error with an HTTP-shaped status for the
// devtools inspector and any other boundary surface.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON shape returned to a boundary caller.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes used across manifest validation, loading and cross-plugin gating.
const (
	ErrCodeManifestMissingField   = "MANIFEST_MISSING_FIELD"
	ErrCodeManifestInvalidType    = "MANIFEST_INVALID_TYPE"
	ErrCodeManifestUnknownPerm    = "MANIFEST_UNKNOWN_PERMISSION"
	ErrCodeManifestUnknownCat     = "MANIFEST_UNKNOWN_CATEGORY"
	ErrCodeManifestBadCrossPlugin = "MANIFEST_BAD_CROSS_PLUGIN_ACCESS"

	ErrCodePluginAlreadyLoaded = "PLUGIN_ALREADY_LOADED"
	ErrCodePluginNotFound      = "PLUGIN_NOT_FOUND"
	ErrCodeArtifactFetchFailed = "ARTIFACT_FETCH_FAILED"
	ErrCodeModuleLoadFailed    = "MODULE_LOAD_FAILED"
	ErrCodeHandoffTimeout      = "HANDOFF_TIMEOUT"

	ErrCodeCrossPluginDenied = "CROSS_PLUGIN_ACCESS_DENIED"

	ErrCodeInternal = "INTERNAL_ERROR"
)

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusForCode(code)}
}

// NewWithDetails creates a new AppError carrying debugging detail.
func NewWithDetails(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details, StatusCode: statusForCode(code)}
}

// Wrap wraps an existing error with an AppError code and message.
func Wrap(code, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewWithDetails(code, message, details)
}

func statusForCode(code string) int {
	switch code {
	case ErrCodeManifestMissingField, ErrCodeManifestInvalidType, ErrCodeManifestUnknownPerm,
		ErrCodeManifestUnknownCat, ErrCodeManifestBadCrossPlugin:
		return http.StatusBadRequest
	case ErrCodePluginAlreadyLoaded:
		return http.StatusConflict
	case ErrCodePluginNotFound:
		return http.StatusNotFound
	case ErrCodeCrossPluginDenied:
		return http.StatusForbidden
	case ErrCodeArtifactFetchFailed, ErrCodeModuleLoadFailed, ErrCodeHandoffTimeout, ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse converts an AppError to its wire shape.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Code: e.Code, Details: e.Details}
}

// Common constructors.

func ManifestMissingField(field string) *AppError {
	return New(ErrCodeManifestMissingField, fmt.Sprintf("manifest is missing required field %q", field))
}

func ManifestInvalidType(field string) *AppError {
	return New(ErrCodeManifestInvalidType, fmt.Sprintf("manifest field %q has the wrong type", field))
}

func ManifestUnknownPermission(tag string) *AppError {
	return New(ErrCodeManifestUnknownPerm, fmt.Sprintf("unknown permission tag %q", tag))
}

func ManifestUnknownCategory(category string) *AppError {
	return New(ErrCodeManifestUnknownCat, fmt.Sprintf("unknown category %q", category))
}

func ManifestBadCrossPluginAccess(target, method string) *AppError {
	return New(ErrCodeManifestBadCrossPlugin, fmt.Sprintf("cross_plugin_access entry for %q references unknown method %q", target, method))
}

func PluginAlreadyLoaded(name string) *AppError {
	return New(ErrCodePluginAlreadyLoaded, fmt.Sprintf("plugin %q is already loaded", name))
}

func PluginNotFound(name string) *AppError {
	return New(ErrCodePluginNotFound, fmt.Sprintf("plugin %q not found", name))
}

func ArtifactFetchFailed(err error) *AppError {
	return Wrap(ErrCodeArtifactFetchFailed, "failed to fetch plugin entry artifact", err)
}

func ModuleLoadFailed(err error) *AppError {
	return Wrap(ErrCodeModuleLoadFailed, "failed to load plugin module", err)
}

func HandoffTimeout(name string) *AppError {
	return New(ErrCodeHandoffTimeout, fmt.Sprintf("plugin %q did not register an instance before the handoff deadline", name))
}

// CrossPluginDenied builds the actionable denial error required by C10: the
// message names the exact manifest fragment the caller's author must add.
func CrossPluginDenied(caller, target, method string) *AppError {
	snippet := fmt.Sprintf(`cross_plugin_access: [{target: %q, methods: [%q]}]`, target, method)
	return New(ErrCodeCrossPluginDenied, fmt.Sprintf(
		"plugin %q may not invoke %q on %q; add to its manifest: %s", caller, method, target, snippet))
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}
