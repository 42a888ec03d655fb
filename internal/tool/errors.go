package tool

import "errors"

// Rejection and gating errors surfaced by the invocation gateway. Each maps
// to a specific user-facing message at the API boundary.
var (
	// ErrUnknownTool: no definition exists for the requested name.
	ErrUnknownTool = errors.New("function definition not found")

	// ErrToolDisabled: the definition exists but its enabled flag is off.
	ErrToolDisabled = errors.New("function is currently disabled")

	// ErrPermissionDenied: the caller lacks the definition's required role.
	ErrPermissionDenied = errors.New("permission denied for function")

	// ErrConfirmationRequired: the definition requires an explicit user
	// confirmation; execution does not proceed in the same pass.
	ErrConfirmationRequired = errors.New("function requires user confirmation before execution")

	// ErrNoImplementation: definition exists but carries neither a native
	// handler nor a legacy script.
	ErrNoImplementation = errors.New("function has no implementation defined")
)
