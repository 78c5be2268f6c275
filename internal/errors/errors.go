// Package errors provides centralized error definitions and error handling utilities
// for arbiter. It defines domain-specific errors, semantic error types, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - BehaviorError: a behavior failed while being evaluated in a tick
//   - TreeError: a behavior tree could not be built or queried
//   - FSMError: a state machine definition is malformed
//   - ActuationError: an actuation module refused or failed a command
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewTreeError("cannot add behavior", errors.ErrDuplicateBehavior).
//		WithBehaviorID("lookAround")
//
//	if errors.Is(err, errors.ErrDuplicateBehavior) { ... }
//
//	var behaviorErr *errors.BehaviorError
//	if errors.As(err, &behaviorErr) { ... }
//
// Faults raised while a tick is evaluated never escape the tree; they are
// logged and converted to events. The types in this package exist so that
// build-time failures and diagnostics carry structured context.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Tree-related sentinel errors
var (
	// ErrDuplicateBehavior indicates a behavior id was registered twice.
	ErrDuplicateBehavior = New("duplicate behavior id")
	// ErrBehaviorNotFound indicates a behavior id is not registered.
	ErrBehaviorNotFound = New("behavior not found")
	// ErrNoRoot indicates the tree has no root behavior.
	ErrNoRoot = New("tree has no root behavior")
	// ErrRootAlreadySet indicates a second behavior was marked as root.
	ErrRootAlreadySet = New("tree root already set")
	// ErrExpansionTooDeep indicates runaway recursion while expanding children.
	ErrExpansionTooDeep = New("behavior expansion exceeded maximum depth")
	// ErrBehaviorPanicked indicates a behavior panicked during evaluation.
	ErrBehaviorPanicked = New("behavior panicked")
)

// FSM-related sentinel errors
var (
	// ErrNoStartState indicates a state machine has no start state.
	ErrNoStartState = New("state machine has no start state")
	// ErrMultipleStartStates indicates more than one state was marked as start.
	ErrMultipleStartStates = New("state machine has more than one start state")
	// ErrUnknownState indicates a transition references an unknown state.
	ErrUnknownState = New("unknown state")
	// ErrNoCondition indicates a transition was declared without a condition.
	ErrNoCondition = New("transition has no condition")
)

// Actuation-related sentinel errors
var (
	// ErrActuationRejected indicates an actuation module declined a start request.
	ErrActuationRejected = New("actuation request rejected")
	// ErrUnknownScript indicates a script name the player does not know.
	ErrUnknownScript = New("unknown script")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrUnknownKind indicates a behavior kind that has no constructor.
	ErrUnknownKind = New("unknown behavior kind")
	// ErrBadExpression indicates a condition expression that does not compile.
	ErrBadExpression = New("bad condition expression")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ArbiterError is the base interface for all arbiter errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type ArbiterError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the same operation may succeed on a later tick.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to print on the CLI.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefixed renders "<kind> [k=v, ...]: message: cause".
func formatPrefixed(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// BehaviorError represents a fault raised by a single behavior during a tick.
//
// Example:
//
//	err := errors.NewBehaviorError("run policy failed", cause).
//		WithBehaviorID("lookAtBall").WithTick(42)
//	fmt.Println(err) // "behavior error [behavior=lookAtBall, tick=42]: run policy failed: ..."
type BehaviorError struct {
	baseError
	BehaviorID string
	Tick       uint64
}

// NewBehaviorError creates a new BehaviorError. Severity and retryability
// are taken from cause when it carries them.
func NewBehaviorError(message string, cause error) *BehaviorError {
	e := &BehaviorError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
	var inner ArbiterError
	if As(cause, &inner) {
		e.severity = inner.Severity()
		e.retryable = inner.IsRetryable()
	}
	return e
}

// WithBehaviorID adds the behavior id to the error context.
func (e *BehaviorError) WithBehaviorID(id string) *BehaviorError {
	e.BehaviorID = id
	return e
}

// WithTick adds the tick number to the error context.
func (e *BehaviorError) WithTick(tick uint64) *BehaviorError {
	e.Tick = tick
	return e
}

// WithSeverity sets the error severity.
func (e *BehaviorError) WithSeverity(s Severity) *BehaviorError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *BehaviorError) Error() string {
	var parts []string
	if e.BehaviorID != "" {
		parts = append(parts, fmt.Sprintf("behavior=%s", e.BehaviorID))
	}
	if e.Tick > 0 {
		parts = append(parts, fmt.Sprintf("tick=%d", e.Tick))
	}
	return formatPrefixed("behavior error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *BehaviorError) Is(target error) bool {
	if _, ok := target.(*BehaviorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TreeError represents errors building or querying a behavior tree.
//
// Example:
//
//	err := errors.NewTreeError("cannot add behavior", errors.ErrDuplicateBehavior).
//		WithBehaviorID("win")
type TreeError struct {
	baseError
	BehaviorID string
}

// NewTreeError creates a new TreeError.
func NewTreeError(message string, cause error) *TreeError {
	return &TreeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBehaviorID adds the behavior id to the error context.
func (e *TreeError) WithBehaviorID(id string) *TreeError {
	e.BehaviorID = id
	return e
}

// Error returns the formatted error message.
func (e *TreeError) Error() string {
	var parts []string
	if e.BehaviorID != "" {
		parts = append(parts, fmt.Sprintf("behavior=%s", e.BehaviorID))
	}
	return formatPrefixed("tree error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *TreeError) Is(target error) bool {
	if _, ok := target.(*TreeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// FSMError represents a malformed state machine definition.
//
// Example:
//
//	err := errors.NewFSMError("transition target missing", errors.ErrUnknownState).
//		WithFSM("win").WithState("paused")
type FSMError struct {
	baseError
	FSM   string
	State string
}

// NewFSMError creates a new FSMError.
func NewFSMError(message string, cause error) *FSMError {
	return &FSMError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithFSM adds the state machine id to the error context.
func (e *FSMError) WithFSM(id string) *FSMError {
	e.FSM = id
	return e
}

// WithState adds a state name to the error context.
func (e *FSMError) WithState(name string) *FSMError {
	e.State = name
	return e
}

// Error returns the formatted error message.
func (e *FSMError) Error() string {
	var parts []string
	if e.FSM != "" {
		parts = append(parts, fmt.Sprintf("fsm=%s", e.FSM))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return formatPrefixed("fsm error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *FSMError) Is(target error) bool {
	if _, ok := target.(*FSMError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ActuationError represents a command an actuation module did not accept.
// Rejections are retryable: the issuing leaf tries again on its next tick.
//
// Example:
//
//	err := errors.NewActuationError("start refused", errors.ErrActuationRejected).
//		WithModule("script").WithCommand("stand up")
type ActuationError struct {
	baseError
	Module  string
	Command string
}

// NewActuationError creates a new ActuationError.
func NewActuationError(message string, cause error) *ActuationError {
	return &ActuationError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithModule adds the actuation module name to the error context.
func (e *ActuationError) WithModule(module string) *ActuationError {
	e.Module = module
	return e
}

// WithCommand adds the rejected command to the error context.
func (e *ActuationError) WithCommand(command string) *ActuationError {
	e.Command = command
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ActuationError) WithRetryable(r bool) *ActuationError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ActuationError) Error() string {
	var parts []string
	if e.Module != "" {
		parts = append(parts, fmt.Sprintf("module=%s", e.Module))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.Command))
	}
	return formatPrefixed("actuation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ActuationError) Is(target error) bool {
	if _, ok := target.(*ActuationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("behavior", "lookAround")
//	fmt.Println(err) // "behavior 'lookAround' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("duration must be positive").
//		WithField("horiz_duration").WithValue(-1.0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a condition that may clear
// on a later tick, such as an actuation module that is still busy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var arbiterErr ArbiterError
	if As(err, &arbiterErr) {
		return arbiterErr.IsRetryable()
	}

	return Is(err, ErrActuationRejected)
}

// IsUserFacing returns true if the error message is safe to print on the CLI.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var arbiterErr ArbiterError
	if As(err, &arbiterErr) {
		return arbiterErr.IsUserFacing()
	}

	return IsSemanticError(err)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ArbiterError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var arbiterErr ArbiterError
	if As(err, &arbiterErr) {
		return arbiterErr.Severity()
	}

	return SeverityError
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError or ValidationError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError

	return As(err, &notFound) || As(err, &alreadyExists) || As(err, &validation)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// FromPanic converts a recovered panic value into an error that matches
// ErrBehaviorPanicked.
func FromPanic(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrBehaviorPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrBehaviorPanicked, r)
}
