package leaveerrors

import (
	"net/http"

	"go-leavedesk/internal/shared/apperror"
)

var (
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"start_date must be before or equal end_date",
		http.StatusBadRequest,
	)
	ErrLeaveOverlap = apperror.New(
		apperror.CodeConflict,
		"leave already exists in overlapping period",
		http.StatusConflict,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeUnprocessable,
		"insufficient paid leave balance",
		http.StatusUnprocessableEntity,
	)
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave not found",
		http.StatusNotFound,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrInvalidStatusTransition = apperror.New(
		apperror.CodeInvalidState,
		"invalid leave status transition",
		http.StatusBadRequest,
	)
	ErrNotCurrentManager = apperror.New(
		apperror.CodeInvalidState,
		"only the current manager can act on this leave request",
		http.StatusForbidden,
	)
	ErrNotLeaveOwner = apperror.New(
		apperror.CodeInvalidState,
		"only the requesting employee can modify this leave request",
		http.StatusForbidden,
	)
	ErrLeaveAlreadyStarted = apperror.New(
		apperror.CodeInvalidState,
		"leave that has already started cannot be changed",
		http.StatusBadRequest,
	)
)
