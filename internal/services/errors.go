// Package services defines the business logic for notifications, delivery
// settings and templates. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Notification-related errors.
var (
	// ErrNotificationNotFound indicates that the requested notification does
	// not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrEmptyIDs is returned when a mark-read request carries no ids.
	ErrEmptyIDs = errors.New("notification ids are empty")

	// ErrWrongOwner is returned when a member addresses a notification that
	// belongs to someone else.
	ErrWrongOwner = errors.New("notification belongs to another member")
)

// Settings and template errors.
var (
	// ErrInvalidCategory is returned for a category outside the closed set.
	ErrInvalidCategory = errors.New("invalid notification type")

	// ErrInvalidStatus is returned for a status filter other than UNREAD or READ.
	ErrInvalidStatus = errors.New("invalid notification status")

	// ErrInvalidTemplate is returned when a template is missing a title or
	// body, or lacks a placeholder its category requires.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrTemplateNotFound indicates that the requested template does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateExists is returned when creating a second template for a
	// category that already has one.
	ErrTemplateExists = errors.New("template already exists for this type")
)
