package services

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	// ErrUpload means the blob store rejected the attachment. The message is
	// left failed and the client may retry the upload.
	ErrUpload            = errors.New("upload failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)
