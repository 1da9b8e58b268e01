package domain

import "errors"

var (
	ErrArchiveOpen         = errors.New("cannot open archive")
	ErrArchiveEntryMissing = errors.New("archive entry missing")
	ErrMalformedProfile    = errors.New("malformed profile")
	ErrMalformedPost       = errors.New("malformed post")
	ErrMalformedAttachment = errors.New("malformed attachment")
	ErrOutputWrite         = errors.New("output write failed")
	ErrRender              = errors.New("render failed")
	ErrNotification        = errors.New("notification failed")
)
