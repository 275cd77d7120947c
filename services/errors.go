package services

import "errors"

var (
	ErrPaperNotFound    = errors.New("paper not found")
	ErrAuthorNotFound   = errors.New("author not found")
	ErrTagNotFound      = errors.New("tag not found")
	ErrLinkNotFound     = errors.New("tag not attached to paper")
	ErrInvalidTagType   = errors.New("invalid tag type")
	ErrEmptyTagName     = errors.New("tag name must not be empty")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
)
