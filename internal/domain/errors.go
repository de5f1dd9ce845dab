package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyContent = errors.New("story content is required")
	ErrEmptyTarget  = errors.New("target id is required")
)
