package service

import "errors"

// ErrNoResultStore is returned by result lookups when no store is configured
var ErrNoResultStore = errors.New("no result store configured")
