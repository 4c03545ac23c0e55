package internal

import "errors"

var ErrSlugExists = errors.New("slug already exists")
var ErrLinkNotFound = errors.New("link not found")
var ErrBioPageNotFound = errors.New("bio page not found")
var ErrDomainNotFound = errors.New("domain not found")

// ErrConflict is returned when a write violates a uniqueness constraint
// other than the link slug.
var ErrConflict = errors.New("resource already exists")

// ErrNotFound is returned for child records (targets, rules, bio links).
var ErrNotFound = errors.New("resource not found")
