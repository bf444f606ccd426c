// internal/sxml/errors.go
package sxml

import "errors"

// ErrMalformedMetadata marks metadata markup that is not tree-parseable and
// could not be healed by any known repair. Callers must leave the original
// content untouched when they see it.
var ErrMalformedMetadata = errors.New("schema metadata markup is malformed")
