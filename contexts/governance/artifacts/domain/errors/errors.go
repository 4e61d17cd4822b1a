package errors

import "errors"

var ErrArtifactNotFound = errors.New("artifact not found")
