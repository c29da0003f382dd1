package domain

import "errors"

// ErrNotFitted is returned by any predict/transform call made before Fit.
var ErrNotFitted = errors.New("model is not fitted - call Fit first")

// Model is the capability contract shared by the trained artifacts (the
// boosted classifier and the clusterer). Fit and Predict signatures differ per
// concrete type, so only the shared surface lives here; conformance is by
// contract, not inheritance.
type Model interface {
	IsFitted() bool
	Save(path string) error
	Load(path string) error
}
