package secret

import "errors"

// ErrEmptySecret is returned by EnsureLoaded when its fetch function
// succeeds but yields an empty secret: the empty result is never cached.
var ErrEmptySecret = errors.New("secret: observer returned an empty slice secret")
