//go:build !memcore_debug

package profile

const Debug = false

var defaults = Settings{}
