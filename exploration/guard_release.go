//go:build !debug

package exploration

const failFast = false
