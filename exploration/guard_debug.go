//go:build debug

package exploration

const failFast = true
