//go:build !unix

package sandbox

import "os/exec"

// configureProcess keeps the default cancellation, which kills the direct
// child only.
func configureProcess(*exec.Cmd) {}
