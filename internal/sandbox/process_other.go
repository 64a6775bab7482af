//go:build !unix

package sandbox

import "os/exec"

// setProcessGroup keeps exec.CommandContext's default Cancel, which kills only
// the direct child.
func setProcessGroup(cmd *exec.Cmd) {}
