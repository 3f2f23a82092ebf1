// Package all registers every shell command provider.
package all

import (
	_ "github.com/rollpad/rollpad.go/pkg/cli/cmds/buttons"
	_ "github.com/rollpad/rollpad.go/pkg/cli/cmds/peer"
)
