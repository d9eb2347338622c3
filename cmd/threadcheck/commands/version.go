package commands

import (
	"github.com/spf13/cobra"

	"github.com/kolkov/threading/threading"
)

func GetVersionString() string {
	return threading.Version
}

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version of the threadcheck CLI",
		Run: func(cc *cobra.Command, _ []string) {
			info := threading.GetInfo()

			cc.Printf("threadcheck version %s\n", info.Version)
			cc.Printf("  source version:     %d\n", threading.SourceVersion())
			cc.Printf("  identity:           %s\n", info.Identity)
			cc.Printf("  deadlock detection: %s\n", enabled(info.DeadlockDetection))
		},
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}

	return "disabled (build with -tags=deadlock)"
}
