package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=v1.2.3".
var Version = "dev"

type versionInfo struct {
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Go       string `json:"go"`
}

// buildVersion fills the VCS revision from the embedded build info when the
// binary was built from a checkout.
func buildVersion() versionInfo {
	v := versionInfo{Version: Version, Go: runtime.Version()}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				v.Revision = shortID(s.Value)
			}
		}
	}
	return v
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := buildVersion()
			if isJSON() {
				return printJSON(v)
			}
			if v.Revision != "" {
				fmt.Printf("jh %s (%s, %s)\n", v.Version, v.Revision, v.Go)
				return nil
			}
			fmt.Printf("jh %s (%s)\n", v.Version, v.Go)
			return nil
		},
	}
}
