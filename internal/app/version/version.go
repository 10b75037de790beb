package version

import "fmt"

// Overridden at build time via -ldflags "-X .../version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

type Info struct {
	BuildVersion string `json:"buildVersion"`
	BuiltAt      string `json:"builtAt"`
}

func Get() Info {
	return Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("ipsearch %s (built %s)", i.BuildVersion, i.BuiltAt)
}
