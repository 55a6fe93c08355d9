// SPDX-License-Identifier: MPL-2.0

package fedfile

import (
	"fmt"
	"strings"
)

// GenerateCUE renders a Fedfile back to CUE source. Used by `fedkit init`
// to scaffold new fedfiles; output parses cleanly through ParseBytes.
func GenerateCUE(f *Fedfile) string {
	var sb strings.Builder

	sb.WriteString("// fedkit federation file\n")
	sb.WriteString("// Run 'fedkit validate' after editing.\n\n")

	fmt.Fprintf(&sb, "name: %q\n", f.Name)
	fmt.Fprintf(&sb, "role: %q\n", f.Role)

	if len(f.Exposes) > 0 {
		sb.WriteString("\nexposes: [\n")
		for _, exp := range f.Exposes {
			fmt.Fprintf(&sb, "\t{name: %q, path: %q},\n", exp.Name, exp.Path)
		}
		sb.WriteString("]\n")
	}

	if len(f.Remotes) > 0 {
		sb.WriteString("\nremotes: [\n")
		for _, ref := range f.Remotes {
			fmt.Fprintf(&sb, "\t{name: %q, url: %q},\n", ref.Name, ref.URL)
		}
		sb.WriteString("]\n")
	}

	if len(f.Shared) > 0 {
		sb.WriteString("\nshared: [\n")
		for _, dep := range f.Shared {
			sb.WriteString("\t{")
			fmt.Fprintf(&sb, "name: %q", dep.Name)
			if dep.Requirement != "" {
				fmt.Fprintf(&sb, ", requirement: %q", dep.Requirement)
			}
			if dep.Version != "" {
				fmt.Fprintf(&sb, ", version: %q", dep.Version)
			}
			fmt.Fprintf(&sb, ", singleton: %v", dep.Singleton)
			if dep.StrictVersion {
				sb.WriteString(", strict_version: true")
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nserve: {\n")
	if f.Serve.Port != 0 {
		fmt.Fprintf(&sb, "\tport: %d\n", f.Serve.Port)
	}
	if f.Serve.DistDir != "" {
		fmt.Fprintf(&sb, "\tdist_dir: %q\n", f.Serve.DistDir)
	}
	fmt.Fprintf(&sb, "\twatch: %v\n", f.Serve.Watch)
	if len(f.Serve.WatchPatterns) > 0 {
		sb.WriteString("\twatch_patterns: [")
		for i, pat := range f.Serve.WatchPatterns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", pat)
		}
		sb.WriteString("]\n")
	}
	sb.WriteString("}\n")

	if f.Build.Script != "" {
		sb.WriteString("\nbuild: {\n")
		fmt.Fprintf(&sb, "\tscript: %q\n", f.Build.Script)
		sb.WriteString("}\n")
	}

	return sb.String()
}
