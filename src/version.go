package jt9decode

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/madpsy/jt9-decode/src.JT9DECODE_VERSION=X'"`
var JT9DECODE_VERSION string

type buildDetails struct {
	version   string
	revision  string
	built     string
	goVersion string
	modules   []string // path@version of everything linked in.
}

func getBuildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}

	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// describeBuild pulls what we want to show out of the build info, which
// is nil when the binary was built without module support.
func describeBuild(bi *debug.BuildInfo) buildDetails {
	var d = buildDetails{ //nolint:exhaustruct
		version:   JT9DECODE_VERSION,
		revision:  getBuildSettingOrDefault(bi, "vcs.revision", "UNKNOWN"),
		built:     getBuildSettingOrDefault(bi, "vcs.time", "UNKNOWN"),
		goVersion: "UNKNOWN",
	}

	if d.version == "" {
		d.version = "!UNKNOWN!"
		if bi != nil && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			d.version = bi.Main.Version
		}
	}

	var dirty, dirtyErr = strconv.ParseBool(getBuildSettingOrDefault(bi, "vcs.modified", "INVALID"))
	if dirty {
		d.revision += "-DIRTY"
	} else if dirtyErr != nil {
		d.revision += "-UNKNOWNDIRTY"
	}

	if bi != nil {
		d.goVersion = bi.GoVersion
		for _, dep := range bi.Deps {
			d.modules = append(d.modules, dep.Path+"@"+dep.Version)
		}
	}

	return d
}

// printVersion for --version.  verbose adds the toolchain and the modules
// built in, for bug reports.
func printVersion(w io.Writer, verbose bool) {
	var bi, _ = debug.ReadBuildInfo()
	var d = describeBuild(bi)

	fmt.Fprintf(w, "jt9decode - Version %s (revision %s, built at %s)\n", d.version, d.revision, d.built)

	if !verbose {
		return
	}

	fmt.Fprintf(w, "Go %s\n", d.goVersion)
	for _, m := range d.modules {
		fmt.Fprintf(w, "  %s\n", m)
	}
}
