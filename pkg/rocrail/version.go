package rocrail

import (
	"fmt"

	"github.com/gorocrail/gorocrail/pkg/condition"
	"github.com/gorocrail/gorocrail/pkg/conn"
	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
	"github.com/gorocrail/gorocrail/pkg/model"
	"github.com/gorocrail/gorocrail/pkg/sched"
)

// Version information for the rocrail module.
const (
	// Version is the current version of the rocrail module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the versions of all sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"rocrail":   Version,
		"frame":     frame.Version,
		"conn":      conn.Version,
		"model":     model.Version,
		"sched":     sched.Version,
		"condition": condition.Version,
		"log":       log.Version,
	}
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"frame":     {frame.Version, frame.MinCompatibleVersion},
		"conn":      {conn.Version, conn.MinCompatibleVersion},
		"model":     {model.Version, model.MinCompatibleVersion},
		"sched":     {sched.Version, sched.MinCompatibleVersion},
		"condition": {condition.Version, condition.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
