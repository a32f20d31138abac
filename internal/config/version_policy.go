package config

import (
	"slices"
	"strings"
)

// CurrentConfigVersion is the configVersion written by new extract configs.
const CurrentConfigVersion = "1"

// SupportedConfigVersions lists every configVersion ParseExtract accepts.
var SupportedConfigVersions = []string{CurrentConfigVersion}

// IsSupportedConfigVersion reports whether an extract config declaring v can
// be loaded.
func IsSupportedConfigVersion(v string) bool {
	return slices.Contains(SupportedConfigVersions, v)
}

// SupportedConfigVersionsCSV formats SupportedConfigVersions for error
// messages.
func SupportedConfigVersionsCSV() string {
	return strings.Join(SupportedConfigVersions, ", ")
}
