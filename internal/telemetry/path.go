// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"strings"

	"github.com/jeranaias/fcrouter/internal/router"
)

// Path is a low-cardinality name for the route a result took.
type Path string

const (
	PathOnDevice      Path = "on_device"
	PathOnDeviceRetry Path = "on_device_retry"
	PathCloudDirect   Path = "cloud_preflight"
	PathCloudFallback Path = "cloud_fallback"
	PathUnknown       Path = "unknown"
)

// Paths lists every known path in escalation order.
var Paths = []Path{PathOnDevice, PathOnDeviceRetry, PathCloudDirect, PathCloudFallback}

// PathOf maps a result source tag to its Path. The preflight tag embeds the
// score, so it is matched by prefix.
func PathOf(source string) Path {
	switch {
	case source == router.SourceOnDevice:
		return PathOnDevice
	case source == router.SourceOnDeviceRetry:
		return PathOnDeviceRetry
	case source == router.SourceCloudFallback:
		return PathCloudFallback
	case strings.HasPrefix(source, "cloud (preflight"):
		return PathCloudDirect
	default:
		return PathUnknown
	}
}

// Local reports whether the path ended on the on-device model.
func (p Path) Local() bool {
	return p == PathOnDevice || p == PathOnDeviceRetry
}
