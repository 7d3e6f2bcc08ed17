// Package transfer implements bulk person-record import and export between
// the registry and blob storage, as CSV keyed by storage URIs.
package transfer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"linkreview/internal/blob"
)

// s3 bucket names: lowercase alphanumerics, dots, and hyphens.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// ParseStorageURI resolves a storage URI to a blob key within the configured
// driver. The scheme must agree with the driver: s3:// for s3, file:// for
// fs, mem:// for memory. A bare path (no scheme) is accepted for any driver.
func ParseStorageURI(raw string, driver blob.Driver) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("empty storage uri")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse storage uri: %w", err)
	}
	switch u.Scheme {
	case "":
		key := strings.TrimPrefix(raw, "/")
		if key == "" {
			return "", fmt.Errorf("storage uri %q has no key", raw)
		}
		return key, nil
	case "s3":
		if driver != blob.DriverS3 {
			return "", fmt.Errorf("storage uri %q requires the s3 driver, configured driver is %q", raw, driver)
		}
		if u.Host == "" || !bucketNamePattern.MatchString(u.Host) {
			return "", fmt.Errorf("storage uri %q has invalid bucket name %q", raw, u.Host)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return "", fmt.Errorf("storage uri %q has no object key", raw)
		}
		return key, nil
	case "file":
		if driver != blob.DriverFilesystem {
			return "", fmt.Errorf("storage uri %q requires the fs driver, configured driver is %q", raw, driver)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return "", fmt.Errorf("storage uri %q has no path", raw)
		}
		return key, nil
	case "mem":
		if driver != blob.DriverMemory {
			return "", fmt.Errorf("storage uri %q requires the memory driver, configured driver is %q", raw, driver)
		}
		key := strings.TrimPrefix(u.Host+u.Path, "/")
		if key == "" {
			return "", fmt.Errorf("storage uri %q has no key", raw)
		}
		return key, nil
	default:
		return "", fmt.Errorf("unsupported storage uri scheme %q", u.Scheme)
	}
}
