package registry

import (
	"fmt"
	"net/url"
	"strings"
)

// RawPackage is one version record as listed by a registry.
type RawPackage struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageType string `json:"package_type,omitempty"`
}

// PackageFile is one file attached to a package version.
type PackageFile struct {
	ID         int64  `json:"id"`
	PackageID  int64  `json:"package_id"`
	FileName   string `json:"file_name"`
	Size       int64  `json:"size"`
	FileSHA256 string `json:"file_sha256,omitempty"`
}

// Project is the subset of project metadata used to label a registry.
type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	NameWithNamespace string `json:"name_with_namespace"`
	WebURL            string `json:"web_url"`
}

// ArtifactRef addresses one downloadable file.
type ArtifactRef struct {
	Endpoint    string
	ExtensionID string
	Version     string
	FileName    string
}

// String identifies the artifact for logs and operation keys.
func (r ArtifactRef) String() string {
	return fmt.Sprintf("%s@%s/%s", r.ExtensionID, r.Version, r.FileName)
}

// StatusError reports a non-2xx registry response.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned HTTP %d", e.Op, redact(e.URL), e.StatusCode)
}

// ProjectURL strips the trailing package collection segment from an endpoint,
// yielding the project resource that carries the registry's display name.
func ProjectURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/packages")
	u.RawPath = ""
	return u.String(), nil
}

// ArtifactURL builds {endpoint}/generic/{extensionId}/{version}/{fileName}.
func ArtifactURL(ref ArtifactRef) (string, error) {
	return subresource(ref.Endpoint, "generic", ref.ExtensionID, ref.Version, ref.FileName)
}

// FilesURL builds {endpoint}/{packageId}/package_files.
func FilesURL(endpoint string, packageID int64) (string, error) {
	return subresource(endpoint, fmt.Sprint(packageID), "package_files")
}

func subresource(endpoint string, elems ...string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	for _, e := range elems {
		if e == "" || e == "." || e == ".." || strings.Contains(e, "/") {
			return "", fmt.Errorf("invalid path segment %q", e)
		}
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.JoinPath(elems...).String(), nil
}

// hostOf returns the breaker and metrics key for an endpoint.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	return u.String()
}
