/*
Copyright The AutoCrane Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package types contains the data model shared by every AutoCrane
// component: pod identity, the data-repository manifest, per-pod download
// requests and the annotations used to transport them.
package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// RequestAnnotationPrefix is prepended to the repository name to build the
// annotation key a pod's download request is stored under.
const RequestAnnotationPrefix = "data.autocrane/req-"

// RequestAnnotationKey builds the annotation key used to store the download
// request for the given repository.
func RequestAnnotationKey(repo string) string {
	return RequestAnnotationPrefix + repo
}

// RepoFromRequestAnnotationKey extracts the repository name from an
// annotation key built by RequestAnnotationKey, or returns ok=false if the
// key does not carry the AutoCrane request prefix.
func RepoFromRequestAnnotationKey(key string) (string, bool) {
	if !strings.HasPrefix(key, RequestAnnotationPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, RequestAnnotationPrefix), true
}

// PodIdentifier identifies a pod by namespace and name. It is a value type:
// two identifiers are equal when both fields match.
type PodIdentifier struct {
	Namespace string
	Name      string
}

// String renders the identifier as "namespace/name", mainly for logging.
func (p PodIdentifier) String() string {
	return p.Namespace + "/" + p.Name
}

// Empty reports whether the identifier carries no namespace or name.
func (p PodIdentifier) Empty() bool {
	return p.Namespace == "" || p.Name == ""
}

// DataDownloadRequestDetails is the payload transported, base64-encoded
// JSON, in a pod's per-repository request annotation.
type DataDownloadRequestDetails struct {
	Hash                 string `json:"hash"`
	Path                 string `json:"path"`
	UnixTimestampSeconds int64  `json:"unixTimestampSeconds"`
}

// EncodeRequestDetails renders the details as the base64(JSON) form stored
// in annotation values.
func EncodeRequestDetails(d DataDownloadRequestDetails) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding download request details: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeRequestDetails parses the base64(JSON) annotation value produced by
// EncodeRequestDetails. A malformed value yields ok=false rather than an
// error: callers treat it as an absent request, per AutoCrane's
// parse/validation error-handling policy.
func DecodeRequestDetails(encoded string) (DataDownloadRequestDetails, bool) {
	var details DataDownloadRequestDetails
	if encoded == "" {
		return details, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return details, false
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return details, false
	}
	if details.Hash == "" {
		return details, false
	}
	return details, true
}

// PodDataRequestInfo is the state AutoCrane reads back from a pod: which
// repositories it wants (dataSources) and what it last asked for
// (requests), keyed by repository name.
type PodDataRequestInfo struct {
	ID          PodIdentifier
	DropFolder  string
	DataSources []string
	Requests    map[string]string // repo -> encoded DataDownloadRequestDetails
}

// IsDataConsumer reports whether this pod consumes data this cycle.
func (p PodDataRequestInfo) IsDataConsumer() bool {
	return p.DropFolder != ""
}

// RequestFor decodes the pod's current request for repo, if any.
func (p PodDataRequestInfo) RequestFor(repo string) (DataDownloadRequestDetails, bool) {
	encoded, ok := p.Requests[repo]
	if !ok {
		return DataDownloadRequestDetails{}, false
	}
	return DecodeRequestDetails(encoded)
}

// ManifestEntry is a single published version of a data repository.
type ManifestEntry struct {
	Version   string
	Timestamp int64
}

// DataRepositoryManifest maps a repository name to its ordered (oldest
// first) list of published versions.
type DataRepositoryManifest map[string][]ManifestEntry

// Newest returns the most recently published entry for repo, if known.
func (m DataRepositoryManifest) Newest(repo string) (ManifestEntry, bool) {
	entries := m[repo]
	if len(entries) == 0 {
		return ManifestEntry{}, false
	}
	return entries[len(entries)-1], true
}

// Oldest returns the first published entry for repo, if known.
func (m DataRepositoryManifest) Oldest(repo string) (ManifestEntry, bool) {
	entries := m[repo]
	if len(entries) == 0 {
		return ManifestEntry{}, false
	}
	return entries[0], true
}

// HasVersion reports whether repo has version among its published entries.
func (m DataRepositoryManifest) HasVersion(repo, version string) bool {
	for _, entry := range m[repo] {
		if entry.Version == version {
			return true
		}
	}
	return false
}

// RepoPath returns the canonical download path for a repository. It is a
// fixed naming convention, not a manifest lookup: the manifest's entries
// carry only version and timestamp (see DataRepositoryManifest), never a
// path.
func RepoPath(repo string) string {
	return path.Join("/", repo)
}

// VersionSet is a namespace-scoped repo -> version mapping, used for both
// the known-good set and the latest-version pointer.
type VersionSet map[string]string

// Clone returns a shallow copy of the version set.
func (v VersionSet) Clone() VersionSet {
	out := make(VersionSet, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// DataDownloadRequest is the request handed to the (external) download
// agent: where to fetch a repository's blob and where to extract it.
type DataDownloadRequest struct {
	Pod                PodIdentifier
	Repo               string
	DropFolder         string
	ExtractionLocation string
	Details            *DataDownloadRequestDetails
}

// PathSeparatorReplacement is substituted for the platform path separator
// when building an extraction location from a request's path, so the
// result is a single filesystem-safe path component.
const PathSeparatorReplacement = "_"

// Sanitize replaces path separators in p with PathSeparatorReplacement so
// the result is safe to use as a single path component.
func Sanitize(p string) string {
	p = strings.ReplaceAll(p, string(filepath.Separator), PathSeparatorReplacement)
	p = strings.ReplaceAll(p, "/", PathSeparatorReplacement)
	return p
}
