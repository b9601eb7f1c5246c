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

// Package oracle implements the upgrade oracle: the pure decision function
// that, given a namespace's known-good set, latest-version pointer and the
// pods' currently annotated requests, decides which version (if any) each
// pod should be pointed at next.
package oracle

import (
	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
)

// RolloutFraction bounds, for a given (namespace, repo), the fraction of
// pods the oracle is willing to have sitting at the latest version at once:
// at most ceil(N/3) of N candidate pods. The exact fraction is an
// implementation choice the distilled specification explicitly leaves
// open; one third, rounded up, is AutoCrane's fixed policy.
const RolloutFraction = 3

// Oracle is built fresh every iteration from the namespace's known-good
// set, latest-version pointer and the pods' currently annotated requests.
// It performs no I/O and holds no state beyond the decisions it computed
// at construction time, so repeated calls to GetDataRequest are pure and
// idempotent - the defining property the control loop relies on.
type Oracle struct {
	decisions map[types.PodIdentifier]map[string]*types.DataDownloadRequestDetails
}

// New builds an oracle from the three mappings the control loop reads
// every iteration. requests is walked in order, the same order the caller
// intends to walk it when applying decisions, because the rollout gate for
// a (namespace, repo) counts upgrades already observed plus upgrades
// proposed earlier in that same walk.
func New(knownGood, latest types.VersionSet, requests []types.PodDataRequestInfo) *Oracle {
	o := &Oracle{
		decisions: make(map[types.PodIdentifier]map[string]*types.DataDownloadRequestDetails, len(requests)),
	}

	candidates := countCandidates(requests)
	alreadyAtLatest := countAtLatest(requests, latest)
	emitted := make(map[string]int, len(latest))

	for _, pod := range requests {
		perRepo := make(map[string]*types.DataDownloadRequestDetails, len(pod.DataSources))
		for _, repo := range pod.DataSources {
			kg, kgOK := knownGood[repo]
			lt, ltOK := latest[repo]

			decision := decideOne(pod, repo, kg, kgOK, lt, ltOK, func() bool {
				cap := rolloutCap(candidates[repo])
				if alreadyAtLatest[repo]+emitted[repo] >= cap {
					return false
				}
				emitted[repo]++
				return true
			})
			perRepo[repo] = decision
		}
		o.decisions[pod.ID] = perRepo
	}

	return o
}

// GetDataRequest returns the decision computed at construction time for
// (pod, repo), or nil if the oracle has no opinion (nothing to propose, or
// the pod/repo pair was not part of the requests this oracle was built
// from).
func (o *Oracle) GetDataRequest(pod types.PodIdentifier, repo string) *types.DataDownloadRequestDetails {
	perRepo, ok := o.decisions[pod]
	if !ok {
		return nil
	}
	return perRepo[repo]
}

// decideOne implements the per-(pod, repo) decision policy. permitUpgrade is
// invoked, and only counted against the rollout gate, when the policy would
// otherwise begin an upgrade (case 4); it returns whether the upgrade may
// proceed.
func decideOne(
	pod types.PodDataRequestInfo,
	repo, kg string, kgOK bool,
	lt string, ltOK bool,
	permitUpgrade func() bool,
) *types.DataDownloadRequestDetails {
	// 1. Nothing known for this repo at all.
	if !kgOK && !ltOK {
		return nil
	}

	cur, curOK := pod.RequestFor(repo)

	// 2. No valid current request: propose known-good, falling back to latest.
	if !curOK {
		if kgOK {
			return propose(kg, repo)
		}
		return propose(lt, repo)
	}

	// 3. Already at the rollout target.
	if ltOK && cur.Hash == lt {
		return nil
	}

	// 4. At known-good, latest is ahead: begin upgrade, subject to the gate.
	if kgOK && cur.Hash == kg && ltOK && lt != kg {
		if permitUpgrade() {
			return propose(lt, repo)
		}
		return nil
	}

	// 5. Drifted to a version that is neither known-good nor latest: roll back.
	if kgOK && cur.Hash != kg {
		return propose(kg, repo)
	}

	return nil
}

func propose(version, repo string) *types.DataDownloadRequestDetails {
	return &types.DataDownloadRequestDetails{
		Hash: version,
		Path: types.RepoPath(repo),
	}
}

// countCandidates counts, per repo, the number of pods that list it among
// their data sources - the N in the ceil(N/3) rollout cap.
func countCandidates(requests []types.PodDataRequestInfo) map[string]int {
	counts := make(map[string]int)
	for _, pod := range requests {
		for _, repo := range pod.DataSources {
			counts[repo]++
		}
	}
	return counts
}

// countAtLatest counts, per repo, the number of pods whose current request
// already points at the latest version.
func countAtLatest(requests []types.PodDataRequestInfo, latest types.VersionSet) map[string]int {
	counts := make(map[string]int)
	for _, pod := range requests {
		for _, repo := range pod.DataSources {
			lt, ok := latest[repo]
			if !ok {
				continue
			}
			if cur, curOK := pod.RequestFor(repo); curOK && cur.Hash == lt {
				counts[repo]++
			}
		}
	}
	return counts
}

func rolloutCap(candidates int) int {
	if candidates <= 0 {
		return 0
	}
	return (candidates + RolloutFraction - 1) / RolloutFraction
}
