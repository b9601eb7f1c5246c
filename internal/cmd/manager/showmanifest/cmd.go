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

// Package showmanifest implements the "manager show-manifest" diagnostics
// command: a CLI introspection surface standing in for the HTTP
// health endpoints spec.md explicitly places out of scope. It computes each
// namespace's known-good and latest sets through the same accessors the
// control loop uses, and those accessors persist what they compute, so the
// command is not read-only.
package showmanifest

import (
	"context"
	"fmt"

	"github.com/cheynewallace/tabby"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/timmydo/AutoCrane/internal/configuration"
	"github.com/timmydo/AutoCrane/pkg/autocrane/manifest"
	"github.com/timmydo/AutoCrane/pkg/autocrane/podrequests"
	"github.com/timmydo/AutoCrane/pkg/autocrane/types"
	"github.com/timmydo/AutoCrane/pkg/autocrane/versionstate"
	"github.com/timmydo/AutoCrane/pkg/autocrane/watchdog"
)

// NewCmd builds the show-manifest subcommand.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-manifest",
		Short: "Prints the manifest and per-namespace rollout state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := configuration.FromEnvironment()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return err
	}

	cl, err := client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}

	m, err := manifest.NewFetcher(cl, cfg.OperatorNamespace).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}

	printManifest(m)

	requests := podrequests.NewGetter(cl)
	knownGood := versionstate.NewKnownGoodAccessor(cl)
	latest := versionstate.NewLatestAccessor(cl)
	failing := watchdog.NewGetter(cl)

	for _, namespace := range cfg.Namespaces {
		if err := printNamespace(ctx, namespace, m, requests, knownGood, latest, failing); err != nil {
			return fmt.Errorf("namespace %s: %w", namespace, err)
		}
	}

	return nil
}

func printManifest(m types.DataRepositoryManifest) {
	fmt.Println("Manifest:")
	t := tabby.New()
	t.AddHeader("Repo", "Version", "Timestamp")
	for repo, entries := range m {
		for _, entry := range entries {
			t.AddLine(repo, entry.Version, entry.Timestamp)
		}
	}
	t.Print()
	fmt.Println()
}

func printNamespace(
	ctx context.Context,
	namespace string,
	m types.DataRepositoryManifest,
	requests *podrequests.Getter,
	knownGood *versionstate.KnownGoodAccessor,
	latest *versionstate.LatestAccessor,
	failing *watchdog.Getter,
) error {
	infos, err := requests.Get(ctx, namespace)
	if err != nil {
		return err
	}

	failingList, err := failing.Get(ctx, namespace)
	if err != nil {
		return err
	}
	failingSet := make(map[types.PodIdentifier]bool, len(failingList))
	for _, pod := range failingList {
		failingSet[pod] = true
	}

	kg, err := knownGood.GetOrUpdate(ctx, namespace, m, infos, failingSet)
	if err != nil {
		return err
	}

	lt, err := latest.GetOrUpdate(ctx, namespace, m)
	if err != nil {
		return err
	}

	fmt.Printf("Namespace %s:\n", namespace)
	versions := tabby.New()
	versions.AddHeader("Repo", "Known-Good", "Latest")
	for repo := range m {
		versions.AddLine(repo, kg[repo], lt[repo])
	}
	versions.Print()

	pods := tabby.New()
	pods.AddHeader("Pod", "Drop Folder", "Data Sources", "Failing")
	for _, info := range infos {
		pods.AddLine(info.ID.Name, info.DropFolder, info.DataSources, failingSet[info.ID])
	}
	pods.Print()
	fmt.Println()

	return nil
}
