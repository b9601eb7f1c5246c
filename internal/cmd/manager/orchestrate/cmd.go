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

// Package orchestrate implements the "manager orchestrate" command: it
// wires every collaborator to a real cluster client and runs the control
// loop until cancellation or a terminal condition.
package orchestrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	coordinationv1 "k8s.io/api/coordination/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/timmydo/AutoCrane/internal/configuration"
	"github.com/timmydo/AutoCrane/internal/orchestrator"
	"github.com/timmydo/AutoCrane/pkg/autocrane/eviction"
	"github.com/timmydo/AutoCrane/pkg/autocrane/gc"
	"github.com/timmydo/AutoCrane/pkg/autocrane/leaderelection"
	"github.com/timmydo/AutoCrane/pkg/autocrane/manifest"
	"github.com/timmydo/AutoCrane/pkg/autocrane/podannotate"
	"github.com/timmydo/AutoCrane/pkg/autocrane/podrequests"
	"github.com/timmydo/AutoCrane/pkg/autocrane/versionstate"
	"github.com/timmydo/AutoCrane/pkg/autocrane/watchdog"
	"github.com/timmydo/AutoCrane/pkg/clock"
	"github.com/timmydo/AutoCrane/pkg/management/log"
)

var scheme = buildScheme()

func buildScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntimeMustAddToScheme(s, corev1.AddToScheme)
	utilruntimeMustAddToScheme(s, coordinationv1.AddToScheme)
	utilruntimeMustAddToScheme(s, policyv1.AddToScheme)
	return s
}

func utilruntimeMustAddToScheme(s *runtime.Scheme, add func(*runtime.Scheme) error) {
	if err := add(s); err != nil {
		panic(err)
	}
}

// leaderElectionAdapter narrows leaderelection.Elector's concrete return
// type down to the orchestrator.BackgroundTask interface its caller
// expects; *leaderelection.Task already implements it structurally.
type leaderElectionAdapter struct {
	elector *leaderelection.Elector
}

func (a leaderElectionAdapter) Start(
	ctx context.Context,
	leaseName string,
	renew time.Duration,
) orchestrator.BackgroundTask {
	return a.elector.Start(ctx, leaseName, renew)
}

// NewCmd builds the orchestrate subcommand.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orchestrate",
		Short: "Runs the AutoCrane control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(run())
			return nil
		},
	}
}

func run() int {
	setupLog := log.WithName("setup")

	cfg, err := configuration.FromEnvironment()
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		return orchestrator.ExitConfigurationOrLease
	}

	restConfig := ctrl.GetConfigOrDie()

	cl, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to build cluster client")
		return orchestrator.ExitConfigurationOrLease
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		setupLog.Error(err, "unable to build clientset")
		return orchestrator.ExitConfigurationOrLease
	}

	identity, err := lockIdentity()
	if err != nil {
		setupLog.Error(err, "unable to build leader-election identity")
		return orchestrator.ExitConfigurationOrLease
	}

	elector := leaderelection.NewElector(clientset, cfg.OperatorNamespace, identity)

	o := orchestrator.New(orchestrator.Config{
		Namespaces:            cfg.Namespaces,
		LeaderLease:           configuration.LeaderLease,
		LeaseRenewPeriod:      30 * time.Second,
		IterationPeriod:       cfg.IterationPeriod(),
		ConsecutiveErrorLimit: cfg.ConsecutiveErrorLimit,
		WindowWidth:           cfg.WatchdogFailuresBeforeEviction,
	})
	o.Manifest = manifest.NewFetcher(cl, cfg.OperatorNamespace)
	o.Requests = podrequests.NewGetter(cl)
	o.KnownGood = versionstate.NewKnownGoodAccessor(cl)
	o.Latest = versionstate.NewLatestAccessor(cl)
	o.Failing = watchdog.NewGetter(cl)
	o.Annotate = podannotate.NewPutter(cl)
	o.Evict = eviction.NewEvicter(clientset)
	o.GC = gc.NewDeleter(cl)
	o.LeaderElection = leaderElectionAdapter{elector: elector}
	o.Clock = clock.System{}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return o.Run(ctx)
}

func lockIdentity() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("resolving hostname: %w", err)
	}
	return fmt.Sprintf("%s_%s", hostname, uuid.NewString()), nil
}
