package main

import (
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/stakeops/upgrade-monitor/cmd"
	"github.com/stakeops/upgrade-monitor/engine/monitor"
	"github.com/stakeops/upgrade-monitor/feed/github"
	"github.com/stakeops/upgrade-monitor/module"
	"github.com/stakeops/upgrade-monitor/module/metrics"
)

func main() {

	var (
		repo            string
		feedURL         string
		token           string
		tagPrefix       string
		grace           time.Duration
		scanInterval    time.Duration
		resolveInterval time.Duration
	)

	cmd.MonitorNode("monitor").
		ExtraFlags(func(flags *pflag.FlagSet) {
			flags.StringVar(&repo, "repo", "paritytech/polkadot-sdk", "github repository publishing the client releases")
			flags.StringVar(&feedURL, "feed-url", "", "override for the release feed base URL")
			flags.StringVar(&token, "github-token", os.Getenv("GITHUB_TOKEN"), "bearer token for the release feed")
			flags.StringVar(&tagPrefix, "tag-prefix", "polkadot-v", "tag prefix of the monitored client family")
			flags.DurationVar(&grace, "grace", 48*time.Hour, "grace window after a release during which a one-patch deficit is tolerated")
			flags.DurationVar(&scanInterval, "scan-interval", 5*time.Minute, "period of the candidate evaluation pass")
			flags.DurationVar(&resolveInterval, "resolve-interval", 15*time.Minute, "period of upstream release polling")
		}).
		Component("metrics server", func(builder *cmd.MonitorNodeBuilder) (module.ReadyDoneAware, error) {
			server := metrics.NewServer(builder.Logger, builder.MetricsPort)
			return server, nil
		}).
		Component("monitor engine", func(builder *cmd.MonitorNodeBuilder) (module.ReadyDoneAware, error) {

			var opts []github.Option
			if feedURL != "" {
				opts = append(opts, github.WithBaseURL(feedURL))
			}
			if token != "" {
				opts = append(opts, github.WithToken(token))
			}
			releaseFeed, err := github.NewClient(builder.Logger, repo, opts...)
			if err != nil {
				return nil, err
			}

			collector := metrics.NewMonitorCollector()

			eng, err := monitor.New(
				builder.Logger,
				collector,
				releaseFeed,
				builder.Releases,
				builder.Candidates,
				monitor.NewLatestRelease(),
				monitor.Config{
					TagPrefix:       tagPrefix,
					Grace:           grace,
					ScanInterval:    scanInterval,
					ResolveInterval: resolveInterval,
				},
			)
			if err != nil {
				return nil, err
			}

			return eng, nil
		}).
		Run()
}
