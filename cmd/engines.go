package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/client"
	"github.com/user/hardenctl/pkg/config"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/remediation"
	"github.com/user/hardenctl/pkg/scanner"
)

// buildEngines wires the engine stack for a command: remote HTTP when a base
// URL is configured or given, otherwise everything in-process. The returned
// cleanup closes whatever was opened.
func buildEngines(ctx context.Context, cfg *config.Config, remoteBase string, dryRun bool) (client.Engines, func(), error) {
	log := logrus.NewEntry(logrus.StandardLogger())

	if remoteBase != "" {
		return client.NewRemoteHTTP(client.SingleHost(remoteBase)), func() {}, nil
	}
	if cfg.Engines.Scanner != "" {
		urls := client.EngineURLs{
			Scanner:     cfg.Engines.Scanner,
			Analyst:     cfg.Engines.Analyst,
			Remediation: cfg.Engines.Remediation,
			Compliance:  cfg.Engines.Compliance,
		}
		return client.NewRemoteHTTP(urls), func() {}, nil
	}

	engines, store, err := buildInProcess(ctx, cfg, dryRun, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if store != nil {
			store.Close()
		}
	}
	return engines, cleanup, nil
}

func buildInProcess(ctx context.Context, cfg *config.Config, dryRun bool, log *logrus.Entry) (*client.InProcess, *ledger.Store, error) {
	providerName := cfg.SelectedProvider
	if providerName == "" {
		providerName = "gemini"
	}
	apiKey := cfg.GetAPIKey(providerName)
	if apiKey == "" && providerName == "gemini" {
		// Fallback to env var for Gemini if not in config
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, nil, fmt.Errorf("API key not found for provider %q; run 'hardenctl config setup'", providerName)
	}

	provider, err := adk.NewProvider(ctx, providerName, apiKey, cfg.SelectedModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create AI provider: %w", err)
	}

	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}

	runner := scanner.NewRunner(cfg.SCAPContent, cfg.Profile, cfg.ReportsDir, log)
	analyst := adk.NewAnalyst(provider)
	gen := remediation.NewGenerator(cfg.PlaybooksDir)
	exe := remediation.NewExecutor(dryRun, log)

	return client.NewInProcess(runner, analyst, gen, exe, store, log), store, nil
}
