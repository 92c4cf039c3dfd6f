package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/adapters/policy"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/services/smoketest"
)

// runSmoke 对一个已部署的注册表站点做冒烟检查：注册表文档可取、
// 图片可取且确为 PNG、额外端点返回 2xx。
func runSmoke(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("smoke", flag.ContinueOnError)
	baseURL := fs.String("base-url", "", "deployed registry base url (required)")
	expected := fs.String("expected-base-url", "", "expected image url prefix, rewritten onto the target host (default policy proxy.base_url)")
	assetsPrefix := fs.String("assets-prefix", cfg.AssetsPrefix, "assets path prefix on the target host")
	timeoutSec := fs.Int("timeout", 0, "per request timeout in seconds (default policy smoke.timeout_seconds)")
	policyPath := fs.String("policy", "", "validation policy file (default registry-policy.yaml when present)")
	endpoints := fs.String("endpoints", "", "comma separated extra endpoints that must return 2xx")
	walletsOnly := fs.Bool("wallets-only", false, "only check the registry documents, skip image requests")
	asJSON := fs.Bool("json", false, "print the result as json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*baseURL) == "" {
		return fmt.Errorf("--base-url is required")
	}

	polOptional := *policyPath == ""
	polPath := *policyPath
	if polPath == "" {
		polPath = cfg.PolicyPath
	}
	loaded, err := policy.NewLoader(polPath, polOptional).Load(ctx)
	if err != nil {
		return err
	}

	opts := smoketest.Options{
		BaseURL:         *baseURL,
		ExpectedBaseURL: strings.TrimSpace(*expected),
		AssetsPrefix:    strings.TrimSpace(*assetsPrefix),
		WalletsOnly:     *walletsOnly,
	}
	if opts.ExpectedBaseURL == "" {
		opts.ExpectedBaseURL = loaded.Policy.Proxy.BaseURL
	}
	if *timeoutSec > 0 {
		opts.Timeout = time.Duration(*timeoutSec) * time.Second
	} else if loaded.Policy.Smoke.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(loaded.Policy.Smoke.TimeoutSeconds) * time.Second
	}
	if strings.TrimSpace(*endpoints) != "" {
		for _, ep := range strings.Split(*endpoints, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				opts.ExtraEndpoints = append(opts.ExtraEndpoints, ep)
			}
		}
	} else {
		opts.ExtraEndpoints = loaded.Policy.Smoke.ExtraEndpoints
	}

	res, err := smoketest.Run(ctx, opts)
	if err != nil {
		return err
	}

	if *asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		fmt.Println("smoke check completed")
		fmt.Printf("base_url=%s wallets=%d checks=%d passed=%d failed=%d\n",
			res.BaseURL, res.WalletCount, len(res.Checks), res.Passed, res.Failed)
		for _, c := range res.Checks {
			if c.OK {
				continue
			}
			fmt.Printf("FAIL %s target=%s detail=%s\n", c.Name, c.Target, c.Detail)
		}
	}

	if res.Failed > 0 {
		return fmt.Errorf("smoke check failed: %d of %d checks", res.Failed, len(res.Checks))
	}
	return nil
}
