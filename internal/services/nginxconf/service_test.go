package nginxconf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeOrigins(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "origins.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write origins: %v", err)
	}
	return path
}

func TestRunGeneratesSortedMapEntries(t *testing.T) {
	origins := writeOrigins(t, `{
		"zebra.png": "https://z.example/zebra.png",
		"alpha.png": "https://a.example/alpha.png",
		"mid.png": "https://m.example/mid.png"
	}`)
	output := filepath.Join(t.TempDir(), "nginx.conf")

	res, err := Run(context.Background(), Options{OriginsPath: origins, OutputPath: output})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.MapEntries != 3 {
		t.Fatalf("map entries = %d, want 3", res.MapEntries)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	conf := string(raw)

	for _, want := range []string{
		"server_name config.ton.org;",
		"/assets/alpha.png https://a.example/alpha.png;",
		"proxy_cache_valid 200 10m;",
		"proxy_cache_valid any 2m;",
	} {
		if !strings.Contains(conf, want) {
			t.Fatalf("config missing %q:\n%s", want, conf)
		}
	}

	alpha := strings.Index(conf, "/assets/alpha.png")
	mid := strings.Index(conf, "/assets/mid.png")
	zebra := strings.Index(conf, "/assets/zebra.png")
	if !(alpha < mid && mid < zebra) {
		t.Fatalf("map entries not sorted: alpha=%d mid=%d zebra=%d", alpha, mid, zebra)
	}
}

func TestRunHonorsOverrides(t *testing.T) {
	origins := writeOrigins(t, `{"wallet.png": "https://w.example/i.png"}`)
	output := filepath.Join(t.TempDir(), "server", "nginx.conf")

	_, err := Run(context.Background(), Options{
		OriginsPath:  origins,
		OutputPath:   output,
		ServerName:   "mirror.example.com",
		AssetsPrefix: "images",
		CacheOK:      "1h",
		CacheNotOK:   "5m",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	conf := string(raw)

	for _, want := range []string{
		"server_name mirror.example.com;",
		"/images/wallet.png https://w.example/i.png;",
		"location /images/ {",
		"proxy_cache_valid 200 1h;",
		"proxy_cache_valid any 5m;",
	} {
		if !strings.Contains(conf, want) {
			t.Fatalf("config missing %q:\n%s", want, conf)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	origins := writeOrigins(t, `{
		"b.png": "https://b.example/b.png",
		"a.png": "https://a.example/a.png",
		"c.png": "https://c.example/c.png",
		"d.png": "https://d.example/d.png"
	}`)
	tmp := t.TempDir()
	first := filepath.Join(tmp, "one.conf")
	second := filepath.Join(tmp, "two.conf")

	if _, err := Run(context.Background(), Options{OriginsPath: origins, OutputPath: first}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := Run(context.Background(), Options{OriginsPath: origins, OutputPath: second}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	one, _ := os.ReadFile(first)
	two, _ := os.ReadFile(second)
	if !bytes.Equal(one, two) {
		t.Fatalf("outputs differ between runs")
	}
}

func TestRunRejectsBadOrigins(t *testing.T) {
	origins := writeOrigins(t, `["not", "an", "object"]`)
	_, err := Run(context.Background(), Options{
		OriginsPath: origins,
		OutputPath:  filepath.Join(t.TempDir(), "nginx.conf"),
	})
	if err == nil {
		t.Fatalf("expected error for non-object origins")
	}

	_, err = Run(context.Background(), Options{
		OriginsPath: filepath.Join(t.TempDir(), "missing.json"),
		OutputPath:  filepath.Join(t.TempDir(), "nginx.conf"),
	})
	if err == nil {
		t.Fatalf("expected error for missing origins file")
	}
}
