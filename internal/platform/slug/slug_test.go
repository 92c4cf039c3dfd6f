package slug

import (
	"regexp"
	"testing"
)

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"telegram-wallet", "telegram_wallet"},
		{"fintopio-tg", "fintopio_tg"},
		{"Architec.ton", "architec_ton"},
		{"tonkeeper-pro", "tonkeeper_pro"},
		{"BitgetWeb3", "bitgetweb3"},
		{"okxMiniWallet", "okxminiwallet"},
		{"app__with___multiple", "app_with_multiple"},
		{"_leading_underscore_", "leading_underscore"},
		{"UPPERCASE", "uppercase"},
		{"123numeric", "123numeric"},
		{"special!@#$%chars", "special_chars"},
		{"", ""},
		{"___", ""},
		{"汉字wallet", "wallet"},
		{"a", "a"},
	}
	for _, tc := range cases {
		if got := Make(tc.in); got != tc.want {
			t.Fatalf("Make(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMakeIdempotent(t *testing.T) {
	inputs := []string{
		"Architec.ton", "a--b", "  spaced out  ", "UPPER_lower-Mixed.99", "",
	}
	for _, in := range inputs {
		once := Make(in)
		if twice := Make(once); twice != once {
			t.Fatalf("Make not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestMakeShape(t *testing.T) {
	// 非空输出必须匹配 ^[a-z0-9]+(_[a-z0-9]+)*$（无首尾/连续下划线）。
	shape := regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
	inputs := []string{
		"telegram-wallet", "!!weird!!", "a.b.c", "__x__", "MiXeD 123", "日本語-app",
	}
	for _, in := range inputs {
		got := Make(in)
		if got == "" {
			continue
		}
		if !shape.MatchString(got) {
			t.Fatalf("Make(%q)=%q does not match slug shape", in, got)
		}
	}
}

func TestPNGName(t *testing.T) {
	if got := PNGName("telegram-wallet"); got != "telegram_wallet.png" {
		t.Fatalf("PNGName=%q, want telegram_wallet.png", got)
	}
}
