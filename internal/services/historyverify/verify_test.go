package historyverify

import (
	"fmt"
	"testing"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
)

func buildChain(n int) []model.RunInfo {
	runs := make([]model.RunInfo, 0, n)
	prev := ""
	for i := 0; i < n; i++ {
		it := model.RunInfo{
			RunID:         fmt.Sprintf("run_%02d", i),
			StartedAt:     1700000000 + int64(i)*60,
			FinishedAt:    1700000005 + int64(i)*60,
			WalletsPath:   "wallets-v2.json",
			WalletsSHA256: fmt.Sprintf("feed%02d", i),
			RecordCount:   3,
			ErrorCount:    i % 2,
			WarningCount:  i,
			Status:        model.RunPassed,
		}
		if it.ErrorCount > 0 {
			it.Status = model.RunFailed
		}
		it.ChainPrevHash = prev
		it.ChainHash = hash.Text(
			prev,
			it.RunID,
			it.WalletsSHA256,
			fmt.Sprintf("%d", it.StartedAt),
			string(it.Status),
			fmt.Sprintf("%d", it.ErrorCount),
			fmt.Sprintf("%d", it.WarningCount),
		)
		prev = it.ChainHash
		runs = append(runs, it)
	}
	return runs
}

func TestVerifyRunsOKOnValidChain(t *testing.T) {
	runs := buildChain(5)

	res := VerifyRuns(runs)
	if !res.OK {
		t.Fatalf("expected OK chain, failures=%+v", res.Failures)
	}
	if res.Total != 5 || res.Failed != 0 {
		t.Fatalf("total=%d failed=%d, want 5/0", res.Total, res.Failed)
	}
	if res.LastChainHash != runs[4].ChainHash {
		t.Fatalf("last chain hash=%q, want %q", res.LastChainHash, runs[4].ChainHash)
	}
}

func TestVerifyRunsEmptyHistory(t *testing.T) {
	res := VerifyRuns(nil)
	if !res.OK || res.Total != 0 || res.LastChainHash != "" {
		t.Fatalf("unexpected result for empty history: %+v", res)
	}
	if res.Failures == nil {
		t.Fatalf("failures should be an empty slice, not nil")
	}
}

func TestVerifyRunsDetectsTamperedChainHash(t *testing.T) {
	runs := buildChain(4)
	runs[1].ChainHash = "deadbeef"

	res := VerifyRuns(runs)
	if res.OK {
		t.Fatalf("expected verification failure")
	}
	// 第 1 条 chain_hash 被篡改；第 2 条的 chain_prev_hash 随之对不上，
	// 且重算公式的 prev 输入变化导致 chain_hash 也对不上。
	if res.Failed != 2 {
		t.Fatalf("failed=%d, want 2 (items=%+v)", res.Failed, res.Failures)
	}
	if res.ChainHashFailed != 2 || res.PrevHashFailed != 1 {
		t.Fatalf("chain=%d prev=%d, want 2/1", res.ChainHashFailed, res.PrevHashFailed)
	}

	first := res.Failures[0]
	if first.Index != 1 || !first.ChainHashMismatch || first.PrevHashMismatch {
		t.Fatalf("unexpected first failure: %+v", first)
	}
	if first.ActualChainHash != "deadbeef" {
		t.Fatalf("actual chain hash=%q", first.ActualChainHash)
	}
	if first.Message != "chain_hash mismatch" {
		t.Fatalf("message=%q", first.Message)
	}

	second := res.Failures[1]
	if second.Index != 2 || !second.PrevHashMismatch || !second.ChainHashMismatch {
		t.Fatalf("unexpected second failure: %+v", second)
	}
	if second.Message != "chain_prev_hash and chain_hash mismatch" {
		t.Fatalf("message=%q", second.Message)
	}
	// 后续条目以库内哈希推进，第 3 条应恢复正常。
	if len(res.Failures) != 2 {
		t.Fatalf("failures=%d, want 2", len(res.Failures))
	}
}

func TestVerifyRunsDetectsTamperedPrevHash(t *testing.T) {
	runs := buildChain(3)
	runs[2].ChainPrevHash = "0000"

	res := VerifyRuns(runs)
	if res.OK || res.Failed != 1 {
		t.Fatalf("failed=%d, want 1", res.Failed)
	}
	it := res.Failures[0]
	if !it.PrevHashMismatch || it.ChainHashMismatch {
		t.Fatalf("unexpected flags: %+v", it)
	}
	if it.ExpectedPrevHash != runs[1].ChainHash || it.ActualPrevHash != "0000" {
		t.Fatalf("expected=%q actual=%q", it.ExpectedPrevHash, it.ActualPrevHash)
	}
	if it.Message != "chain_prev_hash mismatch" {
		t.Fatalf("message=%q", it.Message)
	}
}

func TestVerifyRunsDetectsTamperedCounters(t *testing.T) {
	runs := buildChain(3)
	runs[1].ErrorCount = 99 // 改动参与哈希的字段，链必须能发现

	res := VerifyRuns(runs)
	if res.OK {
		t.Fatalf("expected verification failure")
	}
	if res.ChainHashFailed == 0 {
		t.Fatalf("chain hash failure not detected: %+v", res)
	}
}
