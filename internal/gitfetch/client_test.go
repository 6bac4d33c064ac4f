package gitfetch

import (
	"errors"
	"testing"
)

func TestCheckoutName(t *testing.T) {
	cases := map[string]string{
		"https://github.com/LLNL/ygm.git":  "ygm",
		"https://github.com/LLNL/ygm":      "ygm",
		"git@github.com:LLNL/ygm.git":      "ygm",
		"https://example.com/deep/repo/":   "repo",
		"":                                 "source",
	}
	for url, want := range cases {
		if got := checkoutName(url); got != want {
			t.Errorf("checkoutName(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	var authErr *AuthError
	err := classifyError("clone", "https://x", errors.New("authentication required"))
	if !errors.As(err, &authErr) {
		t.Errorf("expected AuthError, got %T", err)
	}

	var nfErr *NotFoundError
	err = classifyError("clone", "https://x", errors.New("repository does not exist"))
	if !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError, got %T", err)
	}

	var netErr *NetworkError
	err = classifyError("pull", "https://x", errors.New("dial tcp: i/o timeout"))
	if !errors.As(err, &netErr) {
		t.Errorf("expected NetworkError, got %T", err)
	}

	base := errors.New("mystery failure")
	err = classifyError("clone", "https://x", base)
	if !errors.Is(err, base) {
		t.Error("unknown errors must stay unwrappable to the cause")
	}
}

func TestHeadCommit_NotARepo(t *testing.T) {
	if got := HeadCommit(t.TempDir()); got != "" {
		t.Errorf("HeadCommit on plain dir = %q, want empty", got)
	}
}
