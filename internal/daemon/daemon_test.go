package daemon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ppiankov/oraclegate/internal/claim"
	"github.com/ppiankov/oraclegate/internal/gate"
	"github.com/ppiankov/oraclegate/internal/layout"
	"github.com/ppiankov/oraclegate/internal/ledger"
	"github.com/ppiankov/oraclegate/internal/model"
	"github.com/ppiankov/oraclegate/internal/router"
)

// stubExecutor records requests and answers with a fixed verdict.
type stubExecutor struct {
	verdict model.Verdict
	err     error
	reqs    []gate.ExecuteRequest
}

func (s *stubExecutor) Execute(_ context.Context, req gate.ExecuteRequest) (model.Verdict, error) {
	s.reqs = append(s.reqs, req)
	return s.verdict, s.err
}

func testDirs(t *testing.T) DirConfig {
	t.Helper()
	dirs := DirsUnder(t.TempDir())
	if err := EnsureDirs(dirs); err != nil {
		t.Fatal(err)
	}
	return dirs
}

func writeJob(t *testing.T, dir string, job *Job) string {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, job.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readResult(t *testing.T, dirs DirConfig, id string) Result {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dirs.Outbox, id+".json"))
	if err != nil {
		t.Fatalf("read result %s: %v", id, err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func sampleJob(id string) *Job {
	return &Job{
		ID:          id,
		Program:     "claim",
		Instruction: hex.EncodeToString(router.EncodeExecute(500)),
		Accounts: []JobAccount{
			{Address: "source"},
			{Address: "mint"},
			{Address: model.NamedAddress("policy").String(), Writable: true},
		},
	}
}

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Job)
		ok   bool
	}{
		{"valid", func(*Job) {}, true},
		{"missing id", func(j *Job) { j.ID = "" }, false},
		{"traversal", func(j *Job) { j.ID = "../etc" }, false},
		{"bad chars", func(j *Job) { j.ID = "a b" }, false},
		{"missing program", func(j *Job) { j.Program = "" }, false},
		{"unknown program", func(j *Job) { j.Program = "refund" }, false},
		{"missing instruction", func(j *Job) { j.Instruction = "" }, false},
		{"no accounts", func(j *Job) { j.Accounts = nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := sampleJob("job-1")
			tt.mut(j)
			err := ValidateJob(j)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestJobRequest(t *testing.T) {
	j := sampleJob("job-1")
	j.Instruction = "0x" + j.Instruction
	req, err := j.Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Policy != model.PolicyClaim {
		t.Errorf("policy = %s", req.Policy)
	}
	if amount, err := router.ParseExecute(req.Instruction); err != nil || amount != 500 {
		t.Errorf("instruction decodes to %d, %v", amount, err)
	}
	if req.Accounts[1].Address != model.NamedAddress("mint") {
		t.Error("named address not derived")
	}
	if req.Accounts[2].Address != model.NamedAddress("policy") || !req.Accounts[2].Writable {
		t.Error("hex address or writable flag lost")
	}

	j.Instruction = "zz"
	if _, err := j.Request(); err == nil {
		t.Error("expected hex error")
	}
}

func TestProcessWritesVerdict(t *testing.T) {
	dirs := testDirs(t)
	exec := &stubExecutor{verdict: model.Refuse(model.PolicyClaim, model.PathRaw, model.PolicyExpired)}
	p := NewProcessor(dirs, exec, nil)

	path := writeJob(t, dirs.Inbox, sampleJob("claim-1"))
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	r := readResult(t, dirs, "claim-1")
	if r.Status != ResultDone || r.Decision != model.Deny || r.Reason != model.PolicyExpired {
		t.Errorf("unexpected result %+v", r)
	}
	if len(exec.reqs) != 1 {
		t.Fatalf("executor called %d times", len(exec.reqs))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("job should leave the inbox")
	}
	if _, err := os.Stat(filepath.Join(dirs.ProcessingDir(), "claim-1.json")); !os.IsNotExist(err) {
		t.Error("processing file should be removed")
	}
}

func TestProcessFatalErrorFailsJob(t *testing.T) {
	dirs := testDirs(t)
	p := NewProcessor(dirs, &stubExecutor{err: model.ErrArithmeticOverflow}, nil)

	path := writeJob(t, dirs.Inbox, sampleJob("pay-1"))
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	r := readResult(t, dirs, "pay-1")
	if r.Status != ResultFailed || r.Error == "" || r.Decision != "" {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestProcessInvalidJSON(t *testing.T) {
	dirs := testDirs(t)
	exec := &stubExecutor{}
	p := NewProcessor(dirs, exec, nil)

	path := filepath.Join(dirs.Inbox, "broken.json")
	if err := os.WriteFile(path, []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	r := readResult(t, dirs, "broken")
	if r.Status != ResultFailed {
		t.Errorf("status = %s", r.Status)
	}
	if len(exec.reqs) != 0 {
		t.Error("invalid job must not execute")
	}
}

func TestProcessRejectsSymlink(t *testing.T) {
	dirs := testDirs(t)
	p := NewProcessor(dirs, &stubExecutor{}, nil)

	target := filepath.Join(t.TempDir(), "real.json")
	if err := os.WriteFile(target, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dirs.Inbox, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skip("symlinks unsupported")
	}
	if err := p.Process(context.Background(), link); err == nil {
		t.Error("expected symlink rejection")
	}
}

func TestNewDaemonValidation(t *testing.T) {
	if _, err := New(Config{}, &stubExecutor{}); err == nil {
		t.Error("expected error for empty dirs")
	}
	if _, err := New(Config{Dirs: DirsUnder(t.TempDir())}, nil); err == nil {
		t.Error("expected error for missing executor")
	}
}

func TestDaemonFailsOrphansAndDrainsInbox(t *testing.T) {
	dirs := testDirs(t)
	orphan := filepath.Join(dirs.ProcessingDir(), "orphan-1.json")
	if err := os.WriteFile(orphan, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	writeJob(t, dirs.Inbox, sampleJob("waiting-1"))

	exec := &stubExecutor{verdict: model.Permit(model.PolicyClaim, model.PathRaw)}
	d, err := New(Config{Dirs: dirs, PollMode: true, PollInterval: 50 * time.Millisecond}, exec)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if r := readResult(t, dirs, "orphan-1"); r.Status != ResultFailed {
		t.Errorf("orphan status = %s", r.Status)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan should be removed from processing")
	}
	if r := readResult(t, dirs, "waiting-1"); r.Decision != model.Allow {
		t.Errorf("waiting job decision = %s", r.Decision)
	}
	if _, err := os.Stat(dirs.PIDFile()); !os.IsNotExist(err) {
		t.Error("pid file should be removed on exit")
	}
}

func TestPIDLockRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		t.Fatal(err)
	}
	if err := acquirePIDLock(path); err == nil {
		t.Error("expected lock failure for a live pid")
	}
}

func TestPIDLockReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := acquirePIDLock(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("pid file = %q", data)
	}
}

func TestEnsureDirsIdempotent(t *testing.T) {
	dirs := DirsUnder(t.TempDir())
	for range 2 {
		if err := EnsureDirs(dirs); err != nil {
			t.Fatal(err)
		}
	}
	for _, dir := range []string{dirs.Inbox, dirs.Outbox, dirs.ProcessingDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}
}

// TestClaimJobThroughGate runs a real raw claim against a ledger-backed
// gate and checks the write landed.
func TestClaimJobThroughGate(t *testing.T) {
	ctx := context.Background()
	var (
		program   = model.NamedAddress("program")
		oracle    = model.NamedAddress("switchboard")
		authority = model.NamedAddress("authority")
		alice     = model.NamedAddress("alice")
		mint      = model.NamedAddress("mint")
		feed      = model.NamedAddress("feed-west")
	)
	store, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	g, err := gate.New(gate.Options{
		Program: program, OracleProgram: oracle, Store: store,
		Now: func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err = g.InitConfig(ctx, authority, 7.0)
	must(err)
	_, err = g.UpdateRegionFeed(ctx, authority, model.West, feed)
	must(err)
	_, err = g.Register(ctx, claim.Registration{
		Owner: alice, Region: uint8(model.West), InsuredAmount: 10_000, Premium: 100, DurationDays: 30,
	})
	must(err)
	must(g.PublishFeed(ctx, feed, "west", layout.FeedResult{
		Mantissa: 800, Scale: 2, NumSuccess: 3, MinResponses: 2, UpdatedAt: now.Unix(), MaxStaleness: 300,
	}))
	_, err = g.InitExtraAccountMetas(ctx, mint, model.PolicyClaim)
	must(err)
	metas, err := g.ClaimAccounts(ctx, gate.Transfer{
		Source: model.NamedAddress("src"), Mint: mint,
		Destination: model.NamedAddress("dst"), Owner: alice,
	}, feed)
	must(err)

	job := &Job{ID: "claim-alice", Program: "claim", Instruction: hex.EncodeToString(router.EncodeExecute(5000))}
	for _, m := range metas {
		job.Accounts = append(job.Accounts, JobAccount{Address: m.Address.String(), Signer: m.Signer, Writable: m.Writable})
	}

	dirs := testDirs(t)
	p := NewProcessor(dirs, g, nil)
	must(p.Process(ctx, writeJob(t, dirs.Inbox, job)))

	r := readResult(t, dirs, "claim-alice")
	if r.Decision != model.Allow || !r.Mutated {
		t.Fatalf("unexpected result %+v", r)
	}
	view, err := g.Policy(ctx, alice)
	must(err)
	if view.Status != gate.StatusClaimed {
		t.Errorf("policy status = %s", view.Status)
	}

	// A second run of the same job is denied; the policy is already claimed.
	job.ID = "claim-alice-again"
	must(p.Process(ctx, writeJob(t, dirs.Inbox, job)))
	if r := readResult(t, dirs, "claim-alice-again"); r.Reason != model.ClaimAlreadyProcessed {
		t.Errorf("second claim reason = %s", r.Reason)
	}
}

