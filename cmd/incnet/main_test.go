package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"incnet/internal/learner"
	"incnet/pkg/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incnet.yaml")
	body := "model_name: ease\nbackbone_type: vit_base_patch16_224_ease\ninit_cls: 3\nincrement: 2\nffn_num: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestParseTasks(t *testing.T) {
	got, err := parseTasks("10, 5,0")
	if err != nil || len(got) != 3 || got[0] != 10 || got[1] != 5 || got[2] != 0 {
		t.Fatalf("got %v err %v", got, err)
	}
	for _, bad := range []string{"", "a", "3,-1"} {
		if _, err := parseTasks(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestBackbonesCommand(t *testing.T) {
	out, err := run(t, "backbones")
	if err != nil {
		t.Fatalf("backbones: %v", err)
	}
	for _, name := range []string{"pretrained_vit_b16_224", "vit_base_patch16_224_in21k_ease"} {
		if !strings.Contains(out, name) {
			t.Fatalf("missing %s in:\n%s", name, out)
		}
	}
}

func TestInspectCommand(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "inspect", "--tasks", "0,2", "--depth", "0", "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var snaps []learner.Snapshot
	if err := json.Unmarshal([]byte(out), &snaps); err != nil {
		t.Fatalf("json: %v\n%s", err, out)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots: %+v", snaps)
	}
	if snaps[0].FeatureDim != 768 || snaps[0].HeadClasses != 3 || snaps[0].ProxyClasses != 3 {
		t.Fatalf("first task: %+v", snaps[0])
	}
	if snaps[1].FeatureDim != 1536 || snaps[1].HeadClasses != 5 || snaps[1].ProxyClasses != 2 {
		t.Fatalf("second task: %+v", snaps[1])
	}

	if _, err := run(t, "--config", writeConfig(t), "inspect", "--tasks", "4", "--depth", "0"); err == nil {
		t.Fatalf("expected mismatched task size error")
	}
}

func TestInspectTable(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "inspect", "--tasks", "0", "--depth", "0")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.HasPrefix(out, "TASK") || !strings.Contains(out, "768") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestInitWeightsThenPretrained(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init-weights", "--out", dir, "--depth", "0")
	if err != nil {
		t.Fatalf("init-weights: %v", err)
	}
	if !strings.Contains(out, "vit_base_patch16_224_in21k") {
		t.Fatalf("output: %s", out)
	}

	out, err = run(t, "--weights-dir", dir, "backbones", "--json")
	if err != nil {
		t.Fatalf("backbones: %v", err)
	}
	var resp types.BackbonesResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	for _, b := range resp.Backbones {
		if !b.WeightsAvailable {
			t.Fatalf("%s: weights not reported", b.Name)
		}
	}

	if _, err := run(t, "--config", writeConfig(t), "--weights-dir", dir, "inspect", "--tasks", "0", "--depth", "0", "--pretrained"); err != nil {
		t.Fatalf("pretrained inspect: %v", err)
	}
	if _, err := run(t, "init-weights"); err == nil {
		t.Fatalf("expected missing --out error")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("INCNET_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := run(t, "backbones"); err == nil {
		t.Fatalf("expected error for missing config from env")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	if _, err := run(t, "--log-level", "loud", "backbones"); err == nil {
		t.Fatalf("expected invalid log level error")
	}
}
