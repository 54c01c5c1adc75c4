package discovery

import (
	"context"
	"os"
	"testing"
)

func drain(t *testing.T, g Generator) []Target {
	t.Helper()
	var out []Target
	for {
		target, ok, err := g.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, target)
	}
}

// TestRangeSlash32 covers boundary 10 from spec.md §8: a /32 still
// yields its single address rather than the empty set.
func TestRangeSlash32(t *testing.T) {
	gen, err := NewRange("203.0.113.5/32", []int{25565})
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}

	targets := drain(t, gen)
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	if targets[0].IP != "203.0.113.5" || targets[0].Port != 25565 {
		t.Errorf("target = %+v, want 203.0.113.5:25565", targets[0])
	}
}

func TestRangeMultiplePorts(t *testing.T) {
	gen, err := NewRange("203.0.113.0/30", []int{25565, 25575})
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}

	targets := drain(t, gen)
	if len(targets) != 8 {
		t.Fatalf("got %d targets, want 8 (4 hosts x 2 ports)", len(targets))
	}

	estimate, ok := gen.Estimate()
	if !ok || estimate != 8 {
		t.Errorf("Estimate() = %d,%v want 8,true", estimate, ok)
	}
}

func TestRangeInvalidCIDR(t *testing.T) {
	if _, err := NewRange("not-a-cidr", []int{25565}); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}

func TestFileGeneratorSkipsCommentsAndMalformed(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "targets-*.txt")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	content := "# a comment\n\n192.0.2.1:25565\n192.0.2.2\nbad:entry:shape\n192.0.2.3:notaport\n"
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	gen, err := NewFile(f.Name(), 25565, nil)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	targets := drain(t, gen)
	want := []Target{
		{IP: "192.0.2.1", Port: 25565},
		{IP: "192.0.2.2", Port: 25565},
	}
	if len(targets) != len(want) {
		t.Fatalf("got %d targets %+v, want %+v", len(targets), targets, want)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("target[%d] = %+v, want %+v", i, targets[i], want[i])
		}
	}
}

func TestFileGeneratorMissingFile(t *testing.T) {
	if _, err := NewFile("/nonexistent/path/targets.txt", 25565, nil); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

func TestExternalLinePattern(t *testing.T) {
	line := "Host: 198.51.100.7 () Ports: 25565/open/tcp//"
	m := externalLine.FindStringSubmatch(line)
	if m == nil {
		t.Fatal("expected match")
	}
	if m[1] != "198.51.100.7" || m[2] != "25565" {
		t.Errorf("match = %v, want ip=198.51.100.7 port=25565", m)
	}
}
