package leakage_test

import (
	"fmt"
	"strings"
	"testing"

	"cocovalidate/internal/diag"
	"cocovalidate/internal/leakage"
)

func names(prefix string, from, to int) []string {
	var out []string
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("%s%03d.jpg", prefix, i))
	}
	return out
}

// 100 train images, 10 of which also appear in a 100-image test split.
func TestDetectTrainTestLeakIsError(t *testing.T) {
	train := leakage.Split{Name: "train", FileNames: names("img", 0, 100)}
	test := leakage.Split{Name: "test", FileNames: append(names("img", 90, 100), names("test", 0, 90)...)}

	f, ok := leakage.Detect(train, test, leakage.DefaultThresholds)
	if !ok {
		t.Fatal("expected leakage")
	}
	if len(f.Leaked) != 10 {
		t.Errorf("leaked = %d, want 10", len(f.Leaked))
	}
	if f.Severity != diag.SeverityError {
		t.Errorf("severity = %s, want error", f.Severity)
	}
	d := f.Diagnostic()
	if !strings.Contains(d.Text, "as 10 images") || !strings.Contains(d.Text, "10.0%") {
		t.Errorf("message = %q", d.Text)
	}
	if len(f.LogLines()) != 10 {
		t.Errorf("log lines = %d, want 10", len(f.LogLines()))
	}
}

func TestDetectSeverityRules(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		leaked  int
		size    int
		want    diag.Severity
		smaller string
	}{
		{"train under threshold", "train", "validation", 3, 100, diag.SeverityNote, "validation"},
		{"train over threshold", "Train", "validation", 4, 100, diag.SeverityError, "validation"},
		{"test/val under threshold", "test", "validation", 5, 100, diag.SeverityNote, "validation"},
		{"test/val over threshold", "test", "val", 6, 100, diag.SeverityError, "val"},
		{"unrelated names", "test", "holdout", 50, 100, diag.SeverityNote, "holdout"},
		{"substring does not count", "trainval", "test", 50, 100, diag.SeverityNote, "test"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := leakage.Split{Name: tc.a, FileNames: names("x", 0, tc.size)}
			b := leakage.Split{Name: tc.b, FileNames: append(names("x", 0, tc.leaked), names("y", tc.leaked, tc.size)...)}
			f, ok := leakage.Detect(a, b, leakage.DefaultThresholds)
			if !ok {
				t.Fatal("expected leakage")
			}
			if f.Severity != tc.want {
				t.Errorf("severity = %s, want %s (ratio %v)", f.Severity, tc.want, f.Ratio)
			}
			if f.Smaller != tc.smaller {
				t.Errorf("smaller = %s, want %s", f.Smaller, tc.smaller)
			}
		})
	}
}

func TestDetectMeasuresAgainstSmallerSplit(t *testing.T) {
	a := leakage.Split{Name: "train", FileNames: names("x", 0, 1000)}
	b := leakage.Split{Name: "test", FileNames: names("x", 0, 10)}
	f, ok := leakage.Detect(a, b, leakage.DefaultThresholds)
	if !ok {
		t.Fatal("expected leakage")
	}
	if f.Smaller != "test" || f.Ratio != 1 {
		t.Errorf("smaller = %s ratio = %v", f.Smaller, f.Ratio)
	}
}

func TestDetectNoLeak(t *testing.T) {
	a := leakage.Split{Name: "train", FileNames: []string{"a.jpg"}}
	b := leakage.Split{Name: "test", FileNames: []string{"b.jpg"}}
	if _, ok := leakage.Detect(a, b, leakage.DefaultThresholds); ok {
		t.Error("expected no leakage")
	}
}

func TestPercent(t *testing.T) {
	tests := map[float64]string{
		0.1:      "10.0",
		0.12346:  "12.35",
		1:        "100.0",
		0.005:    "0.5",
		1.0 / 3.: "33.33",
	}
	for in, want := range tests {
		if got := leakage.Percent(in); got != want {
			t.Errorf("Percent(%v) = %q, want %q", in, got, want)
		}
	}
}
