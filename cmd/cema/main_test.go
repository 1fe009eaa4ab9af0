package main

import (
	"bytes"
	"flag"
	"path/filepath"
	"reflect"
	"testing"

	"cema-attack/capture"
)

func TestParseCounts(t *testing.T) {
	got, err := parseCounts("5, 50,,200")
	if err != nil {
		t.Fatalf("parseCounts: %v", err)
	}
	if want := []int{5, 50, 200}; !reflect.DeepEqual(got, want) {
		t.Fatalf("parseCounts=%v want %v", got, want)
	}
	for _, bad := range []string{"", ",", "5,x", "0", "-3"} {
		if _, err := parseCounts(bad); err == nil {
			t.Errorf("parseCounts(%q) accepted", bad)
		}
	}
}

func parseScenarioFlags(t *testing.T, args ...string) *scenarioFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	sf := addScenarioFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return sf
}

func TestScenarioFromFlags(t *testing.T) {
	sc, err := parseScenarioFlags(t, "-key", "0a1b2c", "-seed", "5", "-n", "40").scenario()
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	if !bytes.Equal(sc.Key, []byte{0x0a, 0x1b, 0x2c}) {
		t.Fatalf("key=%x want 0a1b2c", sc.Key)
	}
	if sc.Params.KeyLength != 3 || sc.Plaintexts.Len() != 40 {
		t.Fatalf("key length %d, %d plaintexts", sc.Params.KeyLength, sc.Plaintexts.Len())
	}

	a, err := parseScenarioFlags(t, "-seed", "9").scenario()
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	b, _ := parseScenarioFlags(t, "-seed", "9").scenario()
	if !bytes.Equal(a.Key, b.Key) || len(a.Key) != 4 {
		t.Fatalf("random keys %x and %x for the same seed", a.Key, b.Key)
	}
}

func TestScenarioFlagsRejects(t *testing.T) {
	cases := map[string][]string{
		"bad hex":        {"-key", "zz"},
		"negative n":     {"-n", "-1"},
		"negative noise": {"-noise", "-4"},
		"key too long":   {"-key", "0102030405"},
		"missing params": {"-params", filepath.Join(t.TempDir(), "none.json")},
	}
	for name, args := range cases {
		if _, err := parseScenarioFlags(t, args...).scenario(); err == nil {
			t.Errorf("%s: accepted %v", name, args)
		}
	}
}

func TestSimulateThenAttackCapture(t *testing.T) {
	sc, err := parseScenarioFlags(t, "-key", "deadbeef", "-seed", "3").scenario()
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	c, err := capture.FromMatrices(sc.Key, sc.Plaintexts, sc.Traces)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "run.json.gz")
	if err := c.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, known, err := attackCapture(path, 0, 2)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !bytes.Equal(known, sc.Key) {
		t.Fatalf("recorded key=%x want %x", known, sc.Key)
	}
	if got := correctBytes(res.Key, known); got != 4 {
		t.Fatalf("recovered %x, %d/4 bytes correct", res.Key, got)
	}

	res, _, err = attackCapture(path, 2, 1)
	if err != nil {
		t.Fatalf("attack keylen 2: %v", err)
	}
	if len(res.Key) != 2 || !bytes.Equal(res.Key, sc.Key[:2]) {
		t.Fatalf("keylen 2 recovered %x", res.Key)
	}
	if _, _, err := attackCapture(path, -1, 1); err == nil {
		t.Fatal("negative keylen accepted")
	}
}

func TestCorrectBytes(t *testing.T) {
	if got := correctBytes([]byte{1, 2, 3}, []byte{1, 0, 3}); got != 2 {
		t.Fatalf("correctBytes=%d want 2", got)
	}
	if got := correctBytes([]byte{1, 2, 3}, []byte{1}); got != 1 {
		t.Fatalf("short known key: correctBytes=%d want 1", got)
	}
}
