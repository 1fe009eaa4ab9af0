package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"cema-attack/capture"
	"cema-attack/cpa"
	"cema-attack/prof"
	"cema-attack/rng"
	"cema-attack/synth"
)

func usage() {
	fmt.Println(`usage: cema [glog flags] <simulate|attack|selftest|sweep> [options]

Subcommands:
  simulate  Generate plaintexts and synthetic EM traces for a key and write a capture
            Flags:
              -params <file>     JSON parameter file (default: 4-byte noiseless setup)
              -key    <hex>      real key (default: random from -seed)
              -seed   <uint>     random seed (default: 1)
              -n      <int>      override num_plaintexts
              -noise  <int>      override noise_level
              -out    <file>     capture file to write (required)

  attack    Recover the key from a capture file
            Flags:
              -in      <file>    capture file (required)
              -keylen  <int>     key bytes to attack (default: recorded key or plaintext width)
              -workers <int>     worker goroutines (default: GOMAXPROCS)
              -timings           print stage timings

  selftest  Simulate and attack in memory, check the recovered key
            Flags: -params, -key, -seed, -n, -noise as for simulate; -timings

  sweep     Recovery accuracy against the number of plaintexts
            Flags:
              -noise    <int>    noise level (default: 50)
              -counts   <list>   comma-separated plaintext counts (default: 5,50,200,2000)
              -trials   <int>    trials per count (default: 5)
              -keylen   <int>    key bytes (default: 4)
              -duration <int>    samples per trace (default: 8)
              -seed     <uint>   random seed (default: 1)

glog flags go before the subcommand, e.g. cema -v=1 attack -in capture.json.gz`)
	os.Exit(1)
}

func main() {
	flag.Set("logtostderr", "true")
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}
	switch args[0] {
	case "simulate":
		runSimulate(args[1:])
	case "attack":
		runAttack(args[1:])
	case "selftest":
		runSelftest(args[1:])
	case "sweep":
		runSweep(args[1:])
	default:
		usage()
	}
}

type scenarioFlags struct {
	params *string
	key    *string
	seed   *uint64
	n      *int
	noise  *int
}

func addScenarioFlags(fs *flag.FlagSet) *scenarioFlags {
	return &scenarioFlags{
		params: fs.String("params", "", "JSON parameter file"),
		key:    fs.String("key", "", "real key in hex (default: random)"),
		seed:   fs.Uint64("seed", 1, "random seed"),
		n:      fs.Int("n", 0, "override num_plaintexts"),
		noise:  fs.Int("noise", 0, "override noise_level"),
	}
}

func (f *scenarioFlags) scenario() (*synth.Scenario, error) {
	if *f.n < 0 {
		return nil, fmt.Errorf("-n=%d must be >= 0", *f.n)
	}
	if *f.noise < 0 {
		return nil, fmt.Errorf("-noise=%d must be >= 0", *f.noise)
	}
	p := cpa.DefaultParams()
	if *f.params != "" {
		loaded, err := cpa.LoadParamsFromFile(*f.params)
		if err != nil {
			return nil, fmt.Errorf("load params: %w", err)
		}
		p = *loaded
	}
	if *f.n > 0 {
		p.NumPlainTexts = *f.n
	}
	if *f.noise > 0 {
		p.NoiseLevel = *f.noise
	}

	var key []byte
	if *f.key != "" {
		var err error
		if key, err = hex.DecodeString(*f.key); err != nil {
			return nil, fmt.Errorf("parse key %q: %w", *f.key, err)
		}
		p.KeyLength = len(key)
	} else {
		key = synth.RandomKey(p.KeyLength, rng.NewSource(*f.seed).Derive("key"))
	}

	sc, err := synth.NewScenario(p, key, *f.seed)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	glog.Infof("simulated %d executions, %d samples each, noise level %d",
		p.NumPlainTexts, p.TraceDuration, p.NoiseLevel)
	return sc, nil
}

func (f *scenarioFlags) build() *synth.Scenario {
	sc, err := f.scenario()
	if err != nil {
		glog.Exit(err)
	}
	return sc
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	sf := addScenarioFlags(fs)
	out := fs.String("out", "", "capture file to write")
	fs.Parse(args)
	if *out == "" {
		glog.Exit("simulate: -out is required")
	}

	sc := sf.build()
	c, err := capture.FromMatrices(sc.Key, sc.Plaintexts, sc.Traces)
	if err != nil {
		glog.Exitf("build capture: %v", err)
	}
	if err := c.Save(*out); err != nil {
		glog.Exitf("save capture: %v", err)
	}
	fmt.Printf("key:    %x\n", sc.Key)
	fmt.Printf("traces: %d -> %s\n", len(c), *out)
}

func runAttack(args []string) {
	fs := flag.NewFlagSet("attack", flag.ExitOnError)
	in := fs.String("in", "", "capture file")
	keyLen := fs.Int("keylen", 0, "key bytes to attack")
	workers := fs.Int("workers", 0, "worker goroutines")
	timings := fs.Bool("timings", false, "print stage timings")
	fs.Parse(args)
	if *in == "" {
		glog.Exit("attack: -in is required")
	}
	if *timings {
		prof.Enable()
	}

	start := time.Now()
	res, known, err := attackCapture(*in, *keyLen, *workers)
	if err != nil {
		glog.Exit(err)
	}
	report(res, known, time.Since(start))
	if *timings {
		printTimings()
	}
}

// attackCapture recovers keyLen key bytes from the capture at path. keyLen 0
// attacks the recorded key length, or the full plaintext width when the
// capture records no key. The recorded key is returned alongside the result.
func attackCapture(path string, keyLen, workers int) (*cpa.Result, []byte, error) {
	if keyLen < 0 {
		return nil, nil, fmt.Errorf("-keylen=%d must be >= 0", keyLen)
	}
	c, err := capture.LoadCapture(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load capture: %w", err)
	}
	pts := c.Plaintexts()
	traces, err := c.TraceMatrix()
	if err != nil {
		return nil, nil, fmt.Errorf("trace matrix: %w", err)
	}
	known := c.Key()
	if known == nil {
		glog.Warningf("%s records no common key; recovered key is unchecked", path)
	}
	n := keyLen
	if n == 0 {
		n = len(known)
	}
	if n == 0 {
		n = pts.Width()
	}
	res, err := cpa.Attack(pts, traces, n, cpa.WithWorkers(workers))
	if err != nil {
		return nil, nil, fmt.Errorf("attack: %w", err)
	}
	return res, known, nil
}

func runSelftest(args []string) {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)
	sf := addScenarioFlags(fs)
	timings := fs.Bool("timings", false, "print stage timings")
	fs.Parse(args)
	if *timings {
		prof.Enable()
	}

	sc := sf.build()
	start := time.Now()
	res, err := sc.Attack()
	if err != nil {
		glog.Exitf("attack: %v", err)
	}
	report(res, sc.Key, time.Since(start))
	if *timings {
		printTimings()
	}
	if sc.Score(res) != len(sc.Key) {
		os.Exit(2)
	}
}

func runSweep(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	noise := fs.Int("noise", 50, "noise level")
	countsFlag := fs.String("counts", "5,50,200,2000", "comma-separated plaintext counts")
	trials := fs.Int("trials", 5, "trials per count")
	keyLen := fs.Int("keylen", 4, "key bytes")
	duration := fs.Int("duration", 8, "samples per trace")
	seed := fs.Uint64("seed", 1, "random seed")
	workers := fs.Int("workers", 0, "worker goroutines")
	fs.Parse(args)

	counts, err := parseCounts(*countsFlag)
	if err != nil {
		glog.Exitf("sweep: %v", err)
	}
	base := cpa.Params{
		PlainTextLength: *keyLen,
		NumPlainTexts:   1,
		KeyLength:       *keyLen,
		TraceDuration:   *duration,
		NoiseLevel:      *noise,
		Workers:         *workers,
	}
	points, err := synth.Sweep(base, counts, *trials, *seed)
	if err != nil {
		glog.Exitf("sweep: %v", err)
	}
	fmt.Printf("noise=%d keylen=%d duration=%d trials=%d\n", *noise, *keyLen, *duration, *trials)
	fmt.Printf("%10s  %13s  %8s  %11s\n", "plaintexts", "byte accuracy", "key rate", "mean margin")
	for _, p := range points {
		fmt.Printf("%10d  %13.3f  %8.3f  %11.4f\n", p.NumPlainTexts, p.ByteAccuracy, p.KeyRate, p.MeanMargin)
	}
}

func parseCounts(s string) ([]int, error) {
	var counts []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", part, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("invalid count %q: must be > 0", part)
		}
		counts = append(counts, n)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no counts in %q", s)
	}
	return counts, nil
}

func report(res *cpa.Result, known []byte, elapsed time.Duration) {
	fmt.Printf("%4s  %5s  %4s  %11s  %8s\n", "byte", "guess", "t", "correlation", "margin")
	for _, b := range res.Bytes {
		mark := ""
		if b.Index < len(known) && known[b.Index] != b.KeyByte {
			mark = fmt.Sprintf("  (want %02x)", known[b.Index])
		}
		fmt.Printf("%4d  %5s  %4d  %11.4f  %8.4f%s\n", b.Index, fmt.Sprintf("%02x", b.KeyByte), b.TimeIndex, b.Correlation, b.Margin, mark)
	}
	fmt.Printf("recovered key: %s\n", res)
	if len(known) > 0 {
		fmt.Printf("correct bytes: %d/%d\n", correctBytes(res.Key, known), len(res.Key))
	}
	fmt.Printf("elapsed: %.2fs\n", elapsed.Seconds())
}

// correctBytes counts the positions where got matches the recorded key.
func correctBytes(got, known []byte) int {
	hits := 0
	for j, b := range got {
		if j < len(known) && known[j] == b {
			hits++
		}
	}
	return hits
}

func printTimings() {
	for _, t := range prof.Totals(prof.SnapshotAndReset()) {
		fmt.Printf("  %-20s %4d x  %v\n", t.Stage, t.Count, t.Dur)
	}
}
