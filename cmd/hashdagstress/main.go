// Command hashdagstress repeatedly applies random edits to a VkHashDAG
// geometry+color pool pair, periodically running GC, until interrupted.
// It mirrors the onflow/atree teacher's cmd/stress harness: flag-driven
// parameters, a ticker-based status line, and a clean exit on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	hashdag "github.com/ttxian8/VkHashDAG"
)

const maxStatusLength = 128

func writeStatus(status string) {
	s := fmt.Sprintf("\r%s\r", strings.Repeat(" ", maxStatusLength))
	_, _ = io.WriteString(os.Stdout, s)
	_, _ = io.WriteString(os.Stdout, status)
}

type stressStatus struct {
	edits    atomic.Uint64
	gcRuns   atomic.Uint64
	nodeCost atomic.Uint64
}

func (s *stressStatus) Write() {
	writeStatus(fmt.Sprintf(
		"edits: %d, gc runs: %d, dirty node pages: %d",
		s.edits.Load(), s.gcRuns.Load(), s.nodeCost.Load(),
	))
}

func updateStatus(sigc <-chan os.Signal, status *stressStatus) {
	status.Write()
	ticker := time.NewTicker(3 * time.Second)
	for {
		select {
		case <-ticker.C:
			status.Write()
		case <-sigc:
			status.Write()
			fmt.Fprintf(os.Stdout, "\n")
			ticker.Stop()
			os.Exit(1)
		}
	}
}

func randomPoint(rng *rand.Rand, side uint32) [3]uint32 {
	return [3]uint32{
		uint32(rng.Int63n(int64(side))),
		uint32(rng.Int63n(int64(side))),
		uint32(rng.Int63n(int64(side))),
	}
}

func randomColor(rng *rand.Rand) hashdag.Color {
	return hashdag.Color{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256))}
}

func randomRadiusSq(rng *rand.Rand, side uint32) uint64 {
	r := uint64(rng.Int63n(int64(side/4) + 1))
	return r * r
}

func runEdit(rng *rand.Rand, engine *hashdag.Engine, nodePool *hashdag.NodePool, colorPool *hashdag.ColorPool, side uint32) error {
	center := randomPoint(rng, side)
	radiusSq := randomRadiusSq(rng, side)

	var editor interface{}
	switch rng.Intn(4) {
	case 0:
		lo := randomPoint(rng, side/2)
		hi := [3]uint32{lo[0] + side/4 + 1, lo[1] + side/4 + 1, lo[2] + side/4 + 1}
		editor = hashdag.AABBEditor{Min: lo, Max: hi, Color: randomColor(rng)}.WithColor()
	case 1:
		editor = hashdag.NewFillSphereEditor(center, radiusSq, randomColor(rng)).WithColor()
	case 2:
		editor = hashdag.NewDigSphereEditor(center, radiusSq)
	default:
		editor = hashdag.NewPaintSphereEditor(center, radiusSq, randomColor(rng))
	}

	result, err := engine.Edit(editor, nodePool, colorPool)
	if err != nil {
		return err
	}
	nodePool.SetRoot(result.NodeRoot)
	if result.HasColor {
		colorPool.SetRoot(result.ColorRoot)
	}
	return nil
}

func main() {
	var maxEdits uint64
	var gcEvery uint64
	var seedHex string
	var parallelism int

	flag.Uint64Var(&maxEdits, "maxedits", 0, "number of edits to apply before stopping (0 = run until interrupted)")
	flag.Uint64Var(&gcEvery, "gcevery", 200, "run GC every N edits (0 disables GC)")
	flag.StringVar(&seedHex, "seed", "", "seed for prng in hex (default is Unix time)")
	flag.IntVar(&parallelism, "parallelism", 8, "scheduler fan-out budget")
	flag.Parse()

	var seed int64
	if len(seedHex) != 0 {
		var err error
		seed, err = strconv.ParseInt(strings.ReplaceAll(seedHex, "0x", ""), 16, 64)
		if err != nil {
			panic("failed to parse seed flag (hex string)")
		}
	} else {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	nodeCfg := hashdag.DefaultNodePoolConfig()
	nodeCfg.LevelCount = 6
	nodeCfg.TopLevelCount = 1
	if err := nodeCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid node pool config: %s\n", err)
		os.Exit(1)
	}
	colorCfg := hashdag.DefaultColorPoolConfig()
	colorCfg.LeafLevel = nodeCfg.LeafLevel()
	if err := colorCfg.Validate(nodeCfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid color pool config: %s\n", err)
		os.Exit(1)
	}

	nodePool := hashdag.NewNodePool(nodeCfg)
	colorPool := hashdag.NewColorPool(colorCfg)
	scheduler := hashdag.NewScheduler(parallelism)
	engine := hashdag.NewEngine(scheduler, nodeCfg)
	gc := hashdag.NewGarbageCollector(scheduler, nodeCfg)

	status := &stressStatus{}
	go updateStatus(sigc, status)

	side := uint32(1) << uint(nodeCfg.VoxelLevel())

	var i uint64
	for maxEdits == 0 || i < maxEdits {
		if err := runEdit(rng, engine, nodePool, colorPool, side); err != nil {
			fmt.Fprintf(os.Stderr, "\nedit %d failed: %s\n", i, err)
			os.Exit(1)
		}
		status.edits.Add(1)

		if gcEvery != 0 && i != 0 && i%gcEvery == 0 {
			newNodes, err := gc.CollectNodes(nodePool)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\ngc failed: %s\n", err)
				os.Exit(1)
			}
			nodePool = newNodes
			status.gcRuns.Add(1)
		}
		status.nodeCost.Store(uint64(nodePool.Store().Stats().Dirty))
		i++
	}
	status.Write()
	fmt.Fprintf(os.Stdout, "\ncompleted %d edits\n", i)
}
