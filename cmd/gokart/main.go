// Command gokart runs compiled gokart bytecode.
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/gc"
	"github.com/kristofer/gokart/pkg/heap"
	"github.com/kristofer/gokart/pkg/vm"
)

var (
	gcThresholdFlag = cli.IntFlag{
		Name:  "gc-threshold",
		Usage: "heap object count that triggers a collection cycle",
		Value: gc.DefaultThreshold,
	}
	envFlag = cli.StringFlag{
		Name:  "env",
		Usage: "JSON file describing the initial env (defaults to Empty)",
	}

	runCommand = cli.Command{
		Name:      "run",
		Usage:     "run a compiled bytecode file",
		ArgsUsage: "<file.gkc>",
		Flags:     []cli.Flag{gcThresholdFlag, envFlag},
		Action:    runAction,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "gokart"
	app.Usage = "run gokart bytecode"
	app.Commands = []cli.Command{runCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gokart:", err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return errors.New("run: missing <file.gkc> argument")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "run: opening %s", path)
	}
	code, err := bytecode.Decode(f)
	f.Close()
	if err != nil {
		return errors.Wrapf(err, "run: decoding %s", path)
	}

	m := vm.New(vm.WithGCThreshold(ctx.Int(gcThresholdFlag.Name)))

	if envPath := ctx.String(envFlag.Name); envPath != "" {
		data, err := ioutil.ReadFile(envPath)
		if err != nil {
			return errors.Wrapf(err, "run: reading %s", envPath)
		}
		ref, err := decodeEnvValue(data, m.Heap())
		if err != nil {
			return errors.Wrapf(err, "run: decoding %s", envPath)
		}
		m.SetInitialEnv(ref)
	}

	result, err := m.Run(code)
	if err != nil {
		if rerr, ok := err.(*vm.RuntimeError); ok {
			return errors.New(rerr.Error())
		}
		return err
	}

	fmt.Fprintln(os.Stdout, formatValue(result, m.Heap()))
	return nil
}

// envValueDTO is the on-disk shape of a --env file: a tree of heap
// values, built bottom-up into the VM's own heap before Run starts, so
// a caller can hand the program an initial env richer than Empty
// without the VM exposing its bytecode loader as a general value
// constructor.
type envValueDTO struct {
	Kind  string       `json:"kind"`
	Int   int64        `json:"int,omitempty"`
	Str   string       `json:"str,omitempty"`
	Left  *envValueDTO `json:"left,omitempty"`
	Right *envValueDTO `json:"right,omitempty"`
}

func decodeEnvValue(data []byte, h *heap.Heap) (heap.Ref, error) {
	var dto envValueDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return 0, errors.Wrap(err, "malformed env JSON")
	}
	return buildEnvValue(&dto, h)
}

func buildEnvValue(dto *envValueDTO, h *heap.Heap) (heap.Ref, error) {
	switch dto.Kind {
	case "Empty":
		return h.Alloc(heap.Value{Kind: heap.Empty}), nil
	case "Int":
		return h.Alloc(heap.Value{Kind: heap.Int, Int: dto.Int}), nil
	case "Str":
		return h.Alloc(heap.Value{Kind: heap.Str, Str: dto.Str}), nil
	case "Pair":
		if dto.Left == nil || dto.Right == nil {
			return 0, errors.New("Pair env node requires left and right")
		}
		left, err := buildEnvValue(dto.Left, h)
		if err != nil {
			return 0, err
		}
		right, err := buildEnvValue(dto.Right, h)
		if err != nil {
			return 0, err
		}
		return h.Alloc(heap.Value{Kind: heap.Pair, A: left, B: right}), nil
	default:
		return 0, errors.Errorf("unknown env value kind %q", dto.Kind)
	}
}

// formatValue renders a heap.Value for the user, following Pair chains
// and Tagged payloads so a final env prints as a readable tree rather
// than a bare Ref.
func formatValue(v heap.Value, h *heap.Heap) string {
	switch v.Kind {
	case heap.Empty:
		return "()"
	case heap.Int:
		return fmt.Sprintf("%d", v.Int)
	case heap.Double:
		return fmt.Sprintf("%g", v.Double)
	case heap.Str:
		return fmt.Sprintf("%q", v.Str)
	case heap.VectorInt:
		return fmt.Sprintf("<vector len=%d>", v.Vector.Len())
	case heap.Label:
		return fmt.Sprintf("<label %d>", v.LabelVal)
	case heap.Pair:
		return fmt.Sprintf("(%s . %s)", formatValue(h.Get(v.A), h), formatValue(h.Get(v.B), h))
	case heap.Tagged:
		return fmt.Sprintf("<%d %s>", v.Tag, formatValue(h.Get(v.A), h))
	case heap.Closure:
		return fmt.Sprintf("<closure @%d>", v.LabelVal)
	default:
		return fmt.Sprintf("<unknown kind %v>", v.Kind)
	}
}
