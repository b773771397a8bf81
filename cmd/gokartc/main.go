// Command gokartc compiles a JSON-encoded intermediate representation
// into gokart bytecode, and disassembles bytecode back into readable
// text.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/kristofer/gokart/pkg/bytecode"
	"github.com/kristofer/gokart/pkg/compiler"
	"github.com/kristofer/gokart/pkg/ir"
	"github.com/kristofer/gokart/pkg/irjson"
)

var (
	outputFlag = cli.StringFlag{
		Name:  "o",
		Usage: "output bytecode file (defaults to the input path with .gkc)",
	}

	compileCommand = cli.Command{
		Name:      "compile",
		Usage:     "compile a JSON IR expression into bytecode",
		ArgsUsage: "<ir.json>",
		Flags:     []cli.Flag{outputFlag},
		Action:    compileAction,
	}

	disassembleCommand = cli.Command{
		Name:      "disassemble",
		Usage:     "print the instructions in a bytecode file",
		ArgsUsage: "<file.gkc>",
		Action:    disassembleAction,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "gokartc"
	app.Usage = "compile and inspect gokart bytecode"
	app.Commands = []cli.Command{compileCommand, disassembleCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gokartc:", err)
		os.Exit(1)
	}
}

func compileAction(ctx *cli.Context) (err error) {
	inputPath := ctx.Args().First()
	if inputPath == "" {
		return errors.New("compile: missing <ir.json> argument")
	}

	outputPath := ctx.String(outputFlag.Name)
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	data, err := ioutil.ReadFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "compile: reading %s", inputPath)
	}

	exp, err := irjson.Decode(data)
	if err != nil {
		return errors.Wrapf(err, "compile: decoding %s", inputPath)
	}

	code, compileErr := compileSafely(exp)
	if compileErr != nil {
		return compileErr
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrapf(err, "compile: creating %s", outputPath)
	}
	defer out.Close()

	if err := bytecode.Encode(code, out); err != nil {
		return errors.Wrapf(err, "compile: writing %s", outputPath)
	}

	fmt.Fprintf(os.Stdout, "wrote %d instructions to %s\n", code.Len(), outputPath)
	return nil
}

// compileSafely recovers a *compiler.InvariantError panic and turns it
// into an ordinary error, since the IR handed to Compile is untrusted
// input from this command's perspective even though compiler.Compile
// itself assumes it has already been checked upstream.
func compileSafely(exp ir.Exp) (code *bytecode.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ierr, ok := r.(*compiler.InvariantError); ok {
				err = errors.Wrap(ierr, "compile: invalid IR")
				return
			}
			panic(r)
		}
	}()
	return compiler.Compile(exp), nil
}

func disassembleAction(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return errors.New("disassemble: missing <file.gkc> argument")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "disassemble: opening %s", path)
	}
	defer f.Close()

	code, err := bytecode.Decode(f)
	if err != nil {
		return errors.Wrapf(err, "disassemble: decoding %s", path)
	}

	fmt.Fprint(os.Stdout, code.String())
	return nil
}

func defaultOutputPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, ".json")
	return base + ".gkc"
}
