// Command consolitec compiles a single C source file to assembly text
// for the stack-machine target.
//
// Usage:
//
//	consolitec [-dump-tokens] [-dump-ir] <source.c> <dest.asm>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"consolitec/pkg/compiler"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("consolitec", flag.ContinueOnError)
	dumpTokens := fs.Bool("dump-tokens", false, "print every lexed atom to stderr before parsing")
	dumpIR := fs.Bool("dump-ir", false, "print the parsed program IR to stderr before code generation")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: consolitec [-dump-tokens] [-dump-ir] <source.c> <dest.asm>")
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	srcPath, destPath := fs.Arg(0), fs.Arg(1)

	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "consolitec:", err)
		return 1
	}

	if *dumpTokens {
		tz := compiler.NewTokenizer(src)
		for {
			a := tz.Consume()
			if a.Text == "" {
				break
			}
			fmt.Fprintf(os.Stderr, "%4d %q\n", a.Line, a.Text)
		}
	}

	prog, diag := compiler.NewParser(src).Parse()
	for _, d := range diag.All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if diag.HasErrors() {
		return 1
	}

	if *dumpIR {
		spew.Fdump(os.Stderr, prog)
	}

	genDiag, err := compiler.GenerateFile(prog, destPath)
	for _, d := range genDiag.All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "consolitec:", err)
		return 1
	}
	if genDiag.HasErrors() {
		return 1
	}
	return 0
}
