package compiler

import "os"

// Compile reads src from disk, parses and validates it, and writes the
// generated assembly listing to destPath. It returns the diagnostics
// produced by parsing (which may hold warnings even on success) and an
// error for anything that kept a listing from being written at all —
// a read failure, a write failure, or diag.HasErrors() after parsing.
func Compile(srcPath, destPath string) (*Diagnostics, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, err
	}

	prog, diag := NewParser(src).Parse()
	if diag.HasErrors() {
		return diag, errCompileFailed
	}

	genDiag, err := GenerateFile(prog, destPath)
	if err != nil {
		return diag, err
	}
	for _, d := range genDiag.All() {
		diag.items = append(diag.items, d)
	}
	return diag, nil
}

var errCompileFailed = compileError("compilation failed")

type compileError string

func (e compileError) Error() string { return string(e) }
