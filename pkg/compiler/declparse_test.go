package compiler

import "testing"

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	prog, diag := NewParser([]byte(src)).Parse()
	if diag.HasErrors() {
		t.Fatalf("unexpected errors: %v", diag.All())
	}
	return prog
}

func TestParseGlobalsAndMain(t *testing.T) {
	prog := parseOK(t, `
		uint16 x = 5;
		uint16[3] arr = { 1, 2, 3 };
		void main() {
			x = arr[0];
		}
	`)
	if len(prog.Globals) != 2 {
		t.Fatalf("expected 2 globals, got %d", len(prog.Globals))
	}
	if prog.Globals[0].Var.Label != "g_x" {
		t.Errorf("expected global label g_x, got %q", prog.Globals[0].Var.Label)
	}
	if prog.Globals[1].Var.Type.ArrayLen != 3 {
		t.Errorf("expected array length 3, got %d", prog.Globals[1].Var.Type.ArrayLen)
	}
	if len(prog.Functions) != 1 || prog.Functions[0].Name != "main" {
		t.Fatalf("expected a single main function, got %+v", prog.Functions)
	}
}

func TestParseForwardReferences(t *testing.T) {
	// a global's initializer may reference a global declared later, and
	// a call may reference a function declared later — spec.md §4.6.
	prog := parseOK(t, `
		uint16 a = b + 1;
		uint16 b = 10;
		void main() {
			helper();
		}
		void helper() {
		}
	`)
	if prog.Globals[0].Init != 11 {
		t.Errorf("expected a to fold to 11, got %d", prog.Globals[0].Init)
	}
}

func TestParseMissingMainIsError(t *testing.T) {
	_, diag := NewParser([]byte(`uint16 x = 1;`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected an error for a program with no main")
	}
}

func TestParseMainWithWrongSignatureIsError(t *testing.T) {
	_, diag := NewParser([]byte(`uint16 main() { return 0; }`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected an error: main must be 'void main()'")
	}
}

func TestParseDuplicateNameIsError(t *testing.T) {
	_, diag := NewParser([]byte(`
		uint16 x;
		uint16 x;
		void main() {}
	`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected a duplicate-declaration error")
	}
}

func TestParseUndeclaredFunctionCallIsError(t *testing.T) {
	_, diag := NewParser([]byte(`
		void main() {
			missing();
		}
	`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected a call to an undeclared function to be an error")
	}
}

func TestParseGotoWithoutLabelIsError(t *testing.T) {
	_, diag := NewParser([]byte(`
		void main() {
			goto nowhere;
		}
	`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected goto to an undeclared label to be an error")
	}
}

func TestParseBreakOutsideLoopIsError(t *testing.T) {
	_, diag := NewParser([]byte(`
		void main() {
			break;
		}
	`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected break outside a loop to be an error")
	}
}

func TestParseBuiltinsArePreregistered(t *testing.T) {
	prog := parseOK(t, `
		void main() {
			uint16 t = TIME();
			uint16 k = INPUT(0);
			uint16 r = RND();
			COLOR(1);
			PIXEL(1, 2);
			TIMERST();
		}
	`)
	// builtins are filtered out of prog.Functions (spec.md §4.4): only
	// user-defined functions should appear in the final program.
	for _, fn := range prog.Functions {
		if fn.Builtin != NotBuiltin {
			t.Errorf("builtin %q leaked into prog.Functions", fn.Name)
		}
	}
}

func TestParseArrayParamIsError(t *testing.T) {
	_, diag := NewParser([]byte(`
		void f(uint16[2] a) {}
		void main() {}
	`)).Parse()
	if !diag.HasErrors() {
		t.Fatalf("expected an array parameter to be an error")
	}
}

func TestParseVoidFunctions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name: "bare void call as a statement",
			input: `
				void myFunc() {}
				void main() {
					myFunc();
				}
			`,
			wantErr: false,
		},
		{
			name: "void function implicit return",
			input: `
				void myFunc() {
					uint16 x;
				}
				void main() {}
			`,
			wantErr: false,
		},
		{
			name: "void function returning a value",
			input: `
				void myFunc() {
					return 1;
				}
				void main() {}
			`,
			wantErr: true,
		},
		{
			name: "non-void function with an empty return",
			input: `
				uint16 myFunc() {
					return;
				}
				void main() {}
			`,
			wantErr: true,
		},
		{
			name: "non-void function returning a value",
			input: `
				uint16 myFunc() {
					return 1;
				}
				void main() {}
			`,
			wantErr: false,
		},
		{
			name: "void call used as an assignment's rhs",
			input: `
				void main() {
					uint16 x;
					x = COLOR(5);
				}
			`,
			wantErr: true,
		},
		{
			name: "void call used as an arithmetic operand",
			input: `
				void main() {
					uint16 x;
					x = 1 + TIMERST();
				}
			`,
			wantErr: true,
		},
		{
			name: "void call used as another call's argument",
			input: `
				uint16 add(uint16 a, uint16 b) { return a + b; }
				void main() {
					uint16 x;
					x = add(COLOR(5), 1);
				}
			`,
			wantErr: true,
		},
		{
			name: "void call used as an if-condition",
			input: `
				void main() {
					if (TIMERST()) {}
				}
			`,
			wantErr: true,
		},
		{
			name: "void call discarded in a for-loop's update clause",
			input: `
				void main() {
					uint16 i;
					for (i = 0; i < 10; TIMERST()) {}
				}
			`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diag := NewParser([]byte(tt.input)).Parse()
			if diag.HasErrors() != tt.wantErr {
				t.Errorf("HasErrors() = %v, wantErr %v (diagnostics: %v)", diag.HasErrors(), tt.wantErr, diag.All())
			}
		})
	}
}
