// Package compiler lexes, parses, and generates assembly for a small
// C subset targeting a fictional 16-register stack-machine ISA.
//
// Pipeline: C source → Tokenizer → Parser (prescan, global resolution,
// structural parse) → Program IR → CodeGen → assembly text
package compiler
