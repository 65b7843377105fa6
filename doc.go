// Package jcl runs programs written in JCL, a small programming language
// whose keywords are Japanese, by rewriting them into C, compiling the result
// with an external C compiler and executing the binary under strict time
// limits.
//
// # Quick Start
//
//	tr := transpile.New(transpile.DefaultTables())
//	sup := sandbox.New(sandbox.WithCompiler("gcc"))
//	p := jcl.NewPipeline(tr, sup)
//
//	out := p.Run(ctx, jcl.RunRequest{Code: `主関数() { 表示("Hello改行"); 戻る 0; }`})
//	// out.OK == true, out.Stage == "run", out.Stdout == "Hello\n"
//
// # Core Interfaces
//
// The root package defines the contracts that the subpackages implement:
//
//   - [Transpiler]: source text to C text (package transpile)
//   - [Runner]: compile and execute C text (package sandbox)
//   - [HistoryStore]: run history (store/sqlite, store/postgres)
//   - [ArtifactStore]: archived C text and outcomes (store/objectstore)
//   - [Tracer]: spans around pipeline stages (package observer)
//
// Every call produces an [Outcome] tagged with the [Stage] at which it was
// decided. Failures never escape as errors from [Pipeline.Run]; they are
// reported in the Outcome.
package jcl
