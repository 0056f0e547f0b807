package mcpserver

// Tool descriptions tell the model what each tool does, when to call it
// and how to read what comes back.

func describeAnalyzeFlow() string {
	return `Runs path-sensitive data-flow analysis over C# methods and reports likely bugs.

USE WHEN:
- Reviewing a change for null dereferences before merging
- Looking for conditions that can never be false (or never true)
- Finding assignments whose value is never read

INTERPRETING RESULTS:
- null-dereference (error): a member is accessed on a value that is null on at least one path
- constant-condition (warning): every explored path took the same branch of the condition
- dead-store (info): the assigned value is overwritten or dropped before any read
- exceeded methods hit an exploration budget; their findings are partial, absence of findings proves nothing
- generated files (designer files, *.g.cs, <auto-generated> headers) are skipped unless configured otherwise

METRICS RETURNED:
- Per-file: methods with block count, cyclomatic number, steps and states explored
- Per-finding: rule, severity, file, line, column, method, message
- Summary: files, methods, findings by rule, generated files, methods over budget`
}

func describeBuildCFG() string {
	return `Builds the control-flow graph of one C# method.

USE WHEN:
- Explaining which paths a method can take
- Checking where a loop starts or which blocks a branch guards
- Understanding why a flow finding was reported

INTERPRETING RESULTS:
- Blocks are listed entry first and exit last; the exit has no instructions
- BinaryBranch blocks list the true successor first and the false successor second
- Cyclomatic number = edges - blocks + 2; above 10 the method is hard to test
- Loops are strongly connected sets of blocks

METRICS RETURNED:
- Per-block: id, kind, instructions, branch condition, successors
- Graph: entry, exit, edge count, cyclomatic number, loops`
}

func describeLiveness() string {
	return `Computes which local variables and parameters are live at the start and end of each block of a C# method.

USE WHEN:
- Checking whether an assignment can ever be observed
- Finding variables captured by lambdas or local functions
- Explaining a dead-store finding

INTERPRETING RESULTS:
- A variable is live at a point when some path from there reads it before writing it
- Captured variables are treated as live everywhere
- Fields, properties and out-of-method state are never tracked

METRICS RETURNED:
- Per-block: live-in and live-out variable names
- Captured variables and the number of fixed-point passes`
}
