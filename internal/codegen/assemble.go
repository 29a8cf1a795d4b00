package codegen

// program is generated code broken into its logical blocks.
//
// Blocks are always assembled in the same order, any of them may be empty.
type program struct {
	FileName     string   // Overrides the default file name
	TestFileName string   // Name of the test file
	Preamble     Block    // Shebang, package clause, opening tag and the intro comment
	Imports      Block    // Imports, requires and uses
	Types        Block    // Model types and error types
	Helpers      Block    // Retry and other helper functions
	Main         Block    // The request function itself
	Entry        Block    // Runs the request function when the file is executed
	Tests        Block    // Contents of the test file
	Deps         []string // Dependencies needed on top of the target's own
}

// Block assembles the program, everything but the tests.
func (p program) Block() Block {
	return join(p.Preamble, p.Imports, p.Types, p.Helpers, p.Main, p.Entry)
}

// function is a request function broken into its logical blocks.
//
// The body is always assembled as build, execute, check then handle. If there is
// an error handling guard the body is wrapped in it, and the whole thing is nested
// one level inside the last line of Open.
type function struct {
	Guard   func(body Block) Block // Wraps the body in the error handling strategy, nil for none
	Open    Block                  // Signature, and anything else the body is nested in
	Build   Block                  // Builds the request
	Execute Block                  // Sends it
	Check   Block                  // Checks the response status
	Handle  Block                  // Handles the response
	Close   Block                  // Closes everything opened by Open
}

// Block assembles the function.
func (f function) Block() Block {
	body := join(f.Build, f.Execute, f.Check, f.Handle)
	if f.Guard != nil {
		body = f.Guard(body)
	}

	depth := 0
	if n := len(f.Open); n != 0 {
		depth = f.Open[n-1].Depth + 1
	}

	out := make(Block, 0, len(f.Open)+len(body)+len(f.Close))
	out = append(out, f.Open...)
	out = append(out, body.Indent(depth)...)
	out = append(out, f.Close...)

	return out
}
