package models

// BlockView is the printable form of a basic block.
type BlockView struct {
	ID           int      `json:"id" toon:"id"`
	Kind         string   `json:"kind" toon:"kind"`
	Instructions []string `json:"instructions,omitempty" toon:"instructions,omitempty"`
	Successors   []int    `json:"successors,omitempty" toon:"successors,omitempty"`
	// Branch is the condition tested by a binary branch block.
	Branch string `json:"branch,omitempty" toon:"branch,omitempty"`
}

// CFGView is the printable form of a control-flow graph.
type CFGView struct {
	File       string      `json:"file" toon:"file"`
	Method     string      `json:"method" toon:"method"`
	Entry      int         `json:"entry" toon:"entry"`
	Exit       int         `json:"exit" toon:"exit"`
	Blocks     []BlockView `json:"blocks" toon:"blocks"`
	Edges      int         `json:"edges" toon:"edges"`
	Cyclomatic int         `json:"cyclomatic" toon:"cyclomatic"`
	// Loops lists the block IDs of each strongly connected component with
	// more than one block or a self edge.
	Loops [][]int `json:"loops,omitempty" toon:"loops,omitempty"`
}

// BlockLiveness is the live-in and live-out sets of one block.
type BlockLiveness struct {
	ID      int      `json:"id" toon:"id"`
	Kind    string   `json:"kind" toon:"kind"`
	LiveIn  []string `json:"live_in" toon:"live_in"`
	LiveOut []string `json:"live_out" toon:"live_out"`
}

// LivenessView is the printable form of a liveness result.
type LivenessView struct {
	File     string          `json:"file" toon:"file"`
	Method   string          `json:"method" toon:"method"`
	Blocks   []BlockLiveness `json:"blocks" toon:"blocks"`
	Captured []string        `json:"captured,omitempty" toon:"captured,omitempty"`
	Passes   int             `json:"passes" toon:"passes"`
}

// BlockExploration summarizes the states that reached one block.
type BlockExploration struct {
	ID     int    `json:"id" toon:"id"`
	Kind   string `json:"kind" toon:"kind"`
	States int    `json:"states" toon:"states"`
	// Outcome is "true", "false", "both" or empty for branch blocks never
	// left and blocks that are not binary branches.
	Outcome string `json:"outcome,omitempty" toon:"outcome,omitempty"`
}

// ExplorationView is the printable form of a symbolic exploration.
type ExplorationView struct {
	File     string             `json:"file" toon:"file"`
	Method   string             `json:"method" toon:"method"`
	Steps    int                `json:"steps" toon:"steps"`
	States   int                `json:"states" toon:"states"`
	Exceeded bool               `json:"exceeded" toon:"exceeded"`
	Blocks   []BlockExploration `json:"blocks" toon:"blocks"`
}
