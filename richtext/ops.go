package richtext

// OpType names one kind of recorded mutation.
type OpType string

const (
	OpHydrate     OpType = "HYDRATE"
	OpInsertNode  OpType = "INSERT_NODE"
	OpInsertText  OpType = "INSERT_TEXT"
	OpDeleteRange OpType = "DELETE_RANGE"
	OpFormat      OpType = "FORMAT"
)

// Operation is one entry of the document's mutation log. Path and Position
// locate where the mutation started; NodeData carries inserted markup or text.
type Operation struct {
	Type     OpType   `json:"type"`
	Path     NodePath `json:"path,omitempty"`
	Position int      `json:"position"`
	Command  Command  `json:"command,omitempty"`
	Value    string   `json:"value,omitempty"`
	NodeData string   `json:"node_data,omitempty"`
}

func (d *Document) record(op Operation) {
	d.ops = append(d.ops, op)
}

// Ops returns a copy of the operation log, oldest first.
func (d *Document) Ops() []Operation {
	out := make([]Operation, len(d.ops))
	copy(out, d.ops)
	return out
}
