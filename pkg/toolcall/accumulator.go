package toolcall

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harun/mcplink/pkg/arguments"
)

// placeholderPrefix marks ids generated locally because the stream had none yet.
const placeholderPrefix = "call_"

// Function is the callable part of a tool call.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Ref is one tool call as requested by the model.
type Ref struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Delta is one streamed fragment of a tool call.
type Delta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Accumulator merges deltas by index. It is scoped to a single streamed response
// and is not safe for concurrent use.
type Accumulator struct {
	refs        map[int]*Ref
	args        map[int]*strings.Builder
	placeholder map[int]bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		refs:        make(map[int]*Ref),
		args:        make(map[int]*strings.Builder),
		placeholder: make(map[int]bool),
	}
}

// Ingest merges one fragment.
func (a *Accumulator) Ingest(d Delta) {
	ref, ok := a.refs[d.Index]
	if !ok {
		ref = &Ref{Index: d.Index, Type: "function", ID: d.ID}
		if ref.ID == "" {
			ref.ID = placeholderPrefix + uuid.NewString()
			a.placeholder[d.Index] = true
		}
		a.refs[d.Index] = ref
		a.args[d.Index] = &strings.Builder{}
	} else if d.ID != "" && a.placeholder[d.Index] {
		ref.ID = d.ID
		delete(a.placeholder, d.Index)
	}

	if d.Name != "" && ref.Function.Name == "" {
		ref.Function.Name = d.Name
	}
	if d.Arguments != "" {
		a.args[d.Index].WriteString(d.Arguments)
	}
}

// Len returns the number of distinct calls seen.
func (a *Accumulator) Len() int {
	return len(a.refs)
}

// Pending returns a snapshot of the call at index.
func (a *Accumulator) Pending(index int) (Ref, bool) {
	ref, ok := a.refs[index]
	if !ok {
		return Ref{}, false
	}
	out := *ref
	out.Function.Arguments = a.args[index].String()
	return out, true
}

// Ready reports whether the call at index has a name and decodable arguments so far.
func (a *Accumulator) Ready(index int) bool {
	ref, ok := a.Pending(index)
	if !ok || ref.Function.Name == "" {
		return false
	}
	if strings.TrimSpace(ref.Function.Arguments) == "" {
		return true
	}
	return arguments.CanParse(ref.Function.Arguments)
}

// Indices returns the stream indices seen so far in ascending order.
func (a *Accumulator) Indices() []int {
	indices := make([]int, 0, len(a.refs))
	for idx := range a.refs {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Drain returns every accumulated call in index order and resets the accumulator.
func (a *Accumulator) Drain() []Ref {
	indices := a.Indices()
	out := make([]Ref, 0, len(indices))
	for _, idx := range indices {
		ref, _ := a.Pending(idx)
		out = append(out, ref)
	}

	a.refs = make(map[int]*Ref)
	a.args = make(map[int]*strings.Builder)
	a.placeholder = make(map[int]bool)
	return out
}
