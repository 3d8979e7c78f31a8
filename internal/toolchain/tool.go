package toolchain

// State is a tool's resolution state.
type State int

const (
	Unresolved State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unresolved"
}

// Resolution is the winning result for a tool.
type Resolution struct {
	Kind    Kind
	Spec    *Spec // the alternate's spec when a substitute won
	Path    string
	Tier    string
	Version string
}

// Tool pairs a spec with its ordered tiers and tracks its state. Once
// resolved or failed, a Tool keeps its outcome for the life of the process.
type Tool struct {
	Spec  *Spec
	Tiers []Tier

	state State
	res   *Resolution
	err   error
}

// NewTool returns an unresolved tool.
func NewTool(spec *Spec, tiers ...Tier) *Tool {
	return &Tool{Spec: spec, Tiers: tiers}
}

func (t *Tool) State() State { return t.state }

func (t *Tool) resolved(res *Resolution) {
	t.state, t.res, t.err = Resolved, res, nil
}

func (t *Tool) failed(err error) {
	t.state, t.res, t.err = Failed, nil, err
}
