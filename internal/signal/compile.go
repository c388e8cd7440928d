package signal

import "fmt"

// Compiled holds the parsed entry and exit expression trees for a strategy,
// validated against a fixed column set once at construction so repeated
// evaluation (e.g. across optimizer trials) never re-parses the strings.
type Compiled struct {
	entry *Node
	exit  *Node
}

// Compile parses and preflight-validates the entry and exit expressions
// against resolve. Any unbound identifier fails here rather than silently
// producing a false signal at evaluation time (spec.md §4.3).
func Compile(entryLogic, exitLogic string, resolve Resolver) (*Compiled, error) {
	entry, err := Parse(entryLogic)
	if err != nil {
		return nil, fmt.Errorf("entry_logic: %w", err)
	}
	if err := Validate(entry, resolve); err != nil {
		return nil, fmt.Errorf("entry_logic: %w", err)
	}

	exit, err := Parse(exitLogic)
	if err != nil {
		return nil, fmt.Errorf("exit_logic: %w", err)
	}
	if err := Validate(exit, resolve); err != nil {
		return nil, fmt.Errorf("exit_logic: %w", err)
	}

	return &Compiled{entry: entry, exit: exit}, nil
}

// Run evaluates both expressions over n bars, returning the entry and exit
// masks in lockstep.
func (c *Compiled) Run(n int, resolve Resolver) (entryMask, exitMask Mask, err error) {
	entryMask, err = Eval(c.entry, n, resolve)
	if err != nil {
		return nil, nil, fmt.Errorf("entry_logic: %w", err)
	}
	exitMask, err = Eval(c.exit, n, resolve)
	if err != nil {
		return nil, nil, fmt.Errorf("exit_logic: %w", err)
	}
	return entryMask, exitMask, nil
}
