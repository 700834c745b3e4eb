package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gantrysim/internal/dynamo"
)

// ASCII plots one column of table in the terminal, captioned with the
// signal's name and unit.
func ASCII(table *dynamo.Table, sig dynamo.Signal, width, height int) (string, error) {
	col, ok := table.Column(sig.Name)
	if !ok {
		return "", fmt.Errorf("%w: no column %q", dynamo.ErrConfiguration, sig.Name)
	}
	if len(col) == 0 {
		return "", fmt.Errorf("%w: column %q is empty", dynamo.ErrPrecondition, sig.Name)
	}
	return asciigraph.Plot(col,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(3),
		asciigraph.Caption(sig.Label()),
	), nil
}
