package servebench

import (
	"fmt"

	"github.com/servebench/servebench/internal/common/util"
)

// Configs prints the deployment catalog. The index next to each entry is the
// 1-based index the deploy command accepts in place of a name.
func (a *App) Configs() error {
	configs := a.Params.Config.Deployments
	if len(configs) == 0 {
		fmt.Fprintln(a.Out, "the configuration catalog is empty")
		return nil
	}
	sb := util.NewTabbedStringBuilder(1, 1, 2, ' ', 0)
	sb.WriteRow("index", "name", "manifest")
	for i, config := range configs {
		sb.WriteRow(i+1, config.Name, config.Path)
	}
	fmt.Fprint(a.Out, sb.String())
	return nil
}
