package diagnostics

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/enorith/supports/reflection"

	"github.com/enorith/container/v2"
)

// Dump writes the scope chain of c, root first, and the binding table of
// every scope on it.
func Dump(w io.Writer, c *container.Container) error {
	var chain []*container.Container
	for s := c; s != nil; s = s.Parent() {
		chain = append(chain, s)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i := len(chain) - 1; i >= 0; i-- {
		s := chain[i]
		depth := len(chain) - 1 - i
		fmt.Fprintf(tw, "%sscope %s (%s)\n", strings.Repeat("  ", depth), s.Name(), s.ID())

		infos := s.Bindings()
		if len(infos) == 0 {
			fmt.Fprintf(tw, "%s  (no bindings)\n", strings.Repeat("  ", depth))
			continue
		}
		fmt.Fprintln(tw, "\tCONTRACTS\tCONCRETE\tKIND\tLIFETIME\tRESOLUTION\tRESOLVED\tCALL SITE")
		for _, info := range infos {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				contractList(info.Contracts),
				typeName(info.Concrete),
				info.Kind,
				info.Lifetime,
				info.Resolution,
				info.Resolutions,
				orDash(info.CallSite),
			)
		}
	}

	return tw.Flush()
}

func contractList(ts []reflect.Type) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = typeName(t)
	}
	return strings.Join(names, ", ")
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "-"
	}
	return reflection.TypeString(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
