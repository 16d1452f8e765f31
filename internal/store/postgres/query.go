package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// listQuery accumulates WHERE clauses and positional arguments for the
// paginated list endpoints.
type listQuery struct {
	sb   strings.Builder
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	q := &listQuery{args: args}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) next(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// window adds the Since/Until bounds of opts against column.
func (q *listQuery) window(column string, opts domain.ListOpts) *listQuery {
	if opts.Since != nil {
		fmt.Fprintf(&q.sb, " AND %s >= %s", column, q.next(*opts.Since))
	}
	if opts.Until != nil {
		fmt.Fprintf(&q.sb, " AND %s <= %s", column, q.next(*opts.Until))
	}
	return q
}

// page appends ORDER BY plus LIMIT and OFFSET when they are positive.
func (q *listQuery) page(orderBy string, opts domain.ListOpts) *listQuery {
	q.sb.WriteString(" ORDER BY " + orderBy)
	if opts.Limit > 0 {
		q.sb.WriteString(" LIMIT " + q.next(opts.Limit))
	}
	if opts.Offset > 0 {
		q.sb.WriteString(" OFFSET " + q.next(opts.Offset))
	}
	return q
}

func (q *listQuery) String() string { return q.sb.String() }
func (q *listQuery) Args() []any    { return q.args }
