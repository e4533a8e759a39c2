package postgres

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

var errInvalidScope = errors.New("query without a company scope")

// query accumulates a statement and its positional arguments.
type query struct {
	sb   strings.Builder
	args []interface{}
}

func (q *query) arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) write(format string, a ...interface{}) {
	fmt.Fprintf(&q.sb, format, a...)
}

func (q *query) String() string {
	return q.sb.String()
}

// where writes the tenant clause followed by the owner clause.
func (q *query) where(scope model.Scope) error {
	if !scope.Valid() {
		return errInvalidScope
	}
	q.write(" WHERE %s = %s", scope.CompanyField, q.arg(scope.CompanyID))
	if scope.OwnerField != "" && scope.OwnerID != nil {
		q.write(" AND %s = %s", scope.OwnerField, q.arg(*scope.OwnerID))
	}
	return nil
}

// filter narrows an already scoped query. Keys must be listed in allowed (filter name to column).
func (q *query) filter(filters model.Filters, allowed map[string]string) error {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		col, ok := allowed[k]
		if !ok {
			return apperrors.FieldError(k, "Unknown filter.")
		}
		q.write(" AND %s = %s", col, q.arg(filters[k]))
	}
	return nil
}

func (q *query) page(p model.Pagination) {
	q.write(" LIMIT %s OFFSET %s", q.arg(p.Limit()), q.arg(p.Offset()))
}

// selectList builds: SELECT columns FROM table WHERE <scope> <filters> ORDER BY order LIMIT/OFFSET.
func selectList(table, columns string, scope model.Scope, lq model.ListQuery, allowed map[string]string, order string) (string, []interface{}, error) {
	q := &query{}
	q.write("SELECT %s FROM %s", columns, table)
	if err := q.where(scope); err != nil {
		return "", nil, err
	}
	if err := q.filter(lq.Filters, allowed); err != nil {
		return "", nil, err
	}
	if order != "" {
		q.write(" ORDER BY %s", order)
	}
	q.page(lq.Pagination)
	return q.String(), q.args, nil
}

func selectOne(table, columns string, scope model.Scope, id uuid.UUID) (string, []interface{}, error) {
	q := &query{}
	q.write("SELECT %s FROM %s", columns, table)
	if err := q.where(scope); err != nil {
		return "", nil, err
	}
	q.write(" AND id = %s", q.arg(id))
	return q.String(), q.args, nil
}

func deleteOne(table string, scope model.Scope, id uuid.UUID) (string, []interface{}, error) {
	q := &query{}
	q.write("DELETE FROM %s", table)
	if err := q.where(scope); err != nil {
		return "", nil, err
	}
	q.write(" AND id = %s", q.arg(id))
	return q.String(), q.args, nil
}

// update builds UPDATE table SET col = $n, ... WHERE <scope> AND id = $m, keeping set order.
func update(table string, scope model.Scope, id uuid.UUID, cols []string, vals []interface{}) (string, []interface{}, error) {
	if len(cols) != len(vals) {
		return "", nil, fmt.Errorf("update %s: %d columns for %d values", table, len(cols), len(vals))
	}
	q := &query{}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, q.arg(vals[i]))
	}
	q.write("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	if err := q.where(scope); err != nil {
		return "", nil, err
	}
	q.write(" AND id = %s", q.arg(id))
	return q.String(), q.args, nil
}

// prefixed qualifies each column of a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
