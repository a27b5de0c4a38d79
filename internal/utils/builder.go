package querybuilder

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// QueryBuilder assembles SQL with "?" placeholders; Build rebinds them for Postgres.
type QueryBuilder interface {
	Select(cols ...string) QueryBuilder
	From(table string) QueryBuilder
	Into(table string) QueryBuilder
	Where(clause string, args ...interface{}) QueryBuilder

	OrderBy(col string, asc bool) QueryBuilder
	Limit(limit int) QueryBuilder
	Offset(offset int) QueryBuilder

	Insert(cols ...string) QueryBuilder
	Values(values ...interface{}) QueryBuilder
	InsertIf(clause string, args ...interface{}) QueryBuilder
	OnConflict(cols ...string) QueryBuilder
	SetExclude(cols ...string) QueryBuilder
	ConflictWhere(clause string, args ...interface{}) QueryBuilder
	Returning(cols ...string) QueryBuilder

	Delete(table string) QueryBuilder
	Build() (string, []interface{})
}

type condition struct {
	clause string
	args   []interface{}
}

type queryBuilder struct {
	schema        string
	table         string
	cols          []string
	conditions    []condition
	values        [][]interface{}
	insertIf      *condition
	orderBy       []string
	limit         int
	offset        int
	isDelete      bool
	onConflict    []string
	excludeCols   []string
	conflictWhere *condition
	returning     []string
}

func NewQueryBuilder(schema string) QueryBuilder {
	return &queryBuilder{
		schema: schema,
	}
}

func (q *queryBuilder) Select(cols ...string) QueryBuilder {
	q.cols = append(q.cols, cols...)
	return q
}

func (q *queryBuilder) From(table string) QueryBuilder {
	q.table = table
	return q
}

func (q *queryBuilder) Into(table string) QueryBuilder {
	q.table = table
	return q
}

// Where adds a condition; conditions are joined with AND
func (q *queryBuilder) Where(clause string, args ...interface{}) QueryBuilder {
	q.conditions = append(q.conditions, condition{clause: clause, args: args})
	return q
}

func (q *queryBuilder) OrderBy(col string, asc bool) QueryBuilder {
	direction := "ASC"
	if !asc {
		direction = "DESC"
	}
	q.orderBy = append(q.orderBy, fmt.Sprintf("%s %s", col, direction))
	return q
}

func (q *queryBuilder) Limit(limit int) QueryBuilder {
	q.limit = limit
	return q
}

func (q *queryBuilder) Offset(offset int) QueryBuilder {
	q.offset = offset
	return q
}

func (q *queryBuilder) Insert(cols ...string) QueryBuilder {
	q.cols = cols
	return q
}

func (q *queryBuilder) Values(values ...interface{}) QueryBuilder {
	q.values = append(q.values, values)
	return q
}

// InsertIf renders a single-row insert as INSERT ... SELECT ... WHERE clause,
// so nothing is written unless the clause holds.
func (q *queryBuilder) InsertIf(clause string, args ...interface{}) QueryBuilder {
	q.insertIf = &condition{clause: clause, args: args}
	return q
}

func (q *queryBuilder) OnConflict(cols ...string) QueryBuilder {
	q.onConflict = cols
	return q
}

// SetExclude turns the conflict clause into DO UPDATE SET col = EXCLUDED.col
func (q *queryBuilder) SetExclude(cols ...string) QueryBuilder {
	q.excludeCols = cols
	return q
}

// ConflictWhere limits DO UPDATE to existing rows matching clause
func (q *queryBuilder) ConflictWhere(clause string, args ...interface{}) QueryBuilder {
	q.conflictWhere = &condition{clause: clause, args: args}
	return q
}

func (q *queryBuilder) Returning(cols ...string) QueryBuilder {
	q.returning = cols
	return q
}

func (q *queryBuilder) Delete(table string) QueryBuilder {
	q.table = table
	q.isDelete = true
	return q
}

// Build renders the statement with $n placeholders. An invalid statement yields "".
func (q *queryBuilder) Build() (string, []interface{}) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case len(q.values) > 0:
		query, args = q.buildInsert()
	case q.isDelete:
		query, args = q.buildDelete()
	default:
		query, args = q.buildSelect()
	}
	if query == "" {
		return "", nil
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func (q *queryBuilder) qualified() string {
	if q.schema == "" {
		return q.table
	}
	return fmt.Sprintf("%s.%s", q.schema, q.table)
}

func (q *queryBuilder) where(query string, args []interface{}) (string, []interface{}) {
	if len(q.conditions) == 0 {
		return query, args
	}
	parts := make([]string, 0, len(q.conditions))
	for _, cond := range q.conditions {
		parts = append(parts, cond.clause)
		args = append(args, cond.args...)
	}
	return query + " WHERE " + strings.Join(parts, " AND "), args
}

func (q *queryBuilder) buildSelect() (string, []interface{}) {
	if len(q.cols) == 0 || q.table == "" {
		return "", nil
	}
	query, args := q.where(fmt.Sprintf("SELECT %s FROM %s", strings.Join(q.cols, ", "), q.qualified()), nil)

	if len(q.orderBy) > 0 {
		query += " ORDER BY " + strings.Join(q.orderBy, ", ")
	}
	if q.limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.limit)
	}
	if q.offset > 0 {
		query += " OFFSET ?"
		args = append(args, q.offset)
	}
	return query, args
}

func (q *queryBuilder) buildInsert() (string, []interface{}) {
	numOfParam := len(q.cols)
	if numOfParam == 0 || q.table == "" {
		return "", nil
	}
	if q.insertIf != nil && len(q.values) != 1 {
		return "", nil
	}

	tuples := make([]string, 0, len(q.values))
	args := make([]interface{}, 0, numOfParam*len(q.values))
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", numOfParam), ", ")
	for _, row := range q.values {
		if len(row) != numOfParam {
			return "", nil
		}
		args = append(args, row...)
		tuples = append(tuples, "("+placeholders+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s)", q.qualified(), strings.Join(q.cols, ", "))
	if q.insertIf != nil {
		query += fmt.Sprintf(" SELECT %s WHERE %s", placeholders, q.insertIf.clause)
		args = append(args, q.insertIf.args...)
	} else {
		query += " VALUES " + strings.Join(tuples, ", ")
	}

	if len(q.onConflict) > 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s)", strings.Join(q.onConflict, ", "))
		if len(q.excludeCols) == 0 {
			query += " DO NOTHING"
		} else {
			sets := make([]string, 0, len(q.excludeCols))
			for _, col := range q.excludeCols {
				sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
			query += " DO UPDATE SET " + strings.Join(sets, ", ")
			if q.conflictWhere != nil {
				query += " WHERE " + q.conflictWhere.clause
				args = append(args, q.conflictWhere.args...)
			}
		}
	}

	if len(q.returning) > 0 {
		query += " RETURNING " + strings.Join(q.returning, ", ")
	}
	return query, args
}

// buildDelete refuses to render an unconditional delete.
func (q *queryBuilder) buildDelete() (string, []interface{}) {
	if q.table == "" || len(q.conditions) == 0 {
		return "", nil
	}
	return q.where(fmt.Sprintf("DELETE FROM %s", q.qualified()), nil)
}
