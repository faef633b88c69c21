package sqlstore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-gateway/core"
)

// RelationKind distinguishes single-valued foreign keys from join-table
// backed multi relations.
type RelationKind int

const (
	RelationSingle RelationKind = iota
	RelationMulti
)

// RelationDescriptor maps one relation-valued entity field onto the schema.
// Single relations read the fk column on the entity table; multi relations
// read the join table.
type RelationDescriptor struct {
	Kind   RelationKind
	Entity string

	// Column is the fk column on the owning table (single relations).
	Column string

	// Join table wiring (multi relations).
	JoinTable    string
	SourceColumn string
	TargetColumn string
}

// EntityDescriptor declares one entity type served by the gateway: its
// table, the plain columns clients may address, and its relation fields.
type EntityDescriptor struct {
	Entity     string
	Table      string
	LabelField string
	Fields     []string
	Relations  map[string]RelationDescriptor
}

func (d EntityDescriptor) labelField() string {
	if strings.TrimSpace(d.LabelField) == "" {
		return "display_name"
	}
	return d.LabelField
}

func (d EntityDescriptor) hasField(name string) bool {
	for _, field := range d.Fields {
		if field == name {
			return true
		}
	}
	return false
}

// LabelResolver fetches the display label of a related record. Lookups run
// with elevated visibility: a label resolves even when the caller could not
// read the related record itself.
type LabelResolver interface {
	Label(ctx context.Context, entity string, id int64) (string, error)
	Invalidate(ctx context.Context, entity string, id int64) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var allowedOperators = map[string]string{
	"=":     "=",
	"!=":    "!=",
	"<>":    "!=",
	">":     ">",
	">=":    ">=",
	"<":     "<",
	"<=":    "<=",
	"like":  "LIKE",
	"ilike": "LIKE",
	"in":    "IN",
	"not in": "NOT IN",
}

// SQLDataStore serves gateway data operations from registered entity
// tables. Every statement is self-contained: a failed statement leaves no
// partial mutation behind, so the gateway-level Rollback is satisfied
// without holding a long-lived transaction per request.
type SQLDataStore struct {
	db          *bun.DB
	descriptors map[string]EntityDescriptor
	labels      LabelResolver
}

func NewSQLDataStore(db *bun.DB, labels LabelResolver, descriptors ...EntityDescriptor) (*SQLDataStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	store := &SQLDataStore{
		db:          db,
		descriptors: make(map[string]EntityDescriptor, len(descriptors)),
		labels:      labels,
	}
	for _, descriptor := range descriptors {
		if err := store.RegisterEntity(descriptor); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *SQLDataStore) RegisterEntity(descriptor EntityDescriptor) error {
	if s == nil {
		return fmt.Errorf("sqlstore: data store is nil")
	}
	entity := strings.TrimSpace(descriptor.Entity)
	if entity == "" {
		return fmt.Errorf("sqlstore: entity name is required")
	}
	if !identifierPattern.MatchString(descriptor.Table) {
		return fmt.Errorf("sqlstore: invalid table name %q for entity %q", descriptor.Table, entity)
	}
	for _, field := range descriptor.Fields {
		if !identifierPattern.MatchString(field) {
			return fmt.Errorf("sqlstore: invalid column name %q for entity %q", field, entity)
		}
	}
	for field, relation := range descriptor.Relations {
		if !identifierPattern.MatchString(field) {
			return fmt.Errorf("sqlstore: invalid relation field %q for entity %q", field, entity)
		}
		switch relation.Kind {
		case RelationSingle:
			if !identifierPattern.MatchString(relation.Column) {
				return fmt.Errorf("sqlstore: invalid fk column %q for %s.%s", relation.Column, entity, field)
			}
		case RelationMulti:
			for _, name := range []string{relation.JoinTable, relation.SourceColumn, relation.TargetColumn} {
				if !identifierPattern.MatchString(name) {
					return fmt.Errorf("sqlstore: invalid join wiring %q for %s.%s", name, entity, field)
				}
			}
		default:
			return fmt.Errorf("sqlstore: unknown relation kind for %s.%s", entity, field)
		}
	}
	if _, exists := s.descriptors[entity]; exists {
		return fmt.Errorf("sqlstore: entity already registered: %s", entity)
	}
	s.descriptors[entity] = descriptor
	return nil
}

func (s *SQLDataStore) descriptor(entity string) (EntityDescriptor, error) {
	descriptor, ok := s.descriptors[strings.TrimSpace(entity)]
	if !ok {
		return EntityDescriptor{}, fmt.Errorf("sqlstore: unknown entity %q", entity)
	}
	return descriptor, nil
}

// Authenticate checks login credentials against gateway_users. Passwords
// are stored as hex sha256 digests and compared in constant time.
func (s *SQLDataStore) Authenticate(ctx context.Context, store string, login string, password string) (int64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, fmt.Errorf("sqlstore: data store is not configured")
	}
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return 0, false, nil
	}
	record := new(userRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("login = ?", login).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !passwordMatches(record.PasswordHash, password) {
		return 0, false, nil
	}
	return record.ID, true, nil
}

func (s *SQLDataStore) Search(ctx context.Context, caller core.Caller, entity string, opt core.SearchOptions) ([]int64, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return nil, err
	}
	query := s.db.NewSelect().
		Table(descriptor.Table).
		Column("id")
	query, err = applyDomain(query, descriptor, opt.Domain)
	if err != nil {
		return nil, err
	}
	query = applyOrder(query, descriptor, opt.Order)
	query = applyPage(query, opt)

	ids := make([]int64, 0)
	if err := query.Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLDataStore) SearchCount(ctx context.Context, caller core.Caller, entity string, opt core.SearchOptions) (int, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return 0, err
	}
	query := s.db.NewSelect().Table(descriptor.Table)
	query, err = applyDomain(query, descriptor, opt.Domain)
	if err != nil {
		return 0, err
	}
	return query.Count(ctx)
}

func (s *SQLDataStore) SearchRead(ctx context.Context, caller core.Caller, entity string, opt core.SearchOptions) ([]core.Record, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return nil, err
	}
	fields, relations, err := projectFields(descriptor, opt.Fields)
	if err != nil {
		return nil, err
	}

	columns := append([]string{"id"}, fields...)
	for _, field := range relations {
		relation := descriptor.Relations[field]
		if relation.Kind == RelationSingle {
			columns = append(columns, relation.Column)
		}
	}
	columns = dedupeColumns(columns)

	query := s.db.NewSelect().
		Table(descriptor.Table).
		Column(columns...)
	query, err = applyDomain(query, descriptor, opt.Domain)
	if err != nil {
		return nil, err
	}
	query = applyOrder(query, descriptor, opt.Order)
	query = applyPage(query, opt)

	var rows []map[string]any
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, err
	}

	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		record, err := s.buildRecord(ctx, descriptor, row, fields, relations)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *SQLDataStore) buildRecord(
	ctx context.Context,
	descriptor EntityDescriptor,
	row map[string]any,
	fields []string,
	relations []string,
) (core.Record, error) {
	record := core.Record{}
	recordID := asInt64(row["id"])
	record["id"] = recordID
	for _, field := range fields {
		record[field] = row[field]
	}
	for _, field := range relations {
		relation := descriptor.Relations[field]
		switch relation.Kind {
		case RelationSingle:
			relatedID := asInt64(row[relation.Column])
			if relatedID == 0 {
				record[field] = nil
				continue
			}
			ref, err := s.relationRef(ctx, relation.Entity, relatedID)
			if err != nil {
				return nil, err
			}
			record[field] = ref
		case RelationMulti:
			refs, err := s.multiRelationRefs(ctx, relation, recordID)
			if err != nil {
				return nil, err
			}
			record[field] = refs
		}
	}
	return record, nil
}

func (s *SQLDataStore) relationRef(ctx context.Context, entity string, id int64) (core.RelationRef, error) {
	label := ""
	if s.labels != nil {
		resolved, err := s.labels.Label(ctx, entity, id)
		if err != nil {
			return core.RelationRef{}, err
		}
		label = resolved
	}
	return core.RelationRef{ID: id, Label: label}, nil
}

func (s *SQLDataStore) multiRelationRefs(ctx context.Context, relation RelationDescriptor, ownerID int64) ([]core.RelationRef, error) {
	ids := make([]int64, 0)
	err := s.db.NewSelect().
		Table(relation.JoinTable).
		Column(relation.TargetColumn).
		Where("? = ?", bun.Ident(relation.SourceColumn), ownerID).
		OrderExpr("? ASC", bun.Ident(relation.TargetColumn)).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	refs := make([]core.RelationRef, 0, len(ids))
	for _, id := range ids {
		ref, err := s.relationRef(ctx, relation.Entity, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *SQLDataStore) Create(ctx context.Context, caller core.Caller, entity string, values core.Record) (int64, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return 0, err
	}
	columns, err := writableColumns(descriptor, values)
	if err != nil {
		return 0, err
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlstore: no writable values for entity %q", entity)
	}

	row := map[string]any{}
	for column, value := range columns {
		row[column] = value
	}
	var id int64
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// RETURNING ties the id to this statement's row; result-based id
		// lookups are racy under concurrent inserts.
		return tx.NewInsert().
			Model(&row).
			TableExpr("?", bun.Ident(descriptor.Table)).
			Returning("id").
			Scan(ctx, &id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLDataStore) Write(ctx context.Context, caller core.Caller, entity string, ids []int64, values core.Record) (bool, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, fmt.Errorf("sqlstore: record ids are required")
	}
	columns, err := writableColumns(descriptor, values)
	if err != nil {
		return false, err
	}
	if len(columns) == 0 {
		return true, nil
	}

	query := s.db.NewUpdate().Table(descriptor.Table)
	names := make([]string, 0, len(columns))
	for column := range columns {
		names = append(names, column)
	}
	sort.Strings(names)
	for _, column := range names {
		query = query.Set("? = ?", bun.Ident(column), columns[column])
	}
	if _, err := query.Where("id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return false, err
	}
	s.invalidateLabels(ctx, descriptor.Entity, ids)
	return true, nil
}

func (s *SQLDataStore) Unlink(ctx context.Context, caller core.Caller, entity string, ids []int64) (bool, error) {
	descriptor, err := s.descriptor(entity)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, fmt.Errorf("sqlstore: record ids are required")
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, relation := range descriptor.Relations {
			if relation.Kind != RelationMulti {
				continue
			}
			if _, err := tx.NewDelete().
				Table(relation.JoinTable).
				Where("? IN (?)", bun.Ident(relation.SourceColumn), bun.In(ids)).
				Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewDelete().
			Table(descriptor.Table).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	s.invalidateLabels(ctx, descriptor.Entity, ids)
	return true, nil
}

// Rollback is a no-op: every mutation above runs in its own transaction, so
// a failed operation has already been undone by the time the gateway asks.
func (s *SQLDataStore) Rollback(ctx context.Context) error {
	return nil
}

func (s *SQLDataStore) invalidateLabels(ctx context.Context, entity string, ids []int64) {
	if s.labels == nil {
		return
	}
	for _, id := range ids {
		_ = s.labels.Invalidate(ctx, entity, id)
	}
}

func applyDomain(query *bun.SelectQuery, descriptor EntityDescriptor, domain []core.Clause) (*bun.SelectQuery, error) {
	for _, clause := range domain {
		column, err := clauseColumn(descriptor, clause.Field)
		if err != nil {
			return nil, err
		}
		operator, ok := allowedOperators[strings.ToLower(strings.TrimSpace(clause.Operator))]
		if !ok {
			return nil, fmt.Errorf("sqlstore: unsupported operator %q", clause.Operator)
		}
		switch operator {
		case "IN", "NOT IN":
			query = query.Where(
				fmt.Sprintf("? %s (?)", operator),
				bun.Ident(column), bun.In(clause.Value),
			)
		default:
			query = query.Where(
				fmt.Sprintf("? %s ?", operator),
				bun.Ident(column), clause.Value,
			)
		}
	}
	return query, nil
}

// clauseColumn resolves a domain field to a real column: plain fields map
// to themselves, single relations to their fk column, and id passes through.
func clauseColumn(descriptor EntityDescriptor, field string) (string, error) {
	field = strings.TrimSpace(field)
	if field == "id" {
		return "id", nil
	}
	if descriptor.hasField(field) {
		return field, nil
	}
	if relation, ok := descriptor.Relations[field]; ok && relation.Kind == RelationSingle {
		return relation.Column, nil
	}
	return "", fmt.Errorf("sqlstore: unknown field %q on entity %q", field, descriptor.Entity)
}

func applyOrder(query *bun.SelectQuery, descriptor EntityDescriptor, order string) *bun.SelectQuery {
	order = strings.TrimSpace(order)
	if order == "" {
		return query.OrderExpr("id ASC")
	}
	for _, part := range strings.Split(order, ",") {
		tokens := strings.Fields(part)
		if len(tokens) == 0 {
			continue
		}
		column, err := clauseColumn(descriptor, tokens[0])
		if err != nil {
			continue
		}
		direction := "ASC"
		if len(tokens) > 1 && strings.EqualFold(tokens[1], "desc") {
			direction = "DESC"
		}
		query = query.OrderExpr(fmt.Sprintf("? %s", direction), bun.Ident(column))
	}
	return query
}

func applyPage(query *bun.SelectQuery, opt core.SearchOptions) *bun.SelectQuery {
	if opt.Limit > 0 {
		query = query.Limit(opt.Limit)
	}
	if opt.Offset > 0 {
		query = query.Offset(opt.Offset)
	}
	return query
}

// projectFields splits the requested field list into plain columns and
// relation fields. An empty request means every declared field.
func projectFields(descriptor EntityDescriptor, requested []string) ([]string, []string, error) {
	if len(requested) == 0 {
		fields := append([]string(nil), descriptor.Fields...)
		relations := make([]string, 0, len(descriptor.Relations))
		for field := range descriptor.Relations {
			relations = append(relations, field)
		}
		sort.Strings(relations)
		return fields, relations, nil
	}
	fields := make([]string, 0, len(requested))
	relations := make([]string, 0)
	for _, field := range requested {
		field = strings.TrimSpace(field)
		if field == "" || field == "id" {
			continue
		}
		if descriptor.hasField(field) {
			fields = append(fields, field)
			continue
		}
		if _, ok := descriptor.Relations[field]; ok {
			relations = append(relations, field)
			continue
		}
		return nil, nil, fmt.Errorf("sqlstore: unknown field %q on entity %q", field, descriptor.Entity)
	}
	return fields, relations, nil
}

// writableColumns maps incoming values to columns, rejecting unknown fields
// and translating single relations to their fk column. Multi relations are
// not writable through the generic path.
func writableColumns(descriptor EntityDescriptor, values core.Record) (map[string]any, error) {
	columns := make(map[string]any, len(values))
	for field, value := range values {
		field = strings.TrimSpace(field)
		if field == "" || field == "id" {
			continue
		}
		if descriptor.hasField(field) {
			columns[field] = value
			continue
		}
		if relation, ok := descriptor.Relations[field]; ok {
			if relation.Kind != RelationSingle {
				return nil, fmt.Errorf("sqlstore: relation field %q on entity %q is read only", field, descriptor.Entity)
			}
			columns[relation.Column] = value
			continue
		}
		return nil, fmt.Errorf("sqlstore: unknown field %q on entity %q", field, descriptor.Entity)
	}
	return columns, nil
}

func dedupeColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, column := range columns {
		if _, exists := seen[column]; exists {
			continue
		}
		seen[column] = struct{}{}
		out = append(out, column)
	}
	return out
}

func asInt64(value any) int64 {
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float64:
		return int64(typed)
	case []byte:
		parsed := int64(0)
		_, _ = fmt.Sscan(string(typed), &parsed)
		return parsed
	case string:
		parsed := int64(0)
		_, _ = fmt.Sscan(typed, &parsed)
		return parsed
	default:
		return 0
	}
}

func passwordMatches(storedHash string, password string) bool {
	digest := sha256.Sum256([]byte(password))
	expected := hex.EncodeToString(digest[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(storedHash))) == 1
}

// HashPassword returns the digest format gateway_users stores. Exposed for
// seeding users from setup code and tests.
func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

var _ core.DataStore = (*SQLDataStore)(nil)
