package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryTokenStore is a map-backed TokenStore for tests and single-process
// embedding. Production deployments use the SQL-backed store.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
	nextID int64
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token)}
}

func (s *MemoryTokenStore) Insert(_ context.Context, value string, ownerID int64, expiresAt time.Time) (Token, error) {
	if s == nil {
		return Token{}, fmt.Errorf("core: memory token store is nil")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Token{}, fmt.Errorf("core: token value is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[value]; exists {
		return Token{}, fmt.Errorf("core: token value already exists")
	}
	s.nextID++
	token := Token{
		ID:        fmt.Sprintf("tok_%d", s.nextID),
		Value:     value,
		OwnerID:   ownerID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	s.tokens[value] = token
	return token, nil
}

func (s *MemoryTokenStore) FindByValue(_ context.Context, value string) (Token, bool, error) {
	if s == nil {
		return Token{}, false, fmt.Errorf("core: memory token store is nil")
	}
	s.mu.RLock()
	token, ok := s.tokens[strings.TrimSpace(value)]
	s.mu.RUnlock()
	return token, ok, nil
}

func (s *MemoryTokenStore) UpdateExpiry(_ context.Context, value string, expiresAt time.Time) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: memory token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[strings.TrimSpace(value)]
	if !ok {
		return false, nil
	}
	token.ExpiresAt = expiresAt
	s.tokens[token.Value] = token
	return true, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, value string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: memory token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value = strings.TrimSpace(value)
	if _, ok := s.tokens[value]; !ok {
		return false, nil
	}
	delete(s.tokens, value)
	return true, nil
}

func (s *MemoryTokenStore) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: memory token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for value, token := range s.tokens {
		if limit > 0 && count >= limit {
			break
		}
		if !token.ExpiresAt.After(before) {
			delete(s.tokens, value)
			count++
		}
	}
	return count, nil
}

// Len reports the number of stored tokens, expired ones included.
func (s *MemoryTokenStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// EntitySchema declares the shape of one entity type held by the memory
// data store: its field names and which fields are relation-valued.
type EntitySchema struct {
	Fields         []string
	Relations      map[string]string
	MultiRelations map[string]string
	LabelField     string
}

func (s EntitySchema) labelField() string {
	if strings.TrimSpace(s.LabelField) != "" {
		return s.LabelField
	}
	return "display_name"
}

type memoryUser struct {
	ID       int64
	Password string
}

// MemoryDataStore is an in-process DataStore over declared entity schemas.
// Mutations apply immediately; Rollback restores the snapshot captured at
// the start of the most recent mutating operation, mirroring the one
// operation per request transaction unit of the gateway.
type MemoryDataStore struct {
	mu       sync.RWMutex
	schemas  map[string]EntitySchema
	tables   map[string]map[int64]Record
	order    map[string][]int64
	nextID   map[string]int64
	users    map[string]map[string]memoryUser
	snapshot map[string]map[int64]Record
	snapIDs  map[string][]int64

	rollbacks int
}

func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		schemas: make(map[string]EntitySchema),
		tables:  make(map[string]map[int64]Record),
		order:   make(map[string][]int64),
		nextID:  make(map[string]int64),
		users:   make(map[string]map[string]memoryUser),
	}
}

// DeclareEntity registers an entity schema. Redeclaring replaces the schema
// but keeps existing records.
func (s *MemoryDataStore) DeclareEntity(entity string, schema EntitySchema) {
	if s == nil {
		return
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[entity] = schema
	if s.tables[entity] == nil {
		s.tables[entity] = make(map[int64]Record)
	}
}

// AddUser registers login credentials on a named store.
func (s *MemoryDataStore) AddUser(store string, login string, password string, id int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[store] == nil {
		s.users[store] = make(map[string]memoryUser)
	}
	s.users[store][login] = memoryUser{ID: id, Password: password}
}

// Seed inserts a record bypassing the transactional snapshot, for fixtures.
func (s *MemoryDataStore) Seed(entity string, values Record) int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(entity, values)
}

// Rollbacks reports how many times the rollback hook fired.
func (s *MemoryDataStore) Rollbacks() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rollbacks
}

func (s *MemoryDataStore) Authenticate(_ context.Context, store string, login string, password string) (int64, bool, error) {
	if s == nil {
		return 0, false, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.TrimSpace(store)][strings.TrimSpace(login)]
	if !ok || user.Password != password {
		return 0, false, nil
	}
	return user.ID, true, nil
}

func (s *MemoryDataStore) Search(_ context.Context, _ Caller, entity string, opt SearchOptions) ([]int64, error) {
	if s == nil {
		return nil, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, err := s.matchLocked(entity, opt)
	if err != nil {
		return nil, err
	}
	return pageIDs(ids, opt.Limit, opt.Offset), nil
}

func (s *MemoryDataStore) SearchCount(_ context.Context, _ Caller, entity string, opt SearchOptions) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, err := s.matchLocked(entity, opt)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *MemoryDataStore) SearchRead(_ context.Context, _ Caller, entity string, opt SearchOptions) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, err := s.matchLocked(entity, opt)
	if err != nil {
		return nil, err
	}
	ids = pageIDs(ids, opt.Limit, opt.Offset)

	schema := s.schemas[entity]
	fields := opt.Fields
	if len(fields) == 0 {
		fields = schema.Fields
	}
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		raw := s.tables[entity][id]
		projected := Record{"id": id}
		for _, field := range fields {
			if field == "id" {
				continue
			}
			projected[field] = s.projectFieldLocked(schema, raw, field)
		}
		records = append(records, projected)
	}
	return records, nil
}

func (s *MemoryDataStore) Create(_ context.Context, _ Caller, entity string, values Record) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[entity]; !ok {
		return 0, fmt.Errorf("core: unknown entity type %q", entity)
	}
	s.captureSnapshotLocked()
	return s.insertLocked(entity, values), nil
}

func (s *MemoryDataStore) Write(_ context.Context, _ Caller, entity string, ids []int64, values Record) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[entity]
	if !ok {
		return false, fmt.Errorf("core: unknown entity type %q", entity)
	}
	s.captureSnapshotLocked()
	for _, id := range ids {
		record, exists := table[id]
		if !exists {
			continue
		}
		for field, value := range values {
			record[field] = value
		}
	}
	return true, nil
}

func (s *MemoryDataStore) Unlink(_ context.Context, _ Caller, entity string, ids []int64) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: memory data store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[entity]
	if !ok {
		return false, fmt.Errorf("core: unknown entity type %q", entity)
	}
	s.captureSnapshotLocked()
	removed := false
	for _, id := range ids {
		if _, exists := table[id]; !exists {
			continue
		}
		delete(table, id)
		removed = true
		kept := s.order[entity][:0]
		for _, existing := range s.order[entity] {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		s.order[entity] = kept
	}
	return removed, nil
}

func (s *MemoryDataStore) Rollback(_ context.Context) error {
	if s == nil {
		return fmt.Errorf("core: memory data store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	if s.snapshot == nil {
		return nil
	}
	s.tables = s.snapshot
	s.order = s.snapIDs
	s.snapshot = nil
	s.snapIDs = nil
	return nil
}

func (s *MemoryDataStore) captureSnapshotLocked() {
	tables := make(map[string]map[int64]Record, len(s.tables))
	for entity, table := range s.tables {
		copied := make(map[int64]Record, len(table))
		for id, record := range table {
			dup := make(Record, len(record))
			for field, value := range record {
				dup[field] = value
			}
			copied[id] = dup
		}
		tables[entity] = copied
	}
	order := make(map[string][]int64, len(s.order))
	for entity, ids := range s.order {
		order[entity] = append([]int64(nil), ids...)
	}
	s.snapshot = tables
	s.snapIDs = order
}

func (s *MemoryDataStore) insertLocked(entity string, values Record) int64 {
	if s.tables[entity] == nil {
		s.tables[entity] = make(map[int64]Record)
	}
	s.nextID[entity]++
	id := s.nextID[entity]
	record := make(Record, len(values))
	for field, value := range values {
		record[field] = value
	}
	s.tables[entity][id] = record
	s.order[entity] = append(s.order[entity], id)
	return id
}

func (s *MemoryDataStore) matchLocked(entity string, opt SearchOptions) ([]int64, error) {
	table, ok := s.tables[entity]
	if !ok {
		return nil, fmt.Errorf("core: unknown entity type %q", entity)
	}
	matched := make([]int64, 0, len(table))
	for _, id := range s.order[entity] {
		record, exists := table[id]
		if !exists {
			continue
		}
		keep := true
		for _, clause := range opt.Domain {
			match, err := clauseMatches(clause, id, record)
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, id)
		}
	}
	if field, descending, ok := parseOrder(opt.Order); ok {
		sort.SliceStable(matched, func(i, j int) bool {
			left := orderKey(field, matched[i], table[matched[i]])
			right := orderKey(field, matched[j], table[matched[j]])
			if descending {
				return right < left
			}
			return left < right
		})
	}
	return matched, nil
}

func (s *MemoryDataStore) projectFieldLocked(schema EntitySchema, record Record, field string) any {
	value, present := record[field]
	if !present || value == nil {
		return nil
	}
	if related, ok := schema.Relations[field]; ok {
		id, ok := asInt64(value)
		if !ok {
			return nil
		}
		return RelationRef{ID: id, Label: s.displayLabelLocked(related, id)}
	}
	if related, ok := schema.MultiRelations[field]; ok {
		ids, ok := asInt64Slice(value)
		if !ok {
			return nil
		}
		refs := make([]RelationRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, RelationRef{ID: id, Label: s.displayLabelLocked(related, id)})
		}
		return refs
	}
	return value
}

// displayLabelLocked reads the related record's label without any caller
// scoping: labels are always visible even when the caller has no read
// rights on the related type.
func (s *MemoryDataStore) displayLabelLocked(entity string, id int64) string {
	record, ok := s.tables[entity][id]
	if !ok {
		return ""
	}
	label := s.schemas[entity].labelField()
	if value, ok := record[label].(string); ok {
		return value
	}
	if value, ok := record["name"].(string); ok {
		return value
	}
	return ""
}

func clauseMatches(clause Clause, id int64, record Record) (bool, error) {
	var value any
	if clause.Field == "id" {
		value = id
	} else {
		value = record[clause.Field]
	}
	switch strings.ToLower(strings.TrimSpace(clause.Operator)) {
	case "=", "==":
		return looseEqual(value, clause.Value), nil
	case "!=", "<>":
		return !looseEqual(value, clause.Value), nil
	case ">", ">=", "<", "<=":
		left, leftOK := asFloat64(value)
		right, rightOK := asFloat64(clause.Value)
		if !leftOK || !rightOK {
			return false, nil
		}
		switch clause.Operator {
		case ">":
			return left > right, nil
		case ">=":
			return left >= right, nil
		case "<":
			return left < right, nil
		default:
			return left <= right, nil
		}
	case "in":
		candidates, ok := clause.Value.([]any)
		if !ok {
			return false, fmt.Errorf("core: operator 'in' requires a list operand")
		}
		for _, candidate := range candidates {
			if looseEqual(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	case "like", "ilike":
		text, _ := value.(string)
		pattern, _ := clause.Value.(string)
		if clause.Operator == "ilike" {
			text = strings.ToLower(text)
			pattern = strings.ToLower(pattern)
		}
		return strings.Contains(text, strings.Trim(pattern, "%")), nil
	default:
		return false, fmt.Errorf("core: unsupported domain operator %q", clause.Operator)
	}
}

func looseEqual(left any, right any) bool {
	if leftNum, ok := asFloat64(left); ok {
		if rightNum, ok := asFloat64(right); ok {
			return leftNum == rightNum
		}
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

func asFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	default:
		return 0, false
	}
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		return int64(typed), true
	default:
		return 0, false
	}
}

func asInt64Slice(value any) ([]int64, bool) {
	switch typed := value.(type) {
	case []int64:
		return typed, true
	case []any:
		out := make([]int64, 0, len(typed))
		for _, item := range typed {
			id, ok := asInt64(item)
			if !ok {
				return nil, false
			}
			out = append(out, id)
		}
		return out, true
	default:
		return nil, false
	}
}

func pageIDs(ids []int64, limit int, offset int) []int64 {
	if offset > 0 {
		if offset >= len(ids) {
			return []int64{}
		}
		ids = ids[offset:]
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return append([]int64(nil), ids...)
}

func parseOrder(order string) (field string, descending bool, ok bool) {
	order = strings.TrimSpace(order)
	if order == "" {
		return "", false, false
	}
	parts := strings.Fields(order)
	field = parts[0]
	if len(parts) > 1 && strings.EqualFold(parts[1], "desc") {
		descending = true
	}
	return field, descending, true
}

func orderKey(field string, id int64, record Record) string {
	if field == "id" {
		return fmt.Sprintf("%020d", id)
	}
	value := record[field]
	if num, ok := asFloat64(value); ok {
		return fmt.Sprintf("%020.4f", num)
	}
	return fmt.Sprint(value)
}

// StaticStoreResolver resolves stores from a fixed set, with a default for
// requests that do not name one (the single-database deployment shape).
type StaticStoreResolver struct {
	Default string
	Stores  map[string]bool
}

func (r StaticStoreResolver) Resolve(_ context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		requested = strings.TrimSpace(r.Default)
	}
	if requested == "" {
		return "", fmt.Errorf("core: no store could be resolved")
	}
	if _, known := r.Stores[requested]; !known {
		return "", fmt.Errorf("core: no store could be resolved")
	}
	return requested, nil
}

func (r StaticStoreResolver) Active(_ context.Context, store string) (bool, error) {
	active, known := r.Stores[strings.TrimSpace(store)]
	return known && active, nil
}
