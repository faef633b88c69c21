package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-gateway/core"
	gatewaymigrations "github.com/goliatone/go-gateway/migrations"
	sqlstore "github.com/goliatone/go-gateway/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-gateway-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"gateway_tokens", "gateway_users"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master: %v", err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestTokenStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewTokenStore(client.DB())
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}

	expiresAt := time.Now().UTC().Add(time.Hour)
	token, err := store.Insert(ctx, "tok-abc", 7, expiresAt)
	if err != nil {
		t.Fatalf("insert token: %v", err)
	}
	if token.OwnerID != 7 {
		t.Fatalf("expected owner 7, got %d", token.OwnerID)
	}

	found, ok, err := store.FindByValue(ctx, "tok-abc")
	if err != nil || !ok {
		t.Fatalf("expected token lookup to succeed, got ok=%v err=%v", ok, err)
	}
	if found.Value != "tok-abc" {
		t.Fatalf("expected stored value, got %q", found.Value)
	}

	refreshed, err := store.UpdateExpiry(ctx, "tok-abc", expiresAt.Add(time.Hour))
	if err != nil || !refreshed {
		t.Fatalf("expected expiry update, got refreshed=%v err=%v", refreshed, err)
	}
	if refreshed, err = store.UpdateExpiry(ctx, "tok-missing", expiresAt); err != nil || refreshed {
		t.Fatalf("expected missing token update to report false, got %v %v", refreshed, err)
	}

	deleted, err := store.Delete(ctx, "tok-abc")
	if err != nil || !deleted {
		t.Fatalf("expected delete, got deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ = store.FindByValue(ctx, "tok-abc"); ok {
		t.Fatalf("expected token gone after delete")
	}
}

func TestTokenStoreDeleteExpiredHonorsCutoffAndBatch(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewTokenStore(client.DB())
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := store.Insert(ctx, fmt.Sprintf("expired-%d", i), 1, now.Add(-time.Hour)); err != nil {
			t.Fatalf("insert expired token: %v", err)
		}
	}
	if _, err := store.Insert(ctx, "live", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("insert live token: %v", err)
	}

	deleted, err := store.DeleteExpired(ctx, now, 2)
	if err != nil {
		t.Fatalf("delete expired batch: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected batch of 2, got %d", deleted)
	}

	deleted, err = store.DeleteExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("delete remaining expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 remaining expired token, got %d", deleted)
	}

	if _, ok, _ := store.FindByValue(ctx, "live"); !ok {
		t.Fatalf("expected live token to survive sweeps")
	}
}

func TestSQLDataStoreAuthenticate(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	seedUser(t, client, "alice", "secret", "Alice")

	store, err := sqlstore.NewSQLDataStore(client.DB(), nil)
	if err != nil {
		t.Fatalf("new data store: %v", err)
	}

	userID, ok, err := store.Authenticate(ctx, "gateway", "alice", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !ok || userID == 0 {
		t.Fatalf("expected credentials to authenticate, got ok=%v id=%d", ok, userID)
	}

	if _, ok, err = store.Authenticate(ctx, "gateway", "alice", "wrong"); err != nil || ok {
		t.Fatalf("expected wrong password to fail, got ok=%v err=%v", ok, err)
	}
	if _, ok, err = store.Authenticate(ctx, "gateway", "nobody", "secret"); err != nil || ok {
		t.Fatalf("expected unknown login to fail, got ok=%v err=%v", ok, err)
	}
}

func TestSQLDataStoreSearchReadFlattensRelations(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	seedContactSchema(t, client)

	descriptors := contactDescriptors()
	labels, err := sqlstore.NewLabelStore(client.DB(), descriptors...)
	if err != nil {
		t.Fatalf("new label store: %v", err)
	}
	store, err := sqlstore.NewSQLDataStore(client.DB(), labels, descriptors...)
	if err != nil {
		t.Fatalf("new data store: %v", err)
	}
	caller := core.Caller{UserID: 1, Store: "gateway"}

	companyID, err := store.Create(ctx, caller, "res.company", core.Record{
		"display_name": "Acme",
	})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	contactID, err := store.Create(ctx, caller, "res.partner", core.Record{
		"display_name": "Bob",
		"email":        "bob@acme.test",
		"company_id":   companyID,
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}

	records, err := store.SearchRead(ctx, caller, "res.partner", core.SearchOptions{
		Domain: []core.Clause{{Field: "id", Operator: "=", Value: contactID}},
		Fields: []string{"display_name", "company_id"},
	})
	if err != nil {
		t.Fatalf("search read: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	ref, ok := records[0]["company_id"].(core.RelationRef)
	if !ok {
		t.Fatalf("expected relation flattened to RelationRef, got %T", records[0]["company_id"])
	}
	if ref.ID != companyID || ref.Label != "Acme" {
		t.Fatalf("expected [%d Acme], got %+v", companyID, ref)
	}
}

func TestSQLDataStoreWriteUnlinkAndCount(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	seedContactSchema(t, client)

	descriptors := contactDescriptors()
	store, err := sqlstore.NewSQLDataStore(client.DB(), nil, descriptors...)
	if err != nil {
		t.Fatalf("new data store: %v", err)
	}
	caller := core.Caller{UserID: 1, Store: "gateway"}

	ids := make([]int64, 0, 3)
	for _, name := range []string{"a", "b", "c"} {
		id, err := store.Create(ctx, caller, "res.partner", core.Record{"display_name": name})
		if err != nil {
			t.Fatalf("create contact %s: %v", name, err)
		}
		ids = append(ids, id)
	}

	count, err := store.SearchCount(ctx, caller, "res.partner", core.SearchOptions{})
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d err=%v", count, err)
	}

	ok, err := store.Write(ctx, caller, "res.partner", ids[:2], core.Record{"email": "x@y.test"})
	if err != nil || !ok {
		t.Fatalf("write: ok=%v err=%v", ok, err)
	}
	matched, err := store.Search(ctx, caller, "res.partner", core.SearchOptions{
		Domain: []core.Clause{{Field: "email", Operator: "=", Value: "x@y.test"}},
	})
	if err != nil || len(matched) != 2 {
		t.Fatalf("expected 2 updated rows, got %d err=%v", len(matched), err)
	}

	if ok, err = store.Unlink(ctx, caller, "res.partner", ids[:1]); err != nil || !ok {
		t.Fatalf("unlink: ok=%v err=%v", ok, err)
	}
	count, err = store.SearchCount(ctx, caller, "res.partner", core.SearchOptions{})
	if err != nil || count != 2 {
		t.Fatalf("expected count 2 after unlink, got %d err=%v", count, err)
	}

	if _, err = store.Create(ctx, caller, "res.partner", core.Record{"bogus": 1}); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}

func TestSQLDataStoreCreateReturnsOwnRowID(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	seedContactSchema(t, client)

	store, err := sqlstore.NewSQLDataStore(client.DB(), nil, contactDescriptors()...)
	if err != nil {
		t.Fatalf("new data store: %v", err)
	}
	caller := core.Caller{UserID: 1, Store: "gateway"}

	for _, name := range []string{"alpha", "beta", "gamma"} {
		id, err := store.Create(ctx, caller, "res.partner", core.Record{"display_name": name})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		records, err := store.SearchRead(ctx, caller, "res.partner", core.SearchOptions{
			Domain: []core.Clause{{Field: "id", Operator: "=", Value: id}},
			Fields: []string{"display_name"},
		})
		if err != nil {
			t.Fatalf("read back %d: %v", id, err)
		}
		if len(records) != 1 || records[0]["display_name"] != name {
			t.Fatalf("expected id %d to address the %q row, got %v", id, name, records)
		}
	}
}

func contactDescriptors() []sqlstore.EntityDescriptor {
	return []sqlstore.EntityDescriptor{
		{
			Entity:     "res.partner",
			Table:      "res_partner",
			LabelField: "display_name",
			Fields:     []string{"display_name", "email"},
			Relations: map[string]sqlstore.RelationDescriptor{
				"company_id": {
					Kind:   sqlstore.RelationSingle,
					Entity: "res.company",
					Column: "company_id",
				},
			},
		},
		{
			Entity:     "res.company",
			Table:      "res_company",
			LabelField: "display_name",
			Fields:     []string{"display_name"},
		},
	}
}

func seedContactSchema(t *testing.T, client *persistence.Client) {
	t.Helper()
	ctx := context.Background()
	statements := []string{
		`CREATE TABLE res_company (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE res_partner (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT,
			company_id INTEGER
		)`,
	}
	for _, statement := range statements {
		if _, err := client.DB().ExecContext(ctx, statement); err != nil {
			t.Fatalf("seed schema: %v", err)
		}
	}
}

func seedUser(t *testing.T, client *persistence.Client, login string, password string, displayName string) {
	t.Helper()
	_, err := client.DB().ExecContext(context.Background(),
		"INSERT INTO gateway_users (login, password_hash, display_name, active) VALUES (?, ?, ?, 1)",
		login, sqlstore.HashPassword(password), displayName,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:gateway-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = gatewaymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != gatewaymigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, gatewaymigrations.WithValidationTargets(gatewaymigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
