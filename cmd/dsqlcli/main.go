// Command dsqlcli is a small demo/REPL for the DSQL engine. It wires an
// in-memory metadata catalog, the mock dialect, and a SQLite-backed driver
// so generated SQL can be run against a real database without a network
// dependency. The mock dialect is used rather than PG because SQLite has no
// ILIKE operator and no identifier-quoting requirement for this schema.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jmoiron/sqlx"

	"github.com/arllen133/dsqlengine"
	"github.com/arllen133/dsqlengine/driveradapter"
	"github.com/arllen133/dsqlengine/memmetadata"
)

func main() {
	query := flag.String("q", "", "run a single DSQL statement and exit")
	dbPath := flag.String("db", ":memory:", "sqlite3 database path")
	explain := flag.Bool("explain", false, "print the plan instead of executing")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("dsqlcli: open database: %v", err)
	}
	defer db.Close()

	if err := seedSchema(db); err != nil {
		log.Fatalf("dsqlcli: seed schema: %v", err)
	}

	catalog := demoCatalog()
	security := dsqlengine.StaticSecurityProvider{Context: dsqlengine.NewSecurityContext("demo-user")}
	driver := driveradapter.New(sqlx.NewDb(db, "sqlite3"))

	engine := dsqlengine.NewEngine(dsqlengine.MOCK, catalog, catalog, security, driver)
	defer engine.Close()

	ctx := context.Background()

	if *query != "" {
		runOne(ctx, engine, *query, *explain)
		return
	}

	repl(ctx, engine, *explain)
}

func runOne(ctx context.Context, engine *dsqlengine.Engine, query string, explainOnly bool) {
	if explainOnly {
		plan, err := engine.Explain(ctx, query)
		if err != nil {
			log.Fatalf("dsqlcli: explain: %v", err)
		}
		fmt.Printf("%+v\n", plan)
		return
	}

	rows, err := engine.Query(ctx, query)
	if err != nil {
		log.Fatalf("dsqlcli: query: %v", err)
	}
	printRows(rows)
}

func repl(ctx context.Context, engine *dsqlengine.Engine, explainOnly bool) {
	fmt.Println("dsqlcli — type a DSQL statement, or .quit to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("dsql> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".quit" || line == ".exit" {
			return
		}
		runOne(ctx, engine, line, explainOnly)
	}
}

func printRows(rows dsqlengine.Rows) {
	if len(rows) == 0 {
		fmt.Println("(0 rows)")
		return
	}
	for _, row := range rows {
		fmt.Println(row)
	}
	fmt.Printf("(%d rows)\n", len(rows))
}

// seedSchema creates a tiny "accounts"/"contacts" schema and a few rows, so
// the demo has something to query against out of the box.
func seedSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT,
			owner_id TEXT,
			industry TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			account_id TEXT,
			last_name TEXT,
			owner_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS share (
			record_id TEXT,
			user_or_group_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS user_role_hierarchy (
			supervisor_user_id TEXT,
			subordinate_user_id TEXT
		)`,
		`INSERT OR IGNORE INTO accounts (id, name, owner_id, industry) VALUES
			('a1', 'Acme', 'demo-user', 'Manufacturing'),
			('a2', 'Globex', 'demo-user', 'Technology')`,
		`INSERT OR IGNORE INTO contacts (id, account_id, last_name, owner_id) VALUES
			('c1', 'a1', 'Runner', 'demo-user'),
			('c2', 'a2', 'Looper', 'demo-user')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// demoCatalog builds the in-memory metadata the engine needs to compile
// queries against the schema seedSchema creates.
func demoCatalog() *memmetadata.Catalog {
	catalog := memmetadata.NewCatalog()

	catalog.Register(dsqlengine.ObjectMetadata{
		ObjectName: "Account",
		TableName:  "accounts",
		Fields: map[string]dsqlengine.FieldMetadata{
			"Id":       {FieldName: "Id", ColumnName: "id", DataType: "string", Indexed: true, Selectivity: 0.01},
			"Name":     {FieldName: "Name", ColumnName: "name", DataType: "string", Selectivity: 0.3},
			"OwnerId":  {FieldName: "OwnerId", ColumnName: "owner_id", DataType: "string", Selectivity: 0.2},
			"Industry": {FieldName: "Industry", ColumnName: "industry", DataType: "string", Selectivity: 0.1},
		},
		Relationships: []dsqlengine.Relationship{
			{Name: "Contacts", TargetObject: "Contact", ForeignKey: "id", ReferencedKey: "account_id", Kind: dsqlengine.RelationshipMasterDet},
		},
		HasRLS: true,
	}, 2)

	catalog.Register(dsqlengine.ObjectMetadata{
		ObjectName: "Contact",
		TableName:  "contacts",
		Fields: map[string]dsqlengine.FieldMetadata{
			"Id":        {FieldName: "Id", ColumnName: "id", DataType: "string", Indexed: true, Selectivity: 0.01},
			"LastName":  {FieldName: "LastName", ColumnName: "last_name", DataType: "string", Selectivity: 0.3},
			"AccountId": {FieldName: "AccountId", ColumnName: "account_id", DataType: "string", Indexed: true, Selectivity: 0.2},
			"OwnerId":   {FieldName: "OwnerId", ColumnName: "owner_id", DataType: "string", Selectivity: 0.2},
		},
		Relationships: []dsqlengine.Relationship{
			{Name: "Account", TargetObject: "Account", ForeignKey: "account_id", ReferencedKey: "id", Kind: dsqlengine.RelationshipLookup},
		},
		HasRLS: true,
	}, 2)

	// Targets of the SharingBased/HierarchyBased RLS subqueries (spec
	// §4.2); RLS is enabled on Account/Contact above, so every query
	// against them compiles a predicate referencing these two objects.
	catalog.Register(dsqlengine.ObjectMetadata{ObjectName: "Share", TableName: "share"}, 0)
	catalog.Register(dsqlengine.ObjectMetadata{ObjectName: "UserRoleHierarchy", TableName: "user_role_hierarchy"}, 0)

	return catalog
}
