package fbsql

import (
	"database/sql"
	"database/sql/driver"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func TestDriverRegistered(t *testing.T) {
	for _, name := range sql.Drivers() {
		if name == "firebird" {
			return
		}
	}
	t.Fatal("firebird driver not registered")
}

func TestToDriverValue(t *testing.T) {
	cases := []struct {
		in   any
		want driver.Value
	}{
		{int16(7), int64(7)},
		{int32(7), int64(7)},
		{int64(7), int64(7)},
		{float32(1.5), float64(1.5)},
		{decimal.New(105, -1), "10.5"},
		{"s", "s"},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := toDriverValue(tc.in); got != tc.want {
			t.Errorf("toDriverValue(%v) = %v (%T), want %v", tc.in, got, got, tc.want)
		}
	}
}

func TestNamedToArgs(t *testing.T) {
	args, err := namedToArgs([]driver.NamedValue{
		{Ordinal: 2, Value: "b"},
		{Ordinal: 1, Value: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if args[0] != "a" || args[1] != "b" {
		t.Errorf("args = %v", args)
	}

	if _, err := namedToArgs([]driver.NamedValue{{Name: "x", Ordinal: 1}}); err == nil {
		t.Error("expected error for named parameter")
	}
}

func TestBadDSN(t *testing.T) {
	d := &Driver{}
	if _, err := d.OpenConnector("postgres://nope"); err == nil {
		t.Fatal("expected error for foreign scheme")
	}
}

func integrationDSN(t *testing.T) string {
	t.Helper()
	_ = godotenv.Load()
	dsn := os.Getenv("FBWIRE_TEST_DSN")
	if dsn == "" {
		t.Skip("FBWIRE_TEST_DSN not set")
	}
	return dsn
}

func TestIntegrationSQLX(t *testing.T) {
	db, err := sqlx.Connect("firebird", integrationDSN(t))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var banner string
	if err := db.Get(&banner, `SELECT rdb$get_context('SYSTEM', 'ENGINE_VERSION') FROM rdb$database`); err != nil {
		t.Fatal(err)
	}
	if banner == "" {
		t.Error("empty engine version")
	}

	type row struct {
		One int64  `db:"ONE"`
		Txt string `db:"TXT"`
	}
	var r row
	if err := db.Get(&r, `SELECT 1 AS one, 'abc' AS txt FROM rdb$database`); err != nil {
		t.Fatal(err)
	}
	if r.One != 1 || r.Txt != "abc" {
		t.Errorf("row = %+v", r)
	}
}
