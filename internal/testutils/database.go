package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SetupTestDB подключается к тестовой базе по переменным окружения.
// Без доступной базы тест пропускается, а не падает: юнит-тесты
// должны проходить и на машине без Postgres.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		host := getEnvOrDefault("POSTGRES_HOST", "localhost")
		port := getEnvOrDefault("POSTGRES_PORT", "5432")
		user := getEnvOrDefault("POSTGRES_USER", "test")
		password := getEnvOrDefault("POSTGRES_PASSWORD", "test")
		dbname := getEnvOrDefault("POSTGRES_DB", "filedesk_test")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	applySchema(t, db)
	// Чистим и до теста: прошлый прогон мог упасть до своей зачистки.
	truncateAll(t, db)

	t.Cleanup(func() {
		truncateAll(t, db)
		db.Close()
	})
	return db
}

// applySchema накатывает стартовую миграцию напрямую: тестовой базе
// не нужна история версий.
func applySchema(t *testing.T, db *sqlx.DB) {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join(moduleRoot(t), "migrations", "000001_init.up.sql"))
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
}

func truncateAll(t *testing.T, db *sqlx.DB) {
	t.Helper()

	_, err := db.Exec(`TRUNCATE user_preferences, notifications, activity_logs, file_versions, file_records, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Logf("failed to truncate test tables: %v", err)
	}
}

// moduleRoot находит корень модуля от файла этого пакета.
func moduleRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to locate caller")
	}
	return filepath.Dir(filepath.Dir(filepath.Dir(file)))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
