package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/zombor/receipt-insights/internal/scanning"

	_ "modernc.org/sqlite"
)

// SQLiteDB implements DocumentStore with a single sqlite table
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the sqlite file at dbPath and migrates it
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

const insertDocument = `
INSERT INTO documents (
    id, collection, total_cents, receipt_date, receipt_time, merchant_name, category,
    image_reference, extras, created_seconds, created_nanos, updated_seconds, updated_nanos
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AddDocument inserts doc under a freshly generated UUID
func (s *SQLiteDB) AddDocument(ctx context.Context, collection string, doc *Document) (string, error) {
	id := uuid.NewString()

	var extras sql.NullString
	if doc.Extras != nil {
		b, err := json.Marshal(doc.Extras)
		if err != nil {
			return "", fmt.Errorf("marshaling extras: %w", err)
		}
		extras = sql.NullString{String: string(b), Valid: true}
	}

	var updatedSeconds, updatedNanos sql.NullInt64
	if doc.UpdatedAt != nil {
		updatedSeconds = sql.NullInt64{Int64: doc.UpdatedAt.Seconds, Valid: true}
		updatedNanos = sql.NullInt64{Int64: int64(doc.UpdatedAt.Nanos), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, insertDocument,
		id, collection, doc.TotalCents, doc.ReceiptDate, doc.ReceiptTime, doc.MerchantName,
		doc.Category, doc.ImageReference, extras, doc.CreatedAt.Seconds, doc.CreatedAt.Nanos,
		updatedSeconds, updatedNanos,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

const selectDocuments = `
SELECT id, total_cents, receipt_date, receipt_time, merchant_name, category, image_reference,
       extras, created_seconds, created_nanos, updated_seconds, updated_nanos
FROM documents
WHERE collection = ?
ORDER BY created_seconds %[1]s, created_nanos %[1]s, id %[1]s`

// QueryOrdered selects every document of the collection sorted by creation time
func (s *SQLiteDB) QueryOrdered(ctx context.Context, collection string, descending bool) ([]*Document, error) {
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectDocuments, direction), collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		var (
			doc                          Document
			extras                       sql.NullString
			updatedSeconds, updatedNanos sql.NullInt64
		)
		err := rows.Scan(&doc.ID, &doc.TotalCents, &doc.ReceiptDate, &doc.ReceiptTime,
			&doc.MerchantName, &doc.Category, &doc.ImageReference, &extras,
			&doc.CreatedAt.Seconds, &doc.CreatedAt.Nanos, &updatedSeconds, &updatedNanos)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		if extras.Valid {
			doc.Extras = &scanning.Extras{}
			if err := json.Unmarshal([]byte(extras.String), doc.Extras); err != nil {
				return nil, fmt.Errorf("unmarshaling extras for %s: %w", doc.ID, err)
			}
		}
		if updatedSeconds.Valid {
			doc.UpdatedAt = &Timestamp{Seconds: updatedSeconds.Int64, Nanos: int32(updatedNanos.Int64)}
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
