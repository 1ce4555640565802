package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketRecords   = []byte("records")    // вложенный bucket на каждую коллекцию
	bucketCursors   = []byte("cursors")    // курсоры синхронизации
	bucketMetadata  = []byte("metadata")   // device id, состояние часов
	bucketFilesMeta = []byte("files_meta") // метаданные закешированных файлов
	bucketFilesData = []byte("files_data") // сжатые байты файлов
	bucketTasks     = []byte("tasks")      // очередь передачи файлов
)

// Storage represents BoltDB storage implementation for client.
// It implements RecordStorage, CursorStorage, DeviceStorage, ClockStorage,
// ContentStorage and TaskStorage.
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB; ждем блокировку файла не дольше 5s
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketRecords,
			bucketCursors,
			bucketMetadata,
			bucketFilesMeta,
			bucketFilesData,
			bucketTasks,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
