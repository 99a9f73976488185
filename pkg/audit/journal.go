// Package audit journals invitation events to an append-only msgpack log
// with in-memory indexes for site, sender, event type and date lookups.
package audit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Journal handles batched writing of invitation event records.
type Journal struct {
	batchSize     int
	flushInterval time.Duration

	buffer   []*Record
	bufferMu sync.Mutex
	file     *os.File
	fileMu   sync.Mutex
	indexer  *Indexer
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// JournalConfig holds configuration for the journal.
type JournalConfig struct {
	BasePath      string        // Directory for the journal file
	BatchSize     int           // Number of entries to batch before flush
	FlushInterval time.Duration // Maximum time between flushes
}

// NewJournal opens (or creates) the journal, rebuilds the indexes from
// existing records and starts the background flusher.
func NewJournal(config JournalConfig) (*Journal, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	path := filepath.Join(config.BasePath, "invitations.journal")

	j := &Journal{
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		buffer:        make([]*Record, 0, config.BatchSize),
		indexer:       NewIndexer(),
		stopCh:        make(chan struct{}),
	}

	if err := j.replay(path); err != nil {
		return nil, fmt.Errorf("failed to replay journal: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	j.file = file

	j.wg.Add(1)
	go j.flushLoop()

	return j, nil
}

// Indexer exposes the journal's query indexes.
func (j *Journal) Indexer() *Indexer {
	return j.indexer
}

// Record adds a journal entry to the buffer and indexes it immediately.
func (j *Journal) Record(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	j.indexer.Add(rec)

	j.bufferMu.Lock()
	j.buffer = append(j.buffer, rec)
	shouldFlush := len(j.buffer) >= j.batchSize
	j.bufferMu.Unlock()

	if shouldFlush {
		return j.Flush()
	}

	return nil
}

// Flush writes all buffered entries to disk.
func (j *Journal) Flush() error {
	j.bufferMu.Lock()
	if len(j.buffer) == 0 {
		j.bufferMu.Unlock()
		return nil
	}

	toWrite := j.buffer
	j.buffer = make([]*Record, 0, j.batchSize)
	j.bufferMu.Unlock()

	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	encoder := msgpack.NewEncoder(j.file)
	for _, rec := range toWrite {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode journal record: %w", err)
		}
	}
	return j.file.Sync()
}

// Close flushes pending records and stops the background flusher.
func (j *Journal) Close() error {
	close(j.stopCh)
	j.wg.Wait()

	if err := j.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Flush errors here surface on the next explicit Flush or Close.
			_ = j.Flush()
		case <-j.stopCh:
			return
		}
	}
}

// replay rebuilds the indexes from an existing journal file.
func (j *Journal) replay(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	decoder := msgpack.NewDecoder(file)
	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		j.indexer.Add(&rec)
	}
}
