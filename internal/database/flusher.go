package database

import (
	"context"
	"log"
	"time"

	"shopfloor/internal/scheduler"
)

// SnapshotSource provides the consistent engine view the flusher persists.
type SnapshotSource interface {
	Snapshot() scheduler.Snapshot
}

// Flusher periodically writes engine snapshots to the machines and orders
// tables. Durability is a collaborator of the engine, not part of it: the
// flusher reads a finished snapshot and performs all I/O on its own
// goroutine, so no engine lock is ever held across a database write.
type Flusher struct {
	source   SnapshotSource
	interval time.Duration
}

// NewFlusher creates a flusher persisting snapshots from source.
func NewFlusher(source SnapshotSource, interval time.Duration) *Flusher {
	return &Flusher{source: source, interval: interval}
}

// Run flushes on the configured interval until the context is cancelled,
// then writes one final snapshot.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush()
		case <-ctx.Done():
			f.Flush()
			return
		}
	}
}

// Flush persists one snapshot, upserting by natural key.
func (f *Flusher) Flush() {
	snap := f.source.Snapshot()
	db := GetDB()
	if db == nil {
		return
	}

	for _, m := range snap.Machines {
		record := NewMachineRecord(m)
		var existing MachineRecord
		if err := db.Where("machine_id = ?", record.MachineID).First(&existing).Error; err != nil {
			if err := db.Create(&record).Error; err != nil {
				log.Printf("Failed to persist machine %s: %v", record.MachineID, err)
			}
			continue
		}
		record.Model = existing.Model
		if err := db.Save(&record).Error; err != nil {
			log.Printf("Failed to persist machine %s: %v", record.MachineID, err)
		}
	}

	for _, o := range snap.Orders {
		record := NewOrderRecord(o)
		var existing OrderRecord
		if err := db.Where("order_id = ?", record.OrderID).First(&existing).Error; err != nil {
			if err := db.Create(&record).Error; err != nil {
				log.Printf("Failed to persist order %s: %v", record.OrderID, err)
			}
			continue
		}
		record.Model = existing.Model
		if err := db.Save(&record).Error; err != nil {
			log.Printf("Failed to persist order %s: %v", record.OrderID, err)
		}
	}
}
