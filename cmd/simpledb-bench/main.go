// Command simpledb-bench drives the buffer pool, a B+Tree index, and a
// record heap together against a real on-disk file, exercising the same
// components the package tests do but at a size meant for the terminal
// rather than `go test`.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"simpledb/src/catalog"
	"simpledb/src/disk"
	"simpledb/src/heap"
	"simpledb/src/index"
)

func main() {
	dbFile := flag.String("db", "simpledb-bench.db", "backing file for the run")
	poolSize := flag.Int("pool-size", 64, "number of buffer pool frames")
	k := flag.Int("k", 2, "LRU-K history length")
	n := flag.Int("n", 10000, "number of records to insert")
	leafMax := flag.Int("leaf-max", 64, "B+Tree leaf node fanout")
	internalMax := flag.Int("internal-max", 64, "B+Tree internal node fanout")
	seed := flag.Int64("seed", 1, "random seed for record payloads")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := os.Remove(*dbFile); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Fatalf("Cannot clear previous run's database file.")
	}

	dm := disk.NewDiskManager(*dbFile)
	defer dm.Close()
	bpm := disk.NewBufferPoolManager(*poolSize, dm, disk.NewLRUKReplacer(*poolSize, *k))

	cat := catalog.New(bpm, true)
	tree := index.NewBPlusTree(bpm, cat, "bench_index", int32(*leafMax), int32(*internalMax))
	recordHeap, _ := heap.NewRecordHeap(bpm)

	rng := rand.New(rand.NewSource(*seed))

	log.Infof("inserting %d records into %s (pool size %d, k=%d)", *n, *dbFile, *poolSize, *k)
	start := time.Now()
	for i := 0; i < *n; i++ {
		payload := make([]byte, 32+rng.Intn(96))
		rng.Read(payload)
		rid := recordHeap.Insert(payload)
		if !tree.Insert(int64(i), rid) {
			log.Fatalf("unexpected duplicate key %d", i)
		}
	}
	insertElapsed := time.Since(start)
	fmt.Printf("insert: %d records in %s (%.0f records/sec)\n", *n, insertElapsed, float64(*n)/insertElapsed.Seconds())

	start = time.Now()
	found := 0
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		if _, ok := recordHeap.Get(it.Value()); ok {
			found++
		}
	}
	scanElapsed := time.Since(start)
	fmt.Printf("scan: visited %d/%d records in %s\n", found, *n, scanElapsed)

	start = time.Now()
	removed := 0
	for i := 0; i < *n; i += 2 {
		tree.Remove(int64(i))
		removed++
	}
	removeElapsed := time.Since(start)
	fmt.Printf("remove: %d records in %s\n", removed, removeElapsed)

	bpm.FlushAllPages()
	log.Infof("done, tree root page id = %d", tree.GetRootPageID())
}
