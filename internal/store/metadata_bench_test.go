package store

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkSQLiteMetadataIndex_Upsert(b *testing.B) {
	idx, err := NewSQLiteMetadataIndex("")
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	records := make([]*VectorRecord, 100)
	for i := range records {
		records[i] = sampleRecord(fmt.Sprintf("sym%d", i), fmt.Sprintf("file%d.py", i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := idx.Upsert(ctx, records); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSQLiteMetadataIndex_FileChecksums(b *testing.B) {
	idx, err := NewSQLiteMetadataIndex("")
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	records := make([]*VectorRecord, 500)
	for i := range records {
		records[i] = sampleRecord(fmt.Sprintf("sym%d", i), fmt.Sprintf("file%d.py", i%50))
	}
	if err := idx.Upsert(ctx, records); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.FileChecksums(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
