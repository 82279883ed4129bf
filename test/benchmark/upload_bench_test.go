package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/planner"
	"github.com/coldvault/coldvault/internal/upload"
	"github.com/coldvault/coldvault/test/testutil"
)

func benchFile(b *testing.B, size int) string {
	b.Helper()

	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}

	path := filepath.Join(b.TempDir(), "source.bin")
	if err := os.WriteFile(path, data, 0600); err != nil {
		b.Fatal(err)
	}
	return path
}

func BenchmarkPlan(b *testing.B) {
	cipher := benchCipher(b, false)
	path := benchFile(b, 32<<20)

	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := planner.Plan(path, 1<<20, cipher); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkChunkEncode(b *testing.B) {
	cipher := benchCipher(b, false)
	path := benchFile(b, 4<<20)

	chunks, err := planner.Plan(path, 1<<20, cipher)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.SetBytes(4 << 20)

	for i := 0; i < b.N; i++ {
		for _, chunk := range chunks {
			chunk.SetCipher(cipher)
			if _, err := chunk.ComputeChecksum(); err != nil {
				b.Fatal(err)
			}
			chunk.Checksum = ""
			chunk.MarkCompleted()
		}
	}
}

func BenchmarkUploadConcurrency(b *testing.B) {
	logger := testutil.NewTestLogger()

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			cipher := benchCipher(b, false)
			path := benchFile(b, 8<<20)

			b.ReportAllocs()
			b.SetBytes(8 << 20)

			for i := 0; i < b.N; i++ {
				chunks, err := planner.Plan(path, 1<<20, cipher)
				if err != nil {
					b.Fatal(err)
				}

				sess := upload.NewSession("bench-vault", path, 1<<20, "bench", chunks)
				orch := upload.NewOrchestrator(sess, backend.NewMockBackend(), logger,
					upload.WithConcurrency(workers))

				if err := orch.Run(context.Background(), nil, 1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
