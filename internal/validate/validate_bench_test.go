// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"testing"
)

func BenchmarkValidatorRange(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.Range("port", 554, 1, 65535)
	}
}

func BenchmarkValidatorURL(b *testing.B) {
	v := New()
	url := "rtsp://camera.local:554/stream1"

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.URL("rtspUrl", url, []string{"rtsp"})
	}
}

func BenchmarkValidatorDirectory(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.Directory("outputDir", "/tmp", true)
	}
}

func BenchmarkValidatorMultipleChecks(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v := New()
		v.NotEmpty("name", "Front Door")
		v.URL("rtspUrl", "rtsp://camera.local/stream1", []string{"rtsp"})
		v.Positive("duration", 3600)
	}
}

func BenchmarkValidatorWithErrors(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v := New()
		v.NotEmpty("name", "")                         // Will fail
		v.Range("port", 99999, 1, 65535)                // Will fail
		v.URL("rtspUrl", "invalid://", []string{"rtsp"}) // Will fail
		_ = v.IsValid()
		_ = v.Errors()
	}
}
