// Package audiocore provides the audio hand-off layer of audiopulse: the chunk
// type produced by capture devices, the CaptureDevice contract, and the
// lock-free SampleRingBuffer that carries chunks from the capture context to
// the analysis goroutine.
//
// # Concurrency and Thread Safety
//
// Exactly two contexts touch audiocore data at runtime:
//
//   - The producer context: a device callback or the Pump goroutine. It owns
//     chunk construction and is the only caller of SampleRingBuffer.Push.
//   - The consumer context: the frame scheduler goroutine. It is the only
//     caller of SampleRingBuffer.TryPop.
//
// SampleRingBuffer never takes a lock and never blocks either side. When the
// consumer falls behind, Push evicts the oldest unread chunk and increments a
// drop counter instead of waiting.
//
// # Chunk Ownership
//
// An AudioChunk is immutable once pushed. Ownership moves with the pointer:
// the producer must not touch a chunk after pushing it, and must not push the
// same chunk twice.
//
// Example:
//
//	ring := audiocore.NewSampleRingBuffer(audiocore.DefaultRingCapacity)
//	pump := audiocore.NewPump(device, ring)
//	go pump.Run(ctx)
//
//	if chunk, ok := ring.TryPop(); ok {
//		// analyze chunk
//	}
package audiocore
