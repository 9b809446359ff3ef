// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

// frameBuffer accumulates the bytes of one frame. It is owned by a single Reader
// and reused between frames; callers must copy anything they keep past reset.
type frameBuffer struct {
	data []byte
}

func newFrameBuffer(capacity int) *frameBuffer {
	return &frameBuffer{data: make([]byte, 0, capacity)}
}

func (b *frameBuffer) append(p ...byte) {
	b.data = append(b.data, p...)
}

func (b *frameBuffer) bytes() []byte {
	return b.data
}

func (b *frameBuffer) len() int {
	return len(b.data)
}

func (b *frameBuffer) reset() {
	b.data = b.data[:0]
}

// preambleWindow is a 4-byte shift register holding the most recent bytes seen
// while hunting for the preamble.
type preambleWindow struct {
	buf   [PreambleSize]byte
	count int
}

// push shifts b in, dropping the oldest byte once the window is full.
func (w *preambleWindow) push(b byte) {
	if w.count < PreambleSize {
		w.buf[w.count] = b
		w.count++
		return
	}
	copy(w.buf[:], w.buf[1:])
	w.buf[PreambleSize-1] = b
}

// matched reports whether the window holds exactly the preamble.
func (w *preambleWindow) matched() bool {
	return w.count == PreambleSize && w.buf == Preamble
}

func (w *preambleWindow) reset() {
	w.count = 0
}
