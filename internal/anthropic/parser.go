package anthropic

import (
	"bytes"
	"encoding/json"
)

// ChunkKind discriminates the closed set of stream increments.
type ChunkKind int

const (
	// ChunkText carries one fragment of generated reply text.
	ChunkText ChunkKind = iota

	// ChunkDone marks normal completion. Terminal.
	ChunkDone

	// ChunkError carries a stream-level error message. Terminal.
	ChunkError
)

// Chunk is one unit of an in-progress generated reply.
type Chunk struct {
	Kind ChunkKind
	Text string // fragment text, for ChunkText
	Err  string // human-readable message, for ChunkError
}

// streamEvent is one decoded `data:` frame of the streaming wire format.
type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var dataPrefix = []byte("data: ")

// StreamParser turns an arbitrarily chunked byte stream into Chunks.
//
// Bytes accumulate in a raw buffer and only complete newline-terminated
// lines are ever decoded, so a multi-byte rune split across two reads is
// reassembled rather than corrupted. Frames that are not `data: ` lines
// (pings rendered as comments, blank keep-alives) and data frames that
// fail to decode are skipped. At most one terminal chunk (ChunkDone or
// ChunkError) is produced; Close synthesizes ChunkDone when the source
// ends without one.
type StreamParser struct {
	buf  []byte
	done bool
}

// NewStreamParser returns a parser ready to receive bytes.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Feed appends raw bytes and returns the chunks completed by them.
// After a terminal chunk has been returned, further input is ignored.
func (p *StreamParser) Feed(data []byte) []Chunk {
	if p.done {
		return nil
	}
	p.buf = append(p.buf, data...)

	var out []Chunk
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := bytes.TrimRight(p.buf[:nl], "\r")
		p.buf = p.buf[nl+1:]

		chunk, ok := p.parseLine(line)
		if !ok {
			continue
		}
		out = append(out, chunk)
		if chunk.Kind != ChunkText {
			p.done = true
			p.buf = nil
			break
		}
	}
	return out
}

// Close signals end of input. If no terminal chunk was seen the stream is
// treated as complete and a ChunkDone is synthesized.
func (p *StreamParser) Close() []Chunk {
	if p.done {
		return nil
	}
	p.done = true
	p.buf = nil
	return []Chunk{{Kind: ChunkDone}}
}

// parseLine decodes one complete line. The second return value is false for
// lines that produce no chunk: non-data lines, unknown event types, and
// malformed payloads (a single corrupt frame must not end the stream).
func (p *StreamParser) parseLine(line []byte) (Chunk, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return Chunk{}, false
	}

	var ev streamEvent
	if err := json.Unmarshal(line[len(dataPrefix):], &ev); err != nil {
		return Chunk{}, false
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Type == "text_delta" {
			return Chunk{Kind: ChunkText, Text: ev.Delta.Text}, true
		}
		return Chunk{}, false
	case "message_stop":
		return Chunk{Kind: ChunkDone}, true
	case "error":
		msg := "stream error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return Chunk{Kind: ChunkError, Err: msg}, true
	default:
		// ping, message_start, content_block_start, message_delta, and
		// any event type added in the future.
		return Chunk{}, false
	}
}
