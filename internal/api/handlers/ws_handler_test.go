package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChunk(t *testing.T) {
	assert.Equal(t, "", validateChunk(wsClientMsg{Type: "audio_chunk", ChunkIndex: 1, AudioBase64: "aGk="}))

	// the end-of-capture marker carries no audio and must pass
	assert.Equal(t, "", validateChunk(wsClientMsg{Type: "audio_chunk", ChunkIndex: 4, IsFinal: true}))

	assert.Equal(t, "audio_base64 required",
		validateChunk(wsClientMsg{Type: "audio_chunk", ChunkIndex: 2}))
	assert.Equal(t, "chunk_index must be > 0",
		validateChunk(wsClientMsg{Type: "audio_chunk", AudioBase64: "aGk="}))
}
