package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIngestItemsSingle(t *testing.T) {
	items, err := decodeIngestItems([]byte(`{"external_id": "m1", "subject": "hi"}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].ExternalID)
}

func TestDecodeIngestItemsEnvelope(t *testing.T) {
	items, err := decodeIngestItems([]byte(`{"items": [{"external_id": "m1"}, {"external_id": "m2"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "m2", items[1].ExternalID)
}

func TestDecodeIngestItemsBareArray(t *testing.T) {
	items, err := decodeIngestItems([]byte(` [{"external_id": "m1"}] `))
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDecodeIngestItemsInvalid(t *testing.T) {
	_, err := decodeIngestItems([]byte(""))
	assert.Error(t, err)

	_, err = decodeIngestItems([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeIngestItems([]byte("[{broken"))
	assert.Error(t, err)
}

func TestIngestItemAttachmentDecoding(t *testing.T) {
	it := ingestItem{
		ExternalID: "m1",
		Attachments: []ingestAttached{
			{Filename: "a.txt", Content: "aGVsbG8="}, // "hello"
		},
	}
	item, err := it.toItem()
	require.NoError(t, err)
	require.Len(t, item.Attachments, 1)
	assert.Equal(t, []byte("hello"), item.Attachments[0].Content)
}

func TestIngestItemBadBase64(t *testing.T) {
	it := ingestItem{
		ExternalID:  "m1",
		Attachments: []ingestAttached{{Filename: "a.txt", Content: "%%%"}},
	}
	_, err := it.toItem()
	assert.Error(t, err)
}

func TestStatusForMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor("plain_text is empty"))
	assert.Equal(t, http.StatusBadRequest, statusFor("invalid input"))
	assert.Equal(t, http.StatusBadGateway, statusFor("embedding backend unavailable"))
	assert.Equal(t, http.StatusBadGateway, statusFor("upstream provider rejected credentials"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("request failed"))
}
